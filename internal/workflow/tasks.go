package workflow

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/corlin/hicrm-core/internal/types"
	"github.com/corlin/hicrm-core/internal/types/interfaces"
)

// Task type names for the externally-driven discovery stages, queued
// through asynq per types/interfaces.TaskHandler's shape so a worker
// process can advance a task's initialContact/followUp/conversion
// stages out of band from the request that created the DiscoveryTask.
const (
	TypeInitialContact = "discovery:initial_contact"
	TypeFollowUp       = "discovery:follow_up"
	TypeConversion     = "discovery:conversion"
)

type initialContactPayload struct {
	TaskID    string `json:"taskId"`
	PlanIndex int    `json:"planIndex"`
}

type followUpPayload struct {
	TaskID string                   `json:"taskId"`
	Index  int                      `json:"index"`
	Patch  types.ContactResultPatch `json:"patch"`
}

type conversionPayload struct {
	TaskID string `json:"taskId"`
}

// NewInitialContactTask builds an asynq task that, when handled, calls
// Engine.ExecuteInitialContact(taskID, planIndex).
func NewInitialContactTask(taskID string, planIndex int) (*asynq.Task, error) {
	payload, err := json.Marshal(initialContactPayload{TaskID: taskID, PlanIndex: planIndex})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeInitialContact, payload), nil
}

// NewFollowUpTask builds an asynq task that applies patch to the idx'th
// contact record of taskID.
func NewFollowUpTask(taskID string, idx int, patch types.ContactResultPatch) (*asynq.Task, error) {
	payload, err := json.Marshal(followUpPayload{TaskID: taskID, Index: idx, Patch: patch})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeFollowUp, payload), nil
}

// NewConversionTask builds an asynq task that completes taskID.
func NewConversionTask(taskID string) (*asynq.Task, error) {
	payload, err := json.Marshal(conversionPayload{TaskID: taskID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeConversion, payload), nil
}

// InitialContactHandler drives Engine.ExecuteInitialContact from a
// queued asynq task.
type InitialContactHandler struct{ Engine *Engine }

var _ interfaces.TaskHandler = (*InitialContactHandler)(nil)

func (h *InitialContactHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var p initialContactPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	_, err := h.Engine.ExecuteInitialContact(ctx, p.TaskID, p.PlanIndex)
	return err
}

// FollowUpHandler drives Engine.UpdateContactResult from a queued
// asynq task.
type FollowUpHandler struct{ Engine *Engine }

var _ interfaces.TaskHandler = (*FollowUpHandler)(nil)

func (h *FollowUpHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var p followUpPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	return h.Engine.UpdateContactResult(ctx, p.TaskID, p.Index, p.Patch)
}

// ConversionHandler drives Engine.CompleteTask from a queued asynq
// task.
type ConversionHandler struct{ Engine *Engine }

var _ interfaces.TaskHandler = (*ConversionHandler)(nil)

func (h *ConversionHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var p conversionPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	return h.Engine.CompleteTask(ctx, p.TaskID)
}

// RegisterHandlers wires the three discovery task handlers onto mux,
// so a worker process started with asynq.NewServer can drain the
// queue populated by NewInitialContactTask/NewFollowUpTask/
// NewConversionTask.
func RegisterHandlers(mux *asynq.ServeMux, engine *Engine) {
	mux.Handle(TypeInitialContact, &InitialContactHandler{Engine: engine})
	mux.Handle(TypeFollowUp, &FollowUpHandler{Engine: engine})
	mux.Handle(TypeConversion, &ConversionHandler{Engine: engine})
}
