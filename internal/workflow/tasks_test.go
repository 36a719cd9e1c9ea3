package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corlin/hicrm-core/internal/types"
)

func TestInitialContactHandlerDrivesEngine(t *testing.T) {
	e := newTestEngine()
	taskID, err := e.Start(context.Background(), map[string]interface{}{"industry": "retail"}, []string{"grow"}, 14)
	require.NoError(t, err)

	task, err := NewInitialContactTask(taskID, 0)
	require.NoError(t, err)

	h := &InitialContactHandler{Engine: e}
	require.NoError(t, h.Handle(context.Background(), task))

	snapshot, err := e.GetTask(taskID)
	require.NoError(t, err)
	records := snapshot.Results["contactRecords"].([]*trackedContact)
	assert.Len(t, records, 1)
}

func TestFollowUpHandlerDrivesEngine(t *testing.T) {
	e := newTestEngine()
	taskID, err := e.Start(context.Background(), map[string]interface{}{"industry": "retail"}, []string{"grow"}, 14)
	require.NoError(t, err)
	_, err = e.ExecuteInitialContact(context.Background(), taskID, 0)
	require.NoError(t, err)

	task, err := NewFollowUpTask(taskID, 0, types.ContactResultPatch{Status: "follow_up", Notes: "checking in"})
	require.NoError(t, err)

	h := &FollowUpHandler{Engine: e}
	require.NoError(t, h.Handle(context.Background(), task))

	snapshot, err := e.GetTask(taskID)
	require.NoError(t, err)
	assert.Equal(t, types.StageFollowUp, snapshot.Stage)
}

func TestConversionHandlerDrivesEngine(t *testing.T) {
	e := newTestEngine()
	taskID, err := e.Start(context.Background(), map[string]interface{}{"industry": "retail"}, []string{"grow"}, 14)
	require.NoError(t, err)

	task, err := NewConversionTask(taskID)
	require.NoError(t, err)

	h := &ConversionHandler{Engine: e}
	require.NoError(t, h.Handle(context.Background(), task))

	snapshot, err := e.GetTask(taskID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusCompleted, snapshot.Status)
}
