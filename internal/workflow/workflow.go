// Package workflow implements the Discovery Workflow (spec §4.12): a
// long-running staged task engine sequencing the sales agent through
// research, qualification, contact-planning and externally-driven
// initial-contact/follow-up/conversion stages, grounded on
// original_source/src/workflows/customer_discovery.py's
// CustomerDiscoveryWorkflow.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corlin/hicrm-core/internal/agent"
	"github.com/corlin/hicrm-core/internal/customerstore"
	"github.com/corlin/hicrm-core/internal/logger"
	"github.com/corlin/hicrm-core/internal/rag"
	"github.com/corlin/hicrm-core/internal/types"
)

var (
	ErrTaskNotFound        = errors.New("discovery task not found")
	ErrPreconditionNotMet  = errors.New("discovery stage precondition not met")
	ErrPlanIndexOutOfRange = errors.New("contact plan index out of range")
	ErrRecordIndexOutOfRange = errors.New("contact record index out of range")
)

const (
	maxPotentialCustomers    = 20
	maxContactPlans          = 10
	qualificationScoreFloor  = 0.5
	qualificationBudgetBasis = 10_000_000.0
)

// trackedContact is the workflow's private record of one initial-contact
// attempt, carrying both the public ContactRecord fields and the
// follow-up/conversion patch fields applied by UpdateContactResult.
type trackedContact struct {
	Record     types.ContactRecord
	Status     string
	Notes      string
	NextAction string
	FollowUpAt *time.Time
	UpdatedAt  time.Time
}

type contactPlan struct {
	Profile  types.CustomerProfile
	Strategy types.ContactStrategy
	Visit    types.VisitPlan
}

type taskEntry struct {
	mu   sync.Mutex
	task *types.DiscoveryTask
}

// Engine drives DiscoveryTask instances. Tasks are independent and may
// run concurrently; stage execution within a single task is serial,
// enforced by the per-task entry mutex.
type Engine struct {
	mu         sync.RWMutex
	tasks      map[string]*taskEntry
	salesAgent agent.Agent
	rag        *rag.Engine
	customers  customerstore.Store
	collection string
	seq        uint64
}

// New builds a discovery engine. ragEngine and customers may be nil —
// the research stage degrades to an empty industryInsights string and
// executeInitialContact skips persistence, matching the "never throws"
// degradation pattern used throughout the RAG engine and router.
func New(salesAgent agent.Agent, ragEngine *rag.Engine, customers customerstore.Store, knowledgeCollection string) *Engine {
	return &Engine{
		tasks:      make(map[string]*taskEntry),
		salesAgent: salesAgent,
		rag:        ragEngine,
		customers:  customers,
		collection: knowledgeCollection,
	}
}

func (e *Engine) nextTaskID() string {
	n := atomic.AddUint64(&e.seq, 1)
	return fmt.Sprintf("discovery_%s_%d", time.Now().UTC().Format("20060102_150405"), n)
}

// Start creates a DiscoveryTask and synchronously advances it through
// research, qualification and contactPlanning, returning the task's id.
func (e *Engine) Start(ctx context.Context, targetCriteria map[string]interface{}, goals []string, timelineDays int) (string, error) {
	now := time.Now()
	taskID := e.nextTaskID()
	task := &types.DiscoveryTask{
		TaskID:          taskID,
		Stage:           types.StageResearch,
		Priority:        "high",
		Title:           fmt.Sprintf("Customer discovery task - %s", stringField(targetCriteria, "industry", "general")),
		Description:     "Goals: " + strings.Join(goals, ", "),
		AssignedAgentID: agentID(e.salesAgent),
		DueAt:           now.Add(time.Duration(timelineDays) * 24 * time.Hour),
		Status:          types.TaskStatusActive,
		Progress:        0,
		Results:         make(map[string]interface{}),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	entry := &taskEntry{task: task}
	e.mu.Lock()
	e.tasks[taskID] = entry
	e.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	e.runResearch(ctx, entry, targetCriteria)
	if err := e.runQualification(ctx, entry); err != nil {
		return taskID, err
	}
	if err := e.runContactPlanning(ctx, entry); err != nil {
		return taskID, err
	}
	return taskID, nil
}

func agentID(a agent.Agent) string {
	if a == nil {
		return ""
	}
	return a.ID()
}

// runResearch never fails: it consults the RAG engine for industry
// insight (degrading to an empty string per the RAG engine's own
// failure model) and generates a deterministic potential-customer list,
// mirroring _generate_potential_customer_list's mock-data fallback.
func (e *Engine) runResearch(ctx context.Context, entry *taskEntry, targetCriteria map[string]interface{}) {
	task := entry.task
	industry := stringField(targetCriteria, "industry", "manufacturing")
	size := stringField(targetCriteria, "company_size", "mid-market")
	location := stringField(targetCriteria, "location", "")

	var insight string
	if e.rag != nil && e.collection != "" {
		answer := e.rag.Query(ctx, fmt.Sprintf("Customer characteristics and pain points in the %s industry", industry), types.ModeHybrid, e.collection)
		insight = answer.Answer
	}

	potentialCustomers := generatePotentialCustomers(industry, size, location)

	task.Results["potentialCustomers"] = potentialCustomers
	task.Results["industryInsights"] = insight
	task.Results["researchCompletedAt"] = time.Now()
	task.Progress = 0.2
	task.Stage = types.StageQualification
	task.UpdatedAt = time.Now()
}

// runQualification keeps the potential customers whose derived score
// clears qualificationScoreFloor, in descending score order, invoking
// the sales agent's customer_analysis task type once per kept customer.
func (e *Engine) runQualification(ctx context.Context, entry *taskEntry) error {
	task := entry.task
	raw, ok := task.Results["potentialCustomers"].([]potentialCustomer)
	if !ok {
		return ErrPreconditionNotMet
	}

	type scored struct {
		profile types.CustomerProfile
		score   float64
	}
	var qualified []scored

	for _, pc := range raw {
		score := qualifyScore(pc)
		if score < qualificationScoreFloor {
			continue
		}
		profile := e.buildCustomerProfile(ctx, pc, score)
		qualified = append(qualified, scored{profile: profile, score: score})
	}

	sort.SliceStable(qualified, func(i, j int) bool { return qualified[i].score > qualified[j].score })

	profiles := make([]types.CustomerProfile, 0, len(qualified))
	for _, q := range qualified {
		profiles = append(profiles, q.profile)
	}

	task.Results["qualifiedCustomers"] = profiles
	if task.Progress < 0.4 {
		task.Progress = 0.4
	}
	task.Stage = types.StageContactPlanning
	task.UpdatedAt = time.Now()
	return nil
}

// buildCustomerProfile enriches a potential customer via the sales
// agent when one is configured, degrading to the raw fields otherwise.
func (e *Engine) buildCustomerProfile(ctx context.Context, pc potentialCustomer, score float64) types.CustomerProfile {
	profile := types.CustomerProfile{
		ID:         pc.CompanyName,
		Name:       pc.CompanyName,
		Industry:   pc.Industry,
		Size:       pc.Size,
		Score:      score,
		PainPoints: pc.PainPoints,
		Budget:     budgetRangeFor(pc.AnnualRevenue),
	}
	if e.salesAgent == nil {
		return profile
	}

	message := types.AgentMessage{
		Content: fmt.Sprintf("Analyze customer profile for %s, a %s company in the %s industry with annual revenue around %.0f.",
			pc.CompanyName, pc.Size, pc.Industry, pc.AnnualRevenue),
	}
	result, err := e.salesAgent.Execute(ctx, message, types.Analysis{TaskType: "customer_analysis"})
	if err != nil || !result.Success {
		return profile
	}
	if answer, ok := result.Data["answer"].(string); ok && answer != "" {
		profile.Metadata = map[string]interface{}{"analysis": answer}
	}
	return profile
}

// runContactPlanning derives a ContactStrategy and VisitPlan for the
// first maxContactPlans qualified customers via the sales agent,
// falling back to deterministic defaults when generation fails or
// produces unparseable output (mirrors the except-branch defaults in
// _generate_contact_strategy / _generate_visit_plan).
func (e *Engine) runContactPlanning(ctx context.Context, entry *taskEntry) error {
	task := entry.task
	profiles, ok := task.Results["qualifiedCustomers"].([]types.CustomerProfile)
	if !ok {
		return ErrPreconditionNotMet
	}

	n := len(profiles)
	if n > maxContactPlans {
		n = maxContactPlans
	}

	plans := make([]contactPlan, 0, n)
	for _, profile := range profiles[:n] {
		strategy := e.generateContactStrategy(ctx, profile)
		visit := e.generateVisitPlan(ctx, profile, strategy)
		plans = append(plans, contactPlan{Profile: profile, Strategy: strategy, Visit: visit})
	}

	task.Results["contactPlans"] = plans
	if task.Progress < 0.6 {
		task.Progress = 0.6
	}
	task.Stage = types.StageInitialContact
	task.UpdatedAt = time.Now()
	return nil
}

func (e *Engine) generateContactStrategy(ctx context.Context, profile types.CustomerProfile) types.ContactStrategy {
	fallback := defaultContactStrategy(profile)
	if e.salesAgent == nil {
		return fallback
	}
	prompt := fmt.Sprintf(
		"Propose a contact strategy for %s (%s industry) as strict JSON with keys "+
			"primaryMethod, backupMethod, messagingThemes (array), valueProposition, callToAction, preferredTiming, personalization.",
		profile.Name, profile.Industry)
	result, err := e.salesAgent.Execute(ctx, types.AgentMessage{Content: prompt}, types.Analysis{TaskType: "general"})
	if err != nil || !result.Success {
		return fallback
	}
	answer, _ := result.Data["answer"].(string)
	var decoded struct {
		PrimaryMethod     string   `json:"primaryMethod"`
		BackupMethod      string   `json:"backupMethod"`
		MessagingThemes   []string `json:"messagingThemes"`
		ValueProposition  string   `json:"valueProposition"`
		CallToAction      string   `json:"callToAction"`
		PreferredTiming   string   `json:"preferredTiming"`
		Personalization   string   `json:"personalization"`
	}
	if !decodeJSONObject(answer, &decoded) {
		return fallback
	}
	strategy := fallback
	if decoded.PrimaryMethod != "" {
		strategy.PrimaryMethod = types.ContactMethod(decoded.PrimaryMethod)
	}
	if decoded.BackupMethod != "" {
		strategy.BackupMethod = types.ContactMethod(decoded.BackupMethod)
	}
	if len(decoded.MessagingThemes) > 0 {
		strategy.MessagingThemes = decoded.MessagingThemes
	}
	if decoded.ValueProposition != "" {
		strategy.ValueProposition = decoded.ValueProposition
	}
	if decoded.CallToAction != "" {
		strategy.CallToAction = decoded.CallToAction
	}
	if decoded.PreferredTiming != "" {
		strategy.PreferredTiming = decoded.PreferredTiming
	}
	if decoded.Personalization != "" {
		strategy.Personalization = decoded.Personalization
	}
	return strategy
}

func defaultContactStrategy(profile types.CustomerProfile) types.ContactStrategy {
	return types.ContactStrategy{
		CustomerID:       profile.ID,
		PrimaryMethod:    types.ContactEmail,
		BackupMethod:     types.ContactPhone,
		MessagingThemes:  []string{"Our CRM solution improves sales efficiency"},
		ValueProposition: "30% improvement in conversion rate",
		CallToAction:     "Schedule a 15-minute product walkthrough",
		PreferredTiming:  "Weekday mornings, 9-11am",
		Personalization:  fmt.Sprintf("Tailored for the %s industry", profile.Industry),
	}
}

func (e *Engine) generateVisitPlan(ctx context.Context, profile types.CustomerProfile, strategy types.ContactStrategy) types.VisitPlan {
	fallback := defaultVisitPlan(profile)
	if e.salesAgent == nil {
		return fallback
	}
	prompt := fmt.Sprintf(
		"Draft a visit plan for %s using the contact strategy \"%s\" as strict JSON with keys "+
			"objectives, agenda, preparation, materials, keyQuestions, successCriteria, followUpActions (all arrays of strings).",
		profile.Name, strategy.ValueProposition)
	result, err := e.salesAgent.Execute(ctx, types.AgentMessage{Content: prompt}, types.Analysis{TaskType: "general"})
	if err != nil || !result.Success {
		return fallback
	}
	answer, _ := result.Data["answer"].(string)
	var decoded struct {
		Objectives      []string `json:"objectives"`
		Agenda          []string `json:"agenda"`
		Preparation     []string `json:"preparation"`
		Materials       []string `json:"materials"`
		KeyQuestions    []string `json:"keyQuestions"`
		SuccessCriteria []string `json:"successCriteria"`
		FollowUpActions []string `json:"followUpActions"`
	}
	if !decodeJSONObject(answer, &decoded) {
		return fallback
	}
	plan := fallback
	if len(decoded.Objectives) > 0 {
		plan.Objectives = decoded.Objectives
	}
	if len(decoded.Agenda) > 0 {
		plan.Agenda = decoded.Agenda
	}
	if len(decoded.Preparation) > 0 {
		plan.Preparation = decoded.Preparation
	}
	if len(decoded.Materials) > 0 {
		plan.Materials = decoded.Materials
	}
	if len(decoded.KeyQuestions) > 0 {
		plan.KeyQuestions = decoded.KeyQuestions
	}
	if len(decoded.SuccessCriteria) > 0 {
		plan.SuccessCriteria = decoded.SuccessCriteria
	}
	if len(decoded.FollowUpActions) > 0 {
		plan.FollowUpActions = decoded.FollowUpActions
	}
	return plan
}

func defaultVisitPlan(profile types.CustomerProfile) types.VisitPlan {
	return types.VisitPlan{
		CustomerID:      profile.ID,
		Objectives:      []string{"Understand customer needs", "Demonstrate product value", "Build trust", "Agree next steps"},
		Agenda:          []string{"0-5min: intro", "5-15min: discovery", "15-35min: demo", "35-50min: solution discussion", "50-60min: wrap-up"},
		Preparation:     []string{"Research company background", "Prepare demo materials", "Prepare case studies", "Prepare pricing", "Confirm meeting logistics"},
		Materials:       []string{"Product deck", "Case study handout", "Product brochure", "Pricing sheet", "Business cards"},
		KeyQuestions:    []string{"What CRM do you use today?", "What are your main challenges?", "What's the decision process?", "What's the budget range?", "What's the target timeline?"},
		SuccessCriteria: []string{"Clear interest expressed", "Decision-maker identified", "Requirements confirmed", "Next meeting scheduled"},
		FollowUpActions: []string{"Send thank-you email within 24h", "Share detailed materials", "Prepare a tailored proposal", "Schedule a technical demo"},
	}
}

// ExecuteInitialContact executes the Nth contact plan through the sales
// agent and appends one contactRecord to the task's results, persisting
// a customer record on success.
func (e *Engine) ExecuteInitialContact(ctx context.Context, taskID string, planIndex int) (types.ContactRecord, error) {
	entry, ok := e.entry(taskID)
	if !ok {
		return types.ContactRecord{}, ErrTaskNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	task := entry.task
	plans, ok := task.Results["contactPlans"].([]contactPlan)
	if !ok {
		return types.ContactRecord{}, ErrPreconditionNotMet
	}
	if planIndex < 0 || planIndex >= len(plans) {
		return types.ContactRecord{}, ErrPlanIndexOutOfRange
	}
	plan := plans[planIndex]

	prompt := fmt.Sprintf("Make initial contact with %s via %s. Value proposition: %s. Call to action: %s.",
		plan.Profile.Name, plan.Strategy.PrimaryMethod, plan.Strategy.ValueProposition, plan.Strategy.CallToAction)

	var success bool
	outcome := "No sales agent configured; contact not attempted."
	if e.salesAgent != nil {
		result, err := e.salesAgent.Execute(ctx, types.AgentMessage{Content: prompt}, types.Analysis{TaskType: "general"})
		success = err == nil && result.Success
		if answer, ok := result.Data["answer"].(string); ok && answer != "" {
			outcome = answer
		} else if !success {
			outcome = "Initial contact could not be completed."
		}
	}

	record := types.ContactRecord{
		CustomerID: plan.Profile.ID,
		PlanIndex:  planIndex,
		Success:    success,
		Outcome:    outcome,
		CreatedAt:  time.Now(),
	}

	tracked, _ := task.Results["contactRecords"].([]*trackedContact)
	tracked = append(tracked, &trackedContact{Record: record, UpdatedAt: time.Now()})
	task.Results["contactRecords"] = tracked
	if task.Stage == types.StageContactPlanning || task.Stage == types.StageInitialContact {
		task.Stage = types.StageInitialContact
	}
	task.UpdatedAt = time.Now()

	if success && e.customers != nil {
		if _, err := e.customers.CreateFromDiscovery(ctx, plan.Profile, record); err != nil {
			logger.GetLogger(ctx).Warnf("discovery: failed to persist customer record for %s: %v", plan.Profile.ID, err)
		}
	}

	return record, nil
}

// UpdateContactResult applies a follow-up/conversion patch to the idx'th
// contact record.
func (e *Engine) UpdateContactResult(ctx context.Context, taskID string, idx int, patch types.ContactResultPatch) error {
	entry, ok := e.entry(taskID)
	if !ok {
		return ErrTaskNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	task := entry.task
	tracked, ok := task.Results["contactRecords"].([]*trackedContact)
	if !ok {
		return ErrPreconditionNotMet
	}
	if idx < 0 || idx >= len(tracked) {
		return ErrRecordIndexOutOfRange
	}

	rec := tracked[idx]
	if patch.Status != "" {
		rec.Status = patch.Status
		switch patch.Status {
		case "follow_up":
			task.Stage = types.StageFollowUp
		case "converted":
			task.Stage = types.StageConversion
		}
	}
	if patch.Notes != "" {
		rec.Notes = patch.Notes
	}
	if patch.NextAction != "" {
		rec.NextAction = patch.NextAction
	}
	if patch.FollowUpAt != nil {
		rec.FollowUpAt = patch.FollowUpAt
	}
	rec.UpdatedAt = time.Now()
	task.UpdatedAt = time.Now()
	return nil
}

// CompleteTask marks a task completed with progress 1.0.
func (e *Engine) CompleteTask(ctx context.Context, taskID string) error {
	entry, ok := e.entry(taskID)
	if !ok {
		return ErrTaskNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.task.Status = types.TaskStatusCompleted
	entry.task.Progress = 1.0
	entry.task.UpdatedAt = time.Now()
	return nil
}

// GetTask returns a snapshot of the task's public fields.
func (e *Engine) GetTask(taskID string) (*types.DiscoveryTask, error) {
	entry, ok := e.entry(taskID)
	if !ok {
		return nil, ErrTaskNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	cp := *entry.task
	return &cp, nil
}

func (e *Engine) entry(taskID string) (*taskEntry, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	entry, ok := e.tasks[taskID]
	return entry, ok
}

func decodeJSONObject(text string, out interface{}) bool {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return false
	}
	return json.Unmarshal([]byte(text[start:end+1]), out) == nil
}

func stringField(m map[string]interface{}, key, def string) string {
	if m == nil {
		return def
	}
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return def
}

func budgetRangeFor(annualRevenue float64) string {
	switch {
	case annualRevenue >= 10_000_000:
		return "enterprise"
	case annualRevenue >= 3_000_000:
		return "mid-market"
	default:
		return "smb"
	}
}
