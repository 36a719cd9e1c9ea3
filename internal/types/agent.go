package types

import "time"

// AgentCapability is a declarative description of a task an agent
// advertises it can handle (§3). Advisory only — the runtime does not
// self-enforce it.
type AgentCapability struct {
	Name        string
	Description string
	ParamsSchema []byte // JSON schema
}

// AgentMessage is the request envelope passed between agents via the
// communicator (§3, §4.10).
type AgentMessage struct {
	Type     string
	SenderID string
	Content  string
	Metadata map[string]interface{}
}

// AgentResponse is the response envelope an agent returns, either to the
// caller or to a peer that dispatched to it (§3).
type AgentResponse struct {
	Content     string
	Confidence  float64
	Suggestions []string
	NextActions []string
	Metadata    map[string]interface{}
}

// CollaborationType selects how a base agent dispatches to peers (§4.10).
type CollaborationType string

const (
	CollaborationSequential CollaborationType = "sequential"
	CollaborationParallel   CollaborationType = "parallel"
)

// Analysis is the deterministic classification of an incoming message,
// produced by Agent.Analyze (§4.10).
type Analysis struct {
	TaskType          string
	NeedsCollaboration bool
	RequiredAgents    []string
	CollaborationType CollaborationType
	ExtractedContext  map[string]interface{}
}

// TaskResult is what Agent.Execute returns (§4.10). Errors caught at the
// runtime boundary are converted into TaskResult{Success:false,
// FallbackResponse} rather than propagated.
type TaskResult struct {
	Success          bool
	ResponseType     string
	Data             map[string]interface{}
	Err              error
	FallbackResponse string
}

// DiscoveryStage is one of the six stages a DiscoveryTask advances
// through (§3, §4.12).
type DiscoveryStage string

const (
	StageResearch         DiscoveryStage = "research"
	StageQualification    DiscoveryStage = "qualification"
	StageContactPlanning  DiscoveryStage = "contact_planning"
	StageInitialContact   DiscoveryStage = "initial_contact"
	StageFollowUp         DiscoveryStage = "follow_up"
	StageConversion       DiscoveryStage = "conversion"
)

// DiscoveryTaskStatus is the lifecycle status of a DiscoveryTask.
type DiscoveryTaskStatus string

const (
	TaskStatusActive    DiscoveryTaskStatus = "active"
	TaskStatusCompleted DiscoveryTaskStatus = "completed"
	TaskStatusFailed    DiscoveryTaskStatus = "failed"
)

// DiscoveryTask is the long-running staged task driven by the discovery
// workflow (§3, §4.12). Invariant: Progress is monotonically
// non-decreasing.
type DiscoveryTask struct {
	TaskID          string
	Stage           DiscoveryStage
	Priority        string
	Title           string
	Description     string
	AssignedAgentID string
	DueAt           time.Time
	Status          DiscoveryTaskStatus
	Progress        float64
	Results         map[string]interface{}
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ContactMethod is one channel a ContactStrategy can use.
type ContactMethod string

const (
	ContactEmail    ContactMethod = "email"
	ContactPhone    ContactMethod = "phone"
	ContactInPerson ContactMethod = "in_person"
	ContactSocial   ContactMethod = "social"
)

// CustomerProfile is a qualified prospect produced by the qualification
// stage (§4.12).
type CustomerProfile struct {
	ID             string
	Name           string
	Industry       string
	Size           string
	Score          float64
	PainPoints     []string
	Budget         string
	DecisionMakers []string
	Metadata       map[string]interface{}
}

// ContactStrategy is derived for each qualified customer in the
// contactPlanning stage (§4.12).
type ContactStrategy struct {
	CustomerID        string
	PrimaryMethod     ContactMethod
	BackupMethod      ContactMethod
	MessagingThemes   []string
	ValueProposition  string
	CallToAction      string
	PreferredTiming   string
	Personalization   string
}

// VisitPlan is derived alongside each ContactStrategy (§4.12).
type VisitPlan struct {
	CustomerID         string
	Objectives         []string
	Agenda             []string
	Preparation        []string
	Materials          []string
	KeyQuestions       []string
	SuccessCriteria    []string
	FollowUpActions    []string
}

// ContactResultPatch is the explicit patch schema for
// updateContactResult (Open Question decision in DESIGN.md: an
// arbitrary-map patch is unsafe, so the field set is fixed).
type ContactResultPatch struct {
	Status     string
	Notes      string
	NextAction string
	FollowUpAt *time.Time
}

// ContactRecord is appended to a DiscoveryTask's results on each
// executeInitialContact call.
type ContactRecord struct {
	CustomerID string
	PlanIndex  int
	Success    bool
	Outcome    string
	CreatedAt  time.Time
}
