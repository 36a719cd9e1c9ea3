package types

import "time"

// Role is the speaker of a ChatMessage.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a single function invocation emitted by a model.
type ToolCall struct {
	ID     string
	Name   string
	Args   string // raw JSON arguments as emitted by the model
	Result string // raw JSON result, set after execution
	Error  string // set instead of Result on handler failure
}

// ChatMessage is one turn in a conversation (§3).
type ChatMessage struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ConversationContext is the router-owned conversation state (§3).
// Invariant: TokenCount <= MaxContextTokens after any mutation.
type ConversationContext struct {
	ConversationID  string
	UserID          string
	Messages        []ChatMessage
	Metadata        map[string]interface{}
	CreatedAt       time.Time
	UpdatedAt       time.Time
	TokenCount      int
	MaxContextTokens int
}

// ModelDescriptor describes one model known to the router (§3).
type ModelDescriptor struct {
	Name                string
	MaxGenTokens        int
	ContextWindowTokens int
	SupportsTools       bool
	SupportsChinese     bool
	ChineseOptimized    bool
	CostPer1kTokens     float64
	Priority            int // lower = preferred in the fallback cascade
	EndpointID          string
}

// Endpoint is one OpenAI-compatible backend the router can dispatch to.
type Endpoint struct {
	ID         string
	BaseURL    string
	APIKey     string
	ModelPrefix string
}

// FallbackStrategy selects the router's degrade-on-error behavior (§4.7).
type FallbackStrategy string

const (
	FallbackNone           FallbackStrategy = "none"
	FallbackNextModel      FallbackStrategy = "next_model"
	FallbackSimpleResponse FallbackStrategy = "simple_response"
	FallbackCachedResponse FallbackStrategy = "cached_response"
)

// Usage carries token accounting reported by the backend, when available.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatResponse is the router's chatCompletion/toolCall result.
type ChatResponse struct {
	Content         string
	ToolCalls       []ToolCall
	Usage           Usage
	Model           string
	FallbackUsed    bool
	OriginalModel   string
	FallbackModel   string
	FallbackType    string
}

// StreamDelta is one incremental chunk from chatCompletionStream.
type StreamDelta struct {
	Content string
	Done    bool
	Err     error
}
