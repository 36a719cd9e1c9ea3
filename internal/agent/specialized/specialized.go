// Package specialized ships the three concrete agents spec §4.11
// requires: a sales-support agent, a management-strategy agent and a
// CRM-best-practices agent. All three share the §4.10 shape and differ
// only in task-type classifier, RAG collections, tool set and response
// formatting, grounded on original_source's
// src/agents/professional/{sales_agent,management_strategy_agent,
// crm_expert_agent}.py (capability lists narrowed to the ~5 each names
// there).
package specialized

import (
	"context"
	"regexp"
	"strings"

	"github.com/corlin/hicrm-core/internal/agent"
	"github.com/corlin/hicrm-core/internal/common"
	"github.com/corlin/hicrm-core/internal/rag"
	"github.com/corlin/hicrm-core/internal/router"
	"github.com/corlin/hicrm-core/internal/tools"
	"github.com/corlin/hicrm-core/internal/types"
)

// base holds the dependencies every concrete agent shares: a reference
// to the model router and RAG engine (non-owning, per spec §3's
// ownership summary) and an optional reference to the shared tool
// registry.
type base struct {
	id           string
	capabilities []types.AgentCapability
	collections  map[string]string // logical name -> RAG collection
	router       *router.Router
	rag          *rag.Engine
	tools        *tools.Registry
}

func (b *base) ID() string                           { return b.id }
func (b *base) Capabilities() []types.AgentCapability { return b.capabilities }

var customerIDPattern = regexp.MustCompile(`\bcustomer[_ -]?id[:=]?\s*([a-zA-Z0-9_-]+)`)

func extractCustomerID(content string) string {
	m := customerIDPattern.FindStringSubmatch(strings.ToLower(content))
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// classify picks the first matching task type whose keyword set appears
// in content, falling back to "general" — the same linear keyword-match
// shape as SalesAgent.analyze_task.
func classify(content string, rules []taskTypeRule) string {
	lower := strings.ToLower(content)
	for _, rule := range rules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.taskType
			}
		}
	}
	return "general"
}

type taskTypeRule struct {
	taskType string
	keywords []string
}

// queryRAG runs a grounded retrieval-augmented query against one of the
// agent's configured collections. When no collection is configured for
// key, or the agent has no RAG engine, it returns an empty RAGAnswer
// instead of failing; callers decide whether to fall back to generate
// (matching the RAG engine's own "never throws" failure model).
func (b *base) queryRAG(ctx context.Context, key, question string) types.RAGAnswer {
	collection, ok := b.collections[key]
	if !ok || b.rag == nil {
		return types.RAGAnswer{Answer: "", Confidence: 0}
	}
	return b.rag.Query(ctx, question, types.ModeHybrid, collection)
}

// generate issues a direct (non-RAG) completion through the router, for
// task types that need the model's general knowledge rather than a
// grounded lookup (e.g. talking-point phrasing).
func (b *base) generate(ctx context.Context, systemPrompt, userContent string) (string, error) {
	if b.router == nil {
		return "", types.NewError(types.KindInternal, "agent has no router configured", nil)
	}
	resp, err := b.router.Generate(ctx, []types.ChatMessage{
		{Role: types.RoleSystem, Content: systemPrompt},
		{Role: types.RoleUser, Content: userContent},
	}, 0.4, 512)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func confidenceFor(result types.TaskResult) float64 {
	if !result.Success {
		return 0.2
	}
	if c, ok := result.Data["confidence"].(float64); ok {
		return c
	}
	return 0.75
}

// suggestionsFor prefers a Data["suggestions"] list when the TaskResult
// carries one (none of the agents in this package sets it; the CRM
// operation result carries only "answer" and "raw") and otherwise falls
// back to
// pulling a "Suggestions" section out of the generated answer text via
// common.ExtractListItems — the consolidated extractor that replaces
// what each professional agent reimplemented separately in
// original_source (see DESIGN.md "Extractor consolidation").
func suggestionsFor(result types.TaskResult, content string) []string {
	if s, ok := result.Data["suggestions"].([]string); ok {
		return s
	}
	return common.ExtractListItems(content, "Suggestions")
}

// nextActionsFor mirrors suggestionsFor for the "Next steps" section.
func nextActionsFor(result types.TaskResult, content string) []string {
	if n, ok := result.Data["nextActions"].([]string); ok {
		return n
	}
	return common.ExtractListItems(content, "Next steps")
}

var _ agent.Agent = (*SalesAgent)(nil)
var _ agent.Agent = (*ManagementStrategyAgent)(nil)
var _ agent.Agent = (*CRMExpertAgent)(nil)
