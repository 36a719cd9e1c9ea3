package specialized

import (
	"context"

	"github.com/corlin/hicrm-core/internal/agent"
	"github.com/corlin/hicrm-core/internal/rag"
	"github.com/corlin/hicrm-core/internal/router"
	"github.com/corlin/hicrm-core/internal/tools"
	"github.com/corlin/hicrm-core/internal/types"
)

// ManagementStrategyAgent provides management-facing analysis: business
// analysis, trend forecasting, strategy planning, decision support and
// external-data-informed answers, grounded on
// original_source/src/agents/professional/management_strategy_agent.py's
// five AgentCapability entries (business_analysis, trend_forecasting,
// strategy_planning, decision_support, external_data_access).
type ManagementStrategyAgent struct {
	base
}

var managementTaskRules = []taskTypeRule{
	{taskType: "business_analysis", keywords: []string{"business analysis", "performance review", "kpi"}},
	{taskType: "trend_forecasting", keywords: []string{"forecast", "trend", "projection"}},
	{taskType: "strategy_planning", keywords: []string{"strategy", "strategic plan", "roadmap"}},
	{taskType: "decision_support", keywords: []string{"should we", "decision", "trade-off", "tradeoff"}},
	{taskType: "external_data_access", keywords: []string{"market data", "industry report", "competitor"}},
}

// NewManagementStrategyAgent builds the management-strategy agent.
func NewManagementStrategyAgent(id string, r *router.Router, ragEngine *rag.Engine, registry *tools.Registry, strategyCollection string) *ManagementStrategyAgent {
	return &ManagementStrategyAgent{base: base{
		id: id,
		capabilities: []types.AgentCapability{
			{Name: "business_analysis", Description: "Analyzes business performance against stated goals and metrics."},
			{Name: "trend_forecasting", Description: "Projects near-term trends from available signals."},
			{Name: "strategy_planning", Description: "Drafts a strategic plan or roadmap for a stated objective."},
			{Name: "decision_support", Description: "Weighs trade-offs for a pending management decision."},
			{Name: "external_data_access", Description: "Grounds an answer in configured market/industry knowledge."},
		},
		collections: map[string]string{
			"business_analysis":    strategyCollection,
			"trend_forecasting":    strategyCollection,
			"external_data_access": strategyCollection,
		},
		router: r,
		rag:    ragEngine,
		tools:  registry,
	}}
}

func (a *ManagementStrategyAgent) Analyze(ctx context.Context, message types.AgentMessage) (types.Analysis, error) {
	taskType := classify(message.Content, managementTaskRules)
	// Strategy planning benefits from the sales agent's ground-truth
	// pipeline data when one is configured as a peer.
	needsCollab := taskType == "strategy_planning"
	analysis := types.Analysis{TaskType: taskType}
	if needsCollab {
		analysis.NeedsCollaboration = true
		analysis.RequiredAgents = []string{"sales_agent"}
		analysis.CollaborationType = types.CollaborationSequential
	}
	return analysis, nil
}

func (a *ManagementStrategyAgent) Execute(ctx context.Context, message types.AgentMessage, analysis types.Analysis) (types.TaskResult, error) {
	switch analysis.TaskType {
	case "business_analysis", "external_data_access":
		key := analysis.TaskType
		answer := a.queryRAG(ctx, key, message.Content)
		return types.TaskResult{
			Success:      answer.Answer != "",
			ResponseType: analysis.TaskType,
			Data:         map[string]interface{}{"answer": answer.Answer, "confidence": answer.Confidence},
			FallbackResponse: "No grounded data is available for this request.",
		}, nil

	case "trend_forecasting":
		answer := a.queryRAG(ctx, "trend_forecasting", message.Content)
		content := answer.Answer
		if content == "" {
			generated, err := a.generate(ctx, managementForecastPrompt, message.Content)
			if err != nil {
				return types.TaskResult{Success: false, Err: err, FallbackResponse: "Unable to produce a forecast right now."}, nil
			}
			content = generated
		}
		return types.TaskResult{Success: true, ResponseType: "trend_forecasting", Data: map[string]interface{}{"answer": content}}, nil

	case "strategy_planning":
		content, err := a.generate(ctx, managementStrategyPrompt, message.Content)
		if err != nil {
			return types.TaskResult{Success: false, Err: err, FallbackResponse: "Unable to draft a strategy right now."}, nil
		}
		return types.TaskResult{Success: true, ResponseType: "strategy_planning", Data: map[string]interface{}{"answer": content}}, nil

	case "decision_support":
		content, err := a.generate(ctx, managementDecisionPrompt, message.Content)
		if err != nil {
			return types.TaskResult{Success: false, Err: err, FallbackResponse: "Unable to provide decision support right now."}, nil
		}
		return types.TaskResult{Success: true, ResponseType: "decision_support", Data: map[string]interface{}{"answer": content}}, nil

	default:
		content, err := a.generate(ctx, managementGeneralPrompt, message.Content)
		if err != nil {
			return types.TaskResult{Success: false, Err: err, FallbackResponse: "Unable to answer this management question right now."}, nil
		}
		return types.TaskResult{Success: true, ResponseType: "general", Data: map[string]interface{}{"answer": content}}, nil
	}
}

func (a *ManagementStrategyAgent) Respond(ctx context.Context, result types.TaskResult, collab *agent.CollaborationResult) (types.AgentResponse, error) {
	if !result.Success {
		return types.AgentResponse{Content: result.FallbackResponse, Confidence: 0.1}, nil
	}
	content, _ := result.Data["answer"].(string)
	if content == "" {
		content = "No answer could be produced for this request."
	}
	if collab != nil {
		content = appendCollaborationNote(content, collab)
	}
	return types.AgentResponse{
		Content:     content,
		Confidence:  confidenceFor(result),
		Suggestions: suggestionsFor(result, content),
		NextActions: nextActionsFor(result, content),
	}, nil
}

const managementForecastPrompt = "You are a management strategy assistant. Project near-term trends from the signals the user describes, noting key assumptions." + sectionInstruction
const managementStrategyPrompt = "You are a management strategy assistant. Draft a concise strategic plan for the objective the user describes." + sectionInstruction
const managementDecisionPrompt = "You are a management strategy assistant. Weigh the trade-offs of the decision the user describes and recommend a course of action." + sectionInstruction
const managementGeneralPrompt = "You are a management strategy assistant. Answer the user's question directly and concisely." + sectionInstruction
