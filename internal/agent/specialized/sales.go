package specialized

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/corlin/hicrm-core/internal/agent"
	"github.com/corlin/hicrm-core/internal/rag"
	"github.com/corlin/hicrm-core/internal/router"
	"github.com/corlin/hicrm-core/internal/tools"
	"github.com/corlin/hicrm-core/internal/types"
)

// SalesAgent provides sales-process support: customer analysis, talking
// point generation, opportunity assessment, next-action recommendation
// and CRM operations, grounded on
// original_source/src/agents/professional/sales_agent.py's five
// AgentCapability entries (customer_analysis, generate_talking_points,
// assess_opportunity, recommend_next_action, crm_operations).
type SalesAgent struct {
	base
}

var salesTaskRules = []taskTypeRule{
	{taskType: "customer_analysis", keywords: []string{"analyze customer", "customer profile", "customer analysis"}},
	{taskType: "talking_points", keywords: []string{"talking point", "sales script", "what should i say"}},
	{taskType: "opportunity_assessment", keywords: []string{"opportunity", "deal probability", "close rate"}},
	{taskType: "action_recommendation", keywords: []string{"next step", "what should i do", "recommend"}},
	{taskType: "crm_operation", keywords: []string{"create lead", "update opportunity", "crm operation"}},
}

// NewSalesAgent builds the sales-support agent. ragEngine and r may be
// nil in tests; salesCollection names the RAG collection consulted for
// knowledge-grounded task types.
func NewSalesAgent(id string, r *router.Router, ragEngine *rag.Engine, registry *tools.Registry, salesCollection string) *SalesAgent {
	return &SalesAgent{base: base{
		id: id,
		capabilities: []types.AgentCapability{
			{Name: "customer_analysis", Description: "Builds a customer profile and sales strategy from available context."},
			{Name: "generate_talking_points", Description: "Generates personalized sales talking points for a given stage."},
			{Name: "assess_opportunity", Description: "Estimates an opportunity's close probability and risk factors."},
			{Name: "recommend_next_action", Description: "Recommends the next sales action given the current situation."},
			{Name: "crm_operations", Description: "Executes a CRM operation such as creating a lead or updating an opportunity."},
		},
		collections: map[string]string{
			"customer_analysis":      salesCollection,
			"talking_points":         salesCollection,
			"opportunity_assessment": salesCollection,
		},
		router: r,
		rag:    ragEngine,
		tools:  registry,
	}}
}

func (a *SalesAgent) Analyze(ctx context.Context, message types.AgentMessage) (types.Analysis, error) {
	taskType := classify(message.Content, salesTaskRules)
	extracted := map[string]interface{}{}
	if cid := extractCustomerID(message.Content); cid != "" {
		extracted["customerId"] = cid
	}
	return types.Analysis{TaskType: taskType, ExtractedContext: extracted}, nil
}

func (a *SalesAgent) Execute(ctx context.Context, message types.AgentMessage, analysis types.Analysis) (types.TaskResult, error) {
	switch analysis.TaskType {
	case "customer_analysis":
		answer := a.queryRAG(ctx, "customer_analysis", message.Content)
		return types.TaskResult{
			Success:      answer.Answer != "",
			ResponseType: "customer_analysis",
			Data:         map[string]interface{}{"answer": answer.Answer, "confidence": answer.Confidence},
			FallbackResponse: "No customer analysis data is available for this request.",
		}, nil

	case "talking_points":
		content, err := a.generate(ctx, salesTalkingPointsPrompt, message.Content)
		if err != nil {
			return types.TaskResult{Success: false, Err: err, FallbackResponse: "Unable to generate talking points right now."}, nil
		}
		return types.TaskResult{Success: true, ResponseType: "talking_points", Data: map[string]interface{}{"answer": content}}, nil

	case "opportunity_assessment":
		answer := a.queryRAG(ctx, "opportunity_assessment", message.Content)
		return types.TaskResult{
			Success:      answer.Answer != "",
			ResponseType: "opportunity_assessment",
			Data:         map[string]interface{}{"answer": answer.Answer, "confidence": answer.Confidence},
			FallbackResponse: "No opportunity data is available for this request.",
		}, nil

	case "action_recommendation":
		content, err := a.generate(ctx, salesNextActionPrompt, message.Content)
		if err != nil {
			return types.TaskResult{Success: false, Err: err, FallbackResponse: "Unable to recommend a next action right now."}, nil
		}
		return types.TaskResult{Success: true, ResponseType: "action_recommendation", Data: map[string]interface{}{"answer": content}}, nil

	case "crm_operation":
		return a.executeCRMOperation(ctx, message)

	default:
		content, err := a.generate(ctx, salesGeneralPrompt, message.Content)
		if err != nil {
			return types.TaskResult{Success: false, Err: err, FallbackResponse: "Unable to answer this sales question right now."}, nil
		}
		return types.TaskResult{Success: true, ResponseType: "general", Data: map[string]interface{}{"answer": content}}, nil
	}
}

func (a *SalesAgent) executeCRMOperation(ctx context.Context, message types.AgentMessage) (types.TaskResult, error) {
	if a.tools == nil {
		return types.TaskResult{Success: false, FallbackResponse: "No CRM tool is configured for this agent."}, nil
	}
	args, _ := json.Marshal(message.Metadata)
	result, err := a.tools.Execute(ctx, "database_query", args)
	if err != nil {
		return types.TaskResult{Success: false, Err: err, FallbackResponse: "The CRM operation could not be completed."}, nil
	}
	return types.TaskResult{
		Success:      result.Success,
		ResponseType: "crm_operation",
		Data:         map[string]interface{}{"answer": result.Output, "raw": result.Data},
	}, nil
}

func (a *SalesAgent) Respond(ctx context.Context, result types.TaskResult, collab *agent.CollaborationResult) (types.AgentResponse, error) {
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

const sectionInstruction = " Close your answer with a \"Suggestions:\" section (2-4 bullet points) and a \"Next steps:\" section (1-3 bullet points)."

const salesTalkingPointsPrompt = "You are a sales enablement assistant. Generate concise, persuasive talking points tailored to the customer context described by the user." + sectionInstruction
const salesNextActionPrompt = "You are a sales enablement assistant. Recommend the single best next action given the sales situation described by the user, with a one-sentence rationale." + sectionInstruction
const salesGeneralPrompt = "You are a sales enablement assistant. Answer the user's sales question directly and concisely." + sectionInstruction

func appendCollaborationNote(content string, collab *agent.CollaborationResult) string {
	if collab == nil || len(collab.Failed) == 0 {
		return content
	}
	return fmt.Sprintf("%s\n\n(Note: %d collaborating agent(s) could not respond.)", content, len(collab.Failed))
}
