package specialized

import (
	"context"
	"encoding/json"

	"github.com/corlin/hicrm-core/internal/agent"
	"github.com/corlin/hicrm-core/internal/rag"
	"github.com/corlin/hicrm-core/internal/router"
	"github.com/corlin/hicrm-core/internal/tools"
	"github.com/corlin/hicrm-core/internal/types"
)

// CRMExpertAgent advises on CRM process and data hygiene: process
// guidance, knowledge integration, quality control, system integration
// and compliance checks, grounded on
// original_source/src/agents/professional/crm_expert_agent.py's five
// AgentCapability entries (process_guidance, knowledge_integration,
// quality_control, system_integration, compliance_check).
type CRMExpertAgent struct {
	base
}

var crmTaskRules = []taskTypeRule{
	{taskType: "process_guidance", keywords: []string{"how do i", "process", "workflow step", "best practice"}},
	{taskType: "knowledge_integration", keywords: []string{"where is", "find the record", "lookup"}},
	{taskType: "quality_control", keywords: []string{"duplicate", "data quality", "validate", "missing field"}},
	{taskType: "system_integration", keywords: []string{"integrate", "sync", "api", "webhook"}},
	{taskType: "compliance_check", keywords: []string{"compliance", "gdpr", "audit", "consent"}},
}

// NewCRMExpertAgent builds the CRM-best-practices agent.
func NewCRMExpertAgent(id string, r *router.Router, ragEngine *rag.Engine, registry *tools.Registry, knowledgeCollection string) *CRMExpertAgent {
	return &CRMExpertAgent{base: base{
		id: id,
		capabilities: []types.AgentCapability{
			{Name: "process_guidance", Description: "Explains the correct CRM process or workflow step for a situation."},
			{Name: "knowledge_integration", Description: "Looks up CRM records and related knowledge for the user."},
			{Name: "quality_control", Description: "Flags data quality issues such as duplicates or missing fields."},
			{Name: "system_integration", Description: "Advises on integrating the CRM with external systems."},
			{Name: "compliance_check", Description: "Checks a described action against compliance requirements."},
		},
		collections: map[string]string{
			"process_guidance":       knowledgeCollection,
			"knowledge_integration":  knowledgeCollection,
			"compliance_check":       knowledgeCollection,
		},
		router: r,
		rag:    ragEngine,
		tools:  registry,
	}}
}

func (a *CRMExpertAgent) Analyze(ctx context.Context, message types.AgentMessage) (types.Analysis, error) {
	taskType := classify(message.Content, crmTaskRules)
	extracted := map[string]interface{}{}
	if cid := extractCustomerID(message.Content); cid != "" {
		extracted["customerId"] = cid
	}
	return types.Analysis{TaskType: taskType, ExtractedContext: extracted}, nil
}

func (a *CRMExpertAgent) Execute(ctx context.Context, message types.AgentMessage, analysis types.Analysis) (types.TaskResult, error) {
	switch analysis.TaskType {
	case "process_guidance", "knowledge_integration", "compliance_check":
		answer := a.queryRAG(ctx, analysis.TaskType, message.Content)
		if answer.Answer != "" {
			return types.TaskResult{
				Success:      true,
				ResponseType: analysis.TaskType,
				Data:         map[string]interface{}{"answer": answer.Answer, "confidence": answer.Confidence},
			}, nil
		}
		content, err := a.generate(ctx, crmGeneralPrompt, message.Content)
		if err != nil {
			return types.TaskResult{Success: false, Err: err, FallbackResponse: "Unable to answer this CRM question right now."}, nil
		}
		return types.TaskResult{Success: true, ResponseType: analysis.TaskType, Data: map[string]interface{}{"answer": content}}, nil

	case "quality_control":
		return a.executeQualityCheck(ctx, message)

	case "system_integration":
		content, err := a.generate(ctx, crmIntegrationPrompt, message.Content)
		if err != nil {
			return types.TaskResult{Success: false, Err: err, FallbackResponse: "Unable to provide integration guidance right now."}, nil
		}
		return types.TaskResult{Success: true, ResponseType: "system_integration", Data: map[string]interface{}{"answer": content}}, nil

	default:
		content, err := a.generate(ctx, crmGeneralPrompt, message.Content)
		if err != nil {
			return types.TaskResult{Success: false, Err: err, FallbackResponse: "Unable to answer this CRM question right now."}, nil
		}
		return types.TaskResult{Success: true, ResponseType: "general", Data: map[string]interface{}{"answer": content}}, nil
	}
}

func (a *CRMExpertAgent) executeQualityCheck(ctx context.Context, message types.AgentMessage) (types.TaskResult, error) {
	if a.tools == nil {
		content, err := a.generate(ctx, crmQualityPrompt, message.Content)
		if err != nil {
			return types.TaskResult{Success: false, Err: err, FallbackResponse: "Unable to run a data quality check right now."}, nil
		}
		return types.TaskResult{Success: true, ResponseType: "quality_control", Data: map[string]interface{}{"answer": content}}, nil
	}
	args, _ := json.Marshal(message.Metadata)
	result, err := a.tools.Execute(ctx, "database_query", args)
	if err != nil {
		return types.TaskResult{Success: false, Err: err, FallbackResponse: "The data quality check could not be completed."}, nil
	}
	return types.TaskResult{
		Success:      result.Success,
		ResponseType: "quality_control",
		Data:         map[string]interface{}{"answer": result.Output, "raw": result.Data},
	}, nil
}

func (a *CRMExpertAgent) Respond(ctx context.Context, result types.TaskResult, collab *agent.CollaborationResult) (types.AgentResponse, error) {
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

const crmGeneralPrompt = "You are a CRM best-practices assistant. Answer the user's question about CRM process, data or usage directly and concisely." + sectionInstruction
const crmIntegrationPrompt = "You are a CRM best-practices assistant. Advise on integrating the CRM with the external system the user describes." + sectionInstruction
const crmQualityPrompt = "You are a CRM best-practices assistant. Describe the data quality checks relevant to what the user describes, since no query tool is configured." + sectionInstruction
