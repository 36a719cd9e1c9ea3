package specialized

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corlin/hicrm-core/internal/agent"
	"github.com/corlin/hicrm-core/internal/types"
)

func TestClassifyFallsBackToGeneral(t *testing.T) {
	assert.Equal(t, "general", classify("tell me something random", salesTaskRules))
	assert.Equal(t, "customer_analysis", classify("please analyze customer context for acme", salesTaskRules))
}

func TestExtractCustomerID(t *testing.T) {
	assert.Equal(t, "acme-123", extractCustomerID("for customer_id: acme-123 please"))
	assert.Equal(t, "", extractCustomerID("no identifier mentioned"))
}

func TestSalesAgentAnalyzeClassifiesAndExtractsContext(t *testing.T) {
	a := NewSalesAgent("sales_agent", nil, nil, nil, "sales-knowledge")
	analysis, err := a.Analyze(context.Background(), types.AgentMessage{Content: "analyze customer customer_id=acme-9"})
	require.NoError(t, err)
	assert.Equal(t, "customer_analysis", analysis.TaskType)
	assert.Equal(t, "acme-9", analysis.ExtractedContext["customerId"])
}

func TestSalesAgentExecuteWithoutRAGReturnsFallback(t *testing.T) {
	a := NewSalesAgent("sales_agent", nil, nil, nil, "sales-knowledge")
	result, err := a.Execute(context.Background(), types.AgentMessage{Content: "customer analysis please"}, types.Analysis{TaskType: "customer_analysis"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.FallbackResponse)
}

func TestSalesAgentExecuteCRMOperationWithoutToolsReturnsFallback(t *testing.T) {
	a := NewSalesAgent("sales_agent", nil, nil, nil, "sales-knowledge")
	result, err := a.Execute(context.Background(), types.AgentMessage{Content: "create lead for acme"}, types.Analysis{TaskType: "crm_operation"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "No CRM tool is configured for this agent.", result.FallbackResponse)
}

func TestSalesAgentRespondFormatsSuccess(t *testing.T) {
	a := NewSalesAgent("sales_agent", nil, nil, nil, "sales-knowledge")
	resp, err := a.Respond(context.Background(), types.TaskResult{
		Success: true,
		Data:    map[string]interface{}{"answer": "talk about ROI", "confidence": 0.9},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "talk about ROI", resp.Content)
	assert.Equal(t, 0.9, resp.Confidence)
}

func TestSalesAgentRespondAppendsCollaborationFailureNote(t *testing.T) {
	a := NewSalesAgent("sales_agent", nil, nil, nil, "sales-knowledge")
	collab := &agent.CollaborationResult{Failed: []agent.PeerFailure{{AgentID: "peer1"}}}
	resp, err := a.Respond(context.Background(), types.TaskResult{
		Success: true,
		Data:    map[string]interface{}{"answer": "base answer"},
	}, collab)
	require.NoError(t, err)
	assert.Contains(t, resp.Content, "base answer")
	assert.Contains(t, resp.Content, "could not respond")
}

func TestManagementStrategyAgentAnalyzeRequestsCollaborationForStrategy(t *testing.T) {
	a := NewManagementStrategyAgent("management_agent", nil, nil, nil, "strategy-knowledge")
	analysis, err := a.Analyze(context.Background(), types.AgentMessage{Content: "draft a strategic plan for Q3"})
	require.NoError(t, err)
	assert.Equal(t, "strategy_planning", analysis.TaskType)
	assert.True(t, analysis.NeedsCollaboration)
	assert.Equal(t, []string{"sales_agent"}, analysis.RequiredAgents)
	assert.Equal(t, types.CollaborationSequential, analysis.CollaborationType)
}

func TestManagementStrategyAgentAnalyzeDoesNotCollaborateForForecast(t *testing.T) {
	a := NewManagementStrategyAgent("management_agent", nil, nil, nil, "strategy-knowledge")
	analysis, err := a.Analyze(context.Background(), types.AgentMessage{Content: "what is the forecast for next quarter"})
	require.NoError(t, err)
	assert.Equal(t, "trend_forecasting", analysis.TaskType)
	assert.False(t, analysis.NeedsCollaboration)
}

func TestManagementStrategyAgentExecuteWithoutRouterFails(t *testing.T) {
	a := NewManagementStrategyAgent("management_agent", nil, nil, nil, "strategy-knowledge")
	result, err := a.Execute(context.Background(), types.AgentMessage{Content: "should we expand to a new region"}, types.Analysis{TaskType: "decision_support"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Unable to provide decision support right now.", result.FallbackResponse)
}

func TestCRMExpertAgentAnalyzeClassifiesComplianceCheck(t *testing.T) {
	a := NewCRMExpertAgent("crm_agent", nil, nil, nil, "crm-knowledge")
	analysis, err := a.Analyze(context.Background(), types.AgentMessage{Content: "is this export GDPR compliant"})
	require.NoError(t, err)
	assert.Equal(t, "compliance_check", analysis.TaskType)
}

func TestCRMExpertAgentExecuteQualityControlWithoutToolsFallsBackToGenerate(t *testing.T) {
	a := NewCRMExpertAgent("crm_agent", nil, nil, nil, "crm-knowledge")
	result, err := a.Execute(context.Background(), types.AgentMessage{Content: "check for duplicate records"}, types.Analysis{TaskType: "quality_control"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.FallbackResponse)
}

func TestSalesAgentRespondExtractsSuggestionsAndNextStepsFromAnswerText(t *testing.T) {
	a := NewSalesAgent("sales_agent", nil, nil, nil, "sales-knowledge")
	resp, err := a.Respond(context.Background(), types.TaskResult{
		Success: true,
		Data: map[string]interface{}{"answer": "Talk about ROI first.\n\n" +
			"Suggestions:\n- lead with ROI\n- mention the renewal discount\n\n" +
			"Next steps:\n- schedule a demo"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"lead with ROI", "mention the renewal discount"}, resp.Suggestions)
	assert.Equal(t, []string{"schedule a demo"}, resp.NextActions)
}

func TestSalesAgentRespondPrefersStructuredDataOverExtraction(t *testing.T) {
	a := NewSalesAgent("sales_agent", nil, nil, nil, "sales-knowledge")
	resp, err := a.Respond(context.Background(), types.TaskResult{
		Success: true,
		Data: map[string]interface{}{
			"answer":      "Talk about ROI.\n\nSuggestions:\n- ignored because Data wins",
			"suggestions": []string{"structured suggestion"},
		},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"structured suggestion"}, resp.Suggestions)
}

func TestCRMExpertAgentRespondDefaultsContentWhenEmpty(t *testing.T) {
	a := NewCRMExpertAgent("crm_agent", nil, nil, nil, "crm-knowledge")
	resp, err := a.Respond(context.Background(), types.TaskResult{Success: true, Data: map[string]interface{}{}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "No answer could be produced for this request.", resp.Content)
}

var (
	_ agent.Agent = (*SalesAgent)(nil)
	_ agent.Agent = (*ManagementStrategyAgent)(nil)
	_ agent.Agent = (*CRMExpertAgent)(nil)
)
