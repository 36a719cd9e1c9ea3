// Package common holds small cross-cutting helpers shared by the RAG
// pipeline, the router and the agent runtime — structured pipeline
// logging and the consolidated structured-output parser (the Open
// Question decision recorded in DESIGN.md).
package common

import (
	"context"

	"github.com/corlin/hicrm-core/internal/logger"
)

// PipelineInfo logs a structured info-level pipeline event, grounded on
// the teacher's chat_pipline/common.go pipelineInfo helper.
func PipelineInfo(ctx context.Context, stage, action string, fields map[string]interface{}) {
	logger.GetLogger(ctx).WithField("stage", stage).WithField("action", action).
		WithFields(sanitizeFields(fields)).Info("pipeline stage")
}

// PipelineWarn logs a structured warn-level pipeline event.
func PipelineWarn(ctx context.Context, stage, action string, fields map[string]interface{}) {
	logger.GetLogger(ctx).WithField("stage", stage).WithField("action", action).
		WithFields(sanitizeFields(fields)).Warn("pipeline stage")
}

// PipelineError logs a structured error-level pipeline event.
func PipelineError(ctx context.Context, stage, action string, fields map[string]interface{}) {
	logger.GetLogger(ctx).WithField("stage", stage).WithField("action", action).
		WithFields(sanitizeFields(fields)).Error("pipeline stage")
}

// sanitizeFields runs every string-valued field through SanitizeForLog so
// that callers passing through user/tool-controlled text (queries,
// document ids, tool args) can't inject newlines or control characters
// into the structured log stream.
func sanitizeFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}
	clean := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if s, ok := v.(string); ok {
			clean[k] = SanitizeForLog(s)
			continue
		}
		clean[k] = v
	}
	return clean
}
