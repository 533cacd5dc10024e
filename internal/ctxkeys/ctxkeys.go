package ctxkeys

import "context"

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	traceIDKey    contextKey = "trace_id"
	runIDKey      contextKey = "run_id"
	workflowIDKey contextKey = "workflow_id"
	metaKey       contextKey = "meta"
)

// WithTraceID 设置 TraceID
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID 获取 TraceID
func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(traceIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithRunID 设置 RunID
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunID 获取 RunID
func RunID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(runIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithWorkflowID 设置 WorkflowID
func WithWorkflowID(ctx context.Context, workflowID string) context.Context {
	return context.WithValue(ctx, workflowIDKey, workflowID)
}

// WorkflowID 获取 WorkflowID
func WorkflowID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(workflowIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithMeta 附加调用方元数据，引擎原样透传给动作
func WithMeta(ctx context.Context, meta map[string]any) context.Context {
	return context.WithValue(ctx, metaKey, meta)
}

// Meta 获取调用方元数据
func Meta(ctx context.Context) (map[string]any, bool) {
	v, ok := ctx.Value(metaKey).(map[string]any)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}
