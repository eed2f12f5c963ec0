package ctxutil

import "context"

type traceDataKey struct{}

type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

type operatorKey struct{}

// Operator identifies the signed-in human behind a gated request.
type Operator struct {
	Email string
}

func WithOperator(ctx context.Context, op *Operator) context.Context {
	return context.WithValue(ctx, operatorKey{}, op)
}

func GetOperator(ctx context.Context) *Operator {
	if op, ok := ctx.Value(operatorKey{}).(*Operator); ok {
		return op
	}
	return nil
}
