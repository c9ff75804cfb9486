package ctxutil

import "context"

type runDataKey struct{}

// RunData identifies the enforcement pass or request a unit of work belongs to.
type RunData struct {
	RunID     string
	RequestID string
}

func WithRunData(ctx context.Context, rd *RunData) context.Context {
	return context.WithValue(Default(ctx), runDataKey{}, rd)
}

func GetRunData(ctx context.Context) *RunData {
	if ctx == nil {
		return nil
	}
	if rd, ok := ctx.Value(runDataKey{}).(*RunData); ok {
		return rd
	}
	return nil
}

// Default returns context.Background() when ctx is nil.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
