package reconcile

import "context"

// Reporter receives every completed pass. Implementations must not block for
// long; the checker waits for them before releasing the next pass.
type Reporter interface {
	Report(ctx context.Context, pass Pass)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, pass Pass)

func (f ReporterFunc) Report(ctx context.Context, pass Pass) { f(ctx, pass) }

type triggerKey struct{}

// WithTrigger records why a pass ran ("tick", "watch", "manual", "api").
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, triggerKey{}, trigger)
}

// TriggerFromContext returns the trigger recorded by WithTrigger.
func TriggerFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(triggerKey{}).(string)
	return t, ok && t != ""
}
