package audit

import "context"

type ctxKey string

const triggerKey ctxKey = "audit_trigger"

// Triggers recorded on cycle events.
const (
	TriggerTick     = "tick"
	TriggerShutdown = "shutdown"
	TriggerManual   = "manual"
)

func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, triggerKey, trigger)
}

func TriggerFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(triggerKey).(string)
	return v
}
