package wrap

import (
	"context"
)

type (
	// LogCtx holds contextual information for logging
	LogCtx struct {
		Action        string
		ParticipantID string
		RequestID     string
	}

	logCtxKeyStruct struct{}
)

// LogCtxKey is the context key of LogCtx values
var LogCtxKey = &logCtxKeyStruct{}

func fromContext(ctx context.Context) LogCtx {
	if lc, ok := ctx.Value(LogCtxKey).(LogCtx); ok {
		return lc
	}
	return LogCtx{}
}

// WithLogCtx merges non-empty fields of newLc into the LogCtx stored in ctx
func WithLogCtx(ctx context.Context, newLc LogCtx) context.Context {
	lc := fromContext(ctx)
	if newLc.Action != "" {
		lc.Action = newLc.Action
	}
	if newLc.ParticipantID != "" {
		lc.ParticipantID = newLc.ParticipantID
	}
	if newLc.RequestID != "" {
		lc.RequestID = newLc.RequestID
	}
	return context.WithValue(ctx, LogCtxKey, lc)
}

// WithParticipantID adds or updates the ParticipantID in the LogCtx within the context
func WithParticipantID(ctx context.Context, id string) context.Context {
	lc := fromContext(ctx)
	lc.ParticipantID = id
	return context.WithValue(ctx, LogCtxKey, lc)
}

// WithRequestID adds or updates the RequestID in the LogCtx within the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	lc := fromContext(ctx)
	lc.RequestID = requestID
	return context.WithValue(ctx, LogCtxKey, lc)
}

// WithAction adds or updates the Action in the LogCtx within the context
func WithAction(ctx context.Context, action string) context.Context {
	lc := fromContext(ctx)
	lc.Action = action
	return context.WithValue(ctx, LogCtxKey, lc)
}

// GetRequestID returns the request id stored in ctx, or "".
func GetRequestID(ctx context.Context) string {
	return fromContext(ctx).RequestID
}

// GetParticipantID returns the participant id stored in ctx, or "".
func GetParticipantID(ctx context.Context) string {
	return fromContext(ctx).ParticipantID
}
