package wrap

import (
	"context"
	"errors"
)

// Error attaches the LogCtx of ctx to err. Already wrapped errors get their context refreshed.
func Error(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	var e *errorWithLogCtx
	if errors.As(err, &e) {
		if x, ok := ctx.Value(LogCtxKey).(LogCtx); ok {
			e.logCtx = x
		}
		return err
	}

	return &errorWithLogCtx{
		err:    err,
		logCtx: fromContext(ctx),
	}
}
