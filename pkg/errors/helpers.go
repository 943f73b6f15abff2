package errors

import (
	"context"
)

// CheckContext converts a canceled or expired context into a coded error,
// naming the operation that was cut short. Returns nil while the context is
// still live.
func CheckContext(ctx context.Context, operation string) error {
	if err := ctx.Err(); err != nil {
		return Wrap(err, Canceled, operation+" canceled")
	}
	return nil
}
