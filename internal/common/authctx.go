package common

import "context"

type ctxKey string

const (
	usernameKey ctxKey = "auth/username"
	slotKey     ctxKey = "auth/username-slot"
)

// WithUsername stores the authenticated username on the provided context.
// Outer middleware that installed a slot with WithUsernameSlot sees the value too.
func WithUsername(ctx context.Context, username string) context.Context {
	if slot, ok := ctx.Value(slotKey).(*string); ok && slot != nil {
		*slot = username
	}
	return context.WithValue(ctx, usernameKey, username)
}

// WithUsernameSlot installs a slot that is filled once an inner handler authenticates the request.
func WithUsernameSlot(ctx context.Context) (context.Context, *string) {
	slot := new(string)
	return context.WithValue(ctx, slotKey, slot), slot
}

// Username extracts the authenticated username from the context if present.
func Username(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(usernameKey).(string)
	return name, ok && name != ""
}
