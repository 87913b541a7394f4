package session

import (
	"context"

	"github.com/playperu/colorwar/internal/colorwar"
)

type ctxKey struct{}

// NewContext returns a copy of ctx carrying sess.
func NewContext(ctx context.Context, sess colorwar.Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

// FromContext returns the session stored by NewContext.
func FromContext(ctx context.Context) (colorwar.Session, bool) {
	sess, ok := ctx.Value(ctxKey{}).(colorwar.Session)
	return sess, ok
}
