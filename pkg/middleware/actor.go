package middleware

import (
	"context"
	"strings"

	"rewardvault/pkg/errutil"

	"github.com/gin-gonic/gin"
)

const AdminIDHeader = "X-Admin-ID"

type actorKey struct{}

// Actor requires the admin id header and stores it on the request context.
// Who may call which route is decided upstream of this service.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(AdminIDHeader))
		if id == "" {
			_ = c.Error(errutil.Unauthorized("missing "+AdminIDHeader+" header", nil))
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(WithActor(c.Request.Context(), id))
		c.Next()
	}
}

func WithActor(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, actorKey{}, id)
}

// ActorFrom returns the admin id set by Actor, or "".
func ActorFrom(ctx context.Context) string {
	id, _ := ctx.Value(actorKey{}).(string)
	return id
}
