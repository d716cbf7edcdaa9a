package middleware

import (
	"net/http"
	"strings"

	"github.com/damoang/angple-moderation/internal/common"
	"github.com/damoang/angple-moderation/internal/domain"
	"github.com/gin-gonic/gin"
)

// ActorHeader carries the calling user's id. Authentication happens upstream
// (gateway); this service trusts the header.
const ActorHeader = "X-User-ID"

const actorKey = "userID"

// ActorIdentity stores the X-User-ID header value in the context
func ActorIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.GetHeader(ActorHeader)); id != "" {
			c.Set(actorKey, id)
		}
		c.Next()
	}
}

// RequireActor rejects requests without a usable human identity.
// "system"은 예약된 ID라 외부에서 사용할 수 없음
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := GetActorID(c)
		if id == "" {
			common.ErrorResponse(c, http.StatusUnauthorized, "Missing "+ActorHeader+" header", nil)
			c.Abort()
			return
		}
		if id == domain.SystemActorID {
			common.ErrorResponse(c, http.StatusForbidden, "Reserved actor id", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetActorID extracts the caller's user id from context
func GetActorID(c *gin.Context) string {
	return c.GetString(actorKey)
}

// GetActor returns the caller as a human actor
func GetActor(c *gin.Context) domain.Actor {
	return domain.Human(GetActorID(c))
}
