package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/workdesk/internal/authorization"
	obscontext "github.com/smallbiznis/workdesk/internal/observability/context"
)

const (
	headerAuthorization = "Authorization"
	bearerPrefix        = "bearer "
	contextActorKey     = "actor"
)

// AuthRequired verifies the bearer credential and stores the actor on the request.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader(headerAuthorization))
		if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		actor, err := s.authsvc.Authenticate(c.Request.Context(), header[len(bearerPrefix):])
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := authorization.WithActor(c.Request.Context(), actor)
		ctx = obscontext.WithActor(ctx, string(actor.Kind), actor.IDString())
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextActorKey, actor)
		c.Next()
	}
}

func actorFrom(c *gin.Context) (authorization.Actor, bool) {
	if value, ok := c.Get(contextActorKey); ok {
		if actor, ok := value.(authorization.Actor); ok && actor.Valid() {
			return actor, true
		}
	}
	return authorization.ActorFromContext(c.Request.Context())
}

// requireActor aborts with 401 when the request carries no authenticated actor.
func requireActor(c *gin.Context) (authorization.Actor, bool) {
	actor, ok := actorFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return authorization.Actor{}, false
	}
	return actor, true
}
