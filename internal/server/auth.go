package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/workdesk/internal/audit/domain"
	authdomain "github.com/smallbiznis/workdesk/internal/auth/domain"
	"github.com/smallbiznis/workdesk/internal/authorization"
)

func (s *Server) Login(c *gin.Context) {
	kind, ok := authorization.ParseActorKind(strings.ToLower(strings.TrimSpace(c.Param("kind"))))
	if !ok {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req authdomain.LoginRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	result, err := s.authsvc.Login(c.Request.Context(), kind, authdomain.LoginRequest{
		Email:    email,
		Password: req.Password,
	})
	if err != nil {
		if s.auditSvc != nil {
			_ = s.auditSvc.AuditLog(c.Request.Context(), string(kind), nil, auditdomain.ActionLoginFailed, string(kind), nil, map[string]any{
				"email": email,
			})
		}
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		actorID := result.ID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), string(kind), &actorID, auditdomain.ActionLoginSucceeded, string(kind), &actorID, nil)
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// Me echoes the actor carried by the credential.
func (s *Server) Me(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"kind":          actor.Kind,
		"id":            actor.ID,
		"name":          actor.Name,
		"email":         actor.Email,
		"company_id":    actor.CompanyID,
		"department_id": actor.DepartmentID,
		"department":    actor.DepartmentName,
	}})
}
