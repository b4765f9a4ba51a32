package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/workdesk/internal/authorization"
	obstracing "github.com/smallbiznis/workdesk/internal/observability/tracing"
	workorderdomain "github.com/smallbiznis/workdesk/internal/workorder/domain"
	"github.com/smallbiznis/workdesk/pkg/db/pagination"
)

type listWorkOrdersQuery struct {
	PageToken    string `form:"page_token"`
	PageSize     int    `form:"page_size"`
	Status       string `form:"status"`
	DepartmentID string `form:"department_id"`
}

func (s *Server) CreateWorkOrder(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req workorderdomain.CreateRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	order, err := s.workOrderSvc.Create(c.Request.Context(), actor, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set(obstracing.WorkOrderIDKey, order.ID.String())
	c.JSON(http.StatusCreated, gin.H{"data": order})
}

func (s *Server) ListWorkOrders(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var query listWorkOrdersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	departmentID, err := parseOptionalSnowflakeID(query.DepartmentID)
	if err != nil {
		AbortWithError(c, newValidationError("department_id", "invalid_department_id", "invalid department_id"))
		return
	}

	resp, err := s.workOrderSvc.List(c.Request.Context(), actor, workorderdomain.ListRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		Status:       strings.TrimSpace(query.Status),
		DepartmentID: departmentID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.WorkOrders, "page_info": resp.PageInfo})
}

func (s *Server) GetWorkOrder(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	order, err := s.workOrderSvc.Get(c.Request.Context(), actor, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}

// GetWorkOrderHistory returns the audit trail of one order to admins that may process it.
func (s *Server) GetWorkOrderHistory(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	order, err := s.workOrderSvc.Get(ctx, actor, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	resource := authorization.Owned(order.DepartmentID, order.CompanyID, order.EmployeeID)
	if err := s.authzSvc.Authorize(ctx, actor, authorization.ActionWorkOrderUpdate, resource); err != nil {
		AbortWithError(c, err)
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	resp, err := s.auditSvc.History(ctx, "work_order", order.ID.String(), page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.AuditLogs, "page_info": resp.PageInfo})
}

// UpdateWorkOrder patches processing fields; a target status of Completed runs the full completion.
func (s *Server) UpdateWorkOrder(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req workorderdomain.UpdateRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set(obstracing.WorkOrderIDKey, id.String())
	result, err := s.workOrderSvc.Update(c.Request.Context(), actor, id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) CompleteWorkOrder(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	c.Set(obstracing.WorkOrderIDKey, id.String())
	result, err := s.workOrderSvc.Complete(c.Request.Context(), actor, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) DeclineWorkOrder(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req workorderdomain.DeclineRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set(obstracing.WorkOrderIDKey, id.String())
	result, err := s.workOrderSvc.Decline(c.Request.Context(), actor, id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) DeleteWorkOrder(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	c.Set(obstracing.WorkOrderIDKey, id.String())
	if err := s.workOrderSvc.Delete(c.Request.Context(), actor, id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
