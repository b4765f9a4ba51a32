package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/workdesk/internal/invoice/domain"
	obstracing "github.com/smallbiznis/workdesk/internal/observability/tracing"
	"github.com/smallbiznis/workdesk/pkg/db/pagination"
)

type listInvoicesQuery struct {
	PageToken    string `form:"page_token"`
	PageSize     int    `form:"page_size"`
	WorkOrderID  string `form:"work_order_id"`
	DepartmentID string `form:"department_id"`
	Paid         string `form:"paid"`
}

func (s *Server) ListInvoices(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var query listInvoicesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	workOrderID, err := parseOptionalSnowflakeID(query.WorkOrderID)
	if err != nil {
		AbortWithError(c, newValidationError("work_order_id", "invalid_work_order_id", "invalid work_order_id"))
		return
	}
	departmentID, err := parseOptionalSnowflakeID(query.DepartmentID)
	if err != nil {
		AbortWithError(c, newValidationError("department_id", "invalid_department_id", "invalid department_id"))
		return
	}
	paid, err := parseOptionalBool(query.Paid)
	if err != nil {
		AbortWithError(c, newValidationError("paid", "invalid_paid", "invalid paid"))
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), actor, invoicedomain.ListInvoiceRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		WorkOrderID:  workOrderID,
		DepartmentID: departmentID,
		Paid:         paid,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Invoices, "page_info": resp.PageInfo})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	c.Set(obstracing.InvoiceIDKey, id.String())

	item, err := s.invoiceSvc.Get(c.Request.Context(), actor, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) UpdateInvoicePayment(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	c.Set(obstracing.InvoiceIDKey, id.String())

	var req invoicedomain.UpdatePaymentRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	item, err := s.invoiceSvc.MarkPaid(c.Request.Context(), actor, id, *req.Paid)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) DownloadInvoice(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	c.Set(obstracing.InvoiceIDKey, id.String())

	doc, item, err := s.invoiceSvc.Download(c.Request.Context(), actor, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", item.InvoiceNumber+".pdf"))
	c.Data(http.StatusOK, "application/pdf", doc)
}
