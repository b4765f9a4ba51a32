package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	authdomain "github.com/smallbiznis/workdesk/internal/auth/domain"
	"github.com/smallbiznis/workdesk/internal/authorization"
	"github.com/smallbiznis/workdesk/internal/config"
	directorydomain "github.com/smallbiznis/workdesk/internal/directory/domain"
	"github.com/smallbiznis/workdesk/internal/invoice/calculator"
	invoicedomain "github.com/smallbiznis/workdesk/internal/invoice/domain"
	"github.com/smallbiznis/workdesk/internal/providers/email"
	"github.com/smallbiznis/workdesk/internal/providers/pdf"
	"github.com/smallbiznis/workdesk/internal/ratelimit"
	signupdomain "github.com/smallbiznis/workdesk/internal/signup/domain"
	taxdomain "github.com/smallbiznis/workdesk/internal/taxrate/domain"
	workorderdomain "github.com/smallbiznis/workdesk/internal/workorder/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testAdmin = authorization.Actor{Kind: authorization.ActorAdmin, ID: 900, DepartmentID: 3}

type fakeAuthService struct {
	loginErr error
}

func (f *fakeAuthService) Login(ctx context.Context, kind authorization.ActorKind, req authdomain.LoginRequest) (authdomain.LoginResult, error) {
	if f.loginErr != nil {
		return authdomain.LoginResult{}, f.loginErr
	}
	return authdomain.LoginResult{Token: "good-token", Kind: kind, ID: testAdmin.ID, Email: req.Email}, nil
}

func (f *fakeAuthService) Authenticate(ctx context.Context, raw string) (authorization.Actor, error) {
	if raw != "good-token" {
		return authorization.Actor{}, authdomain.ErrInvalidToken
	}
	return testAdmin, nil
}

type fakeSignupService struct {
	called bool
}

func (f *fakeSignupService) Signup(ctx context.Context, req signupdomain.Request) (*signupdomain.Result, error) {
	f.called = true
	if req.Email == "taken@acme.test" {
		return nil, directorydomain.ErrEmailTaken
	}
	return &signupdomain.Result{
		Company: directorydomain.Company{ID: 77, Name: req.Name, Email: req.Email},
		Session: authdomain.LoginResult{Token: "good-token", Kind: authorization.ActorCompany},
	}, nil
}

type workOrderMock struct {
	mock.Mock
	workorderdomain.Service
}

func (m *workOrderMock) Create(ctx context.Context, actor authorization.Actor, req workorderdomain.CreateRequest) (workorderdomain.WorkOrder, error) {
	args := m.Called(actor, req)
	return args.Get(0).(workorderdomain.WorkOrder), args.Error(1)
}

func (m *workOrderMock) Complete(ctx context.Context, actor authorization.Actor, id snowflake.ID) (workorderdomain.Result, error) {
	args := m.Called(actor, id)
	return args.Get(0).(workorderdomain.Result), args.Error(1)
}

type fakeInvoices struct {
	invoicedomain.Service
	doc []byte
}

func (f *fakeInvoices) Download(ctx context.Context, actor authorization.Actor, id snowflake.ID) ([]byte, invoicedomain.Invoice, error) {
	if id != 42 {
		return nil, invoicedomain.Invoice{}, invoicedomain.ErrInvoiceNotFound
	}
	return f.doc, invoicedomain.Invoice{ID: id, InvoiceNumber: "INV-20260203-000001"}, nil
}

type fakeTaxRates struct {
	taxdomain.Service
	asked time.Time
}

func (f *fakeTaxRates) RateAt(ctx context.Context, actor authorization.Actor, taxType taxdomain.TaxType, at time.Time) (taxdomain.AppliedRate, error) {
	f.asked = at
	return taxdomain.AppliedRate{Rate: decimal.NewFromInt(11), Version: 2}, nil
}

func (f *fakeTaxRates) History(ctx context.Context, actor authorization.Actor, taxType taxdomain.TaxType) ([]taxdomain.TaxRateVersion, error) {
	return []taxdomain.TaxRateVersion{{Type: taxType, Rate: decimal.NewFromInt(11), Version: 2}}, nil
}

type testServer struct {
	engine     *gin.Engine
	auth       *fakeAuthService
	signup     *fakeSignupService
	workOrders *workOrderMock
	taxRates   *fakeTaxRates
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	ts := &testServer{
		engine:     engine,
		auth:       &fakeAuthService{},
		signup:     &fakeSignupService{},
		workOrders: &workOrderMock{},
		taxRates:   &fakeTaxRates{},
	}
	NewServer(ServerParams{
		Gin:          engine,
		Cfg:          config.Config{AllDepartmentID: 3},
		Authsvc:      ts.auth,
		Signupsvc:    ts.signup,
		InvoiceSvc:   &fakeInvoices{doc: []byte("%PDF-1.4 test")},
		WorkOrderSvc: ts.workOrders,
		TaxRateSvc:   ts.taxRates,
	})
	return ts
}

func (ts *testServer) do(method, path, body, token string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	ts.engine.ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body.Error
}

func TestAPIRequiresBearerCredential(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodGet, "/api/work-orders", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "unauthorized", decodeError(t, resp).Type)

	resp = ts.do(http.MethodGet, "/api/work-orders", "", "forged")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestCreateWorkOrderReportsFieldErrors(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/api/work-orders", `{"description":"no title"}`, "good-token")
	require.Equal(t, http.StatusBadRequest, resp.Code)

	payload := decodeError(t, resp)
	assert.Equal(t, "validation_error", payload.Type)
	fields := map[string]string{}
	for _, fe := range payload.Errors {
		fields[fe.Field] = fe.Code
	}
	assert.Equal(t, "required", fields["title"])
	assert.Equal(t, "required", fields["department_id"])
	ts.workOrders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateWorkOrderPassesActor(t *testing.T) {
	ts := newTestServer(t)
	req := workorderdomain.CreateRequest{Title: "Fix pump", DepartmentID: 5}
	ts.workOrders.On("Create", testAdmin, req).
		Return(workorderdomain.WorkOrder{ID: 10, Title: "Fix pump", Status: workorderdomain.StatusPending}, nil).
		Once()

	resp := ts.do(http.MethodPost, "/api/work-orders", `{"title":"Fix pump","department_id":"5"}`, "good-token")
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var body struct {
		Data workorderdomain.WorkOrder `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, snowflake.ID(10), body.Data.ID)
	ts.workOrders.AssertExpectations(t)
}

func TestCompleteReturnsDeliveryOutcomes(t *testing.T) {
	ts := newTestServer(t)
	ts.workOrders.On("Complete", testAdmin, snowflake.ID(10)).Return(workorderdomain.Result{
		WorkOrder: workorderdomain.WorkOrder{ID: 10, Status: workorderdomain.StatusCompleted},
		Invoice:   &invoicedomain.Invoice{ID: 11, InvoiceNumber: "INV-20260203-000001"},
		Notification: &workorderdomain.NotificationReport{
			Kind: "work_completed",
			Deliveries: []workorderdomain.Delivery{
				{Role: "employee", Recipient: "eve@acme.test", Status: workorderdomain.DeliveryFailed, Error: "email_delivery_failed"},
			},
		},
	}, nil).Once()

	resp := ts.do(http.MethodPut, "/api/work-orders/10/complete", "", "good-token")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var body struct {
		Data struct {
			WorkOrder    workorderdomain.WorkOrder `json:"work_order"`
			Invoice      invoicedomain.Invoice     `json:"invoice"`
			Notification struct {
				Outcomes []workorderdomain.Delivery `json:"outcomes"`
			} `json:"notification"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, workorderdomain.StatusCompleted, body.Data.WorkOrder.Status)
	assert.Equal(t, "INV-20260203-000001", body.Data.Invoice.InvoiceNumber)
	require.Len(t, body.Data.Notification.Outcomes, 1)
	assert.Equal(t, workorderdomain.DeliveryFailed, body.Data.Notification.Outcomes[0].Status)
}

func TestCompleteTwiceIsConflict(t *testing.T) {
	ts := newTestServer(t)
	ts.workOrders.On("Complete", testAdmin, snowflake.ID(10)).
		Return(workorderdomain.Result{}, workorderdomain.ErrAlreadyCompleted).Once()

	resp := ts.do(http.MethodPut, "/api/work-orders/10/complete", "", "good-token")
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "conflict", decodeError(t, resp).Type)
}

func TestMalformedPathIDIsRejected(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPut, "/api/work-orders/abc/complete", "", "good-token")
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "invalid_id", decodeError(t, resp).Errors[0].Code)
}

func TestDownloadInvoiceServesPDF(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodGet, "/api/invoices/42/pdf", "", "good-token")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/pdf", resp.Header().Get("Content-Type"))
	assert.Contains(t, resp.Header().Get("Content-Disposition"), "INV-20260203-000001.pdf")
	assert.True(t, bytes.HasPrefix(resp.Body.Bytes(), []byte("%PDF")))

	resp = ts.do(http.MethodGet, "/api/invoices/43/pdf", "", "good-token")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/auth/login/admin", `{"email":"Root@Workdesk.local","password":"secret"}`, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var body struct {
		Data authdomain.LoginResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "good-token", body.Data.Token)
	assert.Equal(t, "root@workdesk.local", body.Data.Email)

	resp = ts.do(http.MethodPost, "/auth/login/superuser", `{"email":"root@workdesk.local","password":"secret"}`, "")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	ts.auth.loginErr = authdomain.ErrTooManyAttempts
	resp = ts.do(http.MethodPost, "/auth/login/admin", `{"email":"root@workdesk.local","password":"secret"}`, "")
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.NotEmpty(t, resp.Header().Get("Retry-After"))

	ts.auth.loginErr = authdomain.ErrInvalidCredentials
	resp = ts.do(http.MethodPost, "/auth/login/admin", `{"email":"root@workdesk.local","password":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestRegisterCompany(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/auth/register", `{"name":"Acme","email":"ops@acme.test","password":"s3cretpass"}`, "")
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.True(t, ts.signup.called)

	resp = ts.do(http.MethodPost, "/auth/register", `{"name":"Acme","email":"taken@acme.test","password":"s3cretpass"}`, "")
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "email is already registered", decodeError(t, resp).Message)
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodGet, "/nowhere", "", "")
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "not_found", decodeError(t, resp).Type)
}

func TestTaxRateHistoryAt(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodGet, "/api/tax-rates/vat/history?at=2026-01-10T08:30:00%2B07:00", "", "good-token")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var body struct {
		Data struct {
			Type    string          `json:"type"`
			At      time.Time       `json:"at"`
			Rate    decimal.Decimal `json:"rate"`
			Version int             `json:"version"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.True(t, body.Data.Rate.Equal(decimal.NewFromInt(11)))
	assert.Equal(t, 2, body.Data.Version)
	assert.True(t, body.Data.At.Equal(time.Date(2026, 1, 10, 1, 30, 0, 0, time.UTC)))
	assert.True(t, ts.taxRates.asked.Equal(body.Data.At))

	resp = ts.do(http.MethodGet, "/api/tax-rates/vat/history?at=yesterday", "", "good-token")
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "invalid_at", decodeError(t, resp).Errors[0].Code)

	resp = ts.do(http.MethodGet, "/api/tax-rates/vat/history", "", "good-token")
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestMapErrorTaxonomy(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{authorization.ErrForbidden, http.StatusForbidden, "forbidden"},
		{workorderdomain.ErrNotFound, http.StatusNotFound, "not_found"},
		{invoicedomain.ErrInvoiceNotFound, http.StatusNotFound, "not_found"},
		{workorderdomain.ErrInvalidTransition, http.StatusBadRequest, "validation_error"},
		{email.ErrInvalidAddress, http.StatusBadRequest, "validation_error"},
		{fmt.Errorf("calculate: %w", calculator.ErrNegativeBase), http.StatusBadRequest, "validation_error"},
		{directorydomain.ErrEmailTaken, http.StatusConflict, "conflict"},
		{ratelimit.ErrLockHeld, http.StatusConflict, "conflict"},
		{fmt.Errorf("render invoice: %w", pdf.ErrRender), http.StatusBadGateway, "dependency_error"},
		{authdomain.ErrTokenExpired, http.StatusUnauthorized, "unauthorized"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.kind, payload.Type)
		})
	}

	_, payload := mapError(workorderdomain.ErrInvalidTransition)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "status", payload.Errors[0].Field)

	_, payload = mapError(calculator.ErrNegativeBase)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "base_amount", payload.Errors[0].Field)
}

func TestClassifyErrorForLog(t *testing.T) {
	kind, code := classifyErrorForLog(workorderdomain.ErrAlreadyCompleted)
	assert.Equal(t, "conflict", kind)
	assert.Equal(t, "work_order_already_completed", code)

	kind, code = classifyErrorForLog(errors.New("db down"))
	assert.Equal(t, "internal_error", kind)
	assert.Equal(t, "internal_error", code)
}
