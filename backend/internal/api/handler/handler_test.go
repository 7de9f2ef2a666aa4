package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"hwmun/backend/internal/access"
	"hwmun/backend/internal/dto"
	"hwmun/backend/internal/model"
	"hwmun/backend/internal/service"
	"hwmun/backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock AuthService ──

type mockAuthService struct {
	loginResult *dto.TokenResponse
	loginErr    error
	logoutJTI   string
	logoutErr   error
	createErr   error
}

func (m *mockAuthService) Login(_ context.Context, _ *dto.LoginRequest) (*dto.TokenResponse, error) {
	return m.loginResult, m.loginErr
}
func (m *mockAuthService) Logout(_ context.Context, jti string, _ time.Time) error {
	m.logoutJTI = jti
	return m.logoutErr
}
func (m *mockAuthService) CreateUser(_ context.Context, _ *access.Principal, req *dto.CreateUserRequest) (*dto.UserResponse, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &dto.UserResponse{ID: req.ID, Access: req.Access}, nil
}

// ── Mock ExchangeService ──

type mockExchangeService struct {
	respondSeats  model.SeatMap
	respondErr    error
	respondAction string
	proposeErr    error
	listQuery     *dto.ExchangeListQuery
}

func (m *mockExchangeService) List(_ context.Context, _ *access.Principal, q *dto.ExchangeListQuery) ([]dto.ExchangeResponse, error) {
	m.listQuery = q
	return nil, nil
}
func (m *mockExchangeService) Propose(_ context.Context, _ *access.Principal, req *dto.CreateExchangeRequest) (*dto.ExchangeResponse, error) {
	if m.proposeErr != nil {
		return nil, m.proposeErr
	}
	return &dto.ExchangeResponse{ID: "ex-1", State: model.ExchangeStatePending}, nil
}
func (m *mockExchangeService) Respond(_ context.Context, _ *access.Principal, _, action string) (model.SeatMap, error) {
	m.respondAction = action
	return m.respondSeats, m.respondErr
}

// ── Mock StageService / SeatService ──

type mockStageService struct {
	called string
	stage  model.Stage
	err    error
}

func (m *mockStageService) record(name string) (model.Stage, error) {
	m.called = name
	return m.stage, m.err
}
func (m *mockStageService) ConfirmRelinquish(_ context.Context, _ *access.Principal, _ string) (model.Stage, error) {
	return m.record("confirmRelinquish")
}
func (m *mockStageService) ConfirmExchange(_ context.Context, _ *access.Principal, _ string) (model.Stage, error) {
	return m.record("confirmExchange")
}
func (m *mockStageService) ConfirmReservation(_ context.Context, _ *access.Principal, _ string) (model.Stage, error) {
	return m.record("confirmReservation")
}
func (m *mockStageService) StartConfirm(_ context.Context, _ *access.Principal, _ string) (model.Stage, error) {
	return m.record("startConfirm")
}
func (m *mockStageService) ConfirmAttend(_ context.Context, _ *access.Principal, _ string) (model.Stage, error) {
	return m.record("confirmAttend")
}
func (m *mockStageService) Nuke(_ context.Context, _ *access.Principal, _ string) error {
	m.called = "nuke"
	return m.err
}

type mockSeatService struct {
	seats        model.SeatMap
	err          error
	lastAmount   int
	lastRound    string
	leaderAttend *bool
}

func (m *mockSeatService) SeatMap(_ context.Context, _ *access.Principal, _ string) (model.SeatMap, error) {
	return m.seats, m.err
}
func (m *mockSeatService) Relinquish(_ context.Context, _ *access.Principal, _, round, _ string, amount int) (model.SeatMap, error) {
	m.lastRound, m.lastAmount = round, amount
	return m.seats, m.err
}
func (m *mockSeatService) LeaderAttend(_ context.Context, _ *access.Principal, _ string, attend bool) (model.SeatMap, error) {
	m.leaderAttend = &attend
	return m.seats, m.err
}
func (m *mockSeatService) PreallocateRound2(_ context.Context, _ *access.Principal, _ string, seats map[string]int) (map[string]int, error) {
	return seats, m.err
}
func (m *mockSeatService) ConfirmRound2(_ context.Context, _ *access.Principal, _ string) (model.SeatMap, error) {
	return m.seats, m.err
}

// ── Mock ReservationService ──

type mockReservationService struct {
	reserveErr error
}

func (m *mockReservationService) ListHotels(_ context.Context) ([]dto.HotelResponse, error) {
	return nil, nil
}
func (m *mockReservationService) CreateHotel(_ context.Context, _ *access.Principal, _ *dto.CreateHotelRequest) (*dto.HotelResponse, error) {
	return &dto.HotelResponse{}, nil
}
func (m *mockReservationService) AdjustStock(_ context.Context, _ *access.Principal, _ string, _ int) (*dto.HotelResponse, error) {
	return &dto.HotelResponse{}, nil
}
func (m *mockReservationService) Reserve(_ context.Context, _ *access.Principal, _ string, _ []dto.ReserveItem) ([]dto.ReservationResponse, error) {
	return nil, m.reserveErr
}
func (m *mockReservationService) List(_ context.Context, _ *access.Principal, _ string) ([]dto.ReservationResponse, error) {
	return nil, nil
}
func (m *mockReservationService) Roomshare(_ context.Context, _ *access.Principal, _, _ string, _ *dto.RoomshareRequest) (*dto.ReservationResponse, error) {
	return &dto.ReservationResponse{}, nil
}

// ── Mock PaymentService ──

type mockPaymentService struct {
	review    *dto.ReviewResult
	reviewErr error
	submitErr error
}

func (m *mockPaymentService) Submit(_ context.Context, _ *access.Principal, _ string, _ *dto.SubmitPaymentRequest) (model.Stage, error) {
	return model.MustStage("1.paid"), m.submitErr
}
func (m *mockPaymentService) Review(_ context.Context, _ *access.Principal, _ string, _ *dto.ReviewPaymentRequest) (*dto.ReviewResult, error) {
	return m.review, m.reviewErr
}
func (m *mockPaymentService) List(_ context.Context, _ *access.Principal, _ string) ([]dto.PaymentResponse, error) {
	return nil, nil
}

// ── Mock ExportService ──

type mockExportService struct {
	buf         *bytes.Buffer
	filename    string
	err         error
	leadersOnly bool
}

func (m *mockExportService) ExportSeats(_ context.Context, _ *access.Principal) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}
func (m *mockExportService) ExportReservationCalendar(_ context.Context, _ *access.Principal, _ string) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}
func (m *mockExportService) ExportRepresentatives(_ context.Context, _ *access.Principal, leadersOnly bool) (*bytes.Buffer, string, error) {
	m.leadersOnly = leadersOnly
	return m.buf, m.filename, m.err
}
func (m *mockExportService) ExportReservations(_ context.Context, _ *access.Principal) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}
func (m *mockExportService) ExportBillings(_ context.Context, _ *access.Principal) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}

// ── Mock RepresentativeService ──

type mockRepresentativeService struct {
	updateReq    *dto.UpdateRepresentativeRequest
	updateSchool string
	updateID     string
	note         *dto.RepresentativeNoteRequest
	err          error
}

func (m *mockRepresentativeService) List(_ context.Context, _ *access.Principal, _ string) ([]dto.RepresentativeResponse, error) {
	return nil, m.err
}
func (m *mockRepresentativeService) ListAll(_ context.Context, _ *access.Principal, _ string) ([]dto.RepresentativeResponse, error) {
	return nil, m.err
}
func (m *mockRepresentativeService) Update(_ context.Context, _ *access.Principal, school, id string, req *dto.UpdateRepresentativeRequest) (*dto.RepresentativeResponse, error) {
	m.updateSchool, m.updateID, m.updateReq = school, id, req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.RepresentativeResponse{ID: id, School: school}, nil
}
func (m *mockRepresentativeService) UpdateNote(_ context.Context, _ *access.Principal, id string, req *dto.RepresentativeNoteRequest) (*dto.RepresentativeResponse, error) {
	m.note = req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.RepresentativeResponse{ID: id}, nil
}

// ── Mock DaisService ──

type mockDaisService struct {
	process   *dto.ReimbursementResponse
	processID string
	err       error
}

func (m *mockDaisService) Create(_ context.Context, _ *access.Principal, _ *dto.CreateDaisRequest) (*dto.DaisResponse, error) {
	return &dto.DaisResponse{}, m.err
}
func (m *mockDaisService) List(_ context.Context, _ *access.Principal) ([]dto.DaisResponse, error) {
	return nil, m.err
}
func (m *mockDaisService) Get(_ context.Context, _ *access.Principal, id string) (*dto.DaisResponse, error) {
	return &dto.DaisResponse{ID: id}, m.err
}
func (m *mockDaisService) Update(_ context.Context, _ *access.Principal, id string, _ *dto.UpdateDaisRequest) (*dto.DaisResponse, error) {
	return &dto.DaisResponse{ID: id}, m.err
}
func (m *mockDaisService) Act(_ context.Context, _ *access.Principal, id string, _ *dto.DaisActionRequest) (*dto.DaisResponse, error) {
	return &dto.DaisResponse{ID: id}, m.err
}
func (m *mockDaisService) Delete(_ context.Context, _ *access.Principal, _ string) error {
	return m.err
}
func (m *mockDaisService) ListReimbursements(_ context.Context, _ *access.Principal) ([]dto.ReimbursementSummary, error) {
	return nil, m.err
}
func (m *mockDaisService) GetReimbursement(_ context.Context, _ *access.Principal, id string) (*dto.ReimbursementResponse, error) {
	return &dto.ReimbursementResponse{ID: id}, m.err
}
func (m *mockDaisService) UpdateReimbursement(_ context.Context, _ *access.Principal, id string, _ *dto.ReimbursementRequest) (*dto.ReimbursementResponse, error) {
	return &dto.ReimbursementResponse{ID: id}, m.err
}
func (m *mockDaisService) ProcessReimbursement(_ context.Context, _ *access.Principal, id string, _ *dto.ProcessReimbursementRequest) (*dto.ReimbursementResponse, error) {
	m.processID = id
	if m.err != nil {
		return nil, m.err
	}
	return m.process, nil
}

// ── Mock ApplicationService ──

type mockApplicationService struct {
	kind    string
	payload json.RawMessage
}

func (m *mockApplicationService) Submit(_ context.Context, kind string, payload json.RawMessage) (string, error) {
	m.kind, m.payload = kind, payload
	return "app-1", nil
}
func (m *mockApplicationService) List(_ context.Context, _ *access.Principal, kind string) ([]dto.ApplicationResponse, error) {
	m.kind = kind
	return nil, nil
}

// ── Mock BillingService ──

type mockBillingService struct {
	school, round string
}

func (m *mockBillingService) Detail(_ context.Context, _ *access.Principal, school, round string) (*dto.BillingResponse, error) {
	m.school, m.round = school, round
	return &dto.BillingResponse{School: school, Round: round}, nil
}

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

func leader(school string) *access.Principal {
	return &access.Principal{User: school + "@school.cn", School: school, Access: []string{access.Leader}}
}

// withPrincipal 模拟 JWT 中间件注入的身份
func withPrincipal(p *access.Principal, h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("principal", p)
		c.Set("token_jti", "test-jti")
		c.Set("token_exp", time.Now().Add(15*time.Minute))
		h(c)
	}
}

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func parseResponse(w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

func serve(method, path, pattern string, h gin.HandlerFunc, body io.Reader) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.Handle(method, pattern, h)
	r.ServeHTTP(w, req)
	return w
}

// ═══════════════════════════════════════════════════════════
// AuthHandler Tests
// ═══════════════════════════════════════════════════════════

func TestAuthHandler_Login_Success(t *testing.T) {
	mock := &mockAuthService{loginResult: &dto.TokenResponse{AccessToken: "test-access-token", ExpiresIn: 900}}
	h := NewAuthHandler(mock)

	w := serve("POST", "/auth/login", "/auth/login", h.Login, jsonBody(dto.LoginRequest{User: "staff-1", Password: "Test1234"}))

	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际 %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 0 {
		t.Errorf("期望 code 0，实际 %d", resp.Code)
	}
}

func TestAuthHandler_Login_BadJSON(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	w := serve("POST", "/auth/login", "/auth/login", h.Login, strings.NewReader("invalid json"))

	if w.Code != http.StatusBadRequest {
		t.Errorf("期望 400，实际 %d", w.Code)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{loginErr: service.ErrInvalidCredentials})

	w := serve("POST", "/auth/login", "/auth/login", h.Login, jsonBody(dto.LoginRequest{User: "staff-1", Password: "wrong"}))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("期望 401，实际 %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 11001 {
		t.Errorf("期望业务码 11001，实际 %d", resp.Code)
	}
}

func TestAuthHandler_Logout_UsesTokenJTI(t *testing.T) {
	mock := &mockAuthService{}
	h := NewAuthHandler(mock)

	w := serve("POST", "/auth/logout", "/auth/logout", withPrincipal(leader("x"), h.Logout), nil)

	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际 %d", w.Code)
	}
	if mock.logoutJTI != "test-jti" {
		t.Errorf("应以当前 Token 的 jti 登出，实际 %q", mock.logoutJTI)
	}
}

func TestAuthHandler_CreateUser_NoPrincipal(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})
	body := jsonBody(dto.CreateUserRequest{ID: "dais-1", Password: "password-123", Access: []string{"dais"}})

	w := serve("POST", "/users", "/users", h.CreateUser, body)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("未注入身份应返回 401，实际 %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// Seat / Stage Tests
// ═══════════════════════════════════════════════════════════

func TestSeatHandler_UpdateSeat_DefaultRound(t *testing.T) {
	mock := &mockSeatService{seats: model.SeatMap{"1": {"GA": 1}}}
	h := NewSeatHandler(mock)
	amount := -1

	w := serve("POST", "/schools/x/seat", "/schools/:id/seat", withPrincipal(leader("x"), h.UpdateSeat),
		jsonBody(dto.SeatRequest{Session: "GA", Amount: &amount}))

	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d", w.Code)
	}
	if mock.lastRound != "1" || mock.lastAmount != -1 {
		t.Errorf("轮次应默认为 1，实际 round=%s amount=%d", mock.lastRound, mock.lastAmount)
	}
}

func TestSeatHandler_UpdateSeat_LeaderAttend(t *testing.T) {
	mock := &mockSeatService{}
	h := NewSeatHandler(mock)
	attend := true

	w := serve("POST", "/schools/x/seat", "/schools/:id/seat", withPrincipal(leader("x"), h.UpdateSeat),
		jsonBody(dto.SeatRequest{LeaderAttend: &attend}))

	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d", w.Code)
	}
	if mock.leaderAttend == nil || !*mock.leaderAttend {
		t.Error("应调用 LeaderAttend(true)")
	}
}

func TestSeatHandler_UpdateSeat_MissingAmount(t *testing.T) {
	h := NewSeatHandler(&mockSeatService{})

	w := serve("POST", "/schools/x/seat", "/schools/:id/seat", withPrincipal(leader("x"), h.UpdateSeat),
		jsonBody(map[string]string{"session": "GA"}))

	if w.Code != http.StatusBadRequest {
		t.Errorf("期望 400，实际 %d", w.Code)
	}
}

func TestSeatHandler_UpdateSeat_Insufficient(t *testing.T) {
	h := NewSeatHandler(&mockSeatService{err: service.ErrInsufficientSeats})
	amount := -5

	w := serve("POST", "/schools/x/seat", "/schools/:id/seat", withPrincipal(leader("x"), h.UpdateSeat),
		jsonBody(dto.SeatRequest{Session: "GA", Amount: &amount}))

	if w.Code != http.StatusConflict {
		t.Errorf("期望 409，实际 %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 13001 {
		t.Errorf("期望业务码 13001，实际 %d", resp.Code)
	}
}

func TestStageHandler_Advance_Dispatch(t *testing.T) {
	stage := &mockStageService{stage: model.MustStage("1.exchange")}
	h := NewStageHandler(stage, &mockSeatService{})

	w := serve("POST", "/schools/x/stage", "/schools/:id/stage", withPrincipal(leader("x"), h.Advance),
		jsonBody(dto.StageRequest{Action: dto.ActionConfirmRelinquish}))

	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d", w.Code)
	}
	if stage.called != "confirmRelinquish" {
		t.Errorf("应调用 ConfirmRelinquish，实际 %q", stage.called)
	}
	var body struct {
		Data dto.StageResponse `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Data.Stage != "1.exchange" {
		t.Errorf("期望返回 1.exchange，实际 %q", body.Data.Stage)
	}
}

func TestStageHandler_Advance_UnknownAction(t *testing.T) {
	h := NewStageHandler(&mockStageService{}, &mockSeatService{})

	w := serve("POST", "/schools/x/stage", "/schools/:id/stage", withPrincipal(leader("x"), h.Advance),
		jsonBody(map[string]string{"action": "skipAll"}))

	if w.Code != http.StatusBadRequest {
		t.Errorf("期望 400，实际 %d", w.Code)
	}
}

func TestStageHandler_Advance_Conflict(t *testing.T) {
	h := NewStageHandler(&mockStageService{err: service.ErrDualSessionOdd}, &mockSeatService{})

	w := serve("POST", "/schools/x/stage", "/schools/:id/stage", withPrincipal(leader("x"), h.Advance),
		jsonBody(dto.StageRequest{Action: dto.ActionConfirmExchange}))

	if w.Code != http.StatusConflict {
		t.Errorf("期望 409，实际 %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// Exchange Tests
// ═══════════════════════════════════════════════════════════

func TestExchangeHandler_Respond_Accept(t *testing.T) {
	mock := &mockExchangeService{respondSeats: model.SeatMap{"1": {"GA": 1}}}
	h := NewExchangeHandler(mock)

	w := serve("POST", "/exchanges/ex-1", "/exchanges/:id", withPrincipal(leader("y"), h.RespondExchange),
		jsonBody(dto.RespondExchangeRequest{Action: dto.ExchangeAccept}))

	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d", w.Code)
	}
	if mock.respondAction != dto.ExchangeAccept {
		t.Errorf("动作应透传，实际 %q", mock.respondAction)
	}
}

func TestExchangeHandler_Respond_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   int
	}{
		{service.ErrExchangeUnavailable, http.StatusConflict, 14004},
		{service.ErrExchangeProcessed, http.StatusConflict, 14003},
		{service.ErrExchangeNotFound, http.StatusNotFound, 14001},
		{service.ErrForbidden, http.StatusForbidden, 10003},
	}
	for _, tc := range cases {
		h := NewExchangeHandler(&mockExchangeService{respondErr: tc.err})
		w := serve("POST", "/exchanges/ex-1", "/exchanges/:id", withPrincipal(leader("y"), h.RespondExchange),
			jsonBody(dto.RespondExchangeRequest{Action: dto.ExchangeAccept}))

		if w.Code != tc.status {
			t.Errorf("%v: 期望 %d，实际 %d", tc.err, tc.status, w.Code)
		}
		if resp := parseResponse(w); resp.Code != tc.code {
			t.Errorf("%v: 期望业务码 %d，实际 %d", tc.err, tc.code, resp.Code)
		}
	}
}

func TestExchangeHandler_List_StateFalse(t *testing.T) {
	for _, state := range []string{"false", "0", "pending"} {
		mock := &mockExchangeService{}
		h := NewExchangeHandler(mock)

		w := serve("GET", "/exchanges?state="+state, "/exchanges", withPrincipal(leader("x"), h.ListExchanges), nil)

		if w.Code != http.StatusOK {
			t.Fatalf("state=%s 期望 200，实际 %d", state, w.Code)
		}
		if mock.listQuery == nil || mock.listQuery.State != state {
			t.Errorf("state=%s 应透传给服务层，实际 %+v", state, mock.listQuery)
		}
	}

	h := NewExchangeHandler(&mockExchangeService{})
	w := serve("GET", "/exchanges?state=bogus", "/exchanges", withPrincipal(leader("x"), h.ListExchanges), nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("未知状态应返回 400，实际 %d", w.Code)
	}
}

func TestExchangeHandler_Propose_Created(t *testing.T) {
	h := NewExchangeHandler(&mockExchangeService{})

	w := serve("POST", "/exchanges", "/exchanges", withPrincipal(leader("x"), h.ProposeExchange),
		jsonBody(dto.CreateExchangeRequest{Target: "y", TargetSession: "SC", SelfSession: "GA"}))

	if w.Code != http.StatusCreated {
		t.Errorf("期望 201，实际 %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// Reservation / Payment Tests
// ═══════════════════════════════════════════════════════════

func TestReservationHandler_Reserve_RoomsGone(t *testing.T) {
	h := NewReservationHandler(&mockReservationService{reserveErr: service.ErrRoomsGone})

	w := serve("POST", "/schools/x/reservations", "/schools/:id/reservations", withPrincipal(leader("x"), h.Reserve),
		jsonBody(dto.ReserveRequest{Items: []dto.ReserveItem{{Hotel: "h", CheckIn: "2026-11-01", CheckOut: "2026-11-02"}}}))

	if w.Code != http.StatusGone {
		t.Errorf("期望 410，实际 %d", w.Code)
	}
}

func TestReservationHandler_Reserve_EmptyItems(t *testing.T) {
	h := NewReservationHandler(&mockReservationService{})

	w := serve("POST", "/schools/x/reservations", "/schools/:id/reservations", withPrincipal(leader("x"), h.Reserve),
		jsonBody(dto.ReserveRequest{}))

	if w.Code != http.StatusBadRequest {
		t.Errorf("期望 400，实际 %d", w.Code)
	}
}

func TestPaymentHandler_Submit_WrongStage(t *testing.T) {
	h := NewPaymentHandler(&mockPaymentService{submitErr: service.ErrPaymentStage})

	w := serve("POST", "/schools/x/payments", "/schools/:id/payments", withPrincipal(leader("x"), h.SubmitPayment),
		jsonBody(dto.SubmitPaymentRequest{Type: "bank", Images: []string{"a.png"}}))

	if w.Code != http.StatusPreconditionFailed {
		t.Errorf("期望 412，实际 %d", w.Code)
	}
}

func TestPaymentHandler_Review_MailFailureAccepted(t *testing.T) {
	mock := &mockPaymentService{review: &dto.ReviewResult{Stage: "1.complete", Mailed: false, MailError: "sendgrid 返回 503"}}
	h := NewPaymentHandler(mock)
	finance := &access.Principal{User: "finance-1", Access: []string{access.Finance}}

	w := serve("PATCH", "/schools/x/payments", "/schools/:id/payments", withPrincipal(finance, h.ReviewPayment),
		jsonBody(dto.ReviewPaymentRequest{Confirm: true}))

	if w.Code != http.StatusAccepted {
		t.Errorf("邮件失败应返回 202，实际 %d", w.Code)
	}
}

func TestPaymentHandler_Review_Mailed(t *testing.T) {
	h := NewPaymentHandler(&mockPaymentService{review: &dto.ReviewResult{Stage: "1.complete", Mailed: true}})
	finance := &access.Principal{User: "finance-1", Access: []string{access.Finance}}

	w := serve("PATCH", "/schools/x/payments", "/schools/:id/payments", withPrincipal(finance, h.ReviewPayment),
		jsonBody(dto.ReviewPaymentRequest{Confirm: true}))

	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际 %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// ExportHandler Tests
// ═══════════════════════════════════════════════════════════

func TestExportHandler_ExportSeats_Success(t *testing.T) {
	mock := &mockExportService{buf: bytes.NewBufferString("PK-fake-xlsx"), filename: "名额分配_20261015.xlsx"}
	staff := &access.Principal{User: "staff-1", Access: []string{access.Staff}}
	h := NewExportHandler(mock)

	w := serve("GET", "/export/seats", "/export/seats", withPrincipal(staff, h.ExportSeats), nil)

	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("Content-Type 不符: %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") {
		t.Errorf("应以附件下载: %s", cd)
	}
}

func TestExportHandler_ExportSeats_Forbidden(t *testing.T) {
	h := NewExportHandler(&mockExportService{err: service.ErrForbidden})

	w := serve("GET", "/export/seats", "/export/seats", withPrincipal(leader("x"), h.ExportSeats), nil)

	if w.Code != http.StatusForbidden {
		t.Errorf("期望 403，实际 %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// SchoolHandler Representative Tests
// ═══════════════════════════════════════════════════════════

func TestSchoolHandler_UpdateRepresentative_PassThrough(t *testing.T) {
	mock := &mockRepresentativeService{}
	h := NewSchoolHandler(nil, nil, nil, mock)

	w := serve("PATCH", "/schools/x/representatives/r1", "/schools/:id/representatives/:rid",
		withPrincipal(leader("x"), h.UpdateRepresentative), strings.NewReader(`{"name":"张三","withdraw":true}`))

	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d", w.Code)
	}
	if mock.updateSchool != "x" || mock.updateID != "r1" {
		t.Errorf("路径参数应透传，实际 %s/%s", mock.updateSchool, mock.updateID)
	}
	if mock.updateReq == nil || mock.updateReq.Name == nil || *mock.updateReq.Name != "张三" {
		t.Fatalf("姓名应透传，实际 %+v", mock.updateReq)
	}
	if mock.updateReq.Session != nil || mock.updateReq.Note != nil {
		t.Errorf("未提交的字段应为 nil，实际 %+v", mock.updateReq)
	}
}

func TestSchoolHandler_UpdateRepresentative_NotFound(t *testing.T) {
	h := NewSchoolHandler(nil, nil, nil, &mockRepresentativeService{err: service.ErrRepresentativeNotFound})

	w := serve("PATCH", "/schools/x/representatives/r1", "/schools/:id/representatives/:rid",
		withPrincipal(leader("x"), h.UpdateRepresentative), strings.NewReader(`{"note":"备注"}`))

	if w.Code != http.StatusNotFound {
		t.Errorf("期望 404，实际 %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 12007 {
		t.Errorf("期望业务码 12007，实际 %d", resp.Code)
	}
}

func TestSchoolHandler_UpdateRepresentativeNote(t *testing.T) {
	mock := &mockRepresentativeService{}
	dais := &access.Principal{User: "dais-ga", Session: "GA", Access: []string{access.Dais}}
	h := NewSchoolHandler(nil, nil, nil, mock)

	w := serve("PATCH", "/representatives/r1", "/representatives/:rid",
		withPrincipal(dais, h.UpdateRepresentativeNote), strings.NewReader(`{"note":"表现优秀"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d", w.Code)
	}
	if mock.note == nil || mock.note.Note == nil || *mock.note.Note != "表现优秀" {
		t.Errorf("备注应透传，实际 %+v", mock.note)
	}
}

func TestExportHandler_ExportLeaders(t *testing.T) {
	mock := &mockExportService{buf: bytes.NewBufferString("PK-fake-xlsx"), filename: "领队名单_20261015.xlsx"}
	admin := &access.Principal{User: "admin-1", Access: []string{access.Admin}}
	h := NewExportHandler(mock)

	w := serve("GET", "/export/leaders", "/export/leaders", withPrincipal(admin, h.ExportLeaders), nil)

	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d", w.Code)
	}
	if !mock.leadersOnly {
		t.Error("领队导出应只导出领队")
	}
	if ct := w.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("Content-Type 不符: %s", ct)
	}
}

// ═══════════════════════════════════════════════════════════
// Dais / Application / Billing Tests
// ═══════════════════════════════════════════════════════════

func TestDaisHandler_ProcessReimbursement_MailFailureAccepted(t *testing.T) {
	mailed := false
	mock := &mockDaisService{process: &dto.ReimbursementResponse{ID: "d1", Mailed: &mailed, MailError: "sendgrid 返回 503"}}
	finance := &access.Principal{User: "finance-1", Access: []string{access.Finance}}
	h := NewDaisHandler(mock)

	w := serve("POST", "/daises/d1/reimbursement/process", "/daises/:id/reimbursement/process",
		withPrincipal(finance, h.ProcessReimbursement), strings.NewReader(`{"trip":"inbound","confirm_payment":true}`))

	if w.Code != http.StatusAccepted {
		t.Errorf("邮件失败应返回 202，实际 %d", w.Code)
	}
	if mock.processID != "d1" {
		t.Errorf("路径参数应透传，实际 %q", mock.processID)
	}
}

func TestDaisHandler_ProcessReimbursement_BadTrip(t *testing.T) {
	h := NewDaisHandler(&mockDaisService{})
	finance := &access.Principal{User: "finance-1", Access: []string{access.Finance}}

	w := serve("POST", "/daises/d1/reimbursement/process", "/daises/:id/reimbursement/process",
		withPrincipal(finance, h.ProcessReimbursement), strings.NewReader(`{"trip":"roundtrip","approve":true}`))

	if w.Code != http.StatusBadRequest {
		t.Errorf("未知行程应返回 400，实际 %d", w.Code)
	}
}

func TestDaisHandler_ProcessReimbursement_Locked(t *testing.T) {
	h := NewDaisHandler(&mockDaisService{err: service.ErrTripLocked})
	finance := &access.Principal{User: "finance-1", Access: []string{access.Finance}}

	w := serve("POST", "/daises/d1/reimbursement/process", "/daises/:id/reimbursement/process",
		withPrincipal(finance, h.ProcessReimbursement), strings.NewReader(`{"trip":"inbound","reject":true}`))

	if resp := parseResponse(w); resp.Code != 18004 {
		t.Errorf("期望业务码 18004，实际 %d", resp.Code)
	}
}

func TestApplicationHandler_Submit_RouteKind(t *testing.T) {
	mock := &mockApplicationService{}
	h := NewApplicationHandler(mock)

	w := serve("POST", "/volunteers", "/volunteers", h.Submit(model.ApplicationVolunteer), strings.NewReader(`{"name":"小王"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d", w.Code)
	}
	if mock.kind != model.ApplicationVolunteer {
		t.Errorf("报名类型应由路由决定，实际 %q", mock.kind)
	}
	if string(mock.payload) != `{"name":"小王"}` {
		t.Errorf("报名内容应原样透传，实际 %s", mock.payload)
	}
}

func TestBillingHandler_GetBilling_RoundQuery(t *testing.T) {
	mock := &mockBillingService{}
	h := NewBillingHandler(mock)

	w := serve("GET", "/schools/x/billing?round=2", "/schools/:id/billing", withPrincipal(leader("x"), h.GetBilling), nil)

	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d", w.Code)
	}
	if mock.school != "x" || mock.round != "2" {
		t.Errorf("学校与轮次应透传，实际 %s/%s", mock.school, mock.round)
	}
}
