package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/arda-n/TherapyDeskBack/internal/models"
	"github.com/arda-n/TherapyDeskBack/internal/repository"
	"github.com/arda-n/TherapyDeskBack/internal/services"
)

type stubSchedulingService struct {
	bookResult         *models.Session
	bookErr            error
	listResult         []models.Session
	listTotal          int
	listErr            error
	getResult          *models.Session
	getErr             error
	updateStatusResult *models.Session
	updateStatusErr    error
	rescheduleResult   *models.Session
	rescheduleErr      error
	cancelErr          error
	reportResult       *models.Session
	reportErr          error
	lastBookInput      services.BookSessionInput
	lastWindow         services.SessionWindow
	lastActorID        int64
	lastManualClientID int64
	lastRole           string
	lastSessionID      int64
	lastStatus         string
	lastReportContent  string
	lastListFilter     repository.SessionListFilter
}

func (s *stubSchedulingService) BookSession(_ context.Context, clientID int64, input services.BookSessionInput) (*models.Session, error) {
	s.lastActorID = clientID
	s.lastBookInput = input
	return s.bookResult, s.bookErr
}

func (s *stubSchedulingService) CreateManualSession(_ context.Context, therapistID int64, clientID int64, window services.SessionWindow) (*models.Session, error) {
	s.lastActorID = therapistID
	s.lastManualClientID = clientID
	s.lastWindow = window
	return s.bookResult, s.bookErr
}

func (s *stubSchedulingService) ListSessions(_ context.Context, actorID int64, role string, filter repository.SessionListFilter) ([]models.Session, int, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastListFilter = filter
	return s.listResult, s.listTotal, s.listErr
}

func (s *stubSchedulingService) GetSession(_ context.Context, actorID int64, role string, sessionID int64) (*models.Session, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastSessionID = sessionID
	return s.getResult, s.getErr
}

func (s *stubSchedulingService) UpdateStatus(_ context.Context, actorID int64, role string, sessionID int64, requestedStatus string) (*models.Session, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastSessionID = sessionID
	s.lastStatus = requestedStatus
	return s.updateStatusResult, s.updateStatusErr
}

func (s *stubSchedulingService) RescheduleSession(_ context.Context, actorID int64, role string, sessionID int64, window services.SessionWindow) (*models.Session, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastSessionID = sessionID
	s.lastWindow = window
	return s.rescheduleResult, s.rescheduleErr
}

func (s *stubSchedulingService) CancelSession(_ context.Context, actorID int64, role string, sessionID int64) error {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastSessionID = sessionID
	return s.cancelErr
}

func (s *stubSchedulingService) AttachReport(_ context.Context, actorID int64, role string, sessionID int64, content string) (*models.Session, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastSessionID = sessionID
	s.lastReportContent = content
	return s.reportResult, s.reportErr
}

func sessionTestApp(service *stubSchedulingService, role, userID string) *fiber.App {
	handler := &SessionHandler{service: service}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("role", role)
		c.Locals("user_id", userID)
		return c.Next()
	})
	app.Post("/api/v1/sessions/book", handler.BookSession)
	app.Get("/api/v1/sessions", handler.ListSessions)
	app.Get("/api/v1/sessions/:id", handler.GetSession)
	app.Put("/api/v1/sessions/:id/status", handler.UpdateStatus)
	app.Put("/api/v1/sessions/:id/reschedule", handler.Reschedule)
	app.Put("/api/v1/sessions/:id/report", handler.AttachReport)
	app.Delete("/api/v1/sessions/:id", handler.Cancel)
	return app
}

func TestBookSessionReturnsCreatedSession(t *testing.T) {
	service := &stubSchedulingService{
		bookResult: &models.Session{
			ID:          91,
			ClientID:    42,
			TherapistID: 7,
			Status:      models.SessionPending,
		},
	}
	app := sessionTestApp(service, "client", "42")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/book", strings.NewReader(`{
		"therapist_id": 7,
		"date": "2026-09-15",
		"start_time": "09:00",
		"end_time": "10:00"
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastActorID != 42 {
		t.Fatalf("expected actor id 42, got %d", service.lastActorID)
	}
	if service.lastBookInput.TherapistID != 7 {
		t.Fatalf("expected therapist id 7, got %d", service.lastBookInput.TherapistID)
	}
	if service.lastBookInput.Window.StartMinute != 9*60 || service.lastBookInput.Window.EndMinute != 10*60 {
		t.Fatalf("unexpected window: %+v", service.lastBookInput.Window)
	}
}

func TestBookSessionTherapistManualEntry(t *testing.T) {
	service := &stubSchedulingService{
		bookResult: &models.Session{
			ID:          92,
			ClientID:    42,
			TherapistID: 7,
			Status:      models.SessionApproved,
			Verified:    true,
		},
	}
	app := sessionTestApp(service, "therapist", "7")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/book", strings.NewReader(`{
		"client_id": 42,
		"date": "2026-09-15",
		"start_time": "09:00",
		"end_time": "10:00"
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastActorID != 7 {
		t.Fatalf("expected therapist actor 7, got %d", service.lastActorID)
	}
	if service.lastManualClientID != 42 {
		t.Fatalf("expected client id 42, got %d", service.lastManualClientID)
	}
}

func TestBookSessionRejectsAdminActor(t *testing.T) {
	service := &stubSchedulingService{}
	app := sessionTestApp(service, "admin", "1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/book", strings.NewReader(`{
		"therapist_id": 7,
		"date": "2026-09-15",
		"start_time": "09:00",
		"end_time": "10:00"
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestBookSessionReturnsConflictWhenSlotTaken(t *testing.T) {
	service := &stubSchedulingService{bookErr: services.ErrSlotUnavailable}
	app := sessionTestApp(service, "client", "42")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/book", strings.NewReader(`{
		"therapist_id": 7,
		"date": "2026-09-15",
		"start_time": "09:00",
		"end_time": "10:00"
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestBookSessionRejectsMalformedWindow(t *testing.T) {
	service := &stubSchedulingService{}
	app := sessionTestApp(service, "client", "42")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/book", strings.NewReader(`{
		"therapist_id": 7,
		"date": "15-09-2026",
		"start_time": "09:00",
		"end_time": "10:00"
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestListSessionsPassesStatusAndTimeframe(t *testing.T) {
	service := &stubSchedulingService{
		listResult: []models.Session{{ID: 5, Status: models.SessionApproved}},
		listTotal:  1,
	}
	app := sessionTestApp(service, "therapist", "9")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions?status=approved&timeframe=upcoming", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastRole != "therapist" {
		t.Fatalf("expected therapist role, got %q", service.lastRole)
	}
	if service.lastListFilter.Status != "approved" || service.lastListFilter.Timeframe != "upcoming" {
		t.Fatalf("unexpected filter: %+v", service.lastListFilter)
	}

	var body struct {
		Sessions   []models.Session      `json:"sessions"`
		Pagination models.PaginationMeta `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(body.Sessions) != 1 || body.Pagination.Total != 1 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestListSessionsRejectsUnknownTimeframe(t *testing.T) {
	service := &stubSchedulingService{}
	app := sessionTestApp(service, "client", "42")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions?timeframe=someday", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetSessionReturnsNotFound(t *testing.T) {
	service := &stubSchedulingService{getErr: pgx.ErrNoRows}
	app := sessionTestApp(service, "client", "42")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/999", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestUpdateStatusReturnsUnprocessableForIllegalTransition(t *testing.T) {
	service := &stubSchedulingService{updateStatusErr: services.ErrIllegalTransition}
	app := sessionTestApp(service, "therapist", "7")

	req := httptest.NewRequest(http.MethodPut, "/api/v1/sessions/55/status", strings.NewReader(`{"status":"approve"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if service.lastStatus != "approve" {
		t.Fatalf("expected forwarded status, got %q", service.lastStatus)
	}
}

func TestRescheduleForwardsWindowAndReturnsPending(t *testing.T) {
	service := &stubSchedulingService{
		rescheduleResult: &models.Session{
			ID:          55,
			ClientID:    42,
			TherapistID: 7,
			Status:      models.SessionPending,
		},
	}
	app := sessionTestApp(service, "client", "42")

	req := httptest.NewRequest(http.MethodPut, "/api/v1/sessions/55/reschedule", strings.NewReader(`{
		"date": "2026-09-16",
		"start_time": "14:00",
		"end_time": "15:00"
	}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastSessionID != 55 {
		t.Fatalf("expected session id 55, got %d", service.lastSessionID)
	}
	if service.lastWindow.StartMinute != 14*60 || service.lastWindow.EndMinute != 15*60 {
		t.Fatalf("unexpected window: %+v", service.lastWindow)
	}
	expectedDate := time.Date(2026, 9, 16, 0, 0, 0, 0, time.Local)
	if !service.lastWindow.Date.Equal(expectedDate) {
		t.Fatalf("expected date %v, got %v", expectedDate, service.lastWindow.Date)
	}

	var body struct {
		Session models.Session `json:"session"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Session.Status != models.SessionPending {
		t.Fatalf("expected pending status, got %q", body.Session.Status)
	}
}

func TestCancelReturnsNoContent(t *testing.T) {
	service := &stubSchedulingService{}
	app := sessionTestApp(service, "client", "42")

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/55", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if service.lastSessionID != 55 {
		t.Fatalf("expected session id 55, got %d", service.lastSessionID)
	}
}

func TestCancelCompletedReturnsUnprocessable(t *testing.T) {
	service := &stubSchedulingService{cancelErr: services.ErrIllegalTransition}
	app := sessionTestApp(service, "client", "42")

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/55", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestAttachReportRejectsClientActor(t *testing.T) {
	service := &stubSchedulingService{}
	app := sessionTestApp(service, "client", "42")

	req := httptest.NewRequest(http.MethodPut, "/api/v1/sessions/55/report", strings.NewReader(`{"content":"notes"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestAttachReportForwardsContent(t *testing.T) {
	service := &stubSchedulingService{
		reportResult: &models.Session{ID: 55, TherapistID: 7, Status: models.SessionCompleted},
	}
	app := sessionTestApp(service, "therapist", "7")

	req := httptest.NewRequest(http.MethodPut, "/api/v1/sessions/55/report", strings.NewReader(`{"content":"made good progress"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastReportContent != "made good progress" {
		t.Fatalf("expected forwarded content, got %q", service.lastReportContent)
	}
}

func TestMapSessionErrorReturnsLockedForBusyCalendar(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return mapSessionError(c, services.ErrCalendarBusy)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusLocked {
		t.Fatalf("expected 423, got %d", resp.StatusCode)
	}
}

func TestMapSessionErrorDefaultsToInternalServerError(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return mapSessionError(c, errors.New("boom"))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
}
