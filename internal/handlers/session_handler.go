package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/arda-n/TherapyDeskBack/internal/models"
	"github.com/arda-n/TherapyDeskBack/internal/repository"
	"github.com/arda-n/TherapyDeskBack/internal/services"
)

type SessionHandler struct {
	service schedulingService
}

type schedulingService interface {
	BookSession(ctx context.Context, clientID int64, input services.BookSessionInput) (*models.Session, error)
	CreateManualSession(ctx context.Context, therapistID int64, clientID int64, window services.SessionWindow) (*models.Session, error)
	ListSessions(ctx context.Context, actorID int64, role string, filter repository.SessionListFilter) ([]models.Session, int, error)
	GetSession(ctx context.Context, actorID int64, role string, sessionID int64) (*models.Session, error)
	UpdateStatus(ctx context.Context, actorID int64, role string, sessionID int64, requestedStatus string) (*models.Session, error)
	RescheduleSession(ctx context.Context, actorID int64, role string, sessionID int64, window services.SessionWindow) (*models.Session, error)
	CancelSession(ctx context.Context, actorID int64, role string, sessionID int64) error
	AttachReport(ctx context.Context, actorID int64, role string, sessionID int64, content string) (*models.Session, error)
}

func NewSessionHandler(service *services.SchedulingService) *SessionHandler {
	return &SessionHandler{service: service}
}

type sessionWindowRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type bookSessionRequest struct {
	TherapistID int64 `json:"therapist_id"`
	ClientID    int64 `json:"client_id"`
	sessionWindowRequest
}

type updateSessionStatusRequest struct {
	Status string `json:"status"`
}

type attachReportRequest struct {
	Content string `json:"content"`
}

// BookSession creates a session. Clients request a slot with one of their
// therapists; therapists add a manual entry for an assigned client, which
// skips the approval step.
func (h *SessionHandler) BookSession(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || (role != "client" && role != "therapist") {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req bookSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	window, err := parseSessionWindow(req.sessionWindowRequest)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var session *models.Session
	if role == "therapist" {
		if req.ClientID <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "client_id is required"})
		}
		session, err = h.service.CreateManualSession(c.Context(), actorID, req.ClientID, window)
	} else {
		if req.TherapistID <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "therapist_id is required"})
		}
		session, err = h.service.BookSession(c.Context(), actorID, services.BookSessionInput{
			TherapistID: req.TherapistID,
			Window:      window,
		})
	}
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) ListSessions(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || (role != "client" && role != "therapist") {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	timeframe := strings.TrimSpace(c.Query("timeframe"))
	if timeframe != "" && timeframe != "upcoming" && timeframe != "past" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "timeframe must be upcoming or past"})
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", defaultPageLimit)
	if limit < 1 || limit > maxPageLimit {
		limit = defaultPageLimit
	}

	sessions, total, err := h.service.ListSessions(c.Context(), actorID, role, repository.SessionListFilter{
		Status:    strings.TrimSpace(c.Query("status")),
		Timeframe: timeframe,
		Limit:     limit,
		Offset:    (page - 1) * limit,
	})
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{
		"sessions":   sessions,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || (role != "client" && role != "therapist") {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	session, err := h.service.GetSession(c.Context(), actorID, role, sessionID)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) UpdateStatus(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || (role != "client" && role != "therapist") {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req updateSessionStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	session, err := h.service.UpdateStatus(c.Context(), actorID, role, sessionID, req.Status)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) Reschedule(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || (role != "client" && role != "therapist") {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req sessionWindowRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	window, err := parseSessionWindow(req)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	session, err := h.service.RescheduleSession(c.Context(), actorID, role, sessionID, window)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) Cancel(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || (role != "client" && role != "therapist") {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	if err := h.service.CancelSession(c.Context(), actorID, role, sessionID); err != nil {
		return mapSessionError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *SessionHandler) AttachReport(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != "therapist" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req attachReportRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	session, err := h.service.AttachReport(c.Context(), actorID, role, sessionID, req.Content)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func parseSessionID(c *fiber.Ctx) (int64, error) {
	sessionID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || sessionID <= 0 {
		return 0, errors.New("invalid session id")
	}
	return sessionID, nil
}

func parseSessionWindow(req sessionWindowRequest) (services.SessionWindow, error) {
	date, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(req.Date), time.Local)
	if err != nil {
		return services.SessionWindow{}, errors.New("date must be in YYYY-MM-DD format")
	}

	startMinute, err := services.ParseClock(strings.TrimSpace(req.StartTime))
	if err != nil {
		return services.SessionWindow{}, errors.New("start_time must be in HH:MM format")
	}

	endMinute, err := services.ParseClock(strings.TrimSpace(req.EndTime))
	if err != nil {
		return services.SessionWindow{}, errors.New("end_time must be in HH:MM format")
	}

	return services.SessionWindow{
		Date:        date,
		StartMinute: startMinute,
		EndMinute:   endMinute,
	}, nil
}

func mapSessionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrInvalidStatus):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidWindow):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Requested window is invalid or in the past"})
	case errors.Is(err, services.ErrNotAssigned):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "No active assignment with this therapist, please contact support"})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrSlotUnavailable):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Requested time is no longer available, please pick another slot"})
	case errors.Is(err, services.ErrCalendarBusy):
		return c.Status(fiber.StatusLocked).JSON(fiber.Map{"error": "Another booking is in progress for this therapist, try again"})
	case errors.Is(err, services.ErrIllegalTransition):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Session status does not allow this operation"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process session request"})
	}
}
