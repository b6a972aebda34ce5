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
	"github.com/arda-n/TherapyDeskBack/internal/services"
)

type AssignmentHandler struct {
	service assignmentService
}

type assignmentService interface {
	CreateAssignment(ctx context.Context, input services.CreateAssignmentInput) (*models.Assignment, error)
	ListForClient(ctx context.Context, clientID int64) ([]models.AssignmentSummary, error)
	SetAssignmentStatus(ctx context.Context, assignmentID int64, status models.AssignmentStatus, endDate *time.Time) (*models.Assignment, error)
}

func NewAssignmentHandler(service *services.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{service: service}
}

type createAssignmentRequest struct {
	ClientID    int64   `json:"client_id"`
	TherapistID int64   `json:"therapist_id"`
	StartDate   string  `json:"start_date"`
	Notes       *string `json:"notes"`
}

type setAssignmentStatusRequest struct {
	Status  string  `json:"status"`
	EndDate *string `json:"end_date"`
}

// ListAssignments feeds the booking screen's therapist picker. Clients see
// their own active assignments; admins may look up any client.
func (h *AssignmentHandler) ListAssignments(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || (role != "client" && role != "admin") {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	clientID := actorID
	if role == "admin" {
		clientID, err = strconv.ParseInt(strings.TrimSpace(c.Query("client_id")), 10, 64)
		if err != nil || clientID <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "client_id is required"})
		}
	}

	assignments, err := h.service.ListForClient(c.Context(), clientID)
	if err != nil {
		return mapAssignmentError(c, err)
	}

	return c.JSON(fiber.Map{"assignments": assignments})
}

func (h *AssignmentHandler) CreateAssignment(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != "admin" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	var req createAssignmentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	var startDate time.Time
	if strings.TrimSpace(req.StartDate) != "" {
		parsed, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(req.StartDate), time.Local)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "start_date must be in YYYY-MM-DD format"})
		}
		startDate = parsed
	}

	assignment, err := h.service.CreateAssignment(c.Context(), services.CreateAssignmentInput{
		ClientID:    req.ClientID,
		TherapistID: req.TherapistID,
		StartDate:   startDate,
		Notes:       req.Notes,
	})
	if err != nil {
		return mapAssignmentError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"assignment": assignment})
}

func (h *AssignmentHandler) SetStatus(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != "admin" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	assignmentID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || assignmentID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid assignment id"})
	}

	var req setAssignmentStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	var endDate *time.Time
	if req.EndDate != nil && strings.TrimSpace(*req.EndDate) != "" {
		parsed, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(*req.EndDate), time.Local)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "end_date must be in YYYY-MM-DD format"})
		}
		endDate = &parsed
	}

	assignment, err := h.service.SetAssignmentStatus(
		c.Context(),
		assignmentID,
		models.AssignmentStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		endDate,
	)
	if err != nil {
		return mapAssignmentError(c, err)
	}

	return c.JSON(fiber.Map{"assignment": assignment})
}

func mapAssignmentError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrInvalidStatus):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrAssignmentExists):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "An active assignment already exists for this pair"})
	case errors.Is(err, services.ErrClientNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Client not found"})
	case errors.Is(err, services.ErrTherapistNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Therapist not found"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Assignment not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process assignment request"})
	}
}
