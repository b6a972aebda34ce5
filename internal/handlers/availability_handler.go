package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/arda-n/TherapyDeskBack/internal/models"
	"github.com/arda-n/TherapyDeskBack/internal/services"
)

type AvailabilityHandler struct {
	service availabilityService
}

type availabilityService interface {
	AvailableSlots(ctx context.Context, therapistID int64, date time.Time, slotMinutes int) ([]models.Slot, error)
	GetAvailability(ctx context.Context, therapistID int64) ([]models.AvailabilityRule, error)
	ReplaceAvailability(ctx context.Context, therapistID int64, rules []models.AvailabilityRule) ([]models.AvailabilityRule, error)
}

func NewAvailabilityHandler(service *services.SchedulingService) *AvailabilityHandler {
	return &AvailabilityHandler{service: service}
}

type availabilityRuleDTO struct {
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type replaceAvailabilityRequest struct {
	Rules []availabilityRuleDTO `json:"rules"`
}

// ListSlots serves the booking calendar: every candidate slot for the
// therapist on the requested date, open ones flagged available.
func (h *AvailabilityHandler) ListSlots(c *fiber.Ctx) error {
	therapistID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || therapistID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid therapist id"})
	}

	date, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(c.Query("date")), time.Local)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "date must be in YYYY-MM-DD format"})
	}

	slotMinutes := c.QueryInt("duration_minutes", 0)
	if slotMinutes < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "duration_minutes must be greater than 0"})
	}

	slots, err := h.service.AvailableSlots(c.Context(), therapistID, date, slotMinutes)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load slots"})
	}

	return c.JSON(fiber.Map{
		"date":  date.Format("2006-01-02"),
		"slots": slots,
	})
}

func (h *AvailabilityHandler) GetAvailability(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != "therapist" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	therapistID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	rules, err := h.service.GetAvailability(c.Context(), therapistID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load availability"})
	}

	return c.JSON(fiber.Map{"rules": rulesToDTO(rules)})
}

// ReplaceAvailability swaps the caller's whole weekly rule set. There is
// no partial edit; the settings screen always submits the full set.
func (h *AvailabilityHandler) ReplaceAvailability(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != "therapist" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	therapistID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req replaceAvailabilityRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	rules := make([]models.AvailabilityRule, 0, len(req.Rules))
	for _, dto := range req.Rules {
		rule, err := ruleFromDTO(dto)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		rules = append(rules, rule)
	}

	saved, err := h.service.ReplaceAvailability(c.Context(), therapistID, rules)
	if err != nil {
		if errors.Is(err, services.ErrInvalidWindow) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Rules must have day_of_week 0-6 and start_time before end_time"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save availability"})
	}

	return c.JSON(fiber.Map{"rules": rulesToDTO(saved)})
}

func ruleFromDTO(dto availabilityRuleDTO) (models.AvailabilityRule, error) {
	startMinute, err := services.ParseClock(strings.TrimSpace(dto.StartTime))
	if err != nil {
		return models.AvailabilityRule{}, errors.New("start_time must be in HH:MM format")
	}
	endMinute, err := services.ParseClock(strings.TrimSpace(dto.EndTime))
	if err != nil {
		return models.AvailabilityRule{}, errors.New("end_time must be in HH:MM format")
	}
	return models.AvailabilityRule{
		DayOfWeek:   dto.DayOfWeek,
		StartMinute: startMinute,
		EndMinute:   endMinute,
	}, nil
}

func rulesToDTO(rules []models.AvailabilityRule) []availabilityRuleDTO {
	dtos := make([]availabilityRuleDTO, 0, len(rules))
	for _, rule := range rules {
		dtos = append(dtos, availabilityRuleDTO{
			DayOfWeek: rule.DayOfWeek,
			StartTime: services.FormatClock(rule.StartMinute),
			EndTime:   services.FormatClock(rule.EndMinute),
		})
	}
	return dtos
}
