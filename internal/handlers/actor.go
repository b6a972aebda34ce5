package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// parseActorID reads the authenticated user id that the auth middleware
// stored on the request context.
func parseActorID(c *fiber.Ctx) (int64, error) {
	raw, ok := c.Locals("user_id").(string)
	if !ok {
		return 0, errors.New("missing user id")
	}

	actorID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || actorID <= 0 {
		return 0, errors.New("invalid user id")
	}
	return actorID, nil
}
