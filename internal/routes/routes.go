package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arda-n/TherapyDeskBack/internal/config"
	"github.com/arda-n/TherapyDeskBack/internal/handlers"
	"github.com/arda-n/TherapyDeskBack/internal/lock"
	"github.com/arda-n/TherapyDeskBack/internal/middleware"
	"github.com/arda-n/TherapyDeskBack/internal/repository"
	"github.com/arda-n/TherapyDeskBack/internal/services"
	schedws "github.com/arda-n/TherapyDeskBack/internal/websocket"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool, locker lock.Locker) {
	userRepo := repository.NewUserRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	hub := schedws.NewHub()
	go hub.Run()

	schedulingService := services.NewSchedulingService(
		db,
		sessionRepo,
		availabilityRepo,
		assignmentRepo,
		locker,
		hub,
		cfg.SlotDurationMinutes,
	)
	assignmentService := services.NewAssignmentService(assignmentRepo, userRepo)

	authHandler := handlers.NewAuthHandler(userRepo, cfg.JWTSecret)
	availabilityHandler := handlers.NewAvailabilityHandler(schedulingService)
	assignmentHandler := handlers.NewAssignmentHandler(assignmentService)
	sessionHandler := handlers.NewSessionHandler(schedulingService)
	notificationHandler := handlers.NewNotificationHandler(hub, cfg.JWTSecret)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	therapists := authProtected.Group("/therapists")
	therapists.Get("/availability", availabilityHandler.GetAvailability)
	therapists.Put("/availability", availabilityHandler.ReplaceAvailability)
	therapists.Get("/:id/slots", availabilityHandler.ListSlots)

	assignments := authProtected.Group("/assignments")
	assignments.Get("", assignmentHandler.ListAssignments)
	assignments.Post("", assignmentHandler.CreateAssignment)
	assignments.Put("/:id/status", assignmentHandler.SetStatus)

	sessions := authProtected.Group("/sessions")
	sessions.Post("/book", sessionHandler.BookSession)
	sessions.Get("", sessionHandler.ListSessions)
	sessions.Get("/:id", sessionHandler.GetSession)
	sessions.Put("/:id/status", sessionHandler.UpdateStatus)
	sessions.Put("/:id/reschedule", sessionHandler.Reschedule)
	sessions.Put("/:id/report", sessionHandler.AttachReport)
	sessions.Delete("/:id", sessionHandler.Cancel)

	// Registered outside the /v1 auth prefix: browser WebSocket clients
	// cannot set an Authorization header, so WebSocketAuth accepts the
	// token from the query string instead.
	api.Use("/ws", notificationHandler.WebSocketAuth)
	api.Get("/ws", websocket.New(notificationHandler.HandleWebSocket))
}
