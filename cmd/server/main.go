package main

import (
	"context"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5"

	"github.com/arda-n/TherapyDeskBack/internal/config"
	"github.com/arda-n/TherapyDeskBack/internal/database"
	"github.com/arda-n/TherapyDeskBack/internal/lock"
	"github.com/arda-n/TherapyDeskBack/internal/models"
	"github.com/arda-n/TherapyDeskBack/internal/repository"
	"github.com/arda-n/TherapyDeskBack/internal/routes"
	"github.com/arda-n/TherapyDeskBack/pkg/utils"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.DBUrl == "" {
		log.Fatal("DB_URL is required")
	}
	if err := database.ConnectDB(cfg.DBUrl); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB()

	var locker lock.Locker
	if cfg.RedisAddr != "" {
		redisLock, err := lock.NewRedisLock(cfg.RedisAddr)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer redisLock.Close()
		locker = redisLock
	}

	if err := seedAdmin(cfg); err != nil {
		log.Fatalf("Failed to seed admin account: %v", err)
	}

	app := fiber.New()

	app.Use(cors.New())
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
	routes.RegisterRoutes(app, cfg, database.DB, locker)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

// seedAdmin creates the configured admin account on first boot. Admins are
// not self-service; assignment management needs at least one.
func seedAdmin(cfg *config.Config) error {
	if cfg.DefaultAdminEmail == "" || cfg.DefaultAdminPassword == "" {
		return nil
	}

	ctx := context.Background()
	userRepo := repository.NewUserRepository(database.DB)

	_, err := userRepo.GetByEmail(ctx, cfg.DefaultAdminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := utils.HashPassword(cfg.DefaultAdminPassword)
	if err != nil {
		return err
	}

	name := cfg.DefaultAdminName
	admin := &models.User{
		Email:        cfg.DefaultAdminEmail,
		PasswordHash: hash,
		Role:         "admin",
		FullName:     &name,
	}
	if err := userRepo.CreateUser(ctx, admin); err != nil {
		return err
	}

	log.Printf("Seeded admin account %s", cfg.DefaultAdminEmail)
	return nil
}
