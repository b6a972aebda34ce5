package services

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arda-n/TherapyDeskBack/internal/models"
	"github.com/arda-n/TherapyDeskBack/internal/repository"
)

var (
	ErrClientNotFound    = errors.New("client not found")
	ErrTherapistNotFound = errors.New("therapist not found")
	ErrAssignmentExists  = errors.New("active assignment already exists")
)

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type AssignmentService struct {
	assignmentRepo *repository.AssignmentRepository
	userRepo       userReader
}

func NewAssignmentService(
	assignmentRepo *repository.AssignmentRepository,
	userRepo userReader,
) *AssignmentService {
	return &AssignmentService{
		assignmentRepo: assignmentRepo,
		userRepo:       userRepo,
	}
}

type CreateAssignmentInput struct {
	ClientID    int64
	TherapistID int64
	StartDate   time.Time
	Notes       *string
}

// CreateAssignment opens an active client-therapist pairing. At most one
// active assignment may exist per pair; the partial unique index on
// assignments turns a second attempt into ErrAssignmentExists.
func (s *AssignmentService) CreateAssignment(
	ctx context.Context,
	input CreateAssignmentInput,
) (*models.Assignment, error) {
	if input.ClientID <= 0 || input.TherapistID <= 0 || input.ClientID == input.TherapistID {
		return nil, ErrInvalidInput
	}

	client, err := s.userRepo.GetByID(ctx, input.ClientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	if client.Role != "client" {
		return nil, ErrInvalidInput
	}

	therapist, err := s.userRepo.GetByID(ctx, input.TherapistID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTherapistNotFound
		}
		return nil, err
	}
	if therapist.Role != "therapist" {
		return nil, ErrInvalidInput
	}

	startDate := input.StartDate
	if startDate.IsZero() {
		startDate = time.Now()
	}

	assignment, err := s.assignmentRepo.Create(ctx, repository.CreateAssignmentInput{
		ClientID:    input.ClientID,
		TherapistID: input.TherapistID,
		StartDate:   startDate,
		Notes:       input.Notes,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAssignmentExists
		}
		return nil, err
	}
	return assignment, nil
}

func (s *AssignmentService) ListForClient(
	ctx context.Context,
	clientID int64,
) ([]models.AssignmentSummary, error) {
	return s.assignmentRepo.ListActiveForClient(ctx, clientID)
}

// SetAssignmentStatus is the administrative end/resume transition. Ending
// an assignment deliberately leaves existing sessions untouched: therapy
// relationships pause and resume, and the client keeps visibility of what
// is already on the calendar.
func (s *AssignmentService) SetAssignmentStatus(
	ctx context.Context,
	assignmentID int64,
	status models.AssignmentStatus,
	endDate *time.Time,
) (*models.Assignment, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	if status == models.AssignmentActive {
		endDate = nil
	} else if endDate == nil {
		today := time.Now()
		endDate = &today
	}

	return s.assignmentRepo.SetStatus(ctx, assignmentID, status, endDate)
}
