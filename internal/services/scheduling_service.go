package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arda-n/TherapyDeskBack/internal/lock"
	"github.com/arda-n/TherapyDeskBack/internal/models"
	"github.com/arda-n/TherapyDeskBack/internal/repository"
)

var (
	ErrForbidden         = errors.New("forbidden")
	ErrNotAssigned       = errors.New("no active assignment with this therapist")
	ErrInvalidWindow     = errors.New("invalid session window")
	ErrSlotUnavailable   = errors.New("slot unavailable")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidInput      = errors.New("invalid input")
	ErrCalendarBusy      = errors.New("therapist calendar is busy")
)

const bookingLockTTL = 10 * time.Second

// assignmentGate answers whether a client may book with a therapist.
type assignmentGate interface {
	HasActive(ctx context.Context, clientID, therapistID int64) (bool, error)
}

type SchedulingService struct {
	db               *pgxpool.Pool
	sessionRepo      *repository.SessionRepository
	availabilityRepo *repository.AvailabilityRepository
	assignments      assignmentGate
	locker           lock.Locker
	notifier         Notifier
	slotMinutes      int
}

// NewSchedulingService wires the booking engine. locker and notifier may
// be nil: the redis lock is an optional fast-fail layer in front of the
// database conflict check, and notifications are best-effort.
func NewSchedulingService(
	db *pgxpool.Pool,
	sessionRepo *repository.SessionRepository,
	availabilityRepo *repository.AvailabilityRepository,
	assignments assignmentGate,
	locker lock.Locker,
	notifier Notifier,
	slotMinutes int,
) *SchedulingService {
	if slotMinutes <= 0 {
		slotMinutes = 60
	}
	return &SchedulingService{
		db:               db,
		sessionRepo:      sessionRepo,
		availabilityRepo: availabilityRepo,
		assignments:      assignments,
		locker:           locker,
		notifier:         notifier,
		slotMinutes:      slotMinutes,
	}
}

type SessionWindow struct {
	Date        time.Time
	StartMinute int
	EndMinute   int
}

func (w SessionWindow) startsAt() time.Time {
	return atMinute(w.Date, w.StartMinute)
}

func (w SessionWindow) endsAt() time.Time {
	return atMinute(w.Date, w.EndMinute)
}

func (w SessionWindow) validate(now time.Time) error {
	if w.StartMinute < 0 || w.EndMinute > minutesPerDay || w.StartMinute >= w.EndMinute {
		return ErrInvalidWindow
	}
	if w.startsAt().Before(now) {
		return ErrInvalidWindow
	}
	return nil
}

type BookSessionInput struct {
	TherapistID int64
	Window      SessionWindow
}

// AvailableSlots recomputes the open slots for one therapist and date.
// Nothing is cached: availability or bookings may have changed since the
// last call, and a stale read only costs the caller a rejected booking.
func (s *SchedulingService) AvailableSlots(
	ctx context.Context,
	therapistID int64,
	date time.Time,
	slotMinutes int,
) ([]models.Slot, error) {
	if slotMinutes <= 0 {
		slotMinutes = s.slotMinutes
	}

	rules, err := s.availabilityRepo.GetRules(ctx, therapistID)
	if err != nil {
		return nil, err
	}
	dayRules := rulesForWeekday(rules, date.Weekday())

	dayStart := atMinute(date, 0)
	sessions, err := s.sessionRepo.ListForTherapistDay(
		ctx,
		therapistID,
		dayStart,
		dayStart.AddDate(0, 0, 1),
	)
	if err != nil {
		return nil, err
	}

	busy := busyWindows(sessions, dayStart)

	now := time.Now().In(date.Location())
	nowMinute := -1
	if sameDate(date, now) {
		nowMinute = now.Hour()*60 + now.Minute()
	}

	return buildSlots(dayRules, busy, slotMinutes, nowMinute), nil
}

// BookSession creates a pending session for the client. The overlap check
// and the insert run in one transaction under a per-therapist advisory
// lock; the sessions table additionally carries an exclusion constraint on
// overlapping non-terminal windows, so two racing bookings can never both
// commit.
func (s *SchedulingService) BookSession(
	ctx context.Context,
	clientID int64,
	input BookSessionInput,
) (*models.Session, error) {
	if input.TherapistID <= 0 || clientID == input.TherapistID {
		return nil, ErrInvalidInput
	}
	if err := input.Window.validate(time.Now()); err != nil {
		return nil, err
	}

	bookable, err := s.assignments.HasActive(ctx, clientID, input.TherapistID)
	if err != nil {
		return nil, err
	}
	if !bookable {
		return nil, ErrNotAssigned
	}

	unlock, err := s.acquireCalendarLock(ctx, input.TherapistID, input.Window.Date)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var session *models.Session
	err = s.withTherapistTx(ctx, input.TherapistID, func(tx pgx.Tx) error {
		if err := s.checkWindowFree(ctx, tx, input.TherapistID, input.Window, 0); err != nil {
			return err
		}

		created, err := repository.NewSessionRepository(tx).Create(ctx, repository.CreateSessionInput{
			ClientID:    clientID,
			TherapistID: input.TherapistID,
			StartsAt:    input.Window.startsAt(),
			EndsAt:      input.Window.endsAt(),
		})
		if err != nil {
			return err
		}
		session = created
		return nil
	})
	if err != nil {
		return nil, mapOverlapError(err)
	}

	s.notify(sessionEvent(EventSessionRequested, session, "Waiting for therapist confirmation"))
	return session, nil
}

// CreateManualSession lets a therapist put a session on their own calendar
// for an assigned client. Manual entries skip the approval step: the
// therapist placed them, so they start approved and verified.
func (s *SchedulingService) CreateManualSession(
	ctx context.Context,
	therapistID int64,
	clientID int64,
	window SessionWindow,
) (*models.Session, error) {
	if clientID <= 0 || clientID == therapistID {
		return nil, ErrInvalidInput
	}
	if err := window.validate(time.Now()); err != nil {
		return nil, err
	}

	assigned, err := s.assignments.HasActive(ctx, clientID, therapistID)
	if err != nil {
		return nil, err
	}
	if !assigned {
		return nil, ErrNotAssigned
	}

	unlock, err := s.acquireCalendarLock(ctx, therapistID, window.Date)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var session *models.Session
	err = s.withTherapistTx(ctx, therapistID, func(tx pgx.Tx) error {
		if err := s.checkWindowFree(ctx, tx, therapistID, window, 0); err != nil {
			return err
		}

		created, err := repository.NewSessionRepository(tx).Create(ctx, repository.CreateSessionInput{
			ClientID:    clientID,
			TherapistID: therapistID,
			StartsAt:    window.startsAt(),
			EndsAt:      window.endsAt(),
			Status:      models.SessionApproved,
			Verified:    true,
		})
		if err != nil {
			return err
		}
		session = created
		return nil
	})
	if err != nil {
		return nil, mapOverlapError(err)
	}

	s.notify(sessionEvent(EventSessionApproved, session, "Session added by your therapist"))
	return session, nil
}

// RescheduleSession moves a pending or approved session to a new window,
// re-validating it exactly like a fresh booking except that the session's
// own current window is excluded from the conflict check. On success the
// session drops back to pending for re-approval.
func (s *SchedulingService) RescheduleSession(
	ctx context.Context,
	actorID int64,
	role string,
	sessionID int64,
	window SessionWindow,
) (*models.Session, error) {
	if err := window.validate(time.Now()); err != nil {
		return nil, err
	}

	current, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !canAccessSession(role, actorID, current) {
		return nil, ErrForbidden
	}

	unlock, err := s.acquireCalendarLock(ctx, current.TherapistID, window.Date)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var session *models.Session
	err = s.withTherapistTx(ctx, current.TherapistID, func(tx pgx.Tx) error {
		txSessionRepo := repository.NewSessionRepository(tx)

		locked, err := txSessionRepo.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if locked.Status != models.SessionPending && locked.Status != models.SessionApproved {
			return ErrIllegalTransition
		}

		if err := s.checkWindowFree(ctx, tx, locked.TherapistID, window, sessionID); err != nil {
			return err
		}

		updated, err := txSessionRepo.Reschedule(ctx, sessionID, window.startsAt(), window.endsAt())
		if err != nil {
			return err
		}
		session = updated
		return nil
	})
	if err != nil {
		return nil, mapOverlapError(err)
	}

	s.notify(sessionEvent(EventSessionRescheduled, session, "Session rescheduled, waiting for therapist confirmation"))
	return session, nil
}

// CancelSession hard-deletes a non-completed session. Cancelling an id
// that is already gone reports not-found rather than pretending success.
func (s *SchedulingService) CancelSession(
	ctx context.Context,
	actorID int64,
	role string,
	sessionID int64,
) error {
	var session *models.Session
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		txSessionRepo := repository.NewSessionRepository(tx)

		locked, err := txSessionRepo.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if !canAccessSession(role, actorID, locked) {
			return ErrForbidden
		}
		if locked.Status == models.SessionCompleted {
			return ErrIllegalTransition
		}

		if err := txSessionRepo.Delete(ctx, sessionID); err != nil {
			return err
		}
		session = locked
		return nil
	})
	if err != nil {
		return err
	}

	s.notify(sessionEvent(EventSessionCancelled, session, "Session cancelled"))
	return nil
}

// UpdateStatus applies a therapist-driven lifecycle transition. Clients
// never transition statuses; they cancel or reschedule instead.
func (s *SchedulingService) UpdateStatus(
	ctx context.Context,
	actorID int64,
	role string,
	sessionID int64,
	requestedStatus string,
) (*models.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if role != "therapist" || session.TherapistID != actorID {
		return nil, ErrForbidden
	}

	nextStatus, err := normalizeRequestedStatus(requestedStatus)
	if err != nil {
		return nil, err
	}
	if !session.Status.CanTransitionTo(nextStatus) {
		return nil, ErrIllegalTransition
	}

	updated, err := s.sessionRepo.UpdateStatusIfCurrent(ctx, sessionID, session.Status, nextStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIllegalTransition
		}
		return nil, err
	}

	s.notify(sessionEvent(transitionEventType(nextStatus), updated, transitionMessage(nextStatus)))
	return updated, nil
}

// AttachReport stores the therapist's session report. Reports and
// completion are independent signals: attaching one never changes status.
func (s *SchedulingService) AttachReport(
	ctx context.Context,
	actorID int64,
	role string,
	sessionID int64,
	content string,
) (*models.Session, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrInvalidInput
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if role != "therapist" || session.TherapistID != actorID {
		return nil, ErrForbidden
	}
	if session.Status != models.SessionApproved && session.Status != models.SessionCompleted {
		return nil, ErrIllegalTransition
	}

	updated, err := s.sessionRepo.AttachReport(ctx, sessionID, content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIllegalTransition
		}
		return nil, err
	}
	return updated, nil
}

func (s *SchedulingService) GetSession(
	ctx context.Context,
	actorID int64,
	role string,
	sessionID int64,
) (*models.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !canAccessSession(role, actorID, session) {
		return nil, ErrForbidden
	}
	return session, nil
}

func (s *SchedulingService) ListSessions(
	ctx context.Context,
	actorID int64,
	role string,
	filter repository.SessionListFilter,
) ([]models.Session, int, error) {
	filter.ActorID = actorID
	filter.Role = role

	sessions, err := s.sessionRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.sessionRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	return sessions, total, nil
}

func (s *SchedulingService) GetAvailability(
	ctx context.Context,
	therapistID int64,
) ([]models.AvailabilityRule, error) {
	return s.availabilityRepo.GetRules(ctx, therapistID)
}

// ReplaceAvailability swaps the therapist's whole weekly rule set in one
// transaction. There is no partial update: a failure leaves the previous
// set intact.
func (s *SchedulingService) ReplaceAvailability(
	ctx context.Context,
	therapistID int64,
	rules []models.AvailabilityRule,
) ([]models.AvailabilityRule, error) {
	for _, rule := range rules {
		if rule.DayOfWeek < 0 || rule.DayOfWeek > 6 {
			return nil, ErrInvalidWindow
		}
		if rule.StartMinute < 0 || rule.EndMinute > minutesPerDay ||
			rule.StartMinute >= rule.EndMinute {
			return nil, ErrInvalidWindow
		}
	}

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		return repository.NewAvailabilityRepository(tx).ReplaceRules(ctx, therapistID, rules)
	})
	if err != nil {
		return nil, err
	}

	return s.availabilityRepo.GetRules(ctx, therapistID)
}

// checkWindowFree enforces the two booking invariants inside the caller's
// transaction: the window must sit inside one of the therapist's rules for
// that weekday, and it must not overlap another pending or approved
// session. excludeSessionID ignores the session being moved; pass 0 for a
// fresh booking.
func (s *SchedulingService) checkWindowFree(
	ctx context.Context,
	tx pgx.Tx,
	therapistID int64,
	window SessionWindow,
	excludeSessionID int64,
) error {
	rules, err := repository.NewAvailabilityRepository(tx).GetRules(ctx, therapistID)
	if err != nil {
		return err
	}
	dayRules := rulesForWeekday(rules, window.Date.Weekday())
	if !windowWithinRules(dayRules, window.StartMinute, window.EndMinute) {
		return ErrSlotUnavailable
	}

	txSessionRepo := repository.NewSessionRepository(tx)
	var hasConflict bool
	if excludeSessionID > 0 {
		hasConflict, err = txSessionRepo.HasConflictExcludingSession(
			ctx, therapistID, window.startsAt(), window.endsAt(), excludeSessionID,
		)
	} else {
		hasConflict, err = txSessionRepo.HasConflict(
			ctx, therapistID, window.startsAt(), window.endsAt(),
		)
	}
	if err != nil {
		return err
	}
	if hasConflict {
		return ErrSlotUnavailable
	}
	return nil
}

func (s *SchedulingService) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// withTherapistTx runs fn in a transaction holding the therapist's
// advisory lock, serializing concurrent booking mutations on the same
// calendar.
func (s *SchedulingService) withTherapistTx(
	ctx context.Context,
	therapistID int64,
	fn func(tx pgx.Tx) error,
) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", therapistID); err != nil {
			return err
		}
		return fn(tx)
	})
}

// acquireCalendarLock takes the optional redis lock for one therapist-day.
// It exists to fail fast across service instances before the transaction
// is opened; correctness does not depend on it.
func (s *SchedulingService) acquireCalendarLock(
	ctx context.Context,
	therapistID int64,
	date time.Time,
) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}

	key := fmt.Sprintf("booking:%d:%s", therapistID, date.Format("2006-01-02"))
	locked, err := s.locker.Lock(ctx, key, bookingLockTTL)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, ErrCalendarBusy
	}
	return func() {
		_ = s.locker.Unlock(context.WithoutCancel(ctx), key)
	}, nil
}

// mapOverlapError translates a violation of the table's overlap exclusion
// constraint into the booking conflict error. The in-transaction check
// catches conflicts first; the constraint only fires if something slips
// past it.
func mapOverlapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23P01" {
		return ErrSlotUnavailable
	}
	return err
}

func (s *SchedulingService) notify(event Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(event)
}

func canAccessSession(role string, actorID int64, session *models.Session) bool {
	if role == "client" {
		return session.ClientID == actorID
	}
	if role == "therapist" {
		return session.TherapistID == actorID
	}
	return false
}

func normalizeRequestedStatus(status string) (models.SessionStatus, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "approve", "approved":
		return models.SessionApproved, nil
	case "decline", "declined":
		return models.SessionDeclined, nil
	case "complete", "completed":
		return models.SessionCompleted, nil
	default:
		return "", ErrInvalidStatus
	}
}

func transitionEventType(status models.SessionStatus) EventType {
	switch status {
	case models.SessionApproved:
		return EventSessionApproved
	case models.SessionDeclined:
		return EventSessionDeclined
	default:
		return EventSessionCompleted
	}
}

func transitionMessage(status models.SessionStatus) string {
	switch status {
	case models.SessionApproved:
		return "Session approved by therapist"
	case models.SessionDeclined:
		return "Session declined by therapist"
	default:
		return "Session completed"
	}
}
