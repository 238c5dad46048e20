package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/aulago/aula-api/internal/models"
	"github.com/aulago/aula-api/internal/repository"
	"github.com/aulago/aula-api/pkg/dates"
	appErrors "github.com/aulago/aula-api/pkg/errors"
)

type attendanceRepository interface {
	CreateSession(ctx context.Context, session *models.AttendanceSession) (*models.AttendanceSession, error)
	ListSessions(ctx context.Context, groupID string, from, to time.Time) ([]models.AttendanceSession, error)
}

// AttendanceEntryInput marks one student for a session.
type AttendanceEntryInput struct {
	StudentID string `json:"student_id" validate:"required"`
	Present   bool   `json:"present"`
}

// RecordAttendanceRequest records one session for a group and calendar day.
type RecordAttendanceRequest struct {
	Date     string                 `json:"date" validate:"required"`
	Timezone string                 `json:"timezone"`
	Entries  []AttendanceEntryInput `json:"entries" validate:"required,min=1,dive"`
}

// AttendanceService records and retrieves attendance sessions.
type AttendanceService struct {
	repo      attendanceRepository
	groups    reportGroupRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(repo attendanceRepository, groups reportGroupRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, groups: groups, cache: cache, validator: validate, logger: logger}
}

// Record stores a session for the group's calendar day. At most one session
// exists per (group, day); a second attempt is a conflict.
func (s *AttendanceService) Record(ctx context.Context, groupID string, req RecordAttendanceRequest) (*models.AttendanceSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	group, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	if group.Archived {
		return nil, appErrors.Clone(appErrors.ErrConflict, "group is archived")
	}

	dayRange, err := dates.ResolveRange(req.Date, req.Timezone)
	if err != nil {
		return nil, err
	}

	roster, err := s.groups.Roster(ctx, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	members := make(map[string]bool, len(roster))
	for _, entry := range roster {
		members[entry.StudentID] = true
	}

	seen := make(map[string]bool, len(req.Entries))
	entries := make([]models.AttendanceEntry, 0, len(req.Entries))
	for _, input := range req.Entries {
		if !members[input.StudentID] {
			return nil, appErrors.Clone(appErrors.ErrValidation, "entry references a student outside the group roster")
		}
		if seen[input.StudentID] {
			return nil, appErrors.Clone(appErrors.ErrValidation, "duplicate student in attendance entries")
		}
		seen[input.StudentID] = true
		entries = append(entries, models.AttendanceEntry{StudentID: input.StudentID, Present: input.Present})
	}

	session := &models.AttendanceSession{GroupID: groupID, Date: dayRange.Start, Entries: entries}
	stored, err := s.repo.CreateSession(ctx, session)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateSession) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "attendance already recorded for this group and date")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}

	s.cache.InvalidateGroup(ctx, groupID)
	s.logger.Info("attendance recorded",
		zap.String("group_id", groupID),
		zap.String("date", req.Date),
		zap.Int("entries", len(stored.Entries)))
	return stored, nil
}

// GetByDate returns the group's session on the given calendar day, if any.
func (s *AttendanceService) GetByDate(ctx context.Context, groupID, date, tz string) (*models.AttendanceSession, error) {
	if _, err := s.groups.FindByID(ctx, groupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}

	dayRange, err := dates.ResolveRange(date, tz)
	if err != nil {
		return nil, err
	}

	sessions, err := s.repo.ListSessions(ctx, groupID, dayRange.Start, dayRange.End)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	if len(sessions) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no attendance recorded for this date")
	}
	return &sessions[0], nil
}
