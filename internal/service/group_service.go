package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/aulago/aula-api/internal/models"
	"github.com/aulago/aula-api/internal/repository"
	appErrors "github.com/aulago/aula-api/pkg/errors"
)

type groupRepository interface {
	Create(ctx context.Context, group *models.Group) (*models.Group, error)
	FindByID(ctx context.Context, id string) (*models.Group, error)
	ListByTeacher(ctx context.Context, teacherID string, includeArchived bool) ([]models.Group, error)
	SetArchived(ctx context.Context, id string, archived bool) error
	Roster(ctx context.Context, groupID string) ([]models.RosterEntry, error)
	AddMember(ctx context.Context, groupID, studentID string) (*models.GroupMember, error)
	RemoveMember(ctx context.Context, groupID, studentID string) error
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CreateGroupRequest captures the creation payload.
type CreateGroupRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// GroupService coordinates group and roster operations.
type GroupService struct {
	repo      groupRepository
	users     userFinder
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGroupService constructs GroupService.
func NewGroupService(repo groupRepository, users userFinder, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *GroupService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GroupService{repo: repo, users: users, cache: cache, validator: validate, logger: logger}
}

// Create adds a group owned by the given teacher.
func (s *GroupService) Create(ctx context.Context, teacherID string, req CreateGroupRequest) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group payload")
	}

	group := &models.Group{Name: req.Name, Description: req.Description, TeacherID: teacherID}
	stored, err := s.repo.Create(ctx, group)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create group")
	}

	s.logger.Info("group created", zap.String("group_id", stored.ID), zap.String("teacher_id", teacherID))
	return stored, nil
}

// Get returns one group.
func (s *GroupService) Get(ctx context.Context, id string) (*models.Group, error) {
	group, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	return group, nil
}

// ListByTeacher returns the teacher's groups.
func (s *GroupService) ListByTeacher(ctx context.Context, teacherID string, includeArchived bool) ([]models.Group, error) {
	groups, err := s.repo.ListByTeacher(ctx, teacherID, includeArchived)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list groups")
	}
	return groups, nil
}

// SetArchived archives or restores a group. Archived groups keep their data
// but drop out of report aggregation.
func (s *GroupService) SetArchived(ctx context.Context, id string, archived bool) error {
	if err := s.repo.SetArchived(ctx, id, archived); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update group")
	}
	s.cache.InvalidateGroup(ctx, id)
	return nil
}

// Roster returns the group's members ordered by roll number.
func (s *GroupService) Roster(ctx context.Context, groupID string) ([]models.RosterEntry, error) {
	if _, err := s.Get(ctx, groupID); err != nil {
		return nil, err
	}
	roster, err := s.repo.Roster(ctx, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	return roster, nil
}

// AddMember enrolls a student at the next roll number.
func (s *GroupService) AddMember(ctx context.Context, groupID, studentID string) (*models.GroupMember, error) {
	group, err := s.Get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.Archived {
		return nil, appErrors.Clone(appErrors.ErrConflict, "group is archived")
	}

	user, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if user.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only students can join a group roster")
	}

	member, err := s.repo.AddMember(ctx, groupID, studentID)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateMember) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled in group")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add group member")
	}

	s.cache.InvalidateGroup(ctx, groupID)
	s.logger.Info("student enrolled", zap.String("group_id", groupID), zap.String("student_id", studentID), zap.Int("roll_number", member.RollNumber))
	return member, nil
}

// RemoveMember drops a student from the roster and renumbers the rest.
func (s *GroupService) RemoveMember(ctx context.Context, groupID, studentID string) error {
	if _, err := s.Get(ctx, groupID); err != nil {
		return err
	}
	if err := s.repo.RemoveMember(ctx, groupID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not enrolled in group")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove group member")
	}
	s.cache.InvalidateGroup(ctx, groupID)
	return nil
}
