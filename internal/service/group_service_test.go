package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aulago/aula-api/internal/models"
	"github.com/aulago/aula-api/internal/repository"
	appErrors "github.com/aulago/aula-api/pkg/errors"
)

// fakeGroupStore mimics the repository contract in memory: AddMember assigns
// the next roll number, RemoveMember renumbers the survivors densely.
type fakeGroupStore struct {
	groups  map[string]*models.Group
	rosters map[string][]models.RosterEntry
	nextID  int
}

func newFakeGroupStore() *fakeGroupStore {
	return &fakeGroupStore{
		groups:  make(map[string]*models.Group),
		rosters: make(map[string][]models.RosterEntry),
	}
}

func (f *fakeGroupStore) Create(ctx context.Context, group *models.Group) (*models.Group, error) {
	f.nextID++
	group.ID = fmt.Sprintf("g%d", f.nextID)
	f.groups[group.ID] = group
	return group, nil
}

func (f *fakeGroupStore) FindByID(ctx context.Context, id string) (*models.Group, error) {
	group, ok := f.groups[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return group, nil
}

func (f *fakeGroupStore) ListByTeacher(ctx context.Context, teacherID string, includeArchived bool) ([]models.Group, error) {
	var out []models.Group
	for _, group := range f.groups {
		if group.TeacherID != teacherID {
			continue
		}
		if group.Archived && !includeArchived {
			continue
		}
		out = append(out, *group)
	}
	return out, nil
}

func (f *fakeGroupStore) SetArchived(ctx context.Context, id string, archived bool) error {
	group, ok := f.groups[id]
	if !ok {
		return sql.ErrNoRows
	}
	group.Archived = archived
	return nil
}

func (f *fakeGroupStore) Roster(ctx context.Context, groupID string) ([]models.RosterEntry, error) {
	return f.rosters[groupID], nil
}

func (f *fakeGroupStore) AddMember(ctx context.Context, groupID, studentID string) (*models.GroupMember, error) {
	for _, entry := range f.rosters[groupID] {
		if entry.StudentID == studentID {
			return nil, repository.ErrDuplicateMember
		}
	}
	roll := len(f.rosters[groupID]) + 1
	f.rosters[groupID] = append(f.rosters[groupID], models.RosterEntry{StudentID: studentID, RollNumber: roll})
	return &models.GroupMember{GroupID: groupID, StudentID: studentID, RollNumber: roll}, nil
}

func (f *fakeGroupStore) RemoveMember(ctx context.Context, groupID, studentID string) error {
	roster := f.rosters[groupID]
	idx := -1
	for i, entry := range roster {
		if entry.StudentID == studentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return sql.ErrNoRows
	}
	roster = append(roster[:idx], roster[idx+1:]...)
	for i := range roster {
		roster[i].RollNumber = i + 1
	}
	f.rosters[groupID] = roster
	return nil
}

type fakeUserStore struct {
	users map[string]*models.User
}

func (f *fakeUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func newGroupServiceFixture() (*GroupService, *fakeGroupStore) {
	store := newFakeGroupStore()
	users := &fakeUserStore{users: map[string]*models.User{
		"s1": {ID: "s1", Role: models.RoleStudent},
		"s2": {ID: "s2", Role: models.RoleStudent},
		"s3": {ID: "s3", Role: models.RoleStudent},
		"t1": {ID: "t1", Role: models.RoleTeacher},
	}}
	svc := NewGroupService(store, users, nil, validator.New(), zap.NewNop())
	return svc, store
}

func TestGroupServiceCreateAndGet(t *testing.T) {
	svc, _ := newGroupServiceFixture()
	ctx := context.Background()

	group, err := svc.Create(ctx, "t1", CreateGroupRequest{Name: "Algebra", Description: "morning"})
	require.NoError(t, err)
	assert.NotEmpty(t, group.ID)
	assert.Equal(t, "t1", group.TeacherID)

	loaded, err := svc.Get(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, "Algebra", loaded.Name)

	_, err = svc.Create(ctx, "t1", CreateGroupRequest{})
	assertAppError(t, err, appErrors.ErrValidation.Code)

	_, err = svc.Get(ctx, "missing")
	assertAppError(t, err, appErrors.ErrNotFound.Code)
}

func TestGroupServiceRollNumbersStayDense(t *testing.T) {
	svc, _ := newGroupServiceFixture()
	ctx := context.Background()

	group, err := svc.Create(ctx, "t1", CreateGroupRequest{Name: "Algebra"})
	require.NoError(t, err)

	for _, id := range []string{"s1", "s2", "s3"} {
		_, err := svc.AddMember(ctx, group.ID, id)
		require.NoError(t, err)
	}

	require.NoError(t, svc.RemoveMember(ctx, group.ID, "s2"))

	roster, err := svc.Roster(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	for i, entry := range roster {
		assert.Equal(t, i+1, entry.RollNumber)
	}
	assert.Equal(t, "s1", roster[0].StudentID)
	assert.Equal(t, "s3", roster[1].StudentID)

	// Re-adding the removed student appends at the end.
	member, err := svc.AddMember(ctx, group.ID, "s2")
	require.NoError(t, err)
	assert.Equal(t, 3, member.RollNumber)
}

func TestGroupServiceAddMemberRules(t *testing.T) {
	svc, _ := newGroupServiceFixture()
	ctx := context.Background()

	group, err := svc.Create(ctx, "t1", CreateGroupRequest{Name: "Algebra"})
	require.NoError(t, err)

	_, err = svc.AddMember(ctx, group.ID, "s1")
	require.NoError(t, err)

	_, err = svc.AddMember(ctx, group.ID, "s1")
	assertAppError(t, err, appErrors.ErrConflict.Code)

	_, err = svc.AddMember(ctx, group.ID, "t1")
	assertAppError(t, err, appErrors.ErrValidation.Code)

	_, err = svc.AddMember(ctx, group.ID, "nobody")
	assertAppError(t, err, appErrors.ErrNotFound.Code)

	err = svc.RemoveMember(ctx, group.ID, "s3")
	assertAppError(t, err, appErrors.ErrNotFound.Code)
}

func TestGroupServiceArchive(t *testing.T) {
	svc, _ := newGroupServiceFixture()
	ctx := context.Background()

	group, err := svc.Create(ctx, "t1", CreateGroupRequest{Name: "Algebra"})
	require.NoError(t, err)
	require.NoError(t, svc.SetArchived(ctx, group.ID, true))

	_, err = svc.AddMember(ctx, group.ID, "s1")
	assertAppError(t, err, appErrors.ErrConflict.Code)

	active, err := svc.ListByTeacher(ctx, "t1", false)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := svc.ListByTeacher(ctx, "t1", true)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	assertAppError(t, svc.SetArchived(ctx, "missing", true), appErrors.ErrNotFound.Code)
}
