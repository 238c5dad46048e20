package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/aulago/aula-api/internal/models"
)

// ErrDuplicateMember is returned when a student is already on the roster.
var ErrDuplicateMember = fmt.Errorf("student already enrolled in group")

// GroupRepository persists groups and their rosters.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository instantiates the repository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// Create inserts a group and returns it with its generated id.
func (r *GroupRepository) Create(ctx context.Context, group *models.Group) (*models.Group, error) {
	group.ID = uuid.NewString()
	query := `INSERT INTO groups (id, name, description, teacher_id, archived, created_at, updated_at)
        VALUES ($1, $2, $3, $4, false, NOW(), NOW())
        RETURNING id, name, description, teacher_id, archived, created_at, updated_at`
	var stored models.Group
	if err := r.db.GetContext(ctx, &stored, query, group.ID, group.Name, group.Description, group.TeacherID); err != nil {
		return nil, fmt.Errorf("insert group: %w", err)
	}
	return &stored, nil
}

// FindByID returns the group or sql.ErrNoRows.
func (r *GroupRepository) FindByID(ctx context.Context, id string) (*models.Group, error) {
	var group models.Group
	query := `SELECT id, name, description, teacher_id, archived, created_at, updated_at FROM groups WHERE id = $1`
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		return nil, err
	}
	return &group, nil
}

// ListByTeacher returns the teacher's groups, skipping archived ones unless
// includeArchived is set.
func (r *GroupRepository) ListByTeacher(ctx context.Context, teacherID string, includeArchived bool) ([]models.Group, error) {
	query := `SELECT id, name, description, teacher_id, archived, created_at, updated_at FROM groups WHERE teacher_id = $1`
	if !includeArchived {
		query += ` AND archived = false`
	}
	query += ` ORDER BY created_at`
	var groups []models.Group
	if err := r.db.SelectContext(ctx, &groups, query, teacherID); err != nil {
		return nil, fmt.Errorf("list groups by teacher: %w", err)
	}
	return groups, nil
}

// SetArchived flips the archived flag.
func (r *GroupRepository) SetArchived(ctx context.Context, id string, archived bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE groups SET archived = $2, updated_at = NOW() WHERE id = $1`, id, archived)
	if err != nil {
		return fmt.Errorf("archive group: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Roster returns the ordered roster with student display names.
func (r *GroupRepository) Roster(ctx context.Context, groupID string) ([]models.RosterEntry, error) {
	query := `SELECT gm.student_id, u.name AS student_name, gm.roll_number
        FROM group_members gm
        JOIN users u ON u.id = gm.student_id
        WHERE gm.group_id = $1
        ORDER BY gm.roll_number`
	var roster []models.RosterEntry
	if err := r.db.SelectContext(ctx, &roster, query, groupID); err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	return roster, nil
}

// AddMember appends the student at the next roll number.
func (r *GroupRepository) AddMember(ctx context.Context, groupID, studentID string) (*models.GroupMember, error) {
	query := `INSERT INTO group_members (group_id, student_id, roll_number)
        VALUES ($1, $2, (SELECT COALESCE(MAX(roll_number), 0) + 1 FROM group_members WHERE group_id = $1))
        RETURNING group_id, student_id, roll_number`
	var member models.GroupMember
	if err := r.db.GetContext(ctx, &member, query, groupID, studentID); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, ErrDuplicateMember
		}
		return nil, fmt.Errorf("add group member: %w", err)
	}
	return &member, nil
}

// RemoveMember deletes the roster entry and renumbers the remaining members
// so roll numbers stay a dense 1..N sequence in their original order.
func (r *GroupRepository) RemoveMember(ctx context.Context, groupID, studentID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin remove member: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = $1 AND student_id = $2`, groupID, studentID)
	if err != nil {
		return fmt.Errorf("delete group member: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}

	renumber := `UPDATE group_members gm SET roll_number = ranked.rn
        FROM (
            SELECT student_id, ROW_NUMBER() OVER (ORDER BY roll_number) AS rn
            FROM group_members WHERE group_id = $1
        ) ranked
        WHERE gm.group_id = $1 AND gm.student_id = ranked.student_id`
	if _, err := tx.ExecContext(ctx, renumber, groupID); err != nil {
		return fmt.Errorf("renumber roster: %w", err)
	}

	return tx.Commit()
}
