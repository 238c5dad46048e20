package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/aulago/aula-api/internal/models"
)

// ErrDuplicateSession is returned when a session already exists for the
// (group, calendar day) pair.
var ErrDuplicateSession = fmt.Errorf("attendance already recorded for this group and date")

// AttendanceRepository persists attendance sessions and their entries.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository instantiates the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// CreateSession stores a session and its per-student entries atomically.
func (r *AttendanceRepository) CreateSession(ctx context.Context, session *models.AttendanceSession) (*models.AttendanceSession, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create session: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	session.ID = uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO attendance_sessions (id, group_id, date) VALUES ($1, $2, $3)`,
		session.ID, session.GroupID, session.Date); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, ErrDuplicateSession
		}
		return nil, fmt.Errorf("insert attendance session: %w", err)
	}

	for i := range session.Entries {
		session.Entries[i].SessionID = session.ID
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO attendance_entries (session_id, student_id, present) VALUES ($1, $2, $3)`,
			session.ID, session.Entries[i].StudentID, session.Entries[i].Present); err != nil {
			return nil, fmt.Errorf("insert attendance entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create session: %w", err)
	}
	return session, nil
}

// ListSessions returns the group's sessions whose instant falls inside
// [from, to], entries included, ordered by date.
func (r *AttendanceRepository) ListSessions(ctx context.Context, groupID string, from, to time.Time) ([]models.AttendanceSession, error) {
	var sessions []models.AttendanceSession
	query := `SELECT id, group_id, date FROM attendance_sessions
        WHERE group_id = $1 AND date >= $2 AND date <= $3
        ORDER BY date`
	if err := r.db.SelectContext(ctx, &sessions, query, groupID, from, to); err != nil {
		return nil, fmt.Errorf("list attendance sessions: %w", err)
	}
	if len(sessions) == 0 {
		return sessions, nil
	}

	ids := make([]string, len(sessions))
	for i, session := range sessions {
		ids[i] = session.ID
	}
	entryQuery, args, err := sqlx.In(`SELECT session_id, student_id, present FROM attendance_entries WHERE session_id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var entries []models.AttendanceEntry
	if err := r.db.SelectContext(ctx, &entries, r.db.Rebind(entryQuery), args...); err != nil {
		return nil, fmt.Errorf("load attendance entries: %w", err)
	}

	byID := make(map[string]int, len(sessions))
	for i, session := range sessions {
		byID[session.ID] = i
	}
	for _, entry := range entries {
		if i, ok := byID[entry.SessionID]; ok {
			sessions[i].Entries = append(sessions[i].Entries, entry)
		}
	}
	return sessions, nil
}
