package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aulago/aula-api/internal/models"
	appErrors "github.com/aulago/aula-api/pkg/errors"
)

type mockGroupRepo struct {
	group    *models.Group
	groups   []models.Group
	roster   []models.RosterEntry
	findErr  error
	listErr  error
	roster2  map[string][]models.RosterEntry
	rosterFn func(groupID string) ([]models.RosterEntry, error)
}

func (m *mockGroupRepo) FindByID(ctx context.Context, id string) (*models.Group, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if m.group == nil || m.group.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.group, nil
}

func (m *mockGroupRepo) Roster(ctx context.Context, groupID string) ([]models.RosterEntry, error) {
	if m.rosterFn != nil {
		return m.rosterFn(groupID)
	}
	if m.roster2 != nil {
		return m.roster2[groupID], nil
	}
	return m.roster, nil
}

func (m *mockGroupRepo) ListByTeacher(ctx context.Context, teacherID string, includeArchived bool) ([]models.Group, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.groups, nil
}

type mockSessionLister struct {
	sessions []models.AttendanceSession
	err      error
}

func (m *mockSessionLister) ListSessions(ctx context.Context, groupID string, from, to time.Time) ([]models.AttendanceSession, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []models.AttendanceSession
	for _, session := range m.sessions {
		if session.GroupID != groupID {
			continue
		}
		if session.Date.Before(from) || session.Date.After(to) {
			continue
		}
		out = append(out, session)
	}
	return out, nil
}

func day(value string) time.Time {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return t
}

func TestAttendanceGroupSummary(t *testing.T) {
	groups := &mockGroupRepo{
		group: &models.Group{ID: "g1", Name: "Algebra"},
		roster: []models.RosterEntry{
			{StudentID: "s1", StudentName: "Ana", RollNumber: 1},
			{StudentID: "s2", StudentName: "Bruno", RollNumber: 2},
		},
	}
	sessions := &mockSessionLister{sessions: []models.AttendanceSession{
		{ID: "a1", GroupID: "g1", Date: day("2025-03-03"), Entries: []models.AttendanceEntry{
			{SessionID: "a1", StudentID: "s1", Present: true},
			{SessionID: "a1", StudentID: "s2", Present: true},
		}},
		{ID: "a2", GroupID: "g1", Date: day("2025-03-04"), Entries: []models.AttendanceEntry{
			{SessionID: "a2", StudentID: "s1", Present: true},
			{SessionID: "a2", StudentID: "s2", Present: false},
		}},
	}}
	svc := NewAttendanceReportService(groups, sessions, nil, nil, zap.NewNop(), "UTC")

	summaries, err := svc.GroupSummary(context.Background(), AttendanceReportRequest{
		GroupID: "g1", StartDate: "2025-03-01", EndDate: "2025-03-31",
	})
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, 2, summaries[0].PresentCount)
	assert.Equal(t, 0, summaries[0].AbsentCount)
	assert.Equal(t, "100.00", summaries[0].AttendancePercentage)
	assert.Equal(t, "0.00", summaries[0].AbsencePercentage)

	assert.Equal(t, 1, summaries[1].PresentCount)
	assert.Equal(t, 1, summaries[1].AbsentCount)
	assert.Equal(t, "50.00", summaries[1].AttendancePercentage)
	assert.Equal(t, "50.00", summaries[1].AbsencePercentage)
}

func TestAttendanceGroupSummaryMissingEntryExcluded(t *testing.T) {
	groups := &mockGroupRepo{
		group: &models.Group{ID: "g1"},
		roster: []models.RosterEntry{
			{StudentID: "s1", StudentName: "Ana", RollNumber: 1},
		},
	}
	// Two sessions, only one carries an entry for the student: the other one
	// must not count against her.
	sessions := &mockSessionLister{sessions: []models.AttendanceSession{
		{ID: "a1", GroupID: "g1", Date: day("2025-03-03"), Entries: []models.AttendanceEntry{
			{SessionID: "a1", StudentID: "s1", Present: true},
		}},
		{ID: "a2", GroupID: "g1", Date: day("2025-03-04")},
	}}
	svc := NewAttendanceReportService(groups, sessions, nil, nil, zap.NewNop(), "UTC")

	summaries, err := svc.GroupSummary(context.Background(), AttendanceReportRequest{
		GroupID: "g1", StartDate: "2025-03-01", EndDate: "2025-03-31",
	})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].PresentCount)
	assert.Equal(t, 0, summaries[0].AbsentCount)
	assert.Equal(t, "100.00", summaries[0].AttendancePercentage)
}

func TestAttendanceGroupSummaryNoSessions(t *testing.T) {
	groups := &mockGroupRepo{
		group:  &models.Group{ID: "g1"},
		roster: []models.RosterEntry{{StudentID: "s1", StudentName: "Ana", RollNumber: 1}},
	}
	svc := NewAttendanceReportService(groups, &mockSessionLister{}, nil, nil, zap.NewNop(), "UTC")

	summaries, err := svc.GroupSummary(context.Background(), AttendanceReportRequest{
		GroupID: "g1", StartDate: "2025-03-01", EndDate: "2025-03-31",
	})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "0.00", summaries[0].AttendancePercentage)
	assert.Equal(t, "0.00", summaries[0].AbsencePercentage)
}

func TestAttendanceGroupSummaryComplement(t *testing.T) {
	groups := &mockGroupRepo{
		group:  &models.Group{ID: "g1"},
		roster: []models.RosterEntry{{StudentID: "s1", StudentName: "Ana", RollNumber: 1}},
	}
	var entries []models.AttendanceSession
	pattern := []bool{true, false, true, true, false, true, false}
	for i, present := range pattern {
		date := day("2025-03-03").AddDate(0, 0, i)
		entries = append(entries, models.AttendanceSession{
			ID: "a", GroupID: "g1", Date: date,
			Entries: []models.AttendanceEntry{{StudentID: "s1", Present: present}},
		})
	}
	svc := NewAttendanceReportService(groups, &mockSessionLister{sessions: entries}, nil, nil, zap.NewNop(), "UTC")

	summaries, err := svc.GroupSummary(context.Background(), AttendanceReportRequest{
		GroupID: "g1", StartDate: "2025-03-01", EndDate: "2025-03-31",
	})
	require.NoError(t, err)

	attended, err := strconv.ParseFloat(summaries[0].AttendancePercentage, 64)
	require.NoError(t, err)
	absent, err := strconv.ParseFloat(summaries[0].AbsencePercentage, 64)
	require.NoError(t, err)
	assert.InDelta(t, 100, attended+absent, 0.011)
}

func TestAttendanceStudentDetailLabels(t *testing.T) {
	groups := &mockGroupRepo{
		group:  &models.Group{ID: "g1"},
		roster: []models.RosterEntry{{StudentID: "s1", StudentName: "Ana", RollNumber: 1}},
	}
	sessions := &mockSessionLister{sessions: []models.AttendanceSession{
		{ID: "a1", GroupID: "g1", Date: day("2025-03-03"), Entries: []models.AttendanceEntry{{StudentID: "s1", Present: true}}},
		{ID: "a2", GroupID: "g1", Date: day("2025-03-04"), Entries: []models.AttendanceEntry{{StudentID: "s1", Present: false}}},
		{ID: "a3", GroupID: "g1", Date: day("2025-03-05")},
	}}
	svc := NewAttendanceReportService(groups, sessions, nil, nil, zap.NewNop(), "UTC")

	detail, err := svc.StudentDetail(context.Background(), AttendanceReportRequest{
		GroupID: "g1", StudentID: "s1", StartDate: "2025-03-01", EndDate: "2025-03-31",
	})
	require.NoError(t, err)
	require.Len(t, detail.Rows, 3)
	assert.Equal(t, models.AttendanceDetailRow{Date: "2025-03-03", Status: models.AttendanceLabelAttended}, detail.Rows[0])
	assert.Equal(t, models.AttendanceDetailRow{Date: "2025-03-04", Status: models.AttendanceLabelAbsent}, detail.Rows[1])
	assert.Equal(t, models.AttendanceDetailRow{Date: "2025-03-05", Status: models.AttendanceLabelNoRecord}, detail.Rows[2])
}

func TestAttendanceStudentDetailDefaultsEndDate(t *testing.T) {
	groups := &mockGroupRepo{
		group:  &models.Group{ID: "g1"},
		roster: []models.RosterEntry{{StudentID: "s1", StudentName: "Ana", RollNumber: 1}},
	}
	sessions := &mockSessionLister{sessions: []models.AttendanceSession{
		{ID: "a1", GroupID: "g1", Date: day("2025-03-03"), Entries: []models.AttendanceEntry{{StudentID: "s1", Present: true}}},
		{ID: "a2", GroupID: "g1", Date: day("2025-03-04"), Entries: []models.AttendanceEntry{{StudentID: "s1", Present: true}}},
	}}
	svc := NewAttendanceReportService(groups, sessions, nil, nil, zap.NewNop(), "UTC")

	detail, err := svc.StudentDetail(context.Background(), AttendanceReportRequest{
		GroupID: "g1", StudentID: "s1", StartDate: "2025-03-03",
	})
	require.NoError(t, err)
	require.Len(t, detail.Rows, 1)
	assert.Equal(t, "2025-03-03", detail.Rows[0].Date)
}

func TestAttendanceReportErrors(t *testing.T) {
	svc := NewAttendanceReportService(&mockGroupRepo{}, &mockSessionLister{}, nil, nil, zap.NewNop(), "UTC")

	_, err := svc.GroupSummary(context.Background(), AttendanceReportRequest{StartDate: "2025-03-01", EndDate: "2025-03-02"})
	assertAppError(t, err, appErrors.ErrValidation.Code)

	_, err = svc.GroupSummary(context.Background(), AttendanceReportRequest{GroupID: "g1", StartDate: "2025-03-01", EndDate: "2025-03-02"})
	assertAppError(t, err, appErrors.ErrNotFound.Code)

	_, err = svc.GroupSummary(context.Background(), AttendanceReportRequest{GroupID: "g1", StartDate: "2025-03-05", EndDate: "2025-03-01"})
	assertAppError(t, err, appErrors.ErrValidation.Code)

	_, err = svc.GroupSummary(context.Background(), AttendanceReportRequest{GroupID: "g1", StartDate: "not-a-date", EndDate: "2025-03-01"})
	assertAppError(t, err, appErrors.ErrValidation.Code)
}

func TestAttendanceStudentDetailNotEnrolled(t *testing.T) {
	groups := &mockGroupRepo{
		group:  &models.Group{ID: "g1"},
		roster: []models.RosterEntry{{StudentID: "s1", StudentName: "Ana", RollNumber: 1}},
	}
	svc := NewAttendanceReportService(groups, &mockSessionLister{}, nil, nil, zap.NewNop(), "UTC")

	_, err := svc.StudentDetail(context.Background(), AttendanceReportRequest{
		GroupID: "g1", StudentID: "ghost", StartDate: "2025-03-01",
	})
	assertAppError(t, err, appErrors.ErrNotFound.Code)
}

func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr), "expected app error, got %v", err)
	assert.Equal(t, code, appErr.Code)
}
