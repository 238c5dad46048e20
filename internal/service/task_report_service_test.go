package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aulago/aula-api/internal/models"
	appErrors "github.com/aulago/aula-api/pkg/errors"
)

type mockTaskRepo struct {
	tasks       []models.Task
	submissions map[string][]models.Submission
	listErr     error
}

func (m *mockTaskRepo) List(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.Task
	for _, task := range m.tasks {
		if filter.GroupID != "" && task.GroupID != filter.GroupID {
			continue
		}
		if filter.TaskID != "" && task.ID != filter.TaskID {
			continue
		}
		if filter.DueFrom != nil && task.DueAt.Before(*filter.DueFrom) {
			continue
		}
		if filter.DueTo != nil && task.DueAt.After(*filter.DueTo) {
			continue
		}
		out = append(out, task)
	}
	return out, nil
}

func (m *mockTaskRepo) SubmissionsForTasks(ctx context.Context, taskIDs []string) (map[string][]models.Submission, error) {
	result := make(map[string][]models.Submission)
	for _, id := range taskIDs {
		if subs, ok := m.submissions[id]; ok {
			result[id] = subs
		}
	}
	return result, nil
}

func gradePtr(v float64) *float64 { return &v }

func instant(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t
}

func TestTaskStudentDetailOnTimeBoundary(t *testing.T) {
	due := instant("2025-03-10T00:00:00Z")
	groups := &mockGroupRepo{
		group:  &models.Group{ID: "g1"},
		roster: []models.RosterEntry{{StudentID: "s1", StudentName: "Ana", RollNumber: 1}},
	}
	tasks := &mockTaskRepo{
		tasks: []models.Task{
			{ID: "t1", GroupID: "g1", Title: "Essay", DueAt: due},
			{ID: "t2", GroupID: "g1", Title: "Quiz", DueAt: due},
			{ID: "t3", GroupID: "g1", Title: "Project", DueAt: due},
		},
		submissions: map[string][]models.Submission{
			"t1": {{TaskID: "t1", StudentID: "s1", Status: models.SubmissionStatusSubmitted, SubmittedAt: instant("2025-03-09T23:00:00Z")}},
			"t2": {{TaskID: "t2", StudentID: "s1", Status: models.SubmissionStatusSubmitted, SubmittedAt: instant("2025-03-10T01:00:00Z")}},
			"t3": {{TaskID: "t3", StudentID: "s1", Status: models.SubmissionStatusSubmitted, SubmittedAt: due}},
		},
	}
	svc := NewTaskReportService(groups, tasks, nil, zap.NewNop(), "UTC")

	rows, err := svc.StudentDetail(context.Background(), TaskReportRequest{GroupID: "g1", StudentID: "s1"})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.True(t, rows[0].OnTime, "an hour before the due instant is on time")
	assert.False(t, rows[1].OnTime, "an hour past the due instant is late")
	assert.True(t, rows[2].OnTime, "exactly the due instant is on time")
}

func TestTaskStudentDetailStatusCollapse(t *testing.T) {
	due := instant("2025-03-10T00:00:00Z")
	groups := &mockGroupRepo{
		group:  &models.Group{ID: "g1"},
		roster: []models.RosterEntry{{StudentID: "s1", StudentName: "Ana", RollNumber: 1}},
	}
	tasks := &mockTaskRepo{
		tasks: []models.Task{
			{ID: "t1", GroupID: "g1", DueAt: due},
			{ID: "t2", GroupID: "g1", DueAt: due},
			{ID: "t3", GroupID: "g1", DueAt: due},
		},
		submissions: map[string][]models.Submission{
			"t1": {{TaskID: "t1", StudentID: "s1", Status: models.SubmissionStatusReviewed, SubmittedAt: due, Grade: gradePtr(95)}},
			"t2": {{TaskID: "t2", StudentID: "s1", Status: models.SubmissionStatusPending, SubmittedAt: due}},
		},
	}
	svc := NewTaskReportService(groups, tasks, nil, zap.NewNop(), "UTC")

	rows, err := svc.StudentDetail(context.Background(), TaskReportRequest{GroupID: "g1", StudentID: "s1"})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Submitted", rows[0].Status)
	require.NotNil(t, rows[0].Grade)
	assert.Equal(t, 95.0, *rows[0].Grade)
	assert.Equal(t, "Pending", rows[1].Status)
	assert.Equal(t, "Not submitted", rows[2].Status)
	assert.Nil(t, rows[2].Grade)
}

func TestTaskGroupSummary(t *testing.T) {
	due := instant("2025-03-10T00:00:00Z")
	groups := &mockGroupRepo{
		group: &models.Group{ID: "g1"},
		roster: []models.RosterEntry{
			{StudentID: "s1", StudentName: "Ana", RollNumber: 1},
			{StudentID: "s2", StudentName: "Bruno", RollNumber: 2},
		},
	}
	tasks := &mockTaskRepo{
		tasks: []models.Task{
			{ID: "t1", GroupID: "g1", DueAt: due},
			{ID: "t2", GroupID: "g1", DueAt: due},
		},
		submissions: map[string][]models.Submission{
			"t1": {
				{TaskID: "t1", StudentID: "s1", Status: models.SubmissionStatusReviewed, SubmittedAt: instant("2025-03-09T12:00:00Z"), Grade: gradePtr(80)},
				{TaskID: "t1", StudentID: "s2", Status: models.SubmissionStatusSubmitted, SubmittedAt: instant("2025-03-11T12:00:00Z")},
			},
			"t2": {
				{TaskID: "t2", StudentID: "s1", Status: models.SubmissionStatusReviewed, SubmittedAt: instant("2025-03-09T12:00:00Z"), Grade: gradePtr(90)},
			},
		},
	}
	svc := NewTaskReportService(groups, tasks, nil, zap.NewNop(), "UTC")

	summaries, err := svc.GroupSummary(context.Background(), TaskReportRequest{GroupID: "g1"})
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	ana := summaries[0]
	assert.Equal(t, 2, ana.TotalTasks)
	assert.Equal(t, 2, ana.Delivered)
	assert.Equal(t, 2, ana.OnTime)
	assert.Equal(t, "100.00", ana.OnTimePercentage)
	assert.Equal(t, "85.00", ana.AverageGrade)

	bruno := summaries[1]
	assert.Equal(t, 1, bruno.Delivered)
	assert.Equal(t, 0, bruno.OnTime)
	assert.Equal(t, "0.00", bruno.OnTimePercentage)
	assert.Equal(t, models.GradeNotAvailable, bruno.AverageGrade)
}

func TestTaskReportDueDateFilter(t *testing.T) {
	groups := &mockGroupRepo{
		group:  &models.Group{ID: "g1"},
		roster: []models.RosterEntry{{StudentID: "s1", StudentName: "Ana", RollNumber: 1}},
	}
	tasks := &mockTaskRepo{
		tasks: []models.Task{
			{ID: "t1", GroupID: "g1", DueAt: instant("2025-03-05T12:00:00Z")},
			{ID: "t2", GroupID: "g1", DueAt: instant("2025-04-05T12:00:00Z")},
		},
		submissions: map[string][]models.Submission{},
	}
	svc := NewTaskReportService(groups, tasks, nil, zap.NewNop(), "UTC")

	rows, err := svc.StudentDetail(context.Background(), TaskReportRequest{
		GroupID: "g1", StudentID: "s1", StartDate: "2025-03-01", EndDate: "2025-03-31",
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "t1", rows[0].TaskID)

	// A half-open date filter is rejected.
	_, err = svc.StudentDetail(context.Background(), TaskReportRequest{
		GroupID: "g1", StudentID: "s1", StartDate: "2025-03-01",
	})
	assertAppError(t, err, appErrors.ErrValidation.Code)
}

func TestTaskReportEmptyFilterResult(t *testing.T) {
	groups := &mockGroupRepo{
		group:  &models.Group{ID: "g1"},
		roster: []models.RosterEntry{{StudentID: "s1", RollNumber: 1}},
	}
	svc := NewTaskReportService(groups, &mockTaskRepo{}, nil, zap.NewNop(), "UTC")

	_, err := svc.GroupSummary(context.Background(), TaskReportRequest{GroupID: "g1"})
	assertAppError(t, err, appErrors.ErrNotFound.Code)
}

func TestTaskReportGroupNotFound(t *testing.T) {
	svc := NewTaskReportService(&mockGroupRepo{}, &mockTaskRepo{}, nil, zap.NewNop(), "UTC")

	_, err := svc.GroupSummary(context.Background(), TaskReportRequest{GroupID: "missing"})
	assertAppError(t, err, appErrors.ErrNotFound.Code)
}
