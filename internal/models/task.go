package models

import "time"

// TaskStatus captures the assignment lifecycle. Open tasks close when their
// due instant passes; extending the due date into the future reopens them.
type TaskStatus string

const (
	TaskStatusOpen   TaskStatus = "Open"
	TaskStatusClosed TaskStatus = "Closed"
)

// SubmissionStatus tracks a student's submission within a task.
type SubmissionStatus string

const (
	SubmissionStatusPending   SubmissionStatus = "Pending"
	SubmissionStatusSubmitted SubmissionStatus = "Submitted"
	SubmissionStatusReviewed  SubmissionStatus = "Reviewed"
)

// Delivered reports whether the submission counts as handed in.
func (s SubmissionStatus) Delivered() bool {
	return s == SubmissionStatusSubmitted || s == SubmissionStatusReviewed
}

// Task is an assignment for a group. Due instants are stored and compared
// in UTC.
type Task struct {
	ID          string     `db:"id" json:"id"`
	GroupID     string     `db:"group_id" json:"group_id"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	DueAt       time.Time  `db:"due_at" json:"due_at"`
	TotalPoints float64    `db:"total_points" json:"total_points"`
	Status      TaskStatus `db:"status" json:"status"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Submission is a student's delivery for a task. At most one row exists per
// (task, student), enforced by a storage uniqueness constraint.
type Submission struct {
	ID          string           `db:"id" json:"id"`
	TaskID      string           `db:"task_id" json:"task_id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	FileURL     string           `db:"file_url" json:"file_url"`
	FileType    string           `db:"file_type" json:"file_type"`
	SubmittedAt time.Time        `db:"submitted_at" json:"submitted_at"`
	Status      SubmissionStatus `db:"status" json:"status"`
	Grade       *float64         `db:"grade" json:"grade,omitempty"`
	ReviewedAt  *time.Time       `db:"reviewed_at" json:"reviewed_at,omitempty"`
}

// OnTime reports whether the submission landed at or before the due instant.
func (s Submission) OnTime(dueAt time.Time) bool {
	return !s.SubmittedAt.After(dueAt)
}

// TaskFilter scopes task queries for the task report.
type TaskFilter struct {
	GroupID string
	TaskID  string
	Title   string
	DueFrom *time.Time
	DueTo   *time.Time
}
