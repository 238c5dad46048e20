package models

import "time"

// Attendance detail row labels.
const (
	AttendanceLabelAttended = "Attended"
	AttendanceLabelAbsent   = "Absent"
	AttendanceLabelNoRecord = "No record"
)

// GradeNotAvailable is emitted when a summary has no numeric grades to average.
const GradeNotAvailable = "N/A"

// AttendanceStudentSummary is one group-summary row. Percentages are fixed
// two-decimal strings; both are "0.00" when no session counted the student.
type AttendanceStudentSummary struct {
	StudentID            string `json:"student_id"`
	StudentName          string `json:"student_name"`
	RollNumber           int    `json:"roll_number"`
	PresentCount         int    `json:"present_count"`
	AbsentCount          int    `json:"absent_count"`
	AttendancePercentage string `json:"attendance_percentage"`
	AbsencePercentage    string `json:"absence_percentage"`
}

// AttendanceDetailRow labels one session for a single student.
type AttendanceDetailRow struct {
	Date   string `json:"date"`
	Status string `json:"status"`
}

// AttendanceStudentDetail is the per-student detail report.
type AttendanceStudentDetail struct {
	StudentID   string                `json:"student_id"`
	StudentName string                `json:"student_name"`
	GroupID     string                `json:"group_id"`
	Rows        []AttendanceDetailRow `json:"rows"`
}

// TaskDetailRow is one task × student detail row.
type TaskDetailRow struct {
	TaskID      string    `json:"task_id"`
	Title       string    `json:"title"`
	DueAt       time.Time `json:"due_at"`
	StudentName string    `json:"student_name"`
	Status      string    `json:"status"`
	OnTime      bool      `json:"on_time"`
	Grade       *float64  `json:"grade"`
}

// TaskStudentSummary aggregates one roster member across the filtered tasks.
type TaskStudentSummary struct {
	StudentID        string `json:"student_id"`
	StudentName      string `json:"student_name"`
	RollNumber       int    `json:"roll_number"`
	TotalTasks       int    `json:"total_tasks"`
	Delivered        int    `json:"delivered"`
	OnTime           int    `json:"on_time"`
	OnTimePercentage string `json:"on_time_percentage"`
	AverageGrade     string `json:"average_grade"`
}

// GroupPerformance is one per-group performance record.
type GroupPerformance struct {
	GroupID           string `json:"group_id"`
	GroupName         string `json:"group_name"`
	GroupAverage      string `json:"group_average"`
	AttendanceAverage string `json:"attendance_average"`
	TaskCount         int    `json:"task_count"`
	GradedSubmissions int    `json:"graded_submissions"`
	SessionCount      int    `json:"session_count"`
	RosterSize        int    `json:"roster_size"`
}

// GroupDispersion pairs a group with the standard deviation of the averages
// of all eligible groups in the request scope.
type GroupDispersion struct {
	GroupID           string `json:"group_id"`
	GroupName         string `json:"group_name"`
	GroupAverage      string `json:"group_average"`
	StandardDeviation string `json:"standard_deviation"`
}

// PerformanceReport is the all-groups response: per-group records plus the
// average-dispersion view.
type PerformanceReport struct {
	Groups     []GroupPerformance `json:"groups"`
	Dispersion []GroupDispersion  `json:"dispersion_summary"`
}
