package models

import "time"

// Group is a class group owned by a teacher.
type Group struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	Archived    bool      `db:"archived" json:"archived"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// GroupMember is one roster entry. Roll numbers are 1-based and dense per
// group; removal renumbers the remaining members in their original order.
type GroupMember struct {
	GroupID    string `db:"group_id" json:"group_id"`
	StudentID  string `db:"student_id" json:"student_id"`
	RollNumber int    `db:"roll_number" json:"roll_number"`
}

// RosterEntry joins a roster row with the student's display data for reports.
type RosterEntry struct {
	StudentID   string `db:"student_id" json:"student_id"`
	StudentName string `db:"student_name" json:"student_name"`
	RollNumber  int    `db:"roll_number" json:"roll_number"`
}
