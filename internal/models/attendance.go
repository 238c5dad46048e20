package models

import "time"

// AttendanceSession is one roll-call for a group on a calendar day. At most
// one session exists per (group, day), enforced by a storage constraint.
type AttendanceSession struct {
	ID      string    `db:"id" json:"id"`
	GroupID string    `db:"group_id" json:"group_id"`
	Date    time.Time `db:"date" json:"date"`
	Entries []AttendanceEntry `json:"entries"`
}

// AttendanceEntry marks one student present or absent in a session. A
// student missing from a session's entries is not counted either way.
type AttendanceEntry struct {
	SessionID string `db:"session_id" json:"-"`
	StudentID string `db:"student_id" json:"student_id"`
	Present   bool   `db:"present" json:"present"`
}

// EntryFor returns the entry for the given student, if any.
func (s AttendanceSession) EntryFor(studentID string) (AttendanceEntry, bool) {
	for _, entry := range s.Entries {
		if entry.StudentID == studentID {
			return entry, true
		}
	}
	return AttendanceEntry{}, false
}
