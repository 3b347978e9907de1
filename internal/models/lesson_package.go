package models

import "time"

// PackageStatus represents the lifecycle of a prepaid lesson allotment.
type PackageStatus string

const (
	PackageStatusActive    PackageStatus = "ACTIVE"
	PackageStatusCompleted PackageStatus = "COMPLETED"
	PackageStatusCancelled PackageStatus = "CANCELLED"
)

// LessonPackage is a student's prepaid lesson balance for one course.
type LessonPackage struct {
	ID               string        `db:"id" json:"id"`
	StudentID        string        `db:"student_id" json:"student_id"`
	CourseID         string        `db:"course_id" json:"course_id"`
	TotalLessons     int           `db:"total_lessons" json:"total_lessons"`
	UsedLessons      int           `db:"used_lessons" json:"used_lessons"`
	RemainingLessons int           `db:"remaining_lessons" json:"remaining_lessons"`
	Status           PackageStatus `db:"status" json:"status"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}
