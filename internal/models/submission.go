package models

import "time"

// SubmissionStatus tracks the submission state machine.
type SubmissionStatus string

const (
	SubmissionStatusSubmitted SubmissionStatus = "submitted"
	SubmissionStatusLate      SubmissionStatus = "late"
	SubmissionStatusGraded    SubmissionStatus = "graded"
	SubmissionStatusReturned  SubmissionStatus = "returned"
)

// MaxResubmissions is how many times a returned submission may be resubmitted.
const MaxResubmissions = 1

// Submission belongs to a user and an assignment.
type Submission struct {
	ID                string           `db:"id" json:"id"`
	AssignmentID      string           `db:"assignment_id" json:"assignment_id"`
	UserID            string           `db:"user_id" json:"user_id"`
	Content           *string          `db:"content" json:"content,omitempty"`
	AttachmentPath    *string          `db:"attachment_path" json:"-"`
	AttachmentName    *string          `db:"attachment_name" json:"attachment_name,omitempty"`
	AttachmentSize    *int64           `db:"attachment_size" json:"attachment_size,omitempty"`
	Status            SubmissionStatus `db:"status" json:"status"`
	Feedback          *string          `db:"feedback" json:"feedback,omitempty"`
	SubmittedAt       time.Time        `db:"submitted_at" json:"submitted_at"`
	ReturnedAt        *time.Time       `db:"returned_at" json:"returned_at,omitempty"`
	ResubmittedAt     *time.Time       `db:"resubmitted_at" json:"resubmitted_at,omitempty"`
	ResubmissionCount int              `db:"resubmission_count" json:"resubmission_count"`
	CreatedAt         time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at" json:"updated_at"`
}

// CanResubmit reports whether a student may replace this submission.
func (s Submission) CanResubmit() bool {
	return s.Status == SubmissionStatusReturned && s.ResubmissionCount < MaxResubmissions
}

// SubmissionDetail adds assignment and student context.
type SubmissionDetail struct {
	Submission
	AssignmentTitle string    `db:"assignment_title" json:"assignment_title"`
	CourseID        string    `db:"course_id" json:"course_id"`
	DueDate         time.Time `db:"due_date" json:"due_date"`
	UserName        string    `db:"user_name" json:"user_name"`
}

// SubmissionFilter scopes submission listings.
type SubmissionFilter struct {
	AssignmentID string
	UserID       string
	Status       SubmissionStatus
	InstructorID string
	Page         int
	PageSize     int
}
