package types

import (
	"fmt"
	"time"
)

type ApplicationStatus string

const (
	ApplicationStatusDraft     ApplicationStatus = "draft"
	ApplicationStatusSubmitted ApplicationStatus = "submitted"

	// Labels written by the admin review surface.
	ApplicationStatusInterviewScheduled ApplicationStatus = "interview_scheduled"
	ApplicationStatusOfferIssued        ApplicationStatus = "offer_issued"
)

// FormData is the opaque answer document posted by the applicant form.
type FormData map[string]any

type Application struct {
	ID                string            `db:"id" json:"id"`
	UserID            string            `db:"user_id" json:"user_id"`
	ProgramType       *string           `db:"program_type" json:"program_type"`
	ApplicationStatus ApplicationStatus `db:"application_status" json:"application_status"`
	FormData          FormData          `db:"form_data" json:"form_data"`
	ApplicationNumber *string           `db:"application_number" json:"application_number"`
	SubmissionDate    *time.Time        `db:"submission_date" json:"submission_date"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updated_at"`
}

// ApplicationListing is an application joined with the applicant email for review lists.
type ApplicationListing struct {
	Application
	Email string `db:"email" json:"email"`
}

type ApplicationResponse struct {
	ID            string    `db:"id" json:"id"`
	ApplicationID string    `db:"application_id" json:"application_id"`
	QuestionID    int64     `db:"question_id" json:"question_id"`
	Answer        string    `db:"answer" json:"answer"`
	FilePath      *string   `db:"file_path" json:"file_path"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`

	// Joined from the question catalog on reads.
	QuestionText  *string `db:"question_text" json:"question_text,omitempty"`
	QuestionType  *string `db:"question_type" json:"question_type,omitempty"`
	Category      *string `db:"category" json:"category,omitempty"`
	CategoryOrder *int    `db:"category_order" json:"-"`
	SortOrder     *int    `db:"sort_order" json:"-"`
}

type ApplicationCounts struct {
	Total              int64 `db:"total" json:"total_applications"`
	Drafts             int64 `db:"drafts" json:"drafts"`
	Submitted          int64 `db:"submitted" json:"submitted"`
	InterviewScheduled int64 `db:"interview_scheduled" json:"pending_interviews"`
}

// FormatApplicationNumber renders APP-<year>-<NNN>.
func FormatApplicationNumber(year int, sequence int64) string {
	return fmt.Sprintf("APP-%d-%03d", year, sequence)
}
