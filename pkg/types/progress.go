package types

import "time"

type FileMetadata struct {
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	URL          string    `json:"url"`
	Size         int64     `json:"size"`
	Type         string    `json:"type"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// FilesMetadata is keyed by form question key (question_23, wassce_sitting_1_statement, ...).
type FilesMetadata map[string]FileMetadata

type ApplicationProgress struct {
	UserID         string        `db:"user_id" json:"user_id"`
	FormData       FormData      `db:"form_data" json:"form_data"`
	FilesMetadata  FilesMetadata `db:"files_metadata" json:"files_metadata"`
	CurrentStep    int           `db:"current_step" json:"current_step"`
	CompletedSteps []int         `db:"completed_steps" json:"completed_steps"`
	LastSavedAt    time.Time     `db:"last_saved_at" json:"last_saved_at"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
}
