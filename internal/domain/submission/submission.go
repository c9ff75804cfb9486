package submission

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Type string

const (
	TypeFileUpload      Type = "file_upload"
	TypeExternalURL     Type = "external_url"
	TypeTextDescription Type = "text_description"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusGrading   Status = "grading"
	StatusPassed    Status = "passed"
	StatusFailed    Status = "failed"
	StatusContested Status = "contested"
)

// Finished reports whether a grader or witness has already ruled.
func (s Status) Finished() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusContested
}

const (
	GradedByDeterministic = "deterministic"
	GradedByAI            = "ai"
	GradedByWitness       = "witness"
)

// Submission is proof of work for one checkpoint. A resubmission is a new row.
type Submission struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CheckpointID uuid.UUID `gorm:"type:uuid;not null;index" json:"checkpoint_id"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Type         Type      `gorm:"not null;column:type" json:"type"`
	// Content is the description text or the external URL.
	Content    string `gorm:"column:content;type:text" json:"content"`
	StorageKey string `gorm:"column:storage_key" json:"-"`
	Filename   string `gorm:"column:filename" json:"filename,omitempty"`
	Status     Status `gorm:"not null;column:status;index" json:"status"`

	Feedback      string     `gorm:"column:feedback;type:text" json:"feedback,omitempty"`
	Confidence    *float64   `gorm:"column:confidence" json:"confidence,omitempty"`
	GradedAt      *time.Time `gorm:"column:graded_at" json:"graded_at,omitempty"`
	GradedBy      string     `gorm:"column:graded_by" json:"graded_by,omitempty"`
	WordCount     *int       `gorm:"column:word_count" json:"word_count,omitempty"`
	URLAccessible *bool      `gorm:"column:url_accessible" json:"url_accessible,omitempty"`

	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Submission) TableName() string { return "submission" }

func (s *Submission) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = StatusPending
	}
	return nil
}
