package submissions

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/forfeit-backend/internal/data/db"
	types "github.com/yungbote/forfeit-backend/internal/domain"
	"github.com/yungbote/forfeit-backend/internal/platform/dbctx"
	"github.com/yungbote/forfeit-backend/internal/platform/logger"
)

// GradeFields is written in one statement so status, feedback, confidence and
// graded_at never disagree.
type GradeFields struct {
	Status        types.SubmissionStatus
	Feedback      string
	Confidence    float64
	GradedBy      string
	GradedAt      time.Time
	WordCount     *int
	URLAccessible *bool
}

type SubmissionRepo interface {
	Create(dbc dbctx.Context, s *types.Submission) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Submission, error)
	ListByCheckpoint(dbc dbctx.Context, checkpointID uuid.UUID) ([]*types.Submission, error)
	// Transition moves status only when the current status is one of from.
	Transition(dbc dbctx.Context, id uuid.UUID, from []types.SubmissionStatus, to types.SubmissionStatus) (bool, error)
	// SaveGrade finalizes a submission that is currently in expect.
	SaveGrade(dbc dbctx.Context, id uuid.UUID, expect []types.SubmissionStatus, f GradeFields) (bool, error)
}

type submissionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSubmissionRepo(db *gorm.DB, baseLog *logger.Logger) SubmissionRepo {
	return &submissionRepo{db: db, log: baseLog.With("repo", "SubmissionRepo")}
}

func (r *submissionRepo) Create(dbc dbctx.Context, s *types.Submission) error {
	return db.MapError("create submission", dbc.Handle(r.db).Create(s).Error)
}

func (r *submissionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Submission, error) {
	var s types.Submission
	if err := dbc.Handle(r.db).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, db.MapError("get submission", err)
	}
	return &s, nil
}

func (r *submissionRepo) ListByCheckpoint(dbc dbctx.Context, checkpointID uuid.UUID) ([]*types.Submission, error) {
	var out []*types.Submission
	err := dbc.Handle(r.db).
		Where("checkpoint_id = ?", checkpointID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, db.MapError("list submissions", err)
	}
	return out, nil
}

func (r *submissionRepo) Transition(dbc dbctx.Context, id uuid.UUID, from []types.SubmissionStatus, to types.SubmissionStatus) (bool, error) {
	res := dbc.Handle(r.db).Model(&types.Submission{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, db.MapError("transition submission", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *submissionRepo) SaveGrade(dbc dbctx.Context, id uuid.UUID, expect []types.SubmissionStatus, f GradeFields) (bool, error) {
	updates := map[string]interface{}{
		"status":     f.Status,
		"feedback":   f.Feedback,
		"confidence": f.Confidence,
		"graded_by":  f.GradedBy,
		"graded_at":  f.GradedAt.UTC(),
	}
	if f.WordCount != nil {
		updates["word_count"] = *f.WordCount
	}
	if f.URLAccessible != nil {
		updates["url_accessible"] = *f.URLAccessible
	}
	res := dbc.Handle(r.db).Model(&types.Submission{}).
		Where("id = ? AND status IN ?", id, expect).
		Updates(updates)
	if res.Error != nil {
		return false, db.MapError("save grade", res.Error)
	}
	return res.RowsAffected == 1, nil
}
