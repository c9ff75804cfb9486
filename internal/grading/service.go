package grading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/forfeit-backend/internal/data/repos/deadlines"
	"github.com/yungbote/forfeit-backend/internal/data/repos/submissions"
	types "github.com/yungbote/forfeit-backend/internal/domain"
	"github.com/yungbote/forfeit-backend/internal/domain/submission"
	"github.com/yungbote/forfeit-backend/internal/notify"
	"github.com/yungbote/forfeit-backend/internal/platform/apierr"
	"github.com/yungbote/forfeit-backend/internal/platform/dbctx"
	"github.com/yungbote/forfeit-backend/internal/platform/logger"
	"github.com/yungbote/forfeit-backend/internal/platform/observability"
)

var (
	ErrNotGradable     = errors.New("submission is not in a gradable state")
	ErrInvalidVerdict  = errors.New("verdict must be passed, failed or contested")
	ErrGraderMissing   = errors.New("rubric needs the AI grader but none is configured")
	errGradeNotApplied = errors.New("submission changed state while grading")
)

type Service interface {
	// Grade runs a pending submission through the tiers and stores the verdict.
	Grade(ctx context.Context, submissionID uuid.UUID) (*types.Submission, error)
	// Override records a witness ruling on a pending or already graded submission.
	Override(ctx context.Context, submissionID uuid.UUID, verdict types.SubmissionStatus, note string) (*types.Submission, error)
}

type service struct {
	log         *logger.Logger
	submissions submissions.SubmissionRepo
	deadlines   deadlines.DeadlineRepo
	collector   *Collector
	ai          *AIGrader
	notifier    notify.Dispatcher
	metrics     *observability.Metrics
	now         func() time.Time
}

func NewService(
	log *logger.Logger,
	subs submissions.SubmissionRepo,
	dl deadlines.DeadlineRepo,
	collector *Collector,
	ai *AIGrader,
	notifier notify.Dispatcher,
	metrics *observability.Metrics,
) Service {
	return &service{
		log:         log.With("service", "GradingService"),
		submissions: subs,
		deadlines:   dl,
		collector:   collector,
		ai:          ai,
		notifier:    notifier,
		metrics:     metrics,
		now:         time.Now,
	}
}

func (s *service) Grade(ctx context.Context, submissionID uuid.UUID) (out *types.Submission, err error) {
	ctx, span := observability.Tracer("grading").Start(ctx, "grading.grade")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "grade failed")
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("submission.id", submissionID.String()))
	dbc := dbctx.Context{Ctx: ctx}

	sub, err := s.submissions.GetByID(dbc, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.Status != types.SubmissionPending {
		return nil, apierr.Conflict("submission_not_gradable", fmt.Errorf("%w: status is %s", ErrNotGradable, sub.Status))
	}
	ok, err := s.submissions.Transition(dbc, sub.ID, []types.SubmissionStatus{types.SubmissionPending}, types.SubmissionGrading)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierr.Conflict("submission_not_gradable", fmt.Errorf("%w: already being graded", ErrNotGradable))
	}

	res, cp, err := s.evaluate(ctx, sub)
	if err != nil {
		s.revert(ctx, sub.ID)
		return nil, err
	}
	span.SetAttributes(attribute.String("grading.tier", res.Tier), attribute.String("grading.verdict", string(res.Verdict)))

	ok, err = s.submissions.SaveGrade(dbc, sub.ID, []types.SubmissionStatus{types.SubmissionGrading}, submissions.GradeFields{
		Status:        res.Status(),
		Feedback:      res.Reasoning,
		Confidence:    ClampConfidence(res.Confidence),
		GradedBy:      res.Tier,
		GradedAt:      s.now().UTC(),
		WordCount:     res.WordCount,
		URLAccessible: res.URLAccessible,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errGradeNotApplied
	}
	s.metrics.IncGradingResult(res.Tier, string(res.Verdict))

	return s.finish(ctx, sub.ID, cp)
}

// evaluate runs tier 1 and escalates to the model when tier 1 cannot decide or
// the rubric asks for judgment.
func (s *service) evaluate(ctx context.Context, sub *types.Submission) (Result, *types.Checkpoint, error) {
	cp, err := s.deadlines.GetCheckpoint(dbctx.Context{Ctx: ctx}, sub.CheckpointID)
	if err != nil {
		return Result{}, nil, err
	}
	req := ParseRubric(cp.Rubric)
	sig, err := s.collector.Collect(ctx, sub, req)
	if err != nil {
		return Result{}, nil, err
	}
	if sig.CommitErr != nil {
		s.log.Warn("GitHub commit lookup failed", "submission_id", sub.ID, "error", sig.CommitErr)
	}

	res := Check(req, sig)
	if !res.Inconclusive && (res.Verdict == VerdictFail || !req.NeedsJudgment()) {
		return res, cp, nil
	}
	if s.ai == nil {
		return Result{}, nil, ErrGraderMissing
	}
	ai, err := s.ai.Grade(ctx, JudgeInput{CheckpointTitle: cp.Title, Rubric: cp.Rubric, Signals: sig})
	if err != nil {
		return Result{}, nil, err
	}
	ai.WordCount = res.WordCount
	ai.URLAccessible = res.URLAccessible
	return ai, cp, nil
}

// revert hands the submission back to pending so a later attempt can grade it.
func (s *service) revert(ctx context.Context, id uuid.UUID) {
	ok, err := s.submissions.Transition(dbctx.Context{Ctx: context.WithoutCancel(ctx)}, id,
		[]types.SubmissionStatus{types.SubmissionGrading}, types.SubmissionPending)
	if err != nil || !ok {
		s.log.Error("Failed to return submission to pending", "submission_id", id, "ok", ok, "error", err)
	}
}

func (s *service) Override(ctx context.Context, submissionID uuid.UUID, verdict types.SubmissionStatus, note string) (*types.Submission, error) {
	switch verdict {
	case types.SubmissionPassed, types.SubmissionFailed, types.SubmissionContested:
	default:
		return nil, apierr.BadRequest("invalid_verdict", ErrInvalidVerdict)
	}
	dbc := dbctx.Context{Ctx: ctx}
	sub, err := s.submissions.GetByID(dbc, submissionID)
	if err != nil {
		return nil, err
	}
	from := []types.SubmissionStatus{
		types.SubmissionPending, types.SubmissionPassed, types.SubmissionFailed, types.SubmissionContested,
	}
	ok, err := s.submissions.SaveGrade(dbc, sub.ID, from, submissions.GradeFields{
		Status:        verdict,
		Feedback:      note,
		Confidence:    1,
		GradedBy:      submission.GradedByWitness,
		GradedAt:      s.now().UTC(),
		WordCount:     sub.WordCount,
		URLAccessible: sub.URLAccessible,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierr.Conflict("submission_not_gradable", fmt.Errorf("%w: grading in progress", ErrNotGradable))
	}
	s.metrics.IncGradingResult(submission.GradedByWitness, string(verdict))
	s.log.Info("Witness override recorded", "submission_id", sub.ID, "from", sub.Status, "to", verdict)

	cp, err := s.deadlines.GetCheckpoint(dbc, sub.CheckpointID)
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, sub.ID, cp)
}

// finish completes the checkpoint on a pass and tells the user. Neither step can
// undo the stored verdict.
func (s *service) finish(ctx context.Context, id uuid.UUID, cp *types.Checkpoint) (*types.Submission, error) {
	dbc := dbctx.Context{Ctx: ctx}
	sub, err := s.submissions.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if sub.Status == types.SubmissionPassed {
		if _, err := s.deadlines.CompleteCheckpoint(dbc, cp.ID, s.now()); err != nil {
			s.log.Error("Failed to complete checkpoint", "checkpoint_id", cp.ID, "error", err)
		}
	}
	if sub.Status != types.SubmissionContested && s.notifier != nil {
		s.notifier.SubmissionResult(ctx, sub, cp)
	}
	return sub, nil
}
