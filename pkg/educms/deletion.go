package educms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DeletionStage is a step of the deletion state machine.
type DeletionStage string

const (
	StageRequested        DeletionStage = "requested"
	StageMediaCleanup     DeletionStage = "media_cleanup"
	StageGraphPrune       DeletionStage = "graph_prune"
	StageCompositionPrune DeletionStage = "composition_prune"
	StageUserPrune        DeletionStage = "user_prune"
	StageRecordRemoved    DeletionStage = "record_removed"
	StageDone             DeletionStage = "done"
)

// MediaFailure is a media file that could not be removed. It never aborts
// a deletion.
type MediaFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// DeletionReport describes the last attempt of a deletion.
type DeletionReport struct {
	Kind           Kind            `json:"kind"`
	ID             uuid.UUID       `json:"id"`
	Attempts       int             `json:"attempts"`
	Stages         []DeletionStage `json:"stages"`
	MediaFailures  []MediaFailure  `json:"media_failures,omitempty"`
	RelatedPruned  int64           `json:"related_pruned"`
	ContentPruned  int64           `json:"content_pruned"`
	UserRefsPruned int64           `json:"user_refs_pruned"`
}

// Completed reports whether the deletion reached StageDone.
func (r *DeletionReport) Completed() bool {
	return len(r.Stages) > 0 && r.Stages[len(r.Stages)-1] == StageDone
}

func (r *DeletionReport) reset() {
	r.Stages = r.Stages[:0]
	r.MediaFailures = nil
	r.RelatedPruned, r.ContentPruned, r.UserRefsPruned = 0, 0, 0
}

func (r *DeletionReport) reached(stages ...DeletionStage) {
	r.Stages = append(r.Stages, stages...)
}

// Delete removes a record and every reference to it.
func (s *service) Delete(ctx context.Context, kind Kind, id uuid.UUID) error {
	_, err := s.DeleteWithReport(ctx, kind, id)
	return err
}

// DeleteWithReport removes a record and every reference to it, restarting
// from the top when a stage fails. Every stage is idempotent, so a restart
// finishes the work of the failed attempt.
func (s *service) DeleteWithReport(ctx context.Context, kind Kind, id uuid.UUID) (*DeletionReport, error) {
	if !kind.Valid() {
		return nil, invalid("kind")
	}

	report := &DeletionReport{Kind: kind, ID: id}
	removalIssued := false
	var lastErr error

	for attempt := 1; attempt <= s.deleteAttempts; attempt++ {
		if attempt > 1 {
			if err := s.backoff(ctx, attempt-1); err != nil {
				break
			}
		}
		report.Attempts = attempt
		report.reset()

		err := s.deleteOnce(ctx, kind, id, report, &removalIssued)
		if err == nil {
			s.logger.Info("Deleted record", "kind", kind, "content_id", id, "attempts", attempt, "media_failures", len(report.MediaFailures))
			s.itemDeleted(ctx, kind, id)
			return report, nil
		}

		var derr *DeletionError
		if !errors.As(err, &derr) {
			return report, err
		}
		lastErr = err
		s.logger.Warn("Deletion attempt failed", "kind", kind, "content_id", id, "attempt", attempt, "stage", derr.Stage, "error", derr.Err)
	}

	s.logger.Error("Failed to delete record", "kind", kind, "content_id", id, "attempts", report.Attempts, "error", lastErr)
	return report, lastErr
}

func (s *service) deleteOnce(ctx context.Context, kind Kind, id uuid.UUID, report *DeletionReport, removalIssued *bool) error {
	report.reached(StageRequested)

	paths, err := s.mediaPaths(ctx, kind, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) && *removalIssued {
			// an earlier attempt removed the record before failing
			report.reached(StageRecordRemoved, StageDone)
			return nil
		}
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return &DeletionError{Kind: kind, ID: id, Stage: StageRequested, Err: err}
	}

	report.MediaFailures = s.cleanupMedia(ctx, kind, id, paths)
	report.reached(StageMediaCleanup)

	pruned := []DeletionStage{StageGraphPrune}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.PruneRelated(gctx, kind, id)
		report.RelatedPruned = n
		if err != nil {
			return &DeletionError{Kind: kind, ID: id, Stage: StageGraphPrune, Err: err}
		}
		return nil
	})
	if itemType, ok := ItemTypeForKind(kind); ok {
		pruned = append(pruned, StageCompositionPrune)
		g.Go(func() error {
			n, err := s.PruneCourseContent(gctx, itemType, id)
			report.ContentPruned = n
			if err != nil {
				return &DeletionError{Kind: kind, ID: id, Stage: StageCompositionPrune, Err: err}
			}
			return nil
		})
	}
	if kind.HasFavorites() {
		pruned = append(pruned, StageUserPrune)
		g.Go(func() error {
			n, err := s.PruneUserReferences(gctx, kind, id)
			report.UserRefsPruned = n
			if err != nil {
				return &DeletionError{Kind: kind, ID: id, Stage: StageUserPrune, Err: err}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	report.reached(pruned...)

	*removalIssued = true
	if kind == KindCourse {
		err = s.repository.DeleteCourse(ctx, id)
	} else {
		err = s.repository.DeleteItem(ctx, kind, id)
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return &DeletionError{Kind: kind, ID: id, Stage: StageRecordRemoved, Err: err}
	}
	report.reached(StageRecordRemoved, StageDone)
	return nil
}

func (s *service) mediaPaths(ctx context.Context, kind Kind, id uuid.UUID) ([]string, error) {
	if kind == KindCourse {
		course, err := s.repository.GetCourse(ctx, id)
		if err != nil {
			return nil, err
		}
		return course.MediaPaths(), nil
	}
	item, err := s.repository.GetItem(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	return item.MediaPaths(), nil
}

// cleanupMedia deletes every path concurrently. Failures are logged and
// returned in path order.
func (s *service) cleanupMedia(ctx context.Context, kind Kind, id uuid.UUID, paths []string) []MediaFailure {
	errs := make([]error, len(paths))
	var g errgroup.Group
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			errs[i] = s.media.Delete(ctx, path)
			return nil
		})
	}
	_ = g.Wait()

	var failures []MediaFailure
	for i, err := range errs {
		if err == nil || errors.Is(err, ErrNotFound) {
			continue
		}
		err = fmt.Errorf("%w: %w", ErrMediaCleanupFailed, err)
		s.logger.Warn("Media cleanup failed", "kind", kind, "content_id", id, "path", paths[i], "error", err)
		failures = append(failures, MediaFailure{Path: paths[i], Error: err.Error()})
	}
	return failures
}

func (s *service) backoff(ctx context.Context, attempt int) error {
	d := time.Duration(attempt) * s.deleteBackoff
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
