package educms

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// User association operations

// ToggleFavorite adds itemID to the user's favorite set for kind, or
// removes it when already present. The flip is a single atomic store write.
func (s *service) ToggleFavorite(ctx context.Context, userID uuid.UUID, kind Kind, itemID uuid.UUID) (FavoriteResult, error) {
	if !kind.HasFavorites() {
		return "", &ReferenceError{Kind: kind, ID: itemID.String(), Err: fmt.Errorf("%w: %s has no favorites", ErrInvalidReference, kind)}
	}
	if err := s.exists(ctx, kind, itemID); err != nil {
		return "", err
	}

	present, err := s.repository.ToggleFavorite(ctx, userID, kind, itemID)
	if err != nil {
		return "", err
	}
	if present {
		return FavoriteAdded, nil
	}
	return FavoriteRemoved, nil
}

// Join enrolls a user in a course.
func (s *service) Join(ctx context.Context, userID, courseID uuid.UUID) error {
	if _, err := s.repository.GetUser(ctx, userID); err != nil {
		return err
	}
	if _, err := s.repository.GetCourse(ctx, courseID); err != nil {
		return err
	}

	added, err := s.repository.AddEnrollment(ctx, userID, courseID)
	if err != nil {
		return fmt.Errorf("failed to enroll user %s in course %s: %w", userID, courseID, err)
	}
	if !added {
		return ErrAlreadyJoined
	}

	s.logger.Info("User joined course", "user_id", userID, "course_id", courseID)
	s.userJoined(ctx, userID, courseID)
	return nil
}

// Leave removes a user's enrollment in a course.
func (s *service) Leave(ctx context.Context, userID, courseID uuid.UUID) error {
	removed, err := s.repository.RemoveEnrollment(ctx, userID, courseID)
	if err != nil {
		return fmt.Errorf("failed to unenroll user %s from course %s: %w", userID, courseID, err)
	}
	if !removed {
		return ErrNotJoined
	}
	s.logger.Info("User left course", "user_id", userID, "course_id", courseID)
	return nil
}

// PruneUserReferences removes deletedID from every user's favorite set for
// kind. For courses it also removes every enrollment of the course.
func (s *service) PruneUserReferences(ctx context.Context, kind Kind, deletedID uuid.UUID) (int64, error) {
	var total int64
	if kind.HasFavorites() {
		n, err := s.repository.PullFavorite(ctx, kind, deletedID)
		if err != nil {
			return total, fmt.Errorf("failed to prune %s favorites of %s: %w", kind, deletedID, err)
		}
		total += n
	}
	if kind == KindCourse {
		n, err := s.repository.RemoveCourseEnrollments(ctx, deletedID)
		if err != nil {
			return total, fmt.Errorf("failed to prune enrollments of course %s: %w", deletedID, err)
		}
		total += n
	}
	if total > 0 {
		s.logger.Info("Pruned user references", "kind", kind, "content_id", deletedID, "records", total)
	}
	return total, nil
}
