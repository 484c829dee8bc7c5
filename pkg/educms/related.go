package educms

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Relationship graph operations

// SetRelated replaces the related set of a record. Every candidate must be
// an existing record of the same kind other than the owner. Duplicates
// collapse and first-seen order is kept.
func (s *service) SetRelated(ctx context.Context, kind Kind, id uuid.UUID, related []uuid.UUID) error {
	if !kind.Valid() {
		return invalid("kind")
	}
	ids := orEmpty(related)
	var err error
	if kind == KindCourse {
		_, err = s.EditCourse(ctx, EditCourseRequest{ID: id, Related: &ids})
	} else {
		_, err = s.EditItem(ctx, EditItemRequest{Kind: kind, ID: id, Related: &ids})
	}
	return err
}

// PruneRelated removes deletedID from the related set of every record of
// kind. Records of other kinds are never touched.
func (s *service) PruneRelated(ctx context.Context, kind Kind, deletedID uuid.UUID) (int64, error) {
	if !kind.Valid() {
		return 0, invalid("kind")
	}
	n, err := s.repository.PullRelated(ctx, kind, deletedID)
	if err != nil {
		return n, fmt.Errorf("failed to prune related %s %s: %w", kind, deletedID, err)
	}
	if n > 0 {
		s.logger.Info("Pruned related references", "kind", kind, "content_id", deletedID, "records", n)
	}
	return n, nil
}

func (s *service) checkRelated(ctx context.Context, kind Kind, self uuid.UUID, related []uuid.UUID) ([]uuid.UUID, error) {
	ids := dedupe(related)
	for _, id := range ids {
		if id == self {
			return nil, &ReferenceError{Kind: kind, ID: id.String(), Err: fmt.Errorf("%w: self reference", ErrInvalidReference)}
		}
		if err := s.exists(ctx, kind, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, &ReferenceError{Kind: kind, ID: id.String(), Err: ErrInvalidReference}
			}
			return nil, fmt.Errorf("failed to resolve related %s %s: %w", kind, id, err)
		}
	}
	return ids, nil
}
