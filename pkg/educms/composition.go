package educms

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Course composition operations

// SetCourseContent replaces the curriculum of a course. Article and video
// entries must resolve; quiz entries are stored as given. Order and
// duplicates are preserved.
func (s *service) SetCourseContent(ctx context.Context, courseID uuid.UUID, entries []ContentRef) error {
	content := orEmpty(entries)
	_, err := s.EditCourse(ctx, EditCourseRequest{ID: courseID, Content: &content})
	return err
}

// ResolveCourseContent resolves every curriculum position. Positions whose
// item no longer exists are marked missing rather than dropped.
func (s *service) ResolveCourseContent(ctx context.Context, courseID uuid.UUID) ([]ResolvedEntry, error) {
	course, err := s.repository.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	entries := make([]ResolvedEntry, 0, len(course.Content))
	for i, ref := range course.Content {
		entry := ResolvedEntry{Position: i, Ref: ref, Status: EntryMissing}

		kind, ok := ref.ItemType.Kind()
		if !ok {
			if ref.ItemType == ItemTypeQuiz {
				entry.Status = EntryOpaque
			}
			entries = append(entries, entry)
			continue
		}

		id, err := uuid.Parse(ref.ItemID)
		if err != nil {
			entries = append(entries, entry)
			continue
		}
		item, err := s.repository.GetItem(ctx, kind, id)
		switch {
		case err == nil:
			entry.Status = EntryResolved
			entry.Item = item.Summary()
		case errors.Is(err, ErrNotFound):
		default:
			return nil, fmt.Errorf("failed to resolve %s %s in course %s: %w", kind, id, courseID, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// PruneCourseContent removes every entry matching {deletedID, itemType}
// from every course, keeping survivors in order.
func (s *service) PruneCourseContent(ctx context.Context, itemType ItemType, deletedID uuid.UUID) (int64, error) {
	if _, ok := itemType.Kind(); !ok {
		return 0, invalid("item_type")
	}
	n, err := s.repository.PullCourseContent(ctx, itemType, deletedID.String())
	if err != nil {
		return n, fmt.Errorf("failed to prune course content %s %s: %w", itemType, deletedID, err)
	}
	if n > 0 {
		s.logger.Info("Pruned course content", "item_type", itemType, "content_id", deletedID, "courses", n)
	}
	return n, nil
}

func (s *service) checkContent(ctx context.Context, entries []ContentRef) ([]ContentRef, error) {
	content := make([]ContentRef, 0, len(entries))
	for _, ref := range entries {
		if ref.ItemType == ItemTypeQuiz {
			content = append(content, ref)
			continue
		}
		kind, ok := ref.ItemType.Kind()
		if !ok {
			return nil, &ReferenceError{Kind: Kind(ref.ItemType), ID: ref.ItemID, Err: fmt.Errorf("%w: unknown item type %q", ErrInvalidReference, ref.ItemType)}
		}
		id, err := uuid.Parse(ref.ItemID)
		if err != nil {
			return nil, &ReferenceError{Kind: kind, ID: ref.ItemID, Err: ErrInvalidReference}
		}
		if err := s.exists(ctx, kind, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, &ReferenceError{Kind: kind, ID: ref.ItemID, Err: ErrInvalidReference}
			}
			return nil, fmt.Errorf("failed to resolve %s %s: %w", kind, id, err)
		}
		// canonical form so prunes match by string
		content = append(content, ContentRef{ItemID: id.String(), ItemType: ref.ItemType})
	}
	return content, nil
}
