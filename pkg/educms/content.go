package educms

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Content item operations

func (s *service) CreateItem(ctx context.Context, req CreateItemRequest) (*Item, error) {
	if !req.Kind.IsItem() {
		return nil, invalid("kind")
	}

	now := s.now()
	item := &Item{
		ID:               uuid.New(),
		Kind:             req.Kind,
		Title:            strings.TrimSpace(req.Title),
		ShortDescription: strings.TrimSpace(req.ShortDescription),
		CategoryID:       req.CategoryID,
		Thumbnail:        req.Thumbnail,
		Body:             req.Body,
		LongDescription:  req.LongDescription,
		MediaPath:        req.MediaPath,
		ResumePath:       req.ResumePath,
		Related:          []uuid.UUID{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := validateItem(item); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, item.CategoryID); err != nil {
		return nil, err
	}
	if len(req.Related) > 0 {
		related, err := s.checkRelated(ctx, item.Kind, item.ID, req.Related)
		if err != nil {
			return nil, err
		}
		item.Related = related
	}

	if err := s.repository.CreateItem(ctx, item); err != nil {
		return nil, &RecordError{Kind: item.Kind, ID: item.ID, Op: "create", Err: err}
	}

	s.logger.Info("Created item", "kind", item.Kind, "content_id", item.ID)
	s.itemCreated(ctx, item.Kind, item.ID)
	return item, nil
}

func (s *service) GetItem(ctx context.Context, kind Kind, id uuid.UUID) (*Item, error) {
	if !kind.IsItem() {
		return nil, invalid("kind")
	}
	return s.repository.GetItem(ctx, kind, id)
}

func (s *service) EditItem(ctx context.Context, req EditItemRequest) (*Item, error) {
	if !req.Kind.IsItem() {
		return nil, invalid("kind")
	}
	item, err := s.repository.GetItem(ctx, req.Kind, req.ID)
	if err != nil {
		return nil, err
	}

	upd := ItemUpdate{
		Title:            trimmed(req.Title),
		ShortDescription: trimmed(req.ShortDescription),
		CategoryID:       req.CategoryID,
		Thumbnail:        req.Thumbnail,
		Body:             req.Body,
		LongDescription:  req.LongDescription,
		MediaPath:        req.MediaPath,
		ResumePath:       req.ResumePath,
		UpdatedAt:        s.now(),
	}
	upd.Apply(item)

	if err := validateItem(item); err != nil {
		return nil, err
	}
	if req.CategoryID != nil {
		if err := s.checkCategory(ctx, item.CategoryID); err != nil {
			return nil, err
		}
	}
	if req.Related != nil {
		related, err := s.checkRelated(ctx, item.Kind, item.ID, *req.Related)
		if err != nil {
			return nil, err
		}
		upd.Related = &related
	}

	if err := s.repository.UpdateItem(ctx, item.Kind, item.ID, upd); err != nil {
		return nil, &RecordError{Kind: item.Kind, ID: item.ID, Op: "update", Err: err}
	}

	s.logger.Info("Updated item", "kind", item.Kind, "content_id", item.ID)
	s.itemUpdated(ctx, item.Kind, item.ID)
	return s.repository.GetItem(ctx, item.Kind, item.ID)
}

func (s *service) ListItems(ctx context.Context, kind Kind, filter ListFilter) ([]*ItemSummary, error) {
	if !kind.IsItem() {
		return nil, invalid("kind")
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	items, err := s.repository.ListItems(ctx, kind, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s items: %w", kind, err)
	}
	summaries := make([]*ItemSummary, 0, len(items))
	for _, item := range items {
		summaries = append(summaries, item.Summary())
	}
	return summaries, nil
}

// Course operations

func (s *service) CreateCourse(ctx context.Context, req CreateCourseRequest) (*Course, error) {
	now := s.now()
	course := &Course{
		ID:               uuid.New(),
		Title:            strings.TrimSpace(req.Title),
		ShortDescription: strings.TrimSpace(req.ShortDescription),
		CategoryID:       req.CategoryID,
		Thumbnail:        req.Thumbnail,
		Level:            req.Level,
		Duration:         req.Duration,
		Goal:             req.Goal,
		Topics:           orEmpty(req.Topics),
		FAQ:              orEmpty(req.FAQ),
		Content:          []ContentRef{},
		Related:          []uuid.UUID{},
		JoinedBy:         []uuid.UUID{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := validateCourse(course); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, course.CategoryID); err != nil {
		return nil, err
	}
	if len(req.Content) > 0 {
		content, err := s.checkContent(ctx, req.Content)
		if err != nil {
			return nil, err
		}
		course.Content = content
	}
	if len(req.Related) > 0 {
		related, err := s.checkRelated(ctx, KindCourse, course.ID, req.Related)
		if err != nil {
			return nil, err
		}
		course.Related = related
	}

	if err := s.repository.CreateCourse(ctx, course); err != nil {
		return nil, &RecordError{Kind: KindCourse, ID: course.ID, Op: "create", Err: err}
	}

	s.logger.Info("Created course", "content_id", course.ID)
	s.itemCreated(ctx, KindCourse, course.ID)
	return course, nil
}

func (s *service) GetCourse(ctx context.Context, id uuid.UUID) (*Course, error) {
	course, err := s.repository.GetCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	members, err := s.repository.ListCourseMembers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list members of course %s: %w", id, err)
	}
	course.JoinedBy = orEmpty(members)
	return course, nil
}

func (s *service) EditCourse(ctx context.Context, req EditCourseRequest) (*Course, error) {
	course, err := s.repository.GetCourse(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	upd := CourseUpdate{
		Title:            trimmed(req.Title),
		ShortDescription: trimmed(req.ShortDescription),
		CategoryID:       req.CategoryID,
		Thumbnail:        req.Thumbnail,
		Level:            req.Level,
		Duration:         req.Duration,
		Goal:             req.Goal,
		UpdatedAt:        s.now(),
	}
	if req.Topics != nil {
		topics := orEmpty(*req.Topics)
		upd.Topics = &topics
	}
	if req.FAQ != nil {
		faq := orEmpty(*req.FAQ)
		upd.FAQ = &faq
	}
	upd.Apply(course)

	if err := validateCourse(course); err != nil {
		return nil, err
	}
	if req.CategoryID != nil {
		if err := s.checkCategory(ctx, course.CategoryID); err != nil {
			return nil, err
		}
	}
	if req.Content != nil {
		content, err := s.checkContent(ctx, *req.Content)
		if err != nil {
			return nil, err
		}
		upd.Content = &content
	}
	if req.Related != nil {
		related, err := s.checkRelated(ctx, KindCourse, course.ID, *req.Related)
		if err != nil {
			return nil, err
		}
		upd.Related = &related
	}

	if err := s.repository.UpdateCourse(ctx, course.ID, upd); err != nil {
		return nil, &RecordError{Kind: KindCourse, ID: course.ID, Op: "update", Err: err}
	}

	s.logger.Info("Updated course", "content_id", course.ID)
	s.itemUpdated(ctx, KindCourse, course.ID)
	return s.GetCourse(ctx, course.ID)
}

func (s *service) ListCourses(ctx context.Context, filter ListFilter) ([]*ItemSummary, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	courses, err := s.repository.ListCourses(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	summaries := make([]*ItemSummary, 0, len(courses))
	for _, course := range courses {
		summaries = append(summaries, course.Summary())
	}
	return summaries, nil
}

func (s *service) RecordVisit(ctx context.Context, kind Kind, id uuid.UUID) error {
	if !kind.Valid() {
		return invalid("kind")
	}
	return s.repository.IncrementVisits(ctx, kind, id)
}

// Validation helpers

func validateItem(item *Item) error {
	if item.Title == "" {
		return missing("title")
	}
	if item.ShortDescription == "" {
		return missing("short_description")
	}
	if item.CategoryID == uuid.Nil {
		return missing("category_id")
	}
	if item.Thumbnail == "" {
		return missing("thumbnail")
	}
	switch item.Kind {
	case KindArticle, KindCounsel:
		if emptyDocument(item.Body) {
			return missing("body")
		}
	case KindPodcast, KindVideo:
		if emptyDocument(item.LongDescription) {
			return missing("long_description")
		}
		if item.MediaPath == "" {
			return missing("media_path")
		}
	}
	return nil
}

func validateCourse(course *Course) error {
	if course.Title == "" {
		return missing("title")
	}
	if course.ShortDescription == "" {
		return missing("short_description")
	}
	if course.CategoryID == uuid.Nil {
		return missing("category_id")
	}
	if course.Thumbnail == "" {
		return missing("thumbnail")
	}
	if course.Level == "" {
		return missing("level")
	}
	if !course.Level.Valid() {
		return invalid("level")
	}
	return nil
}

func validateFilter(filter ListFilter) error {
	if filter.Limit < 0 {
		return invalid("limit")
	}
	if filter.Offset < 0 {
		return invalid("offset")
	}
	return nil
}

func (s *service) checkCategory(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repository.GetCategory(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return &ValidationError{Field: "category_id", Err: ErrInvalidCategory}
		}
		return fmt.Errorf("failed to resolve category %s: %w", id, err)
	}
	return nil
}

// exists reports ErrNotFound when no record of kind has id.
func (s *service) exists(ctx context.Context, kind Kind, id uuid.UUID) error {
	var err error
	if kind == KindCourse {
		_, err = s.repository.GetCourse(ctx, id)
	} else {
		_, err = s.repository.GetItem(ctx, kind, id)
	}
	return err
}

func emptyDocument(doc []byte) bool {
	doc = bytes.TrimSpace(doc)
	return len(doc) == 0 || bytes.Equal(doc, []byte("null"))
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
