package educms

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// Category operations

func (s *service) CreateCategory(ctx context.Context, name string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, missing("name")
	}
	category := &Category{
		ID:        uuid.New(),
		Name:      name,
		Slug:      slug.Make(name),
		CreatedAt: s.now(),
	}
	if category.Slug == "" {
		return nil, invalid("name")
	}
	if err := s.repository.CreateCategory(ctx, category); err != nil {
		return nil, err
	}
	s.logger.Info("Created category", "category_id", category.ID, "slug", category.Slug)
	return category, nil
}

func (s *service) GetCategory(ctx context.Context, id uuid.UUID) (*Category, error) {
	return s.repository.GetCategory(ctx, id)
}

func (s *service) ListCategories(ctx context.Context) ([]*Category, error) {
	categories, err := s.repository.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// DeleteCategory removes the category only. Items and courses filed under
// it keep the dangling id.
func (s *service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if err := s.repository.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Deleted category", "category_id", id)
	return nil
}
