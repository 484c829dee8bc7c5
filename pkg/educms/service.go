package educms

import (
	"context"
	"encoding/json"
	"io"

	"github.com/google/uuid"
)

// Service defines the main interface for the content engine
type Service interface {
	// Content operations
	CreateItem(ctx context.Context, req CreateItemRequest) (*Item, error)
	GetItem(ctx context.Context, kind Kind, id uuid.UUID) (*Item, error)
	EditItem(ctx context.Context, req EditItemRequest) (*Item, error)
	ListItems(ctx context.Context, kind Kind, filter ListFilter) ([]*ItemSummary, error)

	// Course operations
	CreateCourse(ctx context.Context, req CreateCourseRequest) (*Course, error)
	GetCourse(ctx context.Context, id uuid.UUID) (*Course, error)
	EditCourse(ctx context.Context, req EditCourseRequest) (*Course, error)
	ListCourses(ctx context.Context, filter ListFilter) ([]*ItemSummary, error)

	// RecordVisit increments the visit counter (listens, for podcasts).
	RecordVisit(ctx context.Context, kind Kind, id uuid.UUID) error

	// Relationship graph operations
	SetRelated(ctx context.Context, kind Kind, id uuid.UUID, related []uuid.UUID) error
	PruneRelated(ctx context.Context, kind Kind, deletedID uuid.UUID) (int64, error)

	// Course composition operations
	SetCourseContent(ctx context.Context, courseID uuid.UUID, entries []ContentRef) error
	ResolveCourseContent(ctx context.Context, courseID uuid.UUID) ([]ResolvedEntry, error)
	PruneCourseContent(ctx context.Context, itemType ItemType, deletedID uuid.UUID) (int64, error)

	// User association operations
	ToggleFavorite(ctx context.Context, userID uuid.UUID, kind Kind, itemID uuid.UUID) (FavoriteResult, error)
	Join(ctx context.Context, userID, courseID uuid.UUID) error
	Leave(ctx context.Context, userID, courseID uuid.UUID) error
	PruneUserReferences(ctx context.Context, kind Kind, deletedID uuid.UUID) (int64, error)

	// Deletion operations
	Delete(ctx context.Context, kind Kind, id uuid.UUID) error
	DeleteWithReport(ctx context.Context, kind Kind, id uuid.UUID) (*DeletionReport, error)

	// User operations
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	Authenticate(ctx context.Context, username, password string) (*User, error)

	// Category operations
	CreateCategory(ctx context.Context, name string) (*Category, error)
	GetCategory(ctx context.Context, id uuid.UUID) (*Category, error)
	ListCategories(ctx context.Context) ([]*Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error

	// Site configuration operations
	GetSiteConfig(ctx context.Context, key string) (*SiteConfig, error)
	SaveSiteConfig(ctx context.Context, key string, doc json.RawMessage) (*SiteConfig, error)

	// UploadMedia stores a file and returns the path items reference it by.
	UploadMedia(ctx context.Context, r io.Reader, ext string) (string, error)
}
