package educms

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// MediaStore defines the interface for media file backends.
type MediaStore interface {
	// Store writes r under a fresh path ending in ext and returns the path.
	Store(ctx context.Context, r io.Reader, ext string) (string, error)

	// Open returns the content stored at path. ErrNotFound when absent.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes the file at path. Deleting an absent path succeeds.
	Delete(ctx context.Context, path string) error
}

// Repository defines the interface for record persistence.
//
// Every Pull*/Toggle*/enrollment method must be atomic per document in the
// backing store, since they run concurrently with edits and other prunes.
// Update* writes only the fields the update supplies and leaves counters and
// CreatedAt untouched. Unsupplied fields, Related in particular, are never
// rewritten from an earlier read.
type Repository interface {
	// Content item operations
	CreateItem(ctx context.Context, item *Item) error
	GetItem(ctx context.Context, kind Kind, id uuid.UUID) (*Item, error)
	UpdateItem(ctx context.Context, kind Kind, id uuid.UUID, upd ItemUpdate) error
	DeleteItem(ctx context.Context, kind Kind, id uuid.UUID) error
	ListItems(ctx context.Context, kind Kind, filter ListFilter) ([]*Item, error)

	// Course operations
	CreateCourse(ctx context.Context, course *Course) error
	GetCourse(ctx context.Context, id uuid.UUID) (*Course, error)
	UpdateCourse(ctx context.Context, id uuid.UUID, upd CourseUpdate) error
	DeleteCourse(ctx context.Context, id uuid.UUID) error
	ListCourses(ctx context.Context, filter ListFilter) ([]*Course, error)

	// IncrementVisits bumps the visit counter of an item or course.
	IncrementVisits(ctx context.Context, kind Kind, id uuid.UUID) error

	// PullRelated removes id from every related set of kind and returns
	// the number of records changed.
	PullRelated(ctx context.Context, kind Kind, id uuid.UUID) (int64, error)

	// PullCourseContent removes every {id, itemType} entry from every course.
	PullCourseContent(ctx context.Context, itemType ItemType, id string) (int64, error)

	// User operations
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// ToggleFavorite flips membership of itemID in the user's favorite set
	// for kind and reports whether it is present afterwards.
	ToggleFavorite(ctx context.Context, userID uuid.UUID, kind Kind, itemID uuid.UUID) (bool, error)
	PullFavorite(ctx context.Context, kind Kind, itemID uuid.UUID) (int64, error)

	// Enrollment operations. AddEnrollment and RemoveEnrollment report
	// whether the relation changed.
	AddEnrollment(ctx context.Context, userID, courseID uuid.UUID) (bool, error)
	RemoveEnrollment(ctx context.Context, userID, courseID uuid.UUID) (bool, error)
	RemoveCourseEnrollments(ctx context.Context, courseID uuid.UUID) (int64, error)
	ListCourseMembers(ctx context.Context, courseID uuid.UUID) ([]uuid.UUID, error)
	ListUserCourses(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)

	// Category operations
	CreateCategory(ctx context.Context, category *Category) error
	GetCategory(ctx context.Context, id uuid.UUID) (*Category, error)
	ListCategories(ctx context.Context) ([]*Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error

	// Site configuration operations
	GetSiteConfig(ctx context.Context, key string) (*SiteConfig, error)
	SaveSiteConfig(ctx context.Context, cfg *SiteConfig) error
}

// EventSink defines the interface for lifecycle event handling
type EventSink interface {
	ItemCreated(ctx context.Context, kind Kind, id uuid.UUID) error
	ItemUpdated(ctx context.Context, kind Kind, id uuid.UUID) error
	ItemDeleted(ctx context.Context, kind Kind, id uuid.UUID) error
	UserJoined(ctx context.Context, userID, courseID uuid.UUID) error
}
