package educms

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind identifies a record collection.
type Kind string

// Kind constants (typed).
const (
	KindArticle Kind = "article"
	KindCounsel Kind = "counsel"
	KindPodcast Kind = "podcast"
	KindVideo   Kind = "video"
	KindCourse  Kind = "course"
)

// ItemKinds lists the kinds stored as content items. Courses are stored apart.
var ItemKinds = []Kind{KindArticle, KindCounsel, KindPodcast, KindVideo}

// IsItem reports whether k is one of the content item kinds.
func (k Kind) IsItem() bool {
	switch k {
	case KindArticle, KindCounsel, KindPodcast, KindVideo:
		return true
	}
	return false
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k.IsItem() || k == KindCourse
}

// HasFavorites reports whether users keep a favorite set for k.
func (k Kind) HasFavorites() bool {
	switch k {
	case KindArticle, KindVideo, KindPodcast, KindCourse:
		return true
	}
	return false
}

// ParseKind accepts the singular or plural name of a kind, case-insensitively.
func ParseKind(s string) (Kind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "s")
	k := Kind(s)
	return k, k.Valid()
}

// ItemType is the type tag of a course content entry.
type ItemType string

// ItemType constants (typed).
const (
	ItemTypeArticle ItemType = "article"
	ItemTypeVideo   ItemType = "video"
	ItemTypeQuiz    ItemType = "quiz"
)

// Kind maps an entry type to the collection it resolves against.
// Quiz entries are opaque and have no collection.
func (t ItemType) Kind() (Kind, bool) {
	switch t {
	case ItemTypeArticle:
		return KindArticle, true
	case ItemTypeVideo:
		return KindVideo, true
	}
	return "", false
}

// ItemTypeForKind is the inverse of ItemType.Kind.
func ItemTypeForKind(k Kind) (ItemType, bool) {
	switch k {
	case KindArticle:
		return ItemTypeArticle, true
	case KindVideo:
		return ItemTypeVideo, true
	}
	return "", false
}

// Level is the difficulty of a course.
type Level string

const (
	LevelBeginner     Level = "Beginner"
	LevelIntermediate Level = "Intermediate"
	LevelAdvanced     Level = "Advanced"
)

func (l Level) Valid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}

// Role is the authorization role of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Item is an article, counsel, podcast or video.
//
// Body holds the block document of articles and counsels; LongDescription
// holds the block document of podcasts and videos. Both are opaque to the
// engine. MediaPath is the podcast audio or the video source, ResumePath the
// optional counsel attachment.
type Item struct {
	ID               uuid.UUID       `json:"id"`
	Kind             Kind            `json:"kind"`
	Title            string          `json:"title"`
	ShortDescription string          `json:"short_description"`
	CategoryID       uuid.UUID       `json:"category_id"`
	Thumbnail        string          `json:"thumbnail"`
	Body             json.RawMessage `json:"body,omitempty"`
	LongDescription  json.RawMessage `json:"long_description,omitempty"`
	MediaPath        string          `json:"media_path,omitempty"`
	ResumePath       string          `json:"resume_path,omitempty"`
	Related          []uuid.UUID     `json:"related"`
	Visits           int64           `json:"visits"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// MediaPaths returns the media files owned by the item.
// Video sources are external links and are not owned.
func (i *Item) MediaPaths() []string {
	paths := []string{i.Thumbnail}
	switch i.Kind {
	case KindPodcast:
		paths = append(paths, i.MediaPath)
	case KindCounsel:
		paths = append(paths, i.ResumePath)
	}
	return nonEmpty(paths)
}

func (i *Item) Summary() *ItemSummary {
	return &ItemSummary{
		ID:               i.ID,
		Kind:             i.Kind,
		Title:            i.Title,
		ShortDescription: i.ShortDescription,
		CategoryID:       i.CategoryID,
		Thumbnail:        i.Thumbnail,
		Visits:           i.Visits,
		CreatedAt:        i.CreatedAt,
	}
}

// ContentRef is one position in a course curriculum.
// ItemID is a uuid string for articles and videos and an opaque id for quizzes.
type ContentRef struct {
	ItemID   string   `json:"item_id" bson:"item_id"`
	ItemType ItemType `json:"item_type" bson:"item_type"`
}

// FAQ is a question and answer shown on a course page.
type FAQ struct {
	Question string `json:"question" bson:"question"`
	Answer   string `json:"answer" bson:"answer"`
}

// Course is an ordered curriculum with its own page metadata.
// JoinedBy is computed from enrollments on read and never persisted.
type Course struct {
	ID               uuid.UUID    `json:"id"`
	Title            string       `json:"title"`
	ShortDescription string       `json:"short_description"`
	CategoryID       uuid.UUID    `json:"category_id"`
	Thumbnail        string       `json:"thumbnail"`
	Level            Level        `json:"level"`
	Duration         string       `json:"duration,omitempty"`
	Goal             string       `json:"goal,omitempty"`
	Topics           []string     `json:"topics"`
	FAQ              []FAQ        `json:"faq"`
	Content          []ContentRef `json:"content"`
	Related          []uuid.UUID  `json:"related"`
	Visits           int64        `json:"visits"`
	JoinedBy         []uuid.UUID  `json:"joined_by"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

func (c *Course) MediaPaths() []string {
	return nonEmpty([]string{c.Thumbnail})
}

func (c *Course) Summary() *ItemSummary {
	return &ItemSummary{
		ID:               c.ID,
		Kind:             KindCourse,
		Title:            c.Title,
		ShortDescription: c.ShortDescription,
		CategoryID:       c.CategoryID,
		Thumbnail:        c.Thumbnail,
		Visits:           c.Visits,
		CreatedAt:        c.CreatedAt,
	}
}

// ItemSummary is the listing view of an item or a course.
type ItemSummary struct {
	ID               uuid.UUID `json:"id"`
	Kind             Kind      `json:"kind"`
	Title            string    `json:"title"`
	ShortDescription string    `json:"short_description"`
	CategoryID       uuid.UUID `json:"category_id"`
	Thumbnail        string    `json:"thumbnail"`
	Visits           int64     `json:"visits"`
	CreatedAt        time.Time `json:"created_at"`
}

// EntryStatus describes how a curriculum position resolved.
type EntryStatus string

const (
	EntryResolved EntryStatus = "resolved"
	EntryMissing  EntryStatus = "missing"
	EntryOpaque   EntryStatus = "opaque"
)

// ResolvedEntry is one curriculum position after resolution.
// Item is set only when Status is EntryResolved.
type ResolvedEntry struct {
	Position int          `json:"position"`
	Ref      ContentRef   `json:"ref"`
	Status   EntryStatus  `json:"status"`
	Item     *ItemSummary `json:"item,omitempty"`
}

// User is an account of the platform. JoinedCourses is computed from
// enrollments on read and never persisted.
type User struct {
	ID               uuid.UUID   `json:"id"`
	Username         string      `json:"username"`
	Phone            string      `json:"phone"`
	PasswordHash     string      `json:"-"`
	Role             Role        `json:"role"`
	FavoriteArticles []uuid.UUID `json:"favorite_articles"`
	FavoriteVideos   []uuid.UUID `json:"favorite_videos"`
	FavoritePodcasts []uuid.UUID `json:"favorite_podcasts"`
	FavoriteCourses  []uuid.UUID `json:"favorite_courses"`
	JoinedCourses    []uuid.UUID `json:"joined_courses"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// Favorites returns a pointer to the favorite set kept for kind, or nil
// when the kind has none.
func (u *User) Favorites(kind Kind) *[]uuid.UUID {
	switch kind {
	case KindArticle:
		return &u.FavoriteArticles
	case KindVideo:
		return &u.FavoriteVideos
	case KindPodcast:
		return &u.FavoritePodcasts
	case KindCourse:
		return &u.FavoriteCourses
	}
	return nil
}

// FavoriteResult is the outcome of a favorite toggle.
type FavoriteResult string

const (
	FavoriteAdded   FavoriteResult = "added"
	FavoriteRemoved FavoriteResult = "removed"
)

// Category groups items and courses.
type Category struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

// Site configuration keys.
const (
	SiteConfigHome   = "home"
	SiteConfigFooter = "footer"
)

// SiteConfig is a free-form JSON document stored under a well-known key.
type SiteConfig struct {
	Key       string          `json:"key"`
	Document  json.RawMessage `json:"document"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ListFilter narrows item and course listings.
// A zero Limit means no limit.
type ListFilter struct {
	CategoryID *uuid.UUID
	Query      string
	Limit      int
	Offset     int
}

func nonEmpty(paths []string) []string {
	out := paths[:0]
	for _, p := range paths {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
