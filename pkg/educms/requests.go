package educms

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Request DTOs

// CreateItemRequest contains parameters for creating an article, counsel,
// podcast or video. Kind selects which fields are required.
type CreateItemRequest struct {
	Kind             Kind            `json:"kind"`
	Title            string          `json:"title"`
	ShortDescription string          `json:"short_description"`
	CategoryID       uuid.UUID       `json:"category_id"`
	Thumbnail        string          `json:"thumbnail"`
	Body             json.RawMessage `json:"body,omitempty"`
	LongDescription  json.RawMessage `json:"long_description,omitempty"`
	MediaPath        string          `json:"media_path,omitempty"`
	ResumePath       string          `json:"resume_path,omitempty"`
	Related          []uuid.UUID     `json:"related,omitempty"`
}

// EditItemRequest contains parameters for a partial edit. Nil fields are
// left unchanged; Related replaces the whole set when supplied.
type EditItemRequest struct {
	Kind             Kind             `json:"-"`
	ID               uuid.UUID        `json:"-"`
	Title            *string          `json:"title,omitempty"`
	ShortDescription *string          `json:"short_description,omitempty"`
	CategoryID       *uuid.UUID       `json:"category_id,omitempty"`
	Thumbnail        *string          `json:"thumbnail,omitempty"`
	Body             *json.RawMessage `json:"body,omitempty"`
	LongDescription  *json.RawMessage `json:"long_description,omitempty"`
	MediaPath        *string          `json:"media_path,omitempty"`
	ResumePath       *string          `json:"resume_path,omitempty"`
	Related          *[]uuid.UUID     `json:"related,omitempty"`
}

// CreateCourseRequest contains parameters for creating a course
type CreateCourseRequest struct {
	Title            string       `json:"title"`
	ShortDescription string       `json:"short_description"`
	CategoryID       uuid.UUID    `json:"category_id"`
	Thumbnail        string       `json:"thumbnail"`
	Level            Level        `json:"level"`
	Duration         string       `json:"duration,omitempty"`
	Goal             string       `json:"goal,omitempty"`
	Topics           []string     `json:"topics,omitempty"`
	FAQ              []FAQ        `json:"faq,omitempty"`
	Content          []ContentRef `json:"content,omitempty"`
	Related          []uuid.UUID  `json:"related,omitempty"`
}

// EditCourseRequest contains parameters for a partial course edit.
// Content and Related replace wholesale when supplied.
type EditCourseRequest struct {
	ID               uuid.UUID     `json:"-"`
	Title            *string       `json:"title,omitempty"`
	ShortDescription *string       `json:"short_description,omitempty"`
	CategoryID       *uuid.UUID    `json:"category_id,omitempty"`
	Thumbnail        *string       `json:"thumbnail,omitempty"`
	Level            *Level        `json:"level,omitempty"`
	Duration         *string       `json:"duration,omitempty"`
	Goal             *string       `json:"goal,omitempty"`
	Topics           *[]string     `json:"topics,omitempty"`
	FAQ              *[]FAQ        `json:"faq,omitempty"`
	Content          *[]ContentRef `json:"content,omitempty"`
	Related          *[]uuid.UUID  `json:"related,omitempty"`
}

// CreateUserRequest contains parameters for registering a user.
// An empty Role defaults to RoleUser.
type CreateUserRequest struct {
	Username string `json:"username"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Role     Role   `json:"role,omitempty"`
}

// ItemUpdate is the set of columns an edit writes. Nil fields are not
// written, so a concurrent prune of Related survives an edit that never
// named it.
type ItemUpdate struct {
	Title            *string
	ShortDescription *string
	CategoryID       *uuid.UUID
	Thumbnail        *string
	Body             *json.RawMessage
	LongDescription  *json.RawMessage
	MediaPath        *string
	ResumePath       *string
	Related          *[]uuid.UUID
	UpdatedAt        time.Time
}

// Apply copies the supplied fields onto item.
func (u ItemUpdate) Apply(item *Item) {
	if u.Title != nil {
		item.Title = *u.Title
	}
	if u.ShortDescription != nil {
		item.ShortDescription = *u.ShortDescription
	}
	if u.CategoryID != nil {
		item.CategoryID = *u.CategoryID
	}
	if u.Thumbnail != nil {
		item.Thumbnail = *u.Thumbnail
	}
	if u.Body != nil {
		item.Body = *u.Body
	}
	if u.LongDescription != nil {
		item.LongDescription = *u.LongDescription
	}
	if u.MediaPath != nil {
		item.MediaPath = *u.MediaPath
	}
	if u.ResumePath != nil {
		item.ResumePath = *u.ResumePath
	}
	if u.Related != nil {
		item.Related = *u.Related
	}
	if !u.UpdatedAt.IsZero() {
		item.UpdatedAt = u.UpdatedAt
	}
}

// CourseUpdate is the course counterpart of ItemUpdate. Content and Related
// are written only when supplied.
type CourseUpdate struct {
	Title            *string
	ShortDescription *string
	CategoryID       *uuid.UUID
	Thumbnail        *string
	Level            *Level
	Duration         *string
	Goal             *string
	Topics           *[]string
	FAQ              *[]FAQ
	Content          *[]ContentRef
	Related          *[]uuid.UUID
	UpdatedAt        time.Time
}

// Apply copies the supplied fields onto course.
func (u CourseUpdate) Apply(course *Course) {
	if u.Title != nil {
		course.Title = *u.Title
	}
	if u.ShortDescription != nil {
		course.ShortDescription = *u.ShortDescription
	}
	if u.CategoryID != nil {
		course.CategoryID = *u.CategoryID
	}
	if u.Thumbnail != nil {
		course.Thumbnail = *u.Thumbnail
	}
	if u.Level != nil {
		course.Level = *u.Level
	}
	if u.Duration != nil {
		course.Duration = *u.Duration
	}
	if u.Goal != nil {
		course.Goal = *u.Goal
	}
	if u.Topics != nil {
		course.Topics = *u.Topics
	}
	if u.FAQ != nil {
		course.FAQ = *u.FAQ
	}
	if u.Content != nil {
		course.Content = *u.Content
	}
	if u.Related != nil {
		course.Related = *u.Related
	}
	if !u.UpdatedAt.IsZero() {
		course.UpdatedAt = u.UpdatedAt
	}
}
