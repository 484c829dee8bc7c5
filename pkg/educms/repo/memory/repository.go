package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/edu-cms/pkg/educms"
)

type enrollmentKey struct {
	userID   uuid.UUID
	courseID uuid.UUID
}

// Repository implements educms.Repository using in-memory storage.
// A single lock serializes writers, which makes every pull and toggle
// atomic per record.
type Repository struct {
	mu          sync.RWMutex
	items       map[educms.Kind]map[uuid.UUID]*educms.Item
	courses     map[uuid.UUID]*educms.Course
	users       map[uuid.UUID]*educms.User
	enrollments map[enrollmentKey]time.Time
	categories  map[uuid.UUID]*educms.Category
	site        map[string]*educms.SiteConfig
}

var _ educms.Repository = (*Repository)(nil)

// New creates a new in-memory repository
func New() *Repository {
	r := &Repository{
		items:       make(map[educms.Kind]map[uuid.UUID]*educms.Item),
		courses:     make(map[uuid.UUID]*educms.Course),
		users:       make(map[uuid.UUID]*educms.User),
		enrollments: make(map[enrollmentKey]time.Time),
		categories:  make(map[uuid.UUID]*educms.Category),
		site:        make(map[string]*educms.SiteConfig),
	}
	for _, kind := range educms.ItemKinds {
		r.items[kind] = make(map[uuid.UUID]*educms.Item)
	}
	return r
}

// Content item operations

func (r *Repository) CreateItem(ctx context.Context, item *educms.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	coll, ok := r.items[item.Kind]
	if !ok {
		return fmt.Errorf("unknown item kind %q", item.Kind)
	}
	if _, exists := coll[item.ID]; exists {
		return fmt.Errorf("%s %s already exists", item.Kind, item.ID)
	}
	coll[item.ID] = cloneItem(item)
	return nil
}

func (r *Repository) GetItem(ctx context.Context, kind educms.Kind, id uuid.UUID) (*educms.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, exists := r.items[kind][id]
	if !exists {
		return nil, notFound(kind, id)
	}
	return cloneItem(item), nil
}

func (r *Repository) UpdateItem(ctx context.Context, kind educms.Kind, id uuid.UUID, upd educms.ItemUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.items[kind][id]
	if !exists {
		return notFound(kind, id)
	}
	updated := cloneItem(existing)
	upd.Apply(updated)
	r.items[kind][id] = cloneItem(updated)
	return nil
}

func (r *Repository) DeleteItem(ctx context.Context, kind educms.Kind, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[kind][id]; !exists {
		return notFound(kind, id)
	}
	delete(r.items[kind], id)
	return nil
}

func (r *Repository) ListItems(ctx context.Context, kind educms.Kind, filter educms.ListFilter) ([]*educms.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*educms.Item
	for _, item := range r.items[kind] {
		if matches(filter, item.CategoryID, item.Title) {
			result = append(result, cloneItem(item))
		}
	}

	// Sort by created_at descending
	sort.Slice(result, func(i, j int) bool {
		return newer(result[i].CreatedAt, result[j].CreatedAt, result[i].ID, result[j].ID)
	})
	return page(result, filter), nil
}

// Course operations

func (r *Repository) CreateCourse(ctx context.Context, course *educms.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.courses[course.ID]; exists {
		return fmt.Errorf("course %s already exists", course.ID)
	}
	r.courses[course.ID] = cloneCourse(course)
	return nil
}

func (r *Repository) GetCourse(ctx context.Context, id uuid.UUID) (*educms.Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	course, exists := r.courses[id]
	if !exists {
		return nil, notFound(educms.KindCourse, id)
	}
	return cloneCourse(course), nil
}

func (r *Repository) UpdateCourse(ctx context.Context, id uuid.UUID, upd educms.CourseUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.courses[id]
	if !exists {
		return notFound(educms.KindCourse, id)
	}
	updated := cloneCourse(existing)
	upd.Apply(updated)
	r.courses[id] = cloneCourse(updated)
	return nil
}

func (r *Repository) DeleteCourse(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.courses[id]; !exists {
		return notFound(educms.KindCourse, id)
	}
	delete(r.courses, id)
	return nil
}

func (r *Repository) ListCourses(ctx context.Context, filter educms.ListFilter) ([]*educms.Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*educms.Course
	for _, course := range r.courses {
		if matches(filter, course.CategoryID, course.Title) {
			result = append(result, cloneCourse(course))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return newer(result[i].CreatedAt, result[j].CreatedAt, result[i].ID, result[j].ID)
	})
	return page(result, filter), nil
}

func (r *Repository) IncrementVisits(ctx context.Context, kind educms.Kind, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if kind == educms.KindCourse {
		course, exists := r.courses[id]
		if !exists {
			return notFound(kind, id)
		}
		course.Visits++
		return nil
	}
	item, exists := r.items[kind][id]
	if !exists {
		return notFound(kind, id)
	}
	item.Visits++
	return nil
}

// Reference pruning

func (r *Repository) PullRelated(ctx context.Context, kind educms.Kind, id uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	if kind == educms.KindCourse {
		for _, course := range r.courses {
			if pulled, ok := pull(course.Related, id); ok {
				course.Related = pulled
				n++
			}
		}
		return n, nil
	}
	for _, item := range r.items[kind] {
		if pulled, ok := pull(item.Related, id); ok {
			item.Related = pulled
			n++
		}
	}
	return n, nil
}

func (r *Repository) PullCourseContent(ctx context.Context, itemType educms.ItemType, id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target := educms.ContentRef{ItemID: id, ItemType: itemType}
	var n int64
	for _, course := range r.courses {
		if !slices.Contains(course.Content, target) {
			continue
		}
		kept := make([]educms.ContentRef, 0, len(course.Content))
		for _, ref := range course.Content {
			if ref != target {
				kept = append(kept, ref)
			}
		}
		course.Content = kept
		n++
	}
	return n, nil
}

// User operations

func (r *Repository) CreateUser(ctx context.Context, user *educms.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Username, user.Username) || u.Phone == user.Phone {
			return educms.ErrUserExists
		}
	}
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*educms.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, fmt.Errorf("user %s: %w", id, educms.ErrNotFound)
	}
	return cloneUser(user), nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*educms.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if strings.EqualFold(user.Username, username) {
			return cloneUser(user), nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", username, educms.ErrNotFound)
}

func (r *Repository) ToggleFavorite(ctx context.Context, userID uuid.UUID, kind educms.Kind, itemID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.users[userID]
	if !exists {
		return false, fmt.Errorf("user %s: %w", userID, educms.ErrNotFound)
	}
	favs := user.Favorites(kind)
	if favs == nil {
		return false, fmt.Errorf("%w: %s has no favorites", educms.ErrInvalidReference, kind)
	}
	if pulled, ok := pull(*favs, itemID); ok {
		*favs = pulled
		user.UpdatedAt = time.Now().UTC()
		return false, nil
	}
	*favs = append(*favs, itemID)
	user.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *Repository) PullFavorite(ctx context.Context, kind educms.Kind, itemID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, user := range r.users {
		favs := user.Favorites(kind)
		if favs == nil {
			return 0, fmt.Errorf("%w: %s has no favorites", educms.ErrInvalidReference, kind)
		}
		if pulled, ok := pull(*favs, itemID); ok {
			*favs = pulled
			n++
		}
	}
	return n, nil
}

// Enrollment operations

func (r *Repository) AddEnrollment(ctx context.Context, userID, courseID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := enrollmentKey{userID: userID, courseID: courseID}
	if _, exists := r.enrollments[key]; exists {
		return false, nil
	}
	r.enrollments[key] = time.Now()
	return true, nil
}

func (r *Repository) RemoveEnrollment(ctx context.Context, userID, courseID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := enrollmentKey{userID: userID, courseID: courseID}
	if _, exists := r.enrollments[key]; !exists {
		return false, nil
	}
	delete(r.enrollments, key)
	return true, nil
}

func (r *Repository) RemoveCourseEnrollments(ctx context.Context, courseID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for key := range r.enrollments {
		if key.courseID == courseID {
			delete(r.enrollments, key)
			n++
		}
	}
	return n, nil
}

func (r *Repository) ListCourseMembers(ctx context.Context, courseID uuid.UUID) ([]uuid.UUID, error) {
	return r.listEnrollments(func(k enrollmentKey) (uuid.UUID, bool) {
		return k.userID, k.courseID == courseID
	}), nil
}

func (r *Repository) ListUserCourses(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return r.listEnrollments(func(k enrollmentKey) (uuid.UUID, bool) {
		return k.courseID, k.userID == userID
	}), nil
}

// listEnrollments returns the selected side of matching enrollments in
// join order.
func (r *Repository) listEnrollments(sel func(enrollmentKey) (uuid.UUID, bool)) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type joined struct {
		id uuid.UUID
		at time.Time
	}
	var rows []joined
	for key, at := range r.enrollments {
		if id, ok := sel(key); ok {
			rows = append(rows, joined{id: id, at: at})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].at.Equal(rows[j].at) {
			return rows[i].id.String() < rows[j].id.String()
		}
		return rows[i].at.Before(rows[j].at)
	})
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.id)
	}
	return ids
}

// Category operations

func (r *Repository) CreateCategory(ctx context.Context, category *educms.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.categories {
		if strings.EqualFold(c.Name, category.Name) || c.Slug == category.Slug {
			return educms.ErrCategoryExists
		}
	}
	c := *category
	r.categories[category.ID] = &c
	return nil
}

func (r *Repository) GetCategory(ctx context.Context, id uuid.UUID) (*educms.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	category, exists := r.categories[id]
	if !exists {
		return nil, fmt.Errorf("category %s: %w", id, educms.ErrNotFound)
	}
	c := *category
	return &c, nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]*educms.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*educms.Category, 0, len(r.categories))
	for _, category := range r.categories {
		c := *category
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (r *Repository) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.categories[id]; !exists {
		return fmt.Errorf("category %s: %w", id, educms.ErrNotFound)
	}
	delete(r.categories, id)
	return nil
}

// Site configuration operations

func (r *Repository) GetSiteConfig(ctx context.Context, key string) (*educms.SiteConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, exists := r.site[key]
	if !exists {
		return nil, fmt.Errorf("site config %q: %w", key, educms.ErrNotFound)
	}
	c := *cfg
	c.Document = slices.Clone(cfg.Document)
	return &c, nil
}

func (r *Repository) SaveSiteConfig(ctx context.Context, cfg *educms.SiteConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *cfg
	c.Document = slices.Clone(cfg.Document)
	r.site[cfg.Key] = &c
	return nil
}

// helpers

func notFound(kind educms.Kind, id uuid.UUID) error {
	return fmt.Errorf("%s %s: %w", kind, id, educms.ErrNotFound)
}

// pull returns ids without id and whether anything was removed.
func pull(ids []uuid.UUID, id uuid.UUID) ([]uuid.UUID, bool) {
	if !slices.Contains(ids, id) {
		return ids, false
	}
	kept := make([]uuid.UUID, 0, len(ids)-1)
	for _, other := range ids {
		if other != id {
			kept = append(kept, other)
		}
	}
	return kept, true
}

func matches(filter educms.ListFilter, categoryID uuid.UUID, title string) bool {
	if filter.CategoryID != nil && *filter.CategoryID != categoryID {
		return false
	}
	if filter.Query != "" && !strings.Contains(strings.ToLower(title), strings.ToLower(filter.Query)) {
		return false
	}
	return true
}

func newer(a, b time.Time, aID, bID uuid.UUID) bool {
	if a.Equal(b) {
		return aID.String() < bID.String()
	}
	return a.After(b)
}

func page[T any](rows []T, filter educms.ListFilter) []T {
	if filter.Offset >= len(rows) {
		return []T{}
	}
	rows = rows[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(rows) {
		rows = rows[:filter.Limit]
	}
	return rows
}

func cloneItem(item *educms.Item) *educms.Item {
	c := *item
	c.Body = slices.Clone(item.Body)
	c.LongDescription = slices.Clone(item.LongDescription)
	c.Related = cloneIDs(item.Related)
	return &c
}

func cloneCourse(course *educms.Course) *educms.Course {
	c := *course
	c.Topics = append([]string{}, course.Topics...)
	c.FAQ = append([]educms.FAQ{}, course.FAQ...)
	c.Content = append([]educms.ContentRef{}, course.Content...)
	c.Related = cloneIDs(course.Related)
	c.JoinedBy = nil
	return &c
}

func cloneUser(user *educms.User) *educms.User {
	c := *user
	c.FavoriteArticles = cloneIDs(user.FavoriteArticles)
	c.FavoriteVideos = cloneIDs(user.FavoriteVideos)
	c.FavoritePodcasts = cloneIDs(user.FavoritePodcasts)
	c.FavoriteCourses = cloneIDs(user.FavoriteCourses)
	c.JoinedCourses = nil
	return &c
}

func cloneIDs(ids []uuid.UUID) []uuid.UUID {
	return append([]uuid.UUID{}, ids...)
}
