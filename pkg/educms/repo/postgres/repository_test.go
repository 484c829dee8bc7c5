package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/edu-cms/pkg/educms"
)

func TestHandlePostgresError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"user unique", &pgconn.PgError{Code: "23505", ConstraintName: "app_user_username_key"}, educms.ErrUserExists},
		{"category unique", &pgconn.PgError{Code: "23505", ConstraintName: "category_slug_key"}, educms.ErrCategoryExists},
		{"check", &pgconn.PgError{Code: "23514", ConstraintName: "course_level_check"}, educms.ErrInvalidField},
		{"no rows", pgx.ErrNoRows, educms.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, handlePostgresError("op", tt.err), tt.want)
		})
	}

	err := handlePostgresError("create item", &pgconn.PgError{Code: "42P01"})
	assert.Contains(t, err.Error(), "migration required")

	cause := errors.New("connection reset")
	assert.ErrorIs(t, handlePostgresError("get item", cause), cause)
}

func TestListQuery(t *testing.T) {
	category := uuid.New()
	query, args := listQuery("SELECT id FROM content_item WHERE kind = $1", []interface{}{"video"},
		educms.ListFilter{CategoryID: &category, Query: "50%_off", Limit: 10, Offset: 20})

	assert.Equal(t, "SELECT id FROM content_item WHERE kind = $1 AND category_id = $2 AND title ILIKE $3"+
		" ORDER BY created_at DESC, id LIMIT $4 OFFSET $5", query)
	assert.Equal(t, []interface{}{"video", category, `%50\%\_off%`, 10, 20}, args)

	query, args = listQuery("SELECT id FROM course WHERE TRUE", nil, educms.ListFilter{})
	assert.Equal(t, "SELECT id FROM course WHERE TRUE ORDER BY created_at DESC, id", query)
	assert.Empty(t, args)
}

func setupTestRepository(t *testing.T) *Repository {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("Skipping integration test: TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	t.Cleanup(pool.Close)

	repo := NewWithPool(pool)
	require.NoError(t, repo.Migrate(ctx))
	_, err = pool.Exec(ctx, `TRUNCATE category, content_item, course, app_user, course_enrollment, site_config`)
	require.NoError(t, err)
	return repo
}

func newItem(kind educms.Kind, related ...uuid.UUID) *educms.Item {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &educms.Item{
		ID:               uuid.New(),
		Kind:             kind,
		Title:            "title " + string(kind),
		ShortDescription: "short",
		CategoryID:       uuid.New(),
		Thumbnail:        "2025/01/thumb.png",
		Body:             json.RawMessage(`{"blocks":[]}`),
		Related:          related,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestItemAssignments(t *testing.T) {
	title := "Renamed"
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	set := itemAssignments(educms.ItemUpdate{Title: &title, UpdatedAt: at})
	assert.Equal(t, "title = $1, updated_at = $2", set.clause())
	assert.Equal(t, []interface{}{"Renamed", at}, set.args)

	related := []uuid.UUID{}
	set = itemAssignments(educms.ItemUpdate{Related: &related, UpdatedAt: at})
	assert.Equal(t, "related = $1, updated_at = $2", set.clause())
}

func TestCourseAssignments(t *testing.T) {
	goal := "Calm"
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	set, err := courseAssignments(educms.CourseUpdate{Goal: &goal, UpdatedAt: at})
	require.NoError(t, err)
	assert.Equal(t, "goal = $1, updated_at = $2", set.clause())
	assert.NotContains(t, set.clause(), "content")
	assert.NotContains(t, set.clause(), "related")

	var content []educms.ContentRef
	set, err = courseAssignments(educms.CourseUpdate{Content: &content, UpdatedAt: at})
	require.NoError(t, err)
	assert.Equal(t, "content = $1, updated_at = $2", set.clause())
	assert.Equal(t, []byte("[]"), set.args[0])
}

func TestRepository_Items(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	a := newItem(educms.KindArticle)
	b := newItem(educms.KindArticle, a.ID)
	require.NoError(t, repo.CreateItem(ctx, a))
	require.NoError(t, repo.CreateItem(ctx, b))

	got, err := repo.GetItem(ctx, educms.KindArticle, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a.ID}, got.Related)
	assert.JSONEq(t, `{"blocks":[]}`, string(got.Body))

	_, err = repo.GetItem(ctx, educms.KindVideo, b.ID)
	assert.ErrorIs(t, err, educms.ErrNotFound)

	require.NoError(t, repo.IncrementVisits(ctx, educms.KindArticle, b.ID))
	edited := "edited"
	require.NoError(t, repo.UpdateItem(ctx, educms.KindArticle, b.ID, educms.ItemUpdate{Title: &edited, UpdatedAt: time.Now().UTC()}))

	got, err = repo.GetItem(ctx, educms.KindArticle, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Title)
	assert.Equal(t, int64(1), got.Visits, "update leaves counters alone")

	n, err := repo.PullRelated(ctx, educms.KindArticle, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	list, err := repo.ListItems(ctx, educms.KindArticle, educms.ListFilter{Query: "EDIT"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Related)

	require.NoError(t, repo.DeleteItem(ctx, educms.KindArticle, a.ID))
	assert.ErrorIs(t, repo.DeleteItem(ctx, educms.KindArticle, a.ID), educms.ErrNotFound)
}

func TestRepository_CourseContent(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	video := uuid.New().String()
	now := time.Now().UTC()
	course := &educms.Course{
		ID: uuid.New(), Title: "c", ShortDescription: "s", CategoryID: uuid.New(), Thumbnail: "t.png",
		Level: educms.LevelBeginner,
		Content: []educms.ContentRef{
			{ItemID: video, ItemType: educms.ItemTypeVideo},
			{ItemID: "quiz-1", ItemType: educms.ItemTypeQuiz},
			{ItemID: video, ItemType: educms.ItemTypeVideo},
			{ItemID: video, ItemType: educms.ItemTypeArticle},
		},
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, repo.CreateCourse(ctx, course))

	n, err := repo.PullCourseContent(ctx, educms.ItemTypeVideo, video)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.GetCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, []educms.ContentRef{
		{ItemID: "quiz-1", ItemType: educms.ItemTypeQuiz},
		{ItemID: video, ItemType: educms.ItemTypeArticle},
	}, got.Content)
	assert.Empty(t, got.Topics)
	assert.Empty(t, got.FAQ)

	goal := "Calm"
	require.NoError(t, repo.UpdateCourse(ctx, course.ID, educms.CourseUpdate{Goal: &goal, UpdatedAt: time.Now().UTC()}))
	got, err = repo.GetCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, "Calm", got.Goal)
	assert.Len(t, got.Content, 2)
}

func TestRepository_UsersAndEnrollments(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	now := time.Now().UTC()
	user := &educms.User{ID: uuid.New(), Username: "Sara", Phone: "0912", PasswordHash: "x", Role: educms.RoleUser, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.CreateUser(ctx, user))
	dup := *user
	dup.ID = uuid.New()
	dup.Username = "sara"
	dup.Phone = "0913"
	assert.ErrorIs(t, repo.CreateUser(ctx, &dup), educms.ErrUserExists)

	got, err := repo.GetUserByUsername(ctx, "SARA")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	item := uuid.New()
	present, err := repo.ToggleFavorite(ctx, user.ID, educms.KindVideo, item)
	require.NoError(t, err)
	assert.True(t, present)

	n, err := repo.PullFavorite(ctx, educms.KindVideo, item)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.ToggleFavorite(ctx, uuid.New(), educms.KindVideo, item)
	assert.ErrorIs(t, err, educms.ErrNotFound)
	_, err = repo.ToggleFavorite(ctx, user.ID, educms.KindCounsel, item)
	assert.ErrorIs(t, err, educms.ErrInvalidReference)

	course := uuid.New()
	added, err := repo.AddEnrollment(ctx, user.ID, course)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = repo.AddEnrollment(ctx, user.ID, course)
	require.NoError(t, err)
	assert.False(t, added)

	members, err := repo.ListCourseMembers(ctx, course)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{user.ID}, members)

	removed, err := repo.RemoveCourseEnrollments(ctx, course)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	courses, err := repo.ListUserCourses(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, courses)
}

func TestRepository_CategoriesAndSite(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	c := &educms.Category{ID: uuid.New(), Name: "Sleep", Slug: "sleep", CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.CreateCategory(ctx, c))
	assert.ErrorIs(t, repo.CreateCategory(ctx, &educms.Category{ID: uuid.New(), Name: "SLEEP", Slug: "sleep-2"}), educms.ErrCategoryExists)

	list, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, repo.SaveSiteConfig(ctx, &educms.SiteConfig{Key: educms.SiteConfigHome, Document: json.RawMessage(`{"a":1}`), UpdatedAt: time.Now()}))
	require.NoError(t, repo.SaveSiteConfig(ctx, &educms.SiteConfig{Key: educms.SiteConfigHome, Document: json.RawMessage(`{"a":2}`), UpdatedAt: time.Now()}))

	cfg, err := repo.GetSiteConfig(ctx, educms.SiteConfigHome)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(cfg.Document))

	_, err = repo.GetSiteConfig(ctx, educms.SiteConfigFooter)
	assert.ErrorIs(t, err, educms.ErrNotFound)
}
