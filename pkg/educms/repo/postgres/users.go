package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tendant/edu-cms/pkg/educms"
)

// User operations

const userColumns = `id, username, phone, password_hash, role,
	favorite_articles, favorite_videos, favorite_podcasts, favorite_courses, created_at, updated_at`

func (r *Repository) CreateUser(ctx context.Context, user *educms.User) error {
	query := `
		INSERT INTO app_user (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(ctx, query,
		user.ID, user.Username, user.Phone, user.PasswordHash, string(user.Role),
		ids(user.FavoriteArticles), ids(user.FavoriteVideos), ids(user.FavoritePodcasts), ids(user.FavoriteCourses),
		user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return handlePostgresError("create user", err)
	}
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*educms.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM app_user WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, educms.ErrNotFound)
		}
		return nil, handlePostgresError("get user", err)
	}
	return user, nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*educms.User, error) {
	query := `SELECT ` + userColumns + ` FROM app_user WHERE lower(username) = lower($1)`

	user, err := scanUser(r.db.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, educms.ErrNotFound)
		}
		return nil, handlePostgresError("get user by username", err)
	}
	return user, nil
}

// ToggleFavorite flips membership in one statement so concurrent toggles
// of the same pair serialize on the row lock.
func (r *Repository) ToggleFavorite(ctx context.Context, userID uuid.UUID, kind educms.Kind, itemID uuid.UUID) (bool, error) {
	col, err := favoriteColumn(kind)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf(`
		UPDATE app_user SET
			%[1]s = CASE WHEN $2::uuid = ANY(%[1]s) THEN array_remove(%[1]s, $2::uuid) ELSE array_append(%[1]s, $2::uuid) END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING $2::uuid = ANY(%[1]s)`, col)

	var present bool
	if err := r.db.QueryRow(ctx, query, userID, itemID).Scan(&present); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("user %s: %w", userID, educms.ErrNotFound)
		}
		return false, handlePostgresError("toggle favorite", err)
	}
	return present, nil
}

func (r *Repository) PullFavorite(ctx context.Context, kind educms.Kind, itemID uuid.UUID) (int64, error) {
	col, err := favoriteColumn(kind)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`UPDATE app_user SET %[1]s = array_remove(%[1]s, $1::uuid) WHERE $1::uuid = ANY(%[1]s)`, col)

	tag, err := r.db.Exec(ctx, query, itemID)
	if err != nil {
		return 0, handlePostgresError("pull favorite", err)
	}
	return tag.RowsAffected(), nil
}

// Enrollment operations

func (r *Repository) AddEnrollment(ctx context.Context, userID, courseID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO course_enrollment (user_id, course_id, joined_at)
		VALUES ($1, $2, clock_timestamp())
		ON CONFLICT DO NOTHING`, userID, courseID)
	if err != nil {
		return false, handlePostgresError("add enrollment", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) RemoveEnrollment(ctx context.Context, userID, courseID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM course_enrollment WHERE user_id = $1 AND course_id = $2`, userID, courseID)
	if err != nil {
		return false, handlePostgresError("remove enrollment", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) RemoveCourseEnrollments(ctx context.Context, courseID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM course_enrollment WHERE course_id = $1`, courseID)
	if err != nil {
		return 0, handlePostgresError("remove course enrollments", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) ListCourseMembers(ctx context.Context, courseID uuid.UUID) ([]uuid.UUID, error) {
	return r.listIDs(ctx, "list course members",
		`SELECT user_id FROM course_enrollment WHERE course_id = $1 ORDER BY joined_at, user_id`, courseID)
}

func (r *Repository) ListUserCourses(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return r.listIDs(ctx, "list user courses",
		`SELECT course_id FROM course_enrollment WHERE user_id = $1 ORDER BY joined_at, course_id`, userID)
}

func (r *Repository) listIDs(ctx context.Context, operation, query string, arg uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, handlePostgresError(operation, err)
	}
	result, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, handlePostgresError(operation, err)
	}
	return ids(result), nil
}

// Category operations

func (r *Repository) CreateCategory(ctx context.Context, category *educms.Category) error {
	_, err := r.db.Exec(ctx, `INSERT INTO category (id, name, slug, created_at) VALUES ($1, $2, $3, $4)`,
		category.ID, category.Name, category.Slug, category.CreatedAt)
	if err != nil {
		return handlePostgresError("create category", err)
	}
	return nil
}

func (r *Repository) GetCategory(ctx context.Context, id uuid.UUID) (*educms.Category, error) {
	var c educms.Category
	err := r.db.QueryRow(ctx, `SELECT id, name, slug, created_at FROM category WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("category %s: %w", id, educms.ErrNotFound)
		}
		return nil, handlePostgresError("get category", err)
	}
	return &c, nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]*educms.Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, slug, created_at FROM category ORDER BY name`)
	if err != nil {
		return nil, handlePostgresError("list categories", err)
	}
	defer rows.Close()

	result := []*educms.Category{}
	for rows.Next() {
		var c educms.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt); err != nil {
			return nil, handlePostgresError("scan category", err)
		}
		result = append(result, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError("list categories", err)
	}
	return result, nil
}

func (r *Repository) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM category WHERE id = $1`, id)
	if err != nil {
		return handlePostgresError("delete category", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("category %s: %w", id, educms.ErrNotFound)
	}
	return nil
}

// Site configuration operations

func (r *Repository) GetSiteConfig(ctx context.Context, key string) (*educms.SiteConfig, error) {
	var (
		cfg educms.SiteConfig
		doc []byte
	)
	err := r.db.QueryRow(ctx, `SELECT key, document, updated_at FROM site_config WHERE key = $1`, key).
		Scan(&cfg.Key, &doc, &cfg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("site config %q: %w", key, educms.ErrNotFound)
		}
		return nil, handlePostgresError("get site config", err)
	}
	cfg.Document = doc
	return &cfg, nil
}

func (r *Repository) SaveSiteConfig(ctx context.Context, cfg *educms.SiteConfig) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO site_config (key, document, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at`,
		cfg.Key, []byte(cfg.Document), cfg.UpdatedAt)
	if err != nil {
		return handlePostgresError("save site config", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*educms.User, error) {
	var (
		user educms.User
		role string
	)
	err := row.Scan(&user.ID, &user.Username, &user.Phone, &user.PasswordHash, &role,
		&user.FavoriteArticles, &user.FavoriteVideos, &user.FavoritePodcasts, &user.FavoriteCourses,
		&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	user.Role = educms.Role(role)
	user.FavoriteArticles = ids(user.FavoriteArticles)
	user.FavoriteVideos = ids(user.FavoriteVideos)
	user.FavoritePodcasts = ids(user.FavoritePodcasts)
	user.FavoriteCourses = ids(user.FavoriteCourses)
	return &user, nil
}

// favoriteColumn maps a kind to its array column. The result is
// interpolated into SQL, so only fixed names may be returned.
func favoriteColumn(kind educms.Kind) (string, error) {
	switch kind {
	case educms.KindArticle:
		return "favorite_articles", nil
	case educms.KindVideo:
		return "favorite_videos", nil
	case educms.KindPodcast:
		return "favorite_podcasts", nil
	case educms.KindCourse:
		return "favorite_courses", nil
	}
	return "", fmt.Errorf("%w: %s has no favorites", educms.ErrInvalidReference, kind)
}
