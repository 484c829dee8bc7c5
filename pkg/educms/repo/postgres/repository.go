package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/edu-cms/pkg/educms"
)

//go:embed schema.sql
var schema string

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements educms.Repository using PostgreSQL. Sets live in
// array columns and course content in a jsonb column, so every pull and
// toggle is a single UPDATE statement.
type Repository struct {
	db DBTX
}

var _ educms.Repository = (*Repository)(nil)

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Migrate creates the tables and indexes when missing.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return handlePostgresError("migrate", err)
	}
	return nil
}

// Error handling helper
func handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.HasPrefix(pgErr.ConstraintName, "app_user") {
				return educms.ErrUserExists
			}
			if strings.HasPrefix(pgErr.ConstraintName, "category") {
				return educms.ErrCategoryExists
			}
			return fmt.Errorf("duplicate entry in %s: %s", operation, pgErr.ConstraintName)
		case "23503": // foreign_key_violation
			return fmt.Errorf("referenced record not found in %s", operation)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "23514": // check_violation
			return fmt.Errorf("%w: %s", educms.ErrInvalidField, pgErr.ConstraintName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", operation, educms.ErrNotFound)
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func notFound(kind educms.Kind, id uuid.UUID) error {
	return fmt.Errorf("%s %s: %w", kind, id, educms.ErrNotFound)
}

// Content item operations

const itemColumns = `id, kind, title, short_description, category_id, thumbnail,
	body, long_description, media_path, resume_path, related, visits, created_at, updated_at`

func (r *Repository) CreateItem(ctx context.Context, item *educms.Item) error {
	query := `
		INSERT INTO content_item (` + itemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.Exec(ctx, query,
		item.ID, string(item.Kind), item.Title, item.ShortDescription, item.CategoryID, item.Thumbnail,
		rawJSON(item.Body), rawJSON(item.LongDescription), item.MediaPath, item.ResumePath,
		ids(item.Related), item.Visits, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return handlePostgresError("create item", err)
	}
	return nil
}

func (r *Repository) GetItem(ctx context.Context, kind educms.Kind, id uuid.UUID) (*educms.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM content_item WHERE kind = $1 AND id = $2`

	item, err := scanItem(r.db.QueryRow(ctx, query, string(kind), id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(kind, id)
		}
		return nil, handlePostgresError("get item", err)
	}
	return item, nil
}

func (r *Repository) UpdateItem(ctx context.Context, kind educms.Kind, id uuid.UUID, upd educms.ItemUpdate) error {
	set := itemAssignments(upd)
	query := `UPDATE content_item SET ` + set.clause() +
		fmt.Sprintf(` WHERE kind = $%d AND id = $%d`, len(set.args)+1, len(set.args)+2)

	tag, err := r.db.Exec(ctx, query, append(set.args, string(kind), id)...)
	if err != nil {
		return handlePostgresError("update item", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(kind, id)
	}
	return nil
}

func (r *Repository) DeleteItem(ctx context.Context, kind educms.Kind, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM content_item WHERE kind = $1 AND id = $2`, string(kind), id)
	if err != nil {
		return handlePostgresError("delete item", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(kind, id)
	}
	return nil
}

func (r *Repository) ListItems(ctx context.Context, kind educms.Kind, filter educms.ListFilter) ([]*educms.Item, error) {
	query, args := listQuery(`SELECT `+itemColumns+` FROM content_item WHERE kind = $1`, []interface{}{string(kind)}, filter)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, handlePostgresError("list items", err)
	}
	defer rows.Close()

	var result []*educms.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, handlePostgresError("scan item", err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError("list items", err)
	}
	return result, nil
}

// Course operations

const courseColumns = `id, title, short_description, category_id, thumbnail, level, duration, goal,
	topics, faq, content, related, visits, created_at, updated_at`

func (r *Repository) CreateCourse(ctx context.Context, course *educms.Course) error {
	faq, content, err := marshalCourseDocs(course)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO course (` + courseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err = r.db.Exec(ctx, query,
		course.ID, course.Title, course.ShortDescription, course.CategoryID, course.Thumbnail,
		string(course.Level), course.Duration, course.Goal, strs(course.Topics), faq, content,
		ids(course.Related), course.Visits, course.CreatedAt, course.UpdatedAt)
	if err != nil {
		return handlePostgresError("create course", err)
	}
	return nil
}

func (r *Repository) GetCourse(ctx context.Context, id uuid.UUID) (*educms.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM course WHERE id = $1`

	course, err := scanCourse(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(educms.KindCourse, id)
		}
		return nil, handlePostgresError("get course", err)
	}
	return course, nil
}

func (r *Repository) UpdateCourse(ctx context.Context, id uuid.UUID, upd educms.CourseUpdate) error {
	set, err := courseAssignments(upd)
	if err != nil {
		return err
	}
	query := `UPDATE course SET ` + set.clause() + fmt.Sprintf(` WHERE id = $%d`, len(set.args)+1)

	tag, err := r.db.Exec(ctx, query, append(set.args, id)...)
	if err != nil {
		return handlePostgresError("update course", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(educms.KindCourse, id)
	}
	return nil
}

func (r *Repository) DeleteCourse(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM course WHERE id = $1`, id)
	if err != nil {
		return handlePostgresError("delete course", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(educms.KindCourse, id)
	}
	return nil
}

func (r *Repository) ListCourses(ctx context.Context, filter educms.ListFilter) ([]*educms.Course, error) {
	query, args := listQuery(`SELECT `+courseColumns+` FROM course WHERE TRUE`, nil, filter)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, handlePostgresError("list courses", err)
	}
	defer rows.Close()

	var result []*educms.Course
	for rows.Next() {
		course, err := scanCourse(rows)
		if err != nil {
			return nil, handlePostgresError("scan course", err)
		}
		result = append(result, course)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError("list courses", err)
	}
	return result, nil
}

func (r *Repository) IncrementVisits(ctx context.Context, kind educms.Kind, id uuid.UUID) error {
	var (
		tag pgconn.CommandTag
		err error
	)
	if kind == educms.KindCourse {
		tag, err = r.db.Exec(ctx, `UPDATE course SET visits = visits + 1 WHERE id = $1`, id)
	} else {
		tag, err = r.db.Exec(ctx, `UPDATE content_item SET visits = visits + 1 WHERE kind = $1 AND id = $2`, string(kind), id)
	}
	if err != nil {
		return handlePostgresError("increment visits", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(kind, id)
	}
	return nil
}

// Reference pruning

func (r *Repository) PullRelated(ctx context.Context, kind educms.Kind, id uuid.UUID) (int64, error) {
	var (
		tag pgconn.CommandTag
		err error
	)
	if kind == educms.KindCourse {
		tag, err = r.db.Exec(ctx,
			`UPDATE course SET related = array_remove(related, $1::uuid) WHERE $1::uuid = ANY(related)`, id)
	} else {
		tag, err = r.db.Exec(ctx,
			`UPDATE content_item SET related = array_remove(related, $2::uuid) WHERE kind = $1 AND $2::uuid = ANY(related)`,
			string(kind), id)
	}
	if err != nil {
		return 0, handlePostgresError("pull related", err)
	}
	return tag.RowsAffected(), nil
}

// PullCourseContent rebuilds each matching content array without the
// entry, keeping the original order of the survivors.
func (r *Repository) PullCourseContent(ctx context.Context, itemType educms.ItemType, id string) (int64, error) {
	query := `
		UPDATE course SET content = (
			SELECT COALESCE(jsonb_agg(e ORDER BY ord), '[]'::jsonb)
			FROM jsonb_array_elements(content) WITH ORDINALITY AS t(e, ord)
			WHERE NOT (e->>'item_type' = $1::text AND e->>'item_id' = $2::text)
		)
		WHERE content @> jsonb_build_array(jsonb_build_object('item_type', $1::text, 'item_id', $2::text))`

	tag, err := r.db.Exec(ctx, query, string(itemType), id)
	if err != nil {
		return 0, handlePostgresError("pull course content", err)
	}
	return tag.RowsAffected(), nil
}

// helpers

func scanItem(row pgx.Row) (*educms.Item, error) {
	var (
		item                  educms.Item
		kind                  string
		body, longDescription []byte
	)
	err := row.Scan(
		&item.ID, &kind, &item.Title, &item.ShortDescription, &item.CategoryID, &item.Thumbnail,
		&body, &longDescription, &item.MediaPath, &item.ResumePath, &item.Related, &item.Visits,
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	item.Kind = educms.Kind(kind)
	item.Body = body
	item.LongDescription = longDescription
	item.Related = ids(item.Related)
	return &item, nil
}

func scanCourse(row pgx.Row) (*educms.Course, error) {
	var (
		course       educms.Course
		level        string
		faq, content []byte
	)
	err := row.Scan(
		&course.ID, &course.Title, &course.ShortDescription, &course.CategoryID, &course.Thumbnail,
		&level, &course.Duration, &course.Goal, &course.Topics, &faq, &content, &course.Related,
		&course.Visits, &course.CreatedAt, &course.UpdatedAt)
	if err != nil {
		return nil, err
	}
	course.Level = educms.Level(level)
	if err := json.Unmarshal(faq, &course.FAQ); err != nil {
		return nil, fmt.Errorf("failed to decode faq of course %s: %w", course.ID, err)
	}
	if err := json.Unmarshal(content, &course.Content); err != nil {
		return nil, fmt.Errorf("failed to decode content of course %s: %w", course.ID, err)
	}
	course.Topics = strs(course.Topics)
	course.Related = ids(course.Related)
	if course.FAQ == nil {
		course.FAQ = []educms.FAQ{}
	}
	if course.Content == nil {
		course.Content = []educms.ContentRef{}
	}
	return &course, nil
}

func marshalCourseDocs(course *educms.Course) ([]byte, []byte, error) {
	faq := course.FAQ
	if faq == nil {
		faq = []educms.FAQ{}
	}
	content := course.Content
	if content == nil {
		content = []educms.ContentRef{}
	}
	faqJSON, err := json.Marshal(faq)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode faq: %w", err)
	}
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode content: %w", err)
	}
	return faqJSON, contentJSON, nil
}

// listQuery appends the filter clauses, newest-first ordering and paging.
func listQuery(base string, args []interface{}, filter educms.ListFilter) (string, []interface{}) {
	var b strings.Builder
	b.WriteString(base)
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		fmt.Fprintf(&b, " AND category_id = $%d", len(args))
	}
	if filter.Query != "" {
		args = append(args, "%"+escapeLike(filter.Query)+"%")
		fmt.Fprintf(&b, " AND title ILIKE $%d", len(args))
	}
	b.WriteString(" ORDER BY created_at DESC, id")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return b.String(), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// rawJSON maps an empty document to SQL NULL.
// setList accumulates "column = $n" assignments for a partial UPDATE.
type setList struct {
	cols []string
	args []interface{}
}

func (s *setList) add(col string, v interface{}) {
	s.args = append(s.args, v)
	s.cols = append(s.cols, fmt.Sprintf("%s = $%d", col, len(s.args)))
}

func (s *setList) clause() string {
	return strings.Join(s.cols, ", ")
}

// itemAssignments lists only the columns upd supplies. updated_at is always
// written.
func itemAssignments(upd educms.ItemUpdate) *setList {
	set := &setList{}
	if upd.Title != nil {
		set.add("title", *upd.Title)
	}
	if upd.ShortDescription != nil {
		set.add("short_description", *upd.ShortDescription)
	}
	if upd.CategoryID != nil {
		set.add("category_id", *upd.CategoryID)
	}
	if upd.Thumbnail != nil {
		set.add("thumbnail", *upd.Thumbnail)
	}
	if upd.Body != nil {
		set.add("body", rawJSON(*upd.Body))
	}
	if upd.LongDescription != nil {
		set.add("long_description", rawJSON(*upd.LongDescription))
	}
	if upd.MediaPath != nil {
		set.add("media_path", *upd.MediaPath)
	}
	if upd.ResumePath != nil {
		set.add("resume_path", *upd.ResumePath)
	}
	if upd.Related != nil {
		set.add("related", ids(*upd.Related))
	}
	set.add("updated_at", upd.UpdatedAt)
	return set
}

func courseAssignments(upd educms.CourseUpdate) (*setList, error) {
	set := &setList{}
	if upd.Title != nil {
		set.add("title", *upd.Title)
	}
	if upd.ShortDescription != nil {
		set.add("short_description", *upd.ShortDescription)
	}
	if upd.CategoryID != nil {
		set.add("category_id", *upd.CategoryID)
	}
	if upd.Thumbnail != nil {
		set.add("thumbnail", *upd.Thumbnail)
	}
	if upd.Level != nil {
		set.add("level", string(*upd.Level))
	}
	if upd.Duration != nil {
		set.add("duration", *upd.Duration)
	}
	if upd.Goal != nil {
		set.add("goal", *upd.Goal)
	}
	if upd.Topics != nil {
		set.add("topics", strs(*upd.Topics))
	}
	if upd.FAQ != nil {
		faq := *upd.FAQ
		if faq == nil {
			faq = []educms.FAQ{}
		}
		doc, err := json.Marshal(faq)
		if err != nil {
			return nil, fmt.Errorf("failed to encode faq: %w", err)
		}
		set.add("faq", doc)
	}
	if upd.Content != nil {
		content := *upd.Content
		if content == nil {
			content = []educms.ContentRef{}
		}
		doc, err := json.Marshal(content)
		if err != nil {
			return nil, fmt.Errorf("failed to encode content: %w", err)
		}
		set.add("content", doc)
	}
	if upd.Related != nil {
		set.add("related", ids(*upd.Related))
	}
	set.add("updated_at", upd.UpdatedAt)
	return set, nil
}

func rawJSON(doc json.RawMessage) []byte {
	if len(doc) == 0 {
		return nil
	}
	return []byte(doc)
}

// ids and strs keep NOT NULL array columns from receiving NULL.
func ids(v []uuid.UUID) []uuid.UUID {
	if v == nil {
		return []uuid.UUID{}
	}
	return v
}

func strs(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
