// Package mongodb implements educms.Repository on MongoDB. Each item kind has
// its own collection. Related, favorite and content sets are arrays inside
// the owning document, so $pull and pipeline updates keep every prune and
// toggle atomic per document.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/edu-cms/pkg/educms"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	coursesCollection     = "courses"
	usersCollection       = "users"
	categoriesCollection  = "categories"
	enrollmentsCollection = "enrollments"
	siteCollection        = "site_config"
)

// Repository implements educms.Repository using a MongoDB database.
type Repository struct {
	db *mongo.Database
}

var _ educms.Repository = (*Repository)(nil)

func New(db *mongo.Database) *Repository {
	return &Repository{db: db}
}

// EnsureIndexes creates the unique and lookup indexes the repository
// relies on. It is safe to call on every start.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	unique := func(keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true)}
	}
	plain := func(keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys}
	}

	indexes := map[string][]mongo.IndexModel{
		usersCollection:       {unique(bson.D{{Key: "username_lower", Value: 1}}), unique(bson.D{{Key: "phone", Value: 1}})},
		categoriesCollection:  {unique(bson.D{{Key: "name_lower", Value: 1}}), unique(bson.D{{Key: "slug", Value: 1}})},
		enrollmentsCollection: {plain(bson.D{{Key: "course_id", Value: 1}}), plain(bson.D{{Key: "user_id", Value: 1}})},
		coursesCollection: {
			plain(bson.D{{Key: "created_at", Value: -1}}),
			plain(bson.D{{Key: "related", Value: 1}}),
			plain(bson.D{{Key: "content.item_id", Value: 1}}),
		},
	}
	for _, kind := range educms.ItemKinds {
		indexes[collectionFor(kind)] = []mongo.IndexModel{
			plain(bson.D{{Key: "created_at", Value: -1}}),
			plain(bson.D{{Key: "related", Value: 1}}),
		}
	}

	for name, models := range indexes {
		if _, err := r.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}

// Content item operations

type itemDoc struct {
	ID               string    `bson:"_id"`
	Title            string    `bson:"title"`
	ShortDescription string    `bson:"short_description"`
	CategoryID       string    `bson:"category_id"`
	Thumbnail        string    `bson:"thumbnail"`
	Body             string    `bson:"body,omitempty"`
	LongDescription  string    `bson:"long_description,omitempty"`
	MediaPath        string    `bson:"media_path,omitempty"`
	ResumePath       string    `bson:"resume_path,omitempty"`
	Related          []string  `bson:"related"`
	Visits           int64     `bson:"visits"`
	CreatedAt        time.Time `bson:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at"`
}

func (r *Repository) items(kind educms.Kind) *mongo.Collection {
	return r.db.Collection(collectionFor(kind))
}

func (r *Repository) CreateItem(ctx context.Context, item *educms.Item) error {
	if _, err := r.items(item.Kind).InsertOne(ctx, toItemDoc(item)); err != nil {
		return fmt.Errorf("failed to insert %s: %w", item.Kind, err)
	}
	return nil
}

func (r *Repository) GetItem(ctx context.Context, kind educms.Kind, id uuid.UUID) (*educms.Item, error) {
	var doc itemDoc
	err := r.items(kind).FindOne(ctx, byID(id)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound(kind, id)
		}
		return nil, fmt.Errorf("failed to get %s: %w", kind, err)
	}
	return doc.item(kind)
}

func (r *Repository) UpdateItem(ctx context.Context, kind educms.Kind, id uuid.UUID, upd educms.ItemUpdate) error {
	res, err := r.items(kind).UpdateOne(ctx, byID(id), bson.D{{Key: "$set", Value: itemSet(upd)}})
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", kind, err)
	}
	if res.MatchedCount == 0 {
		return notFound(kind, id)
	}
	return nil
}

func (r *Repository) DeleteItem(ctx context.Context, kind educms.Kind, id uuid.UUID) error {
	res, err := r.items(kind).DeleteOne(ctx, byID(id))
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}
	if res.DeletedCount == 0 {
		return notFound(kind, id)
	}
	return nil
}

func (r *Repository) ListItems(ctx context.Context, kind educms.Kind, filter educms.ListFilter) ([]*educms.Item, error) {
	cursor, err := r.items(kind).Find(ctx, listFilter(filter), findOptions(filter))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}
	var docs []itemDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode %s list: %w", kind, err)
	}

	result := make([]*educms.Item, 0, len(docs))
	for i := range docs {
		item, err := docs[i].item(kind)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, nil
}

// Course operations

type courseDoc struct {
	ID               string              `bson:"_id"`
	Title            string              `bson:"title"`
	ShortDescription string              `bson:"short_description"`
	CategoryID       string              `bson:"category_id"`
	Thumbnail        string              `bson:"thumbnail"`
	Level            string              `bson:"level"`
	Duration         string              `bson:"duration,omitempty"`
	Goal             string              `bson:"goal,omitempty"`
	Topics           []string            `bson:"topics"`
	FAQ              []educms.FAQ        `bson:"faq"`
	Content          []educms.ContentRef `bson:"content"`
	Related          []string            `bson:"related"`
	Visits           int64               `bson:"visits"`
	CreatedAt        time.Time           `bson:"created_at"`
	UpdatedAt        time.Time           `bson:"updated_at"`
}

func (r *Repository) courses() *mongo.Collection {
	return r.db.Collection(coursesCollection)
}

func (r *Repository) CreateCourse(ctx context.Context, course *educms.Course) error {
	if _, err := r.courses().InsertOne(ctx, toCourseDoc(course)); err != nil {
		return fmt.Errorf("failed to insert course: %w", err)
	}
	return nil
}

func (r *Repository) GetCourse(ctx context.Context, id uuid.UUID) (*educms.Course, error) {
	var doc courseDoc
	err := r.courses().FindOne(ctx, byID(id)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound(educms.KindCourse, id)
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	return doc.course()
}

func (r *Repository) UpdateCourse(ctx context.Context, id uuid.UUID, upd educms.CourseUpdate) error {
	res, err := r.courses().UpdateOne(ctx, byID(id), bson.D{{Key: "$set", Value: courseSet(upd)}})
	if err != nil {
		return fmt.Errorf("failed to update course: %w", err)
	}
	if res.MatchedCount == 0 {
		return notFound(educms.KindCourse, id)
	}
	return nil
}

func (r *Repository) DeleteCourse(ctx context.Context, id uuid.UUID) error {
	res, err := r.courses().DeleteOne(ctx, byID(id))
	if err != nil {
		return fmt.Errorf("failed to delete course: %w", err)
	}
	if res.DeletedCount == 0 {
		return notFound(educms.KindCourse, id)
	}
	return nil
}

func (r *Repository) ListCourses(ctx context.Context, filter educms.ListFilter) ([]*educms.Course, error) {
	cursor, err := r.courses().Find(ctx, listFilter(filter), findOptions(filter))
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	var docs []courseDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode course list: %w", err)
	}

	result := make([]*educms.Course, 0, len(docs))
	for i := range docs {
		course, err := docs[i].course()
		if err != nil {
			return nil, err
		}
		result = append(result, course)
	}
	return result, nil
}

func (r *Repository) IncrementVisits(ctx context.Context, kind educms.Kind, id uuid.UUID) error {
	coll := r.courses()
	if kind != educms.KindCourse {
		coll = r.items(kind)
	}
	res, err := coll.UpdateOne(ctx, byID(id), bson.D{{Key: "$inc", Value: bson.D{{Key: "visits", Value: 1}}}})
	if err != nil {
		return fmt.Errorf("failed to increment visits: %w", err)
	}
	if res.MatchedCount == 0 {
		return notFound(kind, id)
	}
	return nil
}

// Reference pruning

func (r *Repository) PullRelated(ctx context.Context, kind educms.Kind, id uuid.UUID) (int64, error) {
	coll := r.courses()
	if kind != educms.KindCourse {
		coll = r.items(kind)
	}
	res, err := coll.UpdateMany(ctx,
		bson.D{{Key: "related", Value: id.String()}},
		bson.D{{Key: "$pull", Value: bson.D{{Key: "related", Value: id.String()}}}})
	if err != nil {
		return 0, fmt.Errorf("failed to pull related: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *Repository) PullCourseContent(ctx context.Context, itemType educms.ItemType, id string) (int64, error) {
	entry := bson.D{{Key: "item_id", Value: id}, {Key: "item_type", Value: string(itemType)}}
	res, err := r.courses().UpdateMany(ctx,
		bson.D{{Key: "content", Value: bson.D{{Key: "$elemMatch", Value: entry}}}},
		bson.D{{Key: "$pull", Value: bson.D{{Key: "content", Value: entry}}}})
	if err != nil {
		return 0, fmt.Errorf("failed to pull course content: %w", err)
	}
	return res.ModifiedCount, nil
}

// helpers

func collectionFor(kind educms.Kind) string {
	return string(kind) + "s"
}

func byID(id uuid.UUID) bson.D {
	return bson.D{{Key: "_id", Value: id.String()}}
}

func notFound(kind educms.Kind, id uuid.UUID) error {
	return fmt.Errorf("%s %s: %w", kind, id, educms.ErrNotFound)
}

func listFilter(filter educms.ListFilter) bson.D {
	f := bson.D{}
	if filter.CategoryID != nil {
		f = append(f, bson.E{Key: "category_id", Value: filter.CategoryID.String()})
	}
	if filter.Query != "" {
		f = append(f, bson.E{Key: "title", Value: primitive.Regex{Pattern: regexp.QuoteMeta(filter.Query), Options: "i"}})
	}
	return f
}

func findOptions(filter educms.ListFilter) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	return opts
}

func toItemDoc(item *educms.Item) itemDoc {
	return itemDoc{
		ID:               item.ID.String(),
		Title:            item.Title,
		ShortDescription: item.ShortDescription,
		CategoryID:       item.CategoryID.String(),
		Thumbnail:        item.Thumbnail,
		Body:             string(item.Body),
		LongDescription:  string(item.LongDescription),
		MediaPath:        item.MediaPath,
		ResumePath:       item.ResumePath,
		Related:          toStrings(item.Related),
		Visits:           item.Visits,
		CreatedAt:        item.CreatedAt,
		UpdatedAt:        item.UpdatedAt,
	}
}

func (d *itemDoc) item(kind educms.Kind) (*educms.Item, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("malformed %s id %q: %w", kind, d.ID, err)
	}
	categoryID, err := uuid.Parse(d.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("malformed category id on %s %s: %w", kind, d.ID, err)
	}
	related, err := toUUIDs(d.Related)
	if err != nil {
		return nil, fmt.Errorf("malformed related id on %s %s: %w", kind, d.ID, err)
	}
	item := &educms.Item{
		ID:               id,
		Kind:             kind,
		Title:            d.Title,
		ShortDescription: d.ShortDescription,
		CategoryID:       categoryID,
		Thumbnail:        d.Thumbnail,
		MediaPath:        d.MediaPath,
		ResumePath:       d.ResumePath,
		Related:          related,
		Visits:           d.Visits,
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
	}
	if d.Body != "" {
		item.Body = []byte(d.Body)
	}
	if d.LongDescription != "" {
		item.LongDescription = []byte(d.LongDescription)
	}
	return item, nil
}

func toCourseDoc(course *educms.Course) courseDoc {
	doc := courseDoc{
		ID:               course.ID.String(),
		Title:            course.Title,
		ShortDescription: course.ShortDescription,
		CategoryID:       course.CategoryID.String(),
		Thumbnail:        course.Thumbnail,
		Level:            string(course.Level),
		Duration:         course.Duration,
		Goal:             course.Goal,
		Topics:           course.Topics,
		FAQ:              course.FAQ,
		Content:          course.Content,
		Related:          toStrings(course.Related),
		Visits:           course.Visits,
		CreatedAt:        course.CreatedAt,
		UpdatedAt:        course.UpdatedAt,
	}
	if doc.Topics == nil {
		doc.Topics = []string{}
	}
	if doc.FAQ == nil {
		doc.FAQ = []educms.FAQ{}
	}
	if doc.Content == nil {
		doc.Content = []educms.ContentRef{}
	}
	return doc
}

func (d *courseDoc) course() (*educms.Course, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("malformed course id %q: %w", d.ID, err)
	}
	categoryID, err := uuid.Parse(d.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("malformed category id on course %s: %w", d.ID, err)
	}
	related, err := toUUIDs(d.Related)
	if err != nil {
		return nil, fmt.Errorf("malformed related id on course %s: %w", d.ID, err)
	}
	course := &educms.Course{
		ID:               id,
		Title:            d.Title,
		ShortDescription: d.ShortDescription,
		CategoryID:       categoryID,
		Thumbnail:        d.Thumbnail,
		Level:            educms.Level(d.Level),
		Duration:         d.Duration,
		Goal:             d.Goal,
		Topics:           d.Topics,
		FAQ:              d.FAQ,
		Content:          d.Content,
		Related:          related,
		Visits:           d.Visits,
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
	}
	if course.Topics == nil {
		course.Topics = []string{}
	}
	if course.FAQ == nil {
		course.FAQ = []educms.FAQ{}
	}
	if course.Content == nil {
		course.Content = []educms.ContentRef{}
	}
	return course, nil
}

// itemSet builds the $set document for the fields upd supplies.
func itemSet(upd educms.ItemUpdate) bson.D {
	var set bson.D
	add := func(key string, v interface{}) { set = append(set, bson.E{Key: key, Value: v}) }
	if upd.Title != nil {
		add("title", *upd.Title)
	}
	if upd.ShortDescription != nil {
		add("short_description", *upd.ShortDescription)
	}
	if upd.CategoryID != nil {
		add("category_id", upd.CategoryID.String())
	}
	if upd.Thumbnail != nil {
		add("thumbnail", *upd.Thumbnail)
	}
	if upd.Body != nil {
		add("body", string(*upd.Body))
	}
	if upd.LongDescription != nil {
		add("long_description", string(*upd.LongDescription))
	}
	if upd.MediaPath != nil {
		add("media_path", *upd.MediaPath)
	}
	if upd.ResumePath != nil {
		add("resume_path", *upd.ResumePath)
	}
	if upd.Related != nil {
		add("related", toStrings(*upd.Related))
	}
	add("updated_at", upd.UpdatedAt)
	return set
}

func courseSet(upd educms.CourseUpdate) bson.D {
	var set bson.D
	add := func(key string, v interface{}) { set = append(set, bson.E{Key: key, Value: v}) }
	if upd.Title != nil {
		add("title", *upd.Title)
	}
	if upd.ShortDescription != nil {
		add("short_description", *upd.ShortDescription)
	}
	if upd.CategoryID != nil {
		add("category_id", upd.CategoryID.String())
	}
	if upd.Thumbnail != nil {
		add("thumbnail", *upd.Thumbnail)
	}
	if upd.Level != nil {
		add("level", string(*upd.Level))
	}
	if upd.Duration != nil {
		add("duration", *upd.Duration)
	}
	if upd.Goal != nil {
		add("goal", *upd.Goal)
	}
	if upd.Topics != nil {
		topics := *upd.Topics
		if topics == nil {
			topics = []string{}
		}
		add("topics", topics)
	}
	if upd.FAQ != nil {
		faq := *upd.FAQ
		if faq == nil {
			faq = []educms.FAQ{}
		}
		add("faq", faq)
	}
	if upd.Content != nil {
		content := *upd.Content
		if content == nil {
			content = []educms.ContentRef{}
		}
		add("content", content)
	}
	if upd.Related != nil {
		add("related", toStrings(*upd.Related))
	}
	add("updated_at", upd.UpdatedAt)
	return set
}

func toStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func toUUIDs(ids []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(ids))
	for _, s := range ids {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
