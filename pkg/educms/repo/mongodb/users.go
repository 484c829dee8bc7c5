package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/edu-cms/pkg/educms"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// User operations

type userDoc struct {
	ID               string    `bson:"_id"`
	Username         string    `bson:"username"`
	UsernameLower    string    `bson:"username_lower"`
	Phone            string    `bson:"phone"`
	PasswordHash     string    `bson:"password_hash"`
	Role             string    `bson:"role"`
	FavoriteArticles []string  `bson:"favorite_articles"`
	FavoriteVideos   []string  `bson:"favorite_videos"`
	FavoritePodcasts []string  `bson:"favorite_podcasts"`
	FavoriteCourses  []string  `bson:"favorite_courses"`
	CreatedAt        time.Time `bson:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at"`
}

func (r *Repository) users() *mongo.Collection {
	return r.db.Collection(usersCollection)
}

func (r *Repository) CreateUser(ctx context.Context, user *educms.User) error {
	doc := userDoc{
		ID:               user.ID.String(),
		Username:         user.Username,
		UsernameLower:    strings.ToLower(user.Username),
		Phone:            user.Phone,
		PasswordHash:     user.PasswordHash,
		Role:             string(user.Role),
		FavoriteArticles: toStrings(user.FavoriteArticles),
		FavoriteVideos:   toStrings(user.FavoriteVideos),
		FavoritePodcasts: toStrings(user.FavoritePodcasts),
		FavoriteCourses:  toStrings(user.FavoriteCourses),
		CreatedAt:        user.CreatedAt,
		UpdatedAt:        user.UpdatedAt,
	}
	if _, err := r.users().InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return educms.ErrUserExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*educms.User, error) {
	return r.findUser(ctx, byID(id), fmt.Sprintf("user %s", id))
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*educms.User, error) {
	return r.findUser(ctx, bson.D{{Key: "username_lower", Value: strings.ToLower(username)}}, fmt.Sprintf("user %q", username))
}

func (r *Repository) findUser(ctx context.Context, filter bson.D, label string) (*educms.User, error) {
	var doc userDoc
	if err := r.users().FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", label, educms.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s: %w", label, err)
	}
	return doc.user()
}

// ToggleFavorite runs a pipeline update so the membership test and the
// flip happen in the same document write.
func (r *Repository) ToggleFavorite(ctx context.Context, userID uuid.UUID, kind educms.Kind, itemID uuid.UUID) (bool, error) {
	field, err := favoriteField(kind)
	if err != nil {
		return false, err
	}
	item := bson.D{{Key: "$literal", Value: itemID.String()}}
	current := bson.D{{Key: "$ifNull", Value: bson.A{"$" + field, bson.A{}}}}
	toggled := bson.D{{Key: "$cond", Value: bson.D{
		{Key: "if", Value: bson.D{{Key: "$in", Value: bson.A{item, current}}}},
		{Key: "then", Value: bson.D{{Key: "$filter", Value: bson.D{
			{Key: "input", Value: current},
			{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$this", item}}}},
		}}}},
		{Key: "else", Value: bson.D{{Key: "$concatArrays", Value: bson.A{current, bson.A{item}}}}},
	}}}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: field, Value: toggled}, {Key: "updated_at", Value: "$$NOW"}}}},
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.D{{Key: "_id", Value: 0}, {Key: field, Value: 1}})

	var after map[string][]string
	if err := r.users().FindOneAndUpdate(ctx, byID(userID), update, opts).Decode(&after); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, fmt.Errorf("user %s: %w", userID, educms.ErrNotFound)
		}
		return false, fmt.Errorf("failed to toggle favorite: %w", err)
	}
	for _, id := range after[field] {
		if id == itemID.String() {
			return true, nil
		}
	}
	return false, nil
}

func (r *Repository) PullFavorite(ctx context.Context, kind educms.Kind, itemID uuid.UUID) (int64, error) {
	field, err := favoriteField(kind)
	if err != nil {
		return 0, err
	}
	res, err := r.users().UpdateMany(ctx,
		bson.D{{Key: field, Value: itemID.String()}},
		bson.D{{Key: "$pull", Value: bson.D{{Key: field, Value: itemID.String()}}}})
	if err != nil {
		return 0, fmt.Errorf("failed to pull favorite: %w", err)
	}
	return res.ModifiedCount, nil
}

// Enrollment operations

type enrollmentDoc struct {
	ID       string    `bson:"_id"`
	UserID   string    `bson:"user_id"`
	CourseID string    `bson:"course_id"`
	JoinedAt time.Time `bson:"joined_at"`
}

func (r *Repository) enrollments() *mongo.Collection {
	return r.db.Collection(enrollmentsCollection)
}

func enrollmentID(userID, courseID uuid.UUID) string {
	return userID.String() + "/" + courseID.String()
}

func (r *Repository) AddEnrollment(ctx context.Context, userID, courseID uuid.UUID) (bool, error) {
	doc := enrollmentDoc{
		ID:       enrollmentID(userID, courseID),
		UserID:   userID.String(),
		CourseID: courseID.String(),
		JoinedAt: time.Now().UTC(),
	}
	if _, err := r.enrollments().InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to add enrollment: %w", err)
	}
	return true, nil
}

func (r *Repository) RemoveEnrollment(ctx context.Context, userID, courseID uuid.UUID) (bool, error) {
	res, err := r.enrollments().DeleteOne(ctx, bson.D{{Key: "_id", Value: enrollmentID(userID, courseID)}})
	if err != nil {
		return false, fmt.Errorf("failed to remove enrollment: %w", err)
	}
	return res.DeletedCount == 1, nil
}

func (r *Repository) RemoveCourseEnrollments(ctx context.Context, courseID uuid.UUID) (int64, error) {
	res, err := r.enrollments().DeleteMany(ctx, bson.D{{Key: "course_id", Value: courseID.String()}})
	if err != nil {
		return 0, fmt.Errorf("failed to remove course enrollments: %w", err)
	}
	return res.DeletedCount, nil
}

func (r *Repository) ListCourseMembers(ctx context.Context, courseID uuid.UUID) ([]uuid.UUID, error) {
	docs, err := r.listEnrollments(ctx, bson.D{{Key: "course_id", Value: courseID.String()}})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.UserID)
	}
	return toUUIDs(ids)
}

func (r *Repository) ListUserCourses(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	docs, err := r.listEnrollments(ctx, bson.D{{Key: "user_id", Value: userID.String()}})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.CourseID)
	}
	return toUUIDs(ids)
}

func (r *Repository) listEnrollments(ctx context.Context, filter bson.D) ([]enrollmentDoc, error) {
	opts := options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.enrollments().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	var docs []enrollmentDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode enrollments: %w", err)
	}
	return docs, nil
}

// Category operations

type categoryDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	NameLower string    `bson:"name_lower"`
	Slug      string    `bson:"slug"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d *categoryDoc) category() (*educms.Category, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("malformed category id %q: %w", d.ID, err)
	}
	return &educms.Category{ID: id, Name: d.Name, Slug: d.Slug, CreatedAt: d.CreatedAt.UTC()}, nil
}

func (r *Repository) categories() *mongo.Collection {
	return r.db.Collection(categoriesCollection)
}

func (r *Repository) CreateCategory(ctx context.Context, category *educms.Category) error {
	doc := categoryDoc{
		ID:        category.ID.String(),
		Name:      category.Name,
		NameLower: strings.ToLower(category.Name),
		Slug:      category.Slug,
		CreatedAt: category.CreatedAt,
	}
	if _, err := r.categories().InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return educms.ErrCategoryExists
		}
		return fmt.Errorf("failed to insert category: %w", err)
	}
	return nil
}

func (r *Repository) GetCategory(ctx context.Context, id uuid.UUID) (*educms.Category, error) {
	var doc categoryDoc
	if err := r.categories().FindOne(ctx, byID(id)).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("category %s: %w", id, educms.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return doc.category()
}

func (r *Repository) ListCategories(ctx context.Context) ([]*educms.Category, error) {
	cursor, err := r.categories().Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	var docs []categoryDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode categories: %w", err)
	}
	result := make([]*educms.Category, 0, len(docs))
	for i := range docs {
		c, err := docs[i].category()
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, nil
}

func (r *Repository) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	res, err := r.categories().DeleteOne(ctx, byID(id))
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("category %s: %w", id, educms.ErrNotFound)
	}
	return nil
}

// Site configuration operations

type siteDoc struct {
	Key       string    `bson:"_id"`
	Document  string    `bson:"document"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (r *Repository) GetSiteConfig(ctx context.Context, key string) (*educms.SiteConfig, error) {
	var doc siteDoc
	err := r.db.Collection(siteCollection).FindOne(ctx, bson.D{{Key: "_id", Value: key}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("site config %q: %w", key, educms.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get site config: %w", err)
	}
	return &educms.SiteConfig{Key: doc.Key, Document: []byte(doc.Document), UpdatedAt: doc.UpdatedAt.UTC()}, nil
}

func (r *Repository) SaveSiteConfig(ctx context.Context, cfg *educms.SiteConfig) error {
	doc := siteDoc{Key: cfg.Key, Document: string(cfg.Document), UpdatedAt: cfg.UpdatedAt}
	_, err := r.db.Collection(siteCollection).ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: cfg.Key}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save site config: %w", err)
	}
	return nil
}

func (d *userDoc) user() (*educms.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("malformed user id %q: %w", d.ID, err)
	}
	user := &educms.User{
		ID:           id,
		Username:     d.Username,
		Phone:        d.Phone,
		PasswordHash: d.PasswordHash,
		Role:         educms.Role(d.Role),
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
	sets := []struct {
		src []string
		dst *[]uuid.UUID
	}{
		{d.FavoriteArticles, &user.FavoriteArticles},
		{d.FavoriteVideos, &user.FavoriteVideos},
		{d.FavoritePodcasts, &user.FavoritePodcasts},
		{d.FavoriteCourses, &user.FavoriteCourses},
	}
	for _, s := range sets {
		if *s.dst, err = toUUIDs(s.src); err != nil {
			return nil, fmt.Errorf("malformed favorite on user %s: %w", d.ID, err)
		}
	}
	return user, nil
}

// favoriteField maps a kind to the array field holding its favorites.
func favoriteField(kind educms.Kind) (string, error) {
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
