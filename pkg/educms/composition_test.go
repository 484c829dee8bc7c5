package educms_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/edu-cms/pkg/educms"
)

func TestSetCourseContent(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	article := f.item(t, educms.KindArticle, "intro")
	video := f.item(t, educms.KindVideo, "lecture")
	course := f.course(t, "Basics")
	quiz := educms.ContentRef{ItemID: "quiz-42", ItemType: educms.ItemTypeQuiz}

	t.Run("order and duplicates kept", func(t *testing.T) {
		entries := []educms.ContentRef{ref(article), quiz, ref(video), ref(article)}
		require.NoError(t, f.svc.SetCourseContent(ctx, course.ID, entries))

		got, err := f.svc.GetCourse(ctx, course.ID)
		require.NoError(t, err)
		assert.Equal(t, entries, got.Content)
	})

	rejected := []struct {
		name  string
		entry educms.ContentRef
	}{
		{"absent article", educms.ContentRef{ItemID: uuid.NewString(), ItemType: educms.ItemTypeArticle}},
		{"video id as article", educms.ContentRef{ItemID: video.ID.String(), ItemType: educms.ItemTypeArticle}},
		{"malformed id", educms.ContentRef{ItemID: "not-a-uuid", ItemType: educms.ItemTypeVideo}},
		{"unknown type", educms.ContentRef{ItemID: article.ID.String(), ItemType: "podcast"}},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.SetCourseContent(ctx, course.ID, []educms.ContentRef{ref(article), tt.entry})
			assert.ErrorIs(t, err, educms.ErrInvalidReference)

			got, err := f.svc.GetCourse(ctx, course.ID)
			require.NoError(t, err)
			assert.Len(t, got.Content, 4, "content is unchanged")
		})
	}
}

func TestResolveCourseContent(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	article := f.item(t, educms.KindArticle, "intro")
	video := f.item(t, educms.KindVideo, "lecture")
	quiz := educms.ContentRef{ItemID: "quiz-1", ItemType: educms.ItemTypeQuiz}
	course := f.course(t, "Basics", ref(article), quiz, ref(video))

	// bypass Delete so the course keeps a dangling entry
	require.NoError(t, f.repo.DeleteItem(ctx, educms.KindVideo, video.ID))

	entries, err := f.svc.ResolveCourseContent(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, educms.EntryResolved, entries[0].Status)
	require.NotNil(t, entries[0].Item)
	assert.Equal(t, article.Title, entries[0].Item.Title)

	assert.Equal(t, educms.EntryOpaque, entries[1].Status)
	assert.Nil(t, entries[1].Item)

	assert.Equal(t, educms.EntryMissing, entries[2].Status)
	assert.Equal(t, 2, entries[2].Position)

	_, err = f.svc.ResolveCourseContent(ctx, uuid.New())
	assert.ErrorIs(t, err, educms.ErrNotFound)
}

func TestPruneCourseContent(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	x := f.item(t, educms.KindArticle, "x")
	y := f.item(t, educms.KindVideo, "y")
	quiz := educms.ContentRef{ItemID: "q", ItemType: educms.ItemTypeQuiz}
	c1 := f.course(t, "c1", ref(x), ref(y), quiz, ref(x))
	c2 := f.course(t, "c2", ref(y))

	n, err := f.svc.PruneCourseContent(ctx, educms.ItemTypeArticle, x.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := f.svc.GetCourse(ctx, c1.ID)
	require.NoError(t, err)
	assert.Equal(t, []educms.ContentRef{ref(y), quiz}, got.Content)

	got, err = f.svc.GetCourse(ctx, c2.ID)
	require.NoError(t, err)
	assert.Equal(t, []educms.ContentRef{ref(y)}, got.Content)

	n, err = f.svc.PruneCourseContent(ctx, educms.ItemTypeArticle, x.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.svc.PruneCourseContent(ctx, educms.ItemTypeQuiz, x.ID)
	assert.ErrorIs(t, err, educms.ErrInvalidField)
}
