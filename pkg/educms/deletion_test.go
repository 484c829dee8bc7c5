package educms_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/edu-cms/pkg/educms"
	memorymedia "github.com/tendant/edu-cms/pkg/educms/media/memory"
	"github.com/tendant/edu-cms/pkg/educms/repo/memory"
)

var errBoom = errors.New("boom")

// flakyRepo fails selected methods a set number of times.
type flakyRepo struct {
	*memory.Repository
	mu       sync.Mutex
	failures map[string]int
	// removeThenFail makes DeleteItem remove the record and still report an error.
	removeThenFail bool
}

func newFlakyRepo() *flakyRepo {
	return &flakyRepo{Repository: memory.New(), failures: map[string]int{}}
}

func (r *flakyRepo) failNext(method string, times int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[method] = times
}

func (r *flakyRepo) fail(method string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures[method] > 0 {
		r.failures[method]--
		return errBoom
	}
	return nil
}

func (r *flakyRepo) GetItem(ctx context.Context, kind educms.Kind, id uuid.UUID) (*educms.Item, error) {
	if err := r.fail("GetItem"); err != nil {
		return nil, err
	}
	return r.Repository.GetItem(ctx, kind, id)
}

func (r *flakyRepo) PullRelated(ctx context.Context, kind educms.Kind, id uuid.UUID) (int64, error) {
	if err := r.fail("PullRelated"); err != nil {
		return 0, err
	}
	return r.Repository.PullRelated(ctx, kind, id)
}

func (r *flakyRepo) PullCourseContent(ctx context.Context, itemType educms.ItemType, id string) (int64, error) {
	if err := r.fail("PullCourseContent"); err != nil {
		return 0, err
	}
	return r.Repository.PullCourseContent(ctx, itemType, id)
}

func (r *flakyRepo) PullFavorite(ctx context.Context, kind educms.Kind, id uuid.UUID) (int64, error) {
	if err := r.fail("PullFavorite"); err != nil {
		return 0, err
	}
	return r.Repository.PullFavorite(ctx, kind, id)
}

func (r *flakyRepo) DeleteItem(ctx context.Context, kind educms.Kind, id uuid.UUID) error {
	if err := r.fail("DeleteItem"); err != nil {
		if r.removeThenFail {
			_ = r.Repository.DeleteItem(ctx, kind, id)
		}
		return err
	}
	return r.Repository.DeleteItem(ctx, kind, id)
}

// racingRepo runs a hook once, right after the first read of a chosen
// record, so a deletion can land between an edit's read and its write.
type racingRepo struct {
	*memory.Repository
	mu    sync.Mutex
	after map[uuid.UUID]func()
}

func newRacingRepo() *racingRepo {
	return &racingRepo{Repository: memory.New(), after: map[uuid.UUID]func(){}}
}

func (r *racingRepo) afterRead(id uuid.UUID, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.after[id] = fn
}

func (r *racingRepo) fire(id uuid.UUID) {
	r.mu.Lock()
	fn := r.after[id]
	delete(r.after, id)
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (r *racingRepo) GetItem(ctx context.Context, kind educms.Kind, id uuid.UUID) (*educms.Item, error) {
	item, err := r.Repository.GetItem(ctx, kind, id)
	r.fire(id)
	return item, err
}

func (r *racingRepo) GetCourse(ctx context.Context, id uuid.UUID) (*educms.Course, error) {
	course, err := r.Repository.GetCourse(ctx, id)
	r.fire(id)
	return course, err
}

type failingMedia struct {
	*memorymedia.Backend
	fail map[string]bool
}

func (m *failingMedia) Delete(ctx context.Context, path string) error {
	if m.fail[path] {
		return errors.New("disk busy")
	}
	return m.Backend.Delete(ctx, path)
}

type recordingSink struct {
	educms.NoopEventSink
	mu      sync.Mutex
	deleted []uuid.UUID
	err     error
}

func (s *recordingSink) ItemDeleted(ctx context.Context, kind educms.Kind, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	return s.err
}

func TestDelete_VideoPrunesEveryReference(t *testing.T) {
	sink := &recordingSink{err: errBoom}
	f := setupTestService(t, educms.WithEventSink(sink))
	ctx := context.Background()

	x := f.item(t, educms.KindVideo, "x")
	v := f.item(t, educms.KindVideo, "v")
	require.NoError(t, f.svc.SetRelated(ctx, educms.KindVideo, v.ID, []uuid.UUID{x.ID}))
	article := f.item(t, educms.KindArticle, "a")
	c1 := f.course(t, "c1", ref(article), ref(x))
	c2 := f.course(t, "c2", ref(x), ref(x))
	user := f.user(t, "u")
	_, err := f.svc.ToggleFavorite(ctx, user.ID, educms.KindVideo, x.ID)
	require.NoError(t, err)
	f.media.Put(x.Thumbnail, []byte("png"))
	f.media.Put(x.MediaPath, []byte("external"))

	report, err := f.svc.DeleteWithReport(ctx, educms.KindVideo, x.ID)
	require.NoError(t, err)
	assert.True(t, report.Completed())
	assert.Equal(t, 1, report.Attempts)
	assert.Equal(t, int64(1), report.RelatedPruned)
	assert.Equal(t, int64(2), report.ContentPruned)
	assert.Equal(t, int64(1), report.UserRefsPruned)
	assert.Empty(t, report.MediaFailures)

	_, err = f.svc.GetItem(ctx, educms.KindVideo, x.ID)
	assert.ErrorIs(t, err, educms.ErrNotFound)

	gotV, err := f.svc.GetItem(ctx, educms.KindVideo, v.ID)
	require.NoError(t, err)
	assert.Empty(t, gotV.Related)

	gotC1, err := f.svc.GetCourse(ctx, c1.ID)
	require.NoError(t, err)
	assert.Equal(t, []educms.ContentRef{ref(article)}, gotC1.Content)

	gotC2, err := f.svc.GetCourse(ctx, c2.ID)
	require.NoError(t, err)
	assert.Empty(t, gotC2.Content)

	gotUser, err := f.svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, gotUser.FavoriteVideos)

	assert.False(t, f.media.Exists(x.Thumbnail))
	assert.True(t, f.media.Exists(x.MediaPath), "video sources are not owned")

	assert.Equal(t, []uuid.UUID{x.ID}, sink.deleted, "sink failure does not fail the deletion")
}

func TestDelete_MediaPerKind(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	podcast := f.item(t, educms.KindPodcast, "p")
	f.media.Put(podcast.Thumbnail, []byte("png"))
	f.media.Put(podcast.MediaPath, []byte("mp3"))

	resume := "resumes/counselor.pdf"
	counsel, err := f.svc.CreateItem(ctx, educms.CreateItemRequest{
		Kind:             educms.KindCounsel,
		Title:            "Dr. K",
		ShortDescription: "Family counselling",
		CategoryID:       f.category.ID,
		Thumbnail:        "thumbs/k.png",
		Body:             doc,
		ResumePath:       resume,
	})
	require.NoError(t, err)
	f.media.Put(counsel.Thumbnail, []byte("png"))
	f.media.Put(resume, []byte("pdf"))

	require.NoError(t, f.svc.Delete(ctx, educms.KindPodcast, podcast.ID))
	assert.False(t, f.media.Exists(podcast.Thumbnail))
	assert.False(t, f.media.Exists(podcast.MediaPath))

	require.NoError(t, f.svc.Delete(ctx, educms.KindCounsel, counsel.ID))
	assert.False(t, f.media.Exists(counsel.Thumbnail))
	assert.False(t, f.media.Exists(resume))
}

func TestDelete_Course(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	course := f.course(t, "doomed")
	other := f.course(t, "other")
	require.NoError(t, f.svc.SetRelated(ctx, educms.KindCourse, other.ID, []uuid.UUID{course.ID}))
	user := f.user(t, "learner")
	require.NoError(t, f.svc.Join(ctx, user.ID, course.ID))
	_, err := f.svc.ToggleFavorite(ctx, user.ID, educms.KindCourse, course.ID)
	require.NoError(t, err)

	report, err := f.svc.DeleteWithReport(ctx, educms.KindCourse, course.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.UserRefsPruned)

	gotUser, err := f.svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, gotUser.JoinedCourses)
	assert.Empty(t, gotUser.FavoriteCourses)

	gotOther, err := f.svc.GetCourse(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, gotOther.Related)

	assert.ErrorIs(t, f.svc.Delete(ctx, educms.KindCourse, course.ID), educms.ErrNotFound)
}

func TestDelete_Absent(t *testing.T) {
	f := setupTestService(t)
	err := f.svc.Delete(context.Background(), educms.KindArticle, uuid.New())
	assert.ErrorIs(t, err, educms.ErrNotFound)
	assert.NotErrorIs(t, err, educms.ErrPartialDeletion)
}

func TestDelete_MediaFailureDoesNotAbort(t *testing.T) {
	media := &failingMedia{Backend: memorymedia.New(), fail: map[string]bool{}}
	f := setupTestService(t, educms.WithMediaStore(media))
	ctx := context.Background()

	podcast := f.item(t, educms.KindPodcast, "p")
	media.Put(podcast.MediaPath, []byte("mp3"))
	media.fail[podcast.Thumbnail] = true

	report, err := f.svc.DeleteWithReport(ctx, educms.KindPodcast, podcast.ID)
	require.NoError(t, err)
	require.Len(t, report.MediaFailures, 1)
	assert.Equal(t, podcast.Thumbnail, report.MediaFailures[0].Path)
	assert.Contains(t, report.MediaFailures[0].Error, educms.ErrMediaCleanupFailed.Error())
	assert.False(t, media.Exists(podcast.MediaPath))

	_, err = f.svc.GetItem(ctx, educms.KindPodcast, podcast.ID)
	assert.ErrorIs(t, err, educms.ErrNotFound)
}

func TestDelete_RetriesFailedStage(t *testing.T) {
	repo := newFlakyRepo()
	f := setupWithRepository(t, repo)
	ctx := context.Background()

	x := f.item(t, educms.KindArticle, "x")
	a := f.item(t, educms.KindArticle, "a")
	require.NoError(t, f.svc.SetRelated(ctx, educms.KindArticle, a.ID, []uuid.UUID{x.ID}))
	course := f.course(t, "c", ref(x))

	repo.failNext("PullCourseContent", 1)

	report, err := f.svc.DeleteWithReport(ctx, educms.KindArticle, x.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Attempts)

	got, err := f.svc.GetCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Content)

	gotA, err := f.svc.GetItem(ctx, educms.KindArticle, a.ID)
	require.NoError(t, err)
	assert.Empty(t, gotA.Related)
}

func TestDelete_PartialDeletion(t *testing.T) {
	repo := newFlakyRepo()
	f := setupWithRepository(t, repo, educms.WithDeleteAttempts(2))
	ctx := context.Background()

	x := f.item(t, educms.KindVideo, "x")
	user := f.user(t, "u")
	_, err := f.svc.ToggleFavorite(ctx, user.ID, educms.KindVideo, x.ID)
	require.NoError(t, err)

	repo.failNext("PullFavorite", 2)

	report, err := f.svc.DeleteWithReport(ctx, educms.KindVideo, x.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, educms.ErrPartialDeletion)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 2, report.Attempts)
	assert.False(t, report.Completed())

	var derr *educms.DeletionError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, educms.StageUserPrune, derr.Stage)

	_, err = f.svc.GetItem(ctx, educms.KindVideo, x.ID)
	require.NoError(t, err, "record is kept so the deletion can be rerun")

	require.NoError(t, f.svc.Delete(ctx, educms.KindVideo, x.ID))
	gotUser, err := f.svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, gotUser.FavoriteVideos)
}

func TestDelete_RetryAfterAmbiguousRemoval(t *testing.T) {
	repo := newFlakyRepo()
	repo.removeThenFail = true
	f := setupWithRepository(t, repo)
	ctx := context.Background()

	x := f.item(t, educms.KindArticle, "x")
	repo.failNext("DeleteItem", 1)

	report, err := f.svc.DeleteWithReport(ctx, educms.KindArticle, x.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Attempts)
	assert.True(t, report.Completed())
}

func TestDelete_ConcurrentWithEdit(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	x := f.item(t, educms.KindArticle, "x")
	others := make([]*educms.Item, 5)
	for i := range others {
		others[i] = f.item(t, educms.KindArticle, "other")
		require.NoError(t, f.svc.SetRelated(ctx, educms.KindArticle, others[i].ID, []uuid.UUID{x.ID}))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, f.svc.Delete(ctx, educms.KindArticle, x.ID))
	}()
	go func() {
		defer wg.Done()
		for _, o := range others {
			_, _ = f.svc.EditItem(ctx, educms.EditItemRequest{Kind: educms.KindArticle, ID: o.ID, Title: ptr("renamed")})
		}
	}()
	wg.Wait()

	_, err := f.svc.GetItem(ctx, educms.KindArticle, x.ID)
	assert.ErrorIs(t, err, educms.ErrNotFound)

	for _, o := range others {
		got, err := f.svc.GetItem(ctx, educms.KindArticle, o.ID)
		require.NoError(t, err)
		assert.NotContains(t, got.Related, x.ID)
	}
}

func TestDelete_BetweenEditReadAndWrite(t *testing.T) {
	repo := newRacingRepo()
	f := setupWithRepository(t, repo)
	ctx := context.Background()

	a := f.item(t, educms.KindArticle, "a")
	b := f.item(t, educms.KindArticle, "b")
	c := f.item(t, educms.KindArticle, "c")
	require.NoError(t, f.svc.SetRelated(ctx, educms.KindArticle, a.ID, []uuid.UUID{b.ID, c.ID}))

	repo.afterRead(a.ID, func() {
		require.NoError(t, f.svc.Delete(ctx, educms.KindArticle, b.ID))
	})

	edited, err := f.svc.EditItem(ctx, educms.EditItemRequest{Kind: educms.KindArticle, ID: a.ID, Title: ptr("renamed")})
	require.NoError(t, err)
	assert.Equal(t, "renamed", edited.Title)
	assert.Equal(t, []uuid.UUID{c.ID}, edited.Related)

	got, err := f.svc.GetItem(ctx, educms.KindArticle, a.ID)
	require.NoError(t, err)
	assert.NotContains(t, got.Related, b.ID)

	_, err = f.svc.GetItem(ctx, educms.KindArticle, b.ID)
	assert.ErrorIs(t, err, educms.ErrNotFound)
}

func TestDelete_BetweenCourseEditReadAndWrite(t *testing.T) {
	repo := newRacingRepo()
	f := setupWithRepository(t, repo)
	ctx := context.Background()

	video := f.item(t, educms.KindVideo, "v")
	article := f.item(t, educms.KindArticle, "a")
	course := f.course(t, "c", ref(video), ref(article))

	repo.afterRead(course.ID, func() {
		require.NoError(t, f.svc.Delete(ctx, educms.KindVideo, video.ID))
	})

	edited, err := f.svc.EditCourse(ctx, educms.EditCourseRequest{ID: course.ID, Goal: ptr("Sleep better")})
	require.NoError(t, err)
	assert.Equal(t, "Sleep better", edited.Goal)
	assert.Equal(t, []educms.ContentRef{ref(article)}, edited.Content)

	got, err := f.svc.GetCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, []educms.ContentRef{ref(article)}, got.Content)
}

func TestDelete_RetriesFailedLoad(t *testing.T) {
	repo := newFlakyRepo()
	f := setupWithRepository(t, repo)
	ctx := context.Background()

	x := f.item(t, educms.KindArticle, "x")
	repo.failNext("GetItem", 1)

	report, err := f.svc.DeleteWithReport(ctx, educms.KindArticle, x.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Attempts)
	assert.True(t, report.Completed())
}

func TestDelete_LoadFailureIsPartial(t *testing.T) {
	repo := newFlakyRepo()
	f := setupWithRepository(t, repo, educms.WithDeleteAttempts(2))
	ctx := context.Background()

	x := f.item(t, educms.KindArticle, "x")
	repo.failNext("GetItem", 2)

	report, err := f.svc.DeleteWithReport(ctx, educms.KindArticle, x.ID)
	assert.ErrorIs(t, err, educms.ErrPartialDeletion)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 2, report.Attempts)

	var derr *educms.DeletionError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, educms.StageRequested, derr.Stage)

	_, err = f.svc.GetItem(ctx, educms.KindArticle, x.ID)
	assert.NoError(t, err)
}

func TestDelete_ReportStages(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	tests := []struct {
		kind educms.Kind
		want []educms.DeletionStage
	}{
		{educms.KindCounsel, []educms.DeletionStage{
			educms.StageRequested, educms.StageMediaCleanup, educms.StageGraphPrune,
			educms.StageRecordRemoved, educms.StageDone,
		}},
		{educms.KindPodcast, []educms.DeletionStage{
			educms.StageRequested, educms.StageMediaCleanup, educms.StageGraphPrune, educms.StageUserPrune,
			educms.StageRecordRemoved, educms.StageDone,
		}},
		{educms.KindVideo, []educms.DeletionStage{
			educms.StageRequested, educms.StageMediaCleanup, educms.StageGraphPrune,
			educms.StageCompositionPrune, educms.StageUserPrune,
			educms.StageRecordRemoved, educms.StageDone,
		}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			item := f.item(t, tt.kind, "staged "+string(tt.kind))
			report, err := f.svc.DeleteWithReport(ctx, tt.kind, item.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, report.Stages)
		})
	}

	course := f.course(t, "staged")
	report, err := f.svc.DeleteWithReport(ctx, educms.KindCourse, course.ID)
	require.NoError(t, err)
	assert.Equal(t, []educms.DeletionStage{
		educms.StageRequested, educms.StageMediaCleanup, educms.StageGraphPrune, educms.StageUserPrune,
		educms.StageRecordRemoved, educms.StageDone,
	}, report.Stages)
}
