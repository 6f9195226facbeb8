package post_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/gallery/core"
	"github.com/trezcool/gallery/core/post"
	"github.com/trezcool/gallery/core/site"
	"github.com/trezcool/gallery/storage/blob"
	"github.com/trezcool/gallery/storage/database/inmem"
	"github.com/trezcool/gallery/tests"
)

var (
	alice = post.Actor{Name: "Alice", Email: "alice@test.cd"}
	bob   = post.Actor{Name: "Bob", Email: "bob@test.cd"}
	staff = post.Actor{Name: "Admin", Email: "admin@test.cd", IsStaff: true}
)

type fixture struct {
	svc     post.Service
	repo    post.Repository
	siteSvc site.Service
	blobs   *blob.Store
}

func setup(t *testing.T) fixture {
	db := inmemdb.Open()
	blobs, err := blob.Open(filepath.Join(t.TempDir(), "blobs.db"), "http://files.test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = blobs.Close() })

	logger := testutil.NewLogger()
	repo := inmemdb.NewPostRepository(db)
	siteSvc := site.NewService(inmemdb.NewSiteRepository(db), blobs, logger)
	return fixture{
		svc:     post.NewService(repo, siteSvc, blobs, core.NewTestConfig(), logger),
		repo:    repo,
		siteSvc: siteSvc,
		blobs:   blobs,
	}
}

// seed stores n posts of alice, one minute apart; the last one is the newest.
func (f fixture) seed(t *testing.T, n int) []post.Post {
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	posts := make([]post.Post, 0, n)
	for i := 0; i < n; i++ {
		posts = append(posts, testutil.CreatePost(t, f.repo, alice.Author(), "post", t0.Add(time.Duration(i)*time.Minute)))
	}
	return posts
}

func (f fixture) upload(t *testing.T, name string) string {
	key, err := f.blobs.Put(context.Background(), "posts", name, "image/png", strings.NewReader("png"))
	require.NoError(t, err)
	return f.blobs.URL(key)
}

func ids(posts []post.Post) []string {
	res := make([]string, 0, len(posts))
	for _, p := range posts {
		res = append(res, p.ID)
	}
	return res
}

func newestFirst(posts []post.Post) []post.Post {
	res := make([]post.Post, 0, len(posts))
	for i := len(posts) - 1; i >= 0; i-- {
		res = append(res, posts[i])
	}
	return res
}

func assertValidationError(t *testing.T, err error, cause error) {
	t.Helper()
	var ve *core.ValidationError
	if assert.True(t, errors.As(err, &ve), "err = %v; want a validation error", err) {
		assert.Equal(t, cause, ve.Err)
	}
}

func TestService_AdminPage(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	posts := newestFirst(f.seed(t, 25))

	tests := []struct {
		name         string
		page         int
		reset        bool
		want         []post.Post
		wantResolved int
	}{
		{name: "first page", page: 1, want: posts[:10], wantResolved: 1},
		{name: "jump to last page", page: 3, want: posts[20:], wantResolved: 3},
		{name: "back to page 2", page: 2, want: posts[10:20], wantResolved: 3},
		{name: "page 1 keeps the session", page: 1, want: posts[:10], wantResolved: 3},
		{name: "reset", page: 1, reset: true, want: posts[:10], wantResolved: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.AdminPage(ctx, "admin", tt.page, tt.reset)
			require.NoError(t, err)
			assert.Equal(t, tt.page, got.Page)
			assert.Equal(t, 25, got.Total)
			assert.Equal(t, 3, got.TotalPages)
			assert.Equal(t, tt.wantResolved, got.ResolvedPages)
			assert.Equal(t, ids(tt.want), ids(got.Posts))
		})
	}

	t.Run("out of range", func(t *testing.T) {
		_, err := f.svc.AdminPage(ctx, "admin", 4, false)
		assertValidationError(t, err, post.ErrPageOutOfRange)
		_, err = f.svc.AdminPage(ctx, "admin", 0, false)
		assertValidationError(t, err, post.ErrPageOutOfRange)
	})

	t.Run("sessions are independent", func(t *testing.T) {
		_, err := f.svc.AdminPage(ctx, "sub-admin", 3, false)
		require.NoError(t, err)
		got, err := f.svc.AdminPage(ctx, "admin", 1, false)
		require.NoError(t, err)
		assert.Equal(t, 1, got.ResolvedPages)
	})

	t.Run("new posts restart every session", func(t *testing.T) {
		p, err := f.svc.Create(ctx, staff, post.NewPost{Title: "fresh", Content: "new", ThumbnailURL: "https://cdn.test/new.png"})
		require.NoError(t, err)

		got, err := f.svc.AdminPage(ctx, "sub-admin", 1, false)
		require.NoError(t, err)
		assert.Equal(t, 1, got.ResolvedPages)
		assert.Equal(t, 26, got.Total)
		assert.Equal(t, p.ID, got.Posts[0].ID)

		got, err = f.svc.AdminPage(ctx, "sub-admin", 3, false)
		require.NoError(t, err)
		assert.Equal(t, ids(posts[19:]), ids(got.Posts))
	})

	t.Run("empty listing", func(t *testing.T) {
		f := setup(t)
		got, err := f.svc.AdminPage(ctx, "admin", 1, false)
		require.NoError(t, err)
		assert.Equal(t, 1, got.TotalPages)
		assert.Equal(t, []post.Post{}, got.Posts)
	})
}

func TestService_Feed(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	posts := newestFirst(f.seed(t, 15))

	page, err := f.svc.Feed(ctx, post.QueryFilter{}, "")
	require.NoError(t, err)
	assert.Equal(t, ids(posts[:12]), ids(page.Posts))
	require.NotEmpty(t, page.Next)

	page, err = f.svc.Feed(ctx, post.QueryFilter{}, page.Next)
	require.NoError(t, err)
	assert.Equal(t, ids(posts[12:]), ids(page.Posts))
	assert.Empty(t, page.Next)

	page, err = f.svc.Feed(ctx, post.QueryFilter{Year: 1999}, "")
	require.NoError(t, err)
	assert.Equal(t, []post.Post{}, page.Posts)
	assert.Empty(t, page.Next)

	for _, token := range []string{"%%%", "bm90LWpzb24", "e30"} {
		_, err = f.svc.Feed(ctx, post.QueryFilter{}, token)
		assertValidationError(t, err, post.ErrInvalidToken)
	}
}

func TestPageToken(t *testing.T) {
	c := post.Cursor{CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 123000, time.UTC), ID: "abc"}
	got, err := post.DecodePageToken(post.EncodePageToken(c))
	require.NoError(t, err)
	assert.True(t, c.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, c.ID, got.ID)

	got, err = post.DecodePageToken("")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	np := post.NewPost{
		Title:        "Smart Farm",
		Content:      "IoT greenhouse",
		ThumbnailURL: "https://cdn.test/farm.png",
		YoutubeLink:  "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		TechStack:    []string{"go"},
	}

	p, err := f.svc.Create(ctx, alice, np)
	require.NoError(t, err)
	assert.Equal(t, alice.Author(), p.Author)
	assert.Equal(t, "dQw4w9WgXcQ", p.YoutubeVideoID)
	assert.Empty(t, p.Likes)
	assert.Equal(t, 0, p.Views)

	on := false
	_, err = f.siteSvc.UpdateSettings(ctx, site.UpdateSettings{PostUploadEnabled: &on})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, alice, np)
	assert.Equal(t, post.ErrUploadDisabled, err)

	// staff can always publish
	_, err = f.svc.Create(ctx, staff, np)
	assert.NoError(t, err)

	n, err := f.svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestService_UpdateDelete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	thumb := f.upload(t, "thumb.png")
	detail := f.upload(t, "detail.png")
	p, err := f.svc.Create(ctx, alice, post.NewPost{
		Title:        "Smart Farm",
		Content:      "IoT greenhouse",
		ThumbnailURL: thumb,
		DetailImages: []string{detail},
	})
	require.NoError(t, err)

	up := post.UpdatePost{Title: "Smarter Farm", Content: "IoT greenhouse", ThumbnailURL: thumb}
	_, err = f.svc.Update(ctx, bob, p.ID, up)
	assert.Equal(t, core.ErrForbidden, err)
	_, err = f.svc.Update(ctx, alice, "nope", up)
	assert.Equal(t, post.ErrNotFound, err)

	updated, err := f.svc.Update(ctx, alice, p.ID, up)
	require.NoError(t, err)
	assert.Equal(t, "Smarter Farm", updated.Title)
	assert.Equal(t, []string{}, updated.DetailImages)

	// the dropped detail image is gone, the thumbnail is kept
	key, _ := f.blobs.KeyFromURL(detail)
	_, err = f.blobs.Get(ctx, key)
	assert.Equal(t, core.ErrBlobNotFound, err)
	key, _ = f.blobs.KeyFromURL(thumb)
	_, err = f.blobs.Get(ctx, key)
	assert.NoError(t, err)

	assert.Equal(t, core.ErrForbidden, f.svc.Delete(ctx, bob, p.ID))
	require.NoError(t, f.svc.Delete(ctx, staff, p.ID))
	_, err = f.svc.Get(ctx, p.ID)
	assert.Equal(t, post.ErrNotFound, err)
	_, err = f.blobs.Get(ctx, key)
	assert.Equal(t, core.ErrBlobNotFound, err)
}

func TestService_ToggleLike(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.seed(t, 1)[0]

	got, err := f.svc.ToggleLike(ctx, bob, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{bob.Email}, got.Likes)

	got, err = f.svc.ToggleLike(ctx, alice, p.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{alice.Email, bob.Email}, got.Likes)

	got, err = f.svc.ToggleLike(ctx, bob, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{alice.Email}, got.Likes)

	_, err = f.svc.ToggleLike(ctx, bob, "nope")
	assert.Equal(t, post.ErrNotFound, err)

	views, err := f.svc.View(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, views)
}

func TestService_HallOfFame(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	posts := f.seed(t, 12)

	for i, p := range posts[:3] {
		for j := 0; j <= i; j++ {
			email := []string{"a@test.cd", "b@test.cd", "c@test.cd"}[j]
			_, err := f.svc.ToggleLike(ctx, post.Actor{Email: email}, p.ID)
			require.NoError(t, err)
		}
	}

	top, err := f.svc.HallOfFame(ctx)
	require.NoError(t, err)
	require.Len(t, top, 10)
	assert.Equal(t, []string{posts[2].ID, posts[1].ID, posts[0].ID, posts[11].ID}, ids(top[:4]))
}

func TestService_Search(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	t0 := time.Now().Add(-time.Hour)

	old := testutil.CreatePost(t, f.repo, alice.Author(), "Robot arm", t0)
	for i := 1; i <= 30; i++ {
		testutil.CreatePost(t, f.repo, alice.Author(), "filler", t0.Add(time.Duration(i)*time.Second))
	}
	robot := testutil.CreatePost(t, f.repo, bob.Author(), "ROBOT dog", t0.Add(time.Minute))

	found, err := f.svc.Search(ctx, "robot")
	require.NoError(t, err)
	// the oldest robot fell out of the search window
	assert.Equal(t, []string{robot.ID}, ids(found))
	assert.NotContains(t, ids(found), old.ID)

	found, err = f.svc.Search(ctx, "  ")
	require.NoError(t, err)
	assert.Empty(t, found)

	// tech stack is searched too
	found, err = f.svc.Search(ctx, "GO")
	require.NoError(t, err)
	assert.Len(t, found, 30)
}

func TestService_comments(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.seed(t, 1)[0]

	c, err := f.svc.AddComment(ctx, bob, p.ID, post.NewComment{Content: "wow"})
	require.NoError(t, err)
	assert.Equal(t, bob.Author(), c.Author)

	_, err = f.svc.AddComment(ctx, bob, "nope", post.NewComment{Content: "wow"})
	assert.Equal(t, post.ErrNotFound, err)

	comments, err := f.svc.Comments(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []post.Comment{c}, comments)

	got, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CommentCount)

	assert.Equal(t, core.ErrForbidden, f.svc.DeleteComment(ctx, alice, c.ID))
	require.NoError(t, f.svc.DeleteComment(ctx, bob, c.ID))
	assert.Equal(t, post.ErrCommentNotFound, f.svc.DeleteComment(ctx, bob, c.ID))
}

func TestService_DeleteUserContent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	thumb := f.upload(t, "thumb.png")
	for i := 0; i < 12; i++ {
		_, err := f.svc.Create(ctx, bob, post.NewPost{Title: "bob", Content: "c", ThumbnailURL: thumb})
		require.NoError(t, err)
	}
	kept := f.seed(t, 1)[0]
	_, err := f.svc.ToggleLike(ctx, bob, kept.ID)
	require.NoError(t, err)
	_, err = f.svc.AddComment(ctx, bob, kept.ID, post.NewComment{Content: "hi"})
	require.NoError(t, err)
	aliceComment, err := f.svc.AddComment(ctx, alice, kept.ID, post.NewComment{Content: "thanks"})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteUserContent(ctx, bob.Email))

	n, err := f.svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, err := f.svc.Get(ctx, kept.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Likes)
	comments, err := f.svc.Comments(ctx, kept.ID)
	require.NoError(t, err)
	assert.Equal(t, []post.Comment{aliceComment}, comments)

	key, _ := f.blobs.KeyFromURL(thumb)
	_, err = f.blobs.Get(ctx, key)
	assert.Equal(t, core.ErrBlobNotFound, err)
}
