package post

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/gallery/core"
	"github.com/trezcool/gallery/core/pagination"
)

var (
	// errors
	ErrNotFound        = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrUploadDisabled  = errors.New("post upload is currently disabled")
	ErrPageOutOfRange  = errors.New("page out of range")
	ErrInvalidToken    = errors.New("invalid page token")
)

type (
	Repository interface {
		CreatePost(ctx context.Context, p Post) (Post, error)
		GetPost(ctx context.Context, id string) (Post, error)
		// UpdatePost saves the editable fields of p (likes, views and comment count are left as they are).
		UpdatePost(ctx context.Context, p Post) (Post, error)
		// DeletePost deletes a post with its comments and likes.
		DeletePost(ctx context.Context, id string) error
		// QueryPosts returns at most limit posts matching filter, newest first (created_at DESC, id DESC),
		// strictly after the position `after` (from the newest when nil).
		QueryPosts(ctx context.Context, filter QueryFilter, after *Cursor, limit int) ([]Post, error)
		CountPosts(ctx context.Context, filter QueryFilter) (int, error)
		// QueryTopLiked returns the limit most liked posts, newest first among equals.
		QueryTopLiked(ctx context.Context, limit int) ([]Post, error)
		// QueryYears returns the distinct years posts were created in, most recent first.
		QueryYears(ctx context.Context) ([]int, error)
		// AddLike adds email to the likes of a post; adding it twice is a no-op.
		AddLike(ctx context.Context, postID, email string) error
		// RemoveLike removes email from the likes of a post; removing a missing like is a no-op.
		RemoveLike(ctx context.Context, postID, email string) error
		DeleteLikesBy(ctx context.Context, email string) error
		IncrementViews(ctx context.Context, postID string) (int, error)

		CreateComment(ctx context.Context, c Comment) (Comment, error)
		GetComment(ctx context.Context, id string) (Comment, error)
		// QueryComments returns the comments of a post, oldest first.
		QueryComments(ctx context.Context, postID string) ([]Comment, error)
		// QueryCommentsBy returns the comments written by email, newest first.
		QueryCommentsBy(ctx context.Context, email string) ([]Comment, error)
		DeleteComment(ctx context.Context, id string) error
		DeleteCommentsBy(ctx context.Context, email string) error
		CountComments(ctx context.Context) (int, error)
	}

	// UploadGate tells whether users may currently publish posts.
	UploadGate interface {
		PostUploadEnabled(ctx context.Context) (bool, error)
	}

	Service interface {
		Create(ctx context.Context, actor Actor, np NewPost) (Post, error)
		Get(ctx context.Context, id string) (Post, error)
		Update(ctx context.Context, actor Actor, id string, up UpdatePost) (Post, error)
		Delete(ctx context.Context, actor Actor, id string) error
		Count(ctx context.Context) (int, error)

		AdminPage(ctx context.Context, sessionKey string, page int, reset bool) (AdminPage, error)
		DropAdminSession(sessionKey string)
		Feed(ctx context.Context, filter QueryFilter, after string) (FeedPage, error)
		Years(ctx context.Context) ([]int, error)
		Search(ctx context.Context, q string) ([]Post, error)
		HallOfFame(ctx context.Context) ([]Post, error)

		ToggleLike(ctx context.Context, actor Actor, id string) (Post, error)
		View(ctx context.Context, id string) (int, error)

		Comments(ctx context.Context, postID string) ([]Comment, error)
		CommentsBy(ctx context.Context, email string) ([]Comment, error)
		AddComment(ctx context.Context, actor Actor, postID string, nc NewComment) (Comment, error)
		DeleteComment(ctx context.Context, actor Actor, id string) error
		CountComments(ctx context.Context) (int, error)

		DeleteUserContent(ctx context.Context, email string) error
	}

	// AdminPage is one page of the numbered admin listing.
	AdminPage struct {
		Page          int    `json:"page"`
		Total         int    `json:"total"`
		TotalPages    int    `json:"total_pages"`
		ResolvedPages int    `json:"resolved_pages"`
		Posts         []Post `json:"posts"`
	}

	// FeedPage is one "load more" batch of the public feed. Next is empty once the feed is exhausted.
	FeedPage struct {
		Posts []Post `json:"posts"`
		Next  string `json:"next"`
	}

	service struct {
		repo     Repository
		gate     UploadGate
		blobs    core.BlobStore
		logger   core.Logger
		listing  core.ListingConfig
		sessions *pagination.Sessions[Cursor, Post]
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	gate UploadGate,
	blobs core.BlobStore,
	conf *core.Config,
	logger core.Logger,
) Service {
	return &service{
		repo:     repo,
		gate:     gate,
		blobs:    blobs,
		logger:   logger,
		listing:  conf.Listing,
		sessions: pagination.NewSessions[Cursor, Post](adminListing{repo: repo}, conf.Listing.AdminPageSize),
	}
}

// adminListing is the unfiltered newest-first post listing the admin pages navigate.
type adminListing struct {
	repo Repository
}

func (l adminListing) QueryPage(ctx context.Context, after *Cursor, limit int) ([]Post, error) {
	return l.repo.QueryPosts(ctx, QueryFilter{}, after, limit)
}

func (l adminListing) Cursor(p Post) Cursor { return p.Cursor() }

func now() time.Time {
	// microseconds: the precision every supported database keeps
	return time.Now().UTC().Truncate(time.Microsecond)
}

func (svc *service) Create(ctx context.Context, actor Actor, np NewPost) (Post, error) {
	if !actor.IsStaff {
		enabled, err := svc.gate.PostUploadEnabled(ctx)
		if err != nil {
			return Post{}, errors.Wrap(err, "checking upload settings")
		}
		if !enabled {
			return Post{}, ErrUploadDisabled
		}
	}

	t := now()
	p := Post{
		ID:        uuid.NewString(),
		Author:    actor.Author(),
		Likes:     []string{},
		CreatedAt: t,
		UpdatedAt: t,
	}
	p.apply(np)

	p, err := svc.repo.CreatePost(ctx, p)
	if err != nil {
		return Post{}, err
	}
	svc.sessions.ResetAll()
	return p, nil
}

func (p *Post) apply(np NewPost) {
	p.Title = np.Title
	p.Content = np.Content
	p.ThumbnailURL = np.ThumbnailURL
	p.DetailImages = np.DetailImages
	p.YoutubeVideoID = YoutubeVideoID(np.YoutubeLink)
	p.TeamName = np.TeamName
	p.TeamMembers = np.TeamMembers
	p.PPTFileURL = np.PPTFileURL
	p.ReferenceFileURLs = np.ReferenceFileURLs
	p.WebsiteLinks = np.WebsiteLinks
	p.GithubLinks = np.GithubLinks
	p.TechStack = np.TechStack
}

func (svc *service) Get(ctx context.Context, id string) (Post, error) {
	return svc.repo.GetPost(ctx, id)
}

func (svc *service) Update(ctx context.Context, actor Actor, id string, up UpdatePost) (Post, error) {
	orig, err := svc.repo.GetPost(ctx, id)
	if err != nil {
		return Post{}, err
	}
	if !actor.canEdit(orig.Author) {
		return Post{}, core.ErrForbidden
	}

	p := orig
	p.apply(NewPost(up))
	p.UpdatedAt = now()
	if p, err = svc.repo.UpdatePost(ctx, p); err != nil {
		return Post{}, err
	}

	// files the post no longer references
	kept := make(map[string]struct{})
	for _, u := range p.Blobs() {
		kept[u] = struct{}{}
	}
	var dropped []string
	for _, u := range orig.Blobs() {
		if _, ok := kept[u]; !ok {
			dropped = append(dropped, u)
		}
	}
	svc.deleteBlobs(ctx, dropped)
	return p, nil
}

func (svc *service) Delete(ctx context.Context, actor Actor, id string) error {
	p, err := svc.repo.GetPost(ctx, id)
	if err != nil {
		return err
	}
	if !actor.canEdit(p.Author) {
		return core.ErrForbidden
	}
	return svc.delete(ctx, p)
}

func (svc *service) delete(ctx context.Context, p Post) error {
	if err := svc.repo.DeletePost(ctx, p.ID); err != nil {
		return err
	}
	svc.sessions.ResetAll()
	svc.deleteBlobs(ctx, p.Blobs())
	return nil
}

// deleteBlobs removes the stored files behind urls. Failures are only logged: the post is already gone.
func (svc *service) deleteBlobs(ctx context.Context, urls []string) {
	if svc.blobs == nil {
		return
	}
	for _, u := range urls {
		key, ok := svc.blobs.KeyFromURL(u)
		if !ok {
			continue
		}
		if err := svc.blobs.Delete(ctx, key); err != nil {
			svc.logger.Error("deleting blob", errors.Wrap(err, key))
		}
	}
}

func (svc *service) Count(ctx context.Context) (int, error) {
	return svc.repo.CountPosts(ctx, QueryFilter{})
}

// AdminPage returns page of the newest-first listing through the cursor cache of sessionKey.
// reset starts the session over before reading.
func (svc *service) AdminPage(ctx context.Context, sessionKey string, page int, reset bool) (AdminPage, error) {
	if page < 1 {
		return AdminPage{}, core.NewValidationError(ErrPageOutOfRange, core.FieldError{Field: "page", Error: pagination.ErrInvalidPage.Error()})
	}
	total, err := svc.repo.CountPosts(ctx, QueryFilter{})
	if err != nil {
		return AdminPage{}, errors.Wrap(err, "counting posts")
	}
	pageSize := svc.listing.AdminPageSize
	totalPages := pagination.TotalPages(total, pageSize)
	if page > totalPages {
		return AdminPage{}, core.NewValidationError(ErrPageOutOfRange, core.FieldError{Field: "page", Error: ErrPageOutOfRange.Error()})
	}

	cc := svc.sessions.Get(sessionKey)
	pg, err := cc.FetchPage(ctx, page, reset)
	if err != nil {
		return AdminPage{}, errors.Wrap(err, "fetching admin page")
	}
	posts := pg.Items
	if posts == nil {
		posts = []Post{}
	}
	return AdminPage{
		Page:          pg.Number,
		Total:         total,
		TotalPages:    totalPages,
		ResolvedPages: cc.ResolvedPages(),
		Posts:         posts,
	}, nil
}

func (svc *service) DropAdminSession(sessionKey string) {
	svc.sessions.Drop(sessionKey)
}

// Feed returns the batch of posts following the page token `after` ("" for the first batch).
func (svc *service) Feed(ctx context.Context, filter QueryFilter, after string) (FeedPage, error) {
	cursor, err := DecodePageToken(after)
	if err != nil {
		return FeedPage{}, err
	}
	limit := svc.listing.FeedPageSize
	posts, err := svc.repo.QueryPosts(ctx, filter, cursor, limit+1)
	if err != nil {
		return FeedPage{}, errors.Wrap(err, "querying feed")
	}

	var next string
	if len(posts) > limit {
		posts = posts[:limit]
		next = EncodePageToken(posts[limit-1].Cursor())
	}
	if posts == nil {
		posts = []Post{}
	}
	return FeedPage{Posts: posts, Next: next}, nil
}

func (svc *service) Years(ctx context.Context) ([]int, error) {
	return svc.repo.QueryYears(ctx)
}

// Search matches q against the latest posts only.
func (svc *service) Search(ctx context.Context, q string) ([]Post, error) {
	q = core.CleanString(q)
	if q == "" {
		return []Post{}, nil
	}
	latest, err := svc.repo.QueryPosts(ctx, QueryFilter{}, nil, svc.listing.SearchWindow)
	if err != nil {
		return nil, errors.Wrap(err, "querying latest posts")
	}
	found := make([]Post, 0, len(latest))
	for _, p := range latest {
		if p.Matches(q) {
			found = append(found, p)
		}
	}
	return found, nil
}

func (svc *service) HallOfFame(ctx context.Context) ([]Post, error) {
	return svc.repo.QueryTopLiked(ctx, svc.listing.HallOfFameSize)
}

// ToggleLike likes the post for actor, or takes the like back when they already liked it.
func (svc *service) ToggleLike(ctx context.Context, actor Actor, id string) (Post, error) {
	p, err := svc.repo.GetPost(ctx, id)
	if err != nil {
		return Post{}, err
	}
	if p.IsLikedBy(actor.Email) {
		err = svc.repo.RemoveLike(ctx, id, actor.Email)
	} else {
		err = svc.repo.AddLike(ctx, id, actor.Email)
	}
	if err != nil {
		return Post{}, errors.Wrap(err, "toggling like")
	}
	return svc.repo.GetPost(ctx, id)
}

func (svc *service) View(ctx context.Context, id string) (int, error) {
	return svc.repo.IncrementViews(ctx, id)
}

func (svc *service) Comments(ctx context.Context, postID string) ([]Comment, error) {
	if _, err := svc.repo.GetPost(ctx, postID); err != nil {
		return nil, err
	}
	return svc.repo.QueryComments(ctx, postID)
}

func (svc *service) CommentsBy(ctx context.Context, email string) ([]Comment, error) {
	return svc.repo.QueryCommentsBy(ctx, email)
}

func (svc *service) AddComment(ctx context.Context, actor Actor, postID string, nc NewComment) (Comment, error) {
	if _, err := svc.repo.GetPost(ctx, postID); err != nil {
		return Comment{}, err
	}
	return svc.repo.CreateComment(ctx, Comment{
		ID:        uuid.NewString(),
		PostID:    postID,
		Author:    actor.Author(),
		Content:   nc.Content,
		CreatedAt: now(),
	})
}

func (svc *service) DeleteComment(ctx context.Context, actor Actor, id string) error {
	c, err := svc.repo.GetComment(ctx, id)
	if err != nil {
		return err
	}
	if !actor.canEdit(c.Author) {
		return core.ErrForbidden
	}
	return svc.repo.DeleteComment(ctx, id)
}

func (svc *service) CountComments(ctx context.Context) (int, error) {
	return svc.repo.CountComments(ctx)
}

// DeleteUserContent deletes the posts (with their files), comments and likes of email.
func (svc *service) DeleteUserContent(ctx context.Context, email string) error {
	filter := QueryFilter{AuthorEmail: email}
	for {
		posts, err := svc.repo.QueryPosts(ctx, filter, nil, svc.listing.AdminPageSize)
		if err != nil {
			return errors.Wrap(err, "querying user posts")
		}
		if len(posts) == 0 {
			break
		}
		for _, p := range posts {
			if err := svc.delete(ctx, p); err != nil {
				return errors.Wrap(err, "deleting user post")
			}
		}
	}
	if err := svc.repo.DeleteCommentsBy(ctx, email); err != nil {
		return errors.Wrap(err, "deleting user comments")
	}
	return errors.Wrap(svc.repo.DeleteLikesBy(ctx, email), "deleting user likes")
}

// EncodePageToken turns a feed position into an opaque URL-safe token.
func EncodePageToken(c Cursor) string {
	data, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodePageToken reverses EncodePageToken; the empty token is the start of the feed.
func DecodePageToken(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, core.NewValidationError(ErrInvalidToken, core.FieldError{Field: "after", Error: ErrInvalidToken.Error()})
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil || c.ID == "" {
		return nil, core.NewValidationError(ErrInvalidToken, core.FieldError{Field: "after", Error: ErrInvalidToken.Error()})
	}
	return &c, nil
}
