package sqlxrepos

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/gallery/core"
	"github.com/trezcool/gallery/core/post"
)

const postSelect = `SELECT p.id, p.title, p.content, p.thumbnail_url, p.detail_images, p.youtube_video_id,
	p.team_name, p.team_members, p.author_name, p.author_email, p.views, p.ppt_file_url,
	p.reference_file_urls, p.website_links, p.github_links, p.tech_stack, p.created_at, p.updated_at,
	(SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id) AS like_count,
	(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS comment_count
FROM posts p`

type postRow struct {
	ID                string         `db:"id"`
	Title             string         `db:"title"`
	Content           string         `db:"content"`
	ThumbnailURL      null.String    `db:"thumbnail_url"`
	DetailImages      types.JSONText `db:"detail_images"`
	YoutubeVideoID    null.String    `db:"youtube_video_id"`
	TeamName          string         `db:"team_name"`
	TeamMembers       types.JSONText `db:"team_members"`
	AuthorName        string         `db:"author_name"`
	AuthorEmail       string         `db:"author_email"`
	Views             int            `db:"views"`
	PPTFileURL        null.String    `db:"ppt_file_url"`
	ReferenceFileURLs types.JSONText `db:"reference_file_urls"`
	WebsiteLinks      types.JSONText `db:"website_links"`
	GithubLinks       types.JSONText `db:"github_links"`
	TechStack         types.JSONText `db:"tech_stack"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
	LikeCount         int            `db:"like_count"`
	CommentCount      int            `db:"comment_count"`
}

func (row postRow) post() (post.Post, error) {
	p := post.Post{
		ID:             row.ID,
		Title:          row.Title,
		Content:        row.Content,
		ThumbnailURL:   row.ThumbnailURL.String,
		YoutubeVideoID: row.YoutubeVideoID.String,
		TeamName:       row.TeamName,
		Author:         post.Author{Name: row.AuthorName, Email: row.AuthorEmail},
		Likes:          make([]string, 0, row.LikeCount),
		Views:          row.Views,
		PPTFileURL:     row.PPTFileURL.String,
		CommentCount:   row.CommentCount,
		CreatedAt:      utc(row.CreatedAt),
		UpdatedAt:      utc(row.UpdatedAt),
	}
	lists := []struct {
		src types.JSONText
		dst interface{}
	}{
		{row.DetailImages, &p.DetailImages},
		{row.TeamMembers, &p.TeamMembers},
		{row.ReferenceFileURLs, &p.ReferenceFileURLs},
		{row.WebsiteLinks, &p.WebsiteLinks},
		{row.GithubLinks, &p.GithubLinks},
		{row.TechStack, &p.TechStack},
	}
	for _, l := range lists {
		if len(l.src) == 0 {
			continue
		}
		if err := l.src.Unmarshal(l.dst); err != nil {
			return post.Post{}, errors.Wrapf(err, "decoding post %s", row.ID)
		}
	}
	if p.DetailImages == nil {
		p.DetailImages = []string{}
	}
	if p.TeamMembers == nil {
		p.TeamMembers = []post.TeamMember{}
	}
	if p.ReferenceFileURLs == nil {
		p.ReferenceFileURLs = []string{}
	}
	if p.WebsiteLinks == nil {
		p.WebsiteLinks = []string{}
	}
	if p.GithubLinks == nil {
		p.GithubLinks = []string{}
	}
	if p.TechStack == nil {
		p.TechStack = []string{}
	}
	return p, nil
}

// jsonList encodes a list column. nil lists are stored as empty JSON arrays.
func jsonList(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(data) == "null" {
		return "[]", nil
	}
	return string(data), nil
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

type commentRow struct {
	ID          string    `db:"id"`
	PostID      string    `db:"post_id"`
	AuthorName  string    `db:"author_name"`
	AuthorEmail string    `db:"author_email"`
	Content     string    `db:"content"`
	CreatedAt   time.Time `db:"created_at"`
}

func (row commentRow) comment() post.Comment {
	return post.Comment{
		ID:        row.ID,
		PostID:    row.PostID,
		Author:    post.Author{Name: row.AuthorName, Email: row.AuthorEmail},
		Content:   row.Content,
		CreatedAt: utc(row.CreatedAt),
	}
}

const commentColumns = "id, post_id, author_name, author_email, content, created_at"

type postRepository struct {
	repository
}

var _ post.Repository = (*postRepository)(nil)

func NewPostRepository(db core.DB) post.Repository {
	return &postRepository{repository{db: db}}
}

// posts decodes rows and loads their likes.
func (repo *postRepository) posts(ctx context.Context, rows []postRow) ([]post.Post, error) {
	posts := make([]post.Post, 0, len(rows))
	idx := make(map[string]int, len(rows))
	var liked []string
	for _, row := range rows {
		p, err := row.post()
		if err != nil {
			return nil, err
		}
		idx[p.ID] = len(posts)
		posts = append(posts, p)
		if row.LikeCount > 0 {
			liked = append(liked, p.ID)
		}
	}
	if len(liked) == 0 {
		return posts, nil
	}

	var likes []struct {
		PostID string `db:"post_id"`
		Email  string `db:"email"`
	}
	q := "SELECT post_id, email FROM post_likes WHERE post_id IN (?) ORDER BY created_at, email"
	if err := selectContext(ctx, repo.db, &likes, q, liked); err != nil {
		return nil, errors.Wrap(err, "loading likes")
	}
	for _, l := range likes {
		i := idx[l.PostID]
		posts[i].Likes = append(posts[i].Likes, l.Email)
	}
	return posts, nil
}

func (repo *postRepository) CreatePost(ctx context.Context, p post.Post) (post.Post, error) {
	args, err := postArgs(p)
	if err != nil {
		return post.Post{}, err
	}
	_, err = execContext(ctx, repo.db, `INSERT INTO posts (title, content, thumbnail_url, detail_images,
	youtube_video_id, team_name, team_members, ppt_file_url, reference_file_urls, website_links, github_links,
	tech_stack, updated_at, id, author_name, author_email, views, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		append(args, p.ID, p.Author.Name, p.Author.Email, p.Views, p.CreatedAt.UTC())...,
	)
	if err != nil {
		return post.Post{}, err
	}
	return repo.GetPost(ctx, p.ID)
}

// postArgs returns the editable columns of p, in the order CreatePost and UpdatePost list them.
func postArgs(p post.Post) ([]interface{}, error) {
	args := []interface{}{p.Title, p.Content, nullString(p.ThumbnailURL)}
	detailImages, err := jsonList(p.DetailImages)
	if err != nil {
		return nil, err
	}
	teamMembers, err := jsonList(p.TeamMembers)
	if err != nil {
		return nil, err
	}
	args = append(args, detailImages, nullString(p.YoutubeVideoID), p.TeamName, teamMembers, nullString(p.PPTFileURL))
	for _, l := range [][]string{p.ReferenceFileURLs, p.WebsiteLinks, p.GithubLinks, p.TechStack} {
		encoded, err := jsonList(l)
		if err != nil {
			return nil, err
		}
		args = append(args, encoded)
	}
	return append(args, p.UpdatedAt.UTC()), nil
}

func (repo *postRepository) GetPost(ctx context.Context, id string) (post.Post, error) {
	var rows []postRow
	if err := selectContext(ctx, repo.db, &rows, postSelect+" WHERE p.id = ?", id); err != nil {
		return post.Post{}, err
	}
	if len(rows) == 0 {
		return post.Post{}, post.ErrNotFound
	}
	posts, err := repo.posts(ctx, rows)
	if err != nil {
		return post.Post{}, err
	}
	return posts[0], nil
}

func (repo *postRepository) UpdatePost(ctx context.Context, p post.Post) (post.Post, error) {
	args, err := postArgs(p)
	if err != nil {
		return post.Post{}, err
	}
	n, err := execContext(ctx, repo.db, `UPDATE posts SET title = ?, content = ?, thumbnail_url = ?, detail_images = ?,
	youtube_video_id = ?, team_name = ?, team_members = ?, ppt_file_url = ?, reference_file_urls = ?,
	website_links = ?, github_links = ?, tech_stack = ?, updated_at = ?
WHERE id = ?`, append(args, p.ID)...)
	if err != nil {
		return post.Post{}, err
	}
	if n == 0 {
		return post.Post{}, post.ErrNotFound
	}
	return repo.GetPost(ctx, p.ID)
}

func (repo *postRepository) DeletePost(ctx context.Context, id string) error {
	return core.RunInTx(ctx, repo.db, func(tx core.DBExecutor) error {
		if _, err := execContext(ctx, tx, "DELETE FROM post_likes WHERE post_id = ?", id); err != nil {
			return errors.Wrap(err, "deleting likes")
		}
		if _, err := execContext(ctx, tx, "DELETE FROM comments WHERE post_id = ?", id); err != nil {
			return errors.Wrap(err, "deleting comments")
		}
		n, err := execContext(ctx, tx, "DELETE FROM posts WHERE id = ?", id)
		if err != nil {
			return errors.Wrap(err, "deleting post")
		}
		if n == 0 {
			return post.ErrNotFound
		}
		return nil
	})
}

func postFilter(filter post.QueryFilter) *where {
	w := new(where)
	if filter.Year > 0 {
		from := time.Date(filter.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		w.add("p.created_at >= ? AND p.created_at < ?", from, from.AddDate(1, 0, 0))
	}
	if filter.AuthorEmail != "" {
		w.add("p.author_email = ?", filter.AuthorEmail)
	}
	if filter.LikedBy != "" {
		w.add("EXISTS (SELECT 1 FROM post_likes lb WHERE lb.post_id = p.id AND lb.email = ?)", filter.LikedBy)
	}
	return w
}

func (repo *postRepository) QueryPosts(ctx context.Context, filter post.QueryFilter, after *post.Cursor, limit int) ([]post.Post, error) {
	w := postFilter(filter)
	if after != nil {
		t := after.CreatedAt.UTC()
		w.add("(p.created_at < ? OR (p.created_at = ? AND p.id < ?))", t, t, after.ID)
	}
	q := postSelect + w.String() + " ORDER BY p.created_at DESC, p.id DESC LIMIT ?"

	var rows []postRow
	if err := selectContext(ctx, repo.db, &rows, q, append(w.args, limit)...); err != nil {
		return nil, err
	}
	return repo.posts(ctx, rows)
}

func (repo *postRepository) CountPosts(ctx context.Context, filter post.QueryFilter) (int, error) {
	w := postFilter(filter)
	var count int
	err := getContext(ctx, repo.db, &count, "SELECT COUNT(*) FROM posts p"+w.String(), w.args...)
	return count, err
}

func (repo *postRepository) QueryTopLiked(ctx context.Context, limit int) ([]post.Post, error) {
	var rows []postRow
	q := postSelect + " ORDER BY like_count DESC, p.created_at DESC, p.id DESC LIMIT ?"
	if err := selectContext(ctx, repo.db, &rows, q, limit); err != nil {
		return nil, err
	}
	return repo.posts(ctx, rows)
}

// QueryYears groups in Go: extracting a year from a timestamp is not portable between postgres and sqlite.
func (repo *postRepository) QueryYears(ctx context.Context) ([]int, error) {
	var times []time.Time
	if err := selectContext(ctx, repo.db, &times, "SELECT created_at FROM posts"); err != nil {
		return nil, err
	}
	seen := make(map[int]struct{})
	years := make([]int, 0)
	for _, t := range times {
		y := t.UTC().Year()
		if _, ok := seen[y]; !ok {
			seen[y] = struct{}{}
			years = append(years, y)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years, nil
}

func (repo *postRepository) AddLike(ctx context.Context, postID, email string) error {
	_, err := execContext(ctx, repo.db,
		"INSERT INTO post_likes (post_id, email, created_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING",
		postID, email, time.Now().UTC(),
	)
	return err
}

func (repo *postRepository) RemoveLike(ctx context.Context, postID, email string) error {
	_, err := execContext(ctx, repo.db, "DELETE FROM post_likes WHERE post_id = ? AND email = ?", postID, email)
	return err
}

func (repo *postRepository) DeleteLikesBy(ctx context.Context, email string) error {
	_, err := execContext(ctx, repo.db, "DELETE FROM post_likes WHERE email = ?", email)
	return err
}

func (repo *postRepository) IncrementViews(ctx context.Context, postID string) (int, error) {
	n, err := execContext(ctx, repo.db, "UPDATE posts SET views = views + 1 WHERE id = ?", postID)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, post.ErrNotFound
	}
	var views int
	err = getContext(ctx, repo.db, &views, "SELECT views FROM posts WHERE id = ?", postID)
	return views, notFound(err, post.ErrNotFound)
}

func (repo *postRepository) CreateComment(ctx context.Context, c post.Comment) (post.Comment, error) {
	_, err := execContext(ctx, repo.db,
		"INSERT INTO comments ("+commentColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		c.ID, c.PostID, c.Author.Name, c.Author.Email, c.Content, c.CreatedAt.UTC(),
	)
	if err != nil {
		return post.Comment{}, err
	}
	return repo.GetComment(ctx, c.ID)
}

func (repo *postRepository) GetComment(ctx context.Context, id string) (post.Comment, error) {
	var row commentRow
	if err := getContext(ctx, repo.db, &row, "SELECT "+commentColumns+" FROM comments WHERE id = ?", id); err != nil {
		return post.Comment{}, notFound(err, post.ErrCommentNotFound)
	}
	return row.comment(), nil
}

func (repo *postRepository) queryComments(ctx context.Context, q string, args ...interface{}) ([]post.Comment, error) {
	var rows []commentRow
	if err := selectContext(ctx, repo.db, &rows, q, args...); err != nil {
		return nil, err
	}
	comments := make([]post.Comment, 0, len(rows))
	for _, row := range rows {
		comments = append(comments, row.comment())
	}
	return comments, nil
}

func (repo *postRepository) QueryComments(ctx context.Context, postID string) ([]post.Comment, error) {
	return repo.queryComments(ctx,
		"SELECT "+commentColumns+" FROM comments WHERE post_id = ? ORDER BY created_at, id", postID)
}

func (repo *postRepository) QueryCommentsBy(ctx context.Context, email string) ([]post.Comment, error) {
	return repo.queryComments(ctx,
		"SELECT "+commentColumns+" FROM comments WHERE author_email = ? ORDER BY created_at DESC, id DESC", email)
}

func (repo *postRepository) DeleteComment(ctx context.Context, id string) error {
	n, err := execContext(ctx, repo.db, "DELETE FROM comments WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n == 0 {
		return post.ErrCommentNotFound
	}
	return nil
}

func (repo *postRepository) DeleteCommentsBy(ctx context.Context, email string) error {
	_, err := execContext(ctx, repo.db, "DELETE FROM comments WHERE author_email = ?", email)
	return err
}

func (repo *postRepository) CountComments(ctx context.Context) (int, error) {
	var count int
	err := getContext(ctx, repo.db, &count, "SELECT COUNT(*) FROM comments")
	return count, err
}
