package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/gallery/core/post"
)

type postRepository struct {
	db *postTable
}

var _ post.Repository = (*postRepository)(nil)

func NewPostRepository(db *DB) post.Repository {
	return &postRepository{db: db.post}
}

// clone deep copies p so that callers never share slices with the table.
func clone(p post.Post) post.Post {
	cp := func(ss []string) []string {
		if ss == nil {
			return []string{}
		}
		return append([]string{}, ss...)
	}
	p.DetailImages = cp(p.DetailImages)
	p.Likes = cp(p.Likes)
	p.ReferenceFileURLs = cp(p.ReferenceFileURLs)
	p.WebsiteLinks = cp(p.WebsiteLinks)
	p.GithubLinks = cp(p.GithubLinks)
	p.TechStack = cp(p.TechStack)
	p.TeamMembers = append([]post.TeamMember{}, p.TeamMembers...)
	return p
}

// get returns a copy of a stored post with its comment count. Callers hold the lock.
func (repo *postRepository) get(id string) (post.Post, bool) {
	p, ok := repo.db.posts[id]
	if !ok {
		return post.Post{}, false
	}
	res := clone(*p)
	res.CommentCount = 0
	for _, c := range repo.db.comments {
		if c.PostID == id {
			res.CommentCount++
		}
	}
	return res, true
}

// sorted returns the posts matching filter, newest first. Callers hold the lock.
func (repo *postRepository) sorted(filter post.QueryFilter) []post.Post {
	posts := make([]post.Post, 0, len(repo.db.posts))
	for id := range repo.db.posts {
		p, _ := repo.get(id)
		if filter.Year > 0 && p.Year() != filter.Year {
			continue
		}
		if filter.AuthorEmail != "" && p.Author.Email != filter.AuthorEmail {
			continue
		}
		if filter.LikedBy != "" && !p.IsLikedBy(filter.LikedBy) {
			continue
		}
		posts = append(posts, p)
	}
	sort.Slice(posts, func(i, j int) bool { return before(posts[i].Cursor(), posts[j].Cursor()) })
	return posts
}

// before reports whether a comes first in the newest-first order.
func before(a, b post.Cursor) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func (repo *postRepository) CreatePost(_ context.Context, p post.Post) (post.Post, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	p = clone(p)
	repo.db.posts[p.ID] = &p
	res, _ := repo.get(p.ID)
	return res, nil
}

func (repo *postRepository) GetPost(_ context.Context, id string) (post.Post, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.get(id); ok {
		return p, nil
	}
	return post.Post{}, post.ErrNotFound
}

func (repo *postRepository) UpdatePost(_ context.Context, p post.Post) (post.Post, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.posts[p.ID]
	if !ok {
		return post.Post{}, post.ErrNotFound
	}
	p = clone(p)
	p.Author = orig.Author
	p.Likes = orig.Likes
	p.Views = orig.Views
	p.CreatedAt = orig.CreatedAt
	repo.db.posts[p.ID] = &p
	res, _ := repo.get(p.ID)
	return res, nil
}

func (repo *postRepository) DeletePost(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.posts[id]; !ok {
		return post.ErrNotFound
	}
	delete(repo.db.posts, id)
	for cid, c := range repo.db.comments {
		if c.PostID == id {
			delete(repo.db.comments, cid)
		}
	}
	return nil
}

func (repo *postRepository) QueryPosts(_ context.Context, filter post.QueryFilter, after *post.Cursor, limit int) ([]post.Post, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	res := make([]post.Post, 0, limit)
	for _, p := range repo.sorted(filter) {
		if len(res) == limit {
			break
		}
		if after != nil && !before(*after, p.Cursor()) {
			continue
		}
		res = append(res, p)
	}
	return res, nil
}

func (repo *postRepository) CountPosts(_ context.Context, filter post.QueryFilter) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return len(repo.sorted(filter)), nil
}

func (repo *postRepository) QueryTopLiked(_ context.Context, limit int) ([]post.Post, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	posts := repo.sorted(post.QueryFilter{})
	sort.SliceStable(posts, func(i, j int) bool { return len(posts[i].Likes) > len(posts[j].Likes) })
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func (repo *postRepository) QueryYears(_ context.Context) ([]int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	seen := make(map[int]struct{})
	years := make([]int, 0)
	for _, p := range repo.db.posts {
		if _, ok := seen[p.Year()]; !ok {
			seen[p.Year()] = struct{}{}
			years = append(years, p.Year())
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years, nil
}

func (repo *postRepository) AddLike(_ context.Context, postID, email string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	p, ok := repo.db.posts[postID]
	if !ok {
		return post.ErrNotFound
	}
	if !p.IsLikedBy(email) {
		p.Likes = append(p.Likes, email)
	}
	return nil
}

func (repo *postRepository) RemoveLike(_ context.Context, postID, email string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	p, ok := repo.db.posts[postID]
	if !ok {
		return post.ErrNotFound
	}
	p.Likes = without(p.Likes, email)
	return nil
}

func (repo *postRepository) DeleteLikesBy(_ context.Context, email string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, p := range repo.db.posts {
		p.Likes = without(p.Likes, email)
	}
	return nil
}

func without(ss []string, s string) []string {
	res := make([]string, 0, len(ss))
	for _, v := range ss {
		if v != s {
			res = append(res, v)
		}
	}
	return res
}

func (repo *postRepository) IncrementViews(_ context.Context, postID string) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	p, ok := repo.db.posts[postID]
	if !ok {
		return 0, post.ErrNotFound
	}
	p.Views++
	return p.Views, nil
}

func (repo *postRepository) CreateComment(_ context.Context, c post.Comment) (post.Comment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.posts[c.PostID]; !ok {
		return post.Comment{}, post.ErrNotFound
	}
	repo.db.comments[c.ID] = &c
	return c, nil
}

func (repo *postRepository) GetComment(_ context.Context, id string) (post.Comment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.comments[id]; ok {
		return *c, nil
	}
	return post.Comment{}, post.ErrCommentNotFound
}

func (repo *postRepository) queryComments(keep func(post.Comment) bool, newestFirst bool) []post.Comment {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	res := make([]post.Comment, 0)
	for _, c := range repo.db.comments {
		if keep(*c) {
			res = append(res, *c)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		a, b := res[i], res[j]
		if newestFirst {
			a, b = b, a
		}
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return res
}

func (repo *postRepository) QueryComments(_ context.Context, postID string) ([]post.Comment, error) {
	return repo.queryComments(func(c post.Comment) bool { return c.PostID == postID }, false), nil
}

func (repo *postRepository) QueryCommentsBy(_ context.Context, email string) ([]post.Comment, error) {
	return repo.queryComments(func(c post.Comment) bool { return c.Author.Email == email }, true), nil
}

func (repo *postRepository) DeleteComment(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.comments[id]; !ok {
		return post.ErrCommentNotFound
	}
	delete(repo.db.comments, id)
	return nil
}

func (repo *postRepository) DeleteCommentsBy(_ context.Context, email string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for id, c := range repo.db.comments {
		if c.Author.Email == email {
			delete(repo.db.comments, id)
		}
	}
	return nil
}

func (repo *postRepository) CountComments(_ context.Context) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return len(repo.db.comments), nil
}
