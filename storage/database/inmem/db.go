// Package inmemdb implements the repositories in memory, for tests and demos.
package inmemdb

import (
	"sync"

	"github.com/trezcool/gallery/core/post"
	"github.com/trezcool/gallery/core/site"
	"github.com/trezcool/gallery/core/user"
)

type (
	DB struct {
		user *userTable
		post *postTable
		site *siteTable
	}

	userTable struct {
		table map[string]*user.User
		mutex sync.RWMutex
	}

	postTable struct {
		posts    map[string]*post.Post
		comments map[string]*post.Comment
		mutex    sync.RWMutex
	}

	siteTable struct {
		banners   map[string]*site.Banner
		yearMetas map[string]*site.YearMeta
		albums    map[string]*site.PhotoAlbum
		settings  *site.Settings
		mutex     sync.RWMutex
	}
)

func Open() *DB {
	return &DB{
		user: &userTable{table: make(map[string]*user.User)},
		post: &postTable{
			posts:    make(map[string]*post.Post),
			comments: make(map[string]*post.Comment),
		},
		site: &siteTable{
			banners:   make(map[string]*site.Banner),
			yearMetas: make(map[string]*site.YearMeta),
			albums:    make(map[string]*site.PhotoAlbum),
		},
	}
}
