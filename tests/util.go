package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/gallery/core"
	"github.com/trezcool/gallery/core/post"
	"github.com/trezcool/gallery/core/user"
	"github.com/trezcool/gallery/services/logger"
	"github.com/trezcool/gallery/storage/database"
)

// PrepareDB opens a fresh, migrated, in-memory sqlite database closed at the end of the test.
func PrepareDB(t *testing.T) *sqlx.DB {
	db, err := database.Open(core.NewTestConfig())
	if err != nil {
		t.Fatalf("PrepareDB(): %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db, "up"); err != nil {
		t.Fatalf("PrepareDB(): %v", err)
	}
	return db
}

// NewLogger returns a Logger that reports nothing.
func NewLogger() core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), core.NewTestConfig())
	logger.Enable(false)
	return logger
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if role == "" {
		role = user.RoleUser
	}
	usr := user.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp.Truncate(time.Microsecond),
		UpdatedAt: tstamp.Truncate(time.Microsecond),
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreatePost stores a minimal post of author, published at createdAt.
func CreatePost(t *testing.T, repo post.Repository, author post.Author, title string, createdAt time.Time) post.Post {
	tstamp := createdAt.UTC().Truncate(time.Microsecond)
	p, err := repo.CreatePost(context.Background(), post.Post{
		ID:                uuid.NewString(),
		Title:             title,
		Content:           title + " content",
		ThumbnailURL:      "https://cdn.test/" + title + ".png",
		DetailImages:      []string{},
		TeamName:          "Team " + title,
		TeamMembers:       []post.TeamMember{},
		Author:            author,
		Likes:             []string{},
		ReferenceFileURLs: []string{},
		WebsiteLinks:      []string{},
		GithubLinks:       []string{},
		TechStack:         []string{"go"},
		CreatedAt:         tstamp,
		UpdatedAt:         tstamp,
	})
	if err != nil {
		t.Fatalf("CreatePost() failed: %v", err)
	}
	return p
}
