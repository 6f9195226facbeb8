package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/gallery/core/user"
	"github.com/trezcool/gallery/storage/database/sqlx"
	"github.com/trezcool/gallery/tests"
)

func userIDs(users []user.User) []string {
	res := make([]string, 0, len(users))
	for _, usr := range users {
		res = append(res, usr.ID)
	}
	return res
}

func TestUserRepository_CreateUser(t *testing.T) {
	repo := sqlxrepos.NewUserRepository(testutil.PrepareDB(t))
	ctx := context.Background()

	usr := testutil.CreateUser(t, repo, "Alice", "alice@test.cd", "pwd", user.RoleAdmin, true)
	got, err := repo.GetUser(ctx, user.GetFilter{Email: "alice@test.cd"})
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)
	assert.Equal(t, user.RoleAdmin, got.Role)
	assert.True(t, got.IsActive)
	assert.True(t, got.LastLogin.IsZero())
	assert.NoError(t, got.CheckPassword("pwd"))

	_, err = repo.GetUser(ctx, user.GetFilter{ID: "nope"})
	assert.Equal(t, user.ErrNotFound, err)
	_, err = repo.GetUser(ctx, user.GetFilter{})
	assert.Equal(t, user.ErrNotFound, err)

	assert.Equal(t, user.ErrEmailExists, repo.CheckEmailUniqueness(ctx, "alice@test.cd"))
	assert.NoError(t, repo.CheckEmailUniqueness(ctx, "alice@test.cd", usr))
	assert.NoError(t, repo.CheckEmailUniqueness(ctx, "bob@test.cd"))
}

func TestUserRepository_QueryUsers(t *testing.T) {
	repo := sqlxrepos.NewUserRepository(testutil.PrepareDB(t))
	ctx := context.Background()
	bPtr := func(b bool) *bool { return &b }

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	usr1 := testutil.CreateUser(t, repo, "User", "awe@test.cd", "", user.RoleUser, true, t0)
	usr2 := testutil.CreateUser(t, repo, "King", "king@test.cd", "", user.RoleUser, true, t0.Add(time.Hour))
	admin := testutil.CreateUser(t, repo, "Admin", "admin@test.cd", "", user.RoleAdmin, true, t0.Add(2*time.Hour))
	sub := testutil.CreateUser(t, repo, "Sub", "sub@test.cd", "", user.RoleSubAdmin, true, t0.Add(3*time.Hour))
	naughty := testutil.CreateUser(t, repo, "N Dog", "ndog@test.cd", "", user.RoleUser, false, t0.Add(4*time.Hour))

	tests := []struct {
		name   string
		filter *user.QueryFilter
		want   []user.User
	}{
		{"nil filter", nil, []user.User{naughty, sub, admin, usr2, usr1}},
		{"search (unknown)", &user.QueryFilter{Search: "lol"}, []user.User{}},
		{"search name", &user.QueryFilter{Search: "USE"}, []user.User{usr1}},
		{"search email", &user.QueryFilter{Search: "king@"}, []user.User{usr2}},
		{"roles", &user.QueryFilter{Roles: []string{user.RoleAdmin, user.RoleSubAdmin}}, []user.User{sub, admin}},
		{"active", &user.QueryFilter{IsActive: bPtr(true)}, []user.User{sub, admin, usr2, usr1}},
		{"inactive", &user.QueryFilter{IsActive: bPtr(false)}, []user.User{naughty}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.QueryUsers(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, userIDs(tt.want), userIDs(got))
		})
	}

	n, err := repo.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestUserRepository_UpdateUser(t *testing.T) {
	repo := sqlxrepos.NewUserRepository(testutil.PrepareDB(t))
	ctx := context.Background()

	usr := testutil.CreateUser(t, repo, "Alice", "alice@test.cd", "", user.RoleUser, true)
	login := time.Now().UTC().Truncate(time.Microsecond)
	usr.Name = "Alice B."
	usr.Role = user.RoleSubAdmin
	usr.LastLogin = login
	usr.Email = "ignored@test.cd"

	got, err := repo.UpdateUser(ctx, usr)
	require.NoError(t, err)
	assert.Equal(t, "Alice B.", got.Name)
	assert.Equal(t, user.RoleSubAdmin, got.Role)
	assert.Equal(t, "alice@test.cd", got.Email)
	assert.True(t, login.Equal(got.LastLogin))

	require.NoError(t, repo.DeleteUser(ctx, usr.ID))
	assert.Equal(t, user.ErrNotFound, repo.DeleteUser(ctx, usr.ID))
	_, err = repo.UpdateUser(ctx, usr)
	assert.Equal(t, user.ErrNotFound, err)
}
