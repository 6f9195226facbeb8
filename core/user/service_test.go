package user_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/gallery/core"
	"github.com/trezcool/gallery/core/user"
	"github.com/trezcool/gallery/fs"
	"github.com/trezcool/gallery/services/email"
	"github.com/trezcool/gallery/storage/database/inmem"
	"github.com/trezcool/gallery/tests"
)

// contentRemover records the users whose content got removed.
type contentRemover struct {
	mu     sync.Mutex
	emails []string
}

func (r *contentRemover) DeleteUserContent(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emails = append(r.emails, email)
	return nil
}

type fixture struct {
	svc     user.Service
	repo    user.Repository
	remover *contentRemover
}

func setup(t *testing.T) fixture {
	conf := core.NewTestConfig()
	logger := testutil.NewLogger()
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, logger)
	emailsvc.ResetSentMessages()

	repo := inmemdb.NewUserRepository(inmemdb.Open())
	remover := new(contentRemover)
	return fixture{
		svc:     user.NewServiceMock(repo, emailsvc.NewConsoleServiceMock(conf, logger), remover, conf, logger),
		repo:    repo,
		remover: remover,
	}
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	usr, err := f.svc.Create(ctx, user.NewUser{Name: "Alice", Email: "alice@test.cd", Password: "Gallery#2024x"})
	require.NoError(t, err)
	assert.Equal(t, user.RoleUser, usr.Role)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword("Gallery#2024x"))

	got, err := f.svc.GetByEmail(ctx, "  ALICE@test.cd ")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)

	err = f.svc.CheckUniqueness(ctx, "alice@test.cd")
	var ve *core.ValidationError
	require.True(t, errors.As(err, &ve), "err = %v", err)
	assert.Equal(t, "email", ve.Fields[0].Field)
	assert.NoError(t, f.svc.CheckUniqueness(ctx, "alice@test.cd", usr))

	admin, err := f.svc.Create(ctx, user.NewUser{Name: "Root", Email: "root@gallery.test", Password: "x", Role: user.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, admin.Role)
	assert.True(t, f.svc.IsRootAdmin(admin))
	assert.False(t, f.svc.IsRootAdmin(usr))

	n, err := f.svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNewService(t *testing.T) {
	conf := core.NewTestConfig()
	logger := testutil.NewLogger()
	repo := inmemdb.NewUserRepository(inmemdb.Open())
	svc := user.NewService(repo, emailsvc.NewConsoleServiceMock(conf, logger), new(contentRemover), conf, logger)
	ctx := context.Background()

	usr, err := svc.Create(ctx, user.NewUser{Name: "Bob", Email: "bob@test.cd", Password: "Gallery#2024x"})
	require.NoError(t, err)
	got, err := svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob@test.cd", got.Email)
}

func TestService_Query(t *testing.T) {
	f := setup(t)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	usr1 := testutil.CreateUser(t, f.repo, "User 1", "u1@test.cd", "", user.RoleUser, true, t0)
	sub := testutil.CreateUser(t, f.repo, "Sub", "sub@test.cd", "", user.RoleSubAdmin, true, t0.Add(time.Hour))
	usr2 := testutil.CreateUser(t, f.repo, "User 2", "u2@test.cd", "", user.RoleUser, true, t0.Add(2*time.Hour))
	admin := testutil.CreateUser(t, f.repo, "Admin", "admin@test.cd", "", user.RoleAdmin, true, t0.Add(-time.Hour))

	users, err := f.svc.Query(context.Background(), nil)
	require.NoError(t, err)
	got := make([]string, 0, len(users))
	for _, usr := range users {
		got = append(got, usr.ID)
	}
	assert.Equal(t, []string{admin.ID, sub.ID, usr2.ID, usr1.ID}, got)
}

func TestService_SetRole(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	root := testutil.CreateUser(t, f.repo, "Root", "root@gallery.test", "", user.RoleAdmin, true)
	admin := testutil.CreateUser(t, f.repo, "Admin", "admin@test.cd", "", user.RoleAdmin, true)
	sub := testutil.CreateUser(t, f.repo, "Sub", "sub@test.cd", "", user.RoleSubAdmin, true)
	usr := testutil.CreateUser(t, f.repo, "User", "user@test.cd", "", user.RoleUser, true)

	tests := []struct {
		name    string
		actor   user.User
		id      string
		role    string
		wantErr error
	}{
		{"sub admins cannot", sub, usr.ID, user.RoleSubAdmin, core.ErrForbidden},
		{"root admin is protected", admin, root.ID, user.RoleUser, user.ErrRootAdmin},
		{"unknown user", admin, "nope", user.RoleUser, user.ErrNotFound},
		{"promote", admin, usr.ID, user.RoleSubAdmin, nil},
		{"demote", root, sub.ID, user.RoleUser, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.SetRole(ctx, tt.actor, tt.id, tt.role)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.role, got.Role)
		})
	}
}

func TestService_Delete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	root := testutil.CreateUser(t, f.repo, "Root", "root@gallery.test", "", user.RoleAdmin, true)
	admin := testutil.CreateUser(t, f.repo, "Admin", "admin@test.cd", "", user.RoleAdmin, true)
	sub := testutil.CreateUser(t, f.repo, "Sub", "sub@test.cd", "", user.RoleSubAdmin, true)
	usr := testutil.CreateUser(t, f.repo, "User", "user@test.cd", "", user.RoleUser, true)

	assert.Equal(t, core.ErrForbidden, f.svc.Delete(ctx, sub, usr.ID))
	assert.Equal(t, user.ErrSelfDelete, f.svc.Delete(ctx, admin, admin.ID))
	assert.Equal(t, user.ErrRootAdmin, f.svc.Delete(ctx, admin, root.ID))
	assert.Equal(t, user.ErrNotFound, f.svc.Delete(ctx, admin, "nope"))
	assert.Empty(t, f.remover.emails)

	require.NoError(t, f.svc.Delete(ctx, admin, usr.ID))
	assert.Equal(t, []string{usr.Email}, f.remover.emails)
	_, err := f.svc.GetByID(ctx, usr.ID)
	assert.Equal(t, user.ErrNotFound, err)
}

func TestService_PasswordReset(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	usr := testutil.CreateUser(t, f.repo, "Alice", "alice@test.cd", "Gallery#2024x", user.RoleUser, true)
	testutil.CreateUser(t, f.repo, "Naughty", "ndog@test.cd", "Gallery#2024x", user.RoleUser, false)

	assert.Equal(t, user.ErrNotFound, f.svc.RequestPasswordReset(ctx, "nope@test.cd"))
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ndog@test.cd"))
	assert.Empty(t, emailsvc.SentMessages())

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "alice@test.cd"))
	sent := emailsvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "alice@test.cd", sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, "uid="+user.EncodeUID(usr))
	assert.Contains(t, sent[0].HTMLContent, "Alice")

	token, err := f.svc.(interface {
		MakeResetToken(usr user.User) (string, error)
	}).MakeResetToken(usr)
	require.NoError(t, err)
	assert.True(t, strings.Contains(sent[0].TextContent, "token="+token))

	rp := user.ResetUserPassword{Token: "bad", UID: user.EncodeUID(usr), Password: "New#Pass2024", PasswordConfirm: "New#Pass2024"}
	var ve *core.ValidationError
	require.True(t, errors.As(f.svc.ResetPassword(ctx, rp), &ve))
	assert.Equal(t, user.ErrInvalidResetToken, ve.Err)

	rp.Token = token
	require.NoError(t, f.svc.ResetPassword(ctx, rp))
	got, err := f.svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.NoError(t, got.CheckPassword("New#Pass2024"))

	// the token dies with the old password
	require.True(t, errors.As(f.svc.ResetPassword(ctx, rp), &ve))
}
