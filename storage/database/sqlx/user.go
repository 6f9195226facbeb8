package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/gallery/core"
	"github.com/trezcool/gallery/core/user"
)

const userColumns = "id, name, email, role, is_active, password_hash, created_at, updated_at, last_login"

type userRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	Role         string    `db:"role"`
	IsActive     bool      `db:"is_active"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	LastLogin    null.Time `db:"last_login"`
}

func newUserRow(usr user.User) userRow {
	row := userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Email:        usr.Email,
		Role:         usr.Role,
		IsActive:     usr.IsActive,
		PasswordHash: string(usr.PasswordHash),
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
	}
	if !usr.LastLogin.IsZero() {
		row.LastLogin = null.TimeFrom(usr.LastLogin.UTC())
	}
	return row
}

func (row userRow) user() user.User {
	usr := user.User{
		ID:           row.ID,
		Name:         row.Name,
		Email:        row.Email,
		Role:         row.Role,
		IsActive:     row.IsActive,
		PasswordHash: []byte(row.PasswordHash),
		CreatedAt:    utc(row.CreatedAt),
		UpdatedAt:    utc(row.UpdatedAt),
	}
	if row.LastLogin.Valid {
		usr.LastLogin = utc(row.LastLogin.Time)
	}
	return usr
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db core.DB) user.Repository {
	return &userRepository{repository{db: db}}
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	var w where
	w.add("email = ?", email)
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, usr := range excludedUsers {
			ids = append(ids, usr.ID)
		}
		w.add("id NOT IN (?)", ids)
	}

	var count int
	if err := getContext(ctx, repo.db, &count, "SELECT COUNT(*) FROM users"+w.String(), w.args...); err != nil {
		return err
	}
	if count > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := newUserRow(usr)
	_, err := execContext(ctx, repo.db,
		"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		row.ID, row.Name, row.Email, row.Role, row.IsActive, row.PasswordHash, row.CreatedAt, row.UpdatedAt, row.LastLogin,
	)
	if err != nil {
		return user.User{}, err
	}
	return row.user(), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter) ([]user.User, error) {
	var w where
	if filter != nil {
		if filter.Search != "" {
			s := "%" + strings.ToLower(filter.Search) + "%"
			w.add("(LOWER(name) LIKE ? OR LOWER(email) LIKE ?)", s, s)
		}
		if len(filter.Roles) > 0 {
			w.add("role IN (?)", filter.Roles)
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
	}

	var rows []userRow
	q := "SELECT " + userColumns + " FROM users" + w.String() + " ORDER BY created_at DESC, id DESC"
	if err := selectContext(ctx, repo.db, &rows, q, w.args...); err != nil {
		return nil, err
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.user())
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var w where
	if filter.ID != "" {
		w.add("id = ?", filter.ID)
	}
	if filter.Email != "" {
		w.add("email = ?", filter.Email)
	}
	if len(w.conds) == 0 {
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := getContext(ctx, repo.db, &row, "SELECT "+userColumns+" FROM users"+w.String(), w.args...); err != nil {
		return user.User{}, notFound(err, user.ErrNotFound)
	}
	return row.user(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := newUserRow(usr)
	n, err := execContext(ctx, repo.db,
		"UPDATE users SET name = ?, role = ?, is_active = ?, password_hash = ?, updated_at = ?, last_login = ? WHERE id = ?",
		row.Name, row.Role, row.IsActive, row.PasswordHash, row.UpdatedAt, row.LastLogin, row.ID,
	)
	if err != nil {
		return user.User{}, err
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
}

func (repo *userRepository) DeleteUser(ctx context.Context, id string) error {
	n, err := execContext(ctx, repo.db, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo *userRepository) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := getContext(ctx, repo.db, &count, "SELECT COUNT(*) FROM users")
	return count, err
}
