package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/gallery/core"
)

// Roles
const (
	RoleAdmin    = "admin"
	RoleSubAdmin = "subAdmin"
	RoleUser     = "user"
)

var (
	AllRoles        = []string{RoleAdmin, RoleSubAdmin, RoleUser}
	AssignableRoles = []string{RoleSubAdmin, RoleUser}

	rolePriorities = map[string]int{
		RoleAdmin:    3,
		RoleSubAdmin: 2,
		RoleUser:     1,
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// IsStaff reports whether the user may access the admin pages (admin or subAdmin).
func (u User) IsStaff() bool { return u.Role == RoleAdmin || u.Role == RoleSubAdmin }

func (u User) Person() core.Person {
	return core.Person{ID: u.ID, Name: u.Name, Email: u.Email}
}

// NewUser contains information needed to sign up.
type NewUser struct {
	Name            string `json:"name" validate:"required,max=50"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Role            string `json:"-"` // only set by the admin CLI
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Email)
}

// UpdateUser defines what information a user may change about themselves.
type UpdateUser struct {
	Name            string `json:"name" validate:"omitempty,max=50"`
	Password        string `json:"password" validate:"omitempty"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`

	email string
}

func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate) error {
	name := core.CleanString(uu.Name)
	if name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}
	uu.email = origUsr.Email
	return validate.Struct(uu)
}

// SetRole is used by admins to promote or demote a user.
type SetRole struct {
	Role string `json:"role" validate:"required,oneof=subAdmin user"`
}

func (sr SetRole) Validate(validate *validator.Validate) error { return validate.Struct(sr) }

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type GetFilter struct {
	ID    string
	Email string
}

type QueryFilter struct {
	Search   string   `query:"search"`
	Roles    []string `query:"role"`
	IsActive *bool    `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
