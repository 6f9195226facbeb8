package user

import (
	"context"
	"net/mail"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/gallery/core"
)

var (
	// errors
	ErrNotFound          = errors.New("user not found")
	ErrEmailExists       = errors.New("a user with this email already exists")
	ErrRootAdmin         = errors.New("the root admin cannot be modified")
	ErrSelfDelete        = errors.New("users cannot delete their own account")
	ErrInvalidResetToken = errors.New("invalid password reset link")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields, newest first.
		// QueryFilter.Search does a case-insensitive match on one of User.Name or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUser(ctx context.Context, id string) error
		CountUsers(ctx context.Context) (int, error)
	}

	// ContentRemover deletes everything a user left on the site (posts, comments and likes).
	ContentRemover interface {
		DeleteUserContent(ctx context.Context, email string) error
	}

	Service interface {
		CheckUniqueness(ctx context.Context, email string, exclUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		Query(ctx context.Context, filter *QueryFilter) ([]User, error)
		Count(ctx context.Context) (int, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Update(ctx context.Context, usr User, uu UpdateUser) (User, error)
		SetRole(ctx context.Context, actor User, id string, role string) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		Delete(ctx context.Context, actor User, id string) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetUserPassword) error
		IsRootAdmin(usr User) bool
	}

	service struct {
		repo           Repository
		mailSvc        core.EmailService
		logger         core.Logger
		remover        ContentRemover
		tokens         tokenGenerator
		rootAdminEmail string
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	mailSvc core.EmailService,
	remover ContentRemover,
	conf *core.Config,
	logger core.Logger,
) Service {
	return newService(repo, mailSvc, remover, conf, logger)
}

func newService(
	repo Repository,
	mailSvc core.EmailService,
	remover ContentRemover,
	conf *core.Config,
	logger core.Logger,
) *service {
	return &service{
		repo:           repo,
		mailSvc:        mailSvc,
		logger:         logger,
		remover:        remover,
		tokens:         newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
		rootAdminEmail: core.CleanString(conf.RootAdminEmail, true /* lower */),
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, exclUsers...); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	role := nu.Role
	if role == "" {
		role = RoleUser
	}
	now := time.Now().UTC()
	usr := User{
		ID:        uuid.NewString(),
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

// Query lists users for the admin pages: highest role first, newest first within a role.
func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]User, error) {
	users, err := svc.repo.QueryUsers(ctx, filter)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(users, func(i, j int) bool {
		pi, pj := RolePriority(users[i].Role), RolePriority(users[j].Role)
		if pi != pj {
			return pi > pj
		}
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

func (svc *service) Count(ctx context.Context) (int, error) {
	return svc.repo.CountUsers(ctx)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

// Update applies a validated UpdateUser to usr.
func (svc *service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	usr.Name = uu.Name
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// SetRole promotes or demotes a user. Only admins may do it, and never on the root admin.
func (svc *service) SetRole(ctx context.Context, actor User, id string, role string) (User, error) {
	if !actor.IsAdmin() {
		return User{}, core.ErrForbidden
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if svc.IsRootAdmin(usr) {
		return User{}, ErrRootAdmin
	}
	usr.Role = role
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// Delete removes a user along with their posts, comments and likes.
// Only admins may do it, never on themselves nor on the root admin.
func (svc *service) Delete(ctx context.Context, actor User, id string) error {
	if !actor.IsAdmin() {
		return core.ErrForbidden
	}
	if actor.ID == id {
		return ErrSelfDelete
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if svc.IsRootAdmin(usr) {
		return ErrRootAdmin
	}
	if svc.remover != nil {
		if err := svc.remover.DeleteUserContent(ctx, usr.Email); err != nil {
			return errors.Wrap(err, "deleting user content")
		}
	}
	return svc.repo.DeleteUser(ctx, usr.ID)
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return nil
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(ErrInvalidResetToken)
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(ErrInvalidResetToken)
		}
		return err
	}
	if err := svc.tokens.verifyToken(usr, rp.Token); err != nil {
		return core.NewValidationError(ErrInvalidResetToken)
	}

	if err := usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

func (svc *service) IsRootAdmin(usr User) bool {
	return svc.rootAdminEmail != "" && usr.Email == svc.rootAdminEmail
}

func (svc *service) sendPasswordResetMail(usr User) {
	token, err := svc.tokens.makeToken(usr)
	if err != nil {
		svc.logger.Error("making password reset token", err, usr.Person())
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"Name":  usr.Name,
			"UID":   EncodeUID(usr),
			"Token": token,
		},
	})
}
