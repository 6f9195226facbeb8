package user

import (
	"context"

	"github.com/trezcool/gallery/core"
)

type serviceMock struct {
	*service
}

// NewServiceMock returns a Service that sends its emails synchronously.
func NewServiceMock(
	repo Repository,
	mailSvc core.EmailService,
	remover ContentRemover,
	conf *core.Config,
	logger core.Logger,
) Service {
	return &serviceMock{service: newService(repo, mailSvc, remover, conf, logger)}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return nil
	}
	// run synchronously
	svc.sendPasswordResetMail(usr)
	return nil
}

// MakeResetToken exposes password reset tokens to other packages' tests.
func (svc *serviceMock) MakeResetToken(usr User) (string, error) {
	return svc.tokens.makeToken(usr)
}
