package service

import (
	"time"

	"github.com/mkayfour/school-lending/lending/internal/errs"
	"github.com/mkayfour/school-lending/lending/internal/repository"
	"github.com/mkayfour/school-lending/pkg/auth"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type TokenIssuer interface {
	Issue(p auth.Principal) (string, time.Time, error)
}

type Service struct {
	log    *zap.Logger
	repo   repository.Repository
	tokens TokenIssuer

	policy      auth.Policy
	guardDelete bool
	hashCost    int
}

type Option func(*Service)

// WithGuardDelete refuses to delete equipment that active requests still reference.
func WithGuardDelete(guard bool) Option {
	return func(s *Service) {
		s.guardDelete = guard
	}
}

func WithPolicy(p auth.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

func WithHashCost(cost int) Option {
	return func(s *Service) {
		s.hashCost = cost
	}
}

func NewService(repo repository.Repository, tokens TokenIssuer, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		log:      log.Named("service"),
		repo:     repo,
		tokens:   tokens,
		policy:   auth.DefaultPolicy(),
		hashCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) authorize(actor auth.Principal, action auth.Action) error {
	if !s.policy.Allows(actor.Role, action) {
		return errors.Wrapf(errs.ErrForbidden, "%s may not %s", actor.Role, action)
	}
	return nil
}
