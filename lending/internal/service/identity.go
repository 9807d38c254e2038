package service

import (
	"context"
	"strings"

	"github.com/mkayfour/school-lending/lending/internal/errs"
	"github.com/mkayfour/school-lending/lending/internal/model"
	"github.com/mkayfour/school-lending/pkg/auth"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func (s *Service) Signup(ctx context.Context, req model.SignupRequest) (model.SignupResponse, error) {
	role := req.Role
	if role == "" {
		role = auth.RoleStudent
	}
	if !role.Valid() {
		return model.SignupResponse{}, errors.Wrapf(errs.ErrValidation, "unknown role %q", role)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" || strings.TrimSpace(req.Name) == "" {
		return model.SignupResponse{}, errors.Wrap(errs.ErrValidation, "name, email and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return model.SignupResponse{}, errors.Wrap(err, "hash password")
	}
	user, err := s.repo.CreateUser(ctx, model.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	})
	if err != nil {
		return model.SignupResponse{}, err
	}
	s.log.Info("user signed up", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	return model.SignupResponse{ID: user.ID}, nil
}

func (s *Service) Login(ctx context.Context, req model.LoginRequest) (model.LoginResponse, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.LoginResponse{}, errs.ErrInvalidCredentials
		}
		return model.LoginResponse{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return model.LoginResponse{}, errs.ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(auth.Principal{UserID: user.ID, Role: user.Role, Name: user.Name})
	if err != nil {
		return model.LoginResponse{}, err
	}
	return model.LoginResponse{
		Token:     token,
		Role:      user.Role,
		Name:      user.Name,
		ExpiresAt: expiresAt,
	}, nil
}
