package repository

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/mkayfour/school-lending/lending/internal/errs"
	"github.com/mkayfour/school-lending/lending/internal/model"
	"github.com/pkg/errors"
)

func (r *repository) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	q := qb.Insert(usersTableName).
		Columns("name", "email", "password_hash", "role").
		Values(user.Name, strings.ToLower(user.Email), user.PasswordHash, user.Role).
		Suffix("returning " + strings.Join(userColumns, ", "))

	u, err := collectOne[model.User](ctx, r.db, q)
	if err != nil {
		return model.User{}, userErr(err)
	}
	return u, nil
}

// userErr reports a unique violation on users as a taken email.
func userErr(err error) error {
	if errors.Is(err, errs.ErrConflict) {
		return errs.ErrEmailTaken
	}
	return err
}

func (r *repository) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	q := qb.Select(userColumns...).
		From(usersTableName).
		Where(sq.Eq{"email": strings.ToLower(email)})
	return collectOne[model.User](ctx, r.db, q)
}
