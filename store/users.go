package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"library-service/model"
)

// CreateUser inserts an account and returns its id. The email column carries
// a UNIQUE constraint; callers should check for an existing account first and
// treat an insert failure here as a write-time uniqueness violation.
func (s *Store) CreateUser(ctx context.Context, u model.User) (int64, error) {
	return s.insert(ctx, tableUsers, goqu.Record{
		"email":         u.Email,
		"password_hash": u.PasswordHash,
		"role":          u.Role,
		"phone":         u.Phone,
	})
}

// UserByEmail looks an account up by its unique email.
func (s *Store) UserByEmail(ctx context.Context, email string) (model.User, error) {
	return s.userWhere(ctx, goqu.C("email").Eq(email))
}

// UserByID looks an account up by id.
func (s *Store) UserByID(ctx context.Context, id int64) (model.User, error) {
	return s.userWhere(ctx, goqu.C("id").Eq(id))
}

func (s *Store) userWhere(ctx context.Context, cond goqu.Expression) (model.User, error) {
	query, args, err := s.dialect.From(tableUsers).
		Select("id", "email", "password_hash", "role", "phone").
		Where(cond).
		Limit(1).
		Prepared(true).ToSQL()
	if err != nil {
		return model.User{}, fmt.Errorf("build user query: %w", err)
	}

	var u model.User
	row := s.db.QueryRowxContext(ctx, query, args...)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Phone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}
