package repository

import (
	"context"
	"database/sql"
	"errors"

	"consult-booking/core/database"
	"consult-booking/core/logger"
	"consult-booking/modules/account/entity"

	"github.com/google/uuid"
)

type UserRepository interface {
	WithTx(tx database.IDatabase) UserRepository
	// GetByID returns nil, nil when the user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
}

type userRepository struct {
	db database.IDatabase
}

func NewUserRepository(db database.IDatabase) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) WithTx(tx database.IDatabase) UserRepository {
	return &userRepository{db: tx}
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	var user entity.User
	query := `SELECT id, full_name, email, role, created_at, updated_at FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger.Error("UserRepository:GetByID:Error", "user_id", id, "error", err)
		return nil, err
	}
	return &user, nil
}
