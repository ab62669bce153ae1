package repository

import (
	"context"

	"github.com/hray3182/workoutbot/internal/database"
	"github.com/hray3182/workoutbot/internal/models"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetOrCreate(ctx context.Context, userID int64, userName, firstName string) (*models.User, error) {
	user := &models.User{}
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO users (user_id, user_name, first_name) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET user_name = EXCLUDED.user_name, first_name = EXCLUDED.first_name
		 RETURNING user_id, user_name, first_name, created_at`,
		userID, userName, firstName,
	).Scan(&user.UserID, &user.UserName, &user.FirstName, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	user := &models.User{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT user_id, user_name, first_name, created_at FROM users WHERE user_id = $1`,
		userID,
	).Scan(&user.UserID, &user.UserName, &user.FirstName, &user.CreatedAt)
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT user_id FROM users ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
