package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hray3182/workoutbot/internal/models"
	"github.com/hray3182/workoutbot/internal/repository"
)

type users struct {
	db *sql.DB
}

func (s *users) GetOrCreate(ctx context.Context, userID int64, userName, firstName string) (*models.User, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, user_name, first_name, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET user_name = excluded.user_name, first_name = excluded.first_name`,
		userID, userName, firstName, millis(time.Now()),
	)
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, userID)
}

func (s *users) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	user := &models.User{}
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, user_name, first_name, created_at FROM users WHERE user_id = ?`,
		userID,
	).Scan(&user.UserID, &user.UserName, &user.FirstName, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	user.CreatedAt = fromMillis(created)
	return user, nil
}

func (s *users) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM users ORDER BY user_id`)
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
