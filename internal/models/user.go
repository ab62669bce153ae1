package models

import "time"

type User struct {
	UserID    int64     `json:"user_id"`
	UserName  string    `json:"user_name"`
	FirstName string    `json:"first_name"`
	CreatedAt time.Time `json:"created_at"`
}
