package models

import "time"

type User struct {
	ID           int64     `json:"_id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Bio          string    `json:"bio" db:"bio"`
	Avatar       string    `json:"avatar" db:"avatar"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// UserRef is the populated form of a reference to a user.
type UserRef struct {
	ID       int64  `json:"_id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Bio      string `json:"bio,omitempty"`
}

type UserProfile struct {
	User
	Followers []UserRef `json:"followers"`
	Following []UserRef `json:"following"`
}
