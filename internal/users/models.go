package users

import (
	"errors"
	"time"
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Version      int64     `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

var (
	ErrNotFound            = errors.New("user not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrEmailTaken          = errors.New("email already in use")
	ErrConflict            = errors.New("conflicting state")
	ErrConcurrencyConflict = errors.New("row modified concurrently")
	ErrBadCredentials      = errors.New("invalid email or password")
)
