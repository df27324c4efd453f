// This file is part of Sheet Server.
//
// Sheet Server is free software: you can redistribute it and/or modify it under the
// terms of the GNU Affero General Public License as published by the Free Software Foundation,
// either version 3 of the License, or (at your option) any later version.
//
// Sheet Server is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU General Public License along with Sheet Server.
// If not, see https://www.gnu.org/licenses/agpl-3.0.html

// Package users stores accounts with a bcrypt-hashed password and a
// bcrypt-hashed six digit PIN.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingFields      = errors.New("missing required fields")
	ErrInvalidPin         = errors.New("PIN must be 6 digits")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWrongPin           = errors.New("invalid PIN")
)

const uniqueViolation = "23505"

type Store struct {
	db *sqlx.DB
	// Cost is the bcrypt cost used for new hashes.
	Cost int
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, Cost: bcrypt.DefaultCost}
}

func InitUsersTable(db *sqlx.DB) {
	db.MustExec(`CREATE SCHEMA IF NOT EXISTS sheet_server`)
	db.MustExec(`
		CREATE TABLE IF NOT EXISTS sheet_server.users (
			id SERIAL PRIMARY KEY
			, username VARCHAR(255) UNIQUE NOT NULL
			, password TEXT NOT NULL
			, pin TEXT NOT NULL
		)`)
	log.Println("Users table exists")
}

// ValidPin reports whether pin is exactly six ASCII digits.
func ValidPin(pin string) bool {
	if len(pin) != 6 {
		return false
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return false
		}
	}
	return true
}

func (s *Store) Register(ctx context.Context, username, password, pin string) error {
	if username == "" || password == "" || pin == "" {
		return fmt.Errorf("%w: username, password and PIN", ErrMissingFields)
	}
	if !ValidPin(pin) {
		return ErrInvalidPin
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), s.Cost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	hashedPin, err := bcrypt.GenerateFromPassword([]byte(pin), s.Cost)
	if err != nil {
		return fmt.Errorf("hashing PIN: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sheet_server.users (
			username
			, password
			, pin
		) VALUES (
			$1, $2, $3
		)`,
		username,
		string(hashedPassword),
		string(hashedPin))
	if isUniqueViolation(err) {
		return ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("inserting user %s: %w", username, err)
	}
	log.Printf("Registered user %s", username)
	return nil
}

func (s *Store) Login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return fmt.Errorf("%w: username and password", ErrMissingFields)
	}
	hash, err := s.lookup(ctx, "password", username)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return ErrInvalidCredentials
	}
	return nil
}

func (s *Store) VerifyPin(ctx context.Context, username, pin string) error {
	if username == "" || pin == "" {
		return fmt.Errorf("%w: username and PIN", ErrMissingFields)
	}
	hash, err := s.lookup(ctx, "pin", username)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrWrongPin
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) != nil {
		return ErrWrongPin
	}
	return nil
}

// lookup fetches one hash column; column is always a constant from this file.
func (s *Store) lookup(ctx context.Context, column, username string) (string, error) {
	var hash string
	err := s.db.GetContext(ctx, &hash,
		fmt.Sprintf(`SELECT %s FROM sheet_server.users WHERE username = $1`, column),
		username)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("looking up user %s: %w", username, err)
	}
	return hash, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}
