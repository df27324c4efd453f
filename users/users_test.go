package users

import (
	"context"
	"errors"
	"os"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestValidPin(t *testing.T) {
	pins := map[string]bool{
		"123456":  true,
		"000000":  true,
		"12345":   false,
		"1234567": false,
		"12345a":  false,
		"":        false,
		"１２３４５６":  false,
	}
	for pin, expected := range pins {
		if ValidPin(pin) != expected {
			t.Errorf("%q: expected %t", pin, expected)
		}
	}
}

func TestRegisterValidation(t *testing.T) {
	// Validation fails before the database is touched.
	store := &Store{Cost: bcrypt.MinCost}
	ctx := context.Background()

	err := store.Register(ctx, "bob", "", "123456")
	if !errors.Is(err, ErrMissingFields) {
		t.Errorf("missing password: %v", err)
	}
	err = store.Register(ctx, "bob", "secret", "12ab56")
	if !errors.Is(err, ErrInvalidPin) {
		t.Errorf("bad PIN: %v", err)
	}
	err = store.Login(ctx, "", "secret")
	if !errors.Is(err, ErrMissingFields) {
		t.Errorf("missing username: %v", err)
	}
	err = store.VerifyPin(ctx, "bob", "")
	if !errors.Is(err, ErrMissingFields) {
		t.Errorf("missing PIN: %v", err)
	}
}

func setupUsersDB(t *testing.T) (*Store, func()) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	db, err := Open(os.Getenv("DATABASE_DRIVER"), url)
	if err != nil {
		t.Fatal(err)
	}
	InitUsersTable(db)
	db.MustExec("DELETE FROM sheet_server.users WHERE username LIKE 'test_%'")

	store := NewStore(db)
	store.Cost = bcrypt.MinCost
	return store, func() {
		db.MustExec("DELETE FROM sheet_server.users WHERE username LIKE 'test_%'")
		db.Close()
	}
}

func TestRegisterLoginVerify(t *testing.T) {
	store, teardown := setupUsersDB(t)
	defer teardown()
	ctx := context.Background()

	if err := store.Register(ctx, "test_alice", "hunter2", "123456"); err != nil {
		t.Fatal(err)
	}
	if err := store.Register(ctx, "test_alice", "other", "654321"); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("duplicate registration: %v", err)
	}

	if err := store.Login(ctx, "test_alice", "hunter2"); err != nil {
		t.Errorf("login: %v", err)
	}
	if err := store.Login(ctx, "test_alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: %v", err)
	}
	if err := store.Login(ctx, "test_nobody", "hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user: %v", err)
	}

	if err := store.VerifyPin(ctx, "test_alice", "123456"); err != nil {
		t.Errorf("verify PIN: %v", err)
	}
	if err := store.VerifyPin(ctx, "test_alice", "000000"); !errors.Is(err, ErrWrongPin) {
		t.Errorf("wrong PIN: %v", err)
	}
}
