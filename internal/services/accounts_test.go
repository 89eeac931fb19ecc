package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"gagyebu/internal/auth"
	"gagyebu/internal/core"
	"gagyebu/internal/storage"
	"gagyebu/internal/storage/memory"
)

func newAccounts(t *testing.T) (*AccountService, *auth.Issuer, *memory.Store) {
	t.Helper()
	issuer, err := auth.NewIssuer("accounts-secret-0123456789", "gagyebu", time.Hour)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	store := memory.New()
	return NewAccountService(store, auth.NewHasher(bcrypt.MinCost), issuer, nil), issuer, store
}

func TestAccountService_SignupAndLogin(t *testing.T) {
	ctx := context.Background()
	accounts, issuer, store := newAccounts(t)

	sess, err := accounts.Signup(ctx, "  Minsu ", "correct horse")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if sess.User.ID <= 0 || sess.User.Username != "Minsu" {
		t.Fatalf("unexpected user: %+v", sess.User)
	}
	if id, err := issuer.Parse(sess.Token); err != nil || id != sess.User.ID {
		t.Fatalf("signup token: id=%d err=%v", id, err)
	}

	stored, err := store.UserByName(ctx, "minsu")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if stored.PasswordHash == "correct horse" || bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("correct horse")) != nil {
		t.Fatalf("password not stored as a bcrypt hash: %q", stored.PasswordHash)
	}

	login, err := accounts.Login(ctx, "MINSU", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if id, err := issuer.Parse(login.Token); err != nil || id != sess.User.ID {
		t.Fatalf("login token: id=%d err=%v", id, err)
	}
}

func TestAccountService_SignupRejects(t *testing.T) {
	ctx := context.Background()
	accounts, _, _ := newAccounts(t)
	if _, err := accounts.Signup(ctx, "minsu", "correct horse"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	if _, err := accounts.Signup(ctx, "MinSu", "another password"); !errors.Is(err, storage.ErrDuplicateUser) {
		t.Fatalf("expected ErrDuplicateUser, got %v", err)
	}

	tests := []struct {
		username, password, field string
	}{
		{"", "correct horse", "username"},
		{"two words", "correct horse", "username"},
		{"jiyoung", "short", "password"},
	}
	for _, tt := range tests {
		_, err := accounts.Signup(ctx, tt.username, tt.password)
		var verr *core.ValidationError
		if !errors.As(err, &verr) || verr.Field != tt.field {
			t.Fatalf("%q/%q: expected %s validation error, got %v", tt.username, tt.password, tt.field, err)
		}
	}
}

func TestAccountService_LoginRejects(t *testing.T) {
	ctx := context.Background()
	accounts, _, _ := newAccounts(t)
	if _, err := accounts.Signup(ctx, "minsu", "correct horse"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	for _, tt := range []struct{ username, password string }{
		{"minsu", "wrong horse"},
		{"nobody", "correct horse"},
	} {
		if _, err := accounts.Login(ctx, tt.username, tt.password); !errors.Is(err, auth.ErrInvalidCredentials) {
			t.Fatalf("%s: expected ErrInvalidCredentials, got %v", tt.username, err)
		}
	}

	var verr *core.ValidationError
	if _, err := accounts.Login(ctx, "minsu", ""); !errors.As(err, &verr) || verr.Field != "password" {
		t.Fatalf("empty password should be a validation error, got %v", err)
	}
	if _, err := accounts.Login(ctx, " ", "x"); !errors.As(err, &verr) || verr.Field != "username" {
		t.Fatalf("empty username should be a validation error, got %v", err)
	}
}
