package services

import (
	"context"
	"errors"
	"fmt"

	"gagyebu/internal/auth"
	"gagyebu/internal/core"
	"gagyebu/internal/log"
	"gagyebu/internal/storage"
)

// Session is what signup and login hand back: the account and a bearer
// token for it.
type Session struct {
	User  core.User `json:"user"`
	Token string    `json:"token"`
}

// AccountService registers users and exchanges their credentials for tokens.
type AccountService struct {
	users  storage.UserStore
	hasher *auth.Hasher
	issuer *auth.Issuer
	logger *log.Logger
}

func NewAccountService(users storage.UserStore, hasher *auth.Hasher, issuer *auth.Issuer, logger *log.Logger) *AccountService {
	if logger == nil {
		logger = log.Discard()
	}
	return &AccountService{
		users:  users,
		hasher: hasher,
		issuer: issuer,
		logger: logger.WithComponent(log.ComponentAuth),
	}
}

// Signup creates an account. A taken username, compared without regard to
// case, fails with storage.ErrDuplicateUser.
func (s *AccountService) Signup(ctx context.Context, username, password string) (Session, error) {
	username = core.NormalizeUsername(username)
	if err := core.ValidateCredentials(username, password); err != nil {
		return Session{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return Session{}, err
	}
	u := core.User{Username: username, PasswordHash: hash}
	u.ID, err = s.users.CreateUser(ctx, u)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateUser) {
			s.logger.WarnContext(ctx, "Signup rejected, username taken", log.NewFields().
				WithOperation(log.OpSignup).
				WithErrorType(log.ErrorTypeConflict).
				ToSlice()...)
			return Session{}, err
		}
		return Session{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "User registered",
		log.FieldUserID, u.ID,
		log.FieldUsername, u.Username)
	return s.session(u)
}

// Login checks the password and returns a fresh token. An unknown username
// and a wrong password both fail with auth.ErrInvalidCredentials.
func (s *AccountService) Login(ctx context.Context, username, password string) (Session, error) {
	username = core.NormalizeUsername(username)
	switch {
	case username == "":
		return Session{}, &core.ValidationError{Field: "username", Err: core.ErrEmptyUsername}
	case password == "":
		return Session{}, &core.ValidationError{Field: "password", Err: core.ErrEmptyPassword}
	}

	u, err := s.users.UserByName(ctx, username)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.hasher.CheckMissing(password)
		s.loginRejected(ctx, username)
		return Session{}, auth.ErrInvalidCredentials
	case err != nil:
		return Session{}, fmt.Errorf("load user: %w", err)
	}

	if err := s.hasher.Check(u.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.loginRejected(ctx, username)
		}
		return Session{}, err
	}

	s.logger.InfoContext(ctx, "User logged in", log.FieldUserID, u.ID)
	return s.session(u)
}

func (s *AccountService) session(u core.User) (Session, error) {
	token, err := s.issuer.Issue(u.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{User: u, Token: token}, nil
}

func (s *AccountService) loginRejected(ctx context.Context, username string) {
	fields := log.NewFields().
		WithOperation(log.OpLogin).
		WithErrorType(log.ErrorTypeAuth)
	fields[log.FieldUsername] = username
	s.logger.WarnContext(ctx, "Login rejected", fields.ToSlice()...)
}
