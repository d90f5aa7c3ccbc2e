package users

import (
	"context"
	"strings"
	"sync"
	"time"

	autherrors "github.com/jrsteele09/go-spar-server/internal/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// Directory authenticates login attempts against the stored accounts. It is
// the only component that ever sees a raw password.
type Directory struct {
	repo     UserRepo
	hashCost int
	nowFunc  func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

type DirectoryOption func(*Directory)

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) DirectoryOption {
	return func(d *Directory) {
		d.hashCost = cost
	}
}

func WithNowFunc(now func() time.Time) DirectoryOption {
	return func(d *Directory) {
		d.nowFunc = now
	}
}

func NewDirectory(repo UserRepo, options ...DirectoryOption) *Directory {
	d := &Directory{
		repo:     repo,
		hashCost: bcrypt.DefaultCost,
		nowFunc:  time.Now,
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

// Register creates a new account after checking password strength.
func (d *Directory) Register(ctx context.Context, username, email, password string) (*User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" {
		return nil, autherrors.Mark(autherrors.ErrInvalidArgument, nil, "Directory.Register username and email are required")
	}
	if err := ValidatePasswordStrength(password); err != nil {
		return nil, autherrors.Mark(autherrors.ErrWeakPassword, err, "Directory.Register")
	}

	hash, err := HashPassword(password, d.hashCost)
	if err != nil {
		return nil, autherrors.Wrapf(err, "Directory.Register hash password")
	}

	user := &User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		DateJoined:   d.nowFunc().UTC(),
	}
	if err := d.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate returns the account when password matches. Unknown users and
// wrong passwords both return ErrInvalidCredentials.
func (d *Directory) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := d.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if autherrors.Is(err, autherrors.ErrNotFound) {
			// Burn a comparison so unknown usernames take as long as bad passwords.
			CheckPasswordHash(password, d.dummy())
			return nil, autherrors.Mark(autherrors.ErrInvalidCredentials, nil, "Directory.Authenticate")
		}
		return nil, err
	}

	if !CheckPasswordHash(password, user.PasswordHash) {
		return nil, autherrors.Mark(autherrors.ErrInvalidCredentials, nil, "Directory.Authenticate")
	}

	now := d.nowFunc().UTC()
	if err := d.repo.SetLastLogin(ctx, user.ID, now); err != nil {
		log.Warn().Err(err).Uint("user_id", user.ID).Msg("failed to record last login")
	} else {
		user.LastLogin = &now
	}
	return user, nil
}

func (d *Directory) GetByID(ctx context.Context, id uint) (*User, error) {
	return d.repo.GetByID(ctx, id)
}

// GetByUsername resolves an authenticated subject to its account.
func (d *Directory) GetByUsername(ctx context.Context, username string) (*User, error) {
	return d.repo.GetByUsername(ctx, username)
}

func (d *Directory) dummy() string {
	d.dummyOnce.Do(func() {
		hash, err := HashPassword("spar-dummy-password", d.hashCost)
		if err == nil {
			d.dummyHash = hash
		}
	})
	return d.dummyHash
}
