package gormrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	autherrors "github.com/jrsteele09/go-spar-server/internal/errors"
	"github.com/jrsteele09/go-spar-server/users"
	"gorm.io/gorm"
)

var _ users.UserRepo = (*UserRepo)(nil)

type UserRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, user *users.User) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&users.User{}).
			Where("username = ? OR email = ?", user.Username, user.Email).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return autherrors.ErrAlreadyExists
		}
		return tx.Create(user).Error
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, autherrors.ErrAlreadyExists), errors.Is(err, gorm.ErrDuplicatedKey):
		return autherrors.Mark(autherrors.ErrAlreadyExists, nil, "UserRepo.Create "+user.Username)
	default:
		return autherrors.Wrapf(err, "UserRepo.Create")
	}
}

func (r *UserRepo) GetByID(ctx context.Context, id uint) (*users.User, error) {
	var user users.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, autherrors.Mark(autherrors.ErrNotFound, nil, fmt.Sprintf("UserRepo.GetByID %d", id))
	}
	if err != nil {
		return nil, autherrors.Wrapf(err, "UserRepo.GetByID")
	}
	return &user, nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*users.User, error) {
	var user users.User
	err := r.db.WithContext(ctx).Where("username = ?", username).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, autherrors.Mark(autherrors.ErrNotFound, nil, "UserRepo.GetByUsername "+username)
	}
	if err != nil {
		return nil, autherrors.Wrapf(err, "UserRepo.GetByUsername")
	}
	return &user, nil
}

func (r *UserRepo) SetLastLogin(ctx context.Context, id uint, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&users.User{}).Where("id = ?", id).Update("last_login", at.UTC())
	if result.Error != nil {
		return autherrors.Wrapf(result.Error, "UserRepo.SetLastLogin")
	}
	if result.RowsAffected == 0 {
		return autherrors.Mark(autherrors.ErrNotFound, nil, fmt.Sprintf("UserRepo.SetLastLogin %d", id))
	}
	return nil
}
