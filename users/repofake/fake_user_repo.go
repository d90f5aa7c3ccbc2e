package fakeuserrepo

import (
	"context"
	"fmt"
	"sync"
	"time"

	autherrors "github.com/jrsteele09/go-spar-server/internal/errors"
	"github.com/jrsteele09/go-spar-server/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users     map[uint]*users.User
	usernames map[string]uint // username to user id
	emails    map[string]uint // email to user id
	nextID    uint
	lock      sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:     make(map[uint]*users.User),
		usernames: make(map[string]uint),
		emails:    make(map[string]uint),
	}
}

func (ur *FakeUserRepo) Create(_ context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if _, ok := ur.usernames[user.Username]; ok {
		return autherrors.Mark(autherrors.ErrAlreadyExists, nil, "FakeUserRepo.Create username "+user.Username)
	}
	if _, ok := ur.emails[user.Email]; ok {
		return autherrors.Mark(autherrors.ErrAlreadyExists, nil, "FakeUserRepo.Create email "+user.Email)
	}

	ur.nextID++
	user.ID = ur.nextID
	stored := *user
	ur.users[user.ID] = &stored
	ur.usernames[user.Username] = user.ID
	ur.emails[user.Email] = user.ID
	return nil
}

func (ur *FakeUserRepo) GetByID(_ context.Context, id uint) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[id]
	if !ok {
		return nil, autherrors.Mark(autherrors.ErrNotFound, nil, fmt.Sprintf("FakeUserRepo.GetByID %d", id))
	}
	copied := *user
	return &copied, nil
}

func (ur *FakeUserRepo) GetByUsername(ctx context.Context, username string) (*users.User, error) {
	ur.lock.RLock()
	id, ok := ur.usernames[username]
	ur.lock.RUnlock()

	if !ok {
		return nil, autherrors.Mark(autherrors.ErrNotFound, nil, "FakeUserRepo.GetByUsername "+username)
	}
	return ur.GetByID(ctx, id)
}

func (ur *FakeUserRepo) SetLastLogin(_ context.Context, id uint, at time.Time) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[id]
	if !ok {
		return autherrors.Mark(autherrors.ErrNotFound, nil, fmt.Sprintf("FakeUserRepo.SetLastLogin %d", id))
	}
	user.LastLogin = &at
	return nil
}
