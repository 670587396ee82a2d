package service

import (
	"context"
	"errors"

	"github.com/chingu-voyage4/Bears-Team-0/internal/event"
	"github.com/chingu-voyage4/Bears-Team-0/internal/models"
	"github.com/chingu-voyage4/Bears-Team-0/internal/repository"
	log "github.com/sirupsen/logrus"
)

type UserService struct {
	Repo      *repository.UserRepository
	Hasher    *BcryptHasher
	Publisher event.Publisher
}

func NewUserService(repo *repository.UserRepository, hasher *BcryptHasher, publisher event.Publisher) *UserService {
	return &UserService{Repo: repo, Hasher: hasher, Publisher: publisher}
}

func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.Repo.Read(ctx, id)
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.Repo.ReadAll(ctx)
}

func (s *UserService) CountUsers(ctx context.Context) (int64, error) {
	return s.Repo.Count(ctx)
}

func (s *UserService) Register(ctx context.Context, in models.UserInput) (*models.User, error) {
	user, err := s.Repo.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, event.UserRegistered, user)
	return user, nil
}

// LoginExternal signs in a user coming from an identity provider,
// registering the account the first time it is seen.
func (s *UserService) LoginExternal(ctx context.Context, provider, externalID, displayName string) (*models.User, error) {
	user, created, err := s.Repo.FindOrCreateExternal(ctx, provider, externalID, displayName)
	if err != nil {
		return nil, err
	}
	if created {
		s.publish(ctx, event.UserRegistered, user)
	}
	return user, nil
}

// Authenticate checks a local username and password.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.Repo.FindByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := s.Hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) UpdateUser(ctx context.Context, id string, patch map[string]any) (*models.User, error) {
	return s.Repo.Update(ctx, id, patch)
}

func (s *UserService) DeleteUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.Repo.Destroy(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, event.UserDeleted, user)
	return user, nil
}

func (s *UserService) publish(ctx context.Context, t event.EventType, user *models.User) {
	if s.Publisher == nil {
		return
	}
	if err := s.Publisher.PublishUserEvent(ctx, t, user); err != nil {
		log.WithFields(log.Fields{"event": t, "user_id": user.ID.Hex()}).WithError(err).Error("Failed to publish user event")
	}
}
