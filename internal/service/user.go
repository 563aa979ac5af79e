package service

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/BuzzLyutic/kanban-board/internal/model"
	"github.com/BuzzLyutic/kanban-board/internal/repo"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// TokenIssuer signs access tokens for a user id. *auth.Issuer implements it.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

type UserService struct {
	repo   repo.UserRepository
	tokens TokenIssuer
	cost   int
}

func NewUserService(repo repo.UserRepository, tokens TokenIssuer) *UserService {
	return &UserService{repo: repo, tokens: tokens, cost: bcrypt.DefaultCost}
}

func (s *UserService) Register(ctx context.Context, reg model.Registration) (model.User, error) {
	reg.Name = strings.TrimSpace(reg.Name)
	reg.Email = strings.TrimSpace(reg.Email)
	if err := reg.Validate(); err != nil {
		return model.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost)
	if err != nil {
		return model.User{}, err
	}
	return s.repo.CreateUser(ctx, model.User{Name: reg.Name, Email: reg.Email}, string(hash))
}

// Login checks the credentials and issues an access token. Unknown email and
// wrong password fail the same way.
func (s *UserService) Login(ctx context.Context, creds model.Credentials) (model.AccessToken, error) {
	if err := creds.Validate(); err != nil {
		return model.AccessToken{}, err
	}

	user, hash, err := s.repo.UserByEmail(ctx, strings.TrimSpace(creds.Email))
	if errors.Is(err, repo.ErrorNotFound) {
		return model.AccessToken{}, ErrInvalidCredentials
	}
	if err != nil {
		return model.AccessToken{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(creds.Password)); err != nil {
		return model.AccessToken{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return model.AccessToken{}, err
	}
	return model.AccessToken{AccessToken: token}, nil
}

func (s *UserService) Me(ctx context.Context, userID string) (model.User, error) {
	return s.repo.UserByID(ctx, userID)
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, patch model.ProfilePatch) (model.User, error) {
	if patch.Name != nil {
		patch.Name = model.Ptr(strings.TrimSpace(*patch.Name))
	}
	if patch.Email != nil {
		patch.Email = model.Ptr(strings.TrimSpace(*patch.Email))
	}
	if err := patch.Validate(); err != nil {
		return model.User{}, err
	}

	upd := repo.UserUpdate{Name: patch.Name, Email: patch.Email}
	if patch.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), s.cost)
		if err != nil {
			return model.User{}, err
		}
		upd.PasswordHash = model.Ptr(string(hash))
	}
	if upd == (repo.UserUpdate{}) {
		return s.repo.UserByID(ctx, userID)
	}
	return s.repo.UpdateUser(ctx, userID, upd)
}
