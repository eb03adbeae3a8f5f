package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"mypeeps/internal/auth/model"
	"mypeeps/internal/auth/repository"
	"mypeeps/pkg/metrics"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 6

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = fmt.Errorf("password should be at least %d characters", minPasswordLen)
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email address")
)

type AuthService struct {
	Repo   *repository.UserRepository
	Tokens *JWTManager
	now    func() time.Time
}

func NewAuthService(repo *repository.UserRepository, tokens *JWTManager) *AuthService {
	return &AuthService{Repo: repo, Tokens: tokens, now: time.Now}
}

func (s *AuthService) Register(ctx context.Context, email, password string) (*model.AuthResponse, error) {
	resp, err := s.register(ctx, email, password)
	record("register", err)
	return resp, err
}

func (s *AuthService) register(ctx context.Context, email, password string) (*model.AuthResponse, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLen {
		return nil, ErrWeakPassword
	}

	existing, err := s.Repo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UnixMilli(),
	}
	if err := s.Repo.Create(ctx, user); err != nil {
		// lost a race with a concurrent registration
		if again, lookupErr := s.Repo.GetByEmail(ctx, email); lookupErr == nil && again != nil {
			return nil, ErrEmailExists
		}
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*model.AuthResponse, error) {
	resp, err := s.login(ctx, email, password)
	record("login", err)
	return resp, err
}

func (s *AuthService) login(ctx context.Context, email, password string) (*model.AuthResponse, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	user, err := s.Repo.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(user)
}

func (s *AuthService) Me(ctx context.Context, userID string) (*model.UserInfo, error) {
	user, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	info := user.Info()
	return &info, nil
}

func (s *AuthService) issue(user *model.User) (*model.AuthResponse, error) {
	token, err := s.Tokens.Generate(user)
	if err != nil {
		return nil, err
	}
	return &model.AuthResponse{Token: token, User: user.Info()}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func record(action string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.AuthAttempts.WithLabelValues(action, result).Inc()
}
