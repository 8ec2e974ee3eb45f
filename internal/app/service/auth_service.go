package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"birdwatch/internal/app/session"
	"birdwatch/internal/common"
	"birdwatch/internal/common/security"
	"birdwatch/internal/domain/model"
	"birdwatch/internal/domain/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type AuthService struct {
	userRepo   repository.UserRepository
	sessions   session.Store
	sessionTTL time.Duration
	validate   *validator.Validate
}

func NewAuthService(userRepo repository.UserRepository, sessions session.Store, sessionTTL time.Duration) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		validate:   validator.New(),
	}
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Message string      `json:"message"`
	User    *model.User `json:"user"`
	Token   string      `json:"-"`
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("username and password required: %w", common.ErrValidation)
	}

	hashedPassword, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:             uuid.NewString(),
		Username:       req.Username,
		HashedPassword: hashedPassword,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// Repo returns common.ErrConflict on a duplicate username
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.establishSession(ctx, user)
	if err != nil {
		return nil, err
	}
	user.HashedPassword = "" // Clear password before returning
	return &AuthResponse{Message: "Registration successful", User: user, Token: token}, nil
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	// Unknown username and wrong password must be indistinguishable.
	user, err := s.userRepo.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("invalid username or password: %w", common.ErrUnauthorized)
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !security.CheckPasswordHash(req.Password, user.HashedPassword) {
		return nil, fmt.Errorf("invalid username or password: %w", common.ErrUnauthorized)
	}

	token, err := s.establishSession(ctx, user)
	if err != nil {
		return nil, err
	}
	user.HashedPassword = ""
	return &AuthResponse{Message: "Login successful", User: user, Token: token}, nil
}

// Logout revokes the server-side session entry; the token is dead from the
// next request on, regardless of its exp claim.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to tear down session: %w", err)
	}
	return nil
}

func (s *AuthService) establishSession(ctx context.Context, user *model.User) (string, error) {
	sessionID := uuid.NewString()
	if err := s.sessions.Save(ctx, sessionID, user.ID, s.sessionTTL); err != nil {
		return "", fmt.Errorf("failed to establish session: %w", err)
	}
	token, err := security.GenerateToken(user.ID, user.Username, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return token, nil
}
