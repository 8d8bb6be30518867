package service

import (
	"context"
	"strings"

	"market-service/internal/apperr"
	"market-service/internal/models"
	"market-service/internal/util"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

var errInvalidCredentials = apperr.New(apperr.CodeUnauthorized, "invalid email or password")

// AuthService registers and authenticates users
type AuthService struct {
	users  UserRepository
	logger *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(users UserRepository) *AuthService {
	return &AuthService{
		users:  users,
		logger: util.GetLogger(),
	}
}

// SignupRequest is the signup form
type SignupRequest struct {
	Name            string `json:"name" form:"name"`
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
}

// Signup validates the form and creates a non-admin user
func (s *AuthService) Signup(ctx context.Context, req *SignupRequest) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Signup")
	defer span.End()

	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if name == "" || email == "" || req.Password == "" {
		return nil, apperr.Validation("all fields are required")
	}
	if !validEmail(email) {
		return nil, apperr.Validation("please enter a valid email address")
	}
	if req.Password != req.ConfirmPassword {
		return nil, apperr.Validation("passwords do not match")
	}

	existing, err := s.users.GetUserByEmail(ctx, email)
	if err != nil && !apperr.Is(err, apperr.CodeNotFound) {
		return nil, apperr.Internal(err, "failed to check email")
	}
	if existing != nil {
		return nil, apperr.Conflict("email already in use")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, apperr.Internal(err, "failed to hash password")
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if apperr.Is(err, apperr.CodeConflict) {
			return nil, err
		}
		return nil, apperr.Internal(util.RecordError(span, err), "failed to create user")
	}

	s.logger.Info("User registered", zap.Int64("user_id", user.ID))
	return user, nil
}

// Login checks credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Login")
	defer span.End()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperr.Validation("email and password are required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if apperr.Is(err, apperr.CodeNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, apperr.Internal(util.RecordError(span, err), "failed to load user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("Failed login attempt", zap.Int64("user_id", user.ID))
		return nil, errInvalidCredentials
	}

	return user, nil
}

// GetUser loads a user profile
func (s *AuthService) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			return nil, err
		}
		return nil, apperr.Internal(err, "failed to load user")
	}
	return user, nil
}
