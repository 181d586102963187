package service

import (
	"context"
	"strings"

	"devsnippet/internal/auth"
	"devsnippet/internal/models"
	"devsnippet/internal/policy"
	"devsnippet/internal/repository"
	"devsnippet/internal/validation"
)

type AuthService struct {
	users  repository.UserRepository
	tokens *auth.TokenManager
}

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func NewAuthService(users repository.UserRepository, tokens *auth.TokenManager) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = models.NormalizeEmail(in.Email)

	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, models.NewBadRequestError("Username, email and password are required")
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewBadRequestError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewBadRequestError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewBadRequestError(err.Error())
	}

	existing, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("This username is already taken")
	}
	existing, err = s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("An account with this email already exists")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username: in.Username,
		Email:    in.Email,
		Password: hash,
		Role:     models.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	return s.issue(user)
}

// Login fails identically for an unknown email and a wrong password.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, models.NewInvalidCredentialsError()
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}

	var hash *string
	if user != nil {
		hash = &user.Password
	}
	if !auth.CheckPasswordOrDummy(hash, in.Password) {
		return nil, models.NewInvalidCredentialsError()
	}

	return s.issue(user)
}

// Resolve verifies token and loads the user it names.
func (s *AuthService) Resolve(ctx context.Context, token string) (policy.Identity, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return policy.Identity{}, models.NewUnauthenticatedError("Token is not valid")
	}

	user, err := s.users.GetByID(ctx, claims.UserID())
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return policy.Identity{}, models.NewUnauthenticatedError("User not found")
		}
		return policy.Identity{}, err
	}

	return policy.IdentityOf(user), nil
}

// Me returns the stored account of the acting user.
func (s *AuthService) Me(ctx context.Context, id string) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResult{Token: token, User: user}, nil
}
