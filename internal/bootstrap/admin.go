package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"devsnippet/internal/auth"
	"devsnippet/internal/config"
	"devsnippet/internal/middleware"
	"devsnippet/internal/models"
	"devsnippet/internal/repository"
	"devsnippet/internal/validation"
)

const (
	defaultAdminUsername = "admin"
	adminBio             = "Platform Administrator"
)

// ErrAdminNotConfigured is returned when ADMIN_EMAIL or ADMIN_PASSWORD is missing.
var ErrAdminNotConfigured = errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set")

// AdminCredentials describe the account EnsureAdmin creates.
type AdminCredentials struct {
	Username string
	Email    string
	Password string
}

// AdminFromConfig reads the ADMIN_* settings.
func AdminFromConfig(cfg *config.Config) AdminCredentials {
	return AdminCredentials{
		Username: cfg.AdminUsername,
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
	}
}

// EnsureAdmin creates the administrator unless an account with that email exists.
// The bool reports whether an account was created; an existing account is left untouched.
func EnsureAdmin(ctx context.Context, users repository.UserRepository, creds AdminCredentials) (*models.User, bool, error) {
	email := models.NormalizeEmail(creds.Email)
	if email == "" || creds.Password == "" {
		return nil, false, ErrAdminNotConfigured
	}

	existing, err := users.GetByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		middleware.Logger.Info("admin account already exists", slog.String("email", email))
		return existing, false, nil
	}

	username := strings.TrimSpace(creds.Username)
	if username == "" {
		username = defaultAdminUsername
	}
	if err := validation.ValidatePassword(creds.Password); err != nil {
		return nil, false, models.NewBadRequestError(err.Error())
	}

	hash, err := auth.HashPassword(creds.Password)
	if err != nil {
		return nil, false, fmt.Errorf("hash admin password: %w", err)
	}

	admin := &models.User{
		Username: username,
		Email:    email,
		Password: hash,
		Role:     models.RoleAdmin,
		Bio:      adminBio,
	}
	if err := users.Create(ctx, admin); err != nil {
		return nil, false, err
	}

	middleware.Logger.Info("admin account created", slog.String("email", email), slog.String("username", username))
	return admin, true, nil
}

// SetRole changes the role of the named user. Setting the current role is a no-op.
func SetRole(ctx context.Context, users repository.UserRepository, username string, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, models.NewBadRequestError("Invalid role")
	}
	user, err := users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User")
	}
	if user.Role == role {
		return user, nil
	}

	user.Role = role
	if err := users.Update(ctx, user, repository.ColRole); err != nil {
		return nil, err
	}
	return user, nil
}

// ListAdmins returns every account holding the admin role.
func ListAdmins(ctx context.Context, users repository.UserRepository) ([]models.User, error) {
	return users.ListByRole(ctx, models.RoleAdmin)
}
