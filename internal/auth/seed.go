package auth

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pulse-engage/backend/internal/models"
	"github.com/pulse-engage/backend/pkg/utils"
)

// EnsureAdmin creates the configured admin account on startup if it does not
// exist. The admin role is a stored claim; no request path ever compares
// against the configured email again.
func EnsureAdmin(ctx context.Context, repo *Repository, email, password, name string, logger *zap.Logger) error {
	if email == "" || password == "" {
		logger.Info("admin seeding skipped (ADMIN_EMAIL/ADMIN_PASSWORD not set)")
		return nil
	}
	if _, err := repo.GetByEmail(ctx, email); err == nil {
		return nil
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if _, err := repo.Create(ctx, email, hash, name, models.RoleAdmin, nil); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	logger.Info("admin account seeded", zap.String("email", email))
	return nil
}
