package service

import (
	"context"
	"errors"
	"fmt"

	"banking-service/internal/domain"
	"banking-service/internal/repository"
	"banking-service/internal/usecase"
	"banking-service/pkg/xerrors"

	"go.uber.org/zap"
)

// SystemSeeder provisions the operator account on startup so a fresh
// deployment is administrable without manual database surgery.
type SystemSeeder struct {
	accounts  repository.AccountStore
	accountUC *usecase.AccountUsecase
	log       *zap.Logger
}

func NewSystemSeeder(accounts repository.AccountStore, accountUC *usecase.AccountUsecase, log *zap.Logger) *SystemSeeder {
	return &SystemSeeder{
		accounts:  accounts,
		accountUC: accountUC,
		log:       log,
	}
}

// SeedAdmin creates the admin account with the given credentials if no
// account holds that email yet. Reruns are no-ops, so the seeder is safe to
// call on every boot.
func (s *SystemSeeder) SeedAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		s.log.Info("admin seeding skipped, no credentials configured")
		return nil
	}

	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		s.log.Info("admin account already present", zap.String("email", email))
		return nil
	} else if !errors.Is(err, xerrors.ErrNotFound) {
		return fmt.Errorf("failed to look up admin account: %w", err)
	}

	acc, err := s.accountUC.CreateAccount(ctx, usecase.CreateAccountInput{
		HolderName:    "System Administrator",
		HolderAddress: "Head Office",
		HolderEmail:   email,
		Password:      password,
		Role:          domain.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("failed to seed admin account: %w", err)
	}

	// The seeded operator never goes through the verification mail loop.
	if err := s.accountUC.MarkEmailVerified(ctx, acc.ID); err != nil {
		return fmt.Errorf("failed to verify seeded admin: %w", err)
	}

	s.log.Info("admin account seeded",
		zap.Int64("account_id", acc.ID),
		zap.String("email", email),
	)
	return nil
}
