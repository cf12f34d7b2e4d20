package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"banking-service/internal/domain"
	"banking-service/internal/repository"
	"banking-service/pkg/jwtutil"
	"banking-service/pkg/utils"
	"banking-service/pkg/xerrors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const accountCacheTTL = 30 * time.Second

// AccountUsecase handles registration, authentication and profile management.
// Reads go through an optional redis snapshot cache; every mutation
// invalidates the snapshot.
type AccountUsecase struct {
	accounts repository.AccountStore
	rdb      *redis.Client
	tokens   *jwtutil.Manager
	numberGen *utils.AccountNumberGenerator
	log      *zap.Logger
}

func NewAccountUsecase(accounts repository.AccountStore, rdb *redis.Client, tokens *jwtutil.Manager, log *zap.Logger) *AccountUsecase {
	return &AccountUsecase{
		accounts:  accounts,
		rdb:       rdb,
		tokens:    tokens,
		numberGen: utils.NewAccountNumberGenerator(),
		log:       log,
	}
}

// CreateAccountInput carries caller-supplied registration data. Password is
// plaintext here and hashed before it reaches any store.
type CreateAccountInput struct {
	HolderName    string
	HolderAddress string
	HolderEmail   string
	Password      string
	InitialBalance int64
	Role          domain.Role
}

func (uc *AccountUsecase) CreateAccount(ctx context.Context, in CreateAccountInput) (*domain.Account, error) {
	if in.Password == "" {
		return nil, domain.NewValidationError("password is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	number, err := uc.numberGen.Generate()
	if err != nil {
		return nil, err
	}

	acc, err := uc.accounts.Create(ctx, &domain.AccountCreate{
		AccountNumber:  number,
		HolderName:     in.HolderName,
		HolderAddress:  in.HolderAddress,
		HolderEmail:    in.HolderEmail,
		PasswordHash:   string(hash),
		InitialBalance: in.InitialBalance,
		Role:           in.Role,
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info("account created",
		zap.Int64("account_id", acc.ID),
		zap.String("account_number", acc.AccountNumber),
	)
	return acc, nil
}

// Authenticate resolves a credential (account id or email) plus password to a
// signed session token. Login is refused until the holder's email address has
// been verified.
func (uc *AccountUsecase) Authenticate(ctx context.Context, accountID int64, email, password string) (string, *domain.Account, error) {
	var (
		acc *domain.Account
		err error
	)
	switch {
	case accountID > 0:
		acc, err = uc.accounts.Get(ctx, accountID)
	case strings.TrimSpace(email) != "":
		acc, err = uc.accounts.GetByEmail(ctx, email)
	default:
		return "", nil, domain.NewValidationError("account id or email is required")
	}
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return "", nil, xerrors.ErrInvalidCredentials
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return "", nil, xerrors.ErrInvalidCredentials
	}
	if !acc.EmailVerified {
		return "", nil, xerrors.ErrEmailNotVerified
	}

	token, err := uc.tokens.Mint(acc.ID, string(acc.Role))
	if err != nil {
		return "", nil, fmt.Errorf("failed to mint session token: %w", err)
	}
	return token, acc, nil
}

func accountCacheKey(id int64) string {
	return fmt.Sprintf("account:snapshot:%d", id)
}

// GetAccount reads through the snapshot cache. A cache miss or an unreachable
// redis falls back to the store.
func (uc *AccountUsecase) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	if uc.rdb != nil {
		if raw, err := uc.rdb.Get(ctx, accountCacheKey(id)).Result(); err == nil {
			var acc domain.Account
			if err := json.Unmarshal([]byte(raw), &acc); err == nil {
				return &acc, nil
			}
		}
	}

	acc, err := uc.accounts.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if uc.rdb != nil {
		if payload, err := json.Marshal(acc); err == nil {
			if err := uc.rdb.Set(ctx, accountCacheKey(id), payload, accountCacheTTL).Err(); err != nil {
				uc.log.Debug("account snapshot cache write failed", zap.Int64("account_id", id), zap.Error(err))
			}
		}
	}
	return acc, nil
}

// InvalidateSnapshot drops cached snapshots after a balance or profile change.
func (uc *AccountUsecase) InvalidateSnapshot(ctx context.Context, ids ...int64) {
	if uc.rdb == nil {
		return
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, accountCacheKey(id))
	}
	if err := uc.rdb.Del(ctx, keys...).Err(); err != nil {
		uc.log.Debug("account snapshot invalidation failed", zap.Error(err))
	}
}

func (uc *AccountUsecase) UpdateProfile(ctx context.Context, id int64, field domain.ProfileField, value string) error {
	if err := uc.accounts.UpdateProfile(ctx, id, field, value); err != nil {
		return err
	}
	uc.InvalidateSnapshot(ctx, id)
	return nil
}

// ChangePassword verifies the current plaintext against the stored hash and
// swaps in the new credential. The store-level CAS guards a concurrent change.
func (uc *AccountUsecase) ChangePassword(ctx context.Context, id int64, currentPassword, newPassword string) error {
	if newPassword == "" {
		return domain.NewValidationError("new password is required")
	}

	acc, err := uc.accounts.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(currentPassword)); err != nil {
		return xerrors.ErrUnauthorized
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return uc.accounts.UpdatePassword(ctx, id, acc.PasswordHash, string(newHash))
}

// MarkEmailVerified flips the verification gate. The actual delivery and
// confirmation of the verification mail happen outside this service.
func (uc *AccountUsecase) MarkEmailVerified(ctx context.Context, id int64) error {
	if err := uc.accounts.MarkEmailVerified(ctx, id); err != nil {
		return err
	}
	uc.InvalidateSnapshot(ctx, id)
	return nil
}
