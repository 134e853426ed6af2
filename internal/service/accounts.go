// Package service holds the business logic for accounts, notes, tasks and
// administration, delegating persistence to repository interfaces.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/atinyakov/LittleHelper/internal/auth"
	"github.com/atinyakov/LittleHelper/internal/common"
	"github.com/atinyakov/LittleHelper/internal/models"
)

// MinPasswordLength applies to passwords set through ChangePassword.
const MinPasswordLength = 8

// AccountRepository defines the persistence operations needed by AccountService.
type AccountRepository interface {
	// Create stores a new account and fails with common.ErrConflict on a
	// duplicate email or username.
	Create(ctx context.Context, a *models.Account) (*models.Account, error)
	// FindByID returns nil, nil when the account does not exist.
	FindByID(ctx context.Context, id string) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByUsername(ctx context.Context, username string) (*models.Account, error)
	// Update returns nil, nil when the account does not exist.
	Update(ctx context.Context, id string, p models.AccountPatch) (*models.Account, error)
}

// TokenIssuer signs access tokens for authenticated accounts.
type TokenIssuer interface {
	Generate(userID string) (string, error)
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Session is the result of a successful login.
type Session struct {
	Account *models.Account
	Token   string
}

// AccountService implements registration, login and profile changes.
type AccountService struct {
	repo   AccountRepository
	tokens TokenIssuer
}

// NewAccountService constructs an AccountService.
func NewAccountService(repo AccountRepository, tokens TokenIssuer) *AccountService {
	return &AccountService{repo: repo, tokens: tokens}
}

// Register creates an account. Every field is required; an existing email
// or username yields common.ErrConflict.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.Account, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if in.Username == "" || in.Email == "" || in.Password == "" || in.Name == "" {
		return nil, fmt.Errorf("%w: username, email, password and name are required", common.ErrValidation)
	}

	existing, err := s.repo.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		existing, err = s.repo.FindByUsername(ctx, in.Username)
		if err != nil {
			return nil, err
		}
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: user already exists", common.ErrConflict)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, &models.Account{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Name:         in.Name,
		ColorProfile: models.DefaultColorProfile,
	})
}

// Login verifies the credentials and issues a token. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", common.ErrValidation)
	}
	a, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("%w: invalid credentials", common.ErrUnauthorized)
	}
	ok, err := auth.CheckPassword(a.PasswordHash, password)
	if err != nil || !ok {
		return nil, fmt.Errorf("%w: invalid credentials", common.ErrUnauthorized)
	}

	token, err := s.tokens.Generate(a.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Account: a, Token: token}, nil
}

// Me returns the account behind an authenticated request.
func (s *AccountService) Me(ctx context.Context, userID string) (*models.Account, error) {
	a, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("user %s: %w", userID, common.ErrNotFound)
	}
	return a, nil
}

// UpdateColorProfile switches the account to one of the known profiles.
func (s *AccountService) UpdateColorProfile(ctx context.Context, userID string, profile models.ColorProfile) (*models.Account, error) {
	if !profile.Valid() {
		return nil, fmt.Errorf("%w: invalid color profile %q", common.ErrValidation, profile)
	}
	a, err := s.repo.Update(ctx, userID, models.AccountPatch{ColorProfile: &profile})
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("user %s: %w", userID, common.ErrNotFound)
	}
	return a, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *AccountService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if current == "" || next == "" {
		return fmt.Errorf("%w: current password and new password are required", common.ErrValidation)
	}
	a, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	ok, err := auth.CheckPassword(a.PasswordHash, current)
	if err != nil || !ok {
		return fmt.Errorf("%w: current password is incorrect", common.ErrUnauthorized)
	}
	if len(next) < MinPasswordLength {
		return fmt.Errorf("%w: new password must be at least %d characters long", common.ErrValidation, MinPasswordLength)
	}

	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	updated, err := s.repo.Update(ctx, userID, models.AccountPatch{PasswordHash: &hash})
	if err != nil {
		return err
	}
	if updated == nil {
		return fmt.Errorf("user %s: %w", userID, common.ErrNotFound)
	}
	return nil
}
