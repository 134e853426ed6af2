package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/atinyakov/LittleHelper/internal/db"
	"github.com/atinyakov/LittleHelper/internal/models"
)

// AccountStore persists accounts in the users table.
type AccountStore struct {
	store *Store
	// conn is set when the store owns a *sql.DB and can open transactions.
	conn *sql.DB
}

// NewAccountStore creates an AccountStore. conn is used for the
// transactional bulk delete and may be nil when store already runs in a tx.
func NewAccountStore(store *Store, conn *sql.DB) *AccountStore {
	return &AccountStore{store: store, conn: conn}
}

// Create inserts a new account. Duplicate email or username yields common.ErrConflict.
func (r *AccountStore) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	profile := a.ColorProfile
	if profile == "" {
		profile = models.DefaultColorProfile
	}
	rec, err := r.store.Create(ctx, Users, Record{
		"username":     a.Username,
		"email":        a.Email,
		"password":     a.PasswordHash,
		"name":         a.Name,
		"colorProfile": string(profile),
	})
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return accountFromRecord(rec)
}

// FindByID returns the account or nil when absent.
func (r *AccountStore) FindByID(ctx context.Context, id string) (*models.Account, error) {
	return r.findOne(ctx, Filter{ColID: id})
}

// FindByEmail returns the account with the exact email or nil.
func (r *AccountStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.findOne(ctx, Filter{"email": email})
}

// FindByUsername returns the account with the exact username or nil.
func (r *AccountStore) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	return r.findOne(ctx, Filter{"username": username})
}

func (r *AccountStore) findOne(ctx context.Context, f Filter) (*models.Account, error) {
	rec, ok, err := r.store.FindOne(ctx, Users, f)
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return accountFromRecord(rec)
}

// Update applies p and returns the updated account, or nil when absent.
func (r *AccountStore) Update(ctx context.Context, id string, p models.AccountPatch) (*models.Account, error) {
	fields := Record{}
	if p.Name != nil {
		fields["name"] = *p.Name
	}
	if p.ColorProfile != nil {
		fields["colorProfile"] = string(*p.ColorProfile)
	}
	if p.PasswordHash != nil {
		fields["password"] = *p.PasswordHash
	}
	rec, ok, err := r.store.Update(ctx, Users, id, fields)
	if err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return accountFromRecord(rec)
}

// Delete removes one account.
func (r *AccountStore) Delete(ctx context.Context, id string) (bool, error) {
	return r.store.Delete(ctx, Users, id)
}

// List returns up to limit accounts, newest first.
func (r *AccountStore) List(ctx context.Context, limit int) ([]models.Account, error) {
	recs, err := r.store.List(ctx, Users, limit)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := make([]models.Account, 0, len(recs))
	for _, rec := range recs {
		a, err := accountFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

// Count returns the number of accounts.
func (r *AccountStore) Count(ctx context.Context) (int64, error) {
	return r.store.Count(ctx, Users)
}

// DeleteAll removes every account together with its notes and tasks in one
// transaction, so engines without foreign key enforcement are left consistent.
// It returns the number of removed accounts.
func (r *AccountStore) DeleteAll(ctx context.Context) (int64, error) {
	purge := func(ctx context.Context, s *Store) (int64, error) {
		for _, t := range []*Table{Tasks, Notes} {
			if _, err := s.DeleteAll(ctx, t); err != nil {
				return 0, err
			}
		}
		return s.DeleteAll(ctx, Users)
	}

	if r.conn == nil {
		return purge(ctx, r.store)
	}
	var removed int64
	err := db.WithTx(ctx, r.conn, nil, func(ctx context.Context, tx db.DBTX) error {
		n, err := purge(ctx, r.store.WithTx(tx))
		removed = n
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete all accounts: %w", err)
	}
	return removed, nil
}

func accountFromRecord(rec Record) (*models.Account, error) {
	d := &decoder{table: Users.Name, rec: rec}
	a := &models.Account{
		ID:           d.str(ColID),
		Username:     d.str("username"),
		Email:        d.str("email"),
		PasswordHash: d.str("password"),
		Name:         d.str("name"),
		ColorProfile: models.ColorProfile(d.str("colorProfile")),
		CreatedAt:    d.timestamp(ColCreatedAt),
		UpdatedAt:    d.timestamp(ColUpdatedAt),
	}
	if d.err != nil {
		return nil, d.err
	}
	return a, nil
}
