// Package rafflewallet is the account ledger entrants pay from and winners are paid into.
package rafflewallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	raffledb "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/repositories"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/uptrace/bun"
)

var (
	ErrInsufficientFunds = errors.New("wallet: insufficient funds")
	ErrAccountFrozen     = errors.New("wallet: account frozen")
	ErrAccountNotFound   = errors.New("wallet: account not found")
	ErrOverflow          = errors.New("wallet: balance overflow")
)

// Account is a participant balance.
type Account struct {
	bun.BaseModel `bun:"table:raffle_accounts,alias:ra"`

	Address   common.Address  `bun:"address,pk,type:bytea"`
	Balance   raffledb.Amount `bun:"balance,type:numeric(78,0),notnull"`
	Frozen    bool            `bun:"frozen,notnull,default:false"`
	UpdatedAt time.Time       `bun:"updated_at,notnull,default:current_timestamp"`
}

// Wallet moves value in and out of participant accounts.
type Wallet interface {
	// Withdraw debits amount from account.
	Withdraw(ctx context.Context, db bun.IDB, account common.Address, amount *uint256.Int) error
	// Deposit credits amount to account, creating it when missing.
	Deposit(ctx context.Context, db bun.IDB, account common.Address, amount *uint256.Int) error
	// Balance returns the balance of account, zero when it does not exist.
	Balance(ctx context.Context, db bun.IDB, account common.Address) (*uint256.Int, error)
	// SetFrozen blocks or unblocks deposits and withdrawals on account.
	SetFrozen(ctx context.Context, db bun.IDB, account common.Address, frozen bool) error
}

// Ledger implements Wallet on Postgres. Callers pass the surrounding
// transaction so that a failed movement rolls back with it.
type Ledger struct {
	db bun.IDB
}

func NewLedger(db bun.IDB) *Ledger {
	return &Ledger{db: db}
}

var _ Wallet = (*Ledger)(nil)

func (l *Ledger) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return l.db
	}
	return db
}

func (l *Ledger) lock(ctx context.Context, db bun.IDB, account common.Address) (*Account, error) {
	acc := new(Account)
	err := db.NewSelect().
		Model(acc).
		Where("address = ?", account).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to lock account %s: %w", account.Hex(), err)
	}
	return acc, nil
}

func (l *Ledger) Withdraw(ctx context.Context, db bun.IDB, account common.Address, amount *uint256.Int) error {
	db = l.resolveDB(db)
	acc, err := l.lock(ctx, db, account)
	if errors.Is(err, ErrAccountNotFound) {
		return ErrInsufficientFunds
	}
	if err != nil {
		return err
	}
	if acc.Frozen {
		return ErrAccountFrozen
	}

	balance := acc.Balance.Uint256()
	if balance.Lt(amount) {
		return ErrInsufficientFunds
	}
	acc.Balance = raffledb.NewAmount(new(uint256.Int).Sub(balance, amount))
	return l.save(ctx, db, acc)
}

func (l *Ledger) Deposit(ctx context.Context, db bun.IDB, account common.Address, amount *uint256.Int) error {
	db = l.resolveDB(db)
	acc, err := l.lock(ctx, db, account)
	switch {
	case errors.Is(err, ErrAccountNotFound):
		acc = &Account{Address: account, Balance: raffledb.NewAmount(nil)}
	case err != nil:
		return err
	case acc.Frozen:
		return ErrAccountFrozen
	}

	sum, overflow := new(uint256.Int).AddOverflow(acc.Balance.Uint256(), amount)
	if overflow {
		return ErrOverflow
	}
	acc.Balance = raffledb.NewAmount(sum)
	return l.save(ctx, db, acc)
}

func (l *Ledger) Balance(ctx context.Context, db bun.IDB, account common.Address) (*uint256.Int, error) {
	db = l.resolveDB(db)
	acc := new(Account)
	err := db.NewSelect().
		Model(acc).
		Where("address = ?", account).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return new(uint256.Int), nil
		}
		return nil, fmt.Errorf("failed to read balance of %s: %w", account.Hex(), err)
	}
	return acc.Balance.Uint256(), nil
}

func (l *Ledger) SetFrozen(ctx context.Context, db bun.IDB, account common.Address, frozen bool) error {
	db = l.resolveDB(db)
	acc := &Account{
		Address:   account,
		Balance:   raffledb.NewAmount(nil),
		Frozen:    frozen,
		UpdatedAt: time.Now().UTC(),
	}
	_, err := db.NewInsert().
		Model(acc).
		On("CONFLICT (address) DO UPDATE").
		Set("frozen = EXCLUDED.frozen").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set frozen on %s: %w", account.Hex(), err)
	}
	return nil
}

func (l *Ledger) save(ctx context.Context, db bun.IDB, acc *Account) error {
	acc.UpdatedAt = time.Now().UTC()
	_, err := db.NewInsert().
		Model(acc).
		On("CONFLICT (address) DO UPDATE").
		Set("balance = EXCLUDED.balance").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save account %s: %w", acc.Address.Hex(), err)
	}
	return nil
}
