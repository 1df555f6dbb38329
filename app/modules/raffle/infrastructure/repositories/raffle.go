package raffledb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/uptrace/bun"
)

// ErrNotFound is returned when the raffle has not been initialized.
var ErrNotFound = errors.New("raffle not found")

// ErrAlreadyInitialized is returned when Initialize runs twice.
var ErrAlreadyInitialized = errors.New("raffle already initialized")

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new raffle repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

// resolveDB returns the provided db handle, falling back to the repository's
// default connection if db is nil.
func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

func (r *Impl) GetConfig(ctx context.Context, db bun.IDB) (*raffledomain.Config, error) {
	db = r.resolveDB(db)
	rec := new(RoundRecord)
	err := db.NewSelect().
		Model(rec).
		Column("config").
		Where("id = ?", singletonID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get raffle config: %w", err)
	}
	return &rec.Config, nil
}

func (r *Impl) Initialize(ctx context.Context, db bun.IDB, cfg raffledomain.Config, round *raffledomain.Round) error {
	db = r.resolveDB(db)
	rec := roundRecordFrom(round, cfg)
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	res, err := db.NewInsert().
		Model(rec).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize raffle: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAlreadyInitialized
	}
	return nil
}

func (r *Impl) GetRound(ctx context.Context, db bun.IDB, forUpdate bool) (*raffledomain.Round, error) {
	db = r.resolveDB(db)
	rec := new(RoundRecord)
	q := db.NewSelect().
		Model(rec).
		Where("id = ?", singletonID)
	if forUpdate {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get raffle round: %w", err)
	}

	var entries []EntryRecord
	err := db.NewSelect().
		Model(&entries).
		Where("round_number = ?", rec.RoundNumber).
		Order("slot ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get raffle entries: %w", err)
	}

	return rec.toDomain(entries), nil
}

func (r *Impl) UpdateRound(ctx context.Context, db bun.IDB, round *raffledomain.Round) error {
	db = r.resolveDB(db)
	rec := roundRecordFrom(round, raffledomain.Config{})
	rec.UpdatedAt = time.Now().UTC()

	res, err := db.NewUpdate().
		Model(rec).
		Column("round_number", "state", "started_at", "balance", "pending_request", "recent_winner", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update raffle round: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Impl) AppendEntry(ctx context.Context, db bun.IDB, roundNumber uint64, slot int, participant common.Address, amount *uint256.Int) error {
	db = r.resolveDB(db)
	entry := &EntryRecord{
		RoundNumber: int64(roundNumber),
		Slot:        slot,
		Participant: participant,
		Amount:      NewAmount(amount),
		EnteredAt:   time.Now().UTC(),
	}
	if _, err := db.NewInsert().Model(entry).Exec(ctx); err != nil {
		return fmt.Errorf("failed to append raffle entry: %w", err)
	}
	return nil
}

func (r *Impl) ClearEntries(ctx context.Context, db bun.IDB, roundNumber uint64) error {
	db = r.resolveDB(db)
	_, err := db.NewDelete().
		Model((*EntryRecord)(nil)).
		Where("round_number = ?", int64(roundNumber)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear raffle entries: %w", err)
	}
	return nil
}

func (r *Impl) InsertWinner(ctx context.Context, db bun.IDB, payout raffledomain.Payout) error {
	db = r.resolveDB(db)
	rec := &WinnerRecord{
		RoundNumber: int64(payout.Round),
		Winner:      payout.Winner,
		WinnerIndex: payout.Index,
		Payout:      NewAmount(payout.Amount),
		RandomWord:  NewAmount(payout.RandomWord),
		RequestID:   string(payout.RequestID),
		PaidAt:      payout.PaidAt,
	}
	if _, err := db.NewInsert().Model(rec).Exec(ctx); err != nil {
		return fmt.Errorf("failed to record raffle winner: %w", err)
	}
	return nil
}

func (r *Impl) ListWinners(ctx context.Context, db bun.IDB, limit int) ([]raffledomain.Payout, error) {
	db = r.resolveDB(db)
	var recs []WinnerRecord
	q := db.NewSelect().
		Model(&recs).
		Order("round_number DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to list raffle winners: %w", err)
	}

	out := make([]raffledomain.Payout, len(recs))
	for i := range recs {
		out[i] = recs[i].toDomain()
	}
	return out, nil
}
