package raffledb

import (
	"time"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/uptrace/bun"
)

// singletonID is the primary key of the only row in raffle_rounds.
const singletonID = 1

// RoundRecord is the live round together with the configuration it was created with.
type RoundRecord struct {
	bun.BaseModel `bun:"table:raffle_rounds,alias:rr"`

	ID             int                 `bun:"id,pk"`
	RoundNumber    int64               `bun:"round_number,notnull"`
	State          int16               `bun:"state,notnull"`
	StartedAt      time.Time           `bun:"started_at,notnull"`
	Balance        Amount              `bun:"balance,type:numeric(78,0),notnull"`
	PendingRequest string              `bun:"pending_request,notnull,default:''"`
	RecentWinner   common.Address      `bun:"recent_winner,type:bytea,notnull"`
	Config         raffledomain.Config `bun:"config,type:jsonb,notnull"`
	CreatedAt      time.Time           `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt      time.Time           `bun:"updated_at,notnull,default:current_timestamp"`
}

// EntryRecord is one slot of the entry ledger.
type EntryRecord struct {
	bun.BaseModel `bun:"table:raffle_entries,alias:re"`

	RoundNumber int64          `bun:"round_number,pk"`
	Slot        int            `bun:"slot,pk"`
	Participant common.Address `bun:"participant,type:bytea,notnull"`
	Amount      Amount         `bun:"amount,type:numeric(78,0),notnull"`
	EnteredAt   time.Time      `bun:"entered_at,notnull,default:current_timestamp"`
}

// WinnerRecord is the outcome of a completed round.
type WinnerRecord struct {
	bun.BaseModel `bun:"table:raffle_winners,alias:rw"`

	RoundNumber int64          `bun:"round_number,pk"`
	Winner      common.Address `bun:"winner,type:bytea,notnull"`
	WinnerIndex int            `bun:"winner_index,notnull"`
	Payout      Amount         `bun:"payout,type:numeric(78,0),notnull"`
	RandomWord  Amount         `bun:"random_word,type:numeric(78,0),notnull"`
	RequestID   string         `bun:"request_id,notnull"`
	PaidAt      time.Time      `bun:"paid_at,notnull"`
}

func (r *RoundRecord) toDomain(entries []EntryRecord) *raffledomain.Round {
	round := &raffledomain.Round{
		Number:         uint64(r.RoundNumber),
		State:          raffledomain.State(r.State),
		StartedAt:      r.StartedAt,
		Balance:        r.Balance.Uint256(),
		PendingRequest: raffledomain.RequestID(r.PendingRequest),
		RecentWinner:   r.RecentWinner,
	}
	if len(entries) > 0 {
		round.Entries = make([]common.Address, len(entries))
		for i, e := range entries {
			round.Entries[i] = e.Participant
		}
	}
	return round
}

func roundRecordFrom(round *raffledomain.Round, cfg raffledomain.Config) *RoundRecord {
	return &RoundRecord{
		ID:             singletonID,
		RoundNumber:    int64(round.Number),
		State:          int16(round.State),
		StartedAt:      round.StartedAt,
		Balance:        NewAmount(round.Balance),
		PendingRequest: string(round.PendingRequest),
		RecentWinner:   round.RecentWinner,
		Config:         cfg,
	}
}

func (w *WinnerRecord) toDomain() raffledomain.Payout {
	return raffledomain.Payout{
		Round:      uint64(w.RoundNumber),
		Winner:     w.Winner,
		Index:      w.WinnerIndex,
		Amount:     w.Payout.Uint256(),
		RandomWord: w.RandomWord.Uint256(),
		RequestID:  raffledomain.RequestID(w.RequestID),
		PaidAt:     w.PaidAt,
	}
}
