package raffleservice

import (
	"context"
	"sync"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	raffledb "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/repositories"
	rafflewallet "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/wallet"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/uptrace/bun"
)

// ------------------------
// Fake Raffle Repo
// ------------------------

// FakeRaffleRepo keeps the raffle in memory. Hooks override single methods.
type FakeRaffleRepo struct {
	trace []string

	cfg     *raffledomain.Config
	round   *raffledomain.Round
	winners []raffledomain.Payout

	GetConfigFunc    func(ctx context.Context, db bun.IDB) (*raffledomain.Config, error)
	InitializeFunc   func(ctx context.Context, db bun.IDB, cfg raffledomain.Config, round *raffledomain.Round) error
	GetRoundFunc     func(ctx context.Context, db bun.IDB, forUpdate bool) (*raffledomain.Round, error)
	UpdateRoundFunc  func(ctx context.Context, db bun.IDB, round *raffledomain.Round) error
	AppendEntryFunc  func(ctx context.Context, db bun.IDB, roundNumber uint64, slot int, participant common.Address, amount *uint256.Int) error
	ClearEntriesFunc func(ctx context.Context, db bun.IDB, roundNumber uint64) error
	InsertWinnerFunc func(ctx context.Context, db bun.IDB, payout raffledomain.Payout) error
}

func NewFakeRaffleRepo() *FakeRaffleRepo {
	return &FakeRaffleRepo{
		trace: []string{},
	}
}

// Seed stores cfg and round as if Initialize had run.
func (f *FakeRaffleRepo) Seed(cfg raffledomain.Config, round *raffledomain.Round) {
	f.cfg = &cfg
	f.round = round.Clone()
}

func (f *FakeRaffleRepo) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *FakeRaffleRepo) GetConfig(ctx context.Context, db bun.IDB) (*raffledomain.Config, error) {
	f.record("GetConfig")
	if f.GetConfigFunc != nil {
		return f.GetConfigFunc(ctx, db)
	}
	if f.cfg == nil {
		return nil, raffledb.ErrNotFound
	}
	c := *f.cfg
	return &c, nil
}

func (f *FakeRaffleRepo) Initialize(ctx context.Context, db bun.IDB, cfg raffledomain.Config, round *raffledomain.Round) error {
	f.record("Initialize")
	if f.InitializeFunc != nil {
		return f.InitializeFunc(ctx, db, cfg, round)
	}
	if f.cfg != nil {
		return raffledb.ErrAlreadyInitialized
	}
	f.Seed(cfg, round)
	return nil
}

func (f *FakeRaffleRepo) GetRound(ctx context.Context, db bun.IDB, forUpdate bool) (*raffledomain.Round, error) {
	f.record("GetRound")
	if f.GetRoundFunc != nil {
		return f.GetRoundFunc(ctx, db, forUpdate)
	}
	if f.round == nil {
		return nil, raffledb.ErrNotFound
	}
	return f.round.Clone(), nil
}

func (f *FakeRaffleRepo) UpdateRound(ctx context.Context, db bun.IDB, round *raffledomain.Round) error {
	f.record("UpdateRound")
	if f.UpdateRoundFunc != nil {
		return f.UpdateRoundFunc(ctx, db, round)
	}
	entries := f.round.Entries
	f.round = round.Clone()
	f.round.Entries = entries
	return nil
}

func (f *FakeRaffleRepo) AppendEntry(ctx context.Context, db bun.IDB, roundNumber uint64, slot int, participant common.Address, amount *uint256.Int) error {
	f.record("AppendEntry")
	if f.AppendEntryFunc != nil {
		return f.AppendEntryFunc(ctx, db, roundNumber, slot, participant, amount)
	}
	f.round.Entries = append(f.round.Entries, participant)
	return nil
}

func (f *FakeRaffleRepo) ClearEntries(ctx context.Context, db bun.IDB, roundNumber uint64) error {
	f.record("ClearEntries")
	if f.ClearEntriesFunc != nil {
		return f.ClearEntriesFunc(ctx, db, roundNumber)
	}
	f.round.Entries = nil
	return nil
}

func (f *FakeRaffleRepo) InsertWinner(ctx context.Context, db bun.IDB, payout raffledomain.Payout) error {
	f.record("InsertWinner")
	if f.InsertWinnerFunc != nil {
		return f.InsertWinnerFunc(ctx, db, payout)
	}
	f.winners = append([]raffledomain.Payout{payout}, f.winners...)
	return nil
}

func (f *FakeRaffleRepo) ListWinners(ctx context.Context, db bun.IDB, limit int) ([]raffledomain.Payout, error) {
	f.record("ListWinners")
	if limit > 0 && limit < len(f.winners) {
		return f.winners[:limit], nil
	}
	return f.winners, nil
}

// snapshot captures the stored state and returns a func that puts it back.
func (f *FakeRaffleRepo) snapshot() func() {
	var cfg *raffledomain.Config
	if f.cfg != nil {
		c := *f.cfg
		cfg = &c
	}
	var round *raffledomain.Round
	if f.round != nil {
		round = f.round.Clone()
	}
	winners := append([]raffledomain.Payout(nil), f.winners...)
	return func() {
		f.cfg = cfg
		f.round = round
		f.winners = winners
	}
}

func (f *FakeRaffleRepo) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

var _ raffledb.Repository = (*FakeRaffleRepo)(nil)

// ------------------------
// Fake Wallet
// ------------------------

type FakeWallet struct {
	trace    *[]string
	balances map[common.Address]*uint256.Int

	WithdrawFunc func(ctx context.Context, db bun.IDB, account common.Address, amount *uint256.Int) error
	DepositFunc  func(ctx context.Context, db bun.IDB, account common.Address, amount *uint256.Int) error
}

// NewFakeWallet shares trace with the repo so call order can be asserted across both.
func NewFakeWallet(trace *[]string) *FakeWallet {
	if trace == nil {
		trace = &[]string{}
	}
	return &FakeWallet{trace: trace, balances: map[common.Address]*uint256.Int{}}
}

func (f *FakeWallet) Fund(account common.Address, amount *uint256.Int) {
	f.balances[account] = new(uint256.Int).Add(f.balanceOf(account), amount)
}

func (f *FakeWallet) balanceOf(account common.Address) *uint256.Int {
	if b, ok := f.balances[account]; ok {
		return b
	}
	return new(uint256.Int)
}

func (f *FakeWallet) snapshot() func() {
	balances := make(map[common.Address]*uint256.Int, len(f.balances))
	for k, v := range f.balances {
		balances[k] = new(uint256.Int).Set(v)
	}
	return func() { f.balances = balances }
}

func (f *FakeWallet) Withdraw(ctx context.Context, db bun.IDB, account common.Address, amount *uint256.Int) error {
	*f.trace = append(*f.trace, "Withdraw")
	if f.WithdrawFunc != nil {
		return f.WithdrawFunc(ctx, db, account, amount)
	}
	bal := f.balanceOf(account)
	if bal.Lt(amount) {
		return rafflewallet.ErrInsufficientFunds
	}
	f.balances[account] = new(uint256.Int).Sub(bal, amount)
	return nil
}

func (f *FakeWallet) Deposit(ctx context.Context, db bun.IDB, account common.Address, amount *uint256.Int) error {
	*f.trace = append(*f.trace, "Deposit")
	if f.DepositFunc != nil {
		return f.DepositFunc(ctx, db, account, amount)
	}
	f.Fund(account, amount)
	return nil
}

func (f *FakeWallet) Balance(ctx context.Context, db bun.IDB, account common.Address) (*uint256.Int, error) {
	return new(uint256.Int).Set(f.balanceOf(account)), nil
}

func (f *FakeWallet) SetFrozen(ctx context.Context, db bun.IDB, account common.Address, frozen bool) error {
	return nil
}

var _ rafflewallet.Wallet = (*FakeWallet)(nil)

// ------------------------
// Fake Transaction
// ------------------------

// fakeTxRunner restores repo and wallet when the transaction body fails.
func fakeTxRunner(repo *FakeRaffleRepo, wallet *FakeWallet) TxRunner {
	return func(ctx context.Context, fn func(ctx context.Context, db bun.IDB) error) error {
		restoreRepo := repo.snapshot()
		restoreWallet := wallet.snapshot()
		if err := fn(ctx, nil); err != nil {
			restoreRepo()
			restoreWallet()
			return err
		}
		return nil
	}
}

// ------------------------
// Fake Coordinator
// ------------------------

type FakeCoordinator struct {
	mu       sync.Mutex
	requests []raffledomain.RandomWordsRequest

	RequestRandomWordsFunc func(ctx context.Context, req raffledomain.RandomWordsRequest) (raffledomain.RequestID, error)
}

func (f *FakeCoordinator) RequestRandomWords(ctx context.Context, req raffledomain.RandomWordsRequest) (raffledomain.RequestID, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.RequestRandomWordsFunc != nil {
		return f.RequestRandomWordsFunc(ctx, req)
	}
	return "req-1", nil
}

func (f *FakeCoordinator) Requests() []raffledomain.RandomWordsRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]raffledomain.RandomWordsRequest(nil), f.requests...)
}

var _ Coordinator = (*FakeCoordinator)(nil)

// ------------------------
// Fake Publisher
// ------------------------

type FakePublisher struct {
	mu       sync.Mutex
	messages map[string][]*message.Message

	PublishFunc func(topic string, messages ...*message.Message) error
}

func NewFakePublisher() *FakePublisher {
	return &FakePublisher{messages: map[string][]*message.Message{}}
}

func (f *FakePublisher) Publish(topic string, messages ...*message.Message) error {
	if f.PublishFunc != nil {
		return f.PublishFunc(topic, messages...)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[topic] = append(f.messages[topic], messages...)
	return nil
}

func (f *FakePublisher) Close() error { return nil }

func (f *FakePublisher) Published(topic string) []*message.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[topic]
}

var _ message.Publisher = (*FakePublisher)(nil)
