package raffleintegrationtests

import (
	"context"
	"log"
	"sync"
	"testing"
	"time"

	rafflemodule "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle"
	raffleevents "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/events"
	raffleoracle "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/oracle"
	rafflewallet "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/wallet"
	"github.com/Black-And-White-Club/frolf-raffle/config"
	"github.com/Black-And-White-Club/frolf-raffle/integration_tests/testutils"
	"github.com/Black-And-White-Club/frolf-raffle/pkg/eventbus"
	"github.com/Black-And-White-Club/frolf-raffle/pkg/observability"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/nats-io/nkeys"
)

const (
	testEntranceFee = "1000"
	testInterval    = time.Second
)

var (
	testEnv     *testutils.TestEnvironment
	testEnvOnce sync.Once
	testEnvErr  error
)

type RaffleTestDeps struct {
	*testutils.TestEnvironment
	Module   *rafflemodule.Module
	Router   *message.Router
	EventBus eventbus.EventBus
	Observer eventbus.EventBus
	Wallet   *rafflewallet.Ledger
	Oracle   nkeys.KeyPair
	Data     *testutils.TestDataGenerator
}

// Player is an entrant whose address is bound to its nkey.
type Player struct {
	Key     nkeys.KeyPair
	Address common.Address
}

// NewPlayers creates n entrants with fresh keys.
func NewPlayers(t *testing.T, n int) []Player {
	t.Helper()

	players := make([]Player, n)
	for i := range players {
		kp, err := nkeys.CreateUser()
		if err != nil {
			t.Fatalf("Failed to create player key: %v", err)
		}
		pub, err := kp.PublicKey()
		if err != nil {
			t.Fatalf("Failed to read player key: %v", err)
		}
		players[i] = Player{Key: kp, Address: raffleevents.EntrantAddress(pub)}
	}
	return players
}

func addresses(players []Player) []common.Address {
	out := make([]common.Address, len(players))
	for i, p := range players {
		out[i] = p.Address
	}
	return out
}

func GetTestEnv(t *testing.T) *testutils.TestEnvironment {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testEnvOnce.Do(func() {
		log.Println("Initializing raffle integration test environment...")
		testEnv, testEnvErr = testutils.NewTestEnvironment(t)
	})

	if testEnvErr != nil {
		t.Fatalf("Raffle test environment initialization failed: %v", testEnvErr)
	}
	return testEnv
}

// SetupRaffle builds the raffle module against fresh tables and streams and
// runs its router until the test ends. opts adjust the configuration first.
func SetupRaffle(t *testing.T, opts ...func(*config.Config)) RaffleTestDeps {
	t.Helper()

	env := GetTestEnv(t)

	resetCtx, resetCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer resetCancel()
	if err := env.Reset(resetCtx); err != nil {
		t.Fatalf("Failed to reset environment: %v", err)
	}

	oracle, err := nkeys.CreateUser()
	if err != nil {
		t.Fatalf("Failed to create oracle key: %v", err)
	}
	oracleKey, err := oracle.PublicKey()
	if err != nil {
		t.Fatalf("Failed to read oracle key: %v", err)
	}

	cfg := *env.Config
	cfg.Raffle = config.RaffleConfig{
		EntranceFee:          testEntranceFee,
		Interval:             testInterval,
		KeyHash:              "0x474e34a077df58807dbe9c96d3c009b23b3c6d0cce433e59bbf5b34f823bc56c",
		SubscriptionID:       1,
		RequestConfirmations: 3,
		CallbackGasLimit:     500000,
	}
	cfg.Oracle = config.OracleConfig{
		Identity:  oracleKey,
		Transport: config.OracleTransportNATS,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	bus := env.NewEventBus(t, "raffle")
	observer := env.NewEventBus(t, "observer")

	routerRunCtx, routerRunCancel := context.WithCancel(env.Ctx)

	watermillRouter, err := message.NewRouter(message.RouterConfig{CloseTimeout: 2 * time.Second}, watermill.NopLogger{})
	if err != nil {
		routerRunCancel()
		t.Fatalf("Failed to create Watermill router: %v", err)
	}

	obs := observability.NewNoop()
	module, err := rafflemodule.NewRaffleModule(env.Ctx, &cfg, obs, bus, watermillRouter, nil, env.DB, routerRunCtx)
	if err != nil {
		routerRunCancel()
		t.Fatalf("Failed to create raffle module: %v", err)
	}

	routerWg := &sync.WaitGroup{}
	routerWg.Add(1)
	go func() {
		defer routerWg.Done()
		if runErr := watermillRouter.Run(routerRunCtx); runErr != nil && runErr != context.Canceled {
			t.Errorf("Watermill router stopped with error: %v", runErr)
		}
	}()

	select {
	case <-watermillRouter.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("Watermill router did not start")
	}

	t.Cleanup(func() {
		routerRunCancel()
		if err := module.Close(); err != nil {
			t.Logf("Warning: failed to close raffle module: %v", err)
		}

		waitCh := make(chan struct{})
		go func() {
			routerWg.Wait()
			close(waitCh)
		}()
		select {
		case <-waitCh:
		case <-time.After(5 * time.Second):
			t.Log("WARNING: router goroutine did not finish within timeout")
		}
	})

	return RaffleTestDeps{
		TestEnvironment: env,
		Module:          module,
		Router:          watermillRouter,
		EventBus:        bus,
		Observer:        observer,
		Wallet:          rafflewallet.NewLedger(env.DB),
		Oracle:          oracle,
		Data:            testutils.NewTestDataGenerator(),
	}
}

// Fund credits each account with amount.
func (d RaffleTestDeps) Fund(t *testing.T, amount *uint256.Int, accounts ...common.Address) {
	t.Helper()

	for _, account := range accounts {
		if err := d.Wallet.Deposit(d.Ctx, d.DB, account, amount); err != nil {
			t.Fatalf("Failed to fund %s: %v", account.Hex(), err)
		}
	}
}

// Balance returns the wallet balance of account.
func (d RaffleTestDeps) Balance(t *testing.T, account common.Address) *uint256.Int {
	t.Helper()

	balance, err := d.Wallet.Balance(d.Ctx, d.DB, account)
	if err != nil {
		t.Fatalf("Failed to read balance of %s: %v", account.Hex(), err)
	}
	return balance
}

// Enter publishes an entry for player signed with its own key.
func (d RaffleTestDeps) Enter(t *testing.T, player Player, amount *uint256.Int) {
	t.Helper()
	d.EnterSignedBy(t, player.Key, player.Address, amount)
}

// EnterSignedBy publishes an entry for participant signed with signer.
func (d RaffleTestDeps) EnterSignedBy(t *testing.T, signer nkeys.KeyPair, participant common.Address, amount *uint256.Int) {
	t.Helper()

	payload := &raffleevents.EnterRequestedPayloadV1{Participant: participant, Amount: amount}
	sig, err := raffleoracle.SignEntry(signer, payload)
	if err != nil {
		t.Fatalf("Failed to sign entry: %v", err)
	}
	testutils.PublishPayload(t, d.EventBus, raffleevents.EnterRequestedV1, payload, sig)
}
