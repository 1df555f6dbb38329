package rafflehandlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	raffleservice "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/application"
	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	raffledb "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/repositories"
	rafflewallet "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/wallet"
	"github.com/Black-And-White-Club/frolf-raffle/pkg/jwt"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	testSecret = "test-secret"
	testIssuer = "frolf-raffle"
)

type httpHarness struct {
	svc    *FakeRaffleService
	tokens jwt.Service
	router chi.Router
}

func newHTTPHarness(t *testing.T) *httpHarness {
	t.Helper()
	h := &httpHarness{
		svc:    NewFakeRaffleService(),
		tokens: jwt.NewService(testSecret, testIssuer),
		router: chi.NewRouter(),
	}
	NewHTTPHandlers(h.svc, h.tokens, slog.Default(), noop.NewTracerProvider().Tracer("test")).Mount(h.router, nil)
	return h
}

func (h *httpHarness) token(t *testing.T, subject, scope string) string {
	t.Helper()
	tok, err := h.tokens.GenerateToken(subject, scope, time.Minute)
	require.NoError(t, err)
	return tok
}

func (h *httpHarness) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func TestHTTP_Health(t *testing.T) {
	h := newHTTPHarness(t)
	rec := h.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHTTP_GetRaffle(t *testing.T) {
	h := newHTTPHarness(t)
	h.svc.SnapshotFunc = func(ctx context.Context) (*raffleservice.Snapshot, error) {
		return &raffleservice.Snapshot{
			Round:   2,
			State:   raffledomain.StateCalculating,
			Players: []common.Address{testParticipant},
			Balance: uint256.NewInt(100),
			Config: raffledomain.Config{
				EntranceFee: uint256.NewInt(100),
				Interval:    30 * time.Second,
				NumWords:    1,
			},
			PendingRequest: "req-9",
		}, nil
	}

	rec := h.do(http.MethodGet, "/raffle", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, float64(2), got["round"])
	assert.Equal(t, raffledomain.StateCalculating.String(), got["state"])
	assert.Equal(t, "req-9", got["pending_request"])
	assert.Equal(t, "30s", got["interval"])
	assert.Len(t, got["players"], 1)
}

func TestHTTP_GetRaffle_NotInitialized(t *testing.T) {
	h := newHTTPHarness(t)
	h.svc.SnapshotFunc = func(ctx context.Context) (*raffleservice.Snapshot, error) {
		return nil, raffledb.ErrNotFound
	}
	rec := h.do(http.MethodGet, "/raffle", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHTTP_GetPlayer(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		wantCode int
	}{
		{name: "in range", path: "/raffle/players/0", wantCode: http.StatusOK},
		{name: "out of range", path: "/raffle/players/4", wantCode: http.StatusNotFound},
		{name: "not a number", path: "/raffle/players/abc", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHTTPHarness(t)
			h.svc.PlayerFunc = func(ctx context.Context, index int) (common.Address, error) {
				if index == 0 {
					return testParticipant, nil
				}
				return common.Address{}, raffledomain.ErrPlayerIndexOutOfRange
			}

			rec := h.do(http.MethodGet, tt.path, "", "")
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestHTTP_ListWinners(t *testing.T) {
	h := newHTTPHarness(t)
	var gotLimit int
	h.svc.WinnersFunc = func(ctx context.Context, limit int) ([]raffledomain.Payout, error) {
		gotLimit = limit
		return []raffledomain.Payout{{Round: 1, Winner: testParticipant, Amount: uint256.NewInt(500), RandomWord: uint256.NewInt(9)}}, nil
	}

	rec := h.do(http.MethodGet, "/raffle/winners?limit=5", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, gotLimit)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "500", got[0]["amount"])

	rec = h.do(http.MethodGet, "/raffle/winners?limit=-1", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTP_CheckUpkeep(t *testing.T) {
	h := newHTTPHarness(t)
	h.svc.CheckUpkeepFunc = func(ctx context.Context) (bool, []byte, error) { return true, []byte{}, nil }

	rec := h.do(http.MethodGet, "/raffle/upkeep", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"upkeep_needed":true`)
}

func TestHTTP_Enter(t *testing.T) {
	subject := testParticipant.Hex()

	tests := []struct {
		name      string
		scope     string
		subject   string
		body      string
		enterErr  error
		wantCode  int
		wantEnter bool
	}{
		{
			name:      "accepted",
			scope:     jwt.ScopeEnter,
			subject:   subject,
			body:      `{"amount":"100"}`,
			wantCode:  http.StatusCreated,
			wantEnter: true,
		},
		{
			name:     "no token",
			body:     `{"amount":"100"}`,
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "wrong scope",
			scope:    jwt.ScopeUpkeep,
			subject:  subject,
			body:     `{"amount":"100"}`,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "entering for someone else",
			scope:    jwt.ScopeEnter,
			subject:  subject,
			body:     `{"participant":"0x00000000000000000000000000000000000000bb","amount":"100"}`,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "bad amount",
			scope:    jwt.ScopeEnter,
			subject:  subject,
			body:     `{"amount":"lots"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:      "fee too low",
			scope:     jwt.ScopeEnter,
			subject:   subject,
			body:      `{"amount":"1"}`,
			enterErr:  raffledomain.ErrInsufficientFee,
			wantCode:  http.StatusUnprocessableEntity,
			wantEnter: true,
		},
		{
			name:      "round closed",
			scope:     jwt.ScopeEnter,
			subject:   subject,
			body:      `{"amount":"100"}`,
			enterErr:  raffledomain.ErrRoundNotOpen,
			wantCode:  http.StatusConflict,
			wantEnter: true,
		},
		{
			name:      "frozen account",
			scope:     jwt.ScopeEnter,
			subject:   subject,
			body:      `{"amount":"100"}`,
			enterErr:  rafflewallet.ErrAccountFrozen,
			wantCode:  http.StatusForbidden,
			wantEnter: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHTTPHarness(t)
			var gotParticipant common.Address
			h.svc.EnterFunc = func(ctx context.Context, participant common.Address, amount *uint256.Int) (*raffleservice.EnterResult, error) {
				gotParticipant = participant
				if tt.enterErr != nil {
					return nil, tt.enterErr
				}
				return &raffleservice.EnterResult{Round: 1, Slot: 0}, nil
			}

			token := ""
			if tt.scope != "" {
				token = h.token(t, tt.subject, tt.scope)
			}
			rec := h.do(http.MethodPost, "/raffle/enter", token, tt.body)

			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantEnter {
				assert.Equal(t, []string{"Enter"}, h.svc.Trace())
				assert.Equal(t, testParticipant, gotParticipant)
			} else {
				assert.Empty(t, h.svc.Trace())
			}
		})
	}
}

func TestHTTP_PerformUpkeep(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		h := newHTTPHarness(t)
		rec := h.do(http.MethodPost, "/raffle/upkeep", h.token(t, "automation", jwt.ScopeUpkeep), "")
		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Contains(t, rec.Body.String(), `"request_id":"req-1"`)
	})

	t.Run("not needed", func(t *testing.T) {
		h := newHTTPHarness(t)
		h.svc.PerformUpkeepFunc = func(ctx context.Context, performData []byte) (raffledomain.RequestID, error) {
			return "", &raffledomain.UpkeepNotNeededError{Balance: uint256.NewInt(0), NumPlayers: 0, State: raffledomain.StateOpen}
		}
		rec := h.do(http.MethodPost, "/raffle/upkeep", h.token(t, "automation", jwt.ScopeUpkeep), "")
		require.Equal(t, http.StatusConflict, rec.Code)

		var got map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "0", got["balance"])
		assert.Equal(t, float64(0), got["num_players"])
		assert.Equal(t, float64(0), got["state"])
	})

	t.Run("fulfill token cannot trigger upkeep", func(t *testing.T) {
		h := newHTTPHarness(t)
		rec := h.do(http.MethodPost, "/raffle/upkeep", h.token(t, "UORACLE", jwt.ScopeFulfill), "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Empty(t, h.svc.Trace())
	})
}

func TestHTTP_Fulfill(t *testing.T) {
	tests := []struct {
		name       string
		fulfillErr error
		wantCode   int
	}{
		{name: "accepted", wantCode: http.StatusOK},
		{name: "impostor", fulfillErr: raffledomain.ErrUnauthorizedOracle, wantCode: http.StatusForbidden},
		{name: "stale request", fulfillErr: raffledomain.ErrUnknownRequest, wantCode: http.StatusConflict},
		{name: "no words", fulfillErr: raffledomain.ErrNoRandomWords, wantCode: http.StatusUnprocessableEntity},
		{name: "payout failed", fulfillErr: raffledomain.ErrTransferFailed, wantCode: http.StatusBadGateway},
		{name: "database error", fulfillErr: errors.New("boom"), wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHTTPHarness(t)
			var gotCaller string
			var gotWords []*uint256.Int
			h.svc.FulfillRandomWordsFunc = func(ctx context.Context, caller string, requestID raffledomain.RequestID, words []*uint256.Int) (*raffledomain.Payout, error) {
				gotCaller = caller
				gotWords = words
				if tt.fulfillErr != nil {
					return nil, tt.fulfillErr
				}
				return &raffledomain.Payout{RequestID: requestID, Winner: testParticipant, Amount: uint256.NewInt(100), RandomWord: words[0]}, nil
			}

			rec := h.do(http.MethodPost, "/raffle/fulfill", h.token(t, "UORACLE", jwt.ScopeFulfill),
				`{"request_id":"req-1","random_words":["12345"]}`)

			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Equal(t, "UORACLE", gotCaller)
			require.Len(t, gotWords, 1)
			assert.Equal(t, uint64(12345), gotWords[0].Uint64())
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewIPRateLimiter(0, 2)
	handler := RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/raffle", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/raffle", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "limits are per IP")
}
