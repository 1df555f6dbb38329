package rafflehandlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	raffleservice "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/application"
	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	raffledb "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/repositories"
	rafflewallet "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/wallet"
	"github.com/Black-And-White-Club/frolf-raffle/pkg/jwt"
	"github.com/Black-And-White-Club/frolf-raffle/pkg/observability/attr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel/trace"
)

const defaultWinnersLimit = 20

// HTTPHandlers serves the raffle over HTTP.
type HTTPHandlers struct {
	service raffleservice.Service
	tokens  jwt.Service
	logger  *slog.Logger
	tracer  trace.Tracer
}

func NewHTTPHandlers(service raffleservice.Service, tokens jwt.Service, logger *slog.Logger, tracer trace.Tracer) *HTTPHandlers {
	return &HTTPHandlers{
		service: service,
		tokens:  tokens,
		logger:  logger,
		tracer:  tracer,
	}
}

// Mount registers the raffle routes on r.
func (h *HTTPHandlers) Mount(r chi.Router, limiter *IPRateLimiter) {
	r.Get("/healthz", h.HandleHealth)

	r.Route("/raffle", func(r chi.Router) {
		if limiter != nil {
			r.Use(RateLimitMiddleware(limiter))
		}

		r.Get("/", h.HandleGetRaffle)
		r.Get("/players/{index}", h.HandleGetPlayer)
		r.Get("/winners", h.HandleListWinners)
		r.Get("/upkeep", h.HandleCheckUpkeep)

		r.With(BearerAuthMiddleware(h.tokens, jwt.ScopeEnter)).Post("/enter", h.HandleEnter)
		r.With(BearerAuthMiddleware(h.tokens, jwt.ScopeUpkeep)).Post("/upkeep", h.HandlePerformUpkeep)
		r.With(BearerAuthMiddleware(h.tokens, jwt.ScopeFulfill)).Post("/fulfill", h.HandleFulfill)
	})
}

type raffleView struct {
	Round                uint64           `json:"round"`
	State                string           `json:"state"`
	Players              []common.Address `json:"players"`
	Balance              *uint256.Int     `json:"balance"`
	EntranceFee          *uint256.Int     `json:"entrance_fee"`
	Interval             string           `json:"interval"`
	LastTimestamp        time.Time        `json:"last_timestamp"`
	RecentWinner         common.Address   `json:"recent_winner"`
	PendingRequest       string           `json:"pending_request,omitempty"`
	UpkeepNeeded         bool             `json:"upkeep_needed"`
	NumWords             uint32           `json:"num_words"`
	RequestConfirmations uint16           `json:"request_confirmations"`
}

type winnerView struct {
	Round      uint64         `json:"round"`
	Winner     common.Address `json:"winner"`
	Index      int            `json:"index"`
	Amount     *uint256.Int   `json:"amount"`
	RandomWord *uint256.Int   `json:"random_word"`
	RequestID  string         `json:"request_id"`
	PaidAt     time.Time      `json:"paid_at"`
}

type enterRequest struct {
	Participant common.Address `json:"participant"`
	Amount      string         `json:"amount"`
}

type enterResponse struct {
	Round uint64 `json:"round"`
	Slot  int    `json:"slot"`
}

type performUpkeepRequest struct {
	PerformData []byte `json:"perform_data,omitempty"`
}

type performUpkeepResponse struct {
	RequestID string `json:"request_id"`
}

type fulfillRequest struct {
	RequestID   string         `json:"request_id"`
	RandomWords []*uint256.Int `json:"random_words"`
}

type upkeepNotNeededResponse struct {
	Error      string       `json:"error"`
	Balance    *uint256.Int `json:"balance"`
	NumPlayers int          `json:"num_players"`
	State      uint8        `json:"state"`
}

func (h *HTTPHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandlers) HandleGetRaffle(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HTTPHandlers.HandleGetRaffle")
	defer span.End()

	snap, err := h.service.Snapshot(ctx)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	players := snap.Players
	if players == nil {
		players = []common.Address{}
	}
	writeJSON(w, http.StatusOK, raffleView{
		Round:                snap.Round,
		State:                snap.State.String(),
		Players:              players,
		Balance:              snap.Balance,
		EntranceFee:          snap.Config.EntranceFee,
		Interval:             snap.Config.Interval.String(),
		LastTimestamp:        snap.LastTimestamp,
		RecentWinner:         snap.RecentWinner,
		PendingRequest:       string(snap.PendingRequest),
		UpkeepNeeded:         snap.UpkeepNeeded,
		NumWords:             snap.Config.NumWords,
		RequestConfirmations: snap.Config.RequestConfirmations,
	})
}

func (h *HTTPHandlers) HandleGetPlayer(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HTTPHandlers.HandleGetPlayer")
	defer span.End()

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer")
		return
	}

	player, err := h.service.Player(ctx, index)
	if err != nil {
		if errors.Is(err, raffledomain.ErrPlayerIndexOutOfRange) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"index": index, "player": player})
}

func (h *HTTPHandlers) HandleListWinners(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HTTPHandlers.HandleListWinners")
	defer span.End()

	limit := defaultWinnersLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	winners, err := h.service.Winners(ctx, limit)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	out := make([]winnerView, 0, len(winners))
	for _, p := range winners {
		out = append(out, winnerView{
			Round:      p.Round,
			Winner:     p.Winner,
			Index:      p.Index,
			Amount:     p.Amount,
			RandomWord: p.RandomWord,
			RequestID:  string(p.RequestID),
			PaidAt:     p.PaidAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandlers) HandleCheckUpkeep(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HTTPHandlers.HandleCheckUpkeep")
	defer span.End()

	needed, performData, err := h.service.CheckUpkeep(ctx)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"upkeep_needed": needed, "perform_data": performData})
}

// HandleEnter admits the token subject. The body's participant, when set,
// must match the subject.
func (h *HTTPHandlers) HandleEnter(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HTTPHandlers.HandleEnter")
	defer span.End()

	claims, _ := ClaimsFromContext(ctx)
	if claims == nil || !common.IsHexAddress(claims.Subject) {
		writeError(w, http.StatusForbidden, "token subject is not an address")
		return
	}
	participant := common.HexToAddress(claims.Subject)

	var req enterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Participant != (common.Address{}) && req.Participant != participant {
		writeError(w, http.StatusForbidden, "participant does not match token subject")
		return
	}
	amount, err := uint256.FromDecimal(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "amount must be a decimal integer")
		return
	}

	entered, err := h.service.Enter(ctx, participant, amount)
	if err != nil {
		switch {
		case errors.Is(err, raffledomain.ErrInsufficientFee),
			errors.Is(err, raffledomain.ErrInvalidParticipant),
			errors.Is(err, raffledomain.ErrBalanceOverflow),
			errors.Is(err, rafflewallet.ErrInsufficientFunds):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, raffledomain.ErrRoundNotOpen):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, rafflewallet.ErrAccountFrozen):
			writeError(w, http.StatusForbidden, err.Error())
		default:
			h.internalError(w, r, err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, enterResponse{Round: entered.Round, Slot: entered.Slot})
}

func (h *HTTPHandlers) HandlePerformUpkeep(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HTTPHandlers.HandlePerformUpkeep")
	defer span.End()

	var req performUpkeepRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	requestID, err := h.service.PerformUpkeep(ctx, req.PerformData)
	if err != nil {
		var notNeeded *raffledomain.UpkeepNotNeededError
		if errors.As(err, &notNeeded) {
			writeJSON(w, http.StatusConflict, upkeepNotNeededResponse{
				Error:      err.Error(),
				Balance:    notNeeded.Balance,
				NumPlayers: notNeeded.NumPlayers,
				State:      uint8(notNeeded.State),
			})
			return
		}
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, performUpkeepResponse{RequestID: string(requestID)})
}

// HandleFulfill is the oracle's HTTP callback. The token subject is the caller identity.
func (h *HTTPHandlers) HandleFulfill(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HTTPHandlers.HandleFulfill")
	defer span.End()

	claims, _ := ClaimsFromContext(ctx)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing claims")
		return
	}

	var req fulfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	payout, err := h.service.FulfillRandomWords(ctx, claims.Subject, raffledomain.RequestID(req.RequestID), req.RandomWords)
	if err != nil {
		switch {
		case errors.Is(err, raffledomain.ErrUnauthorizedOracle):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, raffledomain.ErrUnknownRequest):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, raffledomain.ErrNoRandomWords), errors.Is(err, raffledomain.ErrNoEntries):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, raffledomain.ErrTransferFailed):
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			h.internalError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, winnerView{
		Round:      payout.Round,
		Winner:     payout.Winner,
		Index:      payout.Index,
		Amount:     payout.Amount,
		RandomWord: payout.RandomWord,
		RequestID:  string(payout.RequestID),
		PaidAt:     payout.PaidAt,
	})
}

func (h *HTTPHandlers) internalError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, raffledb.ErrNotFound) {
		writeError(w, http.StatusServiceUnavailable, "raffle not initialized")
		return
	}
	h.logger.ErrorContext(r.Context(), "HTTP request failed",
		attr.String("path", r.URL.Path),
		attr.Error(err),
	)
	writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
