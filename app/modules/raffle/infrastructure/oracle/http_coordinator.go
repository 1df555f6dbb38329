package raffleoracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	"github.com/Black-And-White-Club/frolf-raffle/pkg/observability/attr"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// HTTPConfig configures the HTTP oracle transport.
type HTTPConfig struct {
	Endpoint     string
	CallbackURL  string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Timeout      time.Duration
}

type httpRequestBody struct {
	KeyHash              common.Hash `json:"key_hash"`
	SubscriptionID       uint64      `json:"subscription_id"`
	RequestConfirmations uint16      `json:"request_confirmations"`
	CallbackGasLimit     uint32      `json:"callback_gas_limit"`
	NumWords             uint32      `json:"num_words"`
	Round                uint64      `json:"round"`
	CallbackURL          string      `json:"callback_url"`
}

type httpResponseBody struct {
	RequestID string `json:"request_id"`
}

// HTTPCoordinator posts randomness requests to an oracle endpoint using an
// OAuth2 client-credentials token. The oracle assigns the request id.
type HTTPCoordinator struct {
	client      *http.Client
	endpoint    string
	callbackURL string
	logger      *slog.Logger
}

func NewHTTPCoordinator(cfg HTTPConfig, logger *slog.Logger) *HTTPCoordinator {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	base := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   timeout,
	}

	client := base
	if cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		client = cc.Client(context.WithValue(context.Background(), oauth2.HTTPClient, base))
		client.Timeout = timeout
	}

	return &HTTPCoordinator{
		client:      client,
		endpoint:    cfg.Endpoint,
		callbackURL: cfg.CallbackURL,
		logger:      logger,
	}
}

func (c *HTTPCoordinator) RequestRandomWords(ctx context.Context, req raffledomain.RandomWordsRequest) (raffledomain.RequestID, error) {
	body, err := json.Marshal(httpRequestBody{
		KeyHash:              req.KeyHash,
		SubscriptionID:       req.SubscriptionID,
		RequestConfirmations: req.RequestConfirmations,
		CallbackGasLimit:     req.CallbackGasLimit,
		NumWords:             req.NumWords,
		Round:                req.Round,
		CallbackURL:          c.callbackURL,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal randomness request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build randomness request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("randomness request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("oracle responded %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out httpResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode oracle response: %w", err)
	}
	if out.RequestID == "" {
		return "", ErrEmptyRequestID
	}

	c.logger.InfoContext(ctx, "Randomness request accepted by oracle",
		attr.ExtractCorrelationID(ctx),
		attr.String("request_id", out.RequestID),
		attr.Uint64("round", req.Round),
	)
	return raffledomain.RequestID(out.RequestID), nil
}
