package raffleoracle

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	raffleevents "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/events"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/nats-io/nkeys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRequest = raffledomain.RandomWordsRequest{
	KeyHash:              common.HexToHash("0x01"),
	SubscriptionID:       7,
	RequestConfirmations: 3,
	CallbackGasLimit:     500_000,
	NumWords:             1,
	Round:                4,
}

type recordingPublisher struct {
	topic    string
	messages []*message.Message
}

func (p *recordingPublisher) Publish(topic string, messages ...*message.Message) error {
	p.topic = topic
	p.messages = append(p.messages, messages...)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestNATSCoordinator_RequestRandomWords(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewNATSCoordinator(pub, slog.Default())
	c.newID = func() string { return "fixed-id" }

	id, err := c.RequestRandomWords(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, raffledomain.RequestID("fixed-id"), id)

	assert.Equal(t, raffleevents.OracleRandomnessRequestV1, pub.topic)
	require.Len(t, pub.messages, 1)

	var got raffleevents.OracleRandomnessRequestPayloadV1
	require.NoError(t, json.Unmarshal(pub.messages[0].Payload, &got))
	assert.Equal(t, "fixed-id", got.RequestID)
	assert.Equal(t, testRequest.KeyHash, got.KeyHash)
	assert.Equal(t, testRequest.SubscriptionID, got.SubscriptionID)
	assert.Equal(t, testRequest.Round, got.Round)
	assert.Equal(t, raffleevents.RandomnessFulfilledV1, got.CallbackTopic)
}

func TestNATSCoordinator_UniqueIDs(t *testing.T) {
	c := NewNATSCoordinator(&recordingPublisher{}, slog.Default())
	a, err := c.RequestRandomWords(context.Background(), testRequest)
	require.NoError(t, err)
	b, err := c.RequestRandomWords(context.Background(), testRequest)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func newOracleServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-123","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/requests", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPCoordinator_RequestRandomWords(t *testing.T) {
	var gotAuth string
	var gotBody httpRequestBody
	srv := newOracleServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"request_id":"oracle-77"}`))
	})

	c := NewHTTPCoordinator(HTTPConfig{
		Endpoint:     srv.URL + "/requests",
		CallbackURL:  "https://raffle.example/raffle/fulfill",
		TokenURL:     srv.URL + "/token",
		ClientID:     "raffle",
		ClientSecret: "secret",
	}, slog.Default())

	id, err := c.RequestRandomWords(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, raffledomain.RequestID("oracle-77"), id)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, testRequest.Round, gotBody.Round)
	assert.Equal(t, uint32(1), gotBody.NumWords)
	assert.Equal(t, "https://raffle.example/raffle/fulfill", gotBody.CallbackURL)
}

func TestHTTPCoordinator_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "oracle rejects",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "subscription underfunded", http.StatusPaymentRequired)
			},
		},
		{
			name: "empty request id",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"request_id":""}`))
			},
			wantErr: ErrEmptyRequestID,
		},
		{
			name: "garbage response",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`not json`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newOracleServer(t, tt.handler)
			c := NewHTTPCoordinator(HTTPConfig{Endpoint: srv.URL + "/requests"}, slog.Default())

			id, err := c.RequestRandomWords(context.Background(), testRequest)
			require.Error(t, err)
			assert.Empty(t, id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestSignatureVerifier(t *testing.T) {
	oracle, err := nkeys.CreateUser()
	require.NoError(t, err)
	oraclePub, err := oracle.PublicKey()
	require.NoError(t, err)
	impostor, err := nkeys.CreateUser()
	require.NoError(t, err)
	impostorPub, err := impostor.PublicKey()
	require.NoError(t, err)

	payload := &raffleevents.RandomnessFulfilledPayloadV1{
		RequestID:   "req-1",
		RandomWords: []*uint256.Int{uint256.NewInt(99)},
	}
	signed, err := Sign(oracle, payload)
	require.NoError(t, err)

	tests := []struct {
		name       string
		payload    *raffleevents.RandomnessFulfilledPayloadV1
		metadata   message.Metadata
		wantCaller string
		wantErr    error
	}{
		{
			name:       "valid signature",
			payload:    payload,
			metadata:   message.Metadata(signed),
			wantCaller: oraclePub,
		},
		{
			name:     "unsigned",
			payload:  payload,
			metadata: message.Metadata{},
			wantErr:  ErrMissingSignature,
		},
		{
			name: "tampered word",
			payload: &raffleevents.RandomnessFulfilledPayloadV1{
				RequestID:   "req-1",
				RandomWords: []*uint256.Int{uint256.NewInt(100)},
			},
			metadata: message.Metadata(signed),
			wantErr:  ErrInvalidSignature,
		},
		{
			name:    "key swapped",
			payload: payload,
			metadata: message.Metadata{
				raffleevents.OracleKeyMetadata:       impostorPub,
				raffleevents.OracleSignatureMetadata: signed[raffleevents.OracleSignatureMetadata],
			},
			wantErr: ErrInvalidSignature,
		},
		{
			name:    "malformed key",
			payload: payload,
			metadata: message.Metadata{
				raffleevents.OracleKeyMetadata:       "not-a-key",
				raffleevents.OracleSignatureMetadata: signed[raffleevents.OracleSignatureMetadata],
			},
			wantErr: ErrInvalidSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller, err := NewSignatureVerifier().Verify(tt.payload, tt.metadata)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, caller)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCaller, caller)
		})
	}
}

func TestSignatureVerifier_VerifyEntry(t *testing.T) {
	entrant, err := nkeys.CreateUser()
	require.NoError(t, err)
	entrantPub, err := entrant.PublicKey()
	require.NoError(t, err)
	other, err := nkeys.CreateUser()
	require.NoError(t, err)
	otherPub, err := other.PublicKey()
	require.NoError(t, err)

	own := &raffleevents.EnterRequestedPayloadV1{
		Participant: raffleevents.EntrantAddress(entrantPub),
		Amount:      uint256.NewInt(100),
	}
	signed, err := SignEntry(entrant, own)
	require.NoError(t, err)

	someoneElse := &raffleevents.EnterRequestedPayloadV1{
		Participant: raffleevents.EntrantAddress(otherPub),
		Amount:      uint256.NewInt(100),
	}
	signedForOther, err := SignEntry(entrant, someoneElse)
	require.NoError(t, err)

	fulfillmentSig, err := Sign(entrant, &raffleevents.RandomnessFulfilledPayloadV1{RequestID: "req-1"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		payload  *raffleevents.EnterRequestedPayloadV1
		metadata message.Metadata
		wantErr  error
	}{
		{
			name:     "own address",
			payload:  own,
			metadata: message.Metadata(signed),
		},
		{
			name:     "unsigned",
			payload:  own,
			metadata: message.Metadata{},
			wantErr:  ErrMissingSignature,
		},
		{
			name:     "signed for another participant",
			payload:  someoneElse,
			metadata: message.Metadata(signedForOther),
			wantErr:  ErrParticipantMismatch,
		},
		{
			name: "amount changed after signing",
			payload: &raffleevents.EnterRequestedPayloadV1{
				Participant: own.Participant,
				Amount:      uint256.NewInt(1),
			},
			metadata: message.Metadata(signed),
			wantErr:  ErrInvalidSignature,
		},
		{
			name:    "oracle metadata is not an entry signature",
			payload: own,
			metadata: message.Metadata{
				raffleevents.EntrantKeyMetadata:       fulfillmentSig[raffleevents.OracleKeyMetadata],
				raffleevents.EntrantSignatureMetadata: fulfillmentSig[raffleevents.OracleSignatureMetadata],
			},
			wantErr: ErrInvalidSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewSignatureVerifier().VerifyEntry(tt.payload, tt.metadata)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
