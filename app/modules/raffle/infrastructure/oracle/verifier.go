package raffleoracle

import (
	"encoding/base64"
	"fmt"

	raffleevents "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/events"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nkeys"
)

// SignatureVerifier authenticates signed NATS messages. The signer signs the
// payload's SigningBytes with its nkey and attaches the public key and
// signature as message metadata.
type SignatureVerifier struct{}

func NewSignatureVerifier() SignatureVerifier { return SignatureVerifier{} }

// Verify authenticates a fulfillment. The verified public key becomes the caller identity.
func (SignatureVerifier) Verify(payload *raffleevents.RandomnessFulfilledPayloadV1, md message.Metadata) (string, error) {
	return verifySigned(md, raffleevents.OracleKeyMetadata, raffleevents.OracleSignatureMetadata, payload.SigningBytes())
}

// VerifyEntry authenticates an entry and checks that the participant is the
// address bound to the signing key.
// TODO: remember accepted entry signatures per round so a captured entry cannot be replayed.
func (SignatureVerifier) VerifyEntry(payload *raffleevents.EnterRequestedPayloadV1, md message.Metadata) error {
	key, err := verifySigned(md, raffleevents.EntrantKeyMetadata, raffleevents.EntrantSignatureMetadata, payload.SigningBytes())
	if err != nil {
		return err
	}
	if raffleevents.EntrantAddress(key) != payload.Participant {
		return ErrParticipantMismatch
	}
	return nil
}

func verifySigned(md message.Metadata, keyField, sigField string, data []byte) (string, error) {
	key := md.Get(keyField)
	sig := md.Get(sigField)
	if key == "" || sig == "" {
		return "", ErrMissingSignature
	}

	kp, err := nkeys.FromPublicKey(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if err := kp.Verify(data, raw); err != nil {
		return "", ErrInvalidSignature
	}
	return key, nil
}

// Sign produces the metadata an oracle attaches to a fulfillment.
func Sign(kp nkeys.KeyPair, payload *raffleevents.RandomnessFulfilledPayloadV1) (map[string]string, error) {
	return sign(kp, raffleevents.OracleKeyMetadata, raffleevents.OracleSignatureMetadata, payload.SigningBytes())
}

// SignEntry produces the metadata an entrant attaches to an entry request.
func SignEntry(kp nkeys.KeyPair, payload *raffleevents.EnterRequestedPayloadV1) (map[string]string, error) {
	return sign(kp, raffleevents.EntrantKeyMetadata, raffleevents.EntrantSignatureMetadata, payload.SigningBytes())
}

func sign(kp nkeys.KeyPair, keyField, sigField string, data []byte) (map[string]string, error) {
	pub, err := kp.PublicKey()
	if err != nil {
		return nil, err
	}
	sig, err := kp.Sign(data)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	return map[string]string{
		keyField: pub,
		sigField: base64.RawURLEncoding.EncodeToString(sig),
	}, nil
}
