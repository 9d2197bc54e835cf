package barcode

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"healthcert/pkg/platform/sentinel"
)

// Signer attaches key-identifier metadata and a signature to an encoded
// payload. Production deployments back this with an HSM; the pipeline only
// depends on the interface.
type Signer interface {
	SignAndEncode(ctx context.Context, payload []byte, keyID string) ([]byte, error)
}

// signedMessage is the signed envelope wrapped around a payload before
// compression: key identifier, payload bytes, signature.
type signedMessage struct {
	KeyID     string `cbor:"1,keyasint"`
	Payload   []byte `cbor:"2,keyasint"`
	Signature []byte `cbor:"3,keyasint"`
}

// LocalSigner signs payloads with per-key HMAC-SHA256 secrets held in memory.
type LocalSigner struct {
	secrets map[string][]byte
}

// NewLocalSigner builds a signer from keyID->secret material.
func NewLocalSigner(secrets map[string][]byte) *LocalSigner {
	return &LocalSigner{secrets: secrets}
}

func (s *LocalSigner) SignAndEncode(_ context.Context, payload []byte, keyID string) ([]byte, error) {
	secret, ok := s.secrets[keyID]
	if !ok {
		return nil, fmt.Errorf("signing key %q: %w", keyID, sentinel.ErrNotFound)
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)

	envelope, err := cbor.Marshal(signedMessage{
		KeyID:     keyID,
		Payload:   payload,
		Signature: mac.Sum(nil),
	})
	if err != nil {
		return nil, fmt.Errorf("encode signed envelope: %w", err)
	}
	return envelope, nil
}

// openEnvelope unwraps a signed envelope back to its payload bytes. Decoders
// and round-trip tests use it; signature verification belongs to scanning
// apps, not this core.
func openEnvelope(data []byte) ([]byte, string, error) {
	var msg signedMessage
	if err := cbor.Unmarshal(data, &msg); err != nil {
		return nil, "", fmt.Errorf("decode signed envelope: %w", err)
	}
	return msg.Payload, msg.KeyID, nil
}
