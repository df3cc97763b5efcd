package server

import (
	"crypto/ecdsa"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// Envelope is a signed request. Every state-changing endpoint takes one; the operation's caller is
// the address that signed it.
type Envelope struct {
	Caller    common.Address  `json:"caller"`
	Namespace string          `json:"namespace"`
	Nonce     uint64          `json:"nonce"`
	Timestamp int64           `json:"timestamp"` // Unix milliseconds
	Body      json.RawMessage `json:"body"`
	Signature hexutil.Bytes   `json:"signature"`
}

// TimestampAt converts t to the millisecond resolution used in envelopes.
func TimestampAt(t time.Time) int64 {
	return t.UnixMilli()
}

// NewEnvelope marshals body and signs it with key for the given namespace.
func NewEnvelope(key *ecdsa.PrivateKey, namespace string, nonce uint64, body any) (*Envelope, error) {
	bz, err := json.Marshal(body)
	if err != nil {
		return nil, eris.Wrap(err, "failed to marshal envelope body")
	}
	env := &Envelope{
		Caller:    crypto.PubkeyToAddress(key.PublicKey),
		Namespace: namespace,
		Nonce:     nonce,
		Timestamp: TimestampAt(time.Now()),
		Body:      bz,
	}
	if err := env.Sign(key); err != nil {
		return nil, err
	}
	return env, nil
}

// Sign replaces the signature after the envelope fields were changed.
func (e *Envelope) Sign(key *ecdsa.PrivateKey) error {
	sig, err := crypto.Sign(e.Hash().Bytes(), key)
	if err != nil {
		return eris.Wrap(err, "failed to sign envelope")
	}
	e.Signature = sig
	return nil
}

// Hash is keccak256 over the namespace, caller, nonce, timestamp and body.
func (e *Envelope) Hash() common.Hash {
	return crypto.Keccak256Hash(
		[]byte(e.Namespace),
		e.Caller.Bytes(),
		[]byte(strconv.FormatUint(e.Nonce, 10)),
		[]byte(strconv.FormatInt(e.Timestamp, 10)),
		e.Body,
	)
}

// Verify checks that the signature was produced by Caller.
func (e *Envelope) Verify() error {
	if len(e.Signature) != crypto.SignatureLength {
		return eris.Wrapf(ErrInvalidSignature, "signature must be %d bytes, got %d",
			crypto.SignatureLength, len(e.Signature))
	}
	pub, err := crypto.SigToPub(e.Hash().Bytes(), e.Signature)
	if err != nil {
		return eris.Wrapf(ErrInvalidSignature, "recovery failed: %v", err)
	}
	if signer := crypto.PubkeyToAddress(*pub); signer != e.Caller {
		return eris.Wrapf(ErrInvalidSignature, "signed by %s, caller is %s", signer.Hex(), e.Caller.Hex())
	}
	return nil
}
