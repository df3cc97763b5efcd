package delegate

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/goccy/go-json"
	"github.com/holiman/uint256"
	"github.com/rotisserie/eris"
)

const signatureLength = crypto.SignatureLength

// AuthorizationToken is produced by a claimant outside the system and relayed by anyone.
type AuthorizationToken struct {
	Nonce     *uint256.Int
	Claimant  common.Address
	Signature []byte
}

// NewAuthorizationToken signs an authorization for the key's address. This runs on the claimant's
// side; the engine never sees the key.
func NewAuthorizationToken(key *ecdsa.PrivateKey, nonce *uint256.Int) (AuthorizationToken, error) {
	if nonce == nil {
		return AuthorizationToken{}, eris.Wrap(ErrInvalidToken, "nonce is required")
	}
	claimant := crypto.PubkeyToAddress(key.PublicKey)
	sig, err := crypto.Sign(SigningHash(nonce, claimant), key)
	if err != nil {
		return AuthorizationToken{}, eris.Wrap(err, "failed to sign authorization")
	}
	return AuthorizationToken{
		Nonce:     new(uint256.Int).Set(nonce),
		Claimant:  claimant,
		Signature: sig,
	}, nil
}

// Signer recovers the address that produced the token's signature. Both raw recovery ids (0/1) and
// the 27/28 form emitted by wallets are accepted.
func (t AuthorizationToken) Signer() (common.Address, error) {
	if t.Nonce == nil {
		return common.Address{}, eris.Wrap(ErrInvalidToken, "nonce is required")
	}
	if len(t.Signature) != signatureLength {
		return common.Address{}, eris.Wrapf(ErrInvalidSignature, "signature must be %d bytes, got %d",
			signatureLength, len(t.Signature))
	}

	sig := make([]byte, signatureLength)
	copy(sig, t.Signature)
	if sig[crypto.RecoveryIDOffset] >= 27 { //nolint:mnd // legacy v offset
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(SigningHash(t.Nonce, t.Claimant), sig)
	if err != nil {
		return common.Address{}, eris.Wrapf(ErrInvalidSignature, "recovery failed: %v", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

type tokenJSON struct {
	Nonce     string         `json:"nonce"`
	Claimant  common.Address `json:"claimant"`
	Signature hexutil.Bytes  `json:"signature"`
}

func (t AuthorizationToken) MarshalJSON() ([]byte, error) {
	nonce := "0"
	if t.Nonce != nil {
		nonce = t.Nonce.Dec()
	}
	return json.Marshal(tokenJSON{Nonce: nonce, Claimant: t.Claimant, Signature: t.Signature})
}

func (t *AuthorizationToken) UnmarshalJSON(data []byte) error {
	var raw tokenJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "failed to decode authorization token")
	}
	nonce, err := uint256.FromDecimal(raw.Nonce)
	if err != nil {
		return eris.Wrapf(ErrInvalidToken, "invalid nonce %q", raw.Nonce)
	}
	t.Nonce = nonce
	t.Claimant = raw.Claimant
	t.Signature = raw.Signature
	return nil
}
