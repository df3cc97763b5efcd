// Package delegate verifies off-line signed mint authorizations so a third party can relay a claim
// on behalf of the signer.
//
// A claimant signs keccak256(selector || nonce || claimant) with the Ethereum personal message
// prefix. Whoever holds the resulting AuthorizationToken may submit it once.
package delegate

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/rotisserie/eris"
)

// Authority checks authorization tokens against a consumed-nonce set.
type Authority struct {
	nonces NonceSet
}

func NewAuthority(nonces NonceSet) *Authority {
	return &Authority{nonces: nonces}
}

// Verify checks the signature and that the nonce is unused, without consuming it. It returns the
// claimant on success.
func (a *Authority) Verify(token AuthorizationToken) (common.Address, error) {
	signer, err := token.Signer()
	if err != nil {
		return common.Address{}, err
	}
	if signer != token.Claimant {
		return common.Address{}, eris.Wrapf(ErrInvalidSignature, "signed by %s, claimed by %s",
			signer.Hex(), token.Claimant.Hex())
	}

	used, err := a.nonces.Contains(token.Claimant, token.Nonce)
	if err != nil {
		return common.Address{}, err
	}
	if used {
		return common.Address{}, eris.Wrapf(ErrReplayedNonce, "signer %s has already used nonce %s",
			token.Claimant.Hex(), token.Nonce.Dec())
	}
	return token.Claimant, nil
}

// Commit consumes the token's nonce. Call it only after Verify succeeded and every other step of
// the enclosing operation is known to succeed.
func (a *Authority) Commit(token AuthorizationToken) error {
	return a.nonces.Consume(token.Claimant, token.Nonce)
}

// Rollback releases a nonce taken by Commit when the enclosing operation failed afterwards.
func (a *Authority) Rollback(token AuthorizationToken) error {
	return a.nonces.Release(token.Claimant, token.Nonce)
}

// Authorize is Verify followed by Commit.
func (a *Authority) Authorize(token AuthorizationToken) (common.Address, error) {
	claimant, err := a.Verify(token)
	if err != nil {
		return common.Address{}, err
	}
	if err := a.Commit(token); err != nil {
		return common.Address{}, err
	}
	return claimant, nil
}
