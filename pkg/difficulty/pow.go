package difficulty

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/rotisserie/eris"
)

var ErrInvalidProof = eris.New("invalid proof of work")

// Proof is a mining solution. Digest is optional; when set it must match the recomputed digest.
type Proof struct {
	Nonce  common.Hash `json:"nonce"`
	Digest common.Hash `json:"digest"`
}

// Verifier decides whether a proof satisfies a target.
type Verifier interface {
	Verify(challenge common.Hash, claimant common.Address, proof Proof, target *uint256.Int) error
}

// Digest is keccak256(challenge || claimant || nonce).
func Digest(challenge common.Hash, claimant common.Address, nonce common.Hash) common.Hash {
	return crypto.Keccak256Hash(challenge.Bytes(), claimant.Bytes(), nonce.Bytes())
}

// NextChallenge derives the challenge that follows an accepted issuance.
func NextChallenge(previous common.Hash, issued uint64) common.Hash {
	count := uint256.NewInt(issued).Bytes32()
	return crypto.Keccak256Hash(previous.Bytes(), count[:])
}

// KeccakVerifier accepts proofs whose digest, read as a big endian integer, is at most the target.
type KeccakVerifier struct{}

func (KeccakVerifier) Verify(challenge common.Hash, claimant common.Address, proof Proof, target *uint256.Int) error {
	digest := Digest(challenge, claimant, proof.Nonce)
	if proof.Digest != (common.Hash{}) && proof.Digest != digest {
		return eris.Wrapf(ErrInvalidProof, "digest mismatch: got %s, computed %s", proof.Digest.Hex(), digest.Hex())
	}
	if new(uint256.Int).SetBytes32(digest.Bytes()).Gt(target) {
		return eris.Wrapf(ErrInvalidProof, "digest %s above target %s", digest.Hex(), target.Hex())
	}
	return nil
}

// PermissiveVerifier accepts every proof. It backs test and demo mining entities where only the
// issuance accounting matters.
type PermissiveVerifier struct{}

func (PermissiveVerifier) Verify(common.Hash, common.Address, Proof, *uint256.Int) error {
	return nil
}

// Solve searches nonces starting at start until one satisfies target, giving up after maxTries.
func Solve(challenge common.Hash, claimant common.Address, target *uint256.Int, start uint64, maxTries uint64) (Proof, bool) {
	for i := range maxTries {
		nonce := common.Hash(uint256.NewInt(start + i).Bytes32())
		digest := Digest(challenge, claimant, nonce)
		if !new(uint256.Int).SetBytes32(digest.Bytes()).Gt(target) {
			return Proof{Nonce: nonce, Digest: digest}, true
		}
	}
	return Proof{}, false
}
