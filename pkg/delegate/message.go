package delegate

import (
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Signature is the function signature whose selector tags every delegated mint message.
const Signature = "delegatedMintHashing(uint256,address)"

// Selector is the first four bytes of keccak256(Signature).
var Selector = selector() //nolint:gochecknoglobals // derived constant

func selector() [4]byte {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte(Signature))[:4])
	return sel
}

// CanonicalMessage lays out selector || nonce (32 bytes, big endian) || claimant (20 bytes).
func CanonicalMessage(nonce *uint256.Int, claimant common.Address) []byte {
	nonce32 := nonce.Bytes32()
	msg := make([]byte, 0, len(Selector)+len(nonce32)+common.AddressLength)
	msg = append(msg, Selector[:]...)
	msg = append(msg, nonce32[:]...)
	msg = append(msg, claimant.Bytes()...)
	return msg
}

// CanonicalHash is keccak256 of the canonical message.
func CanonicalHash(nonce *uint256.Int, claimant common.Address) common.Hash {
	return crypto.Keccak256Hash(CanonicalMessage(nonce, claimant))
}

// SigningHash is the digest that is actually signed: the canonical hash wrapped in the Ethereum
// personal message prefix.
func SigningHash(nonce *uint256.Int, claimant common.Address) []byte {
	return accounts.TextHash(CanonicalHash(nonce, claimant).Bytes())
}
