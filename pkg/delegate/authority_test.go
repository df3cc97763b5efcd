package delegate_test

import (
	"crypto/ecdsa"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/goccy/go-json"
	"github.com/holiman/uint256"
	"github.com/mithril-labs/quarry/pkg/delegate"
	"github.com/redis/go-redis/v9"
	"gotest.tools/v3/assert"
)

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	assert.NilError(t, err)
	return key
}

func newRedisNonceSet(t *testing.T) *delegate.RedisNonceSet {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr:     s.Addr(),
		Password: "", // no password set
		DB:       0,  // use default DB
	})
	t.Cleanup(func() { _ = client.Close() })
	return delegate.NewRedisNonceSet(client, "quarry")
}

func TestCanonicalMessageLayout(t *testing.T) {
	nonce := uint256.NewInt(0x0102)
	claimant := common.HexToAddress("0x00000000000000000000000000000000000000a1")

	msg := delegate.CanonicalMessage(nonce, claimant)
	assert.Equal(t, len(msg), 4+32+20)
	assert.DeepEqual(t, msg[:4], delegate.Selector[:])
	assert.DeepEqual(t, msg[:4], crypto.Keccak256([]byte("delegatedMintHashing(uint256,address)"))[:4])
	assert.Equal(t, msg[34], byte(0x01))
	assert.Equal(t, msg[35], byte(0x02))
	assert.DeepEqual(t, msg[36:], claimant.Bytes())

	assert.Equal(t, delegate.CanonicalHash(nonce, claimant), crypto.Keccak256Hash(msg))
	assert.Assert(t, delegate.CanonicalHash(uint256.NewInt(1), claimant) != delegate.CanonicalHash(nonce, claimant))
}

func TestAuthorizationTokenRoundTrip(t *testing.T) {
	key := newKey(t)
	token, err := delegate.NewAuthorizationToken(key, uint256.NewInt(7))
	assert.NilError(t, err)
	assert.Equal(t, token.Claimant, crypto.PubkeyToAddress(key.PublicKey))

	signer, err := token.Signer()
	assert.NilError(t, err)
	assert.Equal(t, signer, token.Claimant)

	bz, err := json.Marshal(token)
	assert.NilError(t, err)
	var decoded delegate.AuthorizationToken
	assert.NilError(t, json.Unmarshal(bz, &decoded))
	assert.Equal(t, decoded.Nonce.Uint64(), uint64(7))
	assert.Equal(t, decoded.Claimant, token.Claimant)
	assert.DeepEqual(t, decoded.Signature, token.Signature)
}

func TestAuthorityAcceptsLegacyRecoveryID(t *testing.T) {
	key := newKey(t)
	token, err := delegate.NewAuthorizationToken(key, uint256.NewInt(1))
	assert.NilError(t, err)
	token.Signature[crypto.RecoveryIDOffset] += 27

	authority := delegate.NewAuthority(delegate.NewMemoryNonceSet())
	claimant, err := authority.Authorize(token)
	assert.NilError(t, err)
	assert.Equal(t, claimant, crypto.PubkeyToAddress(key.PublicKey))
}

func TestAuthorityRejectsForgedClaims(t *testing.T) {
	signerKey := newKey(t)
	otherKey := newKey(t)
	authority := delegate.NewAuthority(delegate.NewMemoryNonceSet())

	token, err := delegate.NewAuthorizationToken(signerKey, uint256.NewInt(1))
	assert.NilError(t, err)

	// Claiming someone else's identity.
	forged := token
	forged.Claimant = crypto.PubkeyToAddress(otherKey.PublicKey)
	_, err = authority.Verify(forged)
	assert.ErrorIs(t, err, delegate.ErrInvalidSignature)

	// Changing the nonce invalidates the signature.
	forged = token
	forged.Nonce = uint256.NewInt(2)
	_, err = authority.Verify(forged)
	assert.ErrorIs(t, err, delegate.ErrInvalidSignature)

	// Truncated signature.
	forged = token
	forged.Signature = token.Signature[:64]
	_, err = authority.Verify(forged)
	assert.ErrorIs(t, err, delegate.ErrInvalidSignature)

	// Missing nonce.
	forged = token
	forged.Nonce = nil
	_, err = authority.Verify(forged)
	assert.ErrorIs(t, err, delegate.ErrInvalidToken)

	// The genuine token is still usable afterwards.
	_, err = authority.Authorize(token)
	assert.NilError(t, err)
}

func TestAuthorityNonceSingleUse(t *testing.T) {
	backends := map[string]func(t *testing.T) delegate.NonceSet{
		"memory": func(*testing.T) delegate.NonceSet { return delegate.NewMemoryNonceSet() },
		"redis":  func(t *testing.T) delegate.NonceSet { return newRedisNonceSet(t) },
	}

	for name, newSet := range backends {
		t.Run(name, func(t *testing.T) {
			key := newKey(t)
			authority := delegate.NewAuthority(newSet(t))
			token, err := delegate.NewAuthorizationToken(key, uint256.NewInt(42))
			assert.NilError(t, err)

			_, err = authority.Verify(token)
			assert.NilError(t, err)
			// Verify alone does not consume.
			_, err = authority.Verify(token)
			assert.NilError(t, err)

			_, err = authority.Authorize(token)
			assert.NilError(t, err)
			for range 5 {
				_, err = authority.Authorize(token)
				assert.ErrorIs(t, err, delegate.ErrReplayedNonce)
			}

			// Rolling back frees the nonce for exactly one more use.
			assert.NilError(t, authority.Rollback(token))
			_, err = authority.Authorize(token)
			assert.NilError(t, err)
			_, err = authority.Authorize(token)
			assert.ErrorIs(t, err, delegate.ErrReplayedNonce)

			// A fresh nonce from the same signer still works.
			next, err := delegate.NewAuthorizationToken(key, uint256.NewInt(43))
			assert.NilError(t, err)
			_, err = authority.Authorize(next)
			assert.NilError(t, err)
		})
	}
}

func TestRedisNonceSetKeepsEveryNonce(t *testing.T) {
	set := newRedisNonceSet(t)
	signer := common.HexToAddress("0x00000000000000000000000000000000000000a1")

	for i := uint64(0); i < 3000; i += 3 {
		assert.NilError(t, set.Consume(signer, uint256.NewInt(i)))
	}
	// No sliding window: the very first nonce is still rejected.
	err := set.Consume(signer, uint256.NewInt(0))
	assert.ErrorIs(t, err, delegate.ErrReplayedNonce)

	found, err := set.Contains(signer, uint256.NewInt(3))
	assert.NilError(t, err)
	assert.Assert(t, found)
	found, err = set.Contains(signer, uint256.NewInt(4))
	assert.NilError(t, err)
	assert.Assert(t, !found)

	huge := new(uint256.Int).SetAllOne()
	assert.NilError(t, set.Consume(signer, huge))
	assert.ErrorIs(t, set.Consume(signer, huge), delegate.ErrReplayedNonce)
}

func TestMemoryNonceSetExportImport(t *testing.T) {
	a := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	b := common.HexToAddress("0x00000000000000000000000000000000000000b2")

	set := delegate.NewMemoryNonceSet()
	assert.NilError(t, set.Consume(b, uint256.NewInt(5)))
	assert.NilError(t, set.Consume(a, uint256.NewInt(9)))
	assert.NilError(t, set.Consume(a, uint256.NewInt(2)))

	exported := set.Export()
	assert.Equal(t, len(exported), 3)
	assert.Equal(t, exported[0].Signer, a)
	assert.Equal(t, exported[0].Nonce.Uint64(), uint64(2))
	assert.Equal(t, exported[2].Signer, b)

	restored := delegate.NewMemoryNonceSet()
	restored.Import(exported)
	assert.ErrorIs(t, restored.Consume(a, uint256.NewInt(9)), delegate.ErrReplayedNonce)
	assert.NilError(t, restored.Consume(a, uint256.NewInt(10)))
}
