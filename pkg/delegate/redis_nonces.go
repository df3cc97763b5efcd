package delegate

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// RedisNonceSet stores consumed nonces as one redis set per signer. Entries are only removed by
// Release, so unlike a sliding window an old nonce stays rejected forever.
type RedisNonceSet struct {
	client    redis.Cmdable
	namespace string
}

var _ NonceSet = (*RedisNonceSet)(nil)

// NewRedisNonceSet creates a nonce set whose keys are prefixed with namespace, which lets several
// mining entities share one redis instance.
func NewRedisNonceSet(client redis.Cmdable, namespace string) *RedisNonceSet {
	return &RedisNonceSet{client: client, namespace: namespace}
}

func (r *RedisNonceSet) Contains(signer common.Address, nonce *uint256.Int) (bool, error) {
	ctx := context.Background()
	found, err := r.client.SIsMember(ctx, r.key(signer), nonce.Dec()).Result()
	if err != nil {
		return false, eris.Wrap(err, "failed to look up nonce")
	}
	return found, nil
}

// Consume relies on SADD reporting zero new members for an existing entry, which makes the check
// and the insert a single atomic step on the server.
func (r *RedisNonceSet) Consume(signer common.Address, nonce *uint256.Int) error {
	ctx := context.Background()
	added, err := r.client.SAdd(ctx, r.key(signer), nonce.Dec()).Result()
	if err != nil {
		return eris.Wrap(err, "failed to add nonce")
	}
	if added == 0 {
		return eris.Wrapf(ErrReplayedNonce, "signer %s has already used nonce %s", signer.Hex(), nonce.Dec())
	}
	return nil
}

func (r *RedisNonceSet) Release(signer common.Address, nonce *uint256.Int) error {
	if err := r.client.SRem(context.Background(), r.key(signer), nonce.Dec()).Err(); err != nil {
		return eris.Wrap(err, "failed to release nonce")
	}
	return nil
}

func (r *RedisNonceSet) key(signer common.Address) string {
	return r.namespace + ":delegate:nonces:" + strings.ToLower(signer.Hex())
}
