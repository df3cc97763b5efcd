package difficulty_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/mithril-labs/quarry/pkg/difficulty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeccakVerifier(t *testing.T) {
	t.Parallel()

	challenge := common.HexToHash("0x01")
	claimant := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	// Half of all digests are at or below 2^255.
	target := new(uint256.Int).Lsh(uint256.NewInt(1), 255)

	proof, ok := difficulty.Solve(challenge, claimant, target, 0, 256)
	require.True(t, ok)

	v := difficulty.KeccakVerifier{}
	require.NoError(t, v.Verify(challenge, claimant, proof, target))
	require.NoError(t, v.Verify(challenge, claimant, difficulty.Proof{Nonce: proof.Nonce}, target))

	// Same nonce from another claimant produces another digest.
	other := common.HexToAddress("0x00000000000000000000000000000000000000b2")
	err := v.Verify(challenge, other, proof, target)
	require.ErrorIs(t, err, difficulty.ErrInvalidProof)

	// A target of zero can never be met.
	err = v.Verify(challenge, claimant, proof, new(uint256.Int))
	require.ErrorIs(t, err, difficulty.ErrInvalidProof)

	require.NoError(t, difficulty.PermissiveVerifier{}.Verify(challenge, other, difficulty.Proof{}, new(uint256.Int)))
}

func TestNextChallenge(t *testing.T) {
	t.Parallel()

	c := common.HexToHash("0x01")
	assert.NotEqual(t, difficulty.NextChallenge(c, 1), difficulty.NextChallenge(c, 2))
	assert.Equal(t, difficulty.NextChallenge(c, 1), difficulty.NextChallenge(c, 1))
}
