// Command quarry-sign produces delegated-mint authorizations and, optionally, a proof of work for
// a claimant. It runs on the claimant's side; the key never leaves this process.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/goccy/go-json"
	"github.com/holiman/uint256"
	"github.com/mithril-labs/quarry/pkg/delegate"
	"github.com/mithril-labs/quarry/pkg/difficulty"
	"github.com/rotisserie/eris"
	"github.com/spf13/pflag"
)

type output struct {
	Token delegate.AuthorizationToken `json:"token"`
	Proof *difficulty.Proof           `json:"proof,omitempty"`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		keyHex    string
		nonceDec  string
		challenge string
		target    string
		maxTries  uint64
	)

	flagSet := pflag.NewFlagSet("quarry-sign", pflag.ContinueOnError)
	flagSet.StringVar(&keyHex, "key", "", "hex encoded secp256k1 private key of the claimant (or QUARRY_SIGN_KEY)")
	flagSet.StringVar(&nonceDec, "nonce", "", "decimal authorization nonce, unique per claimant")
	flagSet.StringVar(&challenge, "challenge", "", "current challenge of the mineable; solves a proof when set")
	flagSet.StringVar(&target, "target", "", "decimal effective target the proof must meet")
	flagSet.Uint64Var(&maxTries, "max-tries", 1<<24, "nonces to try before giving up on the proof")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if keyHex == "" {
		keyHex = os.Getenv("QUARRY_SIGN_KEY")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return eris.Wrap(err, "invalid --key")
	}
	nonce, err := uint256.FromDecimal(nonceDec)
	if err != nil {
		return eris.Wrapf(err, "invalid --nonce %q", nonceDec)
	}

	token, err := delegate.NewAuthorizationToken(key, nonce)
	if err != nil {
		return err
	}
	out := output{Token: token}

	if challenge != "" {
		t, err := uint256.FromDecimal(target)
		if err != nil {
			return eris.Wrapf(err, "invalid --target %q", target)
		}
		proof, ok := difficulty.Solve(common.HexToHash(challenge), token.Claimant, t, 0, maxTries)
		if !ok {
			return eris.Errorf("no proof found in %d tries", maxTries)
		}
		out.Proof = &proof
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
