package delegate

import "github.com/rotisserie/eris"

var (
	ErrInvalidSignature = eris.New("invalid authorization signature")
	ErrReplayedNonce    = eris.New("authorization nonce has already been used")
	ErrInvalidToken     = eris.New("malformed authorization token")
)
