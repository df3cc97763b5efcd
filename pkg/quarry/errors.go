package quarry

import "github.com/rotisserie/eris"

var (
	ErrUnknownMineable = eris.New("unknown mineable")
	ErrMineableExists  = eris.New("mineable already registered")
)
