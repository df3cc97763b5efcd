package modifier

import "github.com/rotisserie/eris"

var (
	ErrMalformedCommand  = eris.New("malformed modifier command")
	ErrUnderflow         = eris.New("statistic underflow")
	ErrOverflow          = eris.New("statistic overflow")
	ErrDivideByZero      = eris.New("division by zero")
	ErrRequirementNotMet = eris.New("modifier requirement not met")
)
