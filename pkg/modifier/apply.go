package modifier

import (
	"github.com/holiman/uint256"
	"github.com/mithril-labs/quarry/pkg/stats"
	"github.com/rotisserie/eris"
)

var hundred = uint256.NewInt(100) //nolint:gochecknoglobals // constant

// Apply executes the command against v. On failure v is left untouched.
func (c Command) Apply(v *stats.Vector) error {
	if err := c.Validate(); err != nil {
		return err
	}
	operand, err := c.Value()
	if err != nil {
		return err
	}

	current := v.Get(c.Slot)
	next := new(uint256.Int)

	switch c.Op {
	case OpAdd:
		if _, overflow := next.AddOverflow(current, operand); overflow {
			return eris.Wrapf(ErrOverflow, "%s on %s", c, current.Dec())
		}
	case OpSubtract:
		if current.Lt(operand) {
			return eris.Wrapf(ErrUnderflow, "%s on %s", c, current.Dec())
		}
		next.Sub(current, operand)
	case OpMultiply:
		if _, overflow := next.MulOverflow(current, operand); overflow {
			return eris.Wrapf(ErrOverflow, "%s on %s", c, current.Dec())
		}
	case OpDivide:
		if operand.IsZero() {
			return eris.Wrapf(ErrDivideByZero, "%s", c)
		}
		next.Div(current, operand)
	case OpAddPercent:
		delta, _ := new(uint256.Int).MulDivOverflow(current, operand, hundred)
		if _, overflow := next.AddOverflow(current, delta); overflow {
			return eris.Wrapf(ErrOverflow, "%s on %s", c, current.Dec())
		}
	case OpSubtractPercent:
		if operand.Gt(hundred) {
			return eris.Wrapf(ErrUnderflow, "%s on %s", c, current.Dec())
		}
		// The remaining share x*(100-v)/100 is floored, not the removed part. When x*v is not a
		// multiple of 100 this removes one more than x - floor(x*v/100): 105 - 5% is 99, 10 - 5% is 9.
		next.MulDivOverflow(current, new(uint256.Int).Sub(hundred, operand), hundred)
	case OpRequireGreater:
		if !current.Gt(operand) {
			return eris.Wrapf(ErrRequirementNotMet, "%s, have %s", c, current.Dec())
		}
		return nil
	case OpRequireLess:
		if !current.Lt(operand) {
			return eris.Wrapf(ErrRequirementNotMet, "%s, have %s", c, current.Dec())
		}
		return nil
	case OpSetScientific:
		next.Set(operand)
	default:
		return eris.Wrapf(ErrMalformedCommand, "unknown opcode %d", c.Op)
	}

	v.Set(c.Slot, next)
	return nil
}

// ApplyAll runs cmds in order against a copy of v and returns the result. The input is never
// modified, so a failure part way through leaves no partial state behind.
func ApplyAll(v stats.Vector, cmds []Command) (stats.Vector, int, error) {
	for i, c := range cmds {
		if err := c.Apply(&v); err != nil {
			return stats.Vector{}, i, err
		}
	}
	return v, -1, nil
}
