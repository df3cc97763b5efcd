// Package modifier implements the packed-integer modifier language that components use to alter
// a rig's statistics.
//
// A command is seven decimal digits laid out as 1 SS O VVV: a leading sentinel digit, a two digit
// target slot, a one digit opcode and a three digit operand. Opcode 9 splits its operand into a one
// digit multiplier and a two digit exponent, so 1049810 sets vHash to 8 * 10^10.
package modifier

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/mithril-labs/quarry/pkg/stats"
	"github.com/rotisserie/eris"
)

// Opcode selects the effect a command has on its target slot.
type Opcode uint8

const (
	OpAdd             Opcode = 1 // stat += v
	OpSubtract        Opcode = 2 // stat -= v
	OpMultiply        Opcode = 3 // stat *= v
	OpDivide          Opcode = 4 // stat /= v
	OpAddPercent      Opcode = 5 // stat += stat * v / 100
	OpSubtractPercent Opcode = 6 // stat -= stat * v / 100
	OpRequireGreater  Opcode = 7 // stat > v or fail
	OpRequireLess     Opcode = 8 // stat < v or fail
	OpSetScientific   Opcode = 9 // stat = m * 10^e
)

const (
	sentinel   = 1_000_000
	maxPacked  = 1_999_999
	maxOperand = 999

	slotShift   = 10_000
	opcodeShift = 1_000
)

// Valid reports whether op is one of the nine defined opcodes.
func (op Opcode) Valid() bool {
	return op >= OpAdd && op <= OpSetScientific
}

func (op Opcode) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpSubtract:
		return "subtract"
	case OpMultiply:
		return "multiply"
	case OpDivide:
		return "divide"
	case OpAddPercent:
		return "addPercent"
	case OpSubtractPercent:
		return "subtractPercent"
	case OpRequireGreater:
		return "requireGreaterThan"
	case OpRequireLess:
		return "requireLessThan"
	case OpSetScientific:
		return "setScientific"
	default:
		return fmt.Sprintf("opcode(%d)", uint8(op))
	}
}

// Command is a decoded modifier.
type Command struct {
	Slot    stats.Slot
	Op      Opcode
	Operand uint16 // Raw three digit operand, 0-999
}

// Decode splits a packed integer into its slot, opcode and operand. Values outside the legal
// range, reserved slots and opcode 0 fail with ErrMalformedCommand.
func Decode(packed uint64) (Command, error) {
	if packed < sentinel || packed > maxPacked {
		return Command{}, eris.Wrapf(ErrMalformedCommand, "%d is outside the packed command range", packed)
	}
	rest := packed - sentinel
	cmd := Command{
		Slot:    stats.Slot(rest / slotShift),
		Op:      Opcode((rest / opcodeShift) % 10),
		Operand: uint16(rest % opcodeShift),
	}
	if err := cmd.Validate(); err != nil {
		return Command{}, eris.Wrapf(err, "cannot decode %d", packed)
	}
	return cmd, nil
}

// MustDecode is Decode for literals known to be legal.
func MustDecode(packed uint64) Command {
	cmd, err := Decode(packed)
	if err != nil {
		panic(err)
	}
	return cmd
}

// DecodeAll decodes a modifier list, failing on the first malformed entry.
func DecodeAll(packed []uint64) ([]Command, error) {
	cmds := make([]Command, 0, len(packed))
	for i, p := range packed {
		cmd, err := Decode(p)
		if err != nil {
			return nil, eris.Wrapf(err, "modifier %d", i)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// Encode packs the command back into its integer form.
func (c Command) Encode() (uint64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	return sentinel + uint64(c.Slot)*slotShift + uint64(c.Op)*opcodeShift + uint64(c.Operand), nil
}

// EncodeAll packs a modifier list.
func EncodeAll(cmds []Command) ([]uint64, error) {
	packed := make([]uint64, 0, len(cmds))
	for _, c := range cmds {
		p, err := c.Encode()
		if err != nil {
			return nil, err
		}
		packed = append(packed, p)
	}
	return packed, nil
}

// Validate checks the slot, opcode and operand bounds.
func (c Command) Validate() error {
	if !c.Slot.Valid() {
		return eris.Wrapf(ErrMalformedCommand, "slot %d is reserved", c.Slot)
	}
	if !c.Op.Valid() {
		return eris.Wrapf(ErrMalformedCommand, "unknown opcode %d", c.Op)
	}
	if c.Operand > maxOperand {
		return eris.Wrapf(ErrMalformedCommand, "operand %d exceeds three digits", c.Operand)
	}
	return nil
}

// IsRequirement reports whether the command only validates its slot.
func (c Command) IsRequirement() bool {
	return c.Op == OpRequireGreater || c.Op == OpRequireLess
}

// Value returns the operand as applied to the slot. For OpSetScientific this is
// multiplier * 10^exponent.
func (c Command) Value() (*uint256.Int, error) {
	if c.Op != OpSetScientific {
		return uint256.NewInt(uint64(c.Operand)), nil
	}

	multiplier := uint256.NewInt(uint64(c.Operand / 100))
	exponent := c.Operand % 100
	if multiplier.IsZero() {
		return multiplier, nil
	}

	ten := uint256.NewInt(10)
	value := multiplier
	for range exponent {
		if _, overflow := value.MulOverflow(value, ten); overflow {
			return nil, eris.Wrapf(ErrOverflow, "%d * 10^%d does not fit in 256 bits", c.Operand/100, exponent)
		}
	}
	return value, nil
}

func (c Command) String() string {
	switch c.Op {
	case OpAdd:
		return fmt.Sprintf("%s += %d", c.Slot, c.Operand)
	case OpSubtract:
		return fmt.Sprintf("%s -= %d", c.Slot, c.Operand)
	case OpMultiply:
		return fmt.Sprintf("%s *= %d", c.Slot, c.Operand)
	case OpDivide:
		return fmt.Sprintf("%s /= %d", c.Slot, c.Operand)
	case OpAddPercent:
		return fmt.Sprintf("%s += %d%%", c.Slot, c.Operand)
	case OpSubtractPercent:
		return fmt.Sprintf("%s -= %d%%", c.Slot, c.Operand)
	case OpRequireGreater:
		return fmt.Sprintf("require %s > %d", c.Slot, c.Operand)
	case OpRequireLess:
		return fmt.Sprintf("require %s < %d", c.Slot, c.Operand)
	case OpSetScientific:
		return fmt.Sprintf("%s = %de%d", c.Slot, c.Operand/100, c.Operand%100)
	default:
		return fmt.Sprintf("%s %s %d", c.Slot, c.Op, c.Operand)
	}
}
