// Package stats defines the fixed seven-slot statistics vector carried by every rig.
package stats

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/holiman/uint256"
	"github.com/rotisserie/eris"
)

// Slot indexes a single statistic inside a Vector.
type Slot uint8

const (
	Experience     Slot = iota // Total successful mints
	LifeDecrement              // Wear applied per mint
	ExecutionCost              // Additional cost per mint
	SocketCapacity             // Maximum number of attached components
	VirtualHash                // Virtual hash rate
	Accuracy                   // Reward percentage, base 100
	Level
)

// NumSlots is the length of every Vector.
const NumSlots = 7

var slotNames = [NumSlots]string{ //nolint:gochecknoglobals // lookup table
	"experience",
	"lifeDecrement",
	"executionCost",
	"socketCapacity",
	"vHash",
	"accuracy",
	"level",
}

var ErrInvalidLength = eris.New("stat vector must have exactly 7 values")

// Valid reports whether s addresses one of the seven slots.
func (s Slot) Valid() bool {
	return s < NumSlots
}

func (s Slot) String() string {
	if !s.Valid() {
		return "reserved"
	}
	return slotNames[s]
}

// Vector is the ordered tuple [experience, lifeDecrement, executionCost, socketCapacity, vHash,
// accuracy, level]. It is a value type: assigning a Vector copies every slot.
type Vector [NumSlots]uint256.Int

// New builds a Vector from exactly NumSlots values.
func New(values ...uint64) (Vector, error) {
	var v Vector
	if len(values) != NumSlots {
		return v, eris.Wrapf(ErrInvalidLength, "got %d values", len(values))
	}
	for i, x := range values {
		v[i].SetUint64(x)
	}
	return v, nil
}

// MustNew is New for literals known to be well formed.
func MustNew(values ...uint64) Vector {
	v, err := New(values...)
	if err != nil {
		panic(err)
	}
	return v
}

// FromInts builds a Vector from exactly NumSlots 256-bit values. Nil entries are rejected.
func FromInts(values []*uint256.Int) (Vector, error) {
	var v Vector
	if len(values) != NumSlots {
		return v, eris.Wrapf(ErrInvalidLength, "got %d values", len(values))
	}
	for i, x := range values {
		if x == nil {
			return v, eris.Errorf("stat %s is missing", Slot(i))
		}
		v[i].Set(x)
	}
	return v, nil
}

// ParseDecimal builds a Vector from base-10 strings.
func ParseDecimal(values []string) (Vector, error) {
	var v Vector
	if len(values) != NumSlots {
		return v, eris.Wrapf(ErrInvalidLength, "got %d values", len(values))
	}
	for i, s := range values {
		x, err := uint256.FromDecimal(s)
		if err != nil {
			return v, eris.Wrapf(err, "invalid value for stat %s", Slot(i))
		}
		v[i].Set(x)
	}
	return v, nil
}

// Get returns a copy of the value at slot s.
func (v *Vector) Get(s Slot) *uint256.Int {
	return new(uint256.Int).Set(&v[s])
}

// Set overwrites the value at slot s.
func (v *Vector) Set(s Slot, x *uint256.Int) {
	v[s].Set(x)
}

// Decimals renders every slot in base 10.
func (v Vector) Decimals() []string {
	out := make([]string, NumSlots)
	for i := range v {
		out[i] = v[i].Dec()
	}
	return out
}

func (v Vector) String() string {
	return "[" + strings.Join(v.Decimals(), ",") + "]"
}

// MarshalJSON encodes the vector as an array of decimal strings so values above 2^53 survive
// JSON consumers.
func (v Vector) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Decimals())
}

func (v *Vector) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return eris.Wrap(err, "failed to decode stat vector")
	}
	parsed, err := ParseDecimal(values)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
