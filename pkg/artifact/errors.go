package artifact

import (
	"fmt"

	"github.com/mithril-labs/quarry/pkg/modifier"
	"github.com/rotisserie/eris"
)

var (
	ErrNotFound                  = eris.New("artifact not found")
	ErrNotRig                    = eris.New("artifact is not a rig")
	ErrNotComponent              = eris.New("artifact is not a component")
	ErrNotOwner                  = eris.New("caller does not own the artifact")
	ErrInvalidRecipient          = eris.New("invalid recipient")
	ErrCapacityExceeded          = eris.New("rig socket capacity exceeded")
	ErrLevelRequirementNotMet    = eris.New("rig level requirement not met")
	ErrModifierRequirementFailed = eris.New("modifier requirement failed")
	ErrIndexOutOfRange           = eris.New("child index out of range")
	ErrAttached                  = eris.New("component is attached to a rig")
)

// RequirementError reports the requirement command that aborted a merge.
type RequirementError struct {
	Position int // Index of the offending child in the rig's children list
	ChildID  ID
	Index    int // Index of the command inside the child's modifier list
	Command  modifier.Command
	Have     string // Value of the target slot when the requirement was evaluated
}

func (e *RequirementError) Error() string {
	return fmt.Sprintf("%s: child %d (component %d) modifier %d: %s, have %s",
		ErrModifierRequirementFailed.Error(), e.Position, e.ChildID, e.Index, e.Command, e.Have)
}

func (e *RequirementError) Is(target error) bool {
	return target == ErrModifierRequirementFailed //nolint:errorlint,goerr113 // identity check on the sentinel
}

func (e *RequirementError) Unwrap() error {
	return modifier.ErrRequirementNotMet
}
