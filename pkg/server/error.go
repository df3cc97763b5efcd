package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/mithril-labs/quarry/pkg/artifact"
	"github.com/mithril-labs/quarry/pkg/delegate"
	"github.com/mithril-labs/quarry/pkg/difficulty"
	"github.com/mithril-labs/quarry/pkg/ledger"
	"github.com/mithril-labs/quarry/pkg/modifier"
	"github.com/mithril-labs/quarry/pkg/quarry"
	"github.com/mithril-labs/quarry/pkg/stats"
)

type ErrorResponse struct {
	Error Error `json:"error"`
}

type Error struct {
	Message string `json:"message"`
}

// statusCodes maps engine sentinels to HTTP statuses. The first match wins.
var statusCodes = []struct { //nolint:gochecknoglobals // lookup table
	err  error
	code int
}{
	{artifact.ErrNotOwner, fiber.StatusForbidden},
	{artifact.ErrNotFound, fiber.StatusNotFound},
	{quarry.ErrUnknownMineable, fiber.StatusNotFound},
	{delegate.ErrReplayedNonce, fiber.StatusConflict},
	{quarry.ErrMineableExists, fiber.StatusConflict},
	{delegate.ErrInvalidSignature, fiber.StatusUnauthorized},
	{delegate.ErrInvalidToken, fiber.StatusBadRequest},
	{difficulty.ErrInvalidProof, fiber.StatusUnprocessableEntity},
	{ledger.ErrSupplyExceeded, fiber.StatusUnprocessableEntity},
	{ledger.ErrInvalidRecipient, fiber.StatusBadRequest},
	{artifact.ErrInvalidRecipient, fiber.StatusBadRequest},
	{artifact.ErrNotRig, fiber.StatusUnprocessableEntity},
	{artifact.ErrNotComponent, fiber.StatusUnprocessableEntity},
	{artifact.ErrCapacityExceeded, fiber.StatusUnprocessableEntity},
	{artifact.ErrLevelRequirementNotMet, fiber.StatusUnprocessableEntity},
	{artifact.ErrModifierRequirementFailed, fiber.StatusUnprocessableEntity},
	{artifact.ErrIndexOutOfRange, fiber.StatusUnprocessableEntity},
	{artifact.ErrAttached, fiber.StatusUnprocessableEntity},
	{modifier.ErrMalformedCommand, fiber.StatusBadRequest},
	{modifier.ErrOverflow, fiber.StatusUnprocessableEntity},
	{modifier.ErrUnderflow, fiber.StatusUnprocessableEntity},
	{modifier.ErrDivideByZero, fiber.StatusUnprocessableEntity},
	{modifier.ErrRequirementNotMet, fiber.StatusUnprocessableEntity},
	{stats.ErrInvalidLength, fiber.StatusBadRequest},
}

func statusCode(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.StatusCode
	}
	for _, sc := range statusCodes {
		if errors.Is(err, sc.err) {
			return sc.code
		}
	}
	return fiber.StatusInternalServerError
}

var ErrorHandler = func(c *fiber.Ctx, err error) error {
	code := statusCode(err)

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	return c.Status(code).JSON(ErrorResponse{Error: Error{Message: err.Error()}})
}
