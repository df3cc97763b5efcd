package server

import (
	"errors"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/mithril-labs/quarry/pkg/artifact"
)

// signedHandler runs an operation for the verified caller of an envelope.
type signedHandler func(ctx *fiber.Ctx, caller common.Address, body []byte) error

func (s *Server) signed(h signedHandler) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		body := ctx.Body()
		if len(body) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "request body was empty")
		}
		env := new(Envelope)
		if err := json.Unmarshal(body, env); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Bad Request - unparseable envelope")
		}
		if err := s.validator.Validate(env); err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				s.log.Debug().Str("caller", env.Caller.Hex()).Str("reason", ve.LogMsg).Msg("envelope rejected")
			}
			return err
		}
		if env.Caller == (common.Address{}) {
			return fiber.NewError(fiber.StatusBadRequest, "caller is required")
		}
		return h(ctx, env.Caller, env.Body)
	}
}

// decode parses an envelope body. An empty body decodes to the zero value.
func decode[T any](body []byte) (T, error) {
	var v T
	if len(body) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return v, fiber.NewError(fiber.StatusBadRequest, "Bad Request - failed to decode body: "+err.Error())
	}
	return v, nil
}

func idParam(ctx *fiber.Ctx, name string) (artifact.ID, error) {
	id, err := strconv.ParseUint(ctx.Params(name), 10, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid artifact id "+strconv.Quote(ctx.Params(name)))
	}
	return artifact.ID(id), nil
}

func addressParam(ctx *fiber.Ctx, name string) (common.Address, error) {
	raw := ctx.Params(name)
	if !common.IsHexAddress(raw) {
		return common.Address{}, fiber.NewError(fiber.StatusBadRequest, "invalid address "+strconv.Quote(raw))
	}
	return common.HexToAddress(raw), nil
}

func toIDs(ids []uint64) []artifact.ID {
	out := make([]artifact.ID, len(ids))
	for i, id := range ids {
		out[i] = artifact.ID(id)
	}
	return out
}

func fromIDs(ids []artifact.ID) []uint64 {
	out := make([]uint64, len(ids))
	for i, id := range ids {
		out[i] = uint64(id)
	}
	return out
}

type OKResponse struct {
	Status string `json:"status"`
}

var okResponse = OKResponse{Status: "ok"} //nolint:gochecknoglobals // constant reply

type GetHealthResponse struct {
	IsServerRunning bool     `json:"isServerRunning"`
	Mineables       []string `json:"mineables"`
	Sequence        uint64   `json:"sequence"`
}

func (s *Server) getHealth(ctx *fiber.Ctx) error {
	return ctx.JSON(GetHealthResponse{
		IsServerRunning: true,
		Mineables:       s.engine.Mineables(),
		Sequence:        s.engine.Sequence(),
	})
}
