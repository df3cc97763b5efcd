package server

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/mithril-labs/quarry/pkg/artifact"
	"github.com/mithril-labs/quarry/pkg/modifier"
	"github.com/mithril-labs/quarry/pkg/stats"
)

type MintRigRequest struct {
	Owner       common.Address `json:"owner"`
	Name        string         `json:"name"`
	Base        stats.Vector   `json:"base"`
	MetadataURI string         `json:"metadataUri"`
}

type MintComponentRequest struct {
	Owner       common.Address `json:"owner"`
	Name        string         `json:"name"`
	Life        uint64         `json:"life"`
	Modifiers   []uint64       `json:"modifiers"`
	MetadataURI string         `json:"metadataUri"`
}

type AttachRequest struct {
	RigID       uint64 `json:"rigId"`
	ComponentID uint64 `json:"componentId"`
}

type DetachRequest struct {
	RigID uint64 `json:"rigId"`
	Index int    `json:"index"`
}

type ReplaceRequest struct {
	RigID    uint64   `json:"rigId"`
	Children []uint64 `json:"children"`
}

type TransferRequest struct {
	ID uint64         `json:"id"`
	To common.Address `json:"to"`
}

type CheckMergedRequest struct {
	Candidates []uint64 `json:"candidates"`
}

type MintResponse struct {
	ID uint64 `json:"id"`
}

type DetachResponse struct {
	Removed uint64 `json:"removed"`
}

type ArtifactResponse struct {
	ID          uint64         `json:"id"`
	Kind        string         `json:"kind"`
	Owner       common.Address `json:"owner"`
	Name        string         `json:"name"`
	MetadataURI string         `json:"metadataUri"`
	Base        *stats.Vector  `json:"base,omitempty"`
	Children    []uint64       `json:"children,omitempty"`
	Life        uint64         `json:"life,omitempty"`
	Modifiers   []uint64       `json:"modifiers,omitempty"`
}

type StatsResponse struct {
	Stats stats.Vector `json:"stats"`
}

type IDsResponse struct {
	IDs []uint64 `json:"ids"`
}

type ListableResponse struct {
	Listable bool   `json:"listable"`
	Reason   string `json:"reason,omitempty"`
}

func (s *Server) postMintRig(ctx *fiber.Ctx, caller common.Address, body []byte) error {
	req, err := decode[MintRigRequest](body)
	if err != nil {
		return err
	}
	id, err := s.engine.MintRig(caller, req.Owner, req.Name, req.Base, req.MetadataURI)
	if err != nil {
		return err
	}
	return ctx.JSON(MintResponse{ID: uint64(id)})
}

func (s *Server) postMintComponent(ctx *fiber.Ctx, caller common.Address, body []byte) error {
	req, err := decode[MintComponentRequest](body)
	if err != nil {
		return err
	}
	id, err := s.engine.MintComponent(caller, req.Owner, req.Name, req.Life, req.Modifiers, req.MetadataURI)
	if err != nil {
		return err
	}
	return ctx.JSON(MintResponse{ID: uint64(id)})
}

func (s *Server) postAttach(ctx *fiber.Ctx, caller common.Address, body []byte) error {
	req, err := decode[AttachRequest](body)
	if err != nil {
		return err
	}
	if err := s.engine.Attach(artifact.ID(req.RigID), artifact.ID(req.ComponentID), caller); err != nil {
		return err
	}
	return ctx.JSON(okResponse)
}

func (s *Server) postDetach(ctx *fiber.Ctx, caller common.Address, body []byte) error {
	req, err := decode[DetachRequest](body)
	if err != nil {
		return err
	}
	removed, err := s.engine.Detach(artifact.ID(req.RigID), req.Index, caller)
	if err != nil {
		return err
	}
	return ctx.JSON(DetachResponse{Removed: uint64(removed)})
}

func (s *Server) postReplaceAll(ctx *fiber.Ctx, caller common.Address, body []byte) error {
	req, err := decode[ReplaceRequest](body)
	if err != nil {
		return err
	}
	if err := s.engine.ReplaceAll(artifact.ID(req.RigID), toIDs(req.Children), caller); err != nil {
		return err
	}
	return ctx.JSON(okResponse)
}

func (s *Server) postTransfer(ctx *fiber.Ctx, caller common.Address, body []byte) error {
	req, err := decode[TransferRequest](body)
	if err != nil {
		return err
	}
	if err := s.engine.Transfer(artifact.ID(req.ID), req.To, caller); err != nil {
		return err
	}
	return ctx.JSON(okResponse)
}

func (s *Server) getArtifact(ctx *fiber.Ctx) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	a, err := s.engine.Get(id)
	if err != nil {
		return err
	}

	res := ArtifactResponse{
		ID:          uint64(a.ID),
		Kind:        a.Kind().String(),
		Owner:       a.Owner,
		Name:        a.Name,
		MetadataURI: a.MetadataURI,
	}
	if rig, ok := a.Rig(); ok {
		base := rig.Base
		res.Base = &base
		res.Children = fromIDs(rig.Children)
	}
	if comp, ok := a.Component(); ok {
		res.Life = comp.Life
		if res.Modifiers, err = modifier.EncodeAll(comp.Modifiers); err != nil {
			return err
		}
	}
	return ctx.JSON(res)
}

func (s *Server) getMerged(ctx *fiber.Ctx) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	v, err := s.engine.Merge(id)
	if err != nil {
		return err
	}
	return ctx.JSON(StatsResponse{Stats: v})
}

func (s *Server) postCheckMerged(ctx *fiber.Ctx) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	req, err := decode[CheckMergedRequest](ctx.Body())
	if err != nil {
		return err
	}
	v, err := s.engine.CheckMerged(id, toIDs(req.Candidates))
	if err != nil {
		return err
	}
	return ctx.JSON(StatsResponse{Stats: v})
}

func (s *Server) getParents(ctx *fiber.Ctx) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	return ctx.JSON(IDsResponse{IDs: fromIDs(s.engine.Parents(id))})
}

func (s *Server) getListable(ctx *fiber.Ctx) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	caller, err := addressParam(ctx, "caller")
	if err != nil {
		return err
	}
	if err := s.engine.CanList(id, caller); err != nil {
		if statusCode(err) == fiber.StatusInternalServerError {
			return err
		}
		return ctx.JSON(ListableResponse{Listable: false, Reason: err.Error()})
	}
	return ctx.JSON(ListableResponse{Listable: true})
}

func (s *Server) getHoldings(ctx *fiber.Ctx) error {
	owner, err := addressParam(ctx, "address")
	if err != nil {
		return err
	}
	return ctx.JSON(IDsResponse{IDs: fromIDs(s.engine.Holdings(owner))})
}
