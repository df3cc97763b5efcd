package server

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/mithril-labs/quarry/pkg/artifact"
	"github.com/mithril-labs/quarry/pkg/delegate"
	"github.com/mithril-labs/quarry/pkg/difficulty"
	"github.com/mithril-labs/quarry/pkg/quarry"
)

type InstallBoosterRequest struct {
	RigID uint64 `json:"rigId"`
}

type MintRequest struct {
	Proof difficulty.Proof `json:"proof"`
}

type DelegatedMintRequest struct {
	Token delegate.AuthorizationToken `json:"token"`
	Proof difficulty.Proof            `json:"proof"`
}

type IssuanceResponse struct {
	Mineable            string         `json:"mineable"`
	Claimant            common.Address `json:"claimant"`
	Recipient           common.Address `json:"recipient"`
	Reward              string         `json:"reward"`
	Difficulty          string         `json:"difficulty"`
	EffectiveDifficulty string         `json:"effectiveDifficulty"`
	Booster             uint64         `json:"booster,omitempty"`
	Adjusted            bool           `json:"adjusted"`
}

type DifficultyResponse struct {
	Mineable                 string      `json:"mineable"`
	Difficulty               string      `json:"difficulty"`
	Target                   string      `json:"target"`
	MaxTarget                string      `json:"maxTarget"`
	Phase                    string      `json:"phase"`
	WindowStart              time.Time   `json:"windowStart"`
	WindowLengthSeconds      int64       `json:"windowLengthSeconds"`
	IssuedInWindow           uint64      `json:"issuedInWindow"`
	AdjustmentIntervalTarget uint64      `json:"adjustmentIntervalTarget"`
	Challenge                common.Hash `json:"challenge"`
	Issued                   uint64      `json:"issued"`
	BaseReward               string      `json:"baseReward"`
}

type EffectiveDifficultyResponse struct {
	Claimant            common.Address `json:"claimant"`
	EffectiveDifficulty string         `json:"effectiveDifficulty"`
}

type BoosterResponse struct {
	Installed bool   `json:"installed"`
	RigID     uint64 `json:"rigId,omitempty"`
}

type AmountResponse struct {
	Amount string `json:"amount"`
}

type MineablesResponse struct {
	Mineables []string `json:"mineables"`
}

func issuanceResponse(i quarry.Issuance) IssuanceResponse {
	return IssuanceResponse{
		Mineable:            i.Mineable,
		Claimant:            i.Claimant,
		Recipient:           i.Recipient,
		Reward:              i.Reward.Dec(),
		Difficulty:          i.Difficulty.Dec(),
		EffectiveDifficulty: i.EffectiveDifficulty.Dec(),
		Booster:             uint64(i.Booster),
		Adjusted:            i.Adjustment != nil,
	}
}

func (s *Server) postInstallBooster(ctx *fiber.Ctx, caller common.Address, body []byte) error {
	req, err := decode[InstallBoosterRequest](body)
	if err != nil {
		return err
	}
	if err := s.engine.InstallBooster(ctx.Params("mineable"), artifact.ID(req.RigID), caller); err != nil {
		return err
	}
	return ctx.JSON(okResponse)
}

func (s *Server) postMint(ctx *fiber.Ctx, caller common.Address, body []byte) error {
	req, err := decode[MintRequest](body)
	if err != nil {
		return err
	}
	issuance, err := s.engine.Mint(ctx.Params("mineable"), caller, req.Proof)
	if err != nil {
		return err
	}
	return ctx.JSON(issuanceResponse(issuance))
}

// postDelegatedMint credits the envelope's caller for a proof authorized by the token's claimant.
func (s *Server) postDelegatedMint(ctx *fiber.Ctx, caller common.Address, body []byte) error {
	req, err := decode[DelegatedMintRequest](body)
	if err != nil {
		return err
	}
	issuance, err := s.engine.DelegatedMint(ctx.Params("mineable"), caller, req.Token, req.Proof)
	if err != nil {
		return err
	}
	return ctx.JSON(issuanceResponse(issuance))
}

func (s *Server) getDifficulty(ctx *fiber.Ctx) error {
	info, err := s.engine.Difficulty(ctx.Params("mineable"))
	if err != nil {
		return err
	}
	return ctx.JSON(DifficultyResponse{
		Mineable:                 info.Mineable,
		Difficulty:               info.Difficulty.Dec(),
		Target:                   info.Target.Dec(),
		MaxTarget:                info.MaxTarget.Dec(),
		Phase:                    info.Phase.String(),
		WindowStart:              info.WindowStart,
		WindowLengthSeconds:      int64(info.WindowLength / time.Second),
		IssuedInWindow:           info.IssuedInWindow,
		AdjustmentIntervalTarget: info.AdjustmentIntervalTarget,
		Challenge:                info.Challenge,
		Issued:                   info.Issued,
		BaseReward:               info.BaseReward.Dec(),
	})
}

func (s *Server) getEffectiveDifficulty(ctx *fiber.Ctx) error {
	claimant, err := addressParam(ctx, "claimant")
	if err != nil {
		return err
	}
	d, err := s.engine.EffectiveDifficulty(ctx.Params("mineable"), claimant)
	if err != nil {
		return err
	}
	return ctx.JSON(EffectiveDifficultyResponse{Claimant: claimant, EffectiveDifficulty: d.Dec()})
}

func (s *Server) getBooster(ctx *fiber.Ctx) error {
	claimant, err := addressParam(ctx, "claimant")
	if err != nil {
		return err
	}
	id, installed, err := s.engine.InstalledBooster(ctx.Params("mineable"), claimant)
	if err != nil {
		return err
	}
	return ctx.JSON(BoosterResponse{Installed: installed, RigID: uint64(id)})
}

func (s *Server) getBalance(ctx *fiber.Ctx) error {
	account, err := addressParam(ctx, "address")
	if err != nil {
		return err
	}
	return ctx.JSON(AmountResponse{Amount: s.engine.BalanceOf(account).Dec()})
}

func (s *Server) getSupply(ctx *fiber.Ctx) error {
	return ctx.JSON(AmountResponse{Amount: s.engine.TotalSupply().Dec()})
}

func (s *Server) getMineables(ctx *fiber.Ctx) error {
	return ctx.JSON(MineablesResponse{Mineables: s.engine.Mineables()})
}
