// Package server exposes the engine over HTTP. Reads are plain GET requests; every state change is
// a POST carrying a signed Envelope whose signer becomes the operation's caller.
package server

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/mithril-labs/quarry/pkg/quarry"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	app       *fiber.App
	engine    *quarry.Engine
	validator *SignatureValidator
	cfg       Config
	log       zerolog.Logger
}

type Option func(*Server)

func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) {
		s.log = log.With().Str("component", "server").Logger()
	}
}

// New returns an HTTP server with a route for every engine operation.
func New(engine *quarry.Engine, cfg Config, opts ...Option) (*Server, error) {
	if engine == nil {
		return nil, eris.New("server requires a non-nil engine")
	}
	if err := cfg.Validate(); err != nil {
		return nil, eris.Wrap(err, "invalid server config")
	}

	app := fiber.New(fiber.Config{
		Network:               "tcp", // Enable server listening on both ipv4 & ipv6 (default: ipv4 only)
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	s := &Server{
		app:    app,
		engine: engine,
		validator: NewSignatureValidator(
			cfg.DisableSignatureVerification, cfg.MessageExpiration, cfg.HashCacheSizeKB, cfg.Namespace),
		cfg: cfg,
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.EnableCORS {
		app.Use(cors.New())
	}
	if cfg.DisableSignatureVerification {
		s.log.Warn().Msg("signature verification is disabled")
	}
	s.setupRoutes()

	return s, nil
}

// App exposes the underlying fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Serve serves the application, blocking until ctx is cancelled or the listener fails.
func (s *Server) Serve(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		s.log.Info().Msgf("Starting HTTP server at port %s", s.cfg.Port)
		if err := s.app.Listen(":" + s.cfg.Port); err != nil {
			serverErr <- eris.Wrap(err, "error starting http server")
		}
	}()

	select {
	case err := <-serverErr:
		return eris.Wrap(err, "server encountered an error")
	case <-ctx.Done():
		if err := s.shutdown(); err != nil {
			return eris.Wrap(err, "error shutting down server")
		}
	}
	return nil
}

func (s *Server) shutdown() error {
	s.log.Info().Msg("Shutting down server")
	if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return eris.Wrap(err, "error shutting down server")
	}
	s.log.Info().Msg("Successfully shut down server")
	return nil
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", s.getHealth)

	// Route: /artifact/...
	a := s.app.Group("/artifact")
	a.Get("/:id", s.getArtifact)
	a.Get("/:id/merged", s.getMerged)
	a.Get("/:id/parents", s.getParents)
	a.Get("/:id/listable/:caller", s.getListable)
	a.Post("/:id/check-merged", s.postCheckMerged)
	a.Post("/rig", s.signed(s.postMintRig))
	a.Post("/component", s.signed(s.postMintComponent))
	a.Post("/attach", s.signed(s.postAttach))
	a.Post("/detach", s.signed(s.postDetach))
	a.Post("/replace", s.signed(s.postReplaceAll))
	a.Post("/transfer", s.signed(s.postTransfer))

	// Route: /account/...
	acct := s.app.Group("/account")
	acct.Get("/:address/holdings", s.getHoldings)
	acct.Get("/:address/balance", s.getBalance)

	// Route: /mine/...
	m := s.app.Group("/mine")
	m.Get("/", s.getMineables)
	m.Get("/supply", s.getSupply)
	m.Get("/:mineable/difficulty", s.getDifficulty)
	m.Get("/:mineable/difficulty/:claimant", s.getEffectiveDifficulty)
	m.Get("/:mineable/booster/:claimant", s.getBooster)
	m.Post("/:mineable/booster", s.signed(s.postInstallBooster))
	m.Post("/:mineable/mint", s.signed(s.postMint))
	m.Post("/:mineable/delegated-mint", s.signed(s.postDelegatedMint))
}
