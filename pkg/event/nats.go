package event

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// NATSConfig holds the configuration for the NATS event sink.
type NATSConfig struct {
	Name            string `env:"QUARRY_NATS_NAME" envDefault:"quarry"`
	URL             string `env:"QUARRY_NATS_URL" envDefault:"nats://nats:4222"`
	CredentialsFile string `env:"QUARRY_NATS_CREDENTIALS_FILE"`
	SubjectPrefix   string `env:"QUARRY_NATS_SUBJECT_PREFIX" envDefault:"quarry.events"`
}

func (cfg NATSConfig) Validate() error {
	if cfg.URL == "" {
		return eris.New("NATS URL is required")
	}
	if cfg.SubjectPrefix == "" {
		return eris.New("NATS subject prefix is required")
	}
	return nil
}

// NATSSink publishes records as JSON on <prefix>.<operation>.
type NATSSink struct {
	conn   *nats.Conn
	prefix string
	log    zerolog.Logger
	owned  bool // The sink opened conn and closes it
}

// NATSSinkOption defines a function that can modify a NATSSink.
type NATSSinkOption func(*NATSSink, *NATSConfig)

// WithNATSLogger sets the logger used for connection events.
func WithNATSLogger(log zerolog.Logger) NATSSinkOption {
	return func(s *NATSSink, _ *NATSConfig) {
		s.log = log
	}
}

// WithNATSConfig overrides the configuration parsed from the environment.
func WithNATSConfig(cfg NATSConfig) NATSSinkOption {
	return func(_ *NATSSink, c *NATSConfig) {
		*c = cfg
	}
}

// NewNATSSink connects to NATS and returns a sink publishing on that connection.
func NewNATSSink(opts ...NATSSinkOption) (*NATSSink, error) {
	cfg, err := env.ParseAs[NATSConfig]()
	if err != nil {
		return nil, eris.Wrap(err, "failed to parse NATS config")
	}

	s := &NATSSink{log: zerolog.Nop(), owned: true}
	for _, opt := range opts {
		opt(s, &cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, eris.Wrap(err, "invalid NATS config")
	}
	s.prefix = cfg.SubjectPrefix
	s.log = s.log.With().Str("component", "nats-sink").Logger()

	natsOpts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second * 5),
		nats.DisconnectErrHandler(s.handleDisconnect),
		nats.ReconnectHandler(s.handleReconnect),
	}
	if cfg.CredentialsFile != "" {
		natsOpts = append(natsOpts, nats.UserCredentials(cfg.CredentialsFile))
	}

	conn, err := nats.Connect(cfg.URL, natsOpts...)
	if err != nil {
		return nil, eris.Wrap(err, "failed to connect to NATS server")
	}
	s.conn = conn

	s.log.Info().Str("url", conn.ConnectedUrl()).Str("prefix", s.prefix).Msg("Connected to NATS server")
	return s, nil
}

// NewNATSSinkFromConn publishes on an existing connection. Close leaves the connection open.
func NewNATSSinkFromConn(conn *nats.Conn, prefix string) *NATSSink {
	return &NATSSink{conn: conn, prefix: prefix, log: zerolog.Nop()}
}

// Subject returns the subject records of op are published on.
func (s *NATSSink) Subject(op Operation) string {
	return s.prefix + "." + string(op)
}

func (s *NATSSink) Publish(r Record) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return eris.Wrapf(err, "failed to marshal %s event", r.Operation)
	}
	if err := s.conn.Publish(s.Subject(r.Operation), payload); err != nil {
		return eris.Wrapf(err, "failed to publish %s event", r.Operation)
	}
	return nil
}

// Close flushes pending messages and closes the connection if the sink opened it.
func (s *NATSSink) Close() {
	if s.conn == nil {
		return
	}
	if err := s.conn.Flush(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to flush NATS connection")
	}
	if s.owned {
		s.conn.Close()
		s.log.Info().Msg("NATS connection closed")
	}
}

func (s *NATSSink) handleDisconnect(nc *nats.Conn, err error) {
	log := s.log.With().Uint64("reconnect_attempts", nc.Reconnects).Logger()
	if err != nil {
		log.Error().Err(err).Msg("Disconnected from NATS with error")
	} else {
		log.Warn().Msg("Disconnected from NATS (no error)")
	}
}

func (s *NATSSink) handleReconnect(nc *nats.Conn) {
	s.log.Info().
		Str("nats_url", nc.ConnectedUrl()).
		Uint64("reconnect_attempts", nc.Reconnects).
		Msg("Reconnected to NATS")
}
