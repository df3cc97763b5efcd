// Package statsd is a helper package that wraps the statsd metrics the engine emits.
// It hides the datadog dependency so only this file knows about the client library.
package statsd

import (
	"strconv"
	"sync"
	"time"

	ddstatsd "github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
)

const (
	metricOperation  = "operation"
	metricIssuance   = "issuance"
	metricReward     = "reward"
	metricRejected   = "rejected"
	metricDifficulty = "difficulty"
	metricAdjustment = "difficulty.adjustment"
)

var (
	mu     sync.RWMutex
	client ddstatsd.ClientInterface = &ddstatsd.NoOpClient{}
)

func Client() ddstatsd.ClientInterface {
	mu.RLock()
	defer mu.RUnlock()
	return client
}

// SetClient replaces the global client, returning the previous one.
func SetClient(c ddstatsd.ClientInterface) ddstatsd.ClientInterface {
	mu.Lock()
	defer mu.Unlock()
	prev := client
	client = c
	return prev
}

func Init(address string, tags []string) error {
	if address == "" {
		return eris.New("address must not be empty")
	}
	opts := []ddstatsd.Option{
		// The statsd namespace is the prefix of all metrics
		ddstatsd.WithNamespace("quarry."),
	}
	if len(tags) > 0 {
		opts = append(opts, ddstatsd.WithTags(tags))
	}

	newClient, err := ddstatsd.New(address, opts...)
	if err != nil {
		return eris.Wrap(err, "failed to create statsd client")
	}
	SetClient(newClient)
	return nil
}

// Close flushes and closes the global client.
func Close() {
	if err := Client().Close(); err != nil {
		log.Logger.Warn().Err(err).Msg("failed to close statsd client")
	}
}

// EmitOperationStat records how long an engine operation took and whether it succeeded.
func EmitOperationStat(start time.Time, operation string, err error) {
	tags := []string{"operation:" + operation, "success:" + strconv.FormatBool(err == nil)}
	warn(Client().Timing(metricOperation, time.Since(start), tags, 1), metricOperation)
}

// EmitIssuance counts an accepted reward issuance.
func EmitIssuance(mineable string, delegated bool, reward float64) {
	tags := []string{"mineable:" + mineable, "delegated:" + strconv.FormatBool(delegated)}
	warn(Client().Incr(metricIssuance, tags, 1), metricIssuance)
	warn(Client().Distribution(metricReward, reward, tags, 1), metricReward)
}

// EmitRejected counts an issuance that was refused, tagged with the reason.
func EmitRejected(mineable, reason string) {
	tags := []string{"mineable:" + mineable, "reason:" + reason}
	warn(Client().Incr(metricRejected, tags, 1), metricRejected)
}

// EmitDifficulty reports the current difficulty of a mining entity after a retarget.
func EmitDifficulty(mineable string, difficulty float64, clamped bool) {
	tags := []string{"mineable:" + mineable}
	warn(Client().Gauge(metricDifficulty, difficulty, tags, 1), metricDifficulty)
	warn(Client().Incr(metricAdjustment, append(tags, "clamped:"+strconv.FormatBool(clamped)), 1), metricAdjustment)
}

func warn(err error, metric string) {
	if err != nil {
		log.Logger.Warn().Err(err).Str("metric", metric).Msg("failed to emit stat")
	}
}
