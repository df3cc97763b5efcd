package statsd_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	ddstatsd "github.com/DataDog/datadog-go/v5/statsd"
	"github.com/mithril-labs/quarry/pkg/statsd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	kind string
	name string
	tags []string
}

type fakeClient struct {
	*ddstatsd.NoOpClient

	mu    sync.Mutex
	calls []call
	err   error
}

func (f *fakeClient) record(kind, name string, tags []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{kind: kind, name: name, tags: tags})
	return f.err
}

func (f *fakeClient) Incr(name string, tags []string, _ float64) error {
	return f.record("incr", name, tags)
}

func (f *fakeClient) Gauge(name string, _ float64, tags []string, _ float64) error {
	return f.record("gauge", name, tags)
}

func (f *fakeClient) Timing(name string, _ time.Duration, tags []string, _ float64) error {
	return f.record("timing", name, tags)
}

func (f *fakeClient) Distribution(name string, _ float64, tags []string, _ float64) error {
	return f.record("distribution", name, tags)
}

func useFake(t *testing.T) *fakeClient {
	t.Helper()
	fake := &fakeClient{NoOpClient: &ddstatsd.NoOpClient{}}
	prev := statsd.SetClient(fake)
	t.Cleanup(func() { statsd.SetClient(prev) })
	return fake
}

func TestEmitIssuance(t *testing.T) {
	fake := useFake(t)

	statsd.EmitIssuance("gold", true, 120)
	require.Len(t, fake.calls, 2)
	assert.Equal(t, call{"incr", "issuance", []string{"mineable:gold", "delegated:true"}}, fake.calls[0])
	assert.Equal(t, "reward", fake.calls[1].name)
}

func TestEmitDifficulty(t *testing.T) {
	fake := useFake(t)

	statsd.EmitDifficulty("gold", 4000, true)
	require.Len(t, fake.calls, 2)
	assert.Equal(t, call{"gauge", "difficulty", []string{"mineable:gold"}}, fake.calls[0])
	assert.Equal(t, call{"incr", "difficulty.adjustment", []string{"mineable:gold", "clamped:true"}}, fake.calls[1])
}

func TestEmitOperationStat(t *testing.T) {
	fake := useFake(t)

	statsd.EmitOperationStat(time.Now(), "attach", nil)
	statsd.EmitOperationStat(time.Now(), "attach", errors.New("boom"))
	statsd.EmitRejected("gold", "invalid_proof")
	require.Len(t, fake.calls, 3)
	assert.Equal(t, []string{"operation:attach", "success:true"}, fake.calls[0].tags)
	assert.Equal(t, []string{"operation:attach", "success:false"}, fake.calls[1].tags)
	assert.Equal(t, call{"incr", "rejected", []string{"mineable:gold", "reason:invalid_proof"}}, fake.calls[2])
}

func TestEmitFailureDoesNotPanic(t *testing.T) {
	fake := useFake(t)
	fake.err = errors.New("agent unreachable")

	assert.NotPanics(t, func() { statsd.EmitIssuance("gold", false, 1) })
}

func TestInit(t *testing.T) {
	prev := statsd.Client()
	t.Cleanup(func() { statsd.SetClient(prev) })

	require.Error(t, statsd.Init("", nil))
	require.NoError(t, statsd.Init("127.0.0.1:8125", []string{"env:test"}))
	assert.NotSame(t, prev, statsd.Client())
	statsd.Close()
}
