package heist

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRNG replays a fixed sequence of Float64 draws.
type scriptedRNG struct {
	draws []float64
	i     int
}

func (s *scriptedRNG) Float64() float64 {
	v := s.draws[s.i%len(s.draws)]
	s.i++
	return v
}
func (s *scriptedRNG) IntN(n int) int       { return 0 }
func (s *scriptedRNG) Int64N(n int64) int64 { return 0 }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolve_Breach(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "p1", 2000)

	// First draw picks the attacker rating, second decides the breach:
	// 0.0 < p always, so the attack lands.
	rng := &scriptedRNG{draws: []float64{0.5, 0.0}}
	d := NewDefender(f.service, f.calc, rng, testLogger())

	event, err := d.Resolve(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, event.Success, "a landed attack is not a successful defense")
	assert.Greater(t, event.LootLost, int64(0))
	assert.Zero(t, event.FeeEarned)
	assert.Equal(t, "The Locksmith", event.AttackerName)

	// Loss respects the principal floor.
	bal, err := f.vault.GetBalance(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(2000)-event.LootLost, bal.Available)
	assert.GreaterOrEqual(t, bal.Available, int64(100))

	// The event is in history.
	_, defenses, err := f.service.History(ctx, "p1", 10)
	require.NoError(t, err)
	require.Len(t, defenses, 1)
	assert.Equal(t, event.ID, defenses[0].ID)
}

func TestResolve_Repelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "p1", 2000)

	// 1.0 >= p always: the defense holds and earns the forfeited fee.
	rng := &scriptedRNG{draws: []float64{0.5, 1.0}}
	d := NewDefender(f.service, f.calc, rng, testLogger())

	event, err := d.Resolve(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, event.Success)
	assert.Greater(t, event.FeeEarned, int64(0))
	assert.Zero(t, event.LootLost)

	bal, err := f.vault.GetBalance(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(2000)+event.FeeEarned, bal.Available)
}

func TestResolve_BreachClaimsInsurance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "p1", 2000)

	ins := &stubInsurer{}
	f.service.WithInsurer(ins)

	rng := &scriptedRNG{draws: []float64{0.5, 0.0}}
	d := NewDefender(f.service, f.calc, rng, testLogger())

	event, err := d.Resolve(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, event.Success)
	assert.Equal(t, 1, ins.claims)
	assert.Equal(t, event.LootLost/2, event.InsurancePayout)
}

func TestDefender_StartStop(t *testing.T) {
	f := newFixture(t)
	rng := &scriptedRNG{draws: []float64{1.0}}
	d := NewDefender(f.service, f.calc, rng, testLogger())

	assert.False(t, d.Running())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return d.Running() }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("defender did not stop on context cancellation")
	}
	assert.False(t, d.Running())
}
