package heist

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mbd888/vaultbreak/internal/idgen"
	"github.com/mbd888/vaultbreak/internal/matchmaking"
	"github.com/mbd888/vaultbreak/internal/metrics"
	"github.com/mbd888/vaultbreak/internal/security"
	"github.com/mbd888/vaultbreak/internal/vault"
)

var attackerNames = []string{
	"The Locksmith", "Midnight Crew", "Vera Cross", "Slim Tumbler",
	"The Archivist", "Cat's Paw", "Deadbolt Dan", "Whisper",
}

// Defender rolls simulated incoming attacks against players whose heist
// window is open, and settles them synchronously: compute, then settle, no
// suspension in between.
type Defender struct {
	service  *Service
	calc     *security.Calculator
	rng      matchmaking.RandomSource
	interval time.Duration
	odds     float64
	logger   *slog.Logger
	stop     chan struct{}
	running  atomic.Bool
}

// NewDefender creates the defense simulation timer.
func NewDefender(service *Service, calc *security.Calculator, rng matchmaking.RandomSource, logger *slog.Logger) *Defender {
	return &Defender{
		service:  service,
		calc:     calc,
		rng:      rng,
		interval: service.params.DefenseTick,
		odds:     service.params.IncomingAttackOdds,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Running reports whether the timer loop is actively running.
func (d *Defender) Running() bool {
	return d.running.Load()
}

// Start begins the tick loop. Call in a goroutine.
func (d *Defender) Start(ctx context.Context) {
	d.running.Store(true)
	defer d.running.Store(false)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case <-ticker.C:
			d.safeTick(ctx)
		}
	}
}

// Stop signals the timer to stop.
func (d *Defender) Stop() {
	select {
	case d.stop <- struct{}{}:
	default:
	}
}

func (d *Defender) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic in defense timer", "panic", fmt.Sprint(r))
		}
	}()
	d.tick(ctx)
}

// tick rolls one incoming-attack chance per player with an open heist
// window. Heist-mode expiry is re-checked here as well: activeModePlayers
// drops windows the clock has passed.
func (d *Defender) tick(ctx context.Context) {
	now := d.service.now()
	for _, playerID := range d.service.activeModePlayers(now) {
		if d.rng.Float64() >= d.odds {
			continue
		}
		event, err := d.Resolve(ctx, playerID)
		if err != nil {
			d.logger.Warn("failed to resolve incoming attack",
				"playerId", playerID, "error", err)
			continue
		}
		d.logger.Info("incoming attack resolved",
			"playerId", playerID,
			"attacker", event.AttackerName,
			"repelled", event.Success,
			"lootLost", event.LootLost,
		)
	}
}

// Resolve simulates and settles one incoming attack against a player.
// Exported so a session-resume path can roll a missed window synchronously.
func (d *Defender) Resolve(ctx context.Context, playerID string) (*DefenseEvent, error) {
	svc := d.service

	score, err := svc.players.SecurityScore(ctx, playerID)
	if err != nil {
		return nil, err
	}
	bal, err := svc.vault.GetBalance(ctx, playerID)
	if err != nil {
		return nil, err
	}

	// Simulated attacker rating spread around the defense curve's midpoint.
	rating := 2000 + d.rng.Float64()*6000
	p := d.calc.SuccessProbability(rating, score)
	breached := d.rng.Float64() < p

	event := &DefenseEvent{
		ID:           idgen.WithPrefix("def_"),
		PlayerID:     playerID,
		AttackerName: attackerNames[d.rng.IntN(len(attackerNames))],
		Success:      !breached,
		CreatedAt:    svc.now(),
	}

	if breached {
		requested := svc.engine.Loot(bal.Available)
		lost, err := svc.vault.ApplyLoss(ctx, playerID, requested, event.ID)
		if err != nil {
			return nil, err
		}
		event.LootLost = lost

		if svc.insurer != nil && lost > 0 {
			payout, err := svc.insurer.Claim(ctx, playerID, lost)
			if err == nil {
				event.InsurancePayout = payout
			}
		}
	} else {
		fee := svc.engine.AttackFee(bal.Available, score, 0)
		earned := svc.engine.DefenderEarnings(fee)
		if earned > 0 {
			if err := svc.vault.Credit(ctx, playerID, earned, vault.EntryDefenderEarnings, event.ID); err != nil {
				return nil, err
			}
		}
		event.FeeEarned = earned
	}

	if err := svc.store.RecordDefense(ctx, event); err != nil {
		return nil, err
	}
	metrics.DefenseEventsTotal.WithLabelValues(resultLabel(!event.Success)).Inc()
	if svc.events != nil {
		svc.events.DefenseSettled(event)
	}
	return event, nil
}
