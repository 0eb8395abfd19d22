package realtime

import "github.com/mbd888/vaultbreak/internal/heist"

// Emitter bridges heist settlements onto the hub's broadcast channel.
type Emitter struct {
	hub *Hub
}

// NewEmitter wraps a hub as a settlement event sink.
func NewEmitter(hub *Hub) *Emitter {
	return &Emitter{hub: hub}
}

// AttackSettled publishes a settled attack to subscribed clients.
func (e *Emitter) AttackSettled(result *heist.AttackResult) {
	outcome := "repelled"
	if result.Success {
		outcome = "breach"
	}
	e.hub.BroadcastAttack(map[string]interface{}{
		"attackId":   result.ID,
		"playerId":   result.PlayerID,
		"targetId":   result.TargetID,
		"targetName": result.TargetName,
		"outcome":    outcome,
		"tokens":     float64(result.LootGained),
		"stakePaid":  result.StakePaid,
	})
}

// DefenseSettled publishes a simulated defense outcome to subscribed clients.
func (e *Emitter) DefenseSettled(event *heist.DefenseEvent) {
	outcome := "breached"
	if event.Success {
		outcome = "repelled"
	}
	e.hub.BroadcastDefense(map[string]interface{}{
		"eventId":         event.ID,
		"playerId":        event.PlayerID,
		"attackerName":    event.AttackerName,
		"outcome":         outcome,
		"tokens":          float64(event.LootLost + event.FeeEarned),
		"insurancePayout": event.InsurancePayout,
	})
}
