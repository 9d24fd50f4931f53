package ai

import (
	"time"

	"github.com/udisondev/coopsim/internal/model"
)

// Controller represents AI controller interface for NPCs
type Controller interface {
	// Start starts AI controller
	Start()

	// Stop stops AI controller
	Stop()

	// SetState sets AI state
	SetState(state model.AIState)

	// CurrentState returns current AI state
	CurrentState() model.AIState

	// Tick performs one AI step of dt seconds (called once per instance tick)
	Tick(now time.Time, dt float64)

	// NotifyDamage reports damage dealt to the NPC by attacker
	NotifyDamage(attackerID model.EntityID, damage float64, now time.Time)
}
