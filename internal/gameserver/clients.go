package gameserver

import (
	"sync"
)

// ClientManager tracks the connected client of every identity.
// Thread-safe for concurrent access.
type ClientManager struct {
	mu      sync.RWMutex
	clients map[string]*GameClient // key: identity
}

// NewClientManager creates a new client manager.
func NewClientManager() *ClientManager {
	return &ClientManager{
		clients: make(map[string]*GameClient, 64),
	}
}

// Register makes client the current connection of identity and returns the
// connection it replaced, if any.
func (cm *ClientManager) Register(identity string, client *GameClient) *GameClient {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	prev := cm.clients[identity]
	cm.clients[identity] = client
	return prev
}

// Unregister removes client if it is still the current connection of
// identity. A connection replaced by a resume does not unregister its
// successor.
func (cm *ClientManager) Unregister(identity string, client *GameClient) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.clients[identity] != client {
		return false
	}
	delete(cm.clients, identity)
	return true
}

// GetClient returns the client for identity, or nil.
func (cm *ClientManager) GetClient(identity string) *GameClient {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.clients[identity]
}

// Count returns total number of connected clients.
func (cm *ClientManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.clients)
}

// ForEachClient iterates over all connected clients.
// If fn returns false, iteration stops.
func (cm *ClientManager) ForEachClient(fn func(*GameClient) bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	for _, client := range cm.clients {
		if !fn(client) {
			return
		}
	}
}
