// ABOUTME: Registry of connected agents keyed by remote address.
// ABOUTME: Owns registration, lookup, listing and bulk shutdown of connections.

package agent

import (
	"errors"
	"log/slog"
	"net"
	"sort"
	"sync"
)

// ErrAgentAlreadyRegistered indicates an agent with the same ID is already connected.
var ErrAgentAlreadyRegistered = errors.New("agent already registered")

// ErrAgentNotFound indicates the specified agent was not found.
var ErrAgentNotFound = errors.New("agent not found")

// Manager coordinates all connected agents.
type Manager struct {
	agents map[string]*Connection
	mu     sync.Mutex
	logger *slog.Logger
}

// NewManager creates a new Manager instance.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		agents: make(map[string]*Connection),
		logger: logger.With("component", "agents"),
	}
}

// Attach wraps an accepted socket in a Connection, registers it and starts
// its receive loop. On a duplicate ID the socket is closed and the error
// returned.
func (m *Manager) Attach(conn net.Conn) (*Connection, error) {
	c := NewConnection(ConnectionParams{Conn: conn, Logger: m.logger})
	if err := m.Register(c); err != nil {
		c.Close()
		return nil, err
	}
	go m.Receive(c)
	return c, nil
}

// Register adds a new agent connection to the manager.
// Returns ErrAgentAlreadyRegistered if an agent with the same ID exists.
func (m *Manager) Register(agent *Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.agents[agent.ID]; exists {
		return ErrAgentAlreadyRegistered
	}

	m.agents[agent.ID] = agent
	m.logger.Info("agent connected",
		"agent_id", agent.ID,
		"instance_id", agent.InstanceID,
		"total_agents", len(m.agents),
	)
	return nil
}

// Unregister removes an agent from the manager and closes its connection
// and inbox. It is a no-op if the agent is not registered.
func (m *Manager) Unregister(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if agent, exists := m.agents[agentID]; exists {
		m.removeLocked(agent)
	}
}

// unregisterConn removes agent only if it is still the registered instance
// for its ID.
func (m *Manager) unregisterConn(agent *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, exists := m.agents[agent.ID]; exists && current == agent {
		m.removeLocked(agent)
	}
}

// removeLocked drops agent and closes it in the same critical section, so
// no caller sees a listed agent that is closed or an open one that is not
// listed. Close never blocks on a net.Conn.
func (m *Manager) removeLocked(agent *Connection) {
	delete(m.agents, agent.ID)
	agent.Close()
	m.logger.Info("agent disconnected",
		"agent_id", agent.ID,
		"instance_id", agent.InstanceID,
		"total_agents", len(m.agents),
	)
}

// Get retrieves a specific agent by ID.
func (m *Manager) Get(id string) (*Connection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	agent, ok := m.agents[id]
	return agent, ok
}

// List returns a sorted snapshot of connected agent IDs.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.agents))
	for id := range m.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of connected agents.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.agents)
}

// CloseAll unregisters and closes every connection, ignoring close errors.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, agent := range m.agents {
		m.removeLocked(agent)
	}
}
