// Package session tracks the players the game client has reported, with their
// last known position and facing.
package session

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/cory-johannsen/bedrockbridge/internal/game/rng"
)

var (
	// ErrNoPlayers is returned when a random target is requested but no player is known.
	ErrNoPlayers = errors.New("no players connected")
	// ErrPlayerNotFound is returned for a player name that has never been reported.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrNoPosition is returned when a player is known but has not reported a position yet.
	ErrNoPosition = errors.New("player position unknown")
)

// RandomTarget is the player name that selects a random known player.
const RandomTarget = "random"

// Vec3 is a world position.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Ahead returns the point distance blocks in front of v when facing yaw
// degrees. Yaw 0 faces +Z and 90 faces -X.
func (v Vec3) Ahead(yaw, distance float64) Vec3 {
	rad := yaw * math.Pi / 180
	return Vec3{
		X: v.X - math.Sin(rad)*distance,
		Y: v.Y,
		Z: v.Z + math.Cos(rad)*distance,
	}
}

// Distance returns the straight-line distance between v and o.
func (v Vec3) Distance(o Vec3) float64 {
	dx, dy, dz := v.X-o.X, v.Y-o.Y, v.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Player is a snapshot of one reported player.
type Player struct {
	// Name is the in-game player name.
	Name string `json:"name"`
	// Position is nil until the first transform event.
	Position *Vec3 `json:"position"`
	// Rotation is the yaw in degrees.
	Rotation float64 `json:"rotation"`
}

func (p Player) clone() Player {
	if p.Position != nil {
		pos := *p.Position
		p.Position = &pos
	}
	return p
}

// Manager is the shared player state fed by pushed events.
// All methods are safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	players map[string]*Player
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{players: make(map[string]*Player)}
}

// Join records that name entered the world, clearing any stale position.
//
// Precondition: name must be non-empty.
// Postcondition: Get(name) reports the player with a nil Position.
func (m *Manager) Join(name string) Player {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &Player{Name: name}
	m.players[name] = p
	return p.clone()
}

// UpdateTransform stores the latest position and yaw for name, registering the
// player if this is the first report.
//
// Precondition: name must be non-empty.
func (m *Manager) UpdateTransform(name string, pos Vec3, yaw float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[name]
	if !ok {
		p = &Player{Name: name}
		m.players[name] = p
	}
	p.Position = &pos
	p.Rotation = yaw
}

// Get returns a snapshot of name.
//
// Postcondition: Returns (player, true) if found, or (Player{}, false) otherwise.
func (m *Manager) Get(name string) (Player, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[name]
	if !ok {
		return Player{}, false
	}
	return p.clone(), true
}

// Names returns all known player names in sorted order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.players))
	for name := range m.players {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Random returns a snapshot of a uniformly chosen known player.
//
// Postcondition: Returns ErrNoPlayers when no player is known.
func (m *Manager) Random(src rng.Source) (Player, error) {
	name, ok := rng.Pick(src, m.Names())
	if !ok {
		return Player{}, ErrNoPlayers
	}
	p, ok := m.Get(name)
	if !ok {
		return Player{}, fmt.Errorf("%w: %s", ErrPlayerNotFound, name)
	}
	return p, nil
}

// Resolve maps a requested target to a known player. An empty name or
// RandomTarget selects a random player.
//
// Postcondition: Returns ErrNoPlayers when no player is known, or
// ErrPlayerNotFound for an unknown name.
func (m *Manager) Resolve(name string, src rng.Source) (Player, error) {
	if m.Count() == 0 {
		return Player{}, ErrNoPlayers
	}
	if name == "" || name == RandomTarget {
		return m.Random(src)
	}
	p, ok := m.Get(name)
	if !ok {
		return Player{}, fmt.Errorf("%w: %s", ErrPlayerNotFound, name)
	}
	return p, nil
}

// ResolvePositioned is Resolve restricted to players with a known position.
//
// Postcondition: Returned player has a non-nil Position, or the error wraps ErrNoPosition.
func (m *Manager) ResolvePositioned(name string, src rng.Source) (Player, error) {
	p, err := m.Resolve(name, src)
	if err != nil {
		return Player{}, err
	}
	if p.Position == nil {
		return Player{}, fmt.Errorf("%w: %s", ErrNoPosition, p.Name)
	}
	return p, nil
}

// Count returns the number of known players.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.players)
}
