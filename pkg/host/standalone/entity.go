package standalone

import (
	"sync"

	"github.com/marmos91/authkeep/pkg/host"
	"github.com/marmos91/authkeep/pkg/models"
)

// Player is a connected entity of the standalone host.
type Player struct {
	name string
	ip   string

	mu       sync.Mutex
	state    host.EntityState
	metadata map[string]bool
	inbox    []string
	kicked   string
}

// NewPlayer creates a player standing at loc with default speeds.
func NewPlayer(name, ip string, loc models.Location) *Player {
	return &Player{
		name: name,
		ip:   ip,
		state: host.EntityState{
			Location:  loc,
			WalkSpeed: 0.2,
			FlySpeed:  0.1,
		},
		metadata: map[string]bool{},
	}
}

func (p *Player) Name() string { return p.name }

func (p *Player) IP() string { return p.ip }

func (p *Player) State() host.EntityState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) ApplyState(s host.EntityState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Player) Teleport(loc models.Location) {
	p.mu.Lock()
	p.state.Location = loc
	p.mu.Unlock()
}

// SetMetadata tags the player, as another plugin would.
func (p *Player) SetMetadata(key string) {
	p.mu.Lock()
	p.metadata[key] = true
	p.mu.Unlock()
}

func (p *Player) HasMetadata(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metadata[key]
}

func (p *Player) SendMessage(lines ...string) {
	p.mu.Lock()
	p.inbox = append(p.inbox, lines...)
	p.mu.Unlock()
}

// Messages returns every line sent to the player so far.
func (p *Player) Messages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.inbox...)
}

func (p *Player) Kick(reason string) {
	p.mu.Lock()
	p.kicked = reason
	p.mu.Unlock()
}

// KickReason returns the reason of the last kick, or "".
func (p *Player) KickReason() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.kicked
}

var _ host.Entity = (*Player)(nil)
