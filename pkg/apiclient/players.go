package apiclient

import (
	"context"

	"github.com/marmos91/authkeep/pkg/models"
)

// Player is a player connected to the standalone host.
type Player struct {
	Name     string          `json:"name"`
	IP       string          `json:"ip"`
	Location models.Location `json:"location"`
	Messages []string        `json:"messages,omitempty"`
	Kicked   string          `json:"kicked,omitempty"`
}

// ActionResult reports whether a player action was allowed.
type ActionResult struct {
	Allowed  bool     `json:"allowed"`
	Messages []string `json:"messages,omitempty"`
}

// ListPlayers returns the connected players.
func (c *Client) ListPlayers(ctx context.Context) ([]Player, error) {
	return listResources[Player](ctx, c, "/api/v1/players")
}

// GetPlayer returns a connected player with the messages it received.
func (c *Client) GetPlayer(ctx context.Context, name string) (*Player, error) {
	return getResource[Player](ctx, c, resourcePath("/api/v1/players/%s", name))
}

// Join connects a player. An empty ip defaults to the loopback address.
func (c *Client) Join(ctx context.Context, name, ip string) (*Player, error) {
	return createResource[Player](ctx, c, "/api/v1/players", map[string]string{"name": name, "ip": ip})
}

// Quit disconnects a player.
func (c *Client) Quit(ctx context.Context, name string) error {
	return c.delete(ctx, resourcePath("/api/v1/players/%s", name))
}

// Act dispatches a chat, command or move event for a player.
func (c *Client) Act(ctx context.Context, name, eventType, message string) (*ActionResult, error) {
	body := map[string]string{"type": eventType, "message": message}
	return createResource[ActionResult](ctx, c, resourcePath("/api/v1/players/%s/actions", name), body)
}
