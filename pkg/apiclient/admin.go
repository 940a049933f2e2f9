package apiclient

import (
	"context"
	"time"
)

// Session is one authenticated identity in the session cache.
type Session struct {
	Username  string     `json:"username"`
	RealName  string     `json:"realname"`
	IP        string     `json:"ip,omitempty"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// Status is the envelope used by health, reload and backup responses.
type Status struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// ListSessions returns the authenticated identities.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	return listResources[Session](ctx, c, "/api/v1/sessions")
}

// Reload asks the running plugin to reload. The reload happens
// asynchronously; a conflict means one is already pending.
func (c *Client) Reload(ctx context.Context) error {
	return c.post(ctx, "/api/v1/reload", nil, nil)
}

// Backup takes a database backup and returns the archive path.
func (c *Client) Backup(ctx context.Context) (string, error) {
	st, err := createResource[Status](ctx, c, "/api/v1/backup", nil)
	if err != nil {
		return "", err
	}
	path, _ := st.Data["path"].(string)
	return path, nil
}

// Health returns the liveness probe.
func (c *Client) Health(ctx context.Context) (*Status, error) {
	return getResource[Status](ctx, c, "/health")
}

// Ready returns the readiness probe. A plugin that is not enabled yields an
// APIError with IsUnavailable set.
func (c *Client) Ready(ctx context.Context) (*Status, error) {
	return getResource[Status](ctx, c, "/health/ready")
}
