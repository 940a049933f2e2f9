package datasource

import (
	"context"
	"fmt"

	"github.com/marmos91/authkeep/pkg/models"
)

// ============================================
// SESSION COLUMNS
// ============================================

func (s *GORMStore) GetLoggedInSessions(ctx context.Context) ([]*models.PlayerAuth, error) {
	return listWhere[models.PlayerAuth](s.db, ctx, "is_logged = ?", true)
}

func (s *GORMStore) UpdateSession(ctx context.Context, auth *models.PlayerAuth) error {
	if auth == nil || auth.Username == "" {
		return models.ErrEmptyIdentity
	}
	return updateByField[models.PlayerAuth](s.db, ctx, "username", auth.Username, map[string]any{
		"ip":         auth.IP,
		"last_login": auth.LastLogin,
		"realname":   auth.RealName,
	}, models.ErrAuthNotFound)
}

func (s *GORMStore) UpdateQuitLocation(ctx context.Context, auth *models.PlayerAuth) error {
	if auth == nil || auth.Username == "" {
		return models.ErrEmptyIdentity
	}
	return updateByField[models.PlayerAuth](s.db, ctx, "username", auth.Username, map[string]any{
		"world": auth.World,
		"x":     auth.X,
		"y":     auth.Y,
		"z":     auth.Z,
		"yaw":   auth.Yaw,
		"pitch": auth.Pitch,
	}, models.ErrAuthNotFound)
}

func (s *GORMStore) PurgeLoggedInFlags(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.PlayerAuth{}).
		Where("is_logged = ?", true).
		Update("is_logged", false)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge logged-in flags: %w", result.Error)
	}
	return result.RowsAffected, nil
}
