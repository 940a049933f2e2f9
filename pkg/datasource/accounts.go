package datasource

import (
	"context"
	"time"

	"github.com/marmos91/authkeep/pkg/models"
)

// ============================================
// ACCOUNTS
// ============================================

func (s *GORMStore) IsAuthAvailable(ctx context.Context, name string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.PlayerAuth{}).
		Where("username = ?", models.NormalizeName(name)).
		Count(&count).Error
	return count > 0, err
}

func (s *GORMStore) GetAuth(ctx context.Context, name string) (*models.PlayerAuth, error) {
	return getByField[models.PlayerAuth](s.db, ctx, "username", models.NormalizeName(name), models.ErrAuthNotFound)
}

func (s *GORMStore) SaveAuth(ctx context.Context, auth *models.PlayerAuth) error {
	auth.Username = models.NormalizeName(auth.Username)
	if auth.Username == "" {
		return models.ErrEmptyIdentity
	}
	if auth.RealName == "" {
		auth.RealName = auth.Username
	}
	if err := s.db.WithContext(ctx).Create(auth).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.ErrDuplicateAuth
		}
		return err
	}
	return nil
}

func (s *GORMStore) UpdatePassword(ctx context.Context, name, hash string) error {
	return updateByField[models.PlayerAuth](s.db, ctx, "username", models.NormalizeName(name),
		map[string]any{"password": hash}, models.ErrAuthNotFound)
}

func (s *GORMStore) UpdateEmail(ctx context.Context, name, email string) error {
	return updateByField[models.PlayerAuth](s.db, ctx, "username", models.NormalizeName(name),
		map[string]any{"email": email}, models.ErrAuthNotFound)
}

func (s *GORMStore) RemoveAuth(ctx context.Context, name string) error {
	return deleteByField[models.PlayerAuth](s.db, ctx, "username", models.NormalizeName(name), models.ErrAuthNotFound)
}

func (s *GORMStore) SetLogged(ctx context.Context, name string) error {
	now := time.Now()
	return updateByField[models.PlayerAuth](s.db, ctx, "username", models.NormalizeName(name),
		map[string]any{"is_logged": true, "authenticated_at": &now}, models.ErrAuthNotFound)
}

func (s *GORMStore) SetUnlogged(ctx context.Context, name string) error {
	return updateByField[models.PlayerAuth](s.db, ctx, "username", models.NormalizeName(name),
		map[string]any{"is_logged": false}, models.ErrAuthNotFound)
}

func (s *GORMStore) IsLogged(ctx context.Context, name string) (bool, error) {
	auth, err := s.GetAuth(ctx, name)
	if err != nil {
		return false, err
	}
	return auth.IsLogged, nil
}

func (s *GORMStore) GetAllAuths(ctx context.Context) ([]*models.PlayerAuth, error) {
	return listWhere[models.PlayerAuth](s.db, ctx, "")
}

func (s *GORMStore) CountAuths(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.PlayerAuth{}).Count(&count).Error
	return count, err
}

// PurgeInactive removes accounts not seen since cutoff. Accounts that never
// logged in are judged by their registration time. Logged-in accounts are
// never purged.
func (s *GORMStore) PurgeInactive(ctx context.Context, cutoff time.Time) ([]string, error) {
	const cond = "is_logged = ? AND ((last_login IS NOT NULL AND last_login < ?) OR (last_login IS NULL AND registered_at < ?))"

	stale, err := listWhere[models.PlayerAuth](s.db, ctx, cond, false, cutoff, cutoff)
	if err != nil {
		return nil, err
	}
	if len(stale) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(stale))
	ids := make([]uint, 0, len(stale))
	for _, a := range stale {
		names = append(names, a.Username)
		ids = append(ids, a.ID)
	}

	if err := s.db.WithContext(ctx).Delete(&models.PlayerAuth{}, ids).Error; err != nil {
		return nil, err
	}
	return names, nil
}
