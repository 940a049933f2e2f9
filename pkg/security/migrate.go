package security

import (
	"context"
	"fmt"

	"github.com/marmos91/authkeep/internal/logger"
	"github.com/marmos91/authkeep/pkg/datasource"
)

const (
	HashBcrypt    = "BCRYPT"
	HashPlaintext = "PLAINTEXT"
)

// MigratePlaintextPasswords rehashes every stored password that is not a
// bcrypt hash. It runs only when algorithm is PLAINTEXT and returns the
// number of migrated accounts. The caller switches the configured algorithm
// to BCRYPT once it returns without error.
//
// A failure on any account aborts the migration: the store must not be handed
// to other services in a mixed state.
func MigratePlaintextPasswords(ctx context.Context, store datasource.AccountStore, h *Hasher, algorithm string) (int, error) {
	if algorithm != HashPlaintext {
		return 0, nil
	}

	logger.Warn("Plain-text password storage is no longer supported, migrating to bcrypt")

	auths, err := store.GetAllAuths(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list accounts: %w", err)
	}

	migrated := 0
	for _, auth := range auths {
		if IsHashed(auth.Password) {
			continue
		}
		hash, err := h.Hash(auth.Password)
		if err != nil {
			return migrated, fmt.Errorf("failed to hash password of %s: %w", auth.Username, err)
		}
		if err := store.UpdatePassword(ctx, auth.Username, hash); err != nil {
			return migrated, fmt.Errorf("failed to update password of %s: %w", auth.Username, err)
		}
		migrated++
	}

	logger.Info("Password migration complete", logger.KeyCount, migrated)
	return migrated, nil
}
