package lifecycle

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/marmos91/authkeep/pkg/backup"
	"github.com/marmos91/authkeep/pkg/capability"
	"github.com/marmos91/authkeep/pkg/config"
	"github.com/marmos91/authkeep/pkg/datasource"
	"github.com/marmos91/authkeep/pkg/host"
	"github.com/marmos91/authkeep/pkg/limbo"
	"github.com/marmos91/authkeep/pkg/listener"
	"github.com/marmos91/authkeep/pkg/messages"
	"github.com/marmos91/authkeep/pkg/metrics"
	"github.com/marmos91/authkeep/pkg/playerdata"
	"github.com/marmos91/authkeep/pkg/process"
	"github.com/marmos91/authkeep/pkg/reconcile"
	"github.com/marmos91/authkeep/pkg/registry"
	"github.com/marmos91/authkeep/pkg/security"
	"github.com/marmos91/authkeep/pkg/session"
	"github.com/marmos91/authkeep/pkg/spawn"
	"github.com/marmos91/authkeep/pkg/tasks"
	"github.com/marmos91/authkeep/pkg/validation"
)

// Singletons registered before any service is built.
var (
	KeyConfig    = registry.NewKey[*config.Config]("config")
	KeyStore     = registry.NewKey[datasource.DataSource]("datasource")
	KeyHost      = registry.NewKey[host.Host]("host")
	KeyScheduler = registry.NewKey[host.Scheduler]("scheduler")
	KeyClock     = registry.NewKey[Clock]("clock")
	KeyMetrics   = registry.NewKey[*metrics.Lifecycle]("metrics")
	KeyDataDir   = registry.NewKey[string]("data_dir")
)

// Services built by the registry.
var (
	KeySessions     = registry.NewKey[*session.Cache]("sessions")
	KeyLimbo        = registry.NewKey[*limbo.Cache]("limbo")
	KeyPlayerData   = registry.NewKey[*playerdata.Store]("player_data")
	KeyValidation   = registry.NewKey[*validation.Service]("validation")
	KeySpawn        = registry.NewKey[*spawn.Loader]("spawn")
	KeyMessages     = registry.NewKey[*messages.Messages]("messages")
	KeyCapabilities = registry.NewKey[capability.Set]("capabilities")
	KeyHasher       = registry.NewKey[*security.Hasher]("hasher")
	KeyManagement   = registry.NewKey[*process.Management]("management")
	KeyReconciler   = registry.NewKey[*reconcile.Reconciler]("reconciler")
	KeyBackup       = registry.NewKey[*backup.Service]("backup")
	KeyPurge        = registry.NewKey[*tasks.Purge]("purge")
	KeyCleanup      = registry.NewKey[*tasks.Cleanup]("cleanup")
	KeyRecall       = registry.NewKey[*tasks.Recall]("email_recall")
	KeyListeners    = registry.NewKey[[]host.Listener]("listeners")
)

// instantiate is the order in which step 5 builds the services. Factories
// pull their own dependencies, so the order only affects logging.
var instantiate = []func(r *registry.Registry) error{
	get(KeySessions),
	get(KeyLimbo),
	get(KeyPlayerData),
	get(KeyValidation),
	get(KeySpawn),
	get(KeyMessages),
	get(KeyCapabilities),
	get(KeyHasher),
	get(KeyManagement),
	get(KeyReconciler),
	get(KeyBackup),
	get(KeyPurge),
	get(KeyCleanup),
	get(KeyRecall),
	get(KeyListeners),
}

func get[T any](k registry.Key[T]) func(r *registry.Registry) error {
	return func(r *registry.Registry) error {
		_, err := registry.Get(r, k)
		return err
	}
}

// openPlayerDataFunc opens, or hands back, the player data store.
type openPlayerDataFunc func(ctx context.Context, opts playerdata.Options) (*playerdata.Store, error)

// provideServices declares how every service is built.
func provideServices(ctx context.Context, r *registry.Registry, opts Options, openPlayerData openPlayerDataFunc) error {
	providers := []func() error{
		func() error {
			return registry.Provide(r, KeySessions, func(*registry.Registry) (*session.Cache, error) {
				return session.NewCache(), nil
			})
		},
		func() error {
			return registry.Provide(r, KeyLimbo, func(*registry.Registry) (*limbo.Cache, error) {
				return limbo.NewCache(), nil
			})
		},
		func() error {
			return registry.Provide(r, KeyPlayerData, func(r *registry.Registry) (*playerdata.Store, error) {
				cfg, err := registry.Get(r, KeyConfig)
				if err != nil {
					return nil, err
				}
				dir, err := registry.Get(r, KeyDataDir)
				if err != nil {
					return nil, err
				}
				return openPlayerData(ctx, playerdata.Options{
					Dir:            filepath.Join(dir, "playerdata"),
					IndexCacheSize: cfg.PlayerData.IndexCacheSize.Int64(),
				})
			})
		},
		func() error {
			return registry.Provide(r, KeyValidation, func(r *registry.Registry) (*validation.Service, error) {
				cfg, err := registry.Get(r, KeyConfig)
				if err != nil {
					return nil, err
				}
				return validation.New(cfg.Restrictions.UnrestrictedNames, opts.NPCHooks...), nil
			})
		},
		func() error {
			return registry.Provide(r, KeySpawn, func(r *registry.Registry) (*spawn.Loader, error) {
				cfg, err := registry.Get(r, KeyConfig)
				if err != nil {
					return nil, err
				}
				return spawn.New(cfg.Restrictions.Spawn), nil
			})
		},
		func() error {
			return registry.Provide(r, KeyMessages, func(r *registry.Registry) (*messages.Messages, error) {
				cfg, err := registry.Get(r, KeyConfig)
				if err != nil {
					return nil, err
				}
				dir, err := registry.Get(r, KeyDataDir)
				if err != nil {
					return nil, err
				}
				return messages.New(dir, cfg.Messages.Language)
			})
		},
		func() error {
			return registry.Provide(r, KeyCapabilities, func(r *registry.Registry) (capability.Set, error) {
				cfg, err := registry.Get(r, KeyConfig)
				if err != nil {
					return capability.Set{}, err
				}
				h, err := registry.Get(r, KeyHost)
				if err != nil {
					return capability.Set{}, err
				}
				reported := h.Features()
				if len(reported) == 0 {
					reported = cfg.Host.Features
				}
				return capability.Negotiate(h.Version(), reported), nil
			})
		},
		func() error {
			return registry.Provide(r, KeyHasher, func(r *registry.Registry) (*security.Hasher, error) {
				cfg, err := registry.Get(r, KeyConfig)
				if err != nil {
					return nil, err
				}
				return security.NewHasher(cfg.Security.BcryptCost, cfg.Security.MinPasswordLength), nil
			})
		},
		func() error {
			return registry.Provide(r, KeyManagement, newManagement)
		},
		func() error {
			return registry.Provide(r, KeyReconciler, newReconciler)
		},
		func() error {
			return registry.Provide(r, KeyBackup, func(r *registry.Registry) (*backup.Service, error) {
				return newBackup(ctx, r)
			})
		},
		func() error {
			return registry.Provide(r, KeyPurge, func(r *registry.Registry) (*tasks.Purge, error) {
				cfg, err := registry.Get(r, KeyConfig)
				if err != nil {
					return nil, err
				}
				store, err := registry.Get(r, KeyStore)
				if err != nil {
					return nil, err
				}
				pd, err := registry.Get(r, KeyPlayerData)
				if err != nil {
					return nil, err
				}
				return tasks.NewPurge(store, pd, cfg.Purge), nil
			})
		},
		func() error {
			return registry.Provide(r, KeyCleanup, func(r *registry.Registry) (*tasks.Cleanup, error) {
				h, err := registry.Get(r, KeyHost)
				if err != nil {
					return nil, err
				}
				l, err := registry.Get(r, KeyLimbo)
				if err != nil {
					return nil, err
				}
				s, err := registry.Get(r, KeySessions)
				if err != nil {
					return nil, err
				}
				m, _ := registry.GetIfAvailable(r, KeyMetrics)
				return tasks.NewCleanup(h, l, s, m), nil
			})
		},
		func() error {
			return registry.Provide(r, KeyRecall, func(r *registry.Registry) (*tasks.Recall, error) {
				store, err := registry.Get(r, KeyStore)
				if err != nil {
					return nil, err
				}
				h, err := registry.Get(r, KeyHost)
				if err != nil {
					return nil, err
				}
				s, err := registry.Get(r, KeySessions)
				if err != nil {
					return nil, err
				}
				msgs, err := registry.Get(r, KeyMessages)
				if err != nil {
					return nil, err
				}
				return tasks.NewRecall(store, h, s, msgs), nil
			})
		},
		func() error {
			return registry.Provide(r, KeyListeners, func(r *registry.Registry) ([]host.Listener, error) {
				return newListeners(r, opts.Owner)
			})
		},
	}

	for _, p := range providers {
		if err := p(); err != nil {
			return err
		}
	}
	return nil
}

func newManagement(r *registry.Registry) (*process.Management, error) {
	var d process.Deps
	var err error
	if d.Config, err = registry.Get(r, KeyConfig); err != nil {
		return nil, err
	}
	if d.Store, err = registry.Get(r, KeyStore); err != nil {
		return nil, err
	}
	if d.Host, err = registry.Get(r, KeyHost); err != nil {
		return nil, err
	}
	if d.Sessions, err = registry.Get(r, KeySessions); err != nil {
		return nil, err
	}
	if d.Limbo, err = registry.Get(r, KeyLimbo); err != nil {
		return nil, err
	}
	pd, err := registry.Get(r, KeyPlayerData)
	if err != nil {
		return nil, err
	}
	d.Snapshots = pd
	if d.Hasher, err = registry.Get(r, KeyHasher); err != nil {
		return nil, err
	}
	if d.Messages, err = registry.Get(r, KeyMessages); err != nil {
		return nil, err
	}
	if d.Validation, err = registry.Get(r, KeyValidation); err != nil {
		return nil, err
	}
	if d.Spawn, err = registry.Get(r, KeySpawn); err != nil {
		return nil, err
	}
	d.Metrics, _ = registry.GetIfAvailable(r, KeyMetrics)
	return process.New(d), nil
}

func newReconciler(r *registry.Registry) (*reconcile.Reconciler, error) {
	cfg, err := registry.Get(r, KeyConfig)
	if err != nil {
		return nil, err
	}
	var d reconcile.Deps
	if d.Store, err = registry.Get(r, KeyStore); err != nil {
		return nil, err
	}
	pd, err := registry.Get(r, KeyPlayerData)
	if err != nil {
		return nil, err
	}
	d.Snapshots = pd
	if d.Limbo, err = registry.Get(r, KeyLimbo); err != nil {
		return nil, err
	}
	if d.Sessions, err = registry.Get(r, KeySessions); err != nil {
		return nil, err
	}
	if d.Exemptions, err = registry.Get(r, KeyValidation); err != nil {
		return nil, err
	}
	if d.Locator, err = registry.Get(r, KeySpawn); err != nil {
		return nil, err
	}
	return reconcile.New(reconcile.Options{
		SaveQuitLocation:        cfg.Restrictions.SaveQuitLocation,
		TeleportUnauthedToSpawn: cfg.Restrictions.TeleportUnauthedToSpawn,
		NoTeleport:              cfg.Restrictions.NoTeleport,
	}, d), nil
}

func newBackup(ctx context.Context, r *registry.Registry) (*backup.Service, error) {
	cfg, err := registry.Get(r, KeyConfig)
	if err != nil {
		return nil, err
	}
	store, err := registry.Get(r, KeyStore)
	if err != nil {
		return nil, err
	}
	m, _ := registry.GetIfAvailable(r, KeyMetrics)

	var uploader backup.Uploader
	if cfg.Backup.Enabled && cfg.Backup.S3.Enabled {
		u, err := backup.NewS3UploaderFromConfig(ctx, cfg.Backup.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to configure backup upload: %w", err)
		}
		uploader = u
	}
	return backup.New(cfg.Backup, store, uploader, m), nil
}

func newListeners(r *registry.Registry, owner string) ([]host.Listener, error) {
	cfg, err := registry.Get(r, KeyConfig)
	if err != nil {
		return nil, err
	}
	caps, err := registry.Get(r, KeyCapabilities)
	if err != nil {
		return nil, err
	}
	mgmt, err := registry.Get(r, KeyManagement)
	if err != nil {
		return nil, err
	}
	msgs, err := registry.Get(r, KeyMessages)
	if err != nil {
		return nil, err
	}
	sched, err := registry.Get(r, KeyScheduler)
	if err != nil {
		return nil, err
	}
	return listener.Build(caps, listener.Deps{
		Auth:         mgmt,
		Messages:     msgs,
		Restrictions: cfg.Restrictions,
		Scheduler:    sched,
		Owner:        owner,
	}), nil
}
