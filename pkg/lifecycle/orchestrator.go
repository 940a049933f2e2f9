package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/marmos91/authkeep/internal/logger"
	"github.com/marmos91/authkeep/internal/telemetry"
	"github.com/marmos91/authkeep/pkg/backup"
	"github.com/marmos91/authkeep/pkg/config"
	"github.com/marmos91/authkeep/pkg/datasource"
	"github.com/marmos91/authkeep/pkg/host"
	"github.com/marmos91/authkeep/pkg/metrics"
	"github.com/marmos91/authkeep/pkg/playerdata"
	"github.com/marmos91/authkeep/pkg/reconcile"
	"github.com/marmos91/authkeep/pkg/registry"
	"github.com/marmos91/authkeep/pkg/security"
	"github.com/marmos91/authkeep/pkg/tasks"
	"github.com/marmos91/authkeep/pkg/validation"
)

// DefaultOwner tags the listeners and tasks registered with the host.
const DefaultOwner = "authkeep"

// ErrAlreadyEnabled is returned by Enable when the plugin is not disabled.
var ErrAlreadyEnabled = errors.New("plugin is already enabled")

// Options configures an Orchestrator.
type Options struct {
	// ConfigPath is the configuration file. A missing file is created with
	// the defaults.
	ConfigPath string

	Host host.Host

	// Owner defaults to DefaultOwner.
	Owner string

	// Version is the plugin version, optionally followed by "-b<build>".
	Version string

	// Clock defaults to the wall clock.
	Clock Clock

	// Metrics may be nil.
	Metrics *metrics.Lifecycle

	// NPCHooks let other plugins mark their fake players.
	NPCHooks []validation.NPCHook

	// LogOutput, when set, replaces the configured log output.
	LogOutput io.Writer
}

type state int

const (
	stateDisabled state = iota
	stateEnabling
	stateEnabled
)

func (s state) String() string {
	switch s {
	case stateEnabling:
		return "enabling"
	case stateEnabled:
		return "enabled"
	default:
		return "disabled"
	}
}

// Orchestrator enables and disables the plugin.
//
// Enable, Disable and Reload are expected to be called from one goroutine.
// Lookup and the accessors are safe from any goroutine.
type Orchestrator struct {
	opts    Options
	clock   Clock
	metrics *metrics.Lifecycle
	version string
	build   string

	mu          sync.Mutex
	state       state
	cfg         *config.Config
	store       datasource.DataSource
	reg         *registry.Registry
	watchCancel context.CancelFunc
	stopOnce    *sync.Once

	// The player data store outlives reloads. Its directory lock would
	// otherwise have to be released before async tasks of the previous run
	// are done with it.
	playerData    *playerdata.Store
	playerDataDir string

	stopOrUnloads atomic.Int32

	drainMu sync.Mutex
	drains  []*Drainer
}

// New creates a disabled orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Owner == "" {
		opts.Owner = DefaultOwner
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	version, build := ParseVersion(opts.Version)
	return &Orchestrator{
		opts:     opts,
		clock:    opts.Clock,
		metrics:  opts.Metrics,
		version:  version,
		build:    build,
		stopOnce: &sync.Once{},
	}
}

// ParseVersion splits "1.2.3-b45" into version "1.2.3" and build "45".
// Without a build suffix the build is "Unknown"; an empty string yields "N/D".
func ParseVersion(raw string) (version, build string) {
	version, build = "N/D", "Unknown"
	if raw == "" {
		return version, build
	}
	i := strings.LastIndex(raw, "-")
	if i < 0 {
		return raw, build
	}
	return raw[:i], strings.TrimPrefix(raw[i+1:], "b")
}

// Version returns the plugin version and build number.
func (o *Orchestrator) Version() (version, build string) {
	return o.version, o.build
}

// Owner returns the owner tag used with the host.
func (o *Orchestrator) Owner() string {
	return o.opts.Owner
}

// Enabled reports whether the last Enable completed.
func (o *Orchestrator) Enabled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == stateEnabled
}

// State returns "disabled", "enabling" or "enabled".
func (o *Orchestrator) State() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.String()
}

// Config returns the configuration of the current enable, or nil.
func (o *Orchestrator) Config() *config.Config {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg
}

func (o *Orchestrator) currentRegistry() *registry.Registry {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.reg
}

// Lookup returns an already built service of the running plugin.
func Lookup[T any](o *Orchestrator, k registry.Key[T]) (T, bool) {
	if !o.Enabled() {
		var zero T
		return zero, false
	}
	return registry.GetIfAvailable(o.currentRegistry(), k)
}

// Enable runs the enable sequence. On failure the plugin is stopped or
// unloaded and the error is returned; nothing is retried.
func (o *Orchestrator) Enable(ctx context.Context) error {
	o.mu.Lock()
	if o.state != stateDisabled {
		o.mu.Unlock()
		return ErrAlreadyEnabled
	}
	o.state = stateEnabling
	o.cfg = nil
	o.stopOnce = &sync.Once{}
	o.mu.Unlock()

	start := o.clock.Now()
	ctx, span := telemetry.StartLifecycleSpan(ctx, telemetry.SpanEnable, "enable")
	defer span.End()

	err := o.initialize(ctx)
	o.metrics.ObserveEnable(o.clock.Now().Sub(start), err)
	if err != nil {
		telemetry.RecordError(ctx, err)
		logger.ErrorCtx(ctx, "Failed to enable authkeep",
			logger.Err(err), logger.KeyCause, causeChain(err))
		o.StopOrUnload(ctx)
		return err
	}

	o.mu.Lock()
	o.state = stateEnabled
	o.mu.Unlock()

	o.afterEnable(ctx)
	return nil
}

type step struct {
	name string
	run  func(ctx context.Context) error
}

func (o *Orchestrator) initialize(ctx context.Context) error {
	steps := []step{
		{"config", o.loadConfig},
		{"logging", o.configureLogging},
		{"datasource", o.openStore},
		{"registry", o.buildRegistry},
		{"services", o.instantiateServices},
		{"reconcile", o.reconcileSessions},
		{"listeners", o.registerListeners},
		{"tasks", o.scheduleTasks},
	}

	for i, s := range steps {
		stepCtx, span := telemetry.StartLifecycleSpan(ctx, telemetry.SpanEnableStep, "enable", telemetry.Step(i+1))
		err := s.run(stepCtx)
		if err != nil {
			telemetry.RecordError(stepCtx, err)
			span.End()
			return fmt.Errorf("enable step %d (%s) failed: %w", i+1, s.name, err)
		}
		span.End()
		logger.DebugCtx(ctx, "Enable step completed", logger.KeyStep, s.name)
	}
	return nil
}

// causeChain lists the messages of err and every error it wraps.
func causeChain(err error) []string {
	var chain []string
	for err != nil {
		chain = append(chain, err.Error())
		err = errors.Unwrap(err)
	}
	return chain
}

// Step 1.
func (o *Orchestrator) loadConfig(ctx context.Context) error {
	cfg, created, err := config.LoadOrCreate(o.opts.ConfigPath)
	if err != nil {
		return err
	}
	if created {
		logger.WarnCtx(ctx, "Configuration file not found, wrote defaults", logger.KeyPath, o.opts.ConfigPath)
	}
	o.mu.Lock()
	o.cfg = cfg
	o.mu.Unlock()
	return nil
}

// Step 2.
func (o *Orchestrator) configureLogging(context.Context) error {
	cfg := o.Config()
	if o.opts.LogOutput != nil {
		logger.InitWithWriter(o.opts.LogOutput, cfg.Logging.Level, cfg.Logging.Format, false)
		return nil
	}
	return logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// Step 3. Migrations run before any other service can see the store.
func (o *Orchestrator) openStore(ctx context.Context) error {
	cfg := o.Config()
	store, err := datasource.New(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.store = store
	o.mu.Unlock()

	hasher := security.NewHasher(cfg.Security.BcryptCost, cfg.Security.MinPasswordLength)
	n, err := security.MigratePlaintextPasswords(ctx, store, hasher, cfg.Security.PasswordHash)
	if err != nil {
		return err
	}
	if cfg.Security.PasswordHash == security.HashPlaintext {
		cfg.Security.PasswordHash = security.HashBcrypt
		if o.opts.ConfigPath != "" {
			if err := config.SaveConfig(cfg, o.opts.ConfigPath); err != nil {
				return err
			}
		}
		logger.InfoCtx(ctx, "Migrated plain-text passwords", logger.KeyCount, n)
	}
	return nil
}

// Step 4.
func (o *Orchestrator) buildRegistry(ctx context.Context) error {
	o.mu.Lock()
	cfg, store := o.cfg, o.store
	o.mu.Unlock()

	r := registry.New()
	singletons := []error{
		registry.Register(r, KeyConfig, cfg),
		registry.Register(r, KeyStore, store),
		registry.Register(r, KeyHost, o.opts.Host),
		registry.Register(r, KeyScheduler, o.opts.Host.Scheduler()),
		registry.Register(r, KeyClock, o.clock),
		registry.Register(r, KeyMetrics, o.metrics),
		registry.Register(r, KeyDataDir, cfg.DataDir),
	}
	if err := errors.Join(singletons...); err != nil {
		return err
	}
	if err := provideServices(ctx, r, o.opts, o.openPlayerData); err != nil {
		return err
	}

	o.mu.Lock()
	o.reg = r
	o.mu.Unlock()
	return nil
}

// Step 5.
func (o *Orchestrator) instantiateServices(context.Context) error {
	r := o.currentRegistry()
	for _, build := range instantiate {
		if err := build(r); err != nil {
			return err
		}
	}
	logger.Debug("Services ready", "services", r.Order())
	return nil
}

// openPlayerData returns the store kept from a previous enable when it
// lives in the same directory. Otherwise the old store is retired through
// a drain and a new one is opened. A changed index cache size only takes
// effect with a new directory or after Shutdown.
func (o *Orchestrator) openPlayerData(ctx context.Context, opts playerdata.Options) (*playerdata.Store, error) {
	opts.Dir = filepath.Clean(opts.Dir)

	o.mu.Lock()
	current, dir := o.playerData, o.playerDataDir
	o.mu.Unlock()
	if current != nil && dir == opts.Dir {
		return current, nil
	}
	if current != nil {
		logger.InfoCtx(ctx, "Player data directory changed", "from", dir, "to", opts.Dir)
		if old := o.takePlayerData(); old != nil {
			o.startDrain(ctx, o.Config(), []io.Closer{old})
		}
	}

	pd, err := playerdata.Open(opts)
	if err != nil {
		return nil, err
	}
	o.mu.Lock()
	o.playerData, o.playerDataDir = pd, opts.Dir
	o.mu.Unlock()
	return pd, nil
}

// takePlayerData detaches the kept player data store, if any.
func (o *Orchestrator) takePlayerData() *playerdata.Store {
	o.mu.Lock()
	defer o.mu.Unlock()
	pd := o.playerData
	o.playerData, o.playerDataDir = nil, ""
	return pd
}

// Step 6.
func (o *Orchestrator) reconcileSessions(ctx context.Context) error {
	r := o.currentRegistry()
	cfg := o.Config()
	store, err := registry.Get(r, KeyStore)
	if err != nil {
		return err
	}
	sessions, err := registry.Get(r, KeySessions)
	if err != nil {
		return err
	}

	ctx, span := telemetry.StartLifecycleSpan(ctx, telemetry.SpanStartupPass, "enable")
	defer span.End()

	online := o.opts.Host.OnlineEntities()
	report, err := reconcile.Startup(ctx, store, sessions, online, cfg.Security.ReloadCommandSupport, o.clock.Now())
	if err != nil {
		return err
	}
	span.SetAttributes(telemetry.Online(len(online)))
	o.metrics.SetSessions(sessions.Count())
	logger.InfoCtx(ctx, "Sessions reconciled",
		logger.KeyOnline, len(online),
		"purged", report.Purged,
		"refreshed", len(report.Refreshed),
		"untouched", report.Untouched,
		"failed", len(report.Failed))
	return nil
}

// Step 7.
func (o *Orchestrator) registerListeners(ctx context.Context) error {
	r := o.currentRegistry()
	ls, err := registry.Get(r, KeyListeners)
	if err != nil {
		return err
	}
	caps, err := registry.Get(r, KeyCapabilities)
	if err != nil {
		return err
	}
	for _, l := range ls {
		o.opts.Host.RegisterListener(o.opts.Owner, l)
	}
	telemetry.SetAttributes(ctx, telemetry.Features(caps.Names()))
	logger.InfoCtx(ctx, "Listeners registered",
		"listeners", len(ls), logger.KeyFeature, caps.Names())
	return nil
}

// Step 8.
func (o *Orchestrator) scheduleTasks(ctx context.Context) error {
	r := o.currentRegistry()
	cfg := o.Config()
	sched := o.opts.Host.Scheduler()

	cleanup, err := registry.Get(r, KeyCleanup)
	if err != nil {
		return err
	}
	if _, err := tasks.Schedule(sched, o.opts.Owner, cfg.Tasks.CleanupInterval, cleanup, o.metrics); err != nil {
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}

	if cfg.Email.RecallPlayers {
		recall, err := registry.Get(r, KeyRecall)
		if err != nil {
			return err
		}
		if _, err := tasks.Schedule(sched, o.opts.Owner, cfg.Email.RecallInterval, recall, o.metrics); err != nil {
			return fmt.Errorf("failed to schedule email recall: %w", err)
		}
	}

	if cfg.Messages.Watch {
		msgs, err := registry.Get(r, KeyMessages)
		if err != nil {
			return err
		}
		watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		o.mu.Lock()
		o.watchCancel = cancel
		o.mu.Unlock()
		go func() {
			if err := msgs.Watch(watchCtx); err != nil {
				logger.Warn("Message catalogue watcher stopped", logger.Err(err))
			}
		}()
	}
	return nil
}

// afterEnable runs the work that follows a successful enable. None of it
// can fail the enable.
func (o *Orchestrator) afterEnable(ctx context.Context) {
	cfg := o.Config()
	r := o.currentRegistry()

	if !cfg.Restrictions.ForceSingleSession {
		logger.WarnCtx(ctx, "Force single session is disabled, players may be kicked by impostors")
	}
	if cfg.Sessions.Enabled && cfg.Sessions.Timeout == 0 {
		logger.WarnCtx(ctx, "Sessions never expire, this is a security risk")
	}

	if bk, ok := registry.GetIfAvailable(r, KeyBackup); ok {
		if _, err := bk.DoBackup(ctx, backup.CauseStart); err != nil {
			logger.WarnCtx(ctx, "Backup on start failed", logger.Err(err))
		}
	}

	if purge, ok := registry.GetIfAvailable(r, KeyPurge); ok {
		if _, err := purge.RunAutoPurge(ctx); err != nil {
			logger.WarnCtx(ctx, "Auto purge failed", logger.Err(err))
		}
	}

	logger.InfoCtx(ctx, "authkeep enabled",
		logger.KeyVersion, o.version, logger.KeyBuild, o.build, "host", o.opts.Host.Name())
}

// StopOrUnload is the reaction to a failed enable. With no configuration,
// or when configured to, it disables the plugin and shuts the host down;
// otherwise it only disables the plugin. It runs at most once per enable
// attempt.
func (o *Orchestrator) StopOrUnload(ctx context.Context) {
	o.mu.Lock()
	once := o.stopOnce
	o.mu.Unlock()

	once.Do(func() {
		o.stopOrUnloads.Add(1)
		cfg := o.Config()
		stopHost := cfg == nil || cfg.Security.StopServerOnProblem

		ctx, span := telemetry.StartLifecycleSpan(ctx, telemetry.SpanStopUnload, "disable", telemetry.HostStopped(stopHost))
		defer span.End()

		if stopHost {
			logger.WarnCtx(ctx, "THE SERVER IS GOING TO SHUT DOWN AS DEFINED IN THE CONFIGURATION!")
			o.Shutdown(ctx)
			o.opts.Host.Shutdown()
			return
		}
		o.Disable(ctx)
	})
}

// Disable settles the connected players, cancels the plugin's tasks and
// listeners and starts the drain that closes the SQL store. The player data
// store stays open for the next enable. Disabling an already disabled
// plugin does nothing.
func (o *Orchestrator) Disable(ctx context.Context) {
	o.disable(ctx, false)
}

// Shutdown disables the plugin for good. Unlike Disable it also hands the
// player data store to a drain, so WaitDrained returns once every store is
// closed.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	if o.disable(ctx, true) {
		return
	}
	if pd := o.takePlayerData(); pd != nil {
		o.startDrain(ctx, o.Config(), []io.Closer{pd})
	}
}

// disable reports whether the plugin was enabled, or enabling.
func (o *Orchestrator) disable(ctx context.Context, final bool) bool {
	o.mu.Lock()
	if o.state == stateDisabled {
		o.mu.Unlock()
		return false
	}
	o.state = stateDisabled
	cfg, store, r, watchCancel := o.cfg, o.store, o.reg, o.watchCancel
	o.store, o.reg, o.watchCancel = nil, nil, nil
	o.mu.Unlock()

	ctx, span := telemetry.StartLifecycleSpan(ctx, telemetry.SpanDisable, "disable")
	defer span.End()

	h := o.opts.Host
	_, hasLimbo := registry.GetIfAvailable(r, KeyLimbo)
	_, hasValidation := registry.GetIfAvailable(r, KeyValidation)
	rec, hasReconciler := registry.GetIfAvailable(r, KeyReconciler)
	if h != nil && hasLimbo && hasValidation && hasReconciler {
		o.settle(ctx, rec, h.OnlineEntities())
	}

	if cfg != nil {
		if bk, ok := registry.GetIfAvailable(r, KeyBackup); ok {
			if _, err := bk.DoBackup(ctx, backup.CauseStop); err != nil {
				logger.WarnCtx(ctx, "Backup on stop failed", logger.Err(err))
			}
		}
	}

	if watchCancel != nil {
		watchCancel()
	}
	if h != nil {
		h.Scheduler().CancelTasks(o.opts.Owner)
		h.UnregisterListeners(o.opts.Owner)
	}

	var closers []io.Closer
	if store != nil {
		closers = append(closers, store)
	}
	if final {
		if pd := o.takePlayerData(); pd != nil {
			closers = append(closers, pd)
		}
	}
	o.startDrain(ctx, cfg, closers)

	logger.InfoCtx(ctx, "authkeep disabled", logger.KeyVersion, o.version)
	return true
}

func (o *Orchestrator) settle(ctx context.Context, rec *reconcile.Reconciler, online []host.Entity) {
	ctx, span := telemetry.StartLifecycleSpan(ctx, telemetry.SpanReconcile, "disable", telemetry.Online(len(online)))
	defer span.End()

	report := rec.Reconcile(ctx, online)
	for _, action := range []reconcile.Action{
		reconcile.ActionSkipped,
		reconcile.ActionRestored,
		reconcile.ActionQuitLocation,
		reconcile.ActionNone,
	} {
		o.metrics.RecordReconciled(string(action), report.Count(action))
	}
	span.SetAttributes(telemetry.Reconciled(len(report.Outcomes)))
	if failed := report.Failed(); len(failed) > 0 {
		logger.WarnCtx(ctx, "Some players could not be fully settled", logger.KeyCount, len(failed))
	}
}

func (o *Orchestrator) startDrain(ctx context.Context, cfg *config.Config, closers []io.Closer) {
	opts := DrainOptions{
		Owner:   o.opts.Owner,
		Clock:   o.clock,
		Metrics: o.metrics,
	}
	if cfg != nil {
		opts.Interval = cfg.Shutdown.DrainPollInterval
		opts.MaxAttempts = cfg.Shutdown.DrainMaxAttempts
	}

	var sched host.Scheduler
	if o.opts.Host != nil {
		sched = o.opts.Host.Scheduler()
	}
	d := NewDrainer(sched, opts, closers...)

	o.drainMu.Lock()
	live := o.drains[:0]
	for _, prev := range o.drains {
		select {
		case <-prev.Done():
		default:
			live = append(live, prev)
		}
	}
	o.drains = append(live, d)
	o.drainMu.Unlock()

	d.Start(ctx)
}

// Reload disables and enables the plugin again. The drain of the previous
// run is not waited for; it closes the old SQL store on its own.
func (o *Orchestrator) Reload(ctx context.Context) error {
	ctx, span := telemetry.StartLifecycleSpan(ctx, telemetry.SpanReload, "reload")
	defer span.End()

	o.Disable(ctx)
	return o.Enable(ctx)
}

// WaitDrained blocks until every drain started so far has closed its
// stores. When ctx ends first the drains are told to stop waiting for
// tasks, and WaitDrained still returns only after the stores are closed.
func (o *Orchestrator) WaitDrained(ctx context.Context) error {
	o.drainMu.Lock()
	drains := append([]*Drainer(nil), o.drains...)
	o.drainMu.Unlock()

	for _, d := range drains {
		select {
		case <-d.Done():
		case <-ctx.Done():
			for _, d := range drains {
				d.Cancel()
			}
			for _, d := range drains {
				<-d.Done()
			}
			return ctx.Err()
		}
	}
	return nil
}
