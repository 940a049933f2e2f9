// Package process implements the player authentication flow: joining,
// registering, logging in and out, and leaving.
//
// Every operation reports its result to the player through the message
// catalogue and returns an error the caller can act on.
package process

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/authkeep/internal/logger"
	"github.com/marmos91/authkeep/internal/telemetry"
	"github.com/marmos91/authkeep/pkg/config"
	"github.com/marmos91/authkeep/pkg/datasource"
	"github.com/marmos91/authkeep/pkg/host"
	"github.com/marmos91/authkeep/pkg/limbo"
	"github.com/marmos91/authkeep/pkg/messages"
	"github.com/marmos91/authkeep/pkg/metrics"
	"github.com/marmos91/authkeep/pkg/models"
	"github.com/marmos91/authkeep/pkg/playerdata"
	"github.com/marmos91/authkeep/pkg/security"
	"github.com/marmos91/authkeep/pkg/session"
	"github.com/marmos91/authkeep/pkg/spawn"
	"github.com/marmos91/authkeep/pkg/validation"
)

var (
	ErrWrongPassword     = errors.New("wrong password")
	ErrNotRegistered     = errors.New("player is not registered")
	ErrAlreadyRegistered = errors.New("player is already registered")
	ErrAlreadyLoggedIn   = errors.New("player is already logged in")
	ErrNotLoggedIn       = errors.New("player is not logged in")
	ErrAlreadyOnline     = errors.New("a player with the same name is already online")
	ErrExempt            = errors.New("player is exempt from authentication")
)

// SnapshotStore persists the state of players moved to spawn.
type SnapshotStore interface {
	HasData(name string) (bool, error)
	SaveData(e host.Entity) error
	ReadData(name string) (*playerdata.Snapshot, error)
	RemoveData(name string) error
}

// Deps groups the collaborators of Management. Snapshots and Metrics may be nil.
type Deps struct {
	Config     *config.Config
	Store      datasource.DataSource
	Host       host.Host
	Sessions   *session.Cache
	Limbo      *limbo.Cache
	Snapshots  SnapshotStore
	Hasher     *security.Hasher
	Messages   *messages.Messages
	Validation *validation.Service
	Spawn      *spawn.Loader
	Metrics    *metrics.Lifecycle
}

// Management runs the authentication flow.
type Management struct {
	cfg        *config.Config
	store      datasource.DataSource
	host       host.Host
	sessions   *session.Cache
	limbo      *limbo.Cache
	snapshots  SnapshotStore
	hasher     *security.Hasher
	messages   *messages.Messages
	validation *validation.Service
	spawn      *spawn.Loader
	metrics    *metrics.Lifecycle
	now        func() time.Time
}

// New creates the management service.
func New(d Deps) *Management {
	return &Management{
		cfg:        d.Config,
		store:      d.Store,
		host:       d.Host,
		sessions:   d.Sessions,
		limbo:      d.Limbo,
		snapshots:  d.Snapshots,
		hasher:     d.Hasher,
		messages:   d.Messages,
		validation: d.Validation,
		spawn:      d.Spawn,
		metrics:    d.Metrics,
		now:        time.Now,
	}
}

// IsAuthenticated reports whether name has an active session.
func (m *Management) IsAuthenticated(name string) bool {
	return m.sessions.IsAuthenticated(name)
}

// IsExempt reports whether e bypasses authentication.
func (m *Management) IsExempt(e host.Entity) bool {
	return m.validation.IsExempt(e)
}

// PreLogin decides whether a connection for name may proceed.
func (m *Management) PreLogin(ctx context.Context, name, ip string) error {
	if models.NormalizeName(name) == "" {
		return models.ErrEmptyIdentity
	}
	if m.cfg.Restrictions.ForceSingleSession {
		if _, online := m.host.Entity(name); online {
			logger.InfoCtx(ctx, "Rejected second connection for online identity",
				logger.KeyIdentity, models.NormalizeName(name), logger.KeyClientIP, ip)
			return ErrAlreadyOnline
		}
	}
	return nil
}

// Join puts a newly connected player in limbo until they authenticate, or
// resumes their session when it is still valid.
func (m *Management) Join(ctx context.Context, e host.Entity) error {
	if m.IsExempt(e) {
		return nil
	}
	name := models.NormalizeName(e.Name())

	auth, err := m.store.GetAuth(ctx, name)
	registered := err == nil
	if err != nil && !errors.Is(err, models.ErrAuthNotFound) {
		m.messages.Send(e, messages.Error)
		return fmt.Errorf("failed to load account: %w", err)
	}

	if registered && m.canResume(auth, e.IP()) {
		if err := m.completeLogin(ctx, e, auth); err != nil {
			m.messages.Send(e, messages.Error)
			return err
		}
		m.messages.Send(e, messages.SessionResumed)
		logger.InfoCtx(ctx, "Session resumed", logger.KeyIdentity, name)
		return nil
	}

	m.enterLimbo(e)
	if registered {
		m.messages.Send(e, messages.LoginPrompt)
	} else {
		m.messages.Send(e, messages.RegisterPrompt)
	}
	return nil
}

func (m *Management) canResume(auth *models.PlayerAuth, ip string) bool {
	if !m.cfg.Sessions.Enabled || auth.LastLogin == nil || auth.IP == "" || auth.IP != ip {
		return false
	}
	timeout := m.cfg.Sessions.Timeout
	return timeout == 0 || m.now().Sub(*auth.LastLogin) <= timeout
}

// enterLimbo captures e's state and moves it to spawn when configured.
func (m *Management) enterLimbo(e host.Entity) {
	m.limbo.Add(e)
	if !m.cfg.Restrictions.TeleportUnauthedToSpawn || m.cfg.Restrictions.NoTeleport {
		return
	}
	if m.snapshots != nil {
		has, err := m.snapshots.HasData(e.Name())
		if err != nil {
			logger.Warn("Failed to check player data", logger.KeyIdentity, models.NormalizeName(e.Name()), logger.Err(err))
		} else if !has {
			if err := m.snapshots.SaveData(e); err != nil {
				logger.Warn("Failed to save player data", logger.KeyIdentity, models.NormalizeName(e.Name()), logger.Err(err))
			}
		}
	}
	e.Teleport(m.spawn.Spawn())
}

// Register creates an account for e and logs it in.
func (m *Management) Register(ctx context.Context, e host.Entity, password string) (err error) {
	name := models.NormalizeName(e.Name())
	ctx, span := telemetry.StartAuthSpan(ctx, telemetry.SpanRegister, name, e.IP())
	defer span.End()
	defer func() { m.finish(ctx, e, "register", err) }()

	if m.sessions.IsAuthenticated(name) {
		return ErrAlreadyLoggedIn
	}
	if err := m.hasher.Validate(name, password); err != nil {
		return err
	}
	exists, err := m.store.IsAuthAvailable(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check account: %w", err)
	}
	if exists {
		return ErrAlreadyRegistered
	}

	hash, err := m.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	auth := &models.PlayerAuth{
		Username: name,
		RealName: e.Name(),
		Password: hash,
		IP:       e.IP(),
	}
	auth.SetLocation(m.spawn.LocationOrSpawn(m.originalLocation(e)))
	if err := m.store.SaveAuth(ctx, auth); err != nil {
		if errors.Is(err, models.ErrDuplicateAuth) {
			return ErrAlreadyRegistered
		}
		return fmt.Errorf("failed to save account: %w", err)
	}

	if err := m.completeLogin(ctx, e, auth); err != nil {
		return err
	}
	m.messages.Send(e, messages.Registered)
	logger.InfoCtx(ctx, "Player registered", logger.KeyIdentity, name, logger.KeyClientIP, e.IP())
	return nil
}

// Login authenticates e with password.
func (m *Management) Login(ctx context.Context, e host.Entity, password string) (err error) {
	name := models.NormalizeName(e.Name())
	ctx, span := telemetry.StartAuthSpan(ctx, telemetry.SpanLogin, name, e.IP())
	defer span.End()
	defer func() { m.finish(ctx, e, "login", err) }()

	if m.sessions.IsAuthenticated(name) {
		return ErrAlreadyLoggedIn
	}
	auth, err := m.store.GetAuth(ctx, name)
	if errors.Is(err, models.ErrAuthNotFound) {
		return ErrNotRegistered
	}
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}
	if !m.hasher.Verify(password, auth.Password) {
		logger.InfoCtx(ctx, "Wrong password", logger.KeyIdentity, name, logger.KeyClientIP, e.IP())
		return ErrWrongPassword
	}
	if m.hasher.NeedsRehash(auth.Password) {
		if hash, err := m.hasher.Hash(password); err == nil {
			if err := m.store.UpdatePassword(ctx, name, hash); err != nil {
				logger.WarnCtx(ctx, "Failed to rehash password", logger.KeyIdentity, name, logger.Err(err))
			}
		}
	}

	if err := m.completeLogin(ctx, e, auth); err != nil {
		return err
	}
	m.messages.Send(e, messages.Login)
	m.messages.Send(e, messages.Welcome, messages.Info{
		Player:  e.Name(),
		Online:  len(m.host.OnlineEntities()),
		Logins:  m.sessions.Count(),
		World:   e.State().Location.World,
		Version: m.host.Version(),
		IP:      e.IP(),
	}.Replacements()...)
	logger.InfoCtx(ctx, "Player logged in", logger.KeyIdentity, name, logger.KeyClientIP, e.IP())
	return nil
}

// Logout ends e's session and puts it back in limbo.
func (m *Management) Logout(ctx context.Context, e host.Entity) (err error) {
	name := models.NormalizeName(e.Name())
	ctx, span := telemetry.StartAuthSpan(ctx, telemetry.SpanLogout, name, e.IP())
	defer span.End()
	defer func() { m.finish(ctx, e, "logout", err) }()

	if !m.sessions.IsAuthenticated(name) {
		return ErrNotLoggedIn
	}
	if err := m.store.SetUnlogged(ctx, name); err != nil {
		return fmt.Errorf("failed to log out: %w", err)
	}
	m.sessions.Remove(name)
	m.metrics.SetSessions(m.sessions.Count())

	m.enterLimbo(e)
	m.messages.Send(e, messages.Logout)
	m.messages.Send(e, messages.LoginPrompt)
	logger.InfoCtx(ctx, "Player logged out", logger.KeyIdentity, name)
	return nil
}

// Quit settles a disconnecting player.
func (m *Management) Quit(ctx context.Context, e host.Entity) error {
	if m.IsExempt(e) {
		return nil
	}
	name := models.NormalizeName(e.Name())

	var errs []error
	if m.sessions.IsAuthenticated(name) {
		if m.cfg.Restrictions.SaveQuitLocation {
			auth := &models.PlayerAuth{Username: name, RealName: e.Name()}
			auth.SetLocation(m.spawn.LocationOrSpawn(e.State().Location))
			if err := m.store.UpdateQuitLocation(ctx, auth); err != nil {
				errs = append(errs, fmt.Errorf("failed to save quit location: %w", err))
			}
		}
		if err := m.store.SetUnlogged(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("failed to log out: %w", err))
		}
		m.sessions.Remove(name)
		m.metrics.SetSessions(m.sessions.Count())
	} else if m.limbo.Restore(e) {
		m.limbo.Remove(name)
	}

	err := errors.Join(errs...)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to settle quitting player", logger.KeyIdentity, name, logger.Err(err))
	}
	return err
}

// completeLogin marks auth as logged in and gives e its state back.
func (m *Management) completeLogin(ctx context.Context, e host.Entity, auth *models.PlayerAuth) error {
	now := m.now()
	auth.IP = e.IP()
	auth.RealName = e.Name()
	auth.LastLogin = &now

	if err := m.store.UpdateSession(ctx, auth); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if err := m.store.SetLogged(ctx, auth.Username); err != nil {
		return fmt.Errorf("failed to mark logged in: %w", err)
	}
	auth.IsLogged = true
	auth.AuthenticatedAt = &now
	m.sessions.Add(auth)
	m.metrics.SetSessions(m.sessions.Count())

	m.restoreState(e)
	return nil
}

// restoreState hands e back the state captured before authentication. A
// limbo record wins; a stored snapshot covers players teleported before a
// crash or disable.
func (m *Management) restoreState(e host.Entity) {
	name := models.NormalizeName(e.Name())
	restored := m.limbo.Restore(e)
	m.limbo.Remove(name)

	if m.snapshots == nil {
		return
	}
	if !restored {
		snap, err := m.snapshots.ReadData(name)
		if err == nil {
			e.ApplyState(snap.State)
		} else if !errors.Is(err, playerdata.ErrNotFound) {
			logger.Warn("Failed to read player data", logger.KeyIdentity, name, logger.Err(err))
		}
	}
	if err := m.snapshots.RemoveData(name); err != nil {
		logger.Warn("Failed to remove player data", logger.KeyIdentity, name, logger.Err(err))
	}
}

// originalLocation is the location e had before being moved to spawn.
func (m *Management) originalLocation(e host.Entity) models.Location {
	if rec, ok := m.limbo.Get(e.Name()); ok {
		return rec.State.Location
	}
	return e.State().Location
}

// finish records the outcome of an operation and tells the player about
// failures.
func (m *Management) finish(ctx context.Context, e host.Entity, op string, err error) {
	m.metrics.RecordAuth(op, err)
	if err == nil {
		return
	}
	telemetry.RecordError(ctx, err)
	m.messages.Send(e, messageFor(err))
}

func messageFor(err error) messages.Key {
	switch {
	case errors.Is(err, ErrWrongPassword):
		return messages.WrongPassword
	case errors.Is(err, ErrNotRegistered):
		return messages.UnknownUser
	case errors.Is(err, ErrAlreadyRegistered):
		return messages.AlreadyRegistered
	case errors.Is(err, ErrAlreadyLoggedIn):
		return messages.AlreadyLoggedIn
	case errors.Is(err, ErrNotLoggedIn):
		return messages.NotLoggedIn
	case errors.Is(err, security.ErrPasswordTooShort), errors.Is(err, security.ErrPasswordTooLong):
		return messages.PasswordTooShort
	case errors.Is(err, security.ErrPasswordSameAsName):
		return messages.PasswordIsName
	default:
		return messages.Error
	}
}
