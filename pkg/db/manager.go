package db

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/voicedesk/voicedesk/pkg/config"
)

// Pool sizing for the bot's single backing connection pool. The tool layer
// issues at most a handful of concurrent statements per call, so the pool
// stays small and keeps one connection warm.
const (
	poolMaxConns       = 4
	poolMinConns       = 1
	poolConnectTimeout = 10 * time.Second
)

// Querier is the slice of pgxpool.Pool the rest of the package relies on.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

var _ Querier = (*pgxpool.Pool)(nil)

// Handle is an open, pooled database connection derived from exactly one
// ServerDescriptor. At most one non-invalidated Handle exists per Manager.
type Handle struct {
	pool Querier
	desc *ServerDescriptor
}

// Pool returns the underlying pool.
func (h *Handle) Pool() Querier {
	return h.pool
}

// Descriptor returns the parameters this handle was opened with.
func (h *Handle) Descriptor() *ServerDescriptor {
	return h.desc
}

// acquisition is the pending-operation value stored in the cache slot while
// an attempt is in flight. Concurrent callers wait on done and read the
// settled result; the slot owner is the only writer of handle/err.
type acquisition struct {
	done   chan struct{}
	handle *Handle
	err    error
}

// Manager owns the single cached connection handle. Get is single-flight and
// memoized; Invalidate forces the next Get to rebuild everything from
// configuration, including trust material.
type Manager struct {
	cfg    *config.DBConfig
	trust  TrustProvider
	logger zerolog.Logger

	// connect is replaceable in tests.
	connect func(ctx context.Context, desc *ServerDescriptor) (Querier, error)

	mu      sync.Mutex
	cached  *Handle
	pending *acquisition
}

// NewManager creates a Manager for the given configuration.
func NewManager(cfg *config.DBConfig, logger zerolog.Logger) *Manager {
	m := &Manager{
		cfg:    cfg,
		trust:  NewTrustProvider(logger),
		logger: logger,
	}
	m.connect = m.openPool
	return m
}

// Get returns the cached handle, attaches to an in-flight acquisition, or
// starts a new one. Concurrent callers arriving during an acquisition all
// receive the result of that same attempt. On failure the cache stays cold
// and the taxonomy error is returned; nothing here ever panics or terminates
// the process, so callers treat any error as "database offline" and degrade
// the single request.
func (m *Manager) Get(ctx context.Context) (*Handle, error) {
	m.mu.Lock()
	if m.cached != nil {
		h := m.cached
		m.mu.Unlock()
		return h, nil
	}
	if p := m.pending; p != nil {
		m.mu.Unlock()
		select {
		case <-p.done:
			return p.handle, p.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p := &acquisition{done: make(chan struct{})}
	m.pending = p
	m.mu.Unlock()

	h, err := m.acquire(ctx)
	p.handle, p.err = h, err

	m.mu.Lock()
	// The slot is cleared regardless of outcome so a failed attempt never
	// leaves the manager permanently warming. If Invalidate ran while we
	// were connecting, the slot no longer holds p: waiters attached to this
	// attempt still get its result, but it does not repopulate the cache.
	if m.pending == p {
		m.pending = nil
		if err == nil {
			m.cached = h
		}
	}
	m.mu.Unlock()
	close(p.done)

	return h, err
}

// Invalidate unconditionally drops the cached handle and orphans any
// in-flight acquisition, forcing the next Get to rebuild the descriptor and
// reconnect from scratch.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	cached := m.cached
	m.cached = nil
	m.pending = nil
	m.mu.Unlock()

	if cached != nil {
		m.logger.Info().Msg("invalidating cached database connection")
		// Close waits for checked-out connections to be released, so it
		// runs off the caller's goroutine.
		go cached.pool.Close()
	}
}

// acquire builds the descriptor and opens the pool.
func (m *Manager) acquire(ctx context.Context) (*Handle, error) {
	desc, err := BuildDescriptor(ctx, m.cfg, m.trust)
	if err != nil {
		m.logger.Warn().Err(err).Msg("database unavailable")
		return nil, err
	}

	if desc.VerifyPeer && desc.TrustAnchor == nil {
		// Descriptor built without trust material despite secure mode.
		// Last-resort fetch before opening the pool.
		tm, err := m.trust.ObtainTrust(ctx, desc.Host, m.cfg.CACertFile, "")
		if err != nil {
			m.logger.Warn().Err(err).Msg("database unavailable")
			return nil, err
		}
		desc.TrustAnchor = tm
	}

	pool, err := m.connect(ctx, desc)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrConnectFailed, err)
		m.logger.Warn().Err(err).Str("host", desc.Host).Msg("database unavailable")
		return nil, err
	}

	m.logger.Info().Str("target", m.cfg.Redacted()).Msg("database connected")
	return &Handle{pool: pool, desc: desc}, nil
}

// openPool opens a bounded pgx pool against the descriptor.
func (m *Manager) openPool(ctx context.Context, desc *ServerDescriptor) (Querier, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s",
		m.cfg.Hostname(), m.cfg.Port(), desc.User, desc.Password)

	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid connection parameters: %w", err)
	}
	pc.MaxConns = poolMaxConns
	pc.MinConns = poolMinConns
	pc.ConnConfig.ConnectTimeout = poolConnectTimeout

	if desc.VerifyPeer {
		tlsCfg, err := buildTLSConfig(desc, m.cfg.Hostname())
		if err != nil {
			return nil, err
		}
		pc.ConnConfig.TLSConfig = tlsCfg
	} else {
		pc.ConnConfig.TLSConfig = nil
	}

	ctx, cancel := context.WithTimeout(ctx, poolConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}

	// MinConns warms a connection in the background; ping so auth and TLS
	// failures surface here instead of on the first tool call.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// buildTLSConfig converts descriptor trust material into a tls.Config.
func buildTLSConfig(desc *ServerDescriptor, hostname string) (*tls.Config, error) {
	roots := x509.NewCertPool()
	switch {
	case len(desc.TrustAnchor.PEM) > 0:
		if !roots.AppendCertsFromPEM(desc.TrustAnchor.PEM) {
			return nil, fmt.Errorf("%w: trust anchor PEM did not parse", ErrCertificateUnavailable)
		}
	case len(desc.TrustAnchor.Raw) > 0:
		cert, err := x509.ParseCertificate(desc.TrustAnchor.Raw)
		if err != nil {
			return nil, fmt.Errorf("%w: trust anchor DER did not parse: %v", ErrCertificateUnavailable, err)
		}
		roots.AddCert(cert)
	default:
		return nil, fmt.Errorf("%w: descriptor has no trust anchor", ErrCertificateUnavailable)
	}

	serverName := desc.TLSServerName
	if serverName == "" {
		serverName = hostname
	}
	return &tls.Config{
		RootCAs:    roots,
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
	}, nil
}
