package license

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"licman/internal/cache"
	"licman/internal/config"
	apperrors "licman/internal/errors"
	"licman/internal/store"
)

// Manager is the engine facade the host application talks to. It is
// constructed once per process with its KV store, cache, and HTTP
// collaborators injected; there is no ambient global state.
type Manager struct {
	cfg     config.LicenseConfig
	keys    *KeyStore
	store   *Store
	client  *Client
	ocsp    *OCSPChecker
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewManager wires the engine components over the given collaborators.
// metrics may be nil when no meter is configured.
func NewManager(cfg config.LicenseConfig, kv store.KV, c cache.Cache, logger *slog.Logger, metrics *Metrics) *Manager {
	keys := NewKeyStore(kv)
	licStore := NewStore(kv, c, keys, logger)

	return &Manager{
		cfg:     cfg,
		keys:    keys,
		store:   licStore,
		client:  NewClient(cfg, kv, c, keys, licStore, logger, metrics),
		ocsp:    NewOCSPChecker(cfg, kv, c, logger, metrics),
		logger:  logger.With(slog.String("component", "license_manager")),
		metrics: metrics,
		now:     time.Now,
	}
}

// IssueRequest describes a license to create in the self-signed flow.
type IssueRequest struct {
	Whitelabel string
	Domains    []string
	Name       string
	Issuer     string
	// ExpiresAt of zero issues a license that never expires.
	ExpiresAt int64
	Data      map[string]interface{}
	// Instance pins the license; empty leaves it unpinned.
	Instance string
	OCSP     string
}

// GenerateIssuer creates and persists a fresh issuer keypair.
func (m *Manager) GenerateIssuer(ctx context.Context, bits int) error {
	if _, err := m.keys.Generate(bits); err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "issuer keypair generated", slog.Int("bits", pickBits(bits)))
	return nil
}

// Issue creates, signs, and installs a license using the locally held
// issuer private key. This is the dev/self-hosted flow; production
// licenses arrive through Pull.
func (m *Manager) Issue(ctx context.Context, req IssueRequest) (*License, error) {
	priv, err := m.keys.PrivateKey()
	if err != nil {
		return nil, err
	}

	l := &License{
		Version:    CurrentVersion,
		UUID:       uuid.New().String(),
		Whitelabel: req.Whitelabel,
		Domains:    req.Domains,
		Name:       req.Name,
		Issuer:     req.Issuer,
		IssuedAt:   m.now().Unix(),
		ExpiresAt:  req.ExpiresAt,
		Data:       req.Data,
		Instance:   req.Instance,
		OCSP:       req.OCSP,
	}

	if err := l.Sign(priv); err != nil {
		return nil, err
	}

	installed, err := m.store.Install(ctx, l, m.checkContext())
	if err != nil {
		return nil, err
	}
	if !installed {
		return l, apperrors.NewConfigError(
			"issued license does not validate for this host and instance", nil).
			WithContext("reasons", l.ValidationErrors(m.checkContext()))
	}

	m.logger.InfoContext(ctx, "license issued and installed",
		slog.String("uuid", l.UUID),
		slog.Bool("can_expire", l.CanExpire()))
	return l, nil
}

// Pull runs the remote pull protocol.
func (m *Manager) Pull(ctx context.Context, licenseKey string) (*License, error) {
	return m.client.Pull(ctx, licenseKey)
}

// Uninstall removes the installed license and the issuer public key.
func (m *Manager) Uninstall(ctx context.Context) error {
	return m.store.Uninstall(ctx)
}

// DeleteKeys removes the whole issuer keypair. Separate from Uninstall
// because the private key survives normal license teardown.
func (m *Manager) DeleteKeys(ctx context.Context) error {
	if err := m.keys.DeletePublicKey(); err != nil {
		return err
	}
	if err := m.keys.DeletePrivateKey(); err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "issuer keypair deleted")
	return nil
}

// Current returns the installed license.
func (m *Manager) Current(ctx context.Context) (*License, error) {
	return m.store.Load()
}

// Validate loads the installed license and evaluates every validity
// condition. A missing license is not an error: it reports invalid with
// a single explanatory reason. The error return is reserved for storage
// faults.
func (m *Manager) Validate(ctx context.Context) (bool, []string, error) {
	l, err := m.store.Load()
	if err != nil {
		if apperrors.IsNotInstalled(err) {
			m.metrics.recordValidation(ctx, false)
			return false, []string{"no license installed"}, nil
		}
		return false, nil, err
	}

	reasons := l.ValidationErrors(m.checkContext())
	valid := len(reasons) == 0
	m.metrics.recordValidation(ctx, valid)
	return valid, reasons, nil
}

// CheckOCSP runs the soft-revocation probe for the installed license.
// Returns true when no license is installed; the main validity path
// already reports that condition.
func (m *Manager) CheckOCSP(ctx context.Context) bool {
	l, err := m.store.Load()
	if err != nil {
		return true
	}
	return m.ocsp.Check(ctx, l)
}

// Host returns the configured host this installation serves.
func (m *Manager) Host() string {
	return m.cfg.Host
}

// Instance returns the configured instance identifier.
func (m *Manager) Instance() string {
	return m.cfg.Instance
}

// Keys exposes the key store for the CLI surface.
func (m *Manager) Keys() *KeyStore {
	return m.keys
}

// Store exposes the license store for the CLI surface.
func (m *Manager) Store() *Store {
	return m.store
}

func (m *Manager) checkContext() CheckContext {
	return CheckContext{
		Now:       m.now(),
		Host:      m.cfg.Host,
		Instance:  m.cfg.Instance,
		PublicKey: m.keys.PublicKey(),
	}
}

func pickBits(bits int) int {
	if bits == 0 {
		return DefaultKeyBits
	}
	return bits
}
