package license

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"licman/internal/cache"
	"licman/internal/config"
	apperrors "licman/internal/errors"
	"licman/internal/store"
)

// maxResponseBytes bounds how much of a license server response is read.
const maxResponseBytes = 1 << 20

// serverResponse is the license server success body. Every field is
// base64-encoded; a missing field is a hard decode failure.
type serverResponse struct {
	License   string `json:"license"`
	Signature string `json:"signature"`
	Issuer    string `json:"issuer"`
}

// Client implements the remote pull protocol against the license
// server, including response-code caching and grace-period semantics.
type Client struct {
	httpClient *http.Client
	kv         store.KV
	cache      cache.Cache
	keys       *KeyStore
	store      *Store

	urlTemplate   string
	configuredKey string
	instance      string
	host          string
	cacheTTL      time.Duration
	graceLimit    int

	limiter *rate.Limiter
	group   singleflight.Group
	// mu serializes the uninstall/reinstall critical section so two
	// in-process pulls cannot race each other's state transitions.
	mu sync.Mutex

	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewClient creates a pull client from the license configuration.
func NewClient(cfg config.LicenseConfig, kv store.KV, c cache.Cache, keys *KeyStore, licStore *Store, logger *slog.Logger, metrics *Metrics) *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: cfg.HTTPTimeout},
		kv:            kv,
		cache:         c,
		keys:          keys,
		store:         licStore,
		urlTemplate:   cfg.ServerURL,
		configuredKey: cfg.Key,
		instance:      cfg.Instance,
		host:          cfg.Host,
		cacheTTL:      cfg.ResponseCacheTTL,
		graceLimit:    cfg.GraceLimit,
		limiter:       rate.NewLimiter(rate.Limit(cfg.RateRPS), cfg.RateBurst),
		logger:        logger.With(slog.String("component", "license_client")),
		metrics:       metrics,
		now:           time.Now,
	}
}

// Pull fetches the license from the server and installs it when valid.
// Concurrent calls within the process coalesce into one round-trip.
// The returned license may be invalid; callers inspect it through
// ValidationErrors rather than the error return.
func (c *Client) Pull(ctx context.Context, licenseKey string) (*License, error) {
	v, err, _ := c.group.Do("pull", func() (interface{}, error) {
		return c.pull(ctx, licenseKey)
	})
	if err != nil {
		return nil, err
	}
	return v.(*License), nil
}

func (c *Client) pull(ctx context.Context, explicitKey string) (*License, error) {
	if c.urlTemplate == "" {
		return nil, apperrors.NewConfigError("no license server configured", apperrors.ErrNoLicenseServer)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	start := c.now()
	key := c.resolveKey(explicitKey)

	code, body, fromCache, err := c.resolveResponse(ctx, key)
	if err != nil {
		c.metrics.recordPull(ctx, "network_error", c.now().Sub(start))
		return nil, err
	}

	// Accumulated failures from earlier pulls make the outcome
	// unrecoverable before this response is even interpreted.
	if c.readGrace() >= c.graceLimit {
		c.metrics.recordPull(ctx, "grace_exceeded", c.now().Sub(start))
		return nil, c.escalateGrace(ctx)
	}

	switch {
	case code == http.StatusOK:
		if fromCache {
			c.clearGrace()
			l, err := c.store.Load()
			if err != nil {
				return nil, err
			}
			c.metrics.recordPull(ctx, "cached_ok", c.now().Sub(start))
			return l, nil
		}
		l, err := c.handleSuccess(ctx, key, body)
		if err != nil {
			c.metrics.recordPull(ctx, "decode_error", c.now().Sub(start))
			return nil, err
		}
		c.metrics.recordPull(ctx, "ok", c.now().Sub(start))
		return l, nil

	case code == http.StatusUnprocessableEntity,
		code == http.StatusForbidden,
		code == http.StatusGone:
		c.cacheCode(code)
		c.metrics.recordPull(ctx, "rejected", c.now().Sub(start))
		return nil, c.handleRejection(ctx, code)

	default:
		c.cacheCode(code)
		if c.store.IsInstalled() {
			grace := c.readGrace() + 1
			c.writeGrace(grace)
			c.logger.WarnContext(ctx, "license server returned a transient error",
				slog.Int("http_code", code),
				slog.Int("grace_count", grace),
				slog.Int("grace_limit", c.graceLimit),
				slog.Bool("from_cache", fromCache))
			if grace >= c.graceLimit {
				c.metrics.recordPull(ctx, "grace_exceeded", c.now().Sub(start))
				return nil, c.escalateGrace(ctx)
			}
		}
		c.metrics.recordPull(ctx, "transient_error", c.now().Sub(start))
		return nil, apperrors.NewTransientError(
			fmt.Sprintf("license server error: HTTP %d", code), nil).
			WithContext("http_code", code)
	}
}

// resolveKey picks the effective license key: explicit parameter, then
// the environment-configured key, then the previously stored one. The
// resolved key is persisted so later keyless pulls keep working.
func (c *Client) resolveKey(explicit string) string {
	key := explicit
	if key == "" {
		key = c.configuredKey
	}
	if key == "" {
		return c.store.StoredKey()
	}
	if c.store.StoredKey() != key {
		if err := c.store.SetStoredKey(key); err != nil {
			c.logger.Warn("failed to persist license key", slog.String("error", err.Error()))
		}
	}
	return key
}

// resolveResponse reuses the cached status code when the cache entry is
// live, otherwise performs the HTTP GET. Network-level failures are
// hard failures for this call and leave all persisted counters alone.
func (c *Client) resolveResponse(ctx context.Context, key string) (int, []byte, bool, error) {
	if cached, ok := c.cache.Get(cachePullResponse); ok {
		if code, err := strconv.Atoi(cached); err == nil {
			return code, nil, true, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, false, apperrors.NewNetworkError("license server call aborted", err)
	}

	url := substituteTemplate(c.urlTemplate, map[string]string{
		"key":      key,
		"instance": c.instance,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, false, apperrors.NewConfigError("invalid license server URL", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, false, apperrors.NewNetworkError("failed to reach license server", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, false, apperrors.NewNetworkError("failed to read license server response", err)
	}

	c.logger.DebugContext(ctx, "license server responded",
		slog.Int("http_code", resp.StatusCode),
		slog.String("license_key", MaskKey(key)))

	return resp.StatusCode, body, false, nil
}

// handleSuccess decodes a fresh 200 body, installs the issuer public
// key when missing, clears the grace counter, and persists the license
// when it is valid. The license is returned even when invalid so the
// caller can surface the validation errors.
func (c *Client) handleSuccess(ctx context.Context, key string, body []byte) (*License, error) {
	var resp serverResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.NewDecodeError("license server response is not valid JSON", err)
	}
	if resp.License == "" || resp.Signature == "" || resp.Issuer == "" {
		return nil, apperrors.NewDecodeError(
			"license server response is missing license, signature, or issuer", nil)
	}

	payload, err := base64.StdEncoding.DecodeString(resp.License)
	if err != nil {
		return nil, apperrors.NewDecodeError("server license payload is not valid base64", err)
	}
	signature, err := base64.StdEncoding.DecodeString(resp.Signature)
	if err != nil {
		return nil, apperrors.NewDecodeError("server signature is not valid base64", err)
	}
	issuerPEM, err := base64.StdEncoding.DecodeString(resp.Issuer)
	if err != nil {
		return nil, apperrors.NewDecodeError("server issuer key is not valid base64", err)
	}

	l, err := DecodePayload(payload)
	if err != nil {
		return nil, err
	}
	l.Signature = signature

	if !c.keys.HasPublicKey() {
		if err := c.keys.InstallPublicKey(issuerPEM); err != nil {
			return nil, err
		}
		c.logger.InfoContext(ctx, "installed issuer public key from license server")
	}

	// A well-formed 200 is proof of server health: the grace counter
	// resets here even if the license itself turns out invalid.
	c.clearGrace()

	cc := CheckContext{
		Now:       c.now(),
		Host:      c.host,
		Instance:  c.instance,
		PublicKey: c.keys.PublicKey(),
	}

	installed, err := c.store.Install(ctx, l, cc)
	if err != nil {
		return nil, err
	}
	if !installed {
		c.logger.WarnContext(ctx, "pulled license is invalid, not persisting",
			slog.String("uuid", l.UUID),
			slog.String("license_key", MaskKey(key)),
			slog.Any("reasons", l.ValidationErrors(cc)))
	}

	// Cached after Install, which flushes the cache namespace.
	c.cacheCode(http.StatusOK)

	return l, nil
}

// handleRejection uninstalls the local license on an authoritative
// server rejection. These are terminal; the stored key is deleted so
// the scheduler stops retrying a dead key.
func (c *Client) handleRejection(ctx context.Context, code int) error {
	c.logger.WarnContext(ctx, "license server rejected the key, uninstalling",
		slog.Int("http_code", code))

	if err := c.store.Uninstall(ctx); err != nil {
		c.logger.Error("failed to uninstall rejected license", slog.String("error", err.Error()))
	}
	if err := c.store.DeleteStoredKey(); err != nil {
		c.logger.Error("failed to delete stored license key", slog.String("error", err.Error()))
	}
	c.clearGrace()

	switch code {
	case http.StatusUnprocessableEntity:
		return apperrors.NewRejectedError("license key not found on server", apperrors.ErrLicenseKeyUnknown).
			WithContext("http_code", code)
	case http.StatusForbidden:
		return apperrors.NewRejectedError("license revoked by server", apperrors.ErrLicenseRevoked).
			WithContext("http_code", code)
	default:
		return apperrors.NewRejectedError("license expired on server", apperrors.ErrLicenseExpiredOnServer).
			WithContext("http_code", code)
	}
}

// escalateGrace performs the unrecoverable-path teardown: stored key
// gone, grace counter gone, license uninstalled.
func (c *Client) escalateGrace(ctx context.Context) error {
	c.logger.ErrorContext(ctx, "grace period exceeded, uninstalling license",
		slog.Int("grace_limit", c.graceLimit))
	c.metrics.recordGraceEscalation(ctx)

	if err := c.store.DeleteStoredKey(); err != nil {
		c.logger.Error("failed to delete stored license key", slog.String("error", err.Error()))
	}
	c.clearGrace()
	if err := c.store.Uninstall(ctx); err != nil {
		c.logger.Error("failed to uninstall license", slog.String("error", err.Error()))
	}

	return apperrors.NewRejectedError("grace period exceeded", apperrors.ErrGracePeriodExceeded).
		WithContext("grace_limit", c.graceLimit)
}

func (c *Client) readGrace() int {
	raw, err := c.kv.Get(kvPullGrace)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

func (c *Client) writeGrace(n int) {
	if err := c.kv.Set(kvPullGrace, strconv.Itoa(n)); err != nil {
		c.logger.Error("failed to persist grace counter", slog.String("error", err.Error()))
	}
}

func (c *Client) clearGrace() {
	if err := c.kv.Delete(kvPullGrace); err != nil {
		c.logger.Error("failed to clear grace counter", slog.String("error", err.Error()))
	}
}

func (c *Client) cacheCode(code int) {
	c.cache.Write(cachePullResponse, strconv.Itoa(code), c.now().Add(c.cacheTTL))
}

// substituteTemplate replaces {{name}} placeholders literally.
func substituteTemplate(template string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for name, value := range values {
		pairs = append(pairs, "{{"+name+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// MaskKey hides the middle of a license key for logging.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
