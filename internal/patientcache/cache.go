// Package patientcache memoizes successful patient lookups for the lifetime
// of its owner. Failures are never cached, so a patient that could not be
// resolved is fetched again on the next request.
//
// Entries are scoped to the credential the lookup ran with: a patient read
// with one caller's token is never served to a caller holding another.
package patientcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/wolfman30/clinic-gateway/internal/backend"
	"github.com/wolfman30/clinic-gateway/internal/clinic"
	"github.com/wolfman30/clinic-gateway/internal/observability/metrics"
	"github.com/wolfman30/clinic-gateway/pkg/logging"
)

// Fetcher loads a patient the cache does not hold yet.
type Fetcher interface {
	FetchPatient(ctx context.Context, patientID string) (clinic.PatientRef, error)
}

// serviceScope holds lookups made with the gateway's own token source.
const serviceScope = "service"

type entryKey struct {
	scope     string
	patientID string
}

// Cache is a read-through, unbounded patient cache. Concurrent misses for
// the same key each fetch; the last successful write wins.
type Cache struct {
	fetcher Fetcher
	logger  *logging.Logger
	metrics *metrics.IntegrationMetrics

	mu      sync.RWMutex
	entries map[entryKey]clinic.PatientRef
}

var _ clinic.PatientLookup = (*Cache)(nil)

// New builds an empty cache over fetcher.
func New(fetcher Fetcher, logger *logging.Logger, m *metrics.IntegrationMetrics) *Cache {
	if logger == nil {
		logger = logging.Default()
	}
	return &Cache{
		fetcher: fetcher,
		logger:  logger.Component("patientcache"),
		metrics: m,
		entries: make(map[entryKey]clinic.PatientRef),
	}
}

// Get returns the patient cached for the caller in ctx, fetching it on a
// miss. Fetch errors are returned unchanged and leave no entry behind.
func (c *Cache) Get(ctx context.Context, patientID string) (clinic.PatientRef, error) {
	if patientID == "" {
		return clinic.PatientRef{}, clinic.ErrPatientIDRequired
	}
	key := entryKey{scope: scopeOf(ctx), patientID: patientID}

	c.mu.RLock()
	ref, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.metrics.ObserveCacheLookup("hit")
		return ref, nil
	}
	c.metrics.ObserveCacheLookup("miss")

	ref, err := c.fetcher.FetchPatient(ctx, patientID)
	if err != nil {
		c.metrics.ObserveCacheLookup("fetch_error")
		c.logger.Debug("patient lookup failed", "patient_id", patientID, "error", err)
		return clinic.PatientRef{}, err
	}
	c.store(key, ref)
	return ref, nil
}

// Put stores ref under its id for the caller in ctx, replacing any previous
// entry.
func (c *Cache) Put(ctx context.Context, ref clinic.PatientRef) error {
	if ref.ID == "" {
		return errors.New("patientcache: patient id is required")
	}
	c.store(entryKey{scope: scopeOf(ctx), patientID: ref.ID}, ref)
	return nil
}

func (c *Cache) store(key entryKey, ref clinic.PatientRef) {
	c.mu.Lock()
	c.entries[key] = ref
	c.mu.Unlock()
}

// Len reports the number of cached entries across all scopes.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// scopeOf derives the cache scope from the caller credential. The raw token
// is never kept as a map key.
func scopeOf(ctx context.Context) string {
	token, ok := backend.CallerToken(ctx)
	if !ok {
		return serviceScope
	}
	sum := sha256.Sum256([]byte(token))
	return "caller:" + hex.EncodeToString(sum[:])
}
