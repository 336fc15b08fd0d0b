package reader

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/reconlab/recon-engine/pkg/apperrors"
	"github.com/reconlab/recon-engine/pkg/config"
	"github.com/reconlab/recon-engine/pkg/models"
)

// Reader produces one dataset from an external system. Read is one-shot
// and materializes the full dataset in memory; the comparison core never
// sees connection strings, file handles, or HTTP semantics. Close releases
// whatever the reader holds open and must be safe to call after a failed
// Read.
type Reader interface {
	Read(ctx context.Context) (*models.Dataset, error)
	Close() error
}

// Limits apply to every reader regardless of type.
type Limits struct {
	// QueryTimeout bounds one Read call.
	QueryTimeout time.Duration
	// MaxRows caps the rows a reader will materialize. Zero disables the
	// cap. Exceeding the cap is an error, not a truncation: comparing a
	// silently truncated dataset would produce wrong verdicts.
	MaxRows int
}

// LimitsFromConfig maps the engine configuration onto reader limits.
func LimitsFromConfig(cfg config.ReadersConfig) Limits {
	return Limits{
		QueryTimeout: time.Duration(cfg.QueryTimeoutSeconds) * time.Second,
		MaxRows:      cfg.MaxRows,
	}
}

// EnforceCap returns an error when rows exceeds the configured cap.
func (l Limits) EnforceCap(rows int) error {
	if l.MaxRows > 0 && rows > l.MaxRows {
		return fmt.Errorf("dataset exceeds the configured cap of %d rows", l.MaxRows)
	}
	return nil
}

// FetchLimit is the row count to request from a source that supports
// server-side limiting. A user-supplied limit wins as long as it fits under
// the cap; otherwise one row more than the cap is requested so an overflow
// surfaces through EnforceCap instead of silent truncation. Zero means
// unlimited.
func (l Limits) FetchLimit(userLimit int) int {
	capPlusOne := 0
	if l.MaxRows > 0 {
		capPlusOne = l.MaxRows + 1
	}
	switch {
	case userLimit <= 0:
		return capPlusOne
	case capPlusOne > 0 && capPlusOne < userLimit:
		return capPlusOne
	default:
		return userLimit
	}
}

// Info describes a registered reader type for API discovery.
type Info struct {
	Type        string `json:"type"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

// Registration couples reader info with the factory that builds it from a
// run definition's reader spec.
type Registration struct {
	Info    Info
	Factory func(spec models.ReaderSpec, limits Limits, logger *zap.Logger) (Reader, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Registration)
)

// Register is called by each reader package's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredReaders returns info for all registered reader types, sorted
// by type name for a stable API listing.
func RegisteredReaders() []Info {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Info, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// IsRegistered checks whether a reader type is available.
func IsRegistered(readerType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[readerType]
	return ok
}

func lookup(readerType string) (Registration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	reg, ok := registry[readerType]
	return reg, ok
}

// Factory builds readers from the registry with the engine's limits
// applied to every instance.
type Factory interface {
	// NewReader builds the reader selected by the spec.
	NewReader(spec models.ReaderSpec, logger *zap.Logger) (Reader, error)

	// ListTypes returns info for all registered reader types.
	ListTypes() []Info
}

type registryFactory struct {
	limits Limits
}

// NewFactory returns a factory backed by the global registry.
func NewFactory(limits Limits) Factory {
	return &registryFactory{limits: limits}
}

func (f *registryFactory) NewReader(spec models.ReaderSpec, logger *zap.Logger) (Reader, error) {
	reg, ok := lookup(spec.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %q (not compiled in)", apperrors.ErrUnknownReader, spec.Type)
	}
	return reg.Factory(spec, f.limits, logger)
}

func (f *registryFactory) ListTypes() []Info {
	return RegisteredReaders()
}

var _ Factory = (*registryFactory)(nil)

// DatasetName picks the display name for a dataset: the spec override when
// present, otherwise the reader's natural fallback (file base name, table
// name, endpoint).
func DatasetName(spec models.ReaderSpec, fallback string) string {
	if spec.Name != "" {
		return spec.Name
	}
	return fallback
}
