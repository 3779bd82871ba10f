package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wallet-snapshots/internal/adapter"
	"github.com/wallet-snapshots/internal/extract"
	"github.com/wallet-snapshots/internal/logging"
	"github.com/wallet-snapshots/internal/models"
	"github.com/wallet-snapshots/internal/normalize"
)

// ProtocolSource fetches per-protocol position data for one address.
type ProtocolSource interface {
	FetchProtocolList(ctx context.Context, address string) ([]json.RawMessage, error)
	Name() string
}

// AccountSource fetches a full account-state document for one address.
type AccountSource interface {
	FetchState(ctx context.Context, address string) (json.RawMessage, error)
	Name() string
}

// ProtocolStore persists protocol snapshot rows.
type ProtocolStore interface {
	WriteRows(ctx context.Context, rows []models.ProtocolSnapshot, mode models.WriteMode) error
}

// AccountStore persists account snapshot rows.
type AccountStore interface {
	WriteRows(ctx context.Context, rows []models.AccountSnapshot, mode models.WriteMode) error
}

// PayloadCache is an optional read-through cache for raw upstream payloads.
type PayloadCache interface {
	Get(ctx context.Context, source, address string) ([]byte, bool, error)
	Set(ctx context.Context, source, address string, payload []byte) error
}

// Mirror receives a best-effort copy of every written row.
type Mirror interface {
	AppendProtocolRows(ctx context.Context, rows []models.ProtocolSnapshot) error
	AppendAccountRows(ctx context.Context, rows []models.AccountSnapshot) error
}

// AddressFailure records one address that could not be ingested.
type AddressFailure struct {
	Address string
	Err     error
}

// RunSummary reports the outcome of one ingestion run.
type RunSummary struct {
	RunID       string
	Source      string
	FetchedAt   time.Time
	Addresses   int
	RowsWritten int
	Failures    []AddressFailure
}

// Failed reports whether any address in the run could not be ingested.
func (s *RunSummary) Failed() bool { return len(s.Failures) > 0 }

// IngestService orchestrates fetch, extraction, normalization and storage
// for a batch of wallet addresses.
type IngestService struct {
	cache  PayloadCache
	mirror Mirror
}

// IngestOption configures optional service dependencies.
type IngestOption func(*IngestService)

// WithPayloadCache enables read-through caching of raw upstream payloads.
func WithPayloadCache(cache PayloadCache) IngestOption {
	return func(s *IngestService) { s.cache = cache }
}

// WithMirror enables best-effort row mirroring to a secondary store.
func WithMirror(mirror Mirror) IngestOption {
	return func(s *IngestService) { s.mirror = mirror }
}

// NewIngestService creates an ingest service.
func NewIngestService(opts ...IngestOption) *IngestService {
	s := &IngestService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunProtocols ingests the full protocol list for every address. All rows in
// the run share one fetched_at timestamp, captured before the first fetch and
// truncated to whole seconds. A failing address is recorded and skipped; the
// remaining addresses still run.
func (s *IngestService) RunProtocols(ctx context.Context, source ProtocolSource, store ProtocolStore, addresses []string, mode models.WriteMode) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:     uuid.NewString(),
		Source:    source.Name(),
		FetchedAt: time.Now().UTC().Truncate(time.Second),
		Addresses: len(addresses),
	}
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"run_id": summary.RunID,
		"source": summary.Source,
		"mode":   string(mode),
	})
	ctx = logging.WithLogger(ctx, logger)

	var rows []models.ProtocolSnapshot
	for _, address := range addresses {
		items, err := s.protocolItems(ctx, source, address)
		if err != nil {
			logger.WithField("address", address).WithError(err).Error("protocol fetch failed")
			summary.Failures = append(summary.Failures, AddressFailure{Address: address, Err: err})
			continue
		}
		addrRows := normalize.ProtocolRows(address, items, summary.FetchedAt)
		logger.WithFields(map[string]interface{}{
			"address": address,
			"rows":    len(addrRows),
		}).Info("protocol list fetched")
		rows = append(rows, addrRows...)
	}

	if len(rows) > 0 {
		if err := store.WriteRows(ctx, rows, mode); err != nil {
			return summary, fmt.Errorf("write protocol rows: %w", err)
		}
		summary.RowsWritten = len(rows)
		if s.mirror != nil {
			if err := s.mirror.AppendProtocolRows(ctx, rows); err != nil {
				logger.WithError(err).Warn("mirror append failed")
			}
		}
	}

	logger.WithFields(map[string]interface{}{
		"rows_written": summary.RowsWritten,
		"failures":     len(summary.Failures),
	}).Info("protocol run finished")
	return summary, nil
}

// RunAccountState ingests one account-state snapshot per address. equityPath
// is an optional dot-separated hint tried before the candidate-name search.
func (s *IngestService) RunAccountState(ctx context.Context, source AccountSource, store AccountStore, addresses []string, mode models.WriteMode, equityPath string) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:     uuid.NewString(),
		Source:    source.Name(),
		FetchedAt: time.Now().UTC().Truncate(time.Second),
		Addresses: len(addresses),
	}
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"run_id": summary.RunID,
		"source": summary.Source,
		"mode":   string(mode),
	})
	ctx = logging.WithLogger(ctx, logger)

	var rows []models.AccountSnapshot
	for _, address := range addresses {
		raw, err := s.accountState(ctx, source, address)
		if err != nil {
			logger.WithField("address", address).WithError(err).Error("account state fetch failed")
			summary.Failures = append(summary.Failures, AddressFailure{Address: address, Err: err})
			continue
		}

		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			logger.WithField("address", address).WithError(err).Error("account state decode failed")
			summary.Failures = append(summary.Failures, AddressFailure{Address: address, Err: err})
			continue
		}

		metrics := extract.AccountMetrics(doc, equityPath)
		fields := map[string]interface{}{"address": address}
		if metrics.HasEquity {
			fields["equity_usd"] = metrics.Equity.Value
			fields["equity_path"] = metrics.Equity.Path
		}
		if metrics.HasPositions {
			fields["positions"] = metrics.Positions
		}
		logger.WithFields(fields).Debug("account metrics extracted")

		rows = append(rows, normalize.AccountRow(address, raw, metrics, summary.FetchedAt))
	}

	if len(rows) > 0 {
		if err := store.WriteRows(ctx, rows, mode); err != nil {
			return summary, fmt.Errorf("write account rows: %w", err)
		}
		summary.RowsWritten = len(rows)
		if s.mirror != nil {
			if err := s.mirror.AppendAccountRows(ctx, rows); err != nil {
				logger.WithError(err).Warn("mirror append failed")
			}
		}
	}

	logger.WithFields(map[string]interface{}{
		"rows_written": summary.RowsWritten,
		"failures":     len(summary.Failures),
	}).Info("account state run finished")
	return summary, nil
}

// protocolItems resolves the protocol list for one address, consulting the
// payload cache before the upstream API.
func (s *IngestService) protocolItems(ctx context.Context, source ProtocolSource, address string) ([]json.RawMessage, error) {
	logger := logging.FromContext(ctx)
	if s.cache != nil {
		payload, hit, err := s.cache.Get(ctx, source.Name(), address)
		if err != nil {
			logger.WithField("address", address).WithError(err).Warn("cache read failed")
		} else if hit {
			items, err := adapter.DecodeProtocolList(payload)
			if err == nil {
				logger.WithField("address", address).Debug("cache hit")
				return items, nil
			}
			logger.WithField("address", address).WithError(err).Warn("cached payload unreadable")
		}
	}

	items, err := source.FetchProtocolList(ctx, address)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		payload, err := json.Marshal(items)
		if err == nil {
			if err := s.cache.Set(ctx, source.Name(), address, payload); err != nil {
				logger.WithField("address", address).WithError(err).Warn("cache write failed")
			}
		}
	}
	return items, nil
}

// accountState resolves the raw state document for one address, consulting
// the payload cache before the upstream API.
func (s *IngestService) accountState(ctx context.Context, source AccountSource, address string) (json.RawMessage, error) {
	logger := logging.FromContext(ctx)
	if s.cache != nil {
		payload, hit, err := s.cache.Get(ctx, source.Name(), address)
		if err != nil {
			logger.WithField("address", address).WithError(err).Warn("cache read failed")
		} else if hit && json.Valid(payload) {
			logger.WithField("address", address).Debug("cache hit")
			return json.RawMessage(payload), nil
		}
	}

	raw, err := source.FetchState(ctx, address)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, source.Name(), address, raw); err != nil {
			logger.WithField("address", address).WithError(err).Warn("cache write failed")
		}
	}
	return raw, nil
}
