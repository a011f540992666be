package carrierapp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"time"

	"github.com/fulfillment/backend/internal/domain/carrier"
	csvimport "github.com/fulfillment/backend/internal/infrastructure/import"
	"github.com/fulfillment/backend/internal/infrastructure/logger"
	"github.com/fulfillment/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	csvServiceName   = "CarrierCSVService"
	csvContentType   = "text/csv"
	archiveKeyPrefix = "carrier-imports"
)

// CSVOption configures a CSVService
type CSVOption func(*CSVService)

// WithArchive archives every accepted upload with a snapshot of the stores it
// changes. Without an archive nothing is kept.
func WithArchive(a ArchiveStorage) CSVOption {
	return func(s *CSVService) {
		s.archive = a
	}
}

// WithImportMetrics sets the recorder for import outcomes
func WithImportMetrics(m MetricsRecorder) CSVOption {
	return func(s *CSVService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithMaxErrors caps the number of row errors reported for a rejected upload.
// Zero reports all of them.
func WithMaxErrors(n int) CSVOption {
	return func(s *CSVService) {
		s.maxErrors = n
	}
}

// WithMaxFileSize caps the accepted upload size in bytes
func WithMaxFileSize(n int64) CSVOption {
	return func(s *CSVService) {
		if n > 0 {
			s.maxFileSize = n
		}
	}
}

// CSVService exports carrier priorities as CSV and applies edited uploads.
type CSVService struct {
	repo        carrier.Repository
	stores      carrier.StoreRegistry
	locker      carrier.StoreLocker
	archive     ArchiveStorage
	logger      *zap.Logger
	metrics     MetricsRecorder
	maxErrors   int
	maxFileSize int64
	now         func() time.Time
}

// NewCSVService creates a new CSVService
func NewCSVService(
	repo carrier.Repository,
	stores carrier.StoreRegistry,
	locker carrier.StoreLocker,
	logger *zap.Logger,
	opts ...CSVOption,
) *CSVService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &CSVService{
		repo:        repo,
		stores:      stores,
		locker:      locker,
		logger:      logger,
		metrics:     noopMetrics{},
		maxFileSize: csvimport.DefaultMaxFileSize,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportCSV writes every store's carriers to w, stores ordered by account code.
func (s *CSVService) ExportCSV(ctx context.Context, w io.Writer) error {
	ctx, span := telemetry.StartServiceSpan(ctx, csvServiceName, "ExportCSV")
	defer span.End()

	all, err := s.repo.FindAll(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("load carriers: %w", err)
	}

	byStore := make(map[string][]carrier.Carrier)
	for _, c := range all {
		byStore[c.StoreKey] = append(byStore[c.StoreKey], c)
	}
	keys := make([]string, 0, len(byStore))
	for k := range byStore {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	names, err := s.storeNames(ctx, keys)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if err := writeStores(w, keys, names, byStore); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrStoreCount, len(keys),
		telemetry.SpanAttrCarrierCount, len(all),
	)
	telemetry.SetOK(span)
	return nil
}

// ExportStoreCSV writes a single store's carriers to w.
func (s *CSVService) ExportStoreCSV(ctx context.Context, w io.Writer, storeKey string) error {
	if storeKey == "" {
		return carrier.ErrStoreKeyRequired
	}
	ctx, span := telemetry.StartServiceSpan(ctx, csvServiceName, "ExportStoreCSV",
		telemetry.WithAttribute(telemetry.SpanAttrStoreKey, storeKey))
	defer span.End()

	store, err := s.stores.GetStore(ctx, storeKey)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	carriers, err := s.repo.FindByStore(ctx, storeKey)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("load carriers for store %s: %w", storeKey, err)
	}

	err = writeStores(w,
		[]string{storeKey},
		map[string]string{storeKey: store.Name},
		map[string][]carrier.Carrier{storeKey: carriers},
	)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.SetOK(span)
	return nil
}

// storeNames resolves display names; stores missing from the registry export
// with an empty name.
func (s *CSVService) storeNames(ctx context.Context, keys []string) (map[string]string, error) {
	names := make(map[string]string, len(keys))
	for _, k := range keys {
		store, err := s.stores.GetStore(ctx, k)
		if errors.Is(err, carrier.ErrStoreNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		names[k] = store.Name
	}
	return names, nil
}

func writeStores(w io.Writer, keys []string, names map[string]string, byStore map[string][]carrier.Carrier) error {
	cw := csvimport.NewCarrierCSVWriter(w)
	if err := cw.WriteHeader(); err != nil {
		return err
	}
	for _, k := range keys {
		for _, c := range carrier.SortForDisplay(byStore[k]) {
			if err := cw.WriteCarrier(names[k], c); err != nil {
				return err
			}
		}
	}
	return cw.Flush()
}

// ImportCSV applies an edited export. The whole upload is validated against
// the persisted carriers of every store it names before anything is written;
// any problem rejects the upload with a *csvimport.ImportValidationError.
// Accepted uploads are written in one transaction and each touched store is
// renumbered.
func (s *CSVService) ImportCSV(ctx context.Context, r io.Reader) (*ImportResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, csvServiceName, "ImportCSV")
	defer span.End()

	start := time.Now()
	log := logger.WithLogger(ctx, s.logger)

	result, err := s.importCSV(ctx, r)
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordImport(ctx, telemetry.ResultFailure, 0)
		log.Warn("Carrier CSV import rejected", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrStoreCount, len(result.StoresProcessed),
		telemetry.SpanAttrCarrierCount, result.UpdatedCount,
	)
	telemetry.SetOK(span)
	s.metrics.RecordImport(ctx, telemetry.ResultSuccess, result.UpdatedCount)
	log.Info("Carrier CSV import applied",
		zap.Int("updated_count", result.UpdatedCount),
		zap.Strings("stores", result.StoresProcessed),
		zap.Strings("archive_keys", result.ArchiveKeys),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func (s *CSVService) importCSV(ctx context.Context, r io.Reader) (*ImportResult, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxFileSize {
		return nil, csvimport.ErrFileTooLarge
	}

	rows, err := csvimport.ReadCarrierRows(bytes.NewReader(data), csvimport.WithMaxFileSize(s.maxFileSize))
	if err != nil {
		return nil, err
	}

	v := csvimport.NewUploadValidator(s.maxErrors)
	groups := v.Group(rows)

	keys := make([]string, 0, len(groups))
	for _, g := range groups {
		keys = append(keys, g.StoreKey)
	}
	sort.Strings(keys)

	// Locks are taken in key order before reading, so validation sees the
	// state the write will replace.
	unlock, err := s.lockAll(ctx, keys)
	if err != nil {
		return nil, err
	}
	defer unlock()

	persisted := make(map[string][]carrier.Carrier, len(groups))
	names := make(map[string]string, len(groups))
	for _, g := range groups {
		store, err := s.stores.GetStore(ctx, g.StoreKey)
		if errors.Is(err, carrier.ErrStoreNotFound) {
			v.UnknownStore(g)
			continue
		}
		if err != nil {
			return nil, err
		}
		existing, err := s.repo.FindByStore(ctx, g.StoreKey)
		if err != nil {
			return nil, fmt.Errorf("load carriers for store %s: %w", g.StoreKey, err)
		}
		v.ValidateGroup(g, existing)
		persisted[g.StoreKey] = existing
		names[g.StoreKey] = store.Name
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	archiveKeys, err := s.archiveUpload(ctx, data, keys, names, persisted)
	if err != nil {
		return nil, err
	}

	updated := 0
	err = s.repo.InTransaction(ctx, func(repo carrier.Repository) error {
		for _, g := range groups {
			n, err := repo.UpdatePriorities(ctx, g.StoreKey, apply(persisted[g.StoreKey], g.Assignments))
			if err != nil {
				return fmt.Errorf("write priorities for store %s: %w", g.StoreKey, err)
			}
			updated += n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &ImportResult{
		UpdatedCount:    updated,
		StoresProcessed: keys,
		ArchiveKeys:     archiveKeys,
	}, nil
}

// apply sets the uploaded priority and status on each persisted carrier and
// renumbers the store.
func apply(existing []carrier.Carrier, assignments []csvimport.Assignment) []carrier.Carrier {
	byID := make(map[string]csvimport.Assignment, len(assignments))
	for _, a := range assignments {
		byID[a.CarrierID] = a
	}

	next := make([]carrier.Carrier, len(existing))
	for i, c := range existing {
		if a, ok := byID[c.CarrierID]; ok {
			c.Priority = a.Priority
			if a.HasStatus() {
				c.Status = a.Status
			}
		}
		next[i] = c
	}
	return carrier.Renumber(next)
}

func (s *CSVService) lockAll(ctx context.Context, keys []string) (func(), error) {
	unlocks := make([]func(), 0, len(keys))
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, k := range keys {
		unlock, err := s.locker.TryLock(ctx, k)
		if err != nil {
			release()
			return nil, fmt.Errorf("lock store %s: %w", k, err)
		}
		unlocks = append(unlocks, unlock)
	}
	return release, nil
}

// archiveUpload stores the upload and an export of the stores it replaces
// under carrier-imports/<date>/<id>/.
func (s *CSVService) archiveUpload(
	ctx context.Context,
	upload []byte,
	keys []string,
	names map[string]string,
	persisted map[string][]carrier.Carrier,
) ([]string, error) {
	if s.archive == nil {
		return nil, nil
	}

	var snapshot bytes.Buffer
	if err := writeStores(&snapshot, keys, names, persisted); err != nil {
		return nil, fmt.Errorf("build snapshot: %w", err)
	}

	dir := path.Join(archiveKeyPrefix, s.now().UTC().Format("20060102"), uuid.NewString())
	uploadKey, err := s.archive.Put(ctx, path.Join(dir, "upload.csv"), upload, csvContentType)
	if err != nil {
		return nil, fmt.Errorf("archive upload: %w", err)
	}
	snapshotKey, err := s.archive.Put(ctx, path.Join(dir, "before.csv"), snapshot.Bytes(), csvContentType)
	if err != nil {
		return nil, fmt.Errorf("archive snapshot: %w", err)
	}
	return []string{uploadKey, snapshotKey}, nil
}
