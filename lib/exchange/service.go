// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/bureau-foundation/examvault/lib/entity"
	"github.com/bureau-foundation/examvault/lib/objcodec"
	"github.com/bureau-foundation/examvault/lib/objstore"
	"github.com/bureau-foundation/examvault/lib/vaulterr"
)

// StagingDirName is the default staging directory beneath the store
// root. Its leading dot keeps it out of tenant listings.
const StagingDirName = ".staging"

// Operation names, used as event operations and reason prefixes.
const (
	OperationExportWorkspace = "export_workspace"
	OperationExport          = "export"
	OperationImport          = "import"
)

type Config struct {
	Catalog *entity.Catalog

	// StagingDir holds per-operation scratch directories. It must be
	// on the same filesystem as the store root. Default
	// <root>/.staging.
	StagingDir string

	// KeyID is the fingerprint of the master key, written to and
	// checked against bundle manifests. Empty disables the check.
	KeyID string

	// IOConcurrency bounds parallel file copies, extraction and
	// relocation. Default objstore.DefaultIOConcurrency.
	IOConcurrency int

	// ScryptWorkFactor is the age scrypt work factor for
	// passphrase-sealed bundles. Zero selects the bundle default.
	ScryptWorkFactor int

	Logger *slog.Logger
}

// Service runs export and import operations against one store.
type Service struct {
	catalog    *entity.Catalog
	store      *objstore.Store
	codec      *objcodec.Codec
	staging    string
	keyID      string
	limit      int
	workFactor int
	logger     *slog.Logger

	// importMu serializes imports: conflict checks, merges and
	// relocations of concurrent imports must not interleave.
	importMu sync.Mutex

	subscribersMu sync.Mutex
	subscribers   []chan Event

	detached sync.WaitGroup

	// relocateHook, when set, runs before each planned move. Tests use
	// it to inject relocation failures.
	relocateHook func(index int, planned move) error
}

// New creates the staging directory, rolls back relocations left by
// an interrupted import, and returns a Service.
func New(config Config) (*Service, error) {
	if config.Catalog == nil {
		return nil, fmt.Errorf("exchange catalog is required")
	}
	store := config.Catalog.Store()
	staging := config.StagingDir
	if staging == "" {
		staging = filepath.Join(store.Root(), StagingDirName)
	}
	limit := config.IOConcurrency
	if limit <= 0 {
		limit = objstore.DefaultIOConcurrency
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(staging, 0o700); err != nil {
		return nil, vaulterr.Wrap(vaulterr.ErrIO, err, "creating staging directory %s", staging)
	}

	service := &Service{
		catalog:    config.Catalog,
		store:      store,
		codec:      store.Codec(),
		staging:    staging,
		keyID:      config.KeyID,
		limit:      limit,
		workFactor: config.ScryptWorkFactor,
		logger:     logger,
	}
	if err := service.Recover(context.Background()); err != nil {
		return nil, err
	}
	return service, nil
}

// Status is the outcome of a detached operation.
type Status string

const (
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
)

// Event reports the completion of a detached operation.
type Event struct {
	OperationID string
	Operation   string
	Tenant      string
	Status      Status

	// Reason is a short machine-readable key such as
	// "import.conflict" for the UI to translate.
	Reason string

	// Message is a human-readable summary. It never contains paths
	// or key material.
	Message string
}

// Subscribe returns a channel that receives an Event for every
// detached operation that completes after the call. The channel is
// buffered; events are dropped for subscribers that fall behind.
func (s *Service) Subscribe() <-chan Event {
	s.subscribersMu.Lock()
	defer s.subscribersMu.Unlock()
	channel := make(chan Event, 64)
	s.subscribers = append(s.subscribers, channel)
	return channel
}

func (s *Service) publish(event Event) {
	s.subscribersMu.Lock()
	subscribers := s.subscribers
	s.subscribersMu.Unlock()

	for _, subscriber := range subscribers {
		select {
		case subscriber <- event:
		default:
			s.logger.Warn("exchange event dropped for slow subscriber",
				"operation_id", event.OperationID, "operation", event.Operation)
		}
	}
}

// Wait blocks until every detached operation has completed.
func (s *Service) Wait() {
	s.detached.Wait()
}

// run starts work detached and publishes its outcome. work returns
// the tenant it acted on and a summary message. Returns the operation
// id.
func (s *Service) run(operation string, work func(ctx context.Context) (tenant, message string, err error)) string {
	operationID := uuid.NewString()
	s.detached.Add(1)
	go func() {
		defer s.detached.Done()
		logger := s.logger.With("operation_id", operationID, "operation", operation)
		tenant, message, err := work(context.Background())
		event := Event{
			OperationID: operationID,
			Operation:   operation,
			Tenant:      tenant,
			Reason:      vaulterr.Reason(operation, err),
		}
		if err != nil {
			logger.Error("exchange operation failed", "tenant", tenant, "error", err)
			event.Status = StatusFailed
			event.Message = vaulterr.Public(err).Error()
		} else {
			logger.Info("exchange operation finished", "tenant", tenant, "message", message)
			event.Status = StatusFinished
			event.Message = message
		}
		s.publish(event)
	}()
	return operationID
}

// StartExportWorkspace runs ExportWorkspace detached.
func (s *Service) StartExportWorkspace(tenant, dest string, options ExportOptions) string {
	return s.run(OperationExportWorkspace, func(ctx context.Context) (string, string, error) {
		count, err := s.ExportWorkspace(ctx, tenant, dest, options)
		return tenant, fmt.Sprintf("exported %d entities of workspace %s", count, tenant), err
	})
}

// StartExport runs Export detached.
func (s *Service) StartExport(tenant string, ids []string, dest string, options ExportOptions) string {
	ids = append([]string(nil), ids...)
	return s.run(OperationExport, func(ctx context.Context) (string, string, error) {
		count, err := s.Export(ctx, tenant, ids, dest, options)
		return tenant, fmt.Sprintf("exported %d records of %s", count, tenant), err
	})
}

// StartImport runs Import detached. The event's Tenant is the tenant
// named by the bundle, empty if the bundle could not be read.
func (s *Service) StartImport(src string, options ImportOptions) string {
	return s.run(OperationImport, func(ctx context.Context) (string, string, error) {
		result, err := s.Import(ctx, src, options)
		return result.Tenant, fmt.Sprintf("imported %d entities into %s", len(result.Updated), result.Tenant), err
	})
}

// classify gives err a vaulterr kind when it has none. Cancellation
// becomes ErrIO; anything else unclassified is ErrInternal.
func classify(err error, format string, args ...any) error {
	if err == nil || vaulterr.Kind(err) != nil {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return vaulterr.Wrap(vaulterr.ErrIO, err, format+" cancelled", args...)
	}
	return vaulterr.Wrap(vaulterr.ErrInternal, err, format, args...)
}

// newStaging creates a fresh scratch directory for one operation.
func (s *Service) newStaging(operation string) (string, error) {
	directory := filepath.Join(s.staging, operation+"-"+uuid.NewString())
	if err := os.MkdirAll(directory, 0o700); err != nil {
		return "", vaulterr.Wrap(vaulterr.ErrIO, err, "creating %s", directory)
	}
	return directory, nil
}

func (s *Service) discardStaging(directory string) {
	if err := os.RemoveAll(directory); err != nil {
		s.logger.Warn("removing staging directory failed", "path", directory, "error", err)
	}
}
