package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/golang/snappy"

	"github.com/stitchload/stitchload/internal/errors"
	"github.com/stitchload/stitchload/pkg/types"
)

// Archiver writes each successfully submitted batch envelope to object
// storage as an audit trail. Only sent batches are archived; nothing is
// persisted for data that never reached the destination.
type Archiver struct {
	store ObjectStorage
	runID string
}

// NewArchiver creates an archiver scoped to one run.
func NewArchiver(store ObjectStorage, runID string) *Archiver {
	return &Archiver{store: store, runID: runID}
}

// ArchiveBatch stores the envelope of one submitted batch, snappy
// compressed, keyed by run ID and batch ordinal.
func (a *Archiver) ArchiveBatch(ctx context.Context, ordinal int, envelope *types.BatchEnvelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return errors.NewInternalError("failed to serialize envelope for archive", err)
	}

	compressed := snappy.Encode(nil, data)
	objectPath := a.ObjectPath(ordinal)
	if err := a.store.Put(ctx, objectPath, compressed); err != nil {
		return errors.NewStorageError(errors.CodeArchiveFailed,
			fmt.Sprintf("failed to archive batch %d", ordinal), err)
	}
	return nil
}

// ReadBatch loads and decompresses an archived envelope.
func (a *Archiver) ReadBatch(ctx context.Context, ordinal int) (*types.BatchEnvelope, error) {
	compressed, err := a.store.Get(ctx, a.ObjectPath(ordinal))
	if err != nil {
		return nil, errors.NewStorageError(errors.CodeArchiveFailed,
			fmt.Sprintf("failed to read archived batch %d", ordinal), err)
	}

	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, errors.NewStorageError(errors.CodeArchiveFailed,
			fmt.Sprintf("archived batch %d is corrupt", ordinal), err)
	}

	var envelope types.BatchEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, errors.NewStorageError(errors.CodeArchiveFailed,
			fmt.Sprintf("archived batch %d is not a valid envelope", ordinal), err)
	}
	return &envelope, nil
}

// ObjectPath returns the storage key for one batch ordinal.
func (a *Archiver) ObjectPath(ordinal int) string {
	return fmt.Sprintf("batches/%s/%06d.json.sz", a.runID, ordinal)
}
