// Package pipeline implements the core message dispatch loop: per-line
// decode, schema and checkpoint bookkeeping, batch accumulation, and
// threshold-triggered flushes through the submitter.
package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/stitchload/stitchload/internal/batch"
	"github.com/stitchload/stitchload/internal/checkpoint"
	"github.com/stitchload/stitchload/internal/errors"
	"github.com/stitchload/stitchload/internal/journal"
	"github.com/stitchload/stitchload/internal/schema"
	"github.com/stitchload/stitchload/internal/storage"
	"github.com/stitchload/stitchload/internal/submit"
	"github.com/stitchload/stitchload/pkg/types"
)

// maxLineBytes bounds a single input line. Records larger than this are
// rejected as malformed rather than silently truncated.
const maxLineBytes = 20 * 1024 * 1024

// Pipeline owns the per-run state: the schema registry, the batch
// accumulator, the checkpoint tracker, and the flush side effects.
// Dispatch is strictly single-threaded in arrival order; submission
// blocks further input, which is the run's backpressure mechanism.
type Pipeline struct {
	tableName string
	batchSize int
	runID     string

	registry  *schema.Registry
	acc       *batch.Accumulator
	tracker   *checkpoint.Tracker
	submitter *submit.Submitter

	// Optional flush side effects; nil when disabled.
	journal  journal.Journal
	archiver *storage.Archiver

	// batchSchema is the schema of the most recently validated record,
	// used as the whole batch's declared schema at flush time. A batch
	// that interleaves streams is submitted under the last stream's
	// schema; see the import API contract for why this is tolerated.
	batchSchema *schema.StreamSchema
}

// Option configures optional pipeline collaborators.
type Option func(*Pipeline)

// WithJournal attaches a flush journal.
func WithJournal(j journal.Journal) Option {
	return func(p *Pipeline) { p.journal = j }
}

// WithArchiver attaches a submitted-batch archiver.
func WithArchiver(a *storage.Archiver) Option {
	return func(p *Pipeline) { p.archiver = a }
}

// WithClock overrides the accumulator's window clock, for tests.
func WithClock(clock batch.Clock) Option {
	return func(p *Pipeline) { p.acc = batch.NewAccumulator(clock) }
}

// New creates a pipeline for one run.
func New(submitter *submit.Submitter, tableName string, batchSize int, runID string, opts ...Option) *Pipeline {
	p := &Pipeline{
		tableName: tableName,
		batchSize: batchSize,
		runID:     runID,
		registry:  schema.NewRegistry(),
		acc:       batch.NewAccumulator(nil),
		tracker:   checkpoint.NewTracker(),
		submitter: submitter,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run consumes the input stream to exhaustion, flushes any remaining
// batch, and returns the last checkpoint value that is safe to report.
// Every error is fatal: the run aborts immediately, nothing further is
// submitted, and no checkpoint is returned.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) (json.RawMessage, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		// Copy out of the scanner's buffer: decoded payloads outlive
		// this iteration inside the accumulator.
		line := append([]byte(nil), scanner.Bytes()...)
		if err := p.dispatch(ctx, line, lineNo); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCategoryProtocol, errors.CodeMalformedInput,
			fmt.Sprintf("failed reading input after line %d", lineNo), err)
	}

	// End of input: one final flush for whatever remains, no threshold check.
	if p.acc.Size() > 0 {
		if err := p.flush(ctx); err != nil {
			return nil, err
		}
	}

	state, held := p.tracker.Current()
	if !held {
		return nil, nil
	}
	return state, nil
}

// dispatch handles one input line: decode, classify by kind, route.
func (p *Pipeline) dispatch(ctx context.Context, line []byte, lineNo int) error {
	msg, err := types.DecodeMessage(line)
	if err != nil {
		return errors.Wrap(errors.ErrCategoryProtocol, errors.CodeMalformedInput,
			fmt.Sprintf("unable to parse line %d: %s", lineNo, line), err)
	}

	if !msg.HasType {
		return errors.NewProtocolError(errors.CodeMissingKind,
			fmt.Sprintf("line %d is missing required key 'type': %s", lineNo, line))
	}

	switch msg.Type {
	case types.KindRecord:
		return p.handleRecord(ctx, msg, lineNo)
	case types.KindState:
		if !msg.HasValue {
			return errors.NewProtocolError(errors.CodeMissingValue,
				fmt.Sprintf("line %d is missing required key 'value': %s", lineNo, line))
		}
		p.tracker.Set(msg.Value)
		return nil
	case types.KindSchema:
		return p.handleSchema(msg, lineNo)
	default:
		return errors.NewProtocolError(errors.CodeUnknownMessageKind,
			fmt.Sprintf("unknown message type %q on line %d", msg.Type, lineNo))
	}
}

func (p *Pipeline) handleSchema(msg *types.DecodedMessage, lineNo int) error {
	if !msg.HasStream {
		return errors.NewProtocolError(errors.CodeMissingStream,
			fmt.Sprintf("line %d is missing required key 'stream'", lineNo))
	}
	if !msg.HasKeyProperties {
		return errors.NewProtocolError(errors.CodeMissingKeyProps,
			fmt.Sprintf("line %d is missing required key 'key_properties'", lineNo))
	}
	return p.registry.Declare(msg.Stream, msg.Schema, msg.KeyProperties)
}

func (p *Pipeline) handleRecord(ctx context.Context, msg *types.DecodedMessage, lineNo int) error {
	if !msg.HasStream {
		return errors.NewProtocolError(errors.CodeMissingStream,
			fmt.Sprintf("line %d is missing required key 'stream'", lineNo))
	}

	streamSchema, err := p.registry.SchemaFor(msg.Stream)
	if err != nil {
		return err
	}
	if err := streamSchema.Validate(msg.Record); err != nil {
		return err
	}

	p.acc.Append(msg.Record)
	p.batchSchema = streamSchema

	// An accepted record makes the held checkpoint unsafe to report
	// until its containing batch is flushed.
	p.tracker.Invalidate()

	// BatchSize is the maximum batch: reaching it flushes before the
	// next input line is read.
	if p.acc.Size() >= p.batchSize {
		return p.flush(ctx)
	}
	return nil
}

// flush drains the accumulator, submits the batch, runs the enabled
// side effects, and opens a fresh batch window.
func (p *Pipeline) flush(ctx context.Context) error {
	ops, wasEmpty := p.acc.Drain()
	if wasEmpty {
		return nil
	}

	ordinal := p.acc.Ordinal()
	log.Printf("sending batch %d: %d operations to table %q", ordinal, len(ops), p.tableName)

	response, err := p.submitter.Submit(ctx, p.batchSchema.Raw, p.tableName, ops)
	if err != nil {
		return err
	}
	if response != "" {
		log.Printf("batch %d response: %s", ordinal, response)
	}

	if err := p.afterSubmit(ctx, ordinal, ops, response); err != nil {
		return err
	}

	p.acc.ResetWindow()
	return nil
}

// afterSubmit runs the journal and archive side effects for one
// successfully submitted batch.
func (p *Pipeline) afterSubmit(ctx context.Context, ordinal int, ops []types.Operation, response string) error {
	if p.journal == nil && p.archiver == nil {
		return nil
	}

	envelope := &types.BatchEnvelope{
		Schema:    p.batchSchema.Raw,
		TableName: p.tableName,
		Messages:  ops,
	}

	if p.journal != nil {
		fingerprint, err := journal.Fingerprint(envelope)
		if err != nil {
			return err
		}
		rec := &journal.FlushRecord{
			RunID:          p.runID,
			Ordinal:        ordinal,
			TableName:      p.tableName,
			OperationCount: len(ops),
			FirstSequence:  ops[0].Sequence,
			LastSequence:   ops[len(ops)-1].Sequence,
			KeyProperties:  p.batchSchema.KeyProperties,
			Fingerprint:    fingerprint,
			Response:       response,
		}
		if err := p.journal.RecordFlush(ctx, rec); err != nil {
			return err
		}
	}

	if p.archiver != nil {
		if err := p.archiver.ArchiveBatch(ctx, ordinal, envelope); err != nil {
			return err
		}
	}
	return nil
}
