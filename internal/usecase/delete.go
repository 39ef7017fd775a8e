package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/semmidev/stowage/internal/domain"
)

type Delete struct {
	store     domain.ObjectStore
	logger    Logger
	batchSize int
	input     string
	output    string
}

func NewDelete(store domain.ObjectStore, logger Logger, batchSize int, input, output string) *Delete {
	return &Delete{
		store:     store,
		logger:    logger,
		batchSize: batchSize,
		input:     input,
		output:    output,
	}
}

// Execute deletes the keys of the persisted key list in sequential batches.
// A failed batch is logged and skipped; its keys are absent from the
// outcomes. Cancellation stops issuing batches and still persists what
// was collected.
func (uc *Delete) Execute(ctx context.Context) ([]domain.DeleteOutcome, error) {
	if uc.batchSize < 1 {
		return nil, domain.ErrInvalidBatchSize
	}

	keys, err := readKeys(uc.input)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrKeyListMissing, uc.input)
		}
		return nil, err
	}

	uc.logger.Infof("Deleting %d keys in batches of %d", len(keys), uc.batchSize)

	outcomes := make([]domain.DeleteOutcome, 0, len(keys))
	var failed int
	batch := 0
	for len(keys) > 0 {
		if err := ctx.Err(); err != nil {
			break
		}

		n := min(uc.batchSize, len(keys))
		chunk := keys[:n]
		keys = keys[n:]
		batch++

		result, err := uc.store.BatchDelete(ctx, chunk)
		if err != nil {
			failed += len(chunk)
			uc.logger.Errorf("Batch %d (%d keys) failed: %v", batch, len(chunk), err)
			continue
		}

		outcomes = append(outcomes, result...)
		uc.logger.Debugf("Batch %d: %d outcomes", batch, len(result))
	}

	if err := writeJSON(uc.output, outcomes); err != nil {
		return outcomes, fmt.Errorf("write delete report: %w", err)
	}

	deleted := 0
	for _, o := range outcomes {
		if o.Code >= 200 && o.Code < 300 {
			deleted++
		}
	}
	uc.logger.Infof("Deleted %d keys in %d batches, %d outcomes written to %s", deleted, batch, len(outcomes), uc.output)
	if failed > 0 {
		uc.logger.Warnf("%d keys were in failed batches and are not in the report", failed)
	}

	return outcomes, ctx.Err()
}
