package usecase

import (
	"context"
	"fmt"

	"github.com/semmidev/stowage/internal/domain"
)

type Fetch struct {
	store    domain.ObjectStore
	logger   Logger
	pageSize int
	output   string
}

func NewFetch(store domain.ObjectStore, logger Logger, pageSize int, output string) *Fetch {
	return &Fetch{
		store:    store,
		logger:   logger,
		pageSize: pageSize,
		output:   output,
	}
}

// List follows the listing cursor until the service stops returning one.
// Pages are requested one at a time. A failing page aborts the listing.
func (uc *Fetch) List(ctx context.Context, prefix string) ([]string, error) {
	if prefix == "" {
		return nil, domain.ErrPrefixRequired
	}
	if uc.pageSize < 1 {
		return nil, domain.ErrInvalidPageSize
	}

	keys := make([]string, 0)
	cursor := ""
	for page := 1; ; page++ {
		resp, err := uc.store.ListByPrefix(ctx, prefix, uc.pageSize, cursor)
		if err != nil {
			return nil, fmt.Errorf("list page %d of %q: %w", page, prefix, err)
		}

		keys = append(keys, resp.Keys...)
		uc.logger.Debugf("Page %d: %d keys (total %d)", page, len(resp.Keys), len(keys))

		if resp.NextCursor == "" {
			return keys, nil
		}
		cursor = resp.NextCursor
	}
}

// Execute lists every key under prefix and persists them as the input of
// a later delete.
func (uc *Fetch) Execute(ctx context.Context, prefix string) ([]string, error) {
	keys, err := uc.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	if err := writeJSON(uc.output, keys); err != nil {
		return keys, fmt.Errorf("write key list: %w", err)
	}

	uc.logger.Infof("Fetched %d keys under %q into %s", len(keys), prefix, uc.output)
	return keys, nil
}
