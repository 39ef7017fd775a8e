package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")

	ErrInvalidParallelism = fmt.Errorf("%w: parallel count must be at least 1", ErrInvalidConfig)
	ErrInvalidPageSize    = fmt.Errorf("%w: page size must be at least 1", ErrInvalidConfig)
	ErrInvalidBatchSize   = fmt.Errorf("%w: batch size must be at least 1", ErrInvalidConfig)
	ErrPrefixRequired     = fmt.Errorf("%w: prefix is required", ErrInvalidConfig)

	// ErrKeyListMissing is returned by delete when no fetch has persisted a key list yet.
	ErrKeyListMissing = errors.New("key list not found: fetch must be executed before delete")
)
