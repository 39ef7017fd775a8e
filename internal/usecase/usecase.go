package usecase

import (
	"context"

	"github.com/semmidev/stowage/internal/domain"
)

type Logger interface {
	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
}

// Progress observes a run. It never influences scheduling.
type Progress interface {
	Start(total int)
	Update(stats domain.RunStats)
	Done(stats domain.RunStats)
}

type Finder interface {
	Find() ([]string, error)
}

type Compressor interface {
	Encoding() string
	CompressTemp(sourcePath string) (string, error)
}

type Notifier interface {
	NotifyRun(ctx context.Context, summary domain.RunSummary) error
}
