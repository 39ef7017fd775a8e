// Package progress renders the live upload status line.
package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/semmidev/stowage/internal/domain"
)

// Bar is a single mpb bar fed with run stats. Start must be called before
// Update; Done waits for the final frame to be rendered.
type Bar struct {
	out   io.Writer
	name  string
	mu    sync.Mutex
	p     *mpb.Progress
	bar   *mpb.Bar
	stats domain.RunStats
}

func NewBar(out io.Writer, name string) *Bar {
	return &Bar{out: out, name: name}
}

func (b *Bar) Start(total int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats = domain.RunStats{Total: total}
	if total == 0 {
		return
	}

	b.p = mpb.New(mpb.WithOutput(b.out), mpb.WithWidth(40))
	b.bar = b.p.New(int64(total),
		mpb.BarStyle(),
		mpb.PrependDecorators(
			decor.Name(b.name, decor.WCSyncSpaceR),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Any(func(decor.Statistics) string {
				b.mu.Lock()
				defer b.mu.Unlock()
				return Line(b.stats)
			}),
		),
	)
}

func (b *Bar) Update(stats domain.RunStats) {
	b.mu.Lock()
	b.stats = stats
	bar := b.bar
	b.mu.Unlock()

	if bar != nil {
		bar.SetCurrent(int64(stats.Success + stats.Fail))
	}
}

func (b *Bar) Done(stats domain.RunStats) {
	b.Update(stats)

	b.mu.Lock()
	p, bar := b.p, b.bar
	b.mu.Unlock()

	if p == nil {
		return
	}
	if !bar.Completed() {
		bar.Abort(false)
	}
	p.Wait()
}

// Line formats stats the way the status line shows them.
func Line(stats domain.RunStats) string {
	return fmt.Sprintf("uploading:%d success:%d fail:%d", stats.Uploading, stats.Success, stats.Fail)
}

// Nop discards progress. Used when line-by-line debug logs replace the bar.
type Nop struct{}

func (Nop) Start(int)              {}
func (Nop) Update(domain.RunStats) {}
func (Nop) Done(domain.RunStats)   {}
