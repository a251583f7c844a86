package ui

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

type MPBProgressManager struct {
	p *mpb.Progress
}

func NewProgressManager() *MPBProgressManager {
	return NewProgressManagerTo(os.Stdout)
}

func NewProgressManagerTo(w io.Writer) *MPBProgressManager {
	p := mpb.New(
		mpb.WithWidth(52),
		mpb.WithOutput(w),
		mpb.WithRefreshRate(120*time.Millisecond),
	)
	return &MPBProgressManager{p: p}
}

func (pm *MPBProgressManager) Close() {
	pm.p.Wait()
}

// Register adds a bar for one chapter. The bar completes itself once done
// reaches total.
func (pm *MPBProgressManager) Register(prefix string, total int) *ProgressHandle {
	h := &ProgressHandle{pm: pm, prefix: prefix}
	h.total.Store(int64(total))
	h.bar = pm.newBar(h, total)
	return h
}

func (pm *MPBProgressManager) newBar(h *ProgressHandle, total int) *mpb.Bar {
	h.start = time.Now()
	start := h.start

	return pm.p.New(
		int64(total),
		mpb.BarStyle().Rbound("]"),
		mpb.BarRemoveOnComplete(),
		mpb.PrependDecorators(
			decor.Name(h.prefix+"  "),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncWidth),
			decor.CountersNoUnit(" | %d/%d pages", decor.WCSyncWidth),
			decor.Any(func(_ decor.Statistics) string {
				return fmt.Sprintf(" | %ds", int(time.Since(start).Seconds()))
			}),
		),
	)
}

// ProgressHandle is fed by one chapter. Update calls are serialised by the
// downloader.
type ProgressHandle struct {
	pm     *MPBProgressManager
	prefix string
	bar    *mpb.Bar
	start  time.Time
	total  atomic.Int64
	final  atomic.Bool
}

// Update matches downloader.ProgressFunc. A chapter restarted after a cookie
// retry reports done=0 again and gets a fresh bar.
func (h *ProgressHandle) Update(done, total int) {
	if h.final.Load() {
		if done != 0 {
			return
		}
		h.total.Store(int64(total))
		h.bar = h.pm.newBar(h, total)
		h.final.Store(false)
	}

	if total > 0 && int64(total) != h.total.Load() {
		h.total.Store(int64(total))
		h.bar.SetTotal(int64(total), false)
	}
	h.bar.SetCurrent(int64(done))

	if total > 0 && done >= total {
		h.MarkDone()
	}
}

// MarkDone completes the bar, also when the chapter stopped early.
func (h *ProgressHandle) MarkDone() {
	if h.final.Swap(true) {
		return
	}
	h.bar.SetTotal(-1, true)
}
