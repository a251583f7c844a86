package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Stats is what a download run prints when it ends.
type Stats struct {
	Chapters  int
	Images    int
	Bytes     int64
	Elapsed   time.Duration
	Failed    []string
	Skipped   []string
	Cancelled bool
}

func (s Stats) Fprint(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Download Summary:")
	fmt.Fprintf(w, "Chapters: %d\n", s.Chapters)
	fmt.Fprintf(w, "Images:   %d\n", s.Images)
	fmt.Fprintf(w, "Data:     %s\n", humanize.Bytes(uint64(max(s.Bytes, 0))))
	fmt.Fprintf(w, "Time:     %s\n", s.Elapsed.Round(time.Second))

	if len(s.Skipped) > 0 {
		fmt.Fprintf(w, "Skipped:  %d (already archived)\n", len(s.Skipped))
	}
	if len(s.Failed) > 0 {
		fmt.Fprintf(w, "Failed:   %s\n", strings.Join(s.Failed, ", "))
	}

	switch {
	case s.Cancelled:
		fmt.Fprintln(w, "\nInterrupted, partial chapters were left on disk.")
	case len(s.Failed) > 0:
		fmt.Fprintln(w, "\nDone with errors.")
	default:
		fmt.Fprintln(w, "\nAll done.")
	}
}
