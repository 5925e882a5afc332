// Package accounting tracks transfer statistics for one sync run:
// bytes moved, errors hit, and which paths are currently being copied.
// It is the rjrssync equivalent of the legacy top-level Stats type,
// reworked around a set of named transferring paths per the
// --stats reporter rather than a fixed checkers/transfers pool size.
package accounting

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Stats accumulates counters across one boss run. The zero value is
// not usable; construct with New.
type Stats struct {
	mu sync.RWMutex

	bytesTotal   int64
	bytesDone    int64
	errors       int64
	filesDone    int64
	filesTotal   int64
	transferring map[string]bool
	start        time.Time
}

// New returns a freshly started Stats.
func New() *Stats {
	return &Stats{
		transferring: make(map[string]bool),
		start:        time.Now(),
	}
}

// SetTotals records the plan's totals up front so percentage-complete
// can be reported mid-run.
func (s *Stats) SetTotals(files int64, bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filesTotal = files
	s.bytesTotal = bytes
}

// StartTransfer marks rel as currently in flight.
func (s *Stats) StartTransfer(rel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transferring[rel] = true
}

// FinishTransfer marks rel as complete and accounts its bytes.
func (s *Stats) FinishTransfer(rel string, bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transferring, rel)
	s.bytesDone += bytes
	s.filesDone++
}

// AddBytes accounts bytes transferred without closing out the whole
// file, for progress on a single large chunked copy.
func (s *Stats) AddBytes(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bytesDone += n
}

// AddError records one failed operation.
func (s *Stats) AddError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors++
}

// Snapshot is an immutable copy of the counters for rendering.
type Snapshot struct {
	BytesTotal   int64
	BytesDone    int64
	FilesTotal   int64
	FilesDone    int64
	Errors       int64
	Transferring []string
	Elapsed      time.Duration
}

// Snapshot takes a consistent copy of the current counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.transferring))
	for k := range s.transferring {
		names = append(names, k)
	}
	return Snapshot{
		BytesTotal:   s.bytesTotal,
		BytesDone:    s.bytesDone,
		FilesTotal:   s.filesTotal,
		FilesDone:    s.filesDone,
		Errors:       s.errors,
		Transferring: names,
		Elapsed:      time.Since(s.start),
	}
}

// String renders a human-readable summary using humanize for byte
// counts, matching the teacher's habit of a compact multi-line report.
func (snap Snapshot) String() string {
	var speed string
	if secs := snap.Elapsed.Seconds(); secs > 0 {
		speed = humanize.Bytes(uint64(float64(snap.BytesDone)/secs)) + "/s"
	} else {
		speed = "0 B/s"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Transferred: %s / %s (%s), %d / %d files, %d errors, %v elapsed\n",
		humanize.Bytes(uint64(snap.BytesDone)), humanize.Bytes(uint64(snap.BytesTotal)), speed,
		snap.FilesDone, snap.FilesTotal, snap.Errors, snap.Elapsed.Round(time.Second))
	if len(snap.Transferring) > 0 {
		fmt.Fprintf(&b, "Transferring: %s\n", strings.Join(snap.Transferring, ", "))
	}
	return b.String()
}

// ReportEvery writes a Snapshot to w every interval until stop is
// closed. It is meant to be run in its own goroutine for the
// --stats flag.
func (s *Stats) ReportEvery(interval time.Duration, w func(string), stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w(s.Snapshot().String())
		case <-stop:
			return
		}
	}
}
