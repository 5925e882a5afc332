package accounting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStartFinishTransferAccountsBytesAndFiles(t *testing.T) {
	s := New()
	s.SetTotals(2, 100)
	s.StartTransfer("a.txt")
	snap := s.Snapshot()
	assert.Equal(t, []string{"a.txt"}, snap.Transferring)

	s.FinishTransfer("a.txt", 40)
	snap = s.Snapshot()
	assert.Empty(t, snap.Transferring)
	assert.Equal(t, int64(40), snap.BytesDone)
	assert.Equal(t, int64(1), snap.FilesDone)
}

func TestAddBytesAccumulatesWithoutClosingTransfer(t *testing.T) {
	s := New()
	s.StartTransfer("big.bin")
	s.AddBytes(10)
	s.AddBytes(20)
	snap := s.Snapshot()
	assert.Equal(t, int64(30), snap.BytesDone)
	assert.Contains(t, snap.Transferring, "big.bin")
}

func TestAddErrorIncrementsCounter(t *testing.T) {
	s := New()
	s.AddError()
	s.AddError()
	assert.Equal(t, int64(2), s.Snapshot().Errors)
}

func TestReportEveryStopsOnSignal(t *testing.T) {
	s := New()
	reports := make(chan string, 10)
	stop := make(chan struct{})
	go s.ReportEvery(5*time.Millisecond, func(line string) { reports <- line }, stop)

	select {
	case <-reports:
	case <-time.After(time.Second):
		t.Fatal("expected at least one report")
	}
	close(stop)
}

func TestSnapshotStringIncludesTransferring(t *testing.T) {
	s := New()
	s.StartTransfer("x.txt")
	out := s.Snapshot().String()
	assert.Contains(t, out, "Transferring: x.txt")
}
