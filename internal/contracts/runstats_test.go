package contracts

import (
	"errors"
	"sync"
	"testing"
)

func TestRunStats_Concurrent(t *testing.T) {
	stats := NewRunStats()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stats.AddScanned(1)
			if i%2 == 0 {
				stats.AddProduced(OriginMomentum, 1)
			} else {
				stats.RecordError(DataUnavailable("structural", "X", ErrNotAvailable))
			}
		}(i)
	}
	wg.Wait()

	snap := stats.Snapshot()
	if snap.InstrumentsScanned != 50 {
		t.Errorf("InstrumentsScanned = %d, want 50", snap.InstrumentsScanned)
	}
	if snap.CandidatesProduced != 25 {
		t.Errorf("CandidatesProduced = %d, want 25", snap.CandidatesProduced)
	}
	if snap.CountErrors(KindDataUnavailable) != 25 {
		t.Errorf("DataUnavailable errors = %d, want 25", snap.CountErrors(KindDataUnavailable))
	}
}

func TestRunStats_SnapshotIsCopy(t *testing.T) {
	stats := NewRunStats()
	stats.RecordError(TimeoutExceeded("momentum", errors.New("budget")))

	snap := stats.Snapshot()
	stats.RecordError(TimeoutExceeded("momentum", errors.New("again")))

	if len(snap.Errors) != 1 {
		t.Errorf("snapshot changed after later writes: %d errors", len(snap.Errors))
	}
	if snap.ProducedByOrigin == nil || snap.Errors == nil {
		t.Error("snapshot collections must be non-nil")
	}
}

func TestRunStats_EmptySnapshot(t *testing.T) {
	snap := NewRunStats().Snapshot()
	if snap.Errors == nil || snap.ProducedByOrigin == nil {
		t.Error("empty snapshot must have non-nil collections")
	}
}
