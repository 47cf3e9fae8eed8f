package sensor

import (
	"math"
	"testing"
	"time"

	"github.com/sweeney/goldilocks/internal/clock"
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestFuseEmptyReturnsFallback(t *testing.T) {
	table := NewTable(clock.NewFake(epoch))
	if got := table.Fuse(); got != DefaultFallback {
		t.Errorf("expected fallback %v, got %v", DefaultFallback, got)
	}
	if table.Live() != 0 {
		t.Errorf("expected 0 live sources, got %d", table.Live())
	}
}

func TestRecordDropsNonFinite(t *testing.T) {
	table := NewTable(clock.NewFake(epoch))
	table.Record(LocalSource, 70)

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if table.Record("kitchen", v) {
			t.Errorf("%v: expected reading refused", v)
		}
	}
	if got := table.Fuse(); got != 70 {
		t.Errorf("expected 70, got %v", got)
	}
	if table.Live() != 1 || len(table.Snapshot()) != 1 {
		t.Errorf("expected only the local source, got %+v", table.Snapshot())
	}
}

func TestFuseIgnoresStale(t *testing.T) {
	c := clock.NewFake(epoch)
	table := NewTable(c)
	table.RecordAt("attic", 100, epoch.Add(-5*time.Minute))
	table.RecordAt(LocalSource, 70, epoch.Add(-10*time.Second))

	if got := table.Fuse(); got != 70 {
		t.Errorf("expected only the fresh reading (70), got %v", got)
	}
	if table.Live() != 1 {
		t.Errorf("expected 1 live source, got %d", table.Live())
	}
}

func TestFuseAllStaleReturnsFallback(t *testing.T) {
	c := clock.NewFake(epoch)
	table := NewTable(c)
	table.Record(LocalSource, 65)

	c.Advance(DefaultStaleAfter)
	if got := table.Fuse(); got != DefaultFallback {
		t.Errorf("reading exactly at the threshold should be stale, got %v", got)
	}
}

func TestFuseUnweightedMean(t *testing.T) {
	table := NewTable(clock.NewFake(epoch))
	table.Record(LocalSource, 68)
	table.Record("bedroom", 64)
	table.Record("office", 72)

	if got := table.Fuse(); got != 68 {
		t.Errorf("expected mean 68, got %v", got)
	}
}

func TestFuseWeighted(t *testing.T) {
	table := NewTable(clock.NewFake(epoch))
	table.SetWeight(LocalSource, 3)
	table.Record(LocalSource, 70)
	table.Record("garage", 50)

	if got := table.Fuse(); math.Abs(got-65) > 1e-9 {
		t.Errorf("expected weighted mean 65, got %v", got)
	}

	table.SetWeight("garage", 0)
	if got := table.Fuse(); got != 70 {
		t.Errorf("zero-weight source should be excluded, got %v", got)
	}
}

func TestRecordOverwrites(t *testing.T) {
	c := clock.NewFake(epoch)
	table := NewTable(c)
	table.Record("bedroom", 60)
	c.Advance(time.Second)
	table.Record("bedroom", 62)

	snap := table.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 source, got %d", len(snap))
	}
	if snap[0].Value != 62 {
		t.Errorf("expected latest value 62, got %v", snap[0].Value)
	}
}

func TestSnapshotSortedWithAge(t *testing.T) {
	c := clock.NewFake(epoch)
	table := NewTable(c)
	table.Record("office", 71)
	table.Record(LocalSource, 69)
	table.RecordAt("attic", 90, epoch.Add(-3*time.Minute))

	snap := table.Snapshot()
	want := []string{"attic", "head", "office"}
	for i, name := range want {
		if snap[i].Source != name {
			t.Errorf("snapshot %d: expected %s, got %s", i, name, snap[i].Source)
		}
	}
	if !snap[0].Stale {
		t.Error("attic reading should be stale")
	}
	if snap[0].Age != 3*time.Minute {
		t.Errorf("expected attic age 3m, got %v", snap[0].Age)
	}
	if snap[1].Stale {
		t.Error("head reading should be fresh")
	}
}

func TestCustomFallbackAndThreshold(t *testing.T) {
	c := clock.NewFake(epoch)
	table := NewTable(c)
	table.SetFallback(65)
	table.SetStaleAfter(10 * time.Second)
	table.Record(LocalSource, 72)

	c.Advance(11 * time.Second)
	if got := table.Fuse(); got != 65 {
		t.Errorf("expected custom fallback 65, got %v", got)
	}
}
