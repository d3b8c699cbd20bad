package store

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cerro-obs/cloudfrac/internal/cloudfrac"
)

func rowAt(t time.Time, cf float64) cloudfrac.Row {
	return cloudfrac.Row{Timestamp: t, CloudFraction: cf, CloudFractionAboveSite: cf}
}

func TestSaveRunAndGetLatest(t *testing.T) {
	s := NewMemoryStore(0, 0)
	base := time.Date(2026, 2, 3, 14, 0, 0, 0, time.UTC)

	id := s.SaveRun("Rubin", []cloudfrac.Row{
		rowAt(base, 0.2),
		rowAt(base.Add(10*time.Minute), 0.4),
	})
	if id == uuid.Nil {
		t.Fatal("expected a non-nil run id")
	}

	latest, err := s.GetLatest("Rubin")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if !latest.Timestamp.Equal(base.Add(10 * time.Minute)) {
		t.Errorf("latest timestamp = %v, want %v", latest.Timestamp, base.Add(10*time.Minute))
	}
	if latest.CloudFraction != 0.4 {
		t.Errorf("latest cf = %g, want 0.4", latest.CloudFraction)
	}
}

func TestSaveRunReplacesSameTimestamp(t *testing.T) {
	s := NewMemoryStore(0, 0)
	base := time.Date(2026, 2, 3, 14, 0, 0, 0, time.UTC)

	// First run computed the row with the product missing; a later refresh
	// of the same window gets real data.
	s.SaveRun("Rubin", []cloudfrac.Row{{Timestamp: base, CloudFraction: math.NaN(), CloudFractionAboveSite: math.NaN()}})
	s.SaveRun("Rubin", []cloudfrac.Row{rowAt(base, 0.7)})

	rows, err := s.GetRange("Rubin", base, base)
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].CloudFraction != 0.7 {
		t.Errorf("cf = %g, want the refreshed 0.7", rows[0].CloudFraction)
	}
}

func TestSaveRunMergesSorted(t *testing.T) {
	s := NewMemoryStore(0, 0)
	base := time.Date(2026, 2, 3, 14, 0, 0, 0, time.UTC)

	s.SaveRun("Rubin", []cloudfrac.Row{rowAt(base.Add(20*time.Minute), 0.3)})
	s.SaveRun("Rubin", []cloudfrac.Row{rowAt(base, 0.1), rowAt(base.Add(10*time.Minute), 0.2)})

	rows, err := s.GetRange("Rubin", base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if !rows[i-1].Timestamp.Before(rows[i].Timestamp) {
			t.Fatalf("rows not sorted at %d", i)
		}
	}
}

func TestRetentionByCount(t *testing.T) {
	s := NewMemoryStore(2, 0)
	base := time.Date(2026, 2, 3, 14, 0, 0, 0, time.UTC)

	s.SaveRun("Rubin", []cloudfrac.Row{
		rowAt(base, 0.1),
		rowAt(base.Add(10*time.Minute), 0.2),
		rowAt(base.Add(20*time.Minute), 0.3),
	})

	rows, err := s.GetRange("Rubin", base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 retained rows, got %d", len(rows))
	}
	// The oldest row is the one evicted.
	if !rows[0].Timestamp.Equal(base.Add(10 * time.Minute)) {
		t.Errorf("oldest retained = %v, want %v", rows[0].Timestamp, base.Add(10*time.Minute))
	}
}

func TestGetLatestUnknownSite(t *testing.T) {
	s := NewMemoryStore(0, 0)
	if _, err := s.GetLatest("nowhere"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetRangeOutsideData(t *testing.T) {
	s := NewMemoryStore(0, 0)
	base := time.Date(2026, 2, 3, 14, 0, 0, 0, time.UTC)
	s.SaveRun("Rubin", []cloudfrac.Row{rowAt(base, 0.5)})

	_, err := s.GetRange("Rubin", base.Add(time.Hour), base.Add(2*time.Hour))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
