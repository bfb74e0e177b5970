package models

import (
	"testing"
	"time"
)

func TestProductPriceActiveAt(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(48 * time.Hour)

	closed := ProductPrice{ValidFrom: from, ValidTo: &to}
	open := ProductPrice{ValidFrom: to}

	tests := []struct {
		name   string
		record ProductPrice
		at     time.Time
		want   bool
	}{
		{name: "before start", record: closed, at: from.Add(-time.Second), want: false},
		{name: "at start", record: closed, at: from, want: true},
		{name: "inside", record: closed, at: from.Add(time.Hour), want: true},
		{name: "at end is exclusive", record: closed, at: to, want: false},
		{name: "open covers future", record: open, at: to.Add(365 * 24 * time.Hour), want: true},
	}
	for _, tt := range tests {
		if got := tt.record.ActiveAt(tt.at); got != tt.want {
			t.Fatalf("%s: ActiveAt = %v, want %v", tt.name, got, tt.want)
		}
	}

	if closed.IsCurrent() || !open.IsCurrent() {
		t.Fatalf("IsCurrent should follow ValidTo")
	}
}
