package core

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		name     string
		start    time.Time
		interval Interval
		want     time.Time
	}{
		{
			name:     "daily adds one day",
			start:    date(2024, time.January, 15),
			interval: Daily,
			want:     date(2024, time.January, 16),
		},
		{
			name:     "daily across month boundary",
			start:    date(2024, time.January, 31),
			interval: Daily,
			want:     date(2024, time.February, 1),
		},
		{
			name:     "weekly adds seven days",
			start:    date(2024, time.January, 15),
			interval: Weekly,
			want:     date(2024, time.January, 22),
		},
		{
			name:     "weekly across year boundary",
			start:    date(2023, time.December, 28),
			interval: Weekly,
			want:     date(2024, time.January, 4),
		},
		{
			name:     "monthly mid-month",
			start:    date(2024, time.March, 10),
			interval: Monthly,
			want:     date(2024, time.April, 10),
		},
		{
			name:     "monthly from jan 31 rolls into march (leap year)",
			start:    date(2024, time.January, 31),
			interval: Monthly,
			want:     date(2024, time.March, 2),
		},
		{
			name:     "monthly from jan 31 rolls into march (non-leap year)",
			start:    date(2023, time.January, 31),
			interval: Monthly,
			want:     date(2023, time.March, 3),
		},
		{
			name:     "yearly adds one year",
			start:    date(2024, time.June, 1),
			interval: Yearly,
			want:     date(2025, time.June, 1),
		},
		{
			name:     "yearly from feb 29 rolls to march 1",
			start:    date(2024, time.February, 29),
			interval: Yearly,
			want:     date(2025, time.March, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextOccurrence(tt.start, tt.interval)
			if !got.Equal(tt.want) {
				t.Errorf("NextOccurrence(%v, %s) = %v, want %v", tt.start, tt.interval, got, tt.want)
			}
		})
	}
}

func TestNextOccurrenceAlwaysAdvances(t *testing.T) {
	starts := []time.Time{
		date(2023, time.January, 1),
		date(2023, time.February, 28),
		date(2024, time.February, 29),
		date(2024, time.December, 31),
		date(2025, time.July, 4),
	}
	intervals := []Interval{Daily, Weekly, Monthly, Yearly}

	for _, start := range starts {
		for _, iv := range intervals {
			got := NextOccurrence(start, iv)
			if !got.After(start) {
				t.Errorf("NextOccurrence(%v, %s) = %v, not after start", start, iv, got)
			}
		}
	}
}
