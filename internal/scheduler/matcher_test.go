package scheduler

import (
	"context"
	"testing"
	"time"

	"schoolbell/internal/catalog"
	logx "schoolbell/pkg/logx"
)

func TestMatcherDue(t *testing.T) {
	weekdays := catalog.Weekdays(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday)
	cat := &catalog.Static{
		Schedules: []catalog.Schedule{
			{ID: 1, Hour: 8, Minute: 30, Days: weekdays, Enabled: true, ClipID: 1},
			{ID: 2, Hour: 8, Minute: 30, Days: catalog.Weekdays(time.Sunday), Enabled: true, ClipID: 1},
			{ID: 3, Hour: 8, Minute: 31, Days: weekdays, Enabled: true, ClipID: 1},
			{ID: 4, Hour: 8, Minute: 30, Days: weekdays, Enabled: false, ClipID: 1},
			{ID: 5, Hour: 12, Minute: 0, Days: catalog.AllDays, Enabled: true, ClipID: 1},
		},
	}
	m := NewMatcher(cat, logx.Nop())

	cases := []struct {
		name string
		at   time.Time
		want []int64
	}{
		{"monday 08:30", time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC), []int64{1}},
		{"monday 08:30:45 seconds ignored", time.Date(2026, 3, 2, 8, 30, 45, 0, time.UTC), []int64{1}},
		{"sunday 08:30", time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC), []int64{2}},
		{"monday 08:31", time.Date(2026, 3, 2, 8, 31, 0, 0, time.UTC), []int64{3}},
		{"monday 08:29 nothing", time.Date(2026, 3, 2, 8, 29, 0, 0, time.UTC), nil},
		{"saturday noon all-days", time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC), []int64{5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			due, err := m.Due(ctx, tc.at)
			if err != nil {
				t.Fatal(err)
			}
			if len(due) != len(tc.want) {
				t.Fatalf("due = %v, want ids %v", due, tc.want)
			}
			for i, s := range due {
				if s.ID != tc.want[i] {
					t.Fatalf("due[%d].ID = %d, want %d", i, s.ID, tc.want[i])
				}
			}
		})
	}
}

func TestMatcherPreservesCatalogOrder(t *testing.T) {
	cat := &catalog.Static{
		Schedules: []catalog.Schedule{
			{ID: 9, Hour: 8, Minute: 30, Days: catalog.AllDays, Enabled: true, Position: 1},
			{ID: 4, Hour: 8, Minute: 30, Days: catalog.AllDays, Enabled: true, Position: 2},
		},
	}
	due, err := NewMatcher(cat, logx.Nop()).Due(context.Background(), time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 2 || due[0].ID != 9 || due[1].ID != 4 {
		t.Fatalf("due order = %v, want [9 4]", due)
	}
}
