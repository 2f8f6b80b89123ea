// AngelaMos | 2026
// status_test.go

package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestComputeStatus(t *testing.T) {
	t.Parallel()

	start := day(2025, time.January, 10)
	end := day(2025, time.December, 31)

	tests := []struct {
		name  string
		today time.Time
		want  Status
	}{
		{"long before start", day(2024, time.June, 1), StatusPending},
		{"day before start", day(2025, time.January, 9), StatusPending},
		{"start day", start, StatusActive},
		{"start day late evening", start.Add(23*time.Hour + 59*time.Minute), StatusActive},
		{"mid term", day(2025, time.June, 15), StatusActive},
		{"end day", end, StatusActive},
		{"end day late evening", end.Add(23 * time.Hour), StatusActive},
		{"day after end", day(2026, time.January, 1), StatusExpired},
		{"years after end", day(2030, time.March, 3), StatusExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ComputeStatus(start, end, tt.today))
		})
	}
}

func TestComputeStatusIgnoresTimeOfDay(t *testing.T) {
	t.Parallel()

	start := day(2025, time.March, 1).Add(18 * time.Hour)
	end := day(2025, time.March, 5).Add(2 * time.Hour)

	assert.Equal(t, StatusActive, ComputeStatus(start, end, day(2025, time.March, 1)))
	assert.Equal(t, StatusActive, ComputeStatus(start, end, day(2025, time.March, 5).Add(22*time.Hour)))
}

func TestComputeStatusReadsTodayInUTC(t *testing.T) {
	t.Parallel()

	start := day(2025, time.June, 16)
	end := day(2026, time.June, 16)
	instant := day(2025, time.June, 16).Add(2 * time.Hour)

	behind := instant.In(time.FixedZone("UTC-5", -5*60*60))
	ahead := day(2025, time.June, 15).Add(22 * time.Hour).In(time.FixedZone("UTC+9", 9*60*60))

	assert.Equal(t, StatusActive, ComputeStatus(start, end, instant))
	assert.Equal(t, StatusActive, ComputeStatus(start, end, behind))
	assert.Equal(t, StatusPending, ComputeStatus(start, end, ahead))
}

func TestComputeStatusMonotonic(t *testing.T) {
	t.Parallel()

	rank := map[Status]int{StatusPending: 0, StatusActive: 1, StatusExpired: 2}

	start := day(2025, time.February, 14)
	end := day(2025, time.May, 20)

	prev := -1
	for d := day(2024, time.December, 1); d.Before(day(2025, time.August, 1)); d = d.AddDate(0, 0, 1) {
		got := rank[ComputeStatus(start, end, d)]
		assert.GreaterOrEqual(t, got, prev, "status went backwards on %s", d.Format(dateLayout))
		prev = got
	}
	assert.Equal(t, rank[StatusExpired], prev)
}

func TestStatusAtKeepsCancelled(t *testing.T) {
	t.Parallel()

	p := &Policy{
		StartDate: day(2025, time.January, 1),
		EndDate:   day(2025, time.December, 31),
		Status:    StatusCancelled,
	}

	assert.Equal(t, StatusCancelled, StatusAt(p, day(2025, time.June, 1)))

	p.Status = StatusPending
	assert.Equal(t, StatusActive, StatusAt(p, day(2025, time.June, 1)))
}

func TestDetailsRoundTrip(t *testing.T) {
	t.Parallel()

	var d Details
	assert.NoError(t, d.Scan([]byte(`{"plate":"ABC-123","year":2020}`)))
	assert.Equal(t, "ABC-123", d["plate"])

	v, err := d.Value()
	assert.NoError(t, err)
	assert.JSONEq(t, `{"plate":"ABC-123","year":2020}`, v.(string))

	var empty Details
	assert.NoError(t, empty.Scan(nil))
	assert.Nil(t, empty)

	assert.Error(t, empty.Scan(42))
}
