package repositories

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"technician-dispatch-service/internal/domain"
)

func TestAssignmentRowToDomainTruncatesTimestamp(t *testing.T) {
	row := assignmentRow{
		TechnicianID:  3,
		ScheduledDate: "2026-01-05T00:00:00Z",
		Locked:        true,
		Sequence:      2,
	}

	a := row.toDomain()
	assert.Equal(t, "2026-01-05", a.ScheduledDate)
	assert.Equal(t, 3, a.TechnicianID)
	assert.True(t, a.Locked)
	assert.Equal(t, 2, a.Sequence)

	row.ScheduledDate = "2026-01-05"
	assert.Equal(t, "2026-01-05", row.toDomain().ScheduledDate)
}

func TestAssignmentDecodeAbsorbsBothJoinShapes(t *testing.T) {
	object := []byte(`{"technician_id":1,"scheduled_date":"2026-01-05","locked":false,"sequence":0,"updated_at":"2026-01-04T09:00:00Z"}`)
	array := []byte(`[{"technician_id":1,"scheduled_date":"2026-01-05","locked":false,"sequence":0,"updated_at":"2026-01-04T09:00:00Z"}]`)

	for _, raw := range [][]byte{object, array} {
		var a domain.OneOrMany[assignmentRow]
		require.NoError(t, json.Unmarshal(raw, &a))
		require.NotNil(t, a.Value)
		assert.Equal(t, 1, a.Value.TechnicianID)
		assert.Equal(t, time.Date(2026, 1, 4, 9, 0, 0, 0, time.UTC), a.Value.UpdatedAt)
	}

	var a domain.OneOrMany[assignmentRow]
	require.NoError(t, json.Unmarshal([]byte(`null`), &a))
	assert.Nil(t, a.Value)
}

func TestParseWorkingHours(t *testing.T) {
	raw := []byte(`{"monday":{"start":"08:00","end":"17:00"},"saturday":{"start":"09:30","end":"13:00"}}`)

	hours, err := parseWorkingHours(raw)
	require.NoError(t, err)
	require.Len(t, hours, 2)

	assert.Equal(t, domain.DayHours{Start: 480, End: 1020}, hours[time.Monday])
	assert.Equal(t, domain.DayHours{Start: 570, End: 780}, hours[time.Saturday])

	_, ok := hours[time.Sunday]
	assert.False(t, ok, "absent weekdays stay absent, not zero-valued")
}

func TestParseWorkingHoursEmpty(t *testing.T) {
	hours, err := parseWorkingHours(nil)
	require.NoError(t, err)
	assert.Empty(t, hours)
}

func TestParseWorkingHoursRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"unknown weekday", `{"funday":{"start":"08:00","end":"17:00"}}`},
		{"bad time", `{"monday":{"start":"8am","end":"17:00"}}`},
		{"out of range", `{"monday":{"start":"08:00","end":"25:00"}}`},
		{"not json", `not-json`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseWorkingHours([]byte(tc.raw))
			assert.Error(t, err)
		})
	}
}
