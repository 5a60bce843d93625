package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-03-02 is a Monday
func day(offset int) time.Time {
	return time.Date(2026, 3, 2+offset, 15, 30, 0, 0, time.UTC)
}

func TestNextReminderTargetsWeekdays(t *testing.T) {
	for _, offset := range []int{0, 1, 2, 6} { // Mon, Tue, Wed, Sun
		today := day(offset)
		targets := NextReminderTargets(today)
		require.Len(t, targets, 1, "%s", today.Weekday())
		assert.Equal(t, today.AddDate(0, 0, 1).Truncate(24*time.Hour).Day(), targets[0].Day())
		assert.Equal(t, 0, targets[0].Hour(), "target must be midnight-normalized")
	}
}

func TestNextReminderTargetsThursdayCoversWeekend(t *testing.T) {
	thursday := day(3)
	require.Equal(t, time.Thursday, thursday.Weekday())

	targets := NextReminderTargets(thursday)
	require.Len(t, targets, 2)
	assert.Equal(t, time.Friday, targets[0].Weekday())
	assert.Equal(t, time.Saturday, targets[1].Weekday())
}

func TestNextReminderTargetsFridaySkipsSaturday(t *testing.T) {
	friday := day(4)
	require.Equal(t, time.Friday, friday.Weekday())

	targets := NextReminderTargets(friday)
	require.Len(t, targets, 1)
	assert.Equal(t, time.Sunday, targets[0].Weekday())
}

func TestNextReminderTargetsSaturdaySendsNothing(t *testing.T) {
	saturday := day(5)
	require.Equal(t, time.Saturday, saturday.Weekday())

	assert.Empty(t, NextReminderTargets(saturday))
}

func TestRenderTemplate(t *testing.T) {
	out := RenderTemplate("Hi {name}, see you at {time}.", map[string]string{
		"name": "Anna",
		"time": "10:00",
	})
	assert.Equal(t, "Hi Anna, see you at 10:00.", out)

	// Unknown placeholders stay as-is
	out = RenderTemplate("Hi {name}, {missing}", map[string]string{"name": "Anna"})
	assert.Equal(t, "Hi Anna, {missing}", out)
}
