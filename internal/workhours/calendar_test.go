package workhours

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var monday = time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC)

func mustHours(t *testing.T, raw string) WeeklyHours {
	t.Helper()
	hours, err := ParseWeeklyHours([]byte(raw))
	require.NoError(t, err)
	return hours
}

func TestToUTCShiftsIntoEarlierHours(t *testing.T) {
	cal := Calendar{Reference: monday}
	got := cal.ToUTC(mustHours(t, `{"1":["10:00-18:00"]}`), time.FixedZone("UTC+3", 3*3600))

	assert.True(t, got.Equal(mustHours(t, `{"1":["07:00-15:00"]}`)), "got %v", got)
}

func TestToUTCSplitsAcrossMidnight(t *testing.T) {
	cal := Calendar{Reference: monday}

	got := cal.ToUTC(mustHours(t, `{"1":["22:00-02:00"]}`), time.UTC)
	assert.Equal(t, []Interval{{1320, 1440}}, got[1])
	assert.Equal(t, []Interval{{0, 120}}, got[2])

	got = cal.ToUTC(mustHours(t, `{"1":["22:00-02:00"]}`), time.FixedZone("UTC+1", 3600))
	assert.Equal(t, []Interval{{1260, 1440}}, got[1])
	assert.Equal(t, []Interval{{0, 60}}, got[2])
}

func TestToUTCWrapsWeekdays(t *testing.T) {
	cal := Calendar{Reference: monday}

	got := cal.ToUTC(mustHours(t, `{"1":["01:00-05:00"]}`), time.FixedZone("UTC+3", 3*3600))
	assert.Equal(t, []Interval{{1320, 1440}}, got[7])
	assert.Equal(t, []Interval{{0, 120}}, got[1])

	got = cal.ToUTC(mustHours(t, `{"7":["20:00-23:00"]}`), time.FixedZone("UTC-5", -5*3600))
	assert.Equal(t, []Interval{{60, 240}}, got[1])
	assert.Empty(t, got[7])
}

func TestToUTCKeepsFullDaySentinel(t *testing.T) {
	cal := Calendar{Reference: monday}
	got := cal.ToUTC(mustHours(t, `{"3":["00:00-00:00"]}`), time.UTC)
	assert.Equal(t, []Interval{FullDay}, got[3])

	encoded, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"3":["00:00-00:00"]}`, string(encoded))
}

func TestToUTCEndingAtMidnightStaysOnStartDay(t *testing.T) {
	cal := Calendar{Reference: monday}
	got := cal.ToUTC(mustHours(t, `{"2":["18:00-03:00"]}`), time.FixedZone("UTC+3", 3*3600))
	assert.Equal(t, []Interval{{900, 1440}}, got[2])
	assert.Empty(t, got[3])
}

func TestRoundTripRestoresLocalHours(t *testing.T) {
	zones := []*time.Location{
		time.UTC,
		time.FixedZone("UTC+3", 3*3600),
		time.FixedZone("UTC-7", -7*3600),
		time.FixedZone("UTC+5:30", 5*3600+1800),
	}
	if moscow, err := time.LoadLocation("Europe/Moscow"); err == nil {
		zones = append(zones, moscow)
	}

	cal := Calendar{Reference: monday}
	rng := rand.New(rand.NewSource(3))
	for n := 0; n < 100; n++ {
		local := WeeklyHours{}
		for wd := 1; wd <= 7; wd++ {
			local[wd] = randomIntervals(rng, rng.Intn(3))
		}
		for _, zone := range zones {
			back := cal.ToLocal(cal.ToUTC(local, zone), zone)
			assert.True(t, Normalize(local).Equal(back), "zone %s hours %v got %v", zone, local, back)
		}
	}
}

func TestParseWeeklyHoursRejectsBadInput(t *testing.T) {
	for _, raw := range []string{`not json`, `{"8":["10:00-11:00"]}`, `{"x":["10:00-11:00"]}`, `{"1":["10-11"]}`} {
		_, err := ParseWeeklyHours([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestWeeklyHoursScanValue(t *testing.T) {
	hours := mustHours(t, `{"1":["07:00-15:00"],"5":["00:00-00:00"]}`)
	value, err := hours.Value()
	require.NoError(t, err)

	var scanned WeeklyHours
	require.NoError(t, scanned.Scan(value))
	assert.True(t, hours.Equal(scanned))
	assert.Equal(t, []int{1, 5}, scanned.Weekdays())

	var empty WeeklyHours
	require.NoError(t, empty.Scan(nil))
	assert.Empty(t, empty)
}

func TestCoversChainsAcrossMidnight(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	hours := mustHours(t, `{"1":["20:00-00:00"],"2":["00:00-02:00"]}`)

	begin := time.Date(2024, time.March, 4, 23, 0, 0, 0, loc)
	assert.True(t, Covers(hours, begin, begin.Add(2*time.Hour), loc))
	assert.False(t, Covers(hours, begin, begin.Add(4*time.Hour), loc))

	early := time.Date(2024, time.March, 4, 19, 0, 0, 0, loc)
	assert.False(t, Covers(hours, early, early.Add(time.Hour), loc))
}
