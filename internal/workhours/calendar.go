package workhours

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
	_ "time/tzdata"
)

// WeeklyHours maps ISO weekday (1 = Monday ... 7 = Sunday) to its intervals.
// JSON form is {"1":["10:00-18:00"]}.
type WeeklyHours map[int][]Interval

// ISOWeekday returns the ISO weekday number of t in its own location.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// Day returns the merged intervals for weekday.
func (w WeeklyHours) Day(weekday int) []Interval {
	return Merge(w[weekday])
}

// Equal reports whether both sides describe the same merged hours.
func (w WeeklyHours) Equal(other WeeklyHours) bool {
	for wd := 1; wd <= 7; wd++ {
		a, b := w.Day(wd), other.Day(wd)
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
	}
	return true
}

// MarshalJSON renders the weekday map with "HH:MM-HH:MM" strings.
func (w WeeklyHours) MarshalJSON() ([]byte, error) {
	raw := make(map[string][]string, len(w))
	for wd, intervals := range w {
		if len(intervals) == 0 {
			continue
		}
		items := make([]string, 0, len(intervals))
		for _, iv := range intervals {
			items = append(items, iv.String())
		}
		raw[strconv.Itoa(wd)] = items
	}
	return json.Marshal(raw)
}

// UnmarshalJSON parses the weekday map, rejecting unknown weekdays and
// malformed intervals.
func (w *WeeklyHours) UnmarshalJSON(data []byte) error {
	parsed, err := ParseWeeklyHours(data)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// ParseWeeklyHours decodes the JSON representation of weekly hours.
func ParseWeeklyHours(data []byte) (WeeklyHours, error) {
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("working hours: %w", err)
	}
	hours := make(WeeklyHours, len(raw))
	for key, items := range raw {
		wd, err := strconv.Atoi(key)
		if err != nil || wd < 1 || wd > 7 {
			return nil, fmt.Errorf("working hours: weekday %q must be 1..7", key)
		}
		for _, item := range items {
			iv, err := ParseInterval(item)
			if err != nil {
				return nil, fmt.Errorf("working hours: weekday %d: %w", wd, err)
			}
			hours[wd] = append(hours[wd], iv)
		}
	}
	return hours, nil
}

// Value implements driver.Valuer for jsonb columns.
func (w WeeklyHours) Value() (driver.Value, error) {
	if w == nil {
		return []byte("{}"), nil
	}
	return w.MarshalJSON()
}

// Scan implements sql.Scanner for jsonb columns.
func (w *WeeklyHours) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*w = WeeklyHours{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported working hours type %T", value)
	}
	if len(data) == 0 {
		*w = WeeklyHours{}
		return nil
	}
	return w.UnmarshalJSON(data)
}

// Calendar converts weekly hours between zones. Offsets are resolved on the
// week containing Reference, which defaults to the current time.
type Calendar struct {
	Reference time.Time
}

// ToUTC converts hours expressed in tz into UTC hours.
func (c Calendar) ToUTC(local WeeklyHours, tz *time.Location) WeeklyHours {
	return c.convert(local, tz, time.UTC)
}

// ToLocal converts UTC hours into hours expressed in tz.
func (c Calendar) ToLocal(utc WeeklyHours, tz *time.Location) WeeklyHours {
	return c.convert(utc, time.UTC, tz)
}

// ToUTC converts using the current week as reference.
func ToUTC(local WeeklyHours, tz *time.Location) WeeklyHours {
	return Calendar{}.ToUTC(local, tz)
}

// ToLocal converts using the current week as reference.
func ToLocal(utc WeeklyHours, tz *time.Location) WeeklyHours {
	return Calendar{}.ToLocal(utc, tz)
}

// Normalize splits intervals crossing midnight into the following weekday and
// merges each day.
func Normalize(hours WeeklyHours) WeeklyHours {
	return Calendar{}.convert(hours, time.UTC, time.UTC)
}

// Covers reports whether [begin, end) lies within hours, where hours are
// expressed in loc. A window crossing midnight must be covered on both days.
func Covers(hours WeeklyHours, begin, end time.Time, loc *time.Location) bool {
	if !end.After(begin) {
		return false
	}
	normalized := Normalize(hours)
	for _, seg := range splitByDay(begin.In(loc), end.In(loc)) {
		covered := false
		for _, iv := range normalized[seg.weekday] {
			if iv.Contains(seg.interval) {
				covered = true
				break
			}
		}
		if !covered {
			return false
		}
	}
	return true
}

// Weekdays returns the weekdays present in hours in ascending order.
func (w WeeklyHours) Weekdays() []int {
	days := make([]int, 0, len(w))
	for wd, intervals := range w {
		if len(intervals) > 0 {
			days = append(days, wd)
		}
	}
	sort.Ints(days)
	return days
}

func (c Calendar) convert(hours WeeklyHours, from, to *time.Location) WeeklyHours {
	ref := c.Reference
	if ref.IsZero() {
		ref = time.Now()
	}

	result := make(WeeklyHours)
	for wd, intervals := range hours {
		if wd < 1 || wd > 7 {
			continue
		}
		day := referenceDay(ref, wd, from)
		for _, iv := range intervals {
			end := iv.End
			if end <= iv.Start {
				end += MinutesPerDay
			}
			begin := time.Date(day.Year(), day.Month(), day.Day(), 0, iv.Start, 0, 0, from)
			finish := time.Date(day.Year(), day.Month(), day.Day(), 0, end, 0, 0, from)
			for _, seg := range splitByDay(begin.In(to), finish.In(to)) {
				result[seg.weekday] = append(result[seg.weekday], seg.interval)
			}
		}
	}
	for wd, intervals := range result {
		result[wd] = Merge(intervals)
	}
	return result
}

type daySegment struct {
	weekday  int
	interval Interval
}

// splitByDay cuts [begin, end) at every midnight of begin's location.
func splitByDay(begin, end time.Time) []daySegment {
	loc := begin.Location()
	var segments []daySegment
	for cursor := begin; cursor.Before(end); {
		midnight := time.Date(cursor.Year(), cursor.Month(), cursor.Day(), 0, 0, 0, 0, loc)
		next := midnight.AddDate(0, 0, 1)
		segEnd := end.In(loc)
		stop := MinutesPerDay
		if segEnd.Before(next) {
			stop = minuteOfDay(segEnd)
		} else {
			segEnd = next
		}
		start := minuteOfDay(cursor)
		if stop > start {
			segments = append(segments, daySegment{
				weekday:  ISOWeekday(cursor),
				interval: Interval{Start: start, End: stop},
			})
		}
		cursor = segEnd
	}
	return segments
}

func referenceDay(ref time.Time, weekday int, loc *time.Location) time.Time {
	r := ref.In(loc)
	base := time.Date(r.Year(), r.Month(), r.Day(), 12, 0, 0, 0, loc)
	return base.AddDate(0, 0, weekday-ISOWeekday(base))
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
