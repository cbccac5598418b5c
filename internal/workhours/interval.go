// Package workhours models weekly opening hours as minute-of-day intervals
// and converts them between a center's local time zone and UTC.
package workhours

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MinutesPerDay is the length of the scheduling day.
const MinutesPerDay = 24 * 60

// Interval is a closed-open [Start, End) range of minutes within a day.
// End may equal MinutesPerDay, meaning the next midnight. Raw parsed
// intervals that cross midnight carry End > MinutesPerDay until merged.
type Interval struct {
	Start int
	End   int
}

// FullDay covers the whole day; it renders as "00:00-00:00".
var FullDay = Interval{Start: 0, End: MinutesPerDay}

// Duration returns the interval length in minutes.
func (i Interval) Duration() int {
	return i.End - i.Start
}

// Overlaps reports whether two intervals share at least one minute.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

// Contains reports whether o lies entirely within i.
func (i Interval) Contains(o Interval) bool {
	return i.Start <= o.Start && o.End <= i.End
}

// String renders the interval as "HH:MM-HH:MM" with minutes wrapped to a day.
func (i Interval) String() string {
	return formatMinute(i.Start) + "-" + formatMinute(i.End)
}

// ParseInterval parses "HH:MM-HH:MM". An end at or before the start crosses
// midnight, so "22:00-02:00" spans four hours and "00:00-00:00" is FullDay.
func ParseInterval(raw string) (Interval, error) {
	parts := strings.Split(strings.TrimSpace(raw), "-")
	if len(parts) != 2 {
		return Interval{}, fmt.Errorf("interval %q: expected HH:MM-HH:MM", raw)
	}
	start, err := parseMinute(parts[0])
	if err != nil {
		return Interval{}, fmt.Errorf("interval %q: %w", raw, err)
	}
	end, err := parseMinute(parts[1])
	if err != nil {
		return Interval{}, fmt.Errorf("interval %q: %w", raw, err)
	}
	if start >= MinutesPerDay {
		return Interval{}, fmt.Errorf("interval %q: start must be before 24:00", raw)
	}
	if end <= start {
		end += MinutesPerDay
	}
	return Interval{Start: start, End: end}, nil
}

// Merge sorts intervals and joins the ones that overlap or touch. Parts
// reaching past midnight are wrapped to the start of the same day first, so
// the result always lies within [0, MinutesPerDay]. Merge is idempotent and
// independent of input order.
func Merge(intervals []Interval) []Interval {
	pieces := make([]Interval, 0, len(intervals)+1)
	for _, iv := range intervals {
		pieces = append(pieces, wrap(iv)...)
	}
	if len(pieces) == 0 {
		return nil
	}

	sort.Slice(pieces, func(a, b int) bool {
		if pieces[a].Start == pieces[b].Start {
			return pieces[a].End < pieces[b].End
		}
		return pieces[a].Start < pieces[b].Start
	})

	merged := []Interval{pieces[0]}
	for _, iv := range pieces[1:] {
		last := &merged[len(merged)-1]
		if iv.Start <= last.End {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// Complement returns the gaps left by work across the whole day, including
// the stretch before the first and after the last interval. No work at all
// yields FullDay.
func Complement(work []Interval) []Interval {
	merged := Merge(work)
	gaps := make([]Interval, 0, len(merged)+1)
	cursor := 0
	for _, iv := range merged {
		if iv.Start > cursor {
			gaps = append(gaps, Interval{Start: cursor, End: iv.Start})
		}
		cursor = iv.End
	}
	if cursor < MinutesPerDay {
		gaps = append(gaps, Interval{Start: cursor, End: MinutesPerDay})
	}
	return gaps
}

func wrap(iv Interval) []Interval {
	if iv.End <= iv.Start {
		return nil
	}
	for iv.Start >= MinutesPerDay {
		iv.Start -= MinutesPerDay
		iv.End -= MinutesPerDay
	}
	if iv.Start < 0 {
		iv.Start = 0
	}
	if iv.End <= MinutesPerDay {
		return []Interval{iv}
	}
	if iv.Duration() >= MinutesPerDay {
		return []Interval{FullDay}
	}
	return []Interval{
		{Start: iv.Start, End: MinutesPerDay},
		{Start: 0, End: iv.End - MinutesPerDay},
	}
}

func parseMinute(raw string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return 0, fmt.Errorf("time %q: expected HH:MM", raw)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("time %q: bad hour", raw)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("time %q: bad minute", raw)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("time %q: out of range", raw)
	}
	return h*60 + m, nil
}

func formatMinute(minute int) string {
	minute %= MinutesPerDay
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
