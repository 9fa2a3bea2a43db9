package utils

import (
	"strings"
	"time"
)

// Diaper kinds, derived from the tag a note starts with.
const (
	DiaperPee     = "pee"
	DiaperPoop    = "poop"
	DiaperBoth    = "both"
	DiaperUnknown = "unknown"
)

var diaperTags = map[string]string{
	DiaperPee:  "[尿]",
	DiaperPoop: "[便]",
	DiaperBoth: "[尿+便]",
}

// DiaperNotePrefix returns the note tag for a kind, or "" for unknown kinds.
func DiaperNotePrefix(kind string) string {
	return diaperTags[kind]
}

// ClassifyDiaper reads the kind tag off the front of a diaper note.
// "[尿+便]" is checked first so it is never counted as "[尿]".
func ClassifyDiaper(note string) string {
	note = strings.TrimSpace(note)
	switch {
	case strings.HasPrefix(note, diaperTags[DiaperBoth]):
		return DiaperBoth
	case strings.HasPrefix(note, diaperTags[DiaperPee]):
		return DiaperPee
	case strings.HasPrefix(note, diaperTags[DiaperPoop]):
		return DiaperPoop
	default:
		return DiaperUnknown
	}
}

// Bucket is one fixed-width day window [Start, End).
type Bucket struct {
	Start time.Time
	End   time.Time
}

// Day is the bucket's YYYY-MM-DD key.
func (b Bucket) Day() string { return b.Start.Format(DateLayout) }

// Contains reports whether t falls inside the bucket.
func (b Bucket) Contains(t time.Time) bool {
	return !t.Before(b.Start) && t.Before(b.End)
}

// DayBuckets builds n consecutive day buckets starting at the day boundary of start.
// Boundaries are calendar days in start's location, so DST days are 23 or 25 hours.
func DayBuckets(start time.Time, n int) []Bucket {
	if n <= 0 {
		return nil
	}
	first := DayStart(start)
	out := make([]Bucket, n)
	for i := range out {
		out[i] = Bucket{Start: first.AddDate(0, 0, i), End: first.AddDate(0, 0, i+1)}
	}
	return out
}

// indexOf locates the bucket holding t, or -1.
func indexOf(buckets []Bucket, t time.Time) int {
	if len(buckets) == 0 {
		return -1
	}
	t = t.In(buckets[0].Start.Location())
	if t.Before(buckets[0].Start) || !t.Before(buckets[len(buckets)-1].End) {
		return -1
	}
	day := DayStart(t)
	for i := range buckets {
		if buckets[i].Start.Equal(day) {
			return i
		}
	}
	return -1
}

// TimedNote is the minimal view of an event the aggregators need.
type TimedNote struct {
	At       time.Time
	AmountML int
	Note     string
}

type DiaperDay struct {
	Day   string `json:"day"`
	Total int    `json:"total"`
	Pee   int    `json:"pee"`
	Poop  int    `json:"poop"`
	Both  int    `json:"both"`
}

// BucketDiapers counts diaper events per day, split by kind. Events outside the
// range are ignored; untagged events only add to Total.
func BucketDiapers(events []TimedNote, start time.Time, days int) []DiaperDay {
	buckets := DayBuckets(start, days)
	out := make([]DiaperDay, len(buckets))
	for i, b := range buckets {
		out[i].Day = b.Day()
	}
	for _, e := range events {
		i := indexOf(buckets, e.At)
		if i < 0 {
			continue
		}
		out[i].Total++
		switch ClassifyDiaper(e.Note) {
		case DiaperPee:
			out[i].Pee++
		case DiaperPoop:
			out[i].Poop++
		case DiaperBoth:
			out[i].Both++
		}
	}
	return out
}

type FeedDay struct {
	Day     string `json:"day"`
	Count   int    `json:"count"`
	TotalML int    `json:"total_ml"`
}

// BucketFeeds counts feeds and sums their amounts per day.
func BucketFeeds(events []TimedNote, start time.Time, days int) []FeedDay {
	buckets := DayBuckets(start, days)
	out := make([]FeedDay, len(buckets))
	for i, b := range buckets {
		out[i].Day = b.Day()
	}
	for _, e := range events {
		i := indexOf(buckets, e.At)
		if i < 0 {
			continue
		}
		out[i].Count++
		out[i].TotalML += e.AmountML
	}
	return out
}
