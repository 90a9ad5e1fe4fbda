// Package usage records interactive sessions and aggregates them into the
// per-day, per-agent duration matrix the usage report is built from.
package usage

import (
	"sort"
	"time"

	"catalog-service/internal/model"
)

// DefaultWindowDays is how far back the usage summary reaches when the
// caller does not override it.
const DefaultWindowDays = 14

const dateKeyFormat = "2006-01-02"

// Bucket holds one calendar day's durations, keyed by agent label.
type Bucket struct {
	DateKey  string           `json:"date_key"`
	Label    string           `json:"label"`
	Segments map[string]int64 `json:"segments"`
}

// Summary is the aggregated usage matrix for the retained window.
// MaxSeconds is the largest single-day total, used for chart scaling.
type Summary struct {
	Days       []Bucket `json:"days"`
	Mentors    []string `json:"mentors"`
	MaxSeconds int64    `json:"max_seconds"`
}

// Aggregate folds raw session records into day/agent buckets. Only records
// with a defined, positive duration count. Days are keyed by the calendar
// date of StartedAt in loc, sorted ascending, trimmed to the most recent
// windowDays distinct days present in the data. Sessions whose agent name is
// empty fall back to the agent id as their label. The result depends only on
// the content of records, never on their order.
func Aggregate(records []model.UsageSession, windowDays int, loc *time.Location) Summary {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	if loc == nil {
		loc = time.UTC
	}

	dayMap := make(map[string]map[string]int64)
	mentorSet := make(map[string]bool)
	for i := range records {
		r := &records[i]
		if !r.Completed() {
			continue
		}
		label := r.AgentName
		if label == "" {
			label = r.AgentID
		}
		key := r.StartedAt.In(loc).Format(dateKeyFormat)
		if dayMap[key] == nil {
			dayMap[key] = make(map[string]int64)
		}
		dayMap[key][label] += *r.DurationSeconds
		mentorSet[label] = true
	}

	keys := make([]string, 0, len(dayMap))
	for key := range dayMap {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	if len(keys) > windowDays {
		keys = keys[len(keys)-windowDays:]
	}

	var maxSeconds int64
	days := make([]Bucket, 0, len(keys))
	for _, key := range keys {
		var total int64
		for _, secs := range dayMap[key] {
			total += secs
		}
		if total > maxSeconds {
			maxSeconds = total
		}
		day, _ := time.ParseInLocation(dateKeyFormat, key, loc)
		days = append(days, Bucket{
			DateKey:  key,
			Label:    day.Format("Jan 02"),
			Segments: dayMap[key],
		})
	}

	mentors := make([]string, 0, len(mentorSet))
	for label := range mentorSet {
		mentors = append(mentors, label)
	}
	sort.Strings(mentors)

	return Summary{Days: days, Mentors: mentors, MaxSeconds: maxSeconds}
}
