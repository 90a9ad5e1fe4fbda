package usage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"catalog-service/internal/model"
)

func completed(agentID, agentName string, startedAt time.Time, seconds int64) model.UsageSession {
	endedAt := startedAt.Add(time.Duration(seconds) * time.Second)
	return model.UsageSession{
		ID:              agentID + startedAt.Format("150405"),
		UserID:          "u1",
		AgentID:         agentID,
		AgentName:       agentName,
		StartedAt:       startedAt,
		EndedAt:         &endedAt,
		DurationSeconds: &seconds,
	}
}

func TestAggregate_DayAndAgentBuckets(t *testing.T) {
	day1 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)
	records := []model.UsageSession{
		completed("A", "A", day1, 30),
		completed("B", "B", day1.Add(time.Hour), 90),
		completed("A", "A", day2, 10),
	}

	summary := Aggregate(records, 14, time.UTC)

	assert.Len(t, summary.Days, 2)
	assert.Equal(t, "2025-03-10", summary.Days[0].DateKey)
	assert.Equal(t, map[string]int64{"A": 30, "B": 90}, summary.Days[0].Segments)
	assert.Equal(t, map[string]int64{"A": 10}, summary.Days[1].Segments)
	assert.Equal(t, int64(120), summary.MaxSeconds)
	assert.Equal(t, []string{"A", "B"}, summary.Mentors)
}

func TestAggregate_SkipsIncompleteAndZeroDurationSessions(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	var zero int64
	records := []model.UsageSession{
		{ID: "open", UserID: "u1", AgentID: "A", StartedAt: start},
		{ID: "zero", UserID: "u1", AgentID: "A", StartedAt: start, DurationSeconds: &zero},
		completed("A", "A", start, 45),
	}

	summary := Aggregate(records, 14, time.UTC)

	assert.Len(t, summary.Days, 1)
	assert.Equal(t, map[string]int64{"A": 45}, summary.Days[0].Segments)
}

func TestAggregate_OrderIndependent(t *testing.T) {
	day1 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	records := []model.UsageSession{
		completed("A", "Ada", day1, 30),
		completed("B", "Bo", day1.Add(2*time.Hour), 90),
		completed("A", "Ada", day2, 10),
	}
	reversed := []model.UsageSession{records[2], records[1], records[0]}

	assert.Equal(t, Aggregate(records, 14, time.UTC), Aggregate(reversed, 14, time.UTC))
}

func TestAggregate_WindowKeepsMostRecentDays(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var records []model.UsageSession
	for i := 0; i < 20; i++ {
		records = append(records, completed("A", "A", base.AddDate(0, 0, i), 60))
	}

	summary := Aggregate(records, 14, time.UTC)

	assert.Len(t, summary.Days, 14)
	assert.Equal(t, "2025-03-07", summary.Days[0].DateKey)
	assert.Equal(t, "2025-03-20", summary.Days[13].DateKey)
}

func TestAggregate_TotalsMatchInputWithinWindow(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []model.UsageSession{
		completed("A", "A", base, 30),
		completed("B", "B", base.AddDate(0, 0, 1), 50),
		completed("A", "A", base.AddDate(0, 0, 2), 20),
	}

	summary := Aggregate(records, 14, time.UTC)

	var total int64
	for _, day := range summary.Days {
		for _, secs := range day.Segments {
			total += secs
		}
	}
	assert.Equal(t, int64(100), total)
}

func TestAggregate_AgentNameFallsBackToID(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	records := []model.UsageSession{completed("agent-7", "", start, 30)}

	summary := Aggregate(records, 14, time.UTC)

	assert.Equal(t, []string{"agent-7"}, summary.Mentors)
	assert.Equal(t, map[string]int64{"agent-7": 30}, summary.Days[0].Segments)
}

func TestAggregate_BucketsByReferenceZone(t *testing.T) {
	// 23:30 UTC on March 10 is already March 11 in UTC+2.
	start := time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC)
	records := []model.UsageSession{completed("A", "A", start, 30)}

	utc := Aggregate(records, 14, time.UTC)
	east := Aggregate(records, 14, time.FixedZone("UTC+2", 2*60*60))

	assert.Equal(t, "2025-03-10", utc.Days[0].DateKey)
	assert.Equal(t, "2025-03-11", east.Days[0].DateKey)
}

func TestAggregate_Empty(t *testing.T) {
	summary := Aggregate(nil, 14, time.UTC)

	assert.Empty(t, summary.Days)
	assert.Empty(t, summary.Mentors)
	assert.Zero(t, summary.MaxSeconds)
}
