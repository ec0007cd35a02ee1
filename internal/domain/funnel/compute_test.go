package funnel

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talentflow/internal/common"
	"talentflow/internal/domain/application"
)

func population(now time.Time, counts map[application.Stage]int) []application.Application {
	var apps []application.Application
	for _, stage := range application.Stages {
		for i := 0; i < counts[stage]; i++ {
			apps = append(apps, application.Application{
				ID:             common.NewUUID(),
				Stage:          stage,
				HighestStage:   application.Reached(application.StageApplied, stage),
				AppliedAt:      now.Add(-10 * day),
				StageChangedAt: now.Add(-2 * day),
			})
		}
	}
	return apps
}

func TestComputeEmptyScope(t *testing.T) {
	now := time.Now()
	snapshot := Compute(application.Scope{JobID: common.NewUUID()}, nil, now)

	assert.Equal(t, 0, snapshot.Total)
	require.Len(t, snapshot.StageCounts, len(application.Stages))
	for _, stage := range application.Stages {
		assert.Equal(t, 0, snapshot.StageCounts[stage])
		assert.Equal(t, 0.0, snapshot.AverageDaysInStage[stage])
	}
	for _, pair := range Pairs() {
		rate := snapshot.Rate(pair.From, pair.To)
		assert.False(t, rate.Defined, pair.String())
		assert.False(t, math.IsNaN(rate.Value), pair.String())
		assert.Equal(t, "0%", rate.Percent())
	}
}

func TestComputeHundredApplications(t *testing.T) {
	now := time.Now()
	apps := population(now, map[application.Stage]int{
		application.StageApplied:      40,
		application.StageScreening:    30,
		application.StageInterviewing: 20,
		application.StageHired:        10,
	})

	snapshot := Compute(application.Scope{JobID: common.NewUUID()}, apps, now)

	assert.Equal(t, 100, snapshot.Total)
	assert.Equal(t, 40, snapshot.StageCounts[application.StageApplied])
	assert.Equal(t, 30, snapshot.StageCounts[application.StageScreening])
	assert.Equal(t, 20, snapshot.StageCounts[application.StageInterviewing])
	assert.Equal(t, 10, snapshot.StageCounts[application.StageHired])
	assert.Equal(t, 0, snapshot.StageCounts[application.StageAssessment])

	hired := snapshot.Rate(application.StageApplied, application.StageHired)
	assert.True(t, hired.Defined)
	assert.Equal(t, 100, hired.Reached)
	assert.Equal(t, 10, hired.Converted)
	assert.InDelta(t, 0.10, hired.Value, 1e-9)
	assert.Equal(t, "10%", hired.Percent())

	screening := snapshot.Rate(application.StageApplied, application.StageScreening)
	assert.InDelta(t, 0.60, screening.Value, 1e-9)
	interviewing := snapshot.Rate(application.StageApplied, application.StageInterviewing)
	assert.InDelta(t, 0.30, interviewing.Value, 1e-9)
	offer := snapshot.Rate(application.StageInterviewing, application.StageOfferExtended)
	assert.InDelta(t, 10.0/30.0, offer.Value, 1e-9)
}

func TestComputeUsesHighestStageAfterRegression(t *testing.T) {
	now := time.Now()
	apps := []application.Application{
		{Stage: application.StageOnHold, HeldFrom: application.StageInterviewing, HighestStage: application.StageInterviewing, StageChangedAt: now},
		{Stage: application.StageScreening, HighestStage: application.StageOfferExtended, StageChangedAt: now},
		{Stage: application.StageApplied, HighestStage: application.StageApplied, StageChangedAt: now},
	}

	snapshot := Compute(application.Scope{JobID: common.NewUUID()}, apps, now)

	assert.Equal(t, 1, snapshot.StageCounts[application.StageOnHold])
	assert.Equal(t, 1, snapshot.StageCounts[application.StageScreening])
	rate := snapshot.Rate(application.StageApplied, application.StageInterviewing)
	assert.Equal(t, 2, rate.Converted)
	assert.Equal(t, 3, rate.Reached)
}

func TestComputeAverageDaysIncludesFractionalDays(t *testing.T) {
	now := time.Now()
	apps := []application.Application{
		{Stage: application.StageScreening, HighestStage: application.StageScreening, StageChangedAt: now.Add(-12 * time.Hour)},
		{Stage: application.StageScreening, HighestStage: application.StageScreening, StageChangedAt: now.Add(-36 * time.Hour)},
	}

	snapshot := Compute(application.Scope{JobID: common.NewUUID()}, apps, now)

	assert.InDelta(t, 1.0, snapshot.AverageDaysInStage[application.StageScreening], 1e-9)
	assert.Equal(t, 0.0, snapshot.AverageDaysInStage[application.StageApplied])
}

func TestConversionIsNonIncreasingWithDepth(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	now := time.Now()
	for round := 0; round < 50; round++ {
		counts := make(map[application.Stage]int)
		for _, stage := range application.Stages {
			counts[stage] = rng.Intn(20)
		}
		snapshot := Compute(application.Scope{JobID: common.NewUUID()}, population(now, counts), now)

		previous := 1.0
		for _, stage := range application.MainPath[2:] {
			rate := snapshot.Rate(application.StageApplied, stage)
			require.LessOrEqual(t, rate.Value, previous, "applied->%s", stage)
			previous = rate.Value
		}
		assert.LessOrEqual(t,
			snapshot.Rate(application.StageApplied, application.StageHired).Value,
			snapshot.Rate(application.StageApplied, application.StageInterviewing).Value)
	}
}

func TestConversionsFollowPairsOrder(t *testing.T) {
	snapshot := Compute(application.Scope{JobID: common.NewUUID()}, nil, time.Now())
	conversions := snapshot.Conversions()
	pairs := Pairs()
	require.Len(t, conversions, len(pairs))
	for i, pair := range pairs {
		assert.Equal(t, pair.From, conversions[i].From)
		assert.Equal(t, pair.To, conversions[i].To)
	}
}
