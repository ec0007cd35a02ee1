package funnel

import (
	"time"

	"talentflow/internal/domain/application"
)

const day = 24 * time.Hour

// Pairs lists the conversion pairs a snapshot carries: adjacent main path
// stages, then applied against every later main path stage.
func Pairs() []StagePair {
	path := application.MainPath
	pairs := make([]StagePair, 0, 2*len(path))
	for i := 1; i < len(path); i++ {
		pairs = append(pairs, StagePair{From: path[i-1], To: path[i]})
	}
	for i := 2; i < len(path); i++ {
		pairs = append(pairs, StagePair{From: path[0], To: path[i]})
	}
	return pairs
}

// Compute derives a snapshot from the applications currently in scope. Each
// application counts once under its current stage; conversion uses the highest
// stage reached so backward moves do not distort it.
func Compute(scope application.Scope, apps []application.Application, now time.Time) Snapshot {
	snapshot := Snapshot{
		Scope:              scope,
		Total:              len(apps),
		StageCounts:        make(map[application.Stage]int, len(application.Stages)),
		ConversionRates:    make(map[StagePair]Rate),
		AverageDaysInStage: make(map[application.Stage]float64, len(application.Stages)),
		ComputedAt:         now,
	}
	for _, stage := range application.Stages {
		snapshot.StageCounts[stage] = 0
		snapshot.AverageDaysInStage[stage] = 0
	}

	reached := make([]int, len(application.MainPath))
	daysTotal := make(map[application.Stage]float64)
	for _, app := range apps {
		if !app.Stage.IsKnown() {
			continue
		}
		snapshot.StageCounts[app.Stage]++

		highest := application.Reached(app.HighestStage, app.Stage)
		for rank := 0; rank <= highest.Rank(); rank++ {
			reached[rank]++
		}

		since := app.StageChangedAt
		if since.IsZero() {
			since = app.AppliedAt
		}
		elapsed := now.Sub(since)
		if elapsed < 0 {
			elapsed = 0
		}
		daysTotal[app.Stage] += elapsed.Hours() / day.Hours()
	}

	for stage, total := range daysTotal {
		if count := snapshot.StageCounts[stage]; count > 0 {
			snapshot.AverageDaysInStage[stage] = total / float64(count)
		}
	}
	for _, pair := range Pairs() {
		snapshot.ConversionRates[pair] = NewRate(reached[pair.To.Rank()], reached[pair.From.Rank()])
	}
	return snapshot
}
