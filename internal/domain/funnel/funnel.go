package funnel

import (
	"context"
	"fmt"
	"time"

	"talentflow/internal/common"
	"talentflow/internal/domain/application"
)

type StagePair struct {
	From application.Stage `json:"from"`
	To   application.Stage `json:"to"`
}

func (p StagePair) String() string {
	return string(p.From) + "->" + string(p.To)
}

// Rate is a conversion ratio. Defined is false when no application reached
// From; Value is then 0 so callers can render "0%".
type Rate struct {
	Reached   int     `json:"reached"`
	Converted int     `json:"converted"`
	Value     float64 `json:"value"`
	Defined   bool    `json:"defined"`
}

func NewRate(converted, reached int) Rate {
	if reached <= 0 {
		return Rate{}
	}
	return Rate{Reached: reached, Converted: converted, Value: float64(converted) / float64(reached), Defined: true}
}

func (r Rate) Percent() string {
	return fmt.Sprintf("%.0f%%", r.Value*100)
}

type Snapshot struct {
	Scope              application.Scope             `json:"scope"`
	Total              int                           `json:"total"`
	StageCounts        map[application.Stage]int     `json:"stage_counts"`
	ConversionRates    map[StagePair]Rate            `json:"-"`
	AverageDaysInStage map[application.Stage]float64 `json:"average_days_in_stage"`
	ComputedAt         time.Time                     `json:"computed_at"`
}

type Conversion struct {
	From application.Stage `json:"from"`
	To   application.Stage `json:"to"`
	Rate
}

// Conversions returns the conversion rates in Pairs order.
func (s Snapshot) Conversions() []Conversion {
	pairs := Pairs()
	items := make([]Conversion, 0, len(pairs))
	for _, pair := range pairs {
		items = append(items, Conversion{From: pair.From, To: pair.To, Rate: s.Rate(pair.From, pair.To)})
	}
	return items
}

func (s Snapshot) Rate(from, to application.Stage) Rate {
	if rate, ok := s.ConversionRates[StagePair{From: from, To: to}]; ok {
		return rate
	}
	return Rate{}
}

// Cache stores snapshots keyed by scope. A miss is reported as (nil, nil).
type Cache interface {
	Get(ctx context.Context, scope application.Scope) (*Snapshot, error)
	Set(ctx context.Context, snapshot Snapshot) error
	Invalidate(ctx context.Context, jobID, organizationID common.UUID) error
}

func ScopeKey(scope application.Scope) string {
	if scope.JobID != "" {
		return "job:" + scope.JobID.String()
	}
	return "org:" + scope.OrganizationID.String()
}
