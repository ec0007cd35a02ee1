package application

import (
	"fmt"
	"strings"
)

type Stage string

const (
	StageApplied       Stage = "applied"
	StageScreening     Stage = "screening"
	StageAssessment    Stage = "assessment"
	StageInterviewing  Stage = "interviewing"
	StageOfferExtended Stage = "offer_extended"
	StageOfferAccepted Stage = "offer_accepted"
	StageOfferRejected Stage = "offer_rejected"
	StageHired         Stage = "hired"
	StageRejected      Stage = "rejected"
	StageOnHold        Stage = "on_hold"
	StageWithdrawn     Stage = "withdrawn"
)

// Stages lists every stage in display order.
var Stages = []Stage{
	StageApplied,
	StageScreening,
	StageAssessment,
	StageInterviewing,
	StageOfferExtended,
	StageOfferAccepted,
	StageHired,
	StageOfferRejected,
	StageRejected,
	StageOnHold,
	StageWithdrawn,
}

// MainPath is the forward hiring path. Position in the slice is the stage rank
// used for highest-stage-reached bookkeeping.
var MainPath = []Stage{
	StageApplied,
	StageScreening,
	StageAssessment,
	StageInterviewing,
	StageOfferExtended,
	StageOfferAccepted,
	StageHired,
}

func (s Stage) IsKnown() bool {
	for _, stage := range Stages {
		if stage == s {
			return true
		}
	}
	return false
}

func (s Stage) IsTerminal() bool {
	switch s {
	case StageHired, StageRejected, StageOfferRejected, StageWithdrawn:
		return true
	default:
		return false
	}
}

// Rank returns the main path position of s, or -1 for side stages.
func (s Stage) Rank() int {
	for i, stage := range MainPath {
		if stage == s {
			return i
		}
	}
	return -1
}

// Reached reports the stage to record as highest reached after moving from
// highest to next. Side stages never raise it.
func Reached(highest, next Stage) Stage {
	if next.Rank() > highest.Rank() {
		return next
	}
	if highest == "" && next.Rank() < 0 {
		return StageApplied
	}
	return highest
}

func (s Stage) Label() string {
	switch s {
	case StageOfferExtended:
		return "Offer Extended"
	case StageOfferAccepted:
		return "Offer Accepted"
	case StageOfferRejected:
		return "Offer Rejected"
	case StageOnHold:
		return "On Hold"
	case "":
		return ""
	default:
		return strings.ToUpper(string(s[:1])) + string(s[1:])
	}
}

var legacyStages = map[string]Stage{
	"new":       StageApplied,
	"pending":   StageApplied,
	"review":    StageScreening,
	"in_review": StageScreening,
	"reviewing": StageScreening,
	"screen":    StageScreening,
	"test":      StageAssessment,
	"interview": StageInterviewing,
	"invited":   StageInterviewing,
	"offer":     StageOfferExtended,
	"offered":   StageOfferExtended,
	"accepted":  StageOfferAccepted,
	"declined":  StageOfferRejected,
	"hold":      StageOnHold,
	"onhold":    StageOnHold,
	"withdraw":  StageWithdrawn,
	"cancelled": StageWithdrawn,
	"rejection": StageRejected,
	"not_hired": StageRejected,
}

// ParseStage maps canonical and legacy free-text statuses onto the stage
// enumeration. Legacy rows are migrated on read; nothing else is accepted.
func ParseStage(value string) (Stage, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	stage := Stage(normalized)
	if stage.IsKnown() {
		return stage, nil
	}
	if legacy, ok := legacyStages[normalized]; ok {
		return legacy, nil
	}
	return "", fmt.Errorf("unknown stage %q", value)
}
