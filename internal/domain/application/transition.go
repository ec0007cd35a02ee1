package application

type Role string

const (
	RoleCandidate  Role = "candidate"
	RoleHRReviewer Role = "hr_reviewer"
)

type Reason string

const (
	ReasonForbidden         Reason = "forbidden"
	ReasonNoOp              Reason = "no-op"
	ReasonInvalidTransition Reason = "invalid-transition"
)

// Position is the validator's view of an application: its current stage and,
// while on hold, the stage it was suspended from.
type Position struct {
	Stage    Stage
	HeldFrom Stage
}

type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason Reason) Decision {
	return Decision{Reason: reason}
}

// review stages may move freely between each other
var reviewStages = map[Stage]bool{
	StageApplied:      true,
	StageScreening:    true,
	StageAssessment:   true,
	StageInterviewing: true,
}

// Validate decides whether role may move an application at current to
// requested. It has no side effects.
func Validate(current Position, requested Stage, role Role) Decision {
	if !requested.IsKnown() || !current.Stage.IsKnown() {
		return deny(ReasonInvalidTransition)
	}
	if requested == current.Stage {
		return deny(ReasonNoOp)
	}
	switch role {
	case RoleCandidate:
		if requested != StageWithdrawn {
			return deny(ReasonForbidden)
		}
	case RoleHRReviewer:
	default:
		return deny(ReasonForbidden)
	}
	if !isAllowedTransition(current, requested) {
		return deny(ReasonInvalidTransition)
	}
	return allow()
}

func isAllowedTransition(current Position, to Stage) bool {
	from := current.Stage
	if from.IsTerminal() {
		return false
	}
	switch from {
	case StageOnHold:
		if to == StageRejected || to == StageWithdrawn {
			return true
		}
		return current.HeldFrom != "" && current.HeldFrom != StageOnHold && to == current.HeldFrom
	case StageOfferAccepted:
		return to == StageHired || to == StageWithdrawn || to == StageOnHold
	case StageOfferExtended:
		switch to {
		case StageOfferAccepted, StageOfferRejected, StageInterviewing, StageRejected, StageWithdrawn, StageOnHold:
			return true
		}
		return false
	}
	if !reviewStages[from] {
		return false
	}
	switch {
	case reviewStages[to]:
		return true
	case to == StageOfferExtended:
		return from == StageInterviewing
	case to == StageRejected, to == StageWithdrawn, to == StageOnHold:
		return true
	default:
		return false
	}
}

// Targets lists every stage role may request from current, in display order.
func Targets(current Position, role Role) []Stage {
	var targets []Stage
	for _, stage := range Stages {
		if Validate(current, stage, role).Allowed {
			targets = append(targets, stage)
		}
	}
	return targets
}
