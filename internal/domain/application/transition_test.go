package application

import "testing"

func TestValidate(t *testing.T) {
	cases := []struct {
		name      string
		current   Position
		requested Stage
		role      Role
		allowed   bool
		reason    Reason
	}{
		{"hr advances to screening", Position{Stage: StageApplied}, StageScreening, RoleHRReviewer, true, ""},
		{"hr skips assessment", Position{Stage: StageScreening}, StageInterviewing, RoleHRReviewer, true, ""},
		{"hr moves back to screening", Position{Stage: StageInterviewing}, StageScreening, RoleHRReviewer, true, ""},
		{"offer requires interviewing", Position{Stage: StageScreening}, StageOfferExtended, RoleHRReviewer, false, ReasonInvalidTransition},
		{"hr extends offer", Position{Stage: StageInterviewing}, StageOfferExtended, RoleHRReviewer, true, ""},
		{"offer accepted", Position{Stage: StageOfferExtended}, StageOfferAccepted, RoleHRReviewer, true, ""},
		{"offer accepted to hired", Position{Stage: StageOfferAccepted}, StageHired, RoleHRReviewer, true, ""},
		{"hired directly from interviewing", Position{Stage: StageInterviewing}, StageHired, RoleHRReviewer, false, ReasonInvalidTransition},
		{"candidate cannot hire", Position{Stage: StageInterviewing}, StageHired, RoleCandidate, false, ReasonForbidden},
		{"candidate withdraws", Position{Stage: StageAssessment}, StageWithdrawn, RoleCandidate, true, ""},
		{"candidate withdraws from hold", Position{Stage: StageOnHold, HeldFrom: StageScreening}, StageWithdrawn, RoleCandidate, true, ""},
		{"candidate cannot withdraw after hire", Position{Stage: StageHired}, StageWithdrawn, RoleCandidate, false, ReasonInvalidTransition},
		{"unknown role", Position{Stage: StageApplied}, StageScreening, Role("admin"), false, ReasonForbidden},
		{"same stage is no-op", Position{Stage: StageScreening}, StageScreening, RoleHRReviewer, false, ReasonNoOp},
		{"candidate no-op", Position{Stage: StageWithdrawn}, StageWithdrawn, RoleCandidate, false, ReasonNoOp},
		{"unknown stage", Position{Stage: StageApplied}, Stage("phone_screen"), RoleHRReviewer, false, ReasonInvalidTransition},
		{"hold from interviewing", Position{Stage: StageInterviewing}, StageOnHold, RoleHRReviewer, true, ""},
		{"resume to held stage", Position{Stage: StageOnHold, HeldFrom: StageInterviewing}, StageInterviewing, RoleHRReviewer, true, ""},
		{"resume to other stage", Position{Stage: StageOnHold, HeldFrom: StageInterviewing}, StageScreening, RoleHRReviewer, false, ReasonInvalidTransition},
		{"resume without record", Position{Stage: StageOnHold}, StageInterviewing, RoleHRReviewer, false, ReasonInvalidTransition},
		{"reject from hold", Position{Stage: StageOnHold, HeldFrom: StageApplied}, StageRejected, RoleHRReviewer, true, ""},
		{"offer rejected only from offer", Position{Stage: StageInterviewing}, StageOfferRejected, RoleHRReviewer, false, ReasonInvalidTransition},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := Validate(tc.current, tc.requested, tc.role)
			if decision.Allowed != tc.allowed {
				t.Fatalf("expected allowed=%v, got %v (%s)", tc.allowed, decision.Allowed, decision.Reason)
			}
			if decision.Reason != tc.reason {
				t.Fatalf("expected reason %q, got %q", tc.reason, decision.Reason)
			}
		})
	}
}

func TestTerminalStagesOnlyExtendAcceptedOffer(t *testing.T) {
	terminal := []Stage{StageHired, StageRejected, StageOfferRejected, StageWithdrawn}
	for _, from := range terminal {
		for _, to := range Stages {
			if to == from {
				continue
			}
			for _, role := range []Role{RoleHRReviewer, RoleCandidate} {
				if Validate(Position{Stage: from}, to, role).Allowed {
					t.Fatalf("terminal stage %s must not move to %s as %s", from, to, role)
				}
			}
		}
	}
	if !Validate(Position{Stage: StageOfferAccepted}, StageHired, RoleHRReviewer).Allowed {
		t.Fatal("expected offer_accepted -> hired to be allowed")
	}
}

func TestHoldIsEnterableFromEveryNonTerminalStage(t *testing.T) {
	for _, stage := range Stages {
		if stage.IsTerminal() || stage == StageOnHold {
			continue
		}
		if !Validate(Position{Stage: stage}, StageOnHold, RoleHRReviewer).Allowed {
			t.Fatalf("expected %s -> on_hold to be allowed", stage)
		}
	}
}

func TestTargets(t *testing.T) {
	targets := Targets(Position{Stage: StageOfferAccepted}, RoleHRReviewer)
	expected := []Stage{StageHired, StageOnHold, StageWithdrawn}
	if len(targets) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, targets)
	}
	for i := range expected {
		if targets[i] != expected[i] {
			t.Fatalf("expected %v, got %v", expected, targets)
		}
	}
	if got := Targets(Position{Stage: StageScreening}, RoleCandidate); len(got) != 1 || got[0] != StageWithdrawn {
		t.Fatalf("expected candidate to only withdraw, got %v", got)
	}
}
