package permission

import "testing"

func TestDefaultModePromptsForRiskyTools(t *testing.T) {
	p := Policy{Mode: ModeDefault}
	if p.Decide("Bash") != DecisionPrompt {
		t.Error("expected Bash to prompt under default mode")
	}
	if p.Decide("Edit") != DecisionPrompt {
		t.Error("expected Edit to prompt under default mode")
	}
	if p.Decide("Read") != DecisionAutoApprove {
		t.Error("expected Read to auto-approve under default mode")
	}
}

func TestAcceptEditsAutoApprovesEditsButPromptsBash(t *testing.T) {
	p := Policy{Mode: ModeAcceptEdits}
	if p.Decide("Edit") != DecisionAutoApprove {
		t.Error("expected Edit to auto-approve under acceptEdits")
	}
	if p.Decide("Bash") != DecisionPrompt {
		t.Error("expected Bash to still prompt under acceptEdits")
	}
}

func TestBypassAndDontAskAutoApproveEverything(t *testing.T) {
	for _, mode := range []Mode{ModeBypass, ModeDontAsk} {
		p := Policy{Mode: mode}
		if p.Decide("Bash") != DecisionAutoApprove {
			t.Errorf("expected auto-approve under %s", mode)
		}
	}
}

func TestPlanModeAutoDeniesEverything(t *testing.T) {
	p := Policy{Mode: ModePlan}
	if p.Decide("Read") != DecisionAutoDeny {
		t.Error("expected plan mode to auto-deny even safe tools")
	}
}
