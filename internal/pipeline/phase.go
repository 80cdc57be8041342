package pipeline

// Phase identifies one step of the fixed generation sequence. An item moves
// through the working phases in order; done and failed are terminal.
type Phase string

const (
	PhaseCollectContext      Phase = "collect_context"
	PhaseBuildDraftRequest   Phase = "build_draft_request"
	PhaseDraftRateGate       Phase = "draft_rate_gate"
	PhaseSubmitDraft         Phase = "submit_draft"
	PhaseRelocateDraft       Phase = "relocate_draft"
	PhaseCollectDraftContext Phase = "collect_draft_context"
	PhaseBuildFinalRequest   Phase = "build_final_request"
	PhaseFinalRateGate       Phase = "final_rate_gate"
	PhaseSubmitFinal         Phase = "submit_final"
	PhaseRelocateFinal       Phase = "relocate_final"
	PhaseDone                Phase = "done"
	PhaseFailed              Phase = "failed"
)

var workingPhases = []Phase{
	PhaseCollectContext,
	PhaseBuildDraftRequest,
	PhaseDraftRateGate,
	PhaseSubmitDraft,
	PhaseRelocateDraft,
	PhaseCollectDraftContext,
	PhaseBuildFinalRequest,
	PhaseFinalRateGate,
	PhaseSubmitFinal,
	PhaseRelocateFinal,
}

// Sequence returns the working phases in execution order, excluding the
// terminal done and failed phases.
func Sequence() []Phase {
	seq := make([]Phase, len(workingPhases))
	copy(seq, workingPhases)
	return seq
}

func (p Phase) String() string {
	return string(p)
}

// Terminal reports whether the phase ends an item's run.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

func phaseIndex(p Phase) int {
	for i, candidate := range workingPhases {
		if candidate == p {
			return i
		}
	}
	return -1
}
