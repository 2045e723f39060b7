package sim

// Phase is the scheduler state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseForce
	PhaseIntegrate
	PhaseMigrate
	PhaseBarrier
	PhaseSavePoint
	PhaseTerminal
)

var phaseNames = [...]string{
	PhaseIdle:      "idle",
	PhaseForce:     "force",
	PhaseIntegrate: "integrate",
	PhaseMigrate:   "migrate",
	PhaseBarrier:   "barrier",
	PhaseSavePoint: "save-point",
	PhaseTerminal:  "terminal",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}
