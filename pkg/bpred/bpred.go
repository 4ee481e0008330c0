package bpred

// Kind selects which direction predictor a Predictor uses.
type Kind int

const (
	KindStatic Kind = iota
	KindGshare
	KindTournament
	KindTAGE
	KindPerceptron
)

// direction is the per-algorithm contract: predict whether a branch at
// pc is taken, and train on the resolved outcome. All state specific
// to a direction predictor (pattern-history tables, per-PC counters,
// tagged banks, weight vectors) lives behind this interface; the BTB,
// RAS, and global-history register are shared across every kind.
type direction interface {
	predict(pc uint64, ghr uint64) bool
	update(pc uint64, ghr uint64, taken bool)
}

// Predictor is the branch-prediction unit consumed by the pipeline
// frontend: a shared BTB and RAS plus a pluggable direction predictor.
type Predictor struct {
	btb *BTB
	ras *RAS
	dir direction
	ghr uint64
}

// New constructs a Predictor of the given kind with the given BTB/RAS
// sizes. Gshare/tournament/TAGE/perceptron-specific table sizes use
// fixed defaults and are not configurable.
func New(kind Kind, btbSize, rasSize int) *Predictor {
	var dir direction
	switch kind {
	case KindGshare:
		dir = newGshare(14)
	case KindTournament:
		dir = newTournament(14, 10)
	case KindTAGE:
		dir = newTage()
	case KindPerceptron:
		dir = newPerceptron(14, 32)
	default:
		dir = newStatic()
	}
	return &Predictor{btb: newBTB(btbSize), ras: newRAS(rasSize), dir: dir}
}

// PredictBranch predicts whether the branch at pc is taken and, if so,
// its target from the BTB.
func (p *Predictor) PredictBranch(pc uint64) (taken bool, target uint64, hasTarget bool) {
	taken = p.dir.predict(pc, p.ghr)
	if taken {
		target, hasTarget = p.btb.Lookup(pc)
	}
	return taken, target, hasTarget
}

// UpdateBranch trains the direction predictor, updates the BTB on a
// taken branch, and shifts the global-history register.
func (p *Predictor) UpdateBranch(pc uint64, taken bool, target uint64) {
	p.dir.update(pc, p.ghr, taken)
	if taken {
		p.btb.Update(pc, target)
	}
	p.ghr = (p.ghr << 1)
	if taken {
		p.ghr |= 1
	}
}

// LookupTarget consults the BTB directly, for unconditional jumps
// (JAL/JALR) whose direction is already known taken at decode and
// which therefore bypass the direction predictor entirely.
func (p *Predictor) LookupTarget(pc uint64) (uint64, bool) {
	return p.btb.Lookup(pc)
}

// UpdateTarget trains the BTB for an unconditional jump without
// touching the direction predictor or global history.
func (p *Predictor) UpdateTarget(pc, target uint64) {
	p.btb.Update(pc, target)
}

// OnCall trains the BTB for the call site and pushes the return
// address onto the RAS.
func (p *Predictor) OnCall(pc, retAddr, target uint64) {
	p.ras.Push(retAddr)
	p.btb.Update(pc, target)
}

// PredictReturn returns the top of the return-address stack.
func (p *Predictor) PredictReturn() (uint64, bool) {
	return p.ras.Peek()
}

// OnReturn pops the return-address stack.
func (p *Predictor) OnReturn() {
	p.ras.Pop()
}
