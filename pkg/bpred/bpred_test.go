package bpred

import "testing"

func TestBTBDirectMapped(t *testing.T) {
	b := newBTB(16)
	if _, ok := b.Lookup(0x100); ok {
		t.Error("empty BTB should miss")
	}
	b.Update(0x100, 0x200)
	if target, ok := b.Lookup(0x100); !ok || target != 0x200 {
		t.Errorf("BTB lookup = %#x/%v, want 0x200", target, ok)
	}

	// (pc >> 2) mod size: a colliding PC replaces the entry.
	collide := uint64(0x100 + 16*4)
	b.Update(collide, 0x300)
	if target, _ := b.Lookup(0x100); target != 0x300 {
		t.Error("colliding update should replace the target")
	}
}

func TestRASOverflowOverwritesTop(t *testing.T) {
	r := newRAS(2)
	r.Push(0x10)
	r.Push(0x20)
	r.Push(0x30) // overflow: overwrites the top entry

	if top, ok := r.Peek(); !ok || top != 0x30 {
		t.Errorf("top = %#x, want 0x30", top)
	}
	r.Pop()
	if top, _ := r.Peek(); top != 0x10 {
		t.Errorf("after pop, top = %#x, want 0x10", top)
	}
	r.Pop()
	if _, ok := r.Peek(); ok {
		t.Error("stack should be empty")
	}
	r.Pop() // underflow is a no-op
}

// trainStable feeds a repeating pattern and reports how many of the
// last `check` predictions match.
func trainStable(p *Predictor, pc uint64, pattern []bool, rounds, check int) int {
	correct := 0
	total := rounds * len(pattern)
	seen := 0
	for r := 0; r < rounds; r++ {
		for _, taken := range pattern {
			predTaken, _, _ := p.PredictBranch(pc)
			seen++
			if seen > total-check && predTaken == taken {
				correct++
			}
			p.UpdateBranch(pc, taken, pc+0x40)
		}
	}
	return correct
}

func TestPredictorsLearnStablePattern(t *testing.T) {
	kinds := []struct {
		name string
		kind Kind
	}{
		{"gshare", KindGshare},
		{"tournament", KindTournament},
		{"tage", KindTAGE},
		{"perceptron", KindPerceptron},
	}
	for _, k := range kinds {
		t.Run(k.name, func(t *testing.T) {
			p := New(k.kind, 64, 8)
			// Always-taken branch: after warmup every prediction must
			// be taken.
			if got := trainStable(p, 0x400, []bool{true}, 100, 20); got != 20 {
				t.Errorf("always-taken accuracy = %d/20", got)
			}
			// Always-not-taken at a different PC.
			if got := trainStable(p, 0x800, []bool{false}, 100, 20); got != 20 {
				t.Errorf("never-taken accuracy = %d/20", got)
			}
		})
	}
}

func TestGshareAlternatingPattern(t *testing.T) {
	p := New(KindGshare, 64, 8)
	// Alternating taken/not-taken correlates perfectly with one bit
	// of global history.
	if got := trainStable(p, 0x1000, []bool{true, false}, 200, 40); got < 38 {
		t.Errorf("alternating-pattern accuracy = %d/40", got)
	}
}

func TestStaticAlwaysNotTaken(t *testing.T) {
	p := New(KindStatic, 64, 8)
	for i := 0; i < 10; i++ {
		taken, _, _ := p.PredictBranch(0x100)
		if taken {
			t.Fatal("static predictor must predict not-taken")
		}
		p.UpdateBranch(0x100, true, 0x200)
	}
}

func TestTakenBranchTrainsBTB(t *testing.T) {
	p := New(KindGshare, 64, 8)
	p.UpdateBranch(0x500, true, 0x900)
	if target, ok := p.LookupTarget(0x500); !ok || target != 0x900 {
		t.Error("taken branch should install a BTB entry")
	}

	p2 := New(KindGshare, 64, 8)
	p2.UpdateBranch(0x500, false, 0x900)
	if _, ok := p2.LookupTarget(0x500); ok {
		t.Error("not-taken branch must not install a BTB entry")
	}
}

func TestCallReturnFlow(t *testing.T) {
	p := New(KindGshare, 64, 8)
	p.OnCall(0x100, 0x104, 0x4000)

	if target, ok := p.LookupTarget(0x100); !ok || target != 0x4000 {
		t.Error("call should train the BTB for the call site")
	}
	if ret, ok := p.PredictReturn(); !ok || ret != 0x104 {
		t.Errorf("predicted return = %#x, want 0x104", ret)
	}
	p.OnReturn()
	if _, ok := p.PredictReturn(); ok {
		t.Error("return stack should be empty after pop")
	}
}

func TestTageLoopPredictor(t *testing.T) {
	p := newTage()
	// A loop branch taken 7 times then not-taken, repeatedly. Once the
	// loop predictor is confident, the exit is predicted correctly.
	pc := uint64(0x2000)
	var ghr uint64
	step := func(taken bool) bool {
		pred := p.predict(pc, ghr)
		p.update(pc, ghr, taken)
		ghr = ghr<<1 | boolAsU64(taken)
		return pred
	}
	for round := 0; round < 50; round++ {
		for i := 0; i < 7; i++ {
			step(true)
		}
		step(false)
	}
	// Final round: the exit iteration must be predicted not-taken.
	for i := 0; i < 7; i++ {
		if !step(true) {
			t.Fatalf("loop body iteration %d predicted not-taken", i)
		}
	}
	if step(false) {
		t.Error("loop exit should be predicted not-taken")
	}
}

func boolAsU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func TestPerceptronThreshold(t *testing.T) {
	p := newPerceptron(10, 16)
	// Training stops once the output clears the threshold, so constant
	// training leaves the weights bounded.
	for i := 0; i < 10000; i++ {
		p.update(0x40, 0, true)
	}
	if !p.predict(0x40, 0) {
		t.Error("heavily-trained branch should predict taken")
	}
}
