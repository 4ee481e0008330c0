package bpred

// tournament runs a global (gshare-like) and a local (per-PC history)
// predictor in parallel, selecting between them with a choice table
// trained to reward whichever was correct.
type tournament struct {
	global *gshare
	local  *localPredictor
	choice []uint8 // 2-bit counters: <2 prefers local, >=2 prefers global
	mask   uint64
}

// localPredictor keeps a per-PC history register indexing a table of
// 2-bit saturating counters.
type localPredictor struct {
	history  []uint16
	table    []uint8
	histBits uint
	mask     uint64
}

func newLocalPredictor(pcBits, histBits uint) *localPredictor {
	l := &localPredictor{
		history:  make([]uint16, 1<<pcBits),
		table:    make([]uint8, 1<<histBits),
		histBits: histBits,
		mask:     (1 << histBits) - 1,
	}
	for i := range l.table {
		l.table[i] = 1
	}
	return l
}

func (l *localPredictor) pcIndex(pc uint64) uint64 {
	return (pc >> 2) & uint64(len(l.history)-1)
}

func (l *localPredictor) predict(pc uint64) bool {
	h := l.history[l.pcIndex(pc)]
	return l.table[uint64(h)&l.mask] >= 2
}

func (l *localPredictor) update(pc uint64, taken bool) {
	idx := l.pcIndex(pc)
	h := l.history[idx]
	tIdx := uint64(h) & l.mask
	l.table[tIdx] = satUpdate(l.table[tIdx], taken)
	h <<= 1
	if taken {
		h |= 1
	}
	l.history[idx] = h
}

func newTournament(globalBits, localBits uint) *tournament {
	size := uint64(1) << globalBits
	t := &tournament{
		global: newGshare(globalBits),
		local:  newLocalPredictor(10, localBits),
		choice: make([]uint8, size),
		mask:   size - 1,
	}
	for i := range t.choice {
		t.choice[i] = 2 // weakly prefer global
	}
	return t
}

func (t *tournament) choiceIndex(pc uint64) uint64 {
	return (pc >> 2) & t.mask
}

func (t *tournament) predict(pc, ghr uint64) bool {
	if t.choice[t.choiceIndex(pc)] >= 2 {
		return t.global.predict(pc, ghr)
	}
	return t.local.predict(pc)
}

func (t *tournament) update(pc, ghr uint64, taken bool) {
	globalPred := t.global.predict(pc, ghr)
	localPred := t.local.predict(pc)

	if globalPred != localPred {
		idx := t.choiceIndex(pc)
		if globalPred == taken {
			if t.choice[idx] < 3 {
				t.choice[idx]++
			}
		} else if t.choice[idx] > 0 {
			t.choice[idx]--
		}
	}

	t.global.update(pc, ghr, taken)
	t.local.update(pc, taken)
}
