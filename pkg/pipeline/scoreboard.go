package pipeline

// tagRef is an optional ROB tag.
type tagRef struct {
	tag   uint64
	valid bool
}

// Scoreboard maps each architectural register to the ROB tag of its
// latest in-flight producer, so issue can do a single direct ROB
// lookup per source operand. x0 is never marked.
type Scoreboard struct {
	gpr [32]tagRef
	fpr [32]tagRef
}

// SetProducer marks reg as having a pending writer with the given tag.
func (s *Scoreboard) SetProducer(reg uint8, isFP bool, tag uint64) {
	if isFP {
		s.fpr[reg] = tagRef{tag: tag, valid: true}
	} else if reg != 0 {
		s.gpr[reg] = tagRef{tag: tag, valid: true}
	}
}

// Producer returns the tag of reg's latest in-flight writer, if any.
func (s *Scoreboard) Producer(reg uint8, isFP bool) (uint64, bool) {
	r := s.gpr[reg]
	if isFP {
		r = s.fpr[reg]
	}
	return r.tag, r.valid
}

// ClearIfMatch clears reg's pending writer only when the tag still
// matches, so a committing instruction never clears a newer rename's
// claim (write-after-write).
func (s *Scoreboard) ClearIfMatch(reg uint8, isFP bool, tag uint64) {
	slot := &s.gpr[reg]
	if isFP {
		slot = &s.fpr[reg]
	}
	if slot.valid && slot.tag == tag {
		*slot = tagRef{}
	}
}

// Flush clears every entry.
func (s *Scoreboard) Flush() {
	s.gpr = [32]tagRef{}
	s.fpr = [32]tagRef{}
}

// RebuildFromROB re-marks producers from the surviving ROB entries
// after a partial flush, walking head-to-tail so the latest writer per
// register wins.
func (s *Scoreboard) RebuildFromROB(rob *ROB) {
	s.Flush()
	rob.ForEach(func(e *ROBEntry) {
		if writesFP(e) {
			s.fpr[e.Dec.Rd] = tagRef{tag: e.Tag, valid: true}
		} else if writesInt(e) && e.Dec.Rd != 0 {
			s.gpr[e.Dec.Rd] = tagRef{tag: e.Tag, valid: true}
		}
	})
}
