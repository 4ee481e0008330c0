package pipeline

// issueQueue is the in-order FIFO issue unit. Its capacity must be at
// least the ROB size: during a backend stall, rename keeps allocating
// ROB entries that accumulate in the rename output, and all of them
// are dispatched at once when the stall ends. A smaller queue would
// silently drop entries and leave ROB slots stuck issued forever.
type issueQueue struct {
	queue    []RenameIssueEntry
	capacity int
}

func newIssueQueue(capacity int) *issueQueue {
	return &issueQueue{queue: make([]RenameIssueEntry, 0, capacity), capacity: capacity}
}

func (q *issueQueue) dispatch(entries []RenameIssueEntry) {
	for _, e := range entries {
		if len(q.queue) < q.capacity {
			q.queue = append(q.queue, e)
		}
	}
}

func (q *issueQueue) freeSlots() int { return q.capacity - len(q.queue) }

func (q *issueQueue) flush() { q.queue = q.queue[:0] }

// selectReady issues up to width entries in program order, reading each
// source operand by its rename-time tag: tag absent reads the
// architectural file; a completed ROB entry bypasses its result; an
// in-flight entry stalls the head and everything behind it; a tag
// whose entry is gone means the value already committed to the file.
func (q *issueQueue) selectReady(width int, rob *ROB, h *Hart) []RenameIssueEntry {
	var selected []RenameIssueEntry

	for len(selected) < width && len(q.queue) > 0 {
		e := &q.queue[0]

		// Faulted entries pass through without operand reads.
		if e.Trap == nil {
			rv1, ok1 := readOperand(h, rob, e.Dec.Rs1, e.Dec.Rs1IsFP, e.Rs1Tag)
			rv2, ok2 := readOperand(h, rob, e.Dec.Rs2, e.Dec.Rs2IsFP, e.Rs2Tag)
			rv3, ok3 := readOperand(h, rob, e.Dec.Rs3, e.Dec.Rs3IsFP, e.Rs3Tag)
			if !ok1 || !ok2 || !ok3 {
				h.Stats.StallsData++
				break
			}
			e.RV1, e.RV2, e.RV3 = rv1, rv2, rv3
		}

		selected = append(selected, *e)
		q.queue = q.queue[:copy(q.queue, q.queue[1:])]
	}
	return selected
}

// readOperand resolves one source value by tag; ok is false when the
// producer is still in flight.
func readOperand(h *Hart, rob *ROB, reg uint8, isFP bool, t tagRef) (uint64, bool) {
	if !isFP && reg == 0 {
		return 0, true
	}
	if !t.valid {
		if isFP {
			return h.FPR[reg], true
		}
		return h.Reg(reg), true
	}
	entry := rob.Find(t.tag)
	if entry == nil {
		// Producer already committed; the value is in the file.
		if isFP {
			return h.FPR[reg], true
		}
		return h.Reg(reg), true
	}
	switch entry.State {
	case ROBCompleted:
		return entry.Result, true
	case ROBFaulted:
		// The producer will trap at commit and flush this consumer;
		// any value keeps the pipeline moving.
		return 0, true
	default:
		return 0, false
	}
}
