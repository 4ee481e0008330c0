package pipeline

// InOrderEngine is the in-order backend: a FIFO issue queue feeding a
// single execution path. Stages run in reverse order each cycle so
// each mutation is observed by stages earlier in program order within
// the same cycle.
type InOrderEngine struct {
	rob   *ROB
	sb    *StoreBuffer
	sc    *Scoreboard
	iq    *issueQueue
	width int

	execMem1 []ExMem1Entry
	mem1Mem2 []Mem1Mem2Entry
	mem2Wb   []Mem2WbEntry

	// mem1Stall counts remaining D-TLB/D-cache latency cycles.
	mem1Stall uint64
}

// NewInOrderEngine builds the in-order backend from cfg.
func NewInOrderEngine(cfg Config) *InOrderEngine {
	width := cfg.Width
	if width <= 0 {
		width = 1
	}
	robSize := cfg.ROBSize
	if robSize <= 0 {
		robSize = 32
	}
	sbSize := cfg.StoreBufferSize
	if sbSize <= 0 {
		sbSize = 16
	}
	return &InOrderEngine{
		rob:   NewROB(robSize),
		sb:    NewStoreBuffer(sbSize),
		sc:    &Scoreboard{},
		iq:    newIssueQueue(robSize),
		width: width,
	}
}

// Tick runs one backend cycle: commit, writeback, memory2, memory1,
// issue+execute, then dispatch from rename.
func (e *InOrderEngine) Tick(h *Hart, renameOutput *[]RenameIssueEntry) {
	res := e.commit(h)
	if res.trap != nil {
		e.Flush(h)
		h.EnterTrap(*res.trap, res.epc)
		return
	}
	if res.enterWFI {
		e.Flush(h)
		h.WFIWaiting = true
		h.WFIPC = res.wfiResume
		h.PC = res.wfiResume
		return
	}
	if res.fullFlush {
		e.Flush(h)
		return
	}

	e.writeback(h)
	e.memory2(h)

	if e.mem1Stall > 0 {
		e.mem1Stall--
		h.Stats.StallsMem++
	} else {
		e.memory1(h)
	}

	// Backpressure: if memory1 has not consumed the previous execute
	// results, running issue+execute would overwrite held entries.
	backpressured := len(e.execMem1) > 0

	needsFlush := false
	if !backpressured {
		issued := e.iq.selectReady(e.width, e.rob, h)
		var results []ExMem1Entry
		results, needsFlush = e.execute(h, issued)
		e.execMem1 = append(e.execMem1, results...)
	}

	if needsFlush {
		e.recoverAfterRedirect(h, renameOutput)
	}

	if !needsFlush && !backpressured && len(*renameOutput) > 0 {
		e.iq.dispatch(*renameOutput)
		*renameOutput = (*renameOutput)[:0]
	}
}

// recoverAfterRedirect implements the misprediction recovery: flush
// the issue queue and pending rename output, keep
// the entries already produced into execute→memory1 (the older,
// correctly-predicted path), drop pre-branch stall accounting, discard
// ROB and store-buffer entries strictly newer than the last surviving
// tag, and rebuild the scoreboard from the survivors. The PC was
// already set by execute; the frontend flushes next cycle.
func (e *InOrderEngine) recoverAfterRedirect(h *Hart, renameOutput *[]RenameIssueEntry) {
	e.iq.flush()
	*renameOutput = (*renameOutput)[:0]
	e.mem1Stall = 0

	if len(e.execMem1) > 0 {
		keepTag := e.execMem1[len(e.execMem1)-1].Tag
		e.rob.FlushAfter(keepTag)
		e.sb.FlushAfter(keepTag)
	}
	e.sc.RebuildFromROB(e.rob)
}

// writeback marks ROB entries completed (or propagates a late trap).
func (e *InOrderEngine) writeback(h *Hart) {
	for i := range e.mem2Wb {
		wb := &e.mem2Wb[i]
		if wb.Trap != nil {
			e.rob.MarkFaulted(wb.Tag, *wb.Trap)
			continue
		}
		e.rob.MarkCompleted(wb.Tag, resultValue(*wb))
	}
	e.mem2Wb = e.mem2Wb[:0]
}

// CanAccept bounds rename dispatch by ROB, store-buffer, and
// issue-queue free slots, and the configured width.
func (e *InOrderEngine) CanAccept() int {
	n := e.rob.FreeSlots()
	if f := e.sb.FreeSlots(); f < n {
		n = f
	}
	if f := e.iq.freeSlots(); f < n {
		n = f
	}
	if e.width < n {
		n = e.width
	}
	return n
}

// Flush discards all speculative backend state; committed stores
// remain in the store buffer to drain.
func (e *InOrderEngine) Flush(h *Hart) {
	e.rob.FlushAll()
	e.sb.FlushSpeculative()
	e.sc.Flush()
	e.iq.flush()
	e.execMem1 = nil
	e.mem1Mem2 = nil
	e.mem2Wb = nil
	e.mem1Stall = 0
}

// ROB returns the reorder buffer handle.
func (e *InOrderEngine) ROB() *ROB { return e.rob }

// StoreBuffer returns the store-buffer handle.
func (e *InOrderEngine) StoreBuffer() *StoreBuffer { return e.sb }

// Scoreboard returns the scoreboard handle.
func (e *InOrderEngine) Scoreboard() *Scoreboard { return e.sc }
