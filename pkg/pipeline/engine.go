package pipeline

// Backend is the pluggable execution-engine abstraction: an in-order
// implementation is provided today; an out-of-order
// engine would replace the FIFO issue queue with reservation stations
// without touching the frontend or the device layer.
type Backend interface {
	// Tick runs one cycle of all backend stages (commit first, then
	// writeback, memory2, memory1, issue+execute, dispatch).
	Tick(h *Hart, renameOutput *[]RenameIssueEntry)

	// CanAccept reports how many instructions rename may dispatch
	// this cycle.
	CanAccept() int

	// Flush discards all speculative state. Committed stores remain.
	Flush(h *Hart)

	// ReadCSRSpeculative reads a CSR, honoring deferred in-flight
	// CSR writes in the ROB.
	ReadCSRSpeculative(h *Hart, addr uint32) uint64

	ROB() *ROB
	StoreBuffer() *StoreBuffer
	Scoreboard() *Scoreboard
}

// Pipeline couples the frontend and a backend engine through the
// rename-output latch.
type Pipeline struct {
	Frontend *Frontend
	Engine   Backend

	renameOutput []RenameIssueEntry
}

// Config sizes the pipeline structures.
type Config struct {
	Width           int
	ROBSize         int
	StoreBufferSize int
}

// NewPipeline builds an in-order pipeline of the given width.
func NewPipeline(cfg Config, fe *Frontend) *Pipeline {
	return &Pipeline{
		Frontend: fe,
		Engine:   NewInOrderEngine(cfg),
	}
}

// Tick advances the whole pipeline by one cycle. The backend always
// runs (commit and the memory stages must drain even during stalls);
// if it redirected the PC (misprediction, trap, privileged return) the
// frontend and pending rename output are flushed before the frontend
// runs.
func (p *Pipeline) Tick(h *Hart) {
	pcBefore := h.PC

	p.Engine.Tick(h, &p.renameOutput)

	if h.PC != pcBefore {
		p.Frontend.Flush()
		p.renameOutput = p.renameOutput[:0]
	}

	if h.FatalTrap == nil && !h.WFIWaiting {
		p.Frontend.Tick(h, p.Engine, &p.renameOutput)
	}
}

// Flush discards the entire speculative pipeline.
func (p *Pipeline) Flush(h *Hart) {
	p.Frontend.Flush()
	p.renameOutput = p.renameOutput[:0]
	p.Engine.Flush(h)
}
