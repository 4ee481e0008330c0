package cache

// MemController models a DRAM-style memory controller with open-row
// tracking: an access to the currently open row of a bank pays the
// row-hit latency, anything else pays the row-miss latency (precharge
// plus activate).
type MemController struct {
	RowHitLatency  uint64
	RowMissLatency uint64

	rowShift uint
	bankMask uint64
	openRow  []uint64
	rowValid []bool
}

// MemConfig parameterizes a MemController. Zero values select a 2 KiB
// row across 8 banks with 20/60-cycle hit/miss latencies.
type MemConfig struct {
	RowBytes       uint64
	Banks          int
	RowHitLatency  uint64
	RowMissLatency uint64
}

// NewMemController creates a controller from cfg.
func NewMemController(cfg MemConfig) *MemController {
	rowBytes := cfg.RowBytes
	if rowBytes == 0 {
		rowBytes = 2048
	}
	banks := cfg.Banks
	if banks <= 0 {
		banks = 8
	}
	hit := cfg.RowHitLatency
	if hit == 0 {
		hit = 20
	}
	miss := cfg.RowMissLatency
	if miss == 0 {
		miss = 60
	}

	var shift uint
	for uint64(1)<<shift < rowBytes {
		shift++
	}
	return &MemController{
		RowHitLatency:  hit,
		RowMissLatency: miss,
		rowShift:       shift,
		bankMask:       uint64(banks - 1),
		openRow:        make([]uint64, banks),
		rowValid:       make([]bool, banks),
	}
}

// Access returns the latency of a DRAM access at addr and opens its
// row.
func (m *MemController) Access(addr uint64) uint64 {
	row := addr >> m.rowShift
	bank := int(row & m.bankMask)
	if m.rowValid[bank] && m.openRow[bank] == row {
		return m.RowHitLatency
	}
	m.openRow[bank] = row
	m.rowValid[bank] = true
	return m.RowMissLatency
}
