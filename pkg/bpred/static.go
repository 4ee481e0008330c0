package bpred

// staticPredictor always predicts conditional branches not-taken, so
// PredictBranch never consults the BTB under it; indirect jumps still
// get BTB targets through LookupTarget.
type staticPredictor struct{}

func newStatic() *staticPredictor { return &staticPredictor{} }

func (s *staticPredictor) predict(pc uint64, ghr uint64) bool { return false }

func (s *staticPredictor) update(pc uint64, ghr uint64, taken bool) {}
