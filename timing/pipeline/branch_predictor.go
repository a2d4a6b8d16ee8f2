package pipeline

// BranchPredictorConfig sizes the predictor tables. Sizes must be powers of
// two; zero picks the default.
type BranchPredictorConfig struct {
	// BHTSize is the number of 2-bit counters.
	BHTSize uint32
	// BTBSize is the number of target buffer entries.
	BTBSize uint32
}

// DefaultBranchPredictorConfig returns a default configuration.
func DefaultBranchPredictorConfig() BranchPredictorConfig {
	return BranchPredictorConfig{
		BHTSize: 1024,
		BTBSize: 256,
	}
}

// BranchPredictorStats counts resolved branches that fetch steered.
type BranchPredictorStats struct {
	// Predictions is the number of branches resolved in the memory stage.
	Predictions uint64
	// Correct is the number whose successor fetch guessed.
	Correct uint64
	// Mispredictions is the number that flushed.
	Mispredictions uint64
	// BTBHits is the number of predictions that knew a target.
	BTBHits uint64
	// BTBMisses is the number that did not.
	BTBMisses uint64
}

// Accuracy returns the share of correct predictions as a percentage.
func (s BranchPredictorStats) Accuracy() float64 {
	return percent(s.Correct, s.Predictions)
}

// MispredictionRate returns the share of mispredictions as a percentage.
func (s BranchPredictorStats) MispredictionRate() float64 {
	return percent(s.Mispredictions, s.Predictions)
}

// BTBHitRate returns the target buffer hit rate as a percentage.
func (s BranchPredictorStats) BTBHitRate() float64 {
	return percent(s.BTBHits, s.BTBHits+s.BTBMisses)
}

func percent(n, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// Prediction is what fetch assumed about one branch.
type Prediction struct {
	// Taken is the counter's direction.
	Taken bool

	// Target is the buffered target, valid when TargetKnown.
	Target      uint32
	TargetKnown bool
}

// Next returns the address fetch continues at after the branch at pc. A
// taken guess without a buffered target falls through.
func (p Prediction) Next(pc uint32) uint32 {
	if p.Taken && p.TargetKnown {
		return p.Target
	}
	return pc + 4
}

// Counter states.
const (
	strongNotTaken uint8 = iota
	weakNotTaken
	weakTaken
	strongTaken
)

type btbEntry struct {
	valid  bool
	pc     uint32
	target uint32
}

// BranchPredictor is a bimodal predictor of 2-bit saturating counters with
// a direct-mapped branch target buffer. Fetch asks Predict for every branch
// it meets; the memory stage reports the outcome through Update.
type BranchPredictor struct {
	bht []uint8
	btb []btbEntry

	stats BranchPredictorStats
}

// NewBranchPredictor creates a predictor with every counter weakly taken.
func NewBranchPredictor(config BranchPredictorConfig) *BranchPredictor {
	def := DefaultBranchPredictorConfig()
	if config.BHTSize == 0 {
		config.BHTSize = def.BHTSize
	}
	if config.BTBSize == 0 {
		config.BTBSize = def.BTBSize
	}

	bp := &BranchPredictor{
		bht: make([]uint8, config.BHTSize),
		btb: make([]btbEntry, config.BTBSize),
	}
	bp.Reset()
	return bp
}

// Word-aligned addresses index both tables.
func tableIndex(pc uint32, size int) int {
	return int(pc>>2) & (size - 1)
}

// Predict looks up the branch at pc. It changes no state.
func (bp *BranchPredictor) Predict(pc uint32) Prediction {
	pred := Prediction{Taken: bp.bht[tableIndex(pc, len(bp.bht))] >= weakTaken}
	if e := bp.btb[tableIndex(pc, len(bp.btb))]; e.valid && e.pc == pc {
		pred.Target = e.target
		pred.TargetKnown = true
	}
	return pred
}

// Update scores pred, made at fetch for the branch at pc, against what the
// branch did and trains the tables. It reports whether fetch went the right
// way.
func (bp *BranchPredictor) Update(pc uint32, pred Prediction, taken bool, target uint32) bool {
	actual := pc + 4
	if taken {
		actual = target
	}
	correct := pred.Next(pc) == actual

	bp.stats.Predictions++
	if correct {
		bp.stats.Correct++
	} else {
		bp.stats.Mispredictions++
	}
	if pred.TargetKnown {
		bp.stats.BTBHits++
	} else {
		bp.stats.BTBMisses++
	}

	i := tableIndex(pc, len(bp.bht))
	switch c := bp.bht[i]; {
	case taken && c < strongTaken:
		bp.bht[i] = c + 1
	case !taken && c > strongNotTaken:
		bp.bht[i] = c - 1
	}
	if taken {
		bp.btb[tableIndex(pc, len(bp.btb))] = btbEntry{valid: true, pc: pc, target: target}
	}
	return correct
}

// Stats returns the predictor statistics.
func (bp *BranchPredictor) Stats() BranchPredictorStats {
	return bp.stats
}

// Reset clears the tables and statistics.
func (bp *BranchPredictor) Reset() {
	for i := range bp.bht {
		bp.bht[i] = weakTaken
	}
	clear(bp.btb)
	bp.stats = BranchPredictorStats{}
}
