package classify

// Kind labels an anomalous listing. Positive deviation always means priced
// above the estimate.
type Kind string

const (
	KindNone        Kind = ""
	KindUnderPriced Kind = "under-priced"
	KindOverPriced  Kind = "over-priced"
)

// Result is the deviation classification for one listing. DeviationPct is
// set on the model path, Sigma on the statistical fallback path; both nil
// means the deviation was not computable and the listing is treated as
// normal.
type Result struct {
	DeviationPct *float64
	Sigma        *float64
	IsAnomaly    bool
	Kind         Kind
}

// ByModel classifies against a model-predicted fair price. thresholdPct is
// the anomaly boundary in percent; the boundary itself is normal (strict
// inequality). A non-positive prediction makes the deviation non-computable.
func ByModel(observedPrice, predictedPrice, thresholdPct float64) Result {
	if predictedPrice <= 0 {
		return Result{}
	}
	dev := (observedPrice - predictedPrice) / predictedPrice * 100
	res := Result{DeviationPct: &dev}
	switch {
	case dev < -thresholdPct:
		res.IsAnomaly = true
		res.Kind = KindUnderPriced
	case dev > thresholdPct:
		res.IsAnomaly = true
		res.Kind = KindOverPriced
	}
	return res
}

// ByGroupStat classifies a price-per-area against its group distribution in
// standard-deviation units. An undefined std (group of one) or a
// non-positive std skips classification entirely.
func ByGroupStat(ppa, groupMean float64, groupStd *float64, sigmaMultiplier float64) Result {
	if groupStd == nil || *groupStd <= 0 {
		return Result{}
	}
	z := (ppa - groupMean) / *groupStd
	res := Result{Sigma: &z}
	switch {
	case z < -sigmaMultiplier:
		res.IsAnomaly = true
		res.Kind = KindUnderPriced
	case z > sigmaMultiplier:
		res.IsAnomaly = true
		res.Kind = KindOverPriced
	}
	return res
}
