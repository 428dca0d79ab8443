package eval

// #region eval-config
// EvalConfig holds tolerances for soul validation.
type EvalConfig struct {
	NormTolerance float64 // per-dimension tolerance on |norm-1|
}

// DefaultEvalConfig returns the default tolerances.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		NormTolerance: 1e-6,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of soul validation.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// #endregion eval-result
