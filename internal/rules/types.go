package rules

// #region rule-set
// RuleSet is the active ethical policy evaluated by the compliance gate.
// It is immutable once published through a Holder.
type RuleSet struct {
	Version            string             `json:"version" yaml:"version" validate:"required"`
	Description        string             `json:"description,omitempty" yaml:"description,omitempty"`
	ProhibitedConcepts []string           `json:"prohibited_concepts" yaml:"prohibited_concepts" validate:"dive,required"`
	RequiredVirtues    []string           `json:"required_virtues" yaml:"required_virtues" validate:"dive,required"`
	EmotionValidation  *EmotionValidation `json:"emotion_validation,omitempty" yaml:"emotion_validation,omitempty"`
	EthicalWeights     map[string]float64 `json:"ethical_weights,omitempty" yaml:"ethical_weights,omitempty"`
}

// EmotionValidation maps emotion labels to the score above which a warning is raised.
type EmotionValidation struct {
	WarningThresholds map[string]float64 `json:"warning_thresholds" yaml:"warning_thresholds" validate:"dive,keys,required,endkeys,gte=0,lte=1"`
}

// Thresholds returns the warning thresholds, nil when none are configured.
func (r RuleSet) Thresholds() map[string]float64 {
	if r.EmotionValidation == nil {
		return nil
	}
	return r.EmotionValidation.WarningThresholds
}

// #endregion rule-set

// #region defaults
// Default returns the built-in rule set used when no rules file is usable.
func Default() RuleSet {
	return RuleSet{
		Version:            "1.0",
		Description:        "built-in default rule set",
		ProhibitedConcepts: []string{"violence", "harm", "deception", "theft", "abuse"},
		RequiredVirtues:    []string{"temperance", "prudence", "justice", "fortitude"},
		EthicalWeights: map[string]float64{
			"truthfulness": 1.0,
			"compassion":   0.9,
			"wisdom":       0.8,
		},
	}
}

// #endregion defaults
