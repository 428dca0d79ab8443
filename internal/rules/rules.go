package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for rule files that are neither JSON nor YAML.
var ErrUnsupportedFormat = errors.New("rules: unsupported file format")

var validate = validator.New(validator.WithRequiredStructEnabled())

// #region load
// Load reads the rule set at path. A missing, corrupt or invalid file falls
// back to Default and logs a warning; it never fails start-up.
func Load(path string) RuleSet {
	if path == "" {
		log.Info().Str("component", "rules").Msg("no rules file configured, using defaults")
		return Default()
	}
	rs, err := ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("component", "rules").Str("path", path).
			Msg("rules file unusable, using defaults")
		return Default()
	}
	log.Info().Str("component", "rules").Str("path", path).Str("version", rs.Version).
		Int("prohibited", len(rs.ProhibitedConcepts)).Msg("rules loaded")
	return rs
}

// ReadFile strictly reads and validates the rule set at path.
func ReadFile(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("read rules: %w", err)
	}
	return Parse(data, formatOf(path))
}

// Parse decodes data in the given format ("json" or "yaml") and validates it.
func Parse(data []byte, format string) (RuleSet, error) {
	var rs RuleSet
	switch format {
	case "json":
		if err := json.Unmarshal(data, &rs); err != nil {
			return RuleSet{}, fmt.Errorf("decode rules json: %w", err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &rs); err != nil {
			return RuleSet{}, fmt.Errorf("decode rules yaml: %w", err)
		}
	default:
		return RuleSet{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err := validate.Struct(rs); err != nil {
		return RuleSet{}, fmt.Errorf("validate rules: %w", err)
	}
	return rs, nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	default:
		return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
}

// #endregion load

// #region holder
// Holder publishes the current rule set. Readers take one snapshot per
// request so a swap never changes rules mid-evaluation.
type Holder struct {
	current atomic.Pointer[RuleSet]
}

// NewHolder returns a holder publishing rs.
func NewHolder(rs RuleSet) *Holder {
	h := &Holder{}
	h.current.Store(&rs)
	return h
}

// Current returns the published rule set.
func (h *Holder) Current() RuleSet {
	return *h.current.Load()
}

// Swap publishes rs and returns the previous rule set.
func (h *Holder) Swap(rs RuleSet) RuleSet {
	return *h.current.Swap(&rs)
}

// #endregion holder
