package scoring

import (
	"errors"
)

// Scorer kinds.
const (
	KindRule    = "rule"
	KindLearned = "learned"
)

// Factory errors
var (
	ErrUnknownScorerKind  = errors.New("unknown scorer kind")
	ErrMissingModelParams = errors.New("learned scorer requires model params")
	ErrInvalidModelParams = errors.New("invalid model params")
)

// Config selects and parameterizes a scorer.
type Config struct {
	Kind       string
	Rule       RuleParams
	ParamsPath string       // learned: file to load
	Params     *ModelParams // learned: in-memory params, take precedence over ParamsPath
}

// FromConfig creates the configured scorer wrapped in an Adapter.
// Returns clear errors for missing/invalid params.
func FromConfig(cfg Config) (*Adapter, error) {
	switch cfg.Kind {
	case KindRule, "":
		return NewAdapter(NewRuleScorer(cfg.Rule)), nil
	case KindLearned:
		return fromLearnedConfig(cfg)
	default:
		return nil, ErrUnknownScorerKind
	}
}

func fromLearnedConfig(cfg Config) (*Adapter, error) {
	params := cfg.Params
	if params == nil {
		if cfg.ParamsPath == "" {
			return nil, ErrMissingModelParams
		}
		loaded, err := LoadParams(cfg.ParamsPath)
		if err != nil {
			return nil, err
		}
		params = loaded
	} else if err := params.Validate(); err != nil {
		return nil, err
	}
	return NewAdapter(NewLearnedScorer(*params)), nil
}
