package invoice

import (
	"encoding/json"
	"fmt"
)

// Flag is a three-valued risk indicator. The zero value is FlagNotEvaluated,
// which marshals to JSON null, so a check that was skipped is distinguishable
// from one that ran and came back clean.
type Flag int

const (
	FlagNotEvaluated Flag = iota
	FlagTrue
	FlagFalse
)

// Evaluated reports whether the check behind this flag actually ran.
func (f Flag) Evaluated() bool {
	return f != FlagNotEvaluated
}

func (f Flag) String() string {
	switch f {
	case FlagTrue:
		return "true"
	case FlagFalse:
		return "false"
	default:
		return "not-evaluated"
	}
}

// MarshalJSON encodes FlagTrue/FlagFalse as booleans and FlagNotEvaluated
// as null.
func (f Flag) MarshalJSON() ([]byte, error) {
	switch f {
	case FlagTrue:
		return []byte("true"), nil
	case FlagFalse:
		return []byte("false"), nil
	case FlagNotEvaluated:
		return []byte("null"), nil
	default:
		return nil, fmt.Errorf("invalid flag value: %d", int(f))
	}
}

// UnmarshalJSON decodes true/false/null into the corresponding flag state.
func (f *Flag) UnmarshalJSON(data []byte) error {
	var v *bool
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshaling flag: %w", err)
	}
	switch {
	case v == nil:
		*f = FlagNotEvaluated
	case *v:
		*f = FlagTrue
	default:
		*f = FlagFalse
	}
	return nil
}

// flagOf converts a computed check result into a Flag.
func flagOf(b bool) Flag {
	if b {
		return FlagTrue
	}
	return FlagFalse
}
