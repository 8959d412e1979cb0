package reconcile

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
)

// ErrInvalidConfig is returned when project config text cannot be parsed.
var ErrInvalidConfig = errors.New("invalid project config")

// Parser turns raw config file text into a structured value.
type Parser interface {
	Parse(text string) (map[string]any, error)
}

// TOMLParser parses TOML config files.
type TOMLParser struct{}

// Parse decodes text as TOML. Empty text yields an empty map.
func (TOMLParser) Parse(text string) (map[string]any, error) {
	out := make(map[string]any)
	if _, err := toml.Decode(text, &out); err != nil {
		var perr toml.ParseError
		if errors.As(err, &perr) {
			return nil, fmt.Errorf("%w: line %d: %s", ErrInvalidConfig, perr.Position.Line, perr.Message)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return out, nil
}
