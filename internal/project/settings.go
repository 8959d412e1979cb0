package project

import (
	"reflect"
	"strings"

	"github.com/mitchellh/copystructure"
)

// RepositoryKey is the settings key under which the remote descriptor appears
// in the merged view.
const RepositoryKey = "repository"

// Settings is the merge target written to by two unrelated producers.
//
// Config is replaced wholesale by the filesystem producer. Repository is
// owned by the remote producer. Neither writer touches the other's region.
type Settings struct {
	Config     map[string]any `json:"config,omitempty"`
	Repository string         `json:"repository,omitempty"`
}

// Clone returns a deep copy of the settings.
func (s Settings) Clone() Settings {
	return Settings{
		Config:     cloneMap(s.Config),
		Repository: s.Repository,
	}
}

// Equal reports whether two settings values are semantically identical.
func (s Settings) Equal(other Settings) bool {
	if s.Repository != other.Repository {
		return false
	}
	if len(s.Config) == 0 && len(other.Config) == 0 {
		return true
	}
	return reflect.DeepEqual(s.Config, other.Config)
}

// Map renders the merged view: the config map with the repository key
// overlaid when a remote is known.
func (s Settings) Map() map[string]any {
	m := cloneMap(s.Config)
	if m == nil {
		m = make(map[string]any)
	}
	if s.Repository != "" {
		m[RepositoryKey] = s.Repository
	}
	return m
}

// Lookup walks the merged view along a dotted key such as "server.port".
func (s Settings) Lookup(key string) (any, bool) {
	var cur any = s.Map()
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return copystructure.Must(copystructure.Copy(m)).(map[string]any)
}
