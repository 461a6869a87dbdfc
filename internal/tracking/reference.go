package tracking

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidReference is returned for references that cannot be parsed.
var ErrInvalidReference = errors.New("invalid model reference")

// ReferenceKind tells how a Reference is resolved.
type ReferenceKind int

const (
	KindRegistry ReferenceKind = iota + 1 // models:/<name>/<version|latest>
	KindRun                               // runs:/<run_id>/<artifact path>
	KindFile                              // file:<path> or a bare *.json path
)

// Reference addresses a model artifact.
type Reference struct {
	Kind         ReferenceKind
	Name         string // registry model name
	Version      int    // registry version, 0 means latest
	RunID        string
	ArtifactPath string
	Path         string // file path
	raw          string
}

func (r Reference) String() string {
	return r.raw
}

// ParseReference parses a model reference string.
func ParseReference(s string) (Reference, error) {
	s = strings.TrimSpace(s)
	ref := Reference{raw: s}

	switch {
	case strings.HasPrefix(s, "models:/"):
		parts := strings.Split(strings.TrimPrefix(s, "models:/"), "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return Reference{}, fmt.Errorf("%w: %q: expected models:/<name>/<version|latest>", ErrInvalidReference, s)
		}
		ref.Kind = KindRegistry
		ref.Name = parts[0]
		if parts[1] != "latest" {
			v, err := strconv.Atoi(parts[1])
			if err != nil || v < 1 {
				return Reference{}, fmt.Errorf("%w: %q: version must be a positive integer or latest", ErrInvalidReference, s)
			}
			ref.Version = v
		}

	case strings.HasPrefix(s, "runs:/"):
		rest := strings.TrimPrefix(s, "runs:/")
		runID, path, ok := strings.Cut(rest, "/")
		if !ok || runID == "" || path == "" {
			return Reference{}, fmt.Errorf("%w: %q: expected runs:/<run_id>/<path>", ErrInvalidReference, s)
		}
		ref.Kind = KindRun
		ref.RunID = runID
		ref.ArtifactPath = path

	case strings.HasPrefix(s, "file:"):
		path := strings.TrimPrefix(s, "file:")
		if path == "" {
			return Reference{}, fmt.Errorf("%w: %q: empty file path", ErrInvalidReference, s)
		}
		ref.Kind = KindFile
		ref.Path = path

	case strings.HasSuffix(s, ".json"):
		ref.Kind = KindFile
		ref.Path = s

	default:
		return Reference{}, fmt.Errorf("%w: %q", ErrInvalidReference, s)
	}

	return ref, nil
}
