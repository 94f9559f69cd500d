package drawpad

import (
	"maps"

	"github.com/tphakala/drawpad/internal/drawing"
)

// Collaborators is the map-like value the canvas expects in
// appState.collaborators. It is session state and never persisted.
type Collaborators map[string]any

// collaboratorsShape tags the forms appState.collaborators arrives in.
type collaboratorsShape int

const (
	shapeAbsent  collaboratorsShape = iota // missing, null or another false-y value
	shapeMap                               // already a Collaborators value
	shapeObject                            // JSON object
	shapePairs                             // JSON array of [key, value] pairs
	shapeUnknown                           // anything else, dropped
)

func classifyCollaborators(v any) collaboratorsShape {
	switch x := v.(type) {
	case nil:
		return shapeAbsent
	case bool:
		if !x {
			return shapeAbsent
		}
		return shapeUnknown
	case string:
		if x == "" {
			return shapeAbsent
		}
		return shapeUnknown
	case Collaborators:
		return shapeMap
	case map[string]any:
		return shapeObject
	case []any:
		if _, ok := pairsToMap(x); ok {
			return shapePairs
		}
		return shapeUnknown
	default:
		return shapeUnknown
	}
}

// pairsToMap converts [[key, value], ...] with string keys. Later pairs win,
// matching map construction from an entry list.
func pairsToMap(pairs []any) (Collaborators, bool) {
	out := make(Collaborators, len(pairs))
	for _, p := range pairs {
		pair, ok := p.([]any)
		if !ok || len(pair) != 2 {
			return nil, false
		}
		key, ok := pair[0].(string)
		if !ok {
			return nil, false
		}
		out[key] = pair[1]
	}
	return out, true
}

// normalizeCollaborators always returns a non-nil map.
func normalizeCollaborators(v any) Collaborators {
	switch classifyCollaborators(v) {
	case shapeMap:
		return maps.Clone(v.(Collaborators))
	case shapeObject:
		return Collaborators(maps.Clone(v.(map[string]any)))
	case shapePairs:
		m, _ := pairsToMap(v.([]any))
		return m
	default:
		return Collaborators{}
	}
}

// Sanitize returns a copy of doc whose appState.collaborators is a
// Collaborators map, whatever shape was loaded. It never fails, never
// modifies doc and is idempotent. A nil doc yields a sanitized blank document.
func Sanitize(doc *drawing.Document) *drawing.Document {
	if doc == nil {
		doc = drawing.Blank()
	}

	out := doc.Clone()
	if out.AppState == nil {
		out.AppState = make(map[string]any, 1)
	}
	out.AppState[drawing.CollaboratorsKey] = normalizeCollaborators(out.AppState[drawing.CollaboratorsKey])
	return out
}
