package features

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/okian/diarisk/internal/domain/types"
	"golang.org/x/text/cases"
)

// extraAliases maps shorthand keys (already normalised) to canonical positions.
var extraAliases = map[string]int{
	"pregnancy":        Pregnancies,
	"bp":               BloodPressure,
	"skin":             SkinThickness,
	"dpf":              DiabetesPedigreeFunction,
	"pedigree":         DiabetesPedigreeFunction,
	"diabetespedigree": DiabetesPedigreeFunction,
}

var aliases = buildAliases()

func buildAliases() map[string]int {
	m := make(map[string]int, Count+len(extraAliases))
	for i, n := range Names {
		m[strings.ToLower(n)] = i
	}
	for k, i := range extraAliases {
		m[k] = i
	}
	return m
}

type candidate struct {
	key   string
	exact bool
	value any
}

// Resolve maps raw onto the canonical fields. Keys are matched ignoring case
// and the separators '_', '-', '.', ' '. Absent fields take their default.
// When several keys name the same field the exact canonical key wins, then
// the lexicographically smallest key.
func Resolve(raw map[string]any) (Vector, map[string]float64, error) {
	fold := cases.Fold()
	var picked [Count]*candidate

	for key, val := range raw {
		idx, ok := aliases[normalize(fold, key)]
		if !ok {
			continue
		}
		c := &candidate{key: key, exact: key == Names[idx], value: val}
		if better(c, picked[idx]) {
			picked[idx] = c
		}
	}

	v := Defaults
	for i, c := range picked {
		if c == nil {
			continue
		}
		f, ok := toFloat(c.value)
		if !ok {
			return Vector{}, nil, types.InvalidFieldType(Names[i], c.value)
		}
		v[i] = f
	}
	return v, v.Map(), nil
}

func better(c, cur *candidate) bool {
	if cur == nil {
		return true
	}
	if c.exact != cur.exact {
		return c.exact
	}
	return c.key < cur.key
}

func normalize(fold cases.Caser, key string) string {
	s := fold.String(strings.TrimSpace(key))
	return strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', '.', ' ':
			return -1
		}
		return r
	}, s)
}

// toFloat coerces JSON-decoded and native Go numbers plus numeric strings.
func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
