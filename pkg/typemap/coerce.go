package typemap

import (
	"strconv"
	"strings"
	"time"

	"github.com/reconlab/recon-engine/pkg/models"
)

// Layouts tried in order when parsing datetime strings. Fractional seconds
// are optional in every timestamped layout; zone-less inputs are read as
// UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006",
}

// Coerce converts a raw cell into the given comparison domain. It is total:
// every input yields a value. Nulls pass through unchanged, successful
// conversions return the domain value, and conversion failures return null
// with ok=false so callers can count them. A failure never carries partial
// data.
func Coerce(v models.Value, domain Group) (coerced models.Value, ok bool) {
	if v.IsNull() {
		return models.Null(), true
	}
	switch domain {
	case GroupNumeric:
		return coerceNumeric(v)
	case GroupDateTime:
		return coerceTime(v)
	case GroupBoolean:
		return coerceBool(v)
	default:
		return models.String(v.Canonical()), true
	}
}

func coerceNumeric(v models.Value) (models.Value, bool) {
	switch v.Kind {
	case models.KindNumber:
		return v, true
	case models.KindBool:
		if v.Bool {
			return models.Number(1), true
		}
		return models.Number(0), true
	case models.KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return models.Null(), false
		}
		return models.Number(f), true
	default:
		return models.Null(), false
	}
}

func coerceTime(v models.Value) (models.Value, bool) {
	switch v.Kind {
	case models.KindTime:
		return models.Timestamp(v.Time), true
	case models.KindString:
		s := strings.TrimSpace(v.Str)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return models.Timestamp(t), true
			}
		}
		return models.Null(), false
	default:
		return models.Null(), false
	}
}

func coerceBool(v models.Value) (models.Value, bool) {
	switch v.Kind {
	case models.KindBool:
		return v, true
	case models.KindNumber:
		switch v.Num {
		case 0:
			return models.Boolean(false), true
		case 1:
			return models.Boolean(true), true
		default:
			return models.Null(), false
		}
	case models.KindString:
		switch strings.ToLower(strings.TrimSpace(v.Str)) {
		case "true", "t", "yes", "y", "1":
			return models.Boolean(true), true
		case "false", "f", "no", "n", "0":
			return models.Boolean(false), true
		default:
			return models.Null(), false
		}
	default:
		return models.Null(), false
	}
}
