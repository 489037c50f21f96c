package reminder

import (
	"encoding/json"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// maxLeadMinutes bounds lead times to ten years, well inside time.Duration range.
const maxLeadMinutes = 10 * 366 * 24 * 60

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report wire names ("due_date") rather than Go names ("DueAt").
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// ParseDue parses an RFC 3339 timestamp with an explicit offset and returns it in UTC.
func ParseDue(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, invalid("due_date", "is required")
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, invalid("due_date", "must be an RFC 3339 timestamp with a timezone offset, got %q", raw)
	}
	return t.UTC(), nil
}

// ParseLeadMinutes accepts a numeric lead time in minutes.
// Strings, booleans and other non-numeric values are rejected, as are
// negative, non-finite and absurdly large values.
func ParseLeadMinutes(v any) (float64, error) {
	var m float64
	switch x := v.(type) {
	case nil:
		return 0, invalid("remind_offset_minutes", "is required")
	case float64:
		m = x
	case float32:
		m = float64(x)
	case int:
		m = float64(x)
	case int64:
		m = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, invalid("remind_offset_minutes", "must be a number, got %q", x.String())
		}
		m = f
	default:
		return 0, invalid("remind_offset_minutes", "must be a number, got %T", v)
	}
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return 0, invalid("remind_offset_minutes", "must be finite")
	}
	if m < 0 {
		return 0, invalid("remind_offset_minutes", "must be >= 0, got %v", m)
	}
	if m > maxLeadMinutes {
		return 0, invalid("remind_offset_minutes", "must be <= %d, got %v", maxLeadMinutes, m)
	}
	return m, nil
}

func validateDraft(d Draft) error {
	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok && len(verrs) > 0 {
			fe := verrs[0]
			switch fe.Tag() {
			case "required":
				return invalid(fe.Field(), "is required")
			case "max":
				return invalid(fe.Field(), "must be at most %s characters", fe.Param())
			default:
				return invalid(fe.Field(), "failed %q check", fe.Tag())
			}
		}
		return &ValidationError{Reason: err.Error()}
	}
	return nil
}

func asValidationErrors(err error, out *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*out = verrs
	}
	return ok
}

func validateLabel(label string) error {
	return validate.Var(label, "required,max=512")
}

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}
