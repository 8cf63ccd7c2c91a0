package schema

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/enquirykeeper/internal/common"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/models"
)

// DateLayouts are accepted for date_field values.
var DateLayouts = []string{"2006-01-02", "02 Jan 2006", "02/01/2006"}

// Validate checks submitted plain criteria against the constraints declared
// by sections. Only submitted keys are checked; keys the schema does not
// declare are accepted as-is. It returns nil or a *common.ValidationError.
func Validate(sections []models.FormSection, criteria models.Criteria) error {
	fields := models.FieldIndex(sections)
	ve := common.NewValidationError()

	for name, value := range criteria {
		field, ok := fields[name]
		if !ok {
			if !isPlainValue(value) {
				ve.Add(name, "has an unsupported value")
			}
			continue
		}
		if msg := checkField(field, value); msg != "" {
			ve.Add(name, msg)
		}
	}

	if ve.Empty() {
		return nil
	}
	return ve
}

func checkField(f models.Field, value any) string {
	if f.Kind == models.FieldKindCheckBoxes {
		values, ok := stringList(value)
		if !ok {
			return "must be a list of values"
		}
		if f.Required && len(values) == 0 {
			return "can't be blank"
		}
		for _, v := range values {
			if len(f.Options) > 0 && !slices.Contains(f.Options, v) {
				return fmt.Sprintf("must be one of: %s", strings.Join(f.Options, ", "))
			}
		}
		return ""
	}

	s, ok := value.(string)
	if !ok {
		return "must be a single value"
	}
	s = strings.TrimSpace(s)

	if s == "" {
		if f.Required {
			return "can't be blank"
		}
		return ""
	}

	if f.MaxLength > 0 && utf8.RuneCountInString(s) > f.MaxLength {
		return fmt.Sprintf("is too long (maximum is %d characters)", f.MaxLength)
	}

	switch f.Kind {
	case models.FieldKindNumeric:
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return "must be a number"
		}
	case models.FieldKindDate:
		if !parsesAsDate(s) {
			return "must be a valid date"
		}
	case models.FieldKindSelectBox, models.FieldKindRadio:
		if len(f.Options) > 0 && !slices.Contains(f.Options, s) {
			return fmt.Sprintf("must be one of: %s", strings.Join(f.Options, ", "))
		}
	}
	return ""
}

func parsesAsDate(s string) bool {
	for _, layout := range DateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func stringList(value any) ([]string, bool) {
	switch v := value.(type) {
	case string:
		if v == "" {
			return nil, true
		}
		return []string{v}, true
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case map[string]any:
		// indexed form encoding: {"0": "a", "1": "b"}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, CompareIndexKeys)
		out := make([]string, 0, len(v))
		for _, k := range keys {
			s, ok := v[k].(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func isPlainValue(value any) bool {
	switch v := value.(type) {
	case string, nil:
		return true
	case []string:
		return true
	case []any:
		for _, item := range v {
			if !isPlainValue(item) {
				return false
			}
		}
		return true
	case map[string]any:
		for _, item := range v {
			if !isPlainValue(item) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// CompareIndexKeys orders indexed form keys numerically, so "2" sorts before
// "10". Non-numeric keys sort after numeric ones, lexically.
func CompareIndexKeys(a, b string) int {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	switch {
	case aerr == nil && berr == nil:
		return cmp.Compare(ai, bi)
	case aerr == nil:
		return -1
	case berr == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}
