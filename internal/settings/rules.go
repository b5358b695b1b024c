package settings

import (
	"fmt"
	"math"
	"net/mail"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Rules maps a dotted path to a pipe separated rule list, for example
// "contact.email": "nullable|email". A trailing ".*" applies the rule to every
// key of that section.
//
// Supported rules: required, nullable, string, integer, boolean, email, url,
// min:N, max:N, size:N, in:a,b,c.
type Rules map[string]string

// Validate checks doc against the rules and returns messages keyed by path.
// A nil map means the document is valid. Absent values only fail "required".
func (r Rules) Validate(doc Document) map[string][]string {
	fields := map[string][]string{}

	paths := make([]string, 0, len(r))
	for p := range r {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		rules := parseRules(r[p])
		if section, ok := strings.CutSuffix(p, ".*"); ok {
			m, _ := asMap(GetOr(doc, section, nil))
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				field := section + "." + k
				if msgs := checkValue(field, m[k], true, rules); len(msgs) > 0 {
					fields[field] = msgs
				}
			}
			continue
		}

		v, present := Get(doc, p)
		if msgs := checkValue(p, v, present, rules); len(msgs) > 0 {
			fields[p] = msgs
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return fields
}

type rule struct {
	name string
	arg  string
}

func parseRules(list string) []rule {
	var out []rule
	for _, part := range strings.Split(list, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, arg, _ := strings.Cut(part, ":")
		out = append(out, rule{name: name, arg: arg})
	}
	return out
}

func hasRule(rules []rule, name string) bool {
	for _, r := range rules {
		if r.name == name {
			return true
		}
	}
	return false
}

func checkValue(field string, v any, present bool, rules []rule) []string {
	if !present || v == nil {
		if hasRule(rules, "required") {
			return []string{fmt.Sprintf("The %s field is required.", field)}
		}
		if !present || hasRule(rules, "nullable") {
			return nil
		}
	}

	var msgs []string
	numeric := hasRule(rules, "integer")
	for _, r := range rules {
		if msg := applyRule(field, v, r, numeric); msg != "" {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

func applyRule(field string, v any, r rule, numeric bool) string {
	switch r.name {
	case "required", "nullable":
		if r.name == "required" {
			if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
				return fmt.Sprintf("The %s field is required.", field)
			}
		}
		return ""
	case "string":
		if _, ok := v.(string); !ok {
			return fmt.Sprintf("The %s field must be a string.", field)
		}
	case "integer":
		if _, ok := asInteger(v); !ok {
			return fmt.Sprintf("The %s field must be an integer.", field)
		}
	case "boolean":
		if !isBoolean(v) {
			return fmt.Sprintf("The %s field must be true or false.", field)
		}
	case "email":
		s, ok := v.(string)
		if !ok || !isEmail(s) {
			return fmt.Sprintf("The %s field must be a valid email address.", field)
		}
	case "url":
		s, ok := v.(string)
		if !ok || !isURL(s) {
			return fmt.Sprintf("The %s field must be a valid URL.", field)
		}
	case "min", "max", "size":
		return checkBound(field, v, r, numeric)
	case "in":
		allowed := strings.Split(r.arg, ",")
		s := fmt.Sprint(v)
		for _, a := range allowed {
			if s == a {
				return ""
			}
		}
		return fmt.Sprintf("The selected %s is invalid.", field)
	}
	return ""
}

func checkBound(field string, v any, r rule, numeric bool) string {
	limit, err := strconv.ParseFloat(r.arg, 64)
	if err != nil {
		return ""
	}

	var (
		measure float64
		unit    string
	)
	switch tv := v.(type) {
	case string:
		if numeric {
			return ""
		}
		measure, unit = float64(utf8.RuneCountInString(tv)), " characters"
	case []any:
		measure, unit = float64(len(tv)), " items"
	default:
		f, ok := asFloat(v)
		if !ok {
			return ""
		}
		measure = f
	}

	switch r.name {
	case "min":
		if measure < limit {
			return fmt.Sprintf("The %s field must be at least %s%s.", field, r.arg, unit)
		}
	case "max":
		if measure > limit {
			return fmt.Sprintf("The %s field must not be greater than %s%s.", field, r.arg, unit)
		}
	case "size":
		if measure != limit {
			return fmt.Sprintf("The %s field must be %s%s.", field, r.arg, unit)
		}
	}
	return ""
}

func asFloat(v any) (float64, bool) {
	switch tv := v.(type) {
	case int:
		return float64(tv), true
	case int32:
		return float64(tv), true
	case int64:
		return float64(tv), true
	case uint:
		return float64(tv), true
	case uint64:
		return float64(tv), true
	case float32:
		return float64(tv), true
	case float64:
		return tv, true
	}
	return 0, false
}

func asInteger(v any) (int64, bool) {
	f, ok := asFloat(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

func isBoolean(v any) bool {
	switch tv := v.(type) {
	case bool:
		return true
	case string:
		return tv == "0" || tv == "1"
	}
	i, ok := asInteger(v)
	return ok && (i == 0 || i == 1)
}

func isEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Address == s
}

func isURL(s string) bool {
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}
