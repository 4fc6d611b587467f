package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/vburojevic/dedicated/internal/content/archive"
)

// WhereClause represents a parsed --where condition
type WhereClause struct {
	Field    string
	Operator string
	Value    string
	regex    *regexp.Regexp // Compiled regex for ~ and !~ operators
}

// Fields that a where clause may name.
var Fields = []string{"id", "kind", "name", "version", "display", "path", "zipped", "depends"}

// ParseWhereClause parses a where clause like "kind=map" or "name~^Desert"
// Supported operators: =, !=, ~, !~, ^, $
func ParseWhereClause(clause string) (*WhereClause, error) {
	// Try operators in order of length (longest first to avoid partial matches)
	operators := []string{"!~", "!=", "~", "=", "^", "$"}

	for _, op := range operators {
		idx := strings.Index(clause, op)
		if idx > 0 {
			field := strings.ToLower(strings.TrimSpace(clause[:idx]))
			value := strings.TrimSpace(clause[idx+len(op):])

			if field == "" || value == "" {
				return nil, fmt.Errorf("invalid where clause: %s", clause)
			}
			if !knownField(field) {
				return nil, fmt.Errorf("unknown field %q in where clause (use %s)", field, strings.Join(Fields, ", "))
			}

			wc := &WhereClause{
				Field:    field,
				Operator: op,
				Value:    value,
			}

			// Pre-compile regex for ~ and !~ operators
			if op == "~" || op == "!~" {
				re, err := regexp.Compile(value)
				if err != nil {
					return nil, fmt.Errorf("invalid regex in where clause '%s': %w", clause, err)
				}
				wc.regex = re
			}

			return wc, nil
		}
	}

	return nil, fmt.Errorf("no valid operator found in where clause: %s (use =, !=, ~, !~, ^, $)", clause)
}

func knownField(field string) bool {
	for _, f := range Fields {
		if f == field {
			return true
		}
	}
	return false
}

// Match checks if a bundle matches this where clause. Equality ignores case.
func (wc *WhereClause) Match(b archive.Bundle) bool {
	fieldValue := wc.getFieldValue(b)

	switch wc.Operator {
	case "=":
		return strings.EqualFold(fieldValue, wc.Value)
	case "!=":
		return !strings.EqualFold(fieldValue, wc.Value)
	case "~":
		return wc.regex.MatchString(fieldValue)
	case "!~":
		return !wc.regex.MatchString(fieldValue)
	case "^": // Starts with
		return strings.HasPrefix(strings.ToLower(fieldValue), strings.ToLower(wc.Value))
	case "$": // Ends with
		return strings.HasSuffix(strings.ToLower(fieldValue), strings.ToLower(wc.Value))
	}

	return false
}

// getFieldValue extracts the field value from a bundle
func (wc *WhereClause) getFieldValue(b archive.Bundle) string {
	switch wc.Field {
	case "id":
		return b.ID
	case "kind":
		return b.Kind.String()
	case "name":
		return b.Name
	case "version":
		return b.Version
	case "display":
		return b.DisplayName()
	case "path":
		return b.Path
	case "zipped":
		return strconv.FormatBool(b.Zipped)
	case "depends":
		return strings.Join(b.Depends, ",")
	default:
		return ""
	}
}

// WhereFilter is a filter that applies multiple where clauses (AND logic)
type WhereFilter struct {
	clauses []*WhereClause
}

// NewWhereFilter creates a filter from multiple where clause strings
func NewWhereFilter(whereClauses []string) (*WhereFilter, error) {
	if len(whereClauses) == 0 {
		return nil, nil
	}

	filter := &WhereFilter{}
	for _, clause := range whereClauses {
		wc, err := ParseWhereClause(clause)
		if err != nil {
			return nil, err
		}
		filter.clauses = append(filter.clauses, wc)
	}

	return filter, nil
}

// Match returns true if the bundle matches ALL where clauses (AND logic)
func (f *WhereFilter) Match(b archive.Bundle) bool {
	if f == nil {
		return true
	}
	for _, clause := range f.clauses {
		if !clause.Match(b) {
			return false
		}
	}
	return true
}
