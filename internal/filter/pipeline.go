package filter

import (
	"regexp"

	"github.com/samber/lo"

	"github.com/vburojevic/dedicated/internal/content/archive"
)

// Pipeline selects bundles by display-name pattern, exclusions and where clauses,
// applied in that order.
type Pipeline struct {
	pattern  *regexp.Regexp
	excludes []*regexp.Regexp
	where    *WhereFilter
}

// NewPipeline returns nil when no filter is configured; a nil Pipeline matches everything.
func NewPipeline(pattern *regexp.Regexp, excludes []*regexp.Regexp, where *WhereFilter) *Pipeline {
	if pattern == nil && len(excludes) == 0 && where == nil {
		return nil
	}
	return &Pipeline{pattern: pattern, excludes: excludes, where: where}
}

// Match reports whether b passes every stage.
func (p *Pipeline) Match(b archive.Bundle) bool {
	if p == nil {
		return true
	}
	name := b.DisplayName()
	if p.pattern != nil && !p.pattern.MatchString(name) {
		return false
	}
	for _, ex := range p.excludes {
		if ex.MatchString(name) {
			return false
		}
	}
	return p.where.Match(b)
}

// Apply keeps the bundles that match, preserving order.
func (p *Pipeline) Apply(bundles []archive.Bundle) []archive.Bundle {
	return lo.Filter(bundles, func(b archive.Bundle, _ int) bool { return p.Match(b) })
}
