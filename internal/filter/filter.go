// Package filter applies an ordered list of (regex, include/exclude)
// rules to normalized relative paths. Compiling the regex source
// carried by protocol.Filter into this package's matcher is the one
// piece of "filter regex compilation" the sync engine and doer
// actually need at runtime; everything upstream of that (flag
// parsing, --filter file loading) remains an external collaborator
// per spec section 1.
package filter

import (
	"fmt"
	"regexp"

	"github.com/rjrssync/rjrssync/internal/protocol"
)

// Rule is one compiled (regex, include) pair.
type Rule struct {
	Regex   *regexp.Regexp
	Include bool
}

// Filter holds the compiled, ordered rule list.
type Filter struct {
	rules []Rule
}

// Compile compiles the wire-carried filter rules in order. It returns
// an error on the first invalid regex.
func Compile(wire protocol.Filter) (*Filter, error) {
	rules := make([]Rule, 0, len(wire.Rules))
	for i, r := range wire.Rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("filter rule %d: bad regex %q: %w", i, r.Pattern, err)
		}
		rules = append(rules, Rule{Regex: re, Include: r.Include})
	}
	return &Filter{rules: rules}, nil
}

// Empty returns a Filter with no rules (everything included).
func Empty() *Filter { return &Filter{} }

// ToWire renders the Filter back into its wire form. The sync root
// itself is always Included and is not expressed as a rule.
func (f *Filter) ToWire() protocol.Filter {
	wire := protocol.Filter{Rules: make([]protocol.FilterRule, 0, len(f.rules))}
	for _, r := range f.rules {
		wire.Rules = append(wire.Rules, protocol.FilterRule{Pattern: r.Regex.String(), Include: r.Include})
	}
	return wire
}

// Included reports whether rel matches the filter: the LAST rule whose
// regex matches rel wins; an unmatched path defaults to Include; the
// empty (sync root) path is always Included.
func (f *Filter) Included(rel string) bool {
	if rel == "" {
		return true
	}
	include := true
	for _, r := range f.rules {
		if r.Regex.MatchString(rel) {
			include = r.Include
		}
	}
	return include
}
