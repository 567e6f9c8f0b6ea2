// Package filter implements the episode matching engine.
package filter

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"podfinder/internal/model"
)

// Kind defines whether a rule admits or rejects an episode.
type Kind string

// Supported rule kinds.
const (
	Include Kind = "include"
	Exclude Kind = "exclude"
)

// Scope defines which episode field a rule matches against.
type Scope string

// Supported rule scopes.
const (
	ScopeShow        Scope = "show"
	ScopeTitle       Scope = "title"
	ScopeDescription Scope = "description"
)

// Rule is a single matching rule derived from a search query.
//
// Pattern forms:
//   - "/.../" is a case-insensitive regular expression
//   - patterns containing * ? [ are shell-style globs over the whole field
//   - anything else matches the show name exactly, and titles and
//     descriptions by substring, both case-insensitive
type Rule struct {
	Kind    Kind
	Scope   Scope
	Pattern string
}

// Episode carries the fields a rule can match against.
type Episode struct {
	ShowName    string
	Title       string
	Description string
}

// QueryRules builds the rule set for a search query. Blank patterns are
// dropped.
func QueryRules(q *model.SearchQuery) []Rule {
	var rules []Rule
	add := func(kind Kind, scope Scope, patterns []string) {
		for _, p := range patterns {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			rules = append(rules, Rule{Kind: kind, Scope: scope, Pattern: p})
		}
	}
	add(Exclude, ScopeShow, q.ExcludeShows)
	add(Exclude, ScopeTitle, q.ExcludeTitles)
	add(Exclude, ScopeDescription, q.ExcludeDescriptions)
	add(Include, ScopeShow, q.IncludeShows)
	add(Include, ScopeTitle, q.IncludeTitles)
	add(Include, ScopeDescription, q.IncludeDescriptions)
	return rules
}

// Match checks whether an episode passes the given rules.
// Exclude rules block on any match. Include rules are grouped by scope: when
// a scope has include rules, at least one of them must match that scope.
// With no rules, everything passes.
func Match(ep Episode, rules []Rule) bool {
	includesByScope := map[Scope][]Rule{}

	for _, r := range rules {
		switch r.Kind {
		case Exclude:
			if matchesRule(ep, r) {
				return false
			}
		case Include:
			includesByScope[r.Scope] = append(includesByScope[r.Scope], r)
		}
	}

	for _, scoped := range includesByScope {
		matched := false
		for _, r := range scoped {
			if matchesRule(ep, r) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func matchesRule(ep Episode, r Rule) bool {
	text := textForScope(ep, r.Scope)

	// A /regex/ pattern that does not compile falls through and matches as
	// literal text, slashes included.
	if re, ok := rulePattern(r.Pattern); ok && re != nil {
		return re.MatchString(text)
	}

	pattern := strings.ToLower(r.Pattern)
	lower := strings.ToLower(text)

	if strings.ContainsAny(pattern, "*?[") {
		ok, err := path.Match(pattern, lower)
		return err == nil && ok
	}

	if r.Scope == ScopeShow {
		return lower == pattern
	}
	return strings.Contains(lower, pattern)
}

// rulePattern reports whether the pattern is a /regex/ form. The expression
// is nil when it does not compile; the caller then treats the pattern as
// plain text.
func rulePattern(pattern string) (*regexp.Regexp, bool) {
	if len(pattern) < 2 || !strings.HasPrefix(pattern, "/") || !strings.HasSuffix(pattern, "/") {
		return nil, false
	}
	re, err := regexp.Compile("(?i)" + pattern[1:len(pattern)-1])
	if err != nil {
		return nil, true
	}
	return re, true
}

func textForScope(ep Episode, scope Scope) string {
	switch scope {
	case ScopeShow:
		return ep.ShowName
	case ScopeTitle:
		return ep.Title
	default:
		return ep.Description
	}
}

// ValidatePattern checks that a /regex/ pattern compiles; other pattern forms
// are always valid.
func ValidatePattern(pattern string) error {
	trimmed := strings.TrimSpace(pattern)
	if len(trimmed) < 2 || !strings.HasPrefix(trimmed, "/") || !strings.HasSuffix(trimmed, "/") {
		return nil
	}
	if _, err := regexp.Compile("(?i)" + trimmed[1:len(trimmed)-1]); err != nil {
		return fmt.Errorf("invalid regex: %w", err)
	}
	return nil
}
