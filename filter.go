package bridge

import "path"

// FilterDecision is the outcome a FilterRule applies to matching tools.
type FilterDecision int

const (
	// FilterAllow admits matching tools into the catalog.
	FilterAllow FilterDecision = iota
	// FilterDeny removes matching tools from the catalog. Deny always wins.
	FilterDeny
)

// FilterRule is a declarative allow/deny rule with glob pattern matching over
// callable tool names, e.g. "context7__*" or "lookup".
type FilterRule struct {
	Pattern  string
	Decision FilterDecision
}

// Allow is shorthand for an allow rule.
func Allow(pattern string) FilterRule {
	return FilterRule{Pattern: pattern, Decision: FilterAllow}
}

// Deny is shorthand for a deny rule.
func Deny(pattern string) FilterRule {
	return FilterRule{Pattern: pattern, Decision: FilterDeny}
}

// filterAllows evaluates rules against both the bare and namespaced name of a
// tool. A deny match excludes the tool; otherwise, if any allow rules exist,
// the tool must match one of them. No rules means everything is allowed.
func filterAllows(rules []FilterRule, tool Tool) bool {
	hasAllow := false
	allowed := false

	for _, r := range rules {
		matched := matchPattern(r.Pattern, tool.Name) ||
			matchPattern(r.Pattern, tool.NamespacedName())
		switch r.Decision {
		case FilterDeny:
			if matched {
				return false
			}
		case FilterAllow:
			hasAllow = true
			if matched {
				allowed = true
			}
		}
	}

	if hasAllow {
		return allowed
	}
	return true
}

func matchPattern(pattern, name string) bool {
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}
