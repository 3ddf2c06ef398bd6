// Package match builds composite message patterns from a prefix, a core
// pattern and a suffix. Each component may be a literal string, a regular
// expression or a predicate function; absent components are treated as empty.
// Capture groups from regexp components become the captured-argument list
// that dispatch closures receive.
package match

import (
	"fmt"
	"regexp"
)

type kind int

const (
	kindEmpty kind = iota
	kindLiteral
	kindRegexp
	kindPredicate
)

// Component is one piece of a composite pattern. The zero value is empty
// and matches the empty string.
type Component struct {
	kind kind
	lit  string
	re   *regexp.Regexp
	fn   func(string) bool
}

// Literal returns a component matching s exactly.
func Literal(s string) Component {
	if s == "" {
		return Component{}
	}
	return Component{kind: kindLiteral, lit: s}
}

// Regexp returns a component matching re. Capture groups inside re are
// reported by Spec.Match.
func Regexp(re *regexp.Regexp) Component {
	if re == nil {
		return Component{}
	}
	return Component{kind: kindRegexp, re: re}
}

// Predicate returns a component that gates matching on fn. Predicates
// produce no captures: an edge predicate (prefix or suffix) is applied to
// the whole text, a core predicate to the text between prefix and suffix.
func Predicate(fn func(string) bool) Component {
	if fn == nil {
		return Component{}
	}
	return Component{kind: kindPredicate, fn: fn}
}

// IsZero reports whether the component is empty.
func (c Component) IsZero() bool { return c.kind == kindEmpty }

// expr returns the regexp source for regexp-composable components.
func (c Component) expr() string {
	switch c.kind {
	case kindLiteral:
		return regexp.QuoteMeta(c.lit)
	case kindRegexp:
		return "(?:" + c.re.String() + ")"
	default:
		return ""
	}
}

func (c Component) String() string {
	switch c.kind {
	case kindLiteral:
		return c.lit
	case kindRegexp:
		return c.re.String()
	case kindPredicate:
		return "<predicate>"
	default:
		return ""
	}
}

// Spec is a compiled composite pattern. The prefix is anchored at the start
// of the text and the suffix at the end.
type Spec struct {
	prefix, core, suffix Component

	// composite covers the whole pattern when no component is a predicate.
	composite *regexp.Regexp

	// Per-component matchers for the predicate path.
	prefixRe *regexp.Regexp
	coreRe   *regexp.Regexp
	suffixRe *regexp.Regexp
}

// Compile builds a Spec from the three components.
func Compile(prefix, core, suffix Component) (*Spec, error) {
	s := &Spec{prefix: prefix, core: core, suffix: suffix}

	if prefix.kind != kindPredicate && core.kind != kindPredicate && suffix.kind != kindPredicate {
		re, err := regexp.Compile("^" + prefix.expr() + core.expr() + suffix.expr() + "$")
		if err != nil {
			return nil, fmt.Errorf("compiling composite pattern: %w", err)
		}
		s.composite = re
		return s, nil
	}

	var err error
	if e := prefix.expr(); e != "" {
		if s.prefixRe, err = regexp.Compile("^" + e); err != nil {
			return nil, fmt.Errorf("compiling prefix: %w", err)
		}
	}
	if e := core.expr(); e != "" {
		if s.coreRe, err = regexp.Compile("^" + e + "$"); err != nil {
			return nil, fmt.Errorf("compiling core pattern: %w", err)
		}
	}
	if e := suffix.expr(); e != "" {
		if s.suffixRe, err = regexp.Compile(e + "$"); err != nil {
			return nil, fmt.Errorf("compiling suffix: %w", err)
		}
	}
	return s, nil
}

// MustCompile is Compile that panics on error, for patterns known at
// declaration time.
func MustCompile(prefix, core, suffix Component) *Spec {
	s, err := Compile(prefix, core, suffix)
	if err != nil {
		panic(err)
	}
	return s
}

// Match tests text against the composite pattern. On success it returns the
// capture groups contributed by regexp components, in component order
// (prefix, core, suffix) and group order within each component.
func (s *Spec) Match(text string) ([]string, bool) {
	if s.composite != nil {
		m := s.composite.FindStringSubmatch(text)
		if m == nil {
			return nil, false
		}
		return m[1:], true
	}

	// Predicate path: strip regexp/literal edges off the text, gate
	// predicates, then match the core against what remains.
	var prefixCaps, coreCaps, suffixCaps []string
	rest := text

	switch s.prefix.kind {
	case kindPredicate:
		if !s.prefix.fn(text) {
			return nil, false
		}
	case kindLiteral, kindRegexp:
		m := s.prefixRe.FindStringSubmatch(rest)
		if m == nil {
			return nil, false
		}
		prefixCaps = m[1:]
		rest = rest[len(m[0]):]
	}

	switch s.suffix.kind {
	case kindPredicate:
		if !s.suffix.fn(text) {
			return nil, false
		}
	case kindLiteral, kindRegexp:
		m := s.suffixRe.FindStringSubmatch(rest)
		if m == nil {
			return nil, false
		}
		suffixCaps = m[1:]
		rest = rest[:len(rest)-len(m[0])]
	}

	switch s.core.kind {
	case kindPredicate:
		if !s.core.fn(rest) {
			return nil, false
		}
	case kindLiteral, kindRegexp:
		m := s.coreRe.FindStringSubmatch(rest)
		if m == nil {
			return nil, false
		}
		coreCaps = m[1:]
	case kindEmpty:
		if rest != "" {
			return nil, false
		}
	}

	captures := make([]string, 0, len(prefixCaps)+len(coreCaps)+len(suffixCaps))
	captures = append(captures, prefixCaps...)
	captures = append(captures, coreCaps...)
	captures = append(captures, suffixCaps...)
	return captures, true
}

// String renders the pattern for diagnostics.
func (s *Spec) String() string {
	if s.composite != nil {
		return s.composite.String()
	}
	return fmt.Sprintf("^%s%s%s$", s.prefix, s.core, s.suffix)
}
