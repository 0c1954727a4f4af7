package extension

import (
	"fmt"
	"strconv"
	"strings"
)

// CompareVersions orders two version strings. Dotted and dashed segments are
// compared numerically when both are numbers and lexically otherwise; a
// missing segment sorts before a present one.
func CompareVersions(a, b string) int {
	as := splitVersion(a)
	bs := splitVersion(b)

	for i := 0; i < len(as) || i < len(bs); i++ {
		switch {
		case i >= len(as):
			return -1
		case i >= len(bs):
			return 1
		}
		if c := compareSegment(as[i], bs[i]); c != 0 {
			return c
		}
	}
	return 0
}

func splitVersion(v string) []string {
	return strings.FieldsFunc(strings.TrimSpace(v), func(r rune) bool {
		return r == '.' || r == '-'
	})
}

func compareSegment(a, b string) int {
	an, aerr := strconv.ParseUint(a, 10, 64)
	bn, berr := strconv.ParseUint(b, 10, 64)
	switch {
	case aerr == nil && berr == nil:
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	case aerr == nil:
		return 1
	case berr == nil:
		return -1
	}
	return strings.Compare(a, b)
}

// Constraint is an exact version, a range such as "[1.0,2.0)", or empty for
// any version.
type Constraint struct {
	Exact        string
	Lower, Upper string
	LowerIncl    bool
	UpperIncl    bool
	isRange      bool
}

// ParseConstraint parses a dependency version constraint.
func ParseConstraint(s string) (Constraint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Constraint{}, nil
	}

	lo, hi := s[0], s[len(s)-1]
	if lo != '[' && lo != '(' {
		if strings.ContainsAny(s, "[](),") {
			return Constraint{}, fmt.Errorf("malformed version %q", s)
		}
		return Constraint{Exact: s}, nil
	}
	if hi != ']' && hi != ')' {
		return Constraint{}, fmt.Errorf("unterminated version range %q", s)
	}

	lower, upper, ok := strings.Cut(s[1:len(s)-1], ",")
	if !ok {
		// "[1.0]" pins a single version.
		pinned := strings.TrimSpace(lower)
		if lo != '[' || hi != ']' || pinned == "" {
			return Constraint{}, fmt.Errorf("malformed version range %q", s)
		}
		return Constraint{Exact: pinned}, nil
	}

	c := Constraint{
		Lower:     strings.TrimSpace(lower),
		Upper:     strings.TrimSpace(upper),
		LowerIncl: lo == '[',
		UpperIncl: hi == ']',
		isRange:   true,
	}
	if c.Lower != "" && c.Upper != "" && CompareVersions(c.Lower, c.Upper) > 0 {
		return Constraint{}, fmt.Errorf("empty version range %q", s)
	}
	return c, nil
}

// Any reports whether the constraint accepts every version.
func (c Constraint) Any() bool {
	return c.Exact == "" && !c.isRange
}

// Matches reports whether version satisfies the constraint.
func (c Constraint) Matches(version string) bool {
	if c.Exact != "" {
		return CompareVersions(c.Exact, version) == 0
	}
	if !c.isRange {
		return true
	}

	if c.Lower != "" {
		cmp := CompareVersions(version, c.Lower)
		if cmp < 0 || (cmp == 0 && !c.LowerIncl) {
			return false
		}
	}
	if c.Upper != "" {
		cmp := CompareVersions(version, c.Upper)
		if cmp > 0 || (cmp == 0 && !c.UpperIncl) {
			return false
		}
	}
	return true
}

func (c Constraint) String() string {
	switch {
	case c.Exact != "":
		return c.Exact
	case !c.isRange:
		return "*"
	}
	lo, hi := "(", ")"
	if c.LowerIncl {
		lo = "["
	}
	if c.UpperIncl {
		hi = "]"
	}
	return lo + c.Lower + "," + c.Upper + hi
}

// Satisfies reports whether version meets a constraint string. A malformed
// constraint never matches.
func Satisfies(constraint, version string) bool {
	c, err := ParseConstraint(constraint)
	if err != nil {
		return false
	}
	return c.Matches(version)
}
