package extension

import "testing"

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0", 0},
		{"1.0", "1.1", -1},
		{"1.10", "1.9", 1},
		{"1.0", "1.0.1", -1},
		{"2", "1.9.9", 1},
		{"1.0-beta", "1.0-alpha", 1},
		{"1.0.1", "1.0.alpha", 1},
		{"version", "version", 0},
	}
	for _, tt := range tests {
		if got := CompareVersions(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestConstraintMatches(t *testing.T) {
	tests := []struct {
		constraint string
		version    string
		want       bool
	}{
		{"", "anything", true},
		{"1.0", "1.0", true},
		{"1.0", "1.1", false},
		{"[1.0]", "1.0", true},
		{"[1.0,2.0)", "1.0", true},
		{"[1.0,2.0)", "1.5.3", true},
		{"[1.0,2.0)", "2.0", false},
		{"(1.0,2.0]", "1.0", false},
		{"(1.0,2.0]", "2.0", true},
		{"[1.0,)", "99", true},
		{"(,1.0]", "0.1", true},
		{"(,1.0]", "1.1", false},
		{"[1.0", "1.0", false},
		{"1.0,2.0", "1.0", false},
		{"[]", "9.9", false},
	}
	for _, tt := range tests {
		if got := Satisfies(tt.constraint, tt.version); got != tt.want {
			t.Errorf("Satisfies(%q, %q) = %v, want %v", tt.constraint, tt.version, got, tt.want)
		}
	}
}

func TestConstraintString(t *testing.T) {
	for _, s := range []string{"1.0", "[1.0,2.0)", "(1.0,2.0]"} {
		c, err := ParseConstraint(s)
		if err != nil {
			t.Fatalf("ParseConstraint(%q): %v", s, err)
		}
		if c.String() != s {
			t.Errorf("String() = %q, want %q", c.String(), s)
		}
	}

	c, err := ParseConstraint("")
	if err != nil || !c.Any() || c.String() != "*" {
		t.Fatalf("empty constraint = %+v, %v", c, err)
	}
}

func TestParseConstraintRejectsMalformed(t *testing.T) {
	for _, s := range []string{"[]", "[ ]", "(1.0)", "[1.0", "1.0]"} {
		if c, err := ParseConstraint(s); err == nil {
			t.Errorf("ParseConstraint(%q) = %+v, want error", s, c)
		}
	}
}
