package naming

import (
	"testing"
)

func TestCategoryRoundTrip(t *testing.T) {
	cases := []struct {
		id    int
		label string
	}{
		{1, "Math"},
		{42, "General Knowledge"},
		{7, "C++ (advanced)"},
		{3, "a - b"},
	}

	for _, c := range cases {
		name := Category(c.id, c.label)
		id, label, ok := ParseCategory(name)
		if !ok {
			t.Fatalf("ParseCategory(%q) did not match", name)
		}
		if id != c.id || label != c.label {
			t.Errorf("round trip %q: got (%d, %q), want (%d, %q)", name, id, label, c.id, c.label)
		}
	}
}

func TestParseCategoryRejects(t *testing.T) {
	bad := []string{
		"",
		"Math - Levels",
		"[x] Math - Levels",
		"[1] Math",
		"prefix [1] Math - Levels",
		"[1] Math - Levels suffix",
	}
	for _, name := range bad {
		if _, _, ok := ParseCategory(name); ok {
			t.Errorf("ParseCategory(%q) matched, want no match", name)
		}
	}
}

func TestLevelChannelRoundTrip(t *testing.T) {
	name := LevelChannel(13)
	if name != "level-13" {
		t.Fatalf("unexpected name %q", name)
	}
	n, ok := ParseLevelChannel(name)
	if !ok || n != 13 {
		t.Errorf("ParseLevelChannel(%q) = (%d, %v)", name, n, ok)
	}
	if _, ok := ParseLevelChannel("level-13-extra"); ok {
		t.Error("unanchored match on trailing garbage")
	}
	if _, ok := ParseLevelChannel("solution-13"); ok {
		t.Error("level pattern matched a solution channel")
	}
}

func TestSolutionChannelRoundTrip(t *testing.T) {
	n, ok := ParseSolutionChannel(SolutionChannel(2))
	if !ok || n != 2 {
		t.Errorf("ParseSolutionChannel = (%d, %v)", n, ok)
	}
}

func TestLevelRoleEscapesLabel(t *testing.T) {
	// A label full of metacharacters must still round-trip.
	label := "C++ (a.b)*"
	name := LevelRole(label, 5)
	n, ok := ParseLevelRole(label, name)
	if !ok || n != 5 {
		t.Fatalf("ParseLevelRole(%q, %q) = (%d, %v)", label, name, n, ok)
	}

	// An unescaped "." would let "Cxx ..." match; the quoted pattern must not.
	if _, ok := ParseLevelRole("a.c", "abc - Level 1"); ok {
		t.Error("label metacharacter matched as wildcard")
	}
}

func TestParseLevelRoleWrongCategory(t *testing.T) {
	if _, ok := ParseLevelRole("Math", LevelRole("History", 1)); ok {
		t.Error("role of another category matched")
	}
}

func TestCompletionRoleRoundTrip(t *testing.T) {
	label, ok := ParseCompletionRole(CompletionRole("Math"))
	if !ok || label != "Math" {
		t.Errorf("ParseCompletionRole = (%q, %v)", label, ok)
	}
	if _, ok := ParseCompletionRole("Grandmaster of Math"); ok {
		t.Error("unanchored prefix matched")
	}
}
