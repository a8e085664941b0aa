package atom

import "testing"

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0", 0},
		{"1.0", "1.0-r0", 0},
		{"1.0", "1.0-r1", -1},
		{"1.10", "1.9", 1},
		{"1.01", "1.1", -1},
		{"1.0", "1.0.1", -1},
		{"1.0a", "1.0", 1},
		{"1.0_rc1", "1.0", -1},
		{"1.0_alpha", "1.0_beta", -1},
		{"1.0_p1", "1.0", 1},
		{"1.0_pre2", "1.0_pre10", -1},
		{"2", "10", -1},
	}
	for _, tt := range tests {
		got, err := CompareVersions(tt.a, tt.b)
		if err != nil {
			t.Fatalf("CompareVersions(%q, %q): %v", tt.a, tt.b, err)
		}
		if got != tt.want {
			t.Fatalf("CompareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestParseVersionRejectsGarbage(t *testing.T) {
	for _, bad := range []string{"", "v1", "1.0-", "1..0", "1.0_foo"} {
		if _, err := ParseVersion(bad); err == nil {
			t.Fatalf("expected ParseVersion(%q) to fail", bad)
		}
	}
}

func TestWithoutRevision(t *testing.T) {
	v, err := ParseVersion("3.2_rc1-r4")
	if err != nil {
		t.Fatal(err)
	}
	if v.WithoutRevision() != "3.2_rc1" || v.Revision != 4 {
		t.Fatalf("unexpected version %+v", v)
	}
}
