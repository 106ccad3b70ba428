package catalog

import "testing"

func TestParseVersion(t *testing.T) {
	valid := []string{"0.0.0", "1.2.3", "1.65.0.1", "10.0.0.0"}
	for _, s := range valid {
		if _, err := parseVersion(s); err != nil {
			t.Errorf("parseVersion(%q) failed: %v", s, err)
		}
	}

	invalid := []string{"", "1", "1.2", "1.2.3.4.5", "1..3", "01.2.3", "a.b.c", "1.2.3-rc1", "v1.2.3"}
	for _, s := range invalid {
		if _, err := parseVersion(s); err == nil {
			t.Errorf("parseVersion(%q) succeeded, want error", s)
		}
	}
}

func TestVersionMatches(t *testing.T) {
	tests := []struct {
		request   string
		published string
		want      bool
	}{
		{"1.2.0", "1.2.0.0", true},
		{"1.2.0", "1.2.0.5", true},
		{"1.2.0", "1.2.0", true},
		{"1.2.0", "1.2.1.0", false},
		{"1.2.0.1", "1.2.0.1", true},
		{"1.2.0.1", "1.2.0.2", false},
		{"1.2.0.0", "1.2.0", false},
	}

	for _, tt := range tests {
		req, err := parseVersion(tt.request)
		if err != nil {
			t.Fatalf("parse %q: %v", tt.request, err)
		}
		pub, err := parseVersion(tt.published)
		if err != nil {
			t.Fatalf("parse %q: %v", tt.published, err)
		}
		if got := req.matches(pub); got != tt.want {
			t.Errorf("%q matches %q: got %v, want %v", tt.request, tt.published, got, tt.want)
		}
	}
}

func TestVersionLess(t *testing.T) {
	ordered := []string{"1.2.0", "1.2.0.0", "1.2.0.1", "1.2.1.0", "1.3.0", "2.0.0"}
	for i := 0; i < len(ordered)-1; i++ {
		a, _ := parseVersion(ordered[i])
		b, _ := parseVersion(ordered[i+1])
		if !a.less(b) {
			t.Errorf("expected %q < %q", ordered[i], ordered[i+1])
		}
		if b.less(a) {
			t.Errorf("expected !(%q < %q)", ordered[i+1], ordered[i])
		}
	}
}
