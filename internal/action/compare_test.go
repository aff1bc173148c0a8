package action

import "testing"

func TestExtractScalar(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    string
	}{
		{"event field", `{"event":"S","event_cnt":10}`, "S"},
		{"ext field fallback", `{"ext":"42"}`, "42"},
		{"plain json number", `3.14`, "3.14"},
		{"raw string", `on`, "on"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ExtractScalar([]byte(c.payload))
			if got != c.want {
				t.Errorf("ExtractScalar(%q) = %q, want %q", c.payload, got, c.want)
			}
		})
	}
}

func TestCompareNumeric(t *testing.T) {
	if !Compare("10", "9", CmpGreaterThan) {
		t.Error("expected 10 > 9")
	}
	if Compare("10", "9", CmpLessThan) {
		t.Error("expected 10 not < 9")
	}
}

func TestCompareString(t *testing.T) {
	if !Compare("S", "S", CmpEqual) {
		t.Error("expected S == S")
	}
	if Compare("S", "T", CmpEqual) {
		t.Error("expected S != T")
	}
}

func TestCompareNumericVsNonNumericFallsBackToString(t *testing.T) {
	if Compare("10", "abc", CmpEqual) {
		t.Error("expected non-numeric match to compare as strings, not equal")
	}
	if !Compare("abc", "abc", CmpEqual) {
		t.Error("expected identical non-numeric strings to compare equal")
	}
}
