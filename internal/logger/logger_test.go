package logger

import "testing"

func TestTruncateForLog(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"short string untouched", "hello", 10, "hello"},
		{"long string truncated", "hello world", 5, "hello..."},
		{"whitespace trimmed", "  hello  ", 10, "hello"},
		{"zero limit", "hello", 0, ""},
		{"multibyte runes", "héllo wörld", 6, "héllo ..."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TruncateForLog(tc.in, tc.limit); got != tc.want {
				t.Errorf("TruncateForLog(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
			}
		})
	}
}
