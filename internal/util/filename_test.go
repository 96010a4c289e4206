package util

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"Plain", "access", "access"},
		{"Path separators", "logs/2025\\oct", "logs_2025_oct"},
		{"Reserved characters", `a:b*c?d"e<f>g|h`, "a_b_c_d_e_f_g_h"},
		{"Whitespace", "my log\tfile", "my_log_file"},
		{"Leading dots", "..hidden", "hidden"},
		{"Empty", "", ""},
		{"Long", strings.Repeat("x", 150), strings.Repeat("x", maxFilenameLength)},
		{"Long multibyte", "x" + strings.Repeat("é", 60), "x" + strings.Repeat("é", 49)},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := SanitizeFilename(tc.input)
			if got != tc.expected {
				t.Fatalf("SanitizeFilename(%q) = %q, want %q", tc.input, got, tc.expected)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("SanitizeFilename(%q) returned invalid UTF-8 %q", tc.input, got)
			}
		})
	}
}
