package logger

import "testing"

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"dana.reyes@example.com": "dan***@example.com",
		"pm@example.com":         "pm***@example.com",
		"no-at-sign":             "***",
		"":                       "",
	}

	for input, want := range cases {
		if got := MaskEmail(input); got != want {
			t.Fatalf("MaskEmail(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestMaskIP(t *testing.T) {
	cases := map[string]string{
		"192.168.1.100": "192.168.*.*",
		"2001:0db8:85a3:0000:0000:8a2e:0370:7334": "2001:0db8:85a3:0000:*:*:*:*",
		"garbage": "***",
		"":        "",
	}

	for input, want := range cases {
		if got := MaskIP(input); got != want {
			t.Fatalf("MaskIP(%q) = %q, want %q", input, got, want)
		}
	}
}
