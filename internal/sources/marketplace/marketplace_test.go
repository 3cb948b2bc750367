package marketplace

import "testing"

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"$25.00", "25", true},
		{"$29.99", "29.99", true},
		{"$20.00 to $35.00", "20", true},
		{"US $1,234.50", "1234.5", true},
		{"clearance $.99 each", "0.99", true},
		{"$. off", "", false},
		{"$0.00", "", false},
		{"Free", "", false},
		{"", "", false},
		{"25.00", "", false},
	}
	for _, tc := range cases {
		got, ok := ParsePrice(tc.in)
		if ok != tc.wantOK {
			t.Fatalf("ParsePrice(%q) ok=%v want %v", tc.in, ok, tc.wantOK)
		}
		if ok && got.String() != tc.want {
			t.Fatalf("ParsePrice(%q)=%s want %s", tc.in, got.String(), tc.want)
		}
	}
}
