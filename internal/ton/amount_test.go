package ton

import (
	"math/big"
	"testing"
)

func TestParseTON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string // nano
		wantErr bool
	}{
		{name: "integer", in: "10", want: "10000000000"},
		{name: "fractional", in: "1.5", want: "1500000000"},
		{name: "full precision", in: "0.000000001", want: "1"},
		{name: "truncates past nine decimals", in: "0.0000000015", want: "1"},
		{name: "zero", in: "0", want: "0"},
		{name: "leading dot", in: ".5", want: "500000000"},
		{name: "negative", in: "-2.5", want: "-2500000000"},
		{name: "empty", in: "", wantErr: true},
		{name: "not a number", in: "ten", wantErr: true},
		{name: "two dots", in: "1.2.3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTON(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseTON(%q) expected error, got %s", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTON(%q) unexpected error: %v", tt.in, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseTON(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatTON(t *testing.T) {
	tests := []struct {
		nano string
		want string
	}{
		{"10000000000", "10"},
		{"1500000000", "1.5"},
		{"1", "0.000000001"},
		{"0", "0"},
		{"5700000000", "5.7"},
		{"300000000", "0.3"},
	}

	for _, tt := range tests {
		n, _ := new(big.Int).SetString(tt.nano, 10)
		if got := FormatTON(n); got != tt.want {
			t.Errorf("FormatTON(%s) = %s, want %s", tt.nano, got, tt.want)
		}
	}
}

func TestWithinTolerance(t *testing.T) {
	want := big.NewInt(10_000_000_000) // 10 TON

	tests := []struct {
		name string
		got  int64
		ok   bool
	}{
		{"exact", 10_000_000_000, true},
		{"short by tolerance", 10_000_000_000 - 100_000, true},
		{"over by tolerance", 10_000_000_000 + 100_000, true},
		{"short past tolerance", 10_000_000_000 - 100_001, false},
		{"way over", 20_000_000_000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WithinTolerance(big.NewInt(tt.got), want); got != tt.ok {
				t.Errorf("WithinTolerance(%d) = %v, want %v", tt.got, got, tt.ok)
			}
		})
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, s := range []string{"10", "1.5", "0.000000001", "123.456789012"} {
		n, err := ParseTON(s)
		if err != nil {
			t.Fatalf("ParseTON(%q): %v", s, err)
		}
		if got := FormatTON(n); got != s {
			t.Errorf("round trip %q -> %q", s, got)
		}
	}
}
