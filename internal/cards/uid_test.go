package cards

import "testing"

func TestNormalizeUID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "lowercase with colons", raw: "aa:bb:cc:dd", want: "AA:BB:CC:DD"},
		{name: "already normalized", raw: "AA:BB:CC:DD", want: "AA:BB:CC:DD"},
		{name: "dashes", raw: "04-a3-1f-2b", want: "04-A3-1F-2B"},
		{name: "no separators", raw: "04a31f2b", want: "04A31F2B"},
		{name: "surrounding whitespace", raw: "  aa:bb  ", want: "AA:BB"},
		{name: "empty", raw: "", wantErr: true},
		{name: "only whitespace", raw: "   ", wantErr: true},
		{name: "non-hex letters", raw: "GG:HH", wantErr: true},
		{name: "embedded space", raw: "AA BB", wantErr: true},
		{name: "sql-ish input", raw: "AA';DROP", wantErr: true},
		{name: "separators only", raw: ":-:", wantErr: true},
		{name: "single digit", raw: "A", wantErr: true},
		{name: "too long", raw: "AABBCCDDEEFFAABBCCDDEEFFAABBCCDD0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeUID(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NormalizeUID(%q) = %q, want error", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeUID(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeUID(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
