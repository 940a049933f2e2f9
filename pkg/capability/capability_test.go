package capability

import (
	"testing"
)

func TestNegotiateByVersion(t *testing.T) {
	tests := []struct {
		version string
		want    []Feature
	}{
		{"1.5.2", nil},
		{"1.5.9", nil},
		{"1.6", []Feature{EditBook}},
		{"1.7.10", []Feature{EditBook}},
		{"1.7.10-R0.1-SNAPSHOT", []Feature{EditBook}},
		{"1.8", []Feature{EditBook, InteractAtEntity}},
		{"1.8.8", []Feature{EditBook, InteractAtEntity}},
		{"1.12.2-R0.1-SNAPSHOT", []Feature{EditBook, InteractAtEntity, SwapHandItems}},
		{"v1.9", []Feature{EditBook, InteractAtEntity, SwapHandItems}},
		{"garbage", nil},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			got := Negotiate(tt.version, nil).List()
			if len(got) != len(tt.want) {
				t.Fatalf("Negotiate(%q) = %v, want %v", tt.version, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Negotiate(%q)[%d] = %v, want %v", tt.version, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNegotiateReportedWins(t *testing.T) {
	set := Negotiate("1.12.2", []string{"SWAP_HAND_ITEMS", "teleport"})
	if !set.Has(SwapHandItems) {
		t.Error("reported feature should be available")
	}
	if set.Has(EditBook) {
		t.Error("version should be ignored when features are reported")
	}
	if names := set.Names(); len(names) != 1 || names[0] != "swap_hand_items" {
		t.Errorf("Names() = %v", names)
	}
}

func TestCanonicalVersion(t *testing.T) {
	if got := canonicalVersion("1.12"); got != "v1.12.0" {
		t.Errorf("canonicalVersion(1.12) = %q", got)
	}
	if got := canonicalVersion("1..2"); got != "" {
		t.Errorf("canonicalVersion(1..2) = %q, want empty", got)
	}
}
