package domain

import "testing"

func TestNormalizePlate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trims and uppercases", " abc-123 ", "ABC-123"},
		{"already canonical", "ABC-123", "ABC-123"},
		{"internal whitespace removed", "abc 1234", "ABC1234"},
		{"tabs and multiple spaces", "\tzgd\t 605 ", "ZGD605"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePlate(tt.in); got != tt.want {
				t.Fatalf("NormalizePlate(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizePlateIdempotent(t *testing.T) {
	inputs := []string{" abc-123 ", "ABC-123", "xyz 789", "296-xhv", ""}
	for _, in := range inputs {
		once := NormalizePlate(in)
		if twice := NormalizePlate(once); twice != once {
			t.Fatalf("normalize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestNormalizePlatesDropsEmpty(t *testing.T) {
	got := NormalizePlates([]string{" abc-123 ", "  ", "xyz 789"})
	if len(got) != 2 || got[0] != "ABC-123" || got[1] != "XYZ789" {
		t.Fatalf("unexpected normalized plates: %v", got)
	}
}
