package tokens

import "testing"

func TestEstimate(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"short", "abc", 0},
		{"exact", "abcd", 1},
		{"sentence", "Deploy via the script, then verify health.", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Estimate(tt.text); got != tt.want {
				t.Errorf("Estimate(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestCounter_FallbackNeverPanics(t *testing.T) {
	// Unknown names must still yield a usable counter.
	c := NewCounter("definitely-not-a-model")
	if got := c.Count("hello world"); got <= 0 {
		t.Errorf("Count returned %d, want positive", got)
	}
}
