package h2io

import "testing"

func TestPriorityWeightMapping(t *testing.T) {
	cases := []struct {
		p    Priority
		want byte
	}{
		{PriorityVeryLow, minWeight - 1},
		{PriorityLow, minWeight + (defaultWeight-minWeight)/2 - 1},
		{PriorityNormal, defaultWeight - 1},
		{PriorityHigh, defaultWeight + (maxWeight-defaultWeight)/2 - 1},
		{PriorityVeryHigh, maxWeight - 1},
	}
	for _, c := range cases {
		if got := c.p.Weight(); got != c.want {
			t.Errorf("%s.Weight() = %d, want %d", c.p, got, c.want)
		}
	}
}

func TestPriorityWeightMonotonic(t *testing.T) {
	levels := []Priority{PriorityVeryLow, PriorityLow, PriorityNormal, PriorityHigh, PriorityVeryHigh}
	for i := 1; i < len(levels); i++ {
		if levels[i].Weight() <= levels[i-1].Weight() {
			t.Errorf("%s.Weight() (%d) should exceed %s.Weight() (%d)",
				levels[i], levels[i].Weight(), levels[i-1], levels[i-1].Weight())
		}
	}
}

func TestPriorityString(t *testing.T) {
	if PriorityVeryHigh.String() != "very-high" {
		t.Errorf("unexpected String(): %s", PriorityVeryHigh.String())
	}
	if Priority(99).String() != "normal" {
		t.Errorf("unknown priority should fall back to normal, got %s", Priority(99).String())
	}
}
