package catalog

import (
	"math/rand/v2"
	"testing"
)

func TestCatalog_Shape(t *testing.T) {
	if Len() != 12 {
		t.Fatalf("catalog length = %d, want 12", Len())
	}
	for i, c := range Messages() {
		if c.Title == "" || c.Body == "" {
			t.Errorf("entry %d has empty title or body: %+v", i, c)
		}
	}
}

func TestAlertContent_Message(t *testing.T) {
	c := AlertContent{Title: "Reminder", Body: "Standup"}
	if got := c.Message(); got != "Reminder: Standup" {
		t.Errorf("Message() = %q, want %q", got, "Reminder: Standup")
	}
}

func TestMessages_ReturnsCopy(t *testing.T) {
	m := Messages()
	m[0].Title = "mutated"
	if Messages()[0].Title == "mutated" {
		t.Error("Messages() must not expose the backing table")
	}
}

func TestPick_Uniform(t *testing.T) {
	const draws = 12000
	r := rand.New(rand.NewPCG(42, 1337))

	all := Messages()
	counts := make([]int, Len())
	for i := 0; i < draws; i++ {
		idx, c := Pick(r)
		if all[idx] != c {
			t.Fatalf("Pick returned index %d with mismatched content", idx)
		}
		counts[idx]++
	}

	expected := float64(draws) / float64(Len())
	var chi2 float64
	for _, n := range counts {
		d := float64(n) - expected
		chi2 += d * d / expected
	}
	// 11 degrees of freedom; 45 is far past the p=0.001 critical value.
	if chi2 > 45 {
		t.Errorf("chi-square = %.2f over counts %v, selection does not look uniform", chi2, counts)
	}
	for i, n := range counts {
		if n == 0 {
			t.Errorf("entry %d never selected", i)
		}
	}
}

func TestPick_NilSource(t *testing.T) {
	for i := 0; i < 100; i++ {
		if idx, _ := Pick(nil); idx < 0 || idx >= Len() {
			t.Fatalf("Pick(nil) index %d out of range", idx)
		}
	}
}

func TestPatterns(t *testing.T) {
	ps := Patterns()
	if len(ps) != 6 {
		t.Fatalf("pattern count = %d, want 6", len(ps))
	}
	seen := map[string]bool{}
	for _, p := range ps {
		if seen[p.Key] {
			t.Errorf("duplicate pattern key %q", p.Key)
		}
		seen[p.Key] = true
		if len(p.Pulses) == 0 {
			t.Errorf("pattern %q has no pulses", p.Key)
		}
		for _, ms := range p.Pulses {
			if ms < 0 {
				t.Errorf("pattern %q has negative pulse %d", p.Key, ms)
			}
		}
	}
	if !seen[DefaultPatternKey] {
		t.Errorf("default pattern %q missing", DefaultPatternKey)
	}
}

func TestLookupPattern(t *testing.T) {
	tests := []struct {
		key    string
		wantOK bool
	}{
		{"default", true},
		{"sos", true},
		{"heartbeat", true},
		{"nope", false},
		{"", false},
	}
	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			p, ok := LookupPattern(tc.key)
			if ok != tc.wantOK {
				t.Fatalf("LookupPattern(%q) ok = %v, want %v", tc.key, ok, tc.wantOK)
			}
			if ok && p.Key != tc.key {
				t.Errorf("key = %q, want %q", p.Key, tc.key)
			}
		})
	}
}

func TestLookupPattern_DoesNotAlias(t *testing.T) {
	p, _ := LookupPattern("default")
	p.Pulses[0] = 9999
	again, _ := LookupPattern("default")
	if again.Pulses[0] == 9999 {
		t.Error("LookupPattern must return a copy of the pulses")
	}
}

func TestVibrationPattern_Duration(t *testing.T) {
	p := VibrationPattern{Pulses: []int{200, 100, 200}}
	if got := p.Duration().Milliseconds(); got != 500 {
		t.Errorf("Duration = %dms, want 500ms", got)
	}
}
