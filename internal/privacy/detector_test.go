package privacy

import (
	"testing"

	"github.com/securedocflow/securedoc-proxy/internal/config"
	"github.com/securedocflow/securedoc-proxy/internal/logger"
)

func newTestDetector(t *testing.T, detectors ...string) *Detector {
	t.Helper()
	d, err := NewDetector(config.PrivacyConfig{Detectors: detectors}, logger.NewNop())
	if err != nil {
		t.Fatalf("failed to create detector: %v", err)
	}
	return d
}

func TestDetectCategories(t *testing.T) {
	d := newTestDetector(t, "all")

	tests := []struct {
		name     string
		text     string
		category Category
		match    string
	}{
		{"iso date", "admitted on 2025-01-15 for observation", CategoryDate, "2025-01-15"},
		{"eu date", "Termin am 31.12.2025 bestätigt", CategoryDate, "31.12.2025"},
		{"written month", "seen on 3. Januar 2026", CategoryDate, "3. Januar 2026"},
		{"mrn", "chart MRN: 123456789 pulled", CategoryID, "MRN: 123456789"},
		{"ssn", "number SSN 123-45-6789 on file", CategoryID, "SSN 123-45-6789"},
		{"email", "send to nurse.station@hospital.org please", CategoryEmail, "nurse.station@hospital.org"},
		{"phone", "call 555-123-4567 after hours", CategoryPhone, "555-123-4567"},
		{"honorific name", "referred by Dr. Weber today", CategoryName, "Dr. Weber"},
		{"icd10", "coded as E11.9 this visit", CategoryICD10, "E11.9"},
		{"genetic marker", "DNA sample collected", CategoryGenetic, "DNA"},
		{"union", "member of IG Metall since 2019", CategoryUnion, "IG Metall"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := d.Detect(tt.text)
			found := false
			for _, m := range matches {
				if m.Category == tt.category && m.Original == tt.match {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("expected %s match %q in %q, got %+v", tt.category, tt.match, tt.text, matches)
			}
		})
	}
}

func TestDetectReturnsDisjointSpans(t *testing.T) {
	d := newTestDetector(t, "all")

	// The identifier rule and the phone rule both fire on the digits here;
	// the longer identifier span must win and the phone candidate must be
	// discarded, not nested.
	matches := d.Detect("Patient ID 5551234567 called back.")

	if len(matches) != 1 {
		t.Fatalf("expected exactly 1 match after overlap resolution, got %d: %+v", len(matches), matches)
	}
	if matches[0].Category != CategoryID {
		t.Errorf("longest span must win, got category %s", matches[0].Category)
	}
	if matches[0].Original != "ID 5551234567" {
		t.Errorf("unexpected winning span %q", matches[0].Original)
	}
}

func TestDetectOrderedByStartOffset(t *testing.T) {
	d := newTestDetector(t, "all")

	matches := d.Detect("Dr. Klein, reachable at k.klein@praxis.de or 555-987-6543.")
	if len(matches) < 3 {
		t.Fatalf("expected at least 3 matches, got %d", len(matches))
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Start < matches[i-1].End {
			t.Errorf("matches overlap or are unordered at %d: %+v", i, matches)
		}
	}
}

func TestDetectRespectsEnabledCategories(t *testing.T) {
	d := newTestDetector(t, "email")

	matches := d.Detect("Dr. Klein wrote to k.klein@praxis.de on 2025-01-15")
	if len(matches) != 1 {
		t.Fatalf("expected only the email match, got %+v", matches)
	}
	if matches[0].Category != CategoryEmail {
		t.Errorf("got category %s, want email", matches[0].Category)
	}
}

func TestNewDetectorUnknownCategory(t *testing.T) {
	_, err := NewDetector(config.PrivacyConfig{Detectors: []string{"palmistry"}}, logger.NewNop())
	if err == nil {
		t.Fatal("expected error for unknown detector name")
	}
}

func TestResolveOverlapsTieBreaksByRulePriority(t *testing.T) {
	candidates := []Match{
		{Start: 0, End: 5, Original: "aaaaa", Category: CategoryEmail, Priority: 2},
		{Start: 0, End: 5, Original: "aaaaa", Category: CategoryID, Priority: 1},
	}

	accepted := resolveOverlaps(candidates)
	if len(accepted) != 1 {
		t.Fatalf("expected 1 accepted match, got %d", len(accepted))
	}
	if accepted[0].Category != CategoryID {
		t.Errorf("equal-length tie must go to the earlier rule, got %s", accepted[0].Category)
	}
}
