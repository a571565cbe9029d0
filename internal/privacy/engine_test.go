package privacy

import (
	"errors"
	"strings"
	"testing"

	"github.com/securedocflow/securedoc-proxy/internal/config"
	"github.com/securedocflow/securedoc-proxy/internal/logger"
)

func newTestEngine(t *testing.T, strict bool) *Engine {
	t.Helper()
	engine, err := NewEngine(config.PrivacyConfig{
		Enabled:          true,
		Detectors:        []string{"all"},
		StrictReidentify: strict,
	}, logger.NewNop())
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return engine
}

const clinicalNote = "Dr. Smith saw the patient on 2025-01-15. " +
	"Contact: alice.jones@example.com or 555-123-4567. " +
	"Diagnosis E11.9 recorded under MRN: 123456789."

func TestAnonymizeRoundTrip(t *testing.T) {
	engine := newTestEngine(t, false)

	masked, store, err := engine.Anonymize(clinicalNote)
	if err != nil {
		t.Fatalf("anonymize: %v", err)
	}
	defer store.Wipe()

	if masked == clinicalNote {
		t.Fatal("anonymize did not change the text")
	}

	restored, err := engine.Reidentify(masked, store)
	if err != nil {
		t.Fatalf("reidentify: %v", err)
	}
	if restored != clinicalNote {
		t.Errorf("round-trip failed\n  want: %q\n   got: %q", clinicalNote, restored)
	}
}

func TestAnonymizeNoLeakage(t *testing.T) {
	engine := newTestEngine(t, false)

	masked, store, err := engine.Anonymize(clinicalNote)
	if err != nil {
		t.Fatalf("anonymize: %v", err)
	}
	defer store.Wipe()

	for _, sensitive := range []string{
		"alice.jones@example.com",
		"555-123-4567",
		"2025-01-15",
		"Dr. Smith",
		"E11.9",
	} {
		if strings.Contains(masked, sensitive) {
			t.Errorf("masked text still contains %q: %s", sensitive, masked)
		}
	}
}

func TestPlaceholderUniquenessForDuplicateValues(t *testing.T) {
	engine := newTestEngine(t, false)

	text := "First copy bob@corp.io then second copy bob@corp.io"
	masked, store, err := engine.Anonymize(text)
	if err != nil {
		t.Fatalf("anonymize: %v", err)
	}
	defer store.Wipe()

	// Both occurrences share original and category, so the second mint must
	// receive a collision suffix distinct from the first.
	if store.Len() != 2 {
		t.Fatalf("expected 2 mappings, got %d", store.Len())
	}

	restored, err := engine.Reidentify(masked, store)
	if err != nil {
		t.Fatalf("reidentify: %v", err)
	}
	if restored != text {
		t.Errorf("round-trip failed with duplicate values\n  want: %q\n   got: %q", text, restored)
	}
}

func TestIndependentSessionsMintDifferentTags(t *testing.T) {
	engine := newTestEngine(t, false)

	text := "Reach me at carol@clinic.example"

	masked1, store1, err := engine.Anonymize(text)
	if err != nil {
		t.Fatalf("anonymize 1: %v", err)
	}
	defer store1.Wipe()

	masked2, store2, err := engine.Anonymize(text)
	if err != nil {
		t.Fatalf("anonymize 2: %v", err)
	}
	defer store2.Wipe()

	if masked1 == masked2 {
		t.Error("two independent sessions produced identical placeholder tags")
	}

	// Detection itself is deterministic: same categories, same counts.
	if store1.Summary.TotalMatches != store2.Summary.TotalMatches {
		t.Errorf("match counts differ: %d vs %d", store1.Summary.TotalMatches, store2.Summary.TotalMatches)
	}
	for cat, n := range store1.Summary.ByCategory {
		if store2.Summary.ByCategory[cat] != n {
			t.Errorf("category %s count differs: %d vs %d", cat, n, store2.Summary.ByCategory[cat])
		}
	}
}

func TestReidentifyStrictModeMissingPlaceholder(t *testing.T) {
	engine := newTestEngine(t, true)

	_, store, err := engine.Anonymize("Write to dave@example.org today")
	if err != nil {
		t.Fatalf("anonymize: %v", err)
	}
	defer store.Wipe()

	// Upstream response that dropped the placeholder entirely.
	_, err = engine.Reidentify("The response no longer carries the token.", store)
	var integrity *IntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("expected IntegrityError, got %v", err)
	}
	if integrity.Missing != 1 {
		t.Errorf("expected 1 missing placeholder, got %d", integrity.Missing)
	}
}

func TestReidentifyLenientModeMissingPlaceholder(t *testing.T) {
	engine := newTestEngine(t, false)

	_, store, err := engine.Anonymize("Write to dave@example.org today")
	if err != nil {
		t.Fatalf("anonymize: %v", err)
	}
	defer store.Wipe()

	restored, err := engine.Reidentify("The response no longer carries the token.", store)
	if err != nil {
		t.Fatalf("lenient mode must not fail on missing placeholders: %v", err)
	}
	if restored != "The response no longer carries the token." {
		t.Errorf("unexpected restoration result: %q", restored)
	}
}

func TestAnonymizeDisabledPassesThrough(t *testing.T) {
	engine, err := NewEngine(config.PrivacyConfig{Enabled: false}, logger.NewNop())
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	masked, store, err := engine.Anonymize(clinicalNote)
	if err != nil {
		t.Fatalf("anonymize: %v", err)
	}
	defer store.Wipe()

	if masked != clinicalNote {
		t.Error("disabled engine must not modify text")
	}
	if store.Len() != 0 {
		t.Errorf("disabled engine minted %d placeholders", store.Len())
	}
}

func TestStoreWipe(t *testing.T) {
	engine := newTestEngine(t, false)

	_, store, err := engine.Anonymize(clinicalNote)
	if err != nil {
		t.Fatalf("anonymize: %v", err)
	}
	if store.Len() == 0 {
		t.Fatal("expected mappings before wipe")
	}

	store.Wipe()
	if store.Len() != 0 {
		t.Errorf("wipe left %d mappings behind", store.Len())
	}
	if len(store.Placeholders()) != 0 {
		t.Error("wipe left placeholders behind")
	}

	// Wiping twice is safe.
	store.Wipe()
}
