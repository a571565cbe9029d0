package privacy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/securedocflow/securedoc-proxy/internal/config"
	"github.com/securedocflow/securedoc-proxy/internal/logger"
	"go.uber.org/zap"
)

// IntegrityError reports placeholders minted during anonymization that no
// longer appear in the upstream response. Raised only in strict mode;
// otherwise the condition is logged and restoration proceeds partially.
type IntegrityError struct {
	Missing int
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("reidentification integrity: %d placeholder(s) missing from upstream response", e.Missing)
}

// Engine turns detected spans into reversible placeholder substitutions.
// One Engine is shared across requests; all per-request state lives in the
// Store returned by Anonymize.
type Engine struct {
	detector *Detector
	enabled  bool
	strict   bool
	logger   *logger.Logger
}

// NewEngine creates the anonymization engine.
func NewEngine(cfg config.PrivacyConfig, log *logger.Logger) (*Engine, error) {
	detector, err := NewDetector(cfg, log)
	if err != nil {
		return nil, err
	}
	return &Engine{
		detector: detector,
		enabled:  cfg.Enabled,
		strict:   cfg.StrictReidentify,
		logger:   log,
	}, nil
}

// Anonymize masks every detected PHI span in text and returns the masked
// text together with the store holding the reverse mappings. The caller owns
// the store and must Wipe it when the request finishes, on success or
// failure.
func (e *Engine) Anonymize(text string) (string, *Store, error) {
	store, err := NewStore()
	if err != nil {
		return "", nil, err
	}

	if !e.enabled {
		return text, store, nil
	}

	matches := e.detector.Detect(text)

	store.Summary = Summary{ByCategory: make(map[Category]int), TotalMatches: len(matches)}
	for i := range matches {
		matches[i].placeholder(store)
		store.Summary.ByCategory[matches[i].Category]++
	}

	// Substitute right to left so earlier replacements never invalidate the
	// offsets of matches not yet applied.
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Start > matches[j].Start
	})

	masked := text
	for _, m := range matches {
		masked = masked[:m.Start] + m.minted + masked[m.End:]
	}

	e.logger.Info("text anonymized",
		zap.Int("elements", len(matches)),
		zap.Any("by_category", store.Summary.ByCategory),
	)

	return masked, store, nil
}

// placeholder mints the placeholder for a match and caches it on the match.
func (m *Match) placeholder(store *Store) {
	m.minted = store.Mint(m.Original, m.Category)
}

// Reidentify restores the original values in text using the store. It first
// validates that every minted placeholder still appears verbatim; an absent
// placeholder means the upstream altered or dropped a masked token.
func (e *Engine) Reidentify(text string, store *Store) (string, error) {
	placeholders := store.Placeholders()

	missing := 0
	for _, p := range placeholders {
		if !strings.Contains(text, p) {
			missing++
		}
	}
	if missing > 0 {
		e.logger.Warn("placeholders missing from upstream response",
			zap.Int("missing", missing),
			zap.Int("total", len(placeholders)),
		)
		if e.strict {
			return "", &IntegrityError{Missing: missing}
		}
	}

	// Longest placeholders first, so a collision-suffixed token is never
	// partially overwritten by its shorter base.
	sort.Slice(placeholders, func(i, j int) bool {
		return len(placeholders[i]) > len(placeholders[j])
	})

	restored := text
	for _, p := range placeholders {
		original, ok := store.Lookup(p)
		if !ok {
			continue
		}
		restored = strings.ReplaceAll(restored, p, original)
	}

	e.logger.Info("text reidentified",
		zap.Int("mappings", len(placeholders)),
		zap.Int("missing", missing),
	)

	return restored, nil
}
