package privacy

import (
	"fmt"
	"sort"

	"github.com/securedocflow/securedoc-proxy/internal/config"
	"github.com/securedocflow/securedoc-proxy/internal/logger"
	"go.uber.org/zap"
)

// Detector runs the ordered rule table over raw text and produces
// non-overlapping candidate spans.
type Detector struct {
	rules   []DetectionRule
	enabled map[Category]bool
	logger  *logger.Logger
}

// NewDetector creates a detector with the default rule table, enabling the
// categories named in cfg.Detectors ("all" enables everything).
func NewDetector(cfg config.PrivacyConfig, log *logger.Logger) (*Detector, error) {
	d := &Detector{
		rules:   DefaultRules(),
		enabled: make(map[Category]bool),
		logger:  log,
	}

	if err := d.configure(cfg.Detectors); err != nil {
		return nil, fmt.Errorf("failed to configure detectors: %w", err)
	}

	log.Info("PHI detector initialized",
		zap.Int("total_rules", len(d.rules)),
		zap.Int("enabled_rules", d.countEnabled()),
	)

	return d, nil
}

func (d *Detector) configure(detectors []string) error {
	for _, rule := range d.rules {
		d.enabled[rule.Category] = false
	}

	for _, name := range detectors {
		if name == "all" {
			for _, rule := range d.rules {
				d.enabled[rule.Category] = true
			}
			continue
		}

		found := false
		for _, rule := range d.rules {
			if string(rule.Category) == name {
				d.enabled[rule.Category] = true
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown detector: %s", name)
		}
	}

	return nil
}

// Detect runs every enabled rule over the full input once, independently,
// then resolves overlapping spans. The returned matches are pairwise
// disjoint and ordered by start offset ascending.
func (d *Detector) Detect(text string) []Match {
	var candidates []Match

	for priority, rule := range d.rules {
		if !d.enabled[rule.Category] {
			continue
		}
		for _, loc := range rule.Pattern.FindAllStringIndex(text, -1) {
			candidates = append(candidates, Match{
				Start:    loc[0],
				End:      loc[1],
				Original: text[loc[0]:loc[1]],
				Category: rule.Category,
				Priority: priority,
			})
		}
	}

	return resolveOverlaps(candidates)
}

// resolveOverlaps applies the deterministic overlap policy: the longest span
// wins; ties go to the rule earlier in the table, then to the earlier start
// offset. Rules fire independently, so a clinical-code match inside a
// structured-id match is common and must not produce nested placeholders.
func resolveOverlaps(candidates []Match) []Match {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Len() != b.Len() {
			return a.Len() > b.Len()
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.Start < b.Start
	})

	var accepted []Match
	for _, c := range candidates {
		conflict := false
		for _, a := range accepted {
			if c.overlaps(a) {
				conflict = true
				break
			}
		}
		if !conflict {
			accepted = append(accepted, c)
		}
	}

	sort.Slice(accepted, func(i, j int) bool {
		return accepted[i].Start < accepted[j].Start
	})
	return accepted
}

// EnabledCategories returns the categories currently enabled, in rule order.
func (d *Detector) EnabledCategories() []Category {
	var out []Category
	for _, rule := range d.rules {
		if d.enabled[rule.Category] {
			out = append(out, rule.Category)
		}
	}
	return out
}

func (d *Detector) countEnabled() int {
	count := 0
	for _, on := range d.enabled {
		if on {
			count++
		}
	}
	return count
}
