package privacy

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Store maps placeholder tokens to the original sensitive substrings for
// exactly one anonymize/reidentify cycle. It is owned by a single request,
// never shared, and must be wiped on every exit path. Wiping is a privacy
// invariant, not an optimization: a store that outlives its request keeps
// PHI in memory.
type Store struct {
	salt     string
	mappings map[string]string
	used     map[string]struct{}

	// Summary describes the pass that filled this store: counts and
	// category names only, safe to log after the store is wiped.
	Summary Summary
}

// NewStore creates a store with a fresh random salt. The salt seeds
// placeholder derivation, so two stores never mint identical tokens for
// identical input.
func NewStore() (*Store, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, fmt.Errorf("generate session salt: %w", err)
	}
	return &Store{
		salt:     hex.EncodeToString(buf[:]),
		mappings: make(map[string]string),
		used:     make(map[string]struct{}),
	}, nil
}

// Mint derives a placeholder for the given original value and records the
// association. The tag is the first 8 hex chars of SHA-256 over
// salt:original:category; a numeric suffix is appended until unique within
// this store.
func (s *Store) Mint(original string, category Category) string {
	sum := sha256.Sum256([]byte(s.salt + ":" + original + ":" + string(category)))
	tag := hex.EncodeToString(sum[:])[:8]

	base := fmt.Sprintf("[%s_%s]", strings.ToUpper(string(category)), tag)
	placeholder := base
	for counter := 1; ; counter++ {
		if _, taken := s.used[placeholder]; !taken {
			break
		}
		placeholder = fmt.Sprintf("[%s_%s_%d]", strings.ToUpper(string(category)), tag, counter)
	}

	s.used[placeholder] = struct{}{}
	s.mappings[placeholder] = original
	return placeholder
}

// Lookup returns the original value for a placeholder.
func (s *Store) Lookup(placeholder string) (string, bool) {
	original, ok := s.mappings[placeholder]
	return original, ok
}

// Placeholders returns all minted placeholder tokens.
func (s *Store) Placeholders() []string {
	out := make([]string, 0, len(s.mappings))
	for p := range s.mappings {
		out = append(out, p)
	}
	return out
}

// Len returns the number of recorded associations.
func (s *Store) Len() int { return len(s.mappings) }

// Wipe erases every association and the session salt. Safe to call more
// than once; the store is unusable afterward.
func (s *Store) Wipe() {
	for k := range s.mappings {
		delete(s.mappings, k)
	}
	for k := range s.used {
		delete(s.used, k)
	}
	s.salt = ""
}
