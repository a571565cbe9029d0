package privacy

import "regexp"

// DefaultRules returns the ordered detection rule table. Table order is the
// category priority used for overlap resolution, so structured identifiers
// outrank the broader special-category markers below them.
//
// Detection is pattern-based and best-effort. The special-category rules
// (GDPR Art. 9 style markers: clinical codes, genetic/biometric terms,
// religion, political affiliation, union membership, sexual orientation)
// catch common structured markers and explicit labels, not free prose.
func DefaultRules() []DetectionRule {
	return []DetectionRule{
		{
			// EU (31.12.2025), ISO (2025-12-31), US (12/31/2025) and
			// written month forms in German and English (3. Januar 2026).
			Category: CategoryDate,
			Pattern: regexp.MustCompile(`(?i)\b(?:` +
				`(?:0?[1-9]|[12]\d|3[01])[./\-](?:0?[1-9]|1[0-2])[./\-](?:\d{4}|\d{2})` +
				`|\d{4}[./\-](?:0?[1-9]|1[0-2])[./\-](?:0?[1-9]|[12]\d|3[01])` +
				`|(?:0?[1-9]|1[0-2])/(?:0?[1-9]|[12]\d|3[01])/(?:\d{4}|\d{2})` +
				`|(?:0?[1-9]|[12]\d|3[01])\.?\s*` +
				`(?:Jan(?:uar)?|Feb(?:ruar)?|Mär(?:z)?|Maerz|Apr(?:il)?|Mai|Jun(?:i)?|Jul(?:i)?|Aug(?:ust)?|Sep(?:tember)?|Okt(?:ober)?|Nov(?:ember)?|Dez(?:ember)?` +
				`|January|February|March|April|May|June|July|August|September|October|November|December)\s*` +
				`(?:\d{4}|\d{2})` +
				`)\b`),
		},
		{
			Category: CategoryID,
			Pattern:  regexp.MustCompile(`(?i)\b(?:MRN|ID|SSN)[:\s-]*(\d{3}-\d{2}-\d{4}|\d{9}|\w+\d{4,})\b`),
		},
		{
			Category: CategoryEmail,
			Pattern:  regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
		},
		{
			Category: CategoryPhone,
			Pattern:  regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}\b`),
		},
		{
			// Honorific-prefixed names only; bare names need NLP, which is
			// out of scope.
			Category: CategoryName,
			Pattern:  regexp.MustCompile(`\b(?:Dr\.|Mr\.|Mrs\.|Ms\.)\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?\b`),
		},
		{
			// ICD-10 clinical codes, e.g. E11.9
			Category: CategoryICD10,
			Pattern:  regexp.MustCompile(`\b[A-TV-Z][0-9]{2}(?:\.[0-9A-TV-Z]{1,2})?\b`),
		},
		{
			Category: CategoryGenetic,
			Pattern:  regexp.MustCompile(`(?i)\b(?:DNA|genetisch(?:e|er|es)?|biometrisch(?:e|er|es)?|Fingerabdruck|Gesichtserkennung)\b`),
		},
		{
			Category: CategoryReligion,
			Pattern:  regexp.MustCompile(`(?i)\b(?:katholisch|evangelisch|muslim(?:isch)?|jüdisch|buddhist(?:isch)?|hindu(?:istisch)?|atheist(?:isch)?)\b`),
		},
		{
			Category: CategoryPolitics,
			Pattern:  regexp.MustCompile(`(?i)\b(?:CDU|CSU|SPD|FDP|AfD|Die\s+Linke|GRÜNE|Grüne)\b`),
		},
		{
			Category: CategoryUnion,
			Pattern:  regexp.MustCompile(`(?i)\b(?:Gewerkschaft|ver\.di|IG\s+Metall|IG\s+BCE)\b`),
		},
		{
			Category: CategorySexual,
			Pattern:  regexp.MustCompile(`(?i)\b(?:sexuelle\s+Orientierung|homosexuell|heterosexuell|bisexuell|transgender|queer)\b`),
		},
	}
}
