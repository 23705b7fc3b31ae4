// Package glob implements the byte-wise pattern matcher used by the rules
// sampler to match tag values against sampling-rule patterns.
package glob

// Match reports whether subject matches pattern. Matching is byte-wise, not
// UTF-8-aware: '*' matches any (possibly empty) run of bytes, '?' matches
// exactly one byte (never the empty string), and every other byte matches
// itself literally. There is no escaping.
//
// The algorithm is the standard two-pointer backtracking matcher: it walks
// pattern and subject together, and on a mismatch rewinds to the most recent
// '*' (if any), advancing the subject position it resumes from by one each
// time. This is O(len(pattern)*len(subject)) worst case, but linear for the
// common "*literal*literal*" shape.
func Match(pattern, subject string) bool {
	var pIdx, sIdx int
	var starIdx = -1 // index of the most recent '*' in pattern
	var starMatch int // subject index to resume from after that '*'

	for sIdx < len(subject) {
		switch {
		case pIdx < len(pattern) && pattern[pIdx] == '?':
			pIdx++
			sIdx++
		case pIdx < len(pattern) && pattern[pIdx] == '*':
			starIdx = pIdx
			starMatch = sIdx
			pIdx++
		case pIdx < len(pattern) && pattern[pIdx] == subject[sIdx]:
			pIdx++
			sIdx++
		case starIdx != -1:
			// Backtrack: keep the '*' consuming one more subject byte.
			pIdx = starIdx + 1
			starMatch++
			sIdx = starMatch
		default:
			return false
		}
	}

	// Consume any trailing stars; anything else left in pattern can't match.
	for pIdx < len(pattern) && pattern[pIdx] == '*' {
		pIdx++
	}
	return pIdx == len(pattern)
}
