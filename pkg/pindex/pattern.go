package pindex

// matchGlob reports whether path matches pattern, where '*' matches any
// run of characters (including none), '?' matches exactly one character,
// and every other rune, including '/', matches itself literally (spec
// §4.4 "pattern matcher supporting *, ?, and / as literal"). Grounded on
// the teacher's explicit, non-library string matcher in
// pkg/storage/boltdb.go's matchWildcard, generalized from a single
// leading-"*." case to the full glob alphabet.
func matchGlob(pattern, path string) bool {
	return matchGlobRunes([]rune(pattern), []rune(path))
}

func matchGlobRunes(pattern, path []rune) bool {
	// dp[i][j] = pattern[i:] matches path[j:]
	plen, slen := len(pattern), len(path)
	dp := make([][]bool, plen+1)
	for i := range dp {
		dp[i] = make([]bool, slen+1)
	}
	dp[plen][slen] = true
	for i := plen - 1; i >= 0; i-- {
		for j := slen; j >= 0; j-- {
			if pattern[i] == '*' {
				dp[i][j] = dp[i+1][j] || (j < slen && dp[i][j+1])
			} else if j < slen && (pattern[i] == '?' || pattern[i] == path[j]) {
				dp[i][j] = dp[i+1][j+1]
			} else {
				dp[i][j] = false
			}
		}
	}
	return dp[0][0]
}

// isGlobPattern reports whether q contains glob metacharacters, the
// signal the index uses to pick an in-order leaf scan over an O(log n)
// point lookup (spec §4.4).
func isGlobPattern(q string) bool {
	for _, r := range q {
		if r == '*' || r == '?' {
			return true
		}
	}
	return false
}
