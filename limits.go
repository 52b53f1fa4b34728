package queryengine

const (
	MaxLimit     = 100
	DefaultLimit = 20
)

// IsNormalizedLimitMax clamps limit into [1, maxLimit]. Non-positive values
// fall back to defaultLimit. The second return value reports whether the
// limit was already within bounds.
func IsNormalizedLimitMax(limit, defaultLimit, maxLimit int) (int, bool) {
	if limit <= 0 {
		return min(defaultLimit, maxLimit), false
	} else if limit > maxLimit {
		return maxLimit, false
	}

	return limit, true
}

func NormalizeLimitMax(limit, defaultLimit, maxLimit int) int {
	ret, _ := IsNormalizedLimitMax(limit, defaultLimit, maxLimit)
	return ret
}

func NormalizeLimit(limit int) int {
	return NormalizeLimitMax(limit, DefaultLimit, MaxLimit)
}
