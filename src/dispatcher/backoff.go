package dispatcher

import "time"

// backoffDelay returns the pause before retry number attempt (1-based:
// attempt 1 is the delay after the first failure). The exchange's own
// Retry-After hint wins when present; otherwise the base delay doubles
// per attempt. Both paths are capped at max.
func backoffDelay(attempt int, base, max, hint time.Duration) time.Duration {
	if hint > 0 {
		if hint > max {
			return max
		}
		return hint
	}

	if attempt < 1 {
		attempt = 1
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
