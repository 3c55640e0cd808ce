package wire

import (
	"math/rand"
	"time"
)

// randomDelay returns a random duration between min and max
func randomDelay(min, max time.Duration) time.Duration {
	if min >= max {
		return min
	}
	delta := max - min
	return min + time.Duration(rand.Int63n(int64(delta)))
}

func clampMTU(mtu int) int {
	if mtu > MaxMTU {
		return MaxMTU
	}
	if mtu < DefaultMTU {
		return DefaultMTU
	}
	return mtu
}
