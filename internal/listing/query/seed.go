// internal/listing/query/seed.go
package query

import (
	"math/rand"
	"time"
)

// BucketSeed returns the randomization seed for the time bucket containing
// now. The bucket width equals the result cache TTL, so the random order and
// the cached results roll over together.
func BucketSeed(now time.Time, window time.Duration) int64 {
	if window <= 0 {
		window = 15 * time.Minute
	}
	return now.Unix() / int64(window.Seconds())
}

// RandomSeed returns a fresh seed for every call. Used when the debug cache
// bypass is active so each request gets a different order.
func RandomSeed() int64 {
	return rand.Int63()
}
