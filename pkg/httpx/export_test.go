package httpx

import "time"

// RateLimitAt is RateLimit on a caller supplied clock. The returned func
// reports how many buckets are held.
func RateLimitAt(limit Limit, key KeyFunc, now func() time.Time) (Middleware, func() int) {
	set := newBuckets(limit, now)
	return rateLimit(set, key), set.size
}

var (
	IPKey         = ipKey
	UserKey       = userKey
	IPAndFieldKey = ipAndFieldKey
)
