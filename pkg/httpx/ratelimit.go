package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/acctly/pkg/slogx"
	"golang.org/x/time/rate"
)

// Limit is a token bucket that refills Requests tokens evenly over Window.
// A client that has been quiet for a full Window may spend all of them at once.
type Limit struct {
	Requests int
	Window   time.Duration
}

func (l Limit) every() rate.Limit {
	return rate.Limit(float64(l.Requests) / l.Window.Seconds())
}

// Limits are the budgets the account routes draw from.
type Limits struct {
	// Credential covers anything that checks a password or a code, and
	// anything that sends mail.
	Credential Limit
	// Account covers authenticated writes that check nothing secret.
	Account Limit
	// Status covers authenticated reads and health checks.
	Status Limit
	// Public covers the JWKS document.
	Public Limit
}

// DefaultLimits returns the production budgets.
func DefaultLimits() Limits {
	return Limits{
		Credential: Limit{Requests: 5, Window: time.Minute},
		Account:    Limit{Requests: 20, Window: time.Minute},
		Status:     Limit{Requests: 100, Window: time.Minute},
		Public:     Limit{Requests: 1000, Window: time.Minute},
	}
}

// KeyFunc names the budget a request spends from. Requests with an empty key
// are not limited.
type KeyFunc func(*http.Request) string

// ClientIP returns the caller's address, preferring the first X-Forwarded-For
// hop, then X-Real-IP, then the connection's remote address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// ipKey spends from the caller's address.
func ipKey(r *http.Request) string {
	return "ip:" + ClientIP(r)
}

// userKey spends from the session subject, or the caller's address when the
// request is anonymous. It must run after AuthnMiddleware.
func userKey(r *http.Request) string {
	if id := UserIDFromContext(r.Context()); id != "" {
		return "user:" + id
	}
	return ipKey(r)
}

// ipAndFieldKey spends from the caller's address paired with a string field of
// the JSON body, so one address guessing at many accounts gets a budget per
// account and each account's budget is still per address.
func ipAndFieldKey(field string) KeyFunc {
	return func(r *http.Request) string {
		key := ipKey(r)
		if v := peekJSONField(r, field); v != "" {
			key += "|" + field + ":" + v
		}
		return key
	}
}

// maxPeekBytes bounds how much of a body is buffered to find a key field.
const maxPeekBytes = 64 << 10

type replayBody struct {
	io.Reader
	io.Closer
}

// peekJSONField reads the named top level string from a JSON object body,
// case folded and trimmed. The body is handed back to r unchanged, including
// any part past maxPeekBytes. Bodies whose object does not close inside the
// peeked prefix yield "".
func peekJSONField(r *http.Request, field string) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}

	head, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBytes))
	r.Body = replayBody{Reader: io.MultiReader(bytes.NewReader(head), r.Body), Closer: r.Body}
	if err != nil {
		return ""
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(head, &obj); err != nil {
		return ""
	}
	var v string
	if err := json.Unmarshal(obj[field], &v); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(v))
}

// buckets holds one token bucket per key. A bucket untouched for a whole
// window has refilled, so dropping it loses nothing.
type buckets struct {
	limit Limit
	now   func() time.Time

	mu        sync.Mutex
	byKey     map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func newBuckets(limit Limit, now func() time.Time) *buckets {
	return &buckets{
		limit:     limit,
		now:       now,
		byKey:     make(map[string]*bucket),
		lastSweep: now(),
	}
}

// take spends one token from key's bucket. When the bucket is empty it reports
// how long until the next token.
func (b *buckets) take(key string) (bool, time.Duration) {
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	if now.Sub(b.lastSweep) >= b.limit.Window {
		for k, bk := range b.byKey {
			if now.Sub(bk.seen) >= b.limit.Window {
				delete(b.byKey, k)
			}
		}
		b.lastSweep = now
	}

	bk, ok := b.byKey[key]
	if !ok {
		bk = &bucket{lim: rate.NewLimiter(b.limit.every(), b.limit.Requests)}
		b.byKey[key] = bk
	}
	bk.seen = now

	res := bk.lim.ReserveN(now, 1)
	if !res.OK() {
		return false, b.limit.Window
	}
	if wait := res.DelayFrom(now); wait > 0 {
		res.CancelAt(now)
		return false, wait
	}
	return true, 0
}

func (b *buckets) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.byKey)
}

// RateLimit rejects requests beyond limit per key with 429 too_many_attempts
// and a Retry-After header in whole seconds.
func RateLimit(limit Limit, key KeyFunc) Middleware {
	return rateLimit(newBuckets(limit, time.Now), key)
}

func rateLimit(set *buckets, key KeyFunc) Middleware {
	limitHeader := strconv.Itoa(set.limit.Requests)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			ok, wait := set.take(k)
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := max(int(math.Ceil(wait.Seconds())), 1)
			slogx.FromContext(r.Context()).Warn("rate limit exceeded",
				"key", k,
				"path", r.URL.Path,
				"retry_after", retryAfter,
			)

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Limit", limitHeader)
			w.Header().Set("X-RateLimit-Window", set.limit.Window.String())
			WriteJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":             "too_many_attempts",
				"error_description": "Too many attempts. Try again later.",
			})
		})
	}
}

// RateLimitByIP limits by caller address.
func RateLimitByIP(limit Limit) Middleware {
	return RateLimit(limit, ipKey)
}

// RateLimitByUser limits by session subject. Place it after AuthnMiddleware.
func RateLimitByUser(limit Limit) Middleware {
	return RateLimit(limit, userKey)
}

// RateLimitByIPAndJSONField limits by caller address and a JSON body field,
// such as the email of a login attempt.
func RateLimitByIPAndJSONField(limit Limit, field string) Middleware {
	return RateLimit(limit, ipAndFieldKey(field))
}
