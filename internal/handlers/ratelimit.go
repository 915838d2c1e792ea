package handlers

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the limiter table. When it is full, idle clients
// are dropped first and then the least recently seen one.
const maxTrackedClients = 10000

const contextPeerKey contextKey = "peer"

// PeerAddr records the transport address of the connection before any
// forwarding header rewrites r.RemoteAddr. It must run ahead of
// middleware.RealIP.
func PeerAddr(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), contextPeerKey, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type clientLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientEntry
	limit   rate.Limit
	burst   int
	max     int
	now     func() time.Time
}

func newClientLimiter(limit rate.Limit, burst, max int) *clientLimiter {
	return &clientLimiter{
		clients: make(map[string]*clientEntry),
		limit:   limit,
		burst:   burst,
		max:     max,
		now:     time.Now,
	}
}

func (c *clientLimiter) allow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entry, ok := c.clients[key]
	if !ok {
		if len(c.clients) >= c.max {
			c.evict(now)
		}
		entry = &clientEntry{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.clients[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// evict drops clients whose bucket has refilled completely. Such a client
// would get a fresh limiter anyway. If none qualify, the least recently seen
// client goes.
func (c *clientLimiter) evict(now time.Time) {
	refill := time.Duration(float64(c.burst) / float64(c.limit) * float64(time.Second))

	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)
	for key, entry := range c.clients {
		if now.Sub(entry.lastSeen) >= refill {
			delete(c.clients, key)
			continue
		}
		if !found || entry.lastSeen.Before(oldest) {
			oldestKey, oldest, found = key, entry.lastSeen, true
		}
	}
	if found && len(c.clients) >= c.max {
		delete(c.clients, oldestKey)
	}
}

// RateLimit returns middleware allowing perMinute requests per connecting
// peer with the given burst. Non-positive perMinute disables limiting.
func RateLimit(perMinute, burst int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = 1
	}

	limiter := newClientLimiter(rate.Limit(float64(perMinute)/60), burst, maxTrackedClients)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.allow(peerIP(r)) {
				w.Header().Set("Retry-After", "60")
				writeError(w, r, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// peerIP prefers the address captured by PeerAddr, so X-Forwarded-For and
// X-Real-IP cannot pick the limiter bucket.
func peerIP(r *http.Request) string {
	addr, ok := r.Context().Value(contextPeerKey).(string)
	if !ok {
		addr = r.RemoteAddr
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
