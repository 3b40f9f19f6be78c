package ratelimit

import (
	"math"
	"net/http"
	"nuvelon-admin/internal/audit"
	"nuvelon-admin/internal/http/clientip"
	herrors "nuvelon-admin/internal/http/errors"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultMaxRequests = 100
	DefaultWindow      = time.Minute
)

var rateLimitErrorHandler = herrors.NewErrorHandler("RateLimit")

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter hands every client IP a token bucket of maxRequests tokens refilled over window.
type Limiter struct {
	lock        sync.Mutex
	visitors    map[string]*visitor
	maxRequests int
	window      time.Duration
	lastSweep   time.Time
	security    audit.Logger
	now         func() time.Time
}

func New(maxRequests int, window time.Duration, security audit.Logger) *Limiter {
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		visitors:    make(map[string]*visitor),
		maxRequests: maxRequests,
		window:      window,
		security:    security,
		now:         time.Now,
	}
}

func (l *Limiter) interval() time.Duration {
	return l.window / time.Duration(l.maxRequests)
}

type decision struct {
	allowed   bool
	remaining int
	reset     time.Time
	retry     time.Duration
}

func (l *Limiter) allow(ip string) decision {
	l.lock.Lock()
	defer l.lock.Unlock()

	now := l.now()
	l.sweep(now)
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Every(l.interval()), l.maxRequests)}
		l.visitors[ip] = v
	}
	v.lastSeen = now

	allowed := v.limiter.AllowN(now, 1)
	tokens := v.limiter.TokensAt(now)
	remaining := int(math.Max(0, math.Floor(tokens)))
	missing := float64(l.maxRequests) - tokens
	d := decision{
		allowed:   allowed,
		remaining: remaining,
		reset:     now.Add(time.Duration(missing * float64(l.interval()))),
	}
	if !allowed {
		d.retry = time.Duration((1 - tokens) * float64(l.interval()))
	}
	return d
}

// sweep forgets clients idle for longer than a window; their bucket would be full again anyway.
func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.window {
			delete(l.visitors, ip)
		}
	}
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientip.FromRequest(r)
		d := l.allow(ip)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.maxRequests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.reset.Unix(), 10))

		if !d.allowed {
			retryAfter := int(math.Ceil(d.retry.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			l.security.Log(audit.Event{
				Event:     "RATE_LIMIT_EXCEEDED",
				IP:        ip,
				UserAgent: r.UserAgent(),
				Details:   map[string]any{"path": r.URL.Path, "limit": l.maxRequests},
				Success:   false,
				Error:     "rate limit exceeded",
			})
			rateLimitErrorHandler.WriteAndLogErrorMsg(
				w,
				"too many requests, try again later",
				http.StatusTooManyRequests,
				log.Fields{"ip": ip, "retryAfter": retryAfter},
			)
			return
		}
		next.ServeHTTP(w, r)
	})
}
