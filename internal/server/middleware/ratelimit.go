package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/iudanet/transitauth/internal/server/apierr"
	"github.com/iudanet/transitauth/internal/server/response"
)

// RateLimiter ограничивает число запросов с одного IP в фиксированном окне
type RateLimiter struct {
	buckets map[string]*bucket
	logger  *slog.Logger
	now     func() time.Time
	done    chan struct{}
	label   string
	rate    int
	window  time.Duration
	mu      sync.RWMutex
	stop    sync.Once
}

// bucket счетчик запросов одного клиента в текущем окне
type bucket struct {
	windowStart time.Time
	tokens      int
	mu          sync.Mutex
}

// NewRateLimiter allows rate requests per key in every window. Idle keys are
// swept in the background until Stop is called.
func NewRateLimiter(rate int, window time.Duration, logger *slog.Logger) *RateLimiter {
	rl := newRateLimiter(rate, window, logger, time.Now)
	go rl.sweepLoop()
	return rl
}

func newRateLimiter(rate int, window time.Duration, logger *slog.Logger, now func() time.Time) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		logger:  logger,
		now:     now,
		done:    make(chan struct{}),
		label:   "default",
		rate:    rate,
		window:  window,
	}
}

func (rl *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(rl.window * 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.done:
			return
		}
	}
}

// sweep удаляет клиентов, не появлявшихся два окна
func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		b.mu.Lock()
		if now.Sub(b.windowStart) > rl.window*2 {
			delete(rl.buckets, key)
		}
		b.mu.Unlock()
	}
}

// Stop terminates the background sweep. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stop.Do(func() { close(rl.done) })
}

// Allow spends one request of key. When the limit is reached it returns false
// and the time left until the window resets.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	b := rl.bucketFor(key)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := rl.now()
	if now.Sub(b.windowStart) >= rl.window {
		b.tokens = rl.rate
		b.windowStart = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true, 0
	}
	return false, b.windowStart.Add(rl.window).Sub(now)
}

func (rl *RateLimiter) bucketFor(key string) *bucket {
	rl.mu.RLock()
	b, ok := rl.buckets[key]
	rl.mu.RUnlock()
	if ok {
		return b
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	// bucket мог создать параллельный запрос
	if b, ok = rl.buckets[key]; !ok {
		b = &bucket{tokens: rl.rate, windowStart: rl.now()}
		rl.buckets[key] = b
	}
	return b
}

// Middleware отклоняет запросы сверх лимита с 429
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.admit(w, r) {
			next.ServeHTTP(w, r)
		}
	})
}

// admit пишет ответ 429 с Retry-After, если лимит исчерпан
func (rl *RateLimiter) admit(w http.ResponseWriter, r *http.Request) bool {
	ip := clientIP(r)
	ok, wait := rl.Allow(ip)
	if ok {
		return true
	}

	rl.logger.WarnContext(r.Context(), "Rate limit exceeded",
		slog.String("ip", ip),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Duration("retry_after", wait),
	)

	rateLimitedTotal.WithLabelValues(rl.label).Inc()
	w.Header().Set("Retry-After", retryAfter(wait))
	response.Error(w, r, rl.logger, apierr.TooManyRequests("rate limit exceeded, please try again later"))
	return false
}

// retryAfter округляет ожидание вверх до целых секунд, минимум 1
func retryAfter(wait time.Duration) string {
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// PathRateLimit лимит для конкретного пути
type PathRateLimit struct {
	Path   string
	Rate   int
	Window time.Duration
}

// PathRateLimiter применяет отдельные лимиты к перечисленным путям
// и общий лимит ко всем остальным
type PathRateLimiter struct {
	limiters map[string]*RateLimiter
	fallback *RateLimiter
}

// NewPathRateLimiter создает limiter с кастомными лимитами для путей
func NewPathRateLimiter(limits []PathRateLimit, defaultRate int, defaultWindow time.Duration, logger *slog.Logger) *PathRateLimiter {
	pl := &PathRateLimiter{
		limiters: make(map[string]*RateLimiter, len(limits)),
		fallback: NewRateLimiter(defaultRate, defaultWindow, logger),
	}
	for _, limit := range limits {
		l := NewRateLimiter(limit.Rate, limit.Window, logger)
		l.label = limit.Path
		pl.limiters[limit.Path] = l
	}
	return pl
}

// Middleware выбирает limiter по пути запроса
func (pl *PathRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter, ok := pl.limiters[r.URL.Path]
		if !ok {
			limiter = pl.fallback
		}
		if limiter.admit(w, r) {
			next.ServeHTTP(w, r)
		}
	})
}

// Stop останавливает фоновую очистку всех limiters
func (pl *PathRateLimiter) Stop() {
	for _, l := range pl.limiters {
		l.Stop()
	}
	pl.fallback.Stop()
}

// clientIP ключ лимита: адрес пира без порта. Заголовки прокси здесь не
// читаются, их учитывает TrustedRealIP только для доверенных прокси.
func clientIP(r *http.Request) string {
	return hostOnly(r.RemoteAddr)
}
