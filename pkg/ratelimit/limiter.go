package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/taiso/routes-service/pkg/config"
)

// SubjectKind tells whether a caller is identified by user or by address
type SubjectKind int

const (
	// SubjectAnonymous is unauthenticated traffic keyed by client IP
	SubjectAnonymous SubjectKind = iota
	// SubjectUser is authenticated traffic keyed by user ID
	SubjectUser
)

func (k SubjectKind) String() string {
	if k == SubjectUser {
		return "user"
	}
	return "anonymous"
}

// Rule is the bucket policy for one endpoint and subject kind.
// A Limit of zero disables limiting.
type Rule struct {
	Limit  int
	Burst  int
	Window time.Duration
}

// Decision is the outcome of one Allow call
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAfter time.Duration
	Endpoint   string
	Subject    string
	Kind       SubjectKind
}

// Limiter is a Redis-backed token bucket shared by every replica
type Limiter struct {
	client redis.Cmdable
	cfg    config.RateLimitConfig
	script *redis.Script
	now    func() time.Time
}

// The bucket is refilled lazily from the elapsed time since the last call,
// so no background process is needed. Returns {allowed, tokens, retry_ms}.
const tokenBucketScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local capacity = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(state[1])
local ts = tonumber(state[2])

if tokens == nil then
    tokens = capacity
    ts = now
elseif ts == nil then
    ts = now
end

local elapsed = now - ts
if elapsed > 0 then
    tokens = math.min(capacity, tokens + elapsed * rate)
    ts = now
end

local allowed = 0
if tokens >= 1 then
    allowed = 1
    tokens = tokens - 1
end

redis.call("HSET", key, "tokens", tokens, "ts", ts)
redis.call("PEXPIRE", key, ttl)

local retry = 0
if allowed == 0 then
    retry = math.ceil((1 - tokens) / rate)
end

return {allowed, tokens, retry}
`

// NewLimiter creates a limiter that stores buckets through client
func NewLimiter(client redis.Cmdable, cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		client: client,
		cfg:    cfg,
		script: redis.NewScript(tokenBucketScript),
		now:    time.Now,
	}
}

// Enabled reports whether limiting is switched on
func (l *Limiter) Enabled() bool {
	return l != nil && l.cfg.Enabled
}

// RuleFor resolves the policy for endpoint, applying any configured override
func (l *Limiter) RuleFor(endpoint string, kind SubjectKind) Rule {
	rule := Rule{
		Limit:  l.cfg.DefaultLimit,
		Burst:  l.cfg.DefaultBurst,
		Window: l.cfg.Window(),
	}
	if kind == SubjectAnonymous {
		rule.Limit = l.cfg.AnonymousLimit
		rule.Burst = l.cfg.AnonymousBurst
	}

	if override, ok := l.cfg.EndpointOverrides[endpoint]; ok {
		if override.WindowSeconds > 0 {
			rule.Window = time.Duration(override.WindowSeconds) * time.Second
		}
		limit, burst := override.AuthenticatedLimit, override.AuthenticatedBurst
		if kind == SubjectAnonymous {
			limit, burst = override.AnonymousLimit, override.AnonymousBurst
		}
		if limit > 0 {
			rule.Limit = limit
		}
		// A negative burst keeps the default
		if burst >= 0 {
			rule.Burst = burst
		}
	}

	if rule.Limit < 0 {
		rule.Limit = 0
	}
	if rule.Burst < 0 {
		rule.Burst = 0
	}
	return rule
}

// Key returns the Redis key holding the bucket of subject on endpoint
func (l *Limiter) Key(endpoint, subject string) string {
	return fmt.Sprintf("%s:%s:%s", l.cfg.RedisPrefix, endpoint, subject)
}

// Allow takes one token from the bucket of subject on endpoint
func (l *Limiter) Allow(ctx context.Context, endpoint, subject string, kind SubjectKind, rule Rule) (Decision, error) {
	decision := Decision{
		Allowed:   true,
		Limit:     rule.Limit,
		Remaining: rule.Limit,
		Endpoint:  endpoint,
		Subject:   subject,
		Kind:      kind,
	}
	if !l.Enabled() || rule.Limit <= 0 {
		return decision, nil
	}

	b := newBucket(rule, l.cfg.Window())

	raw, err := l.script.Run(ctx, l.client, []string{l.Key(endpoint, subject)},
		l.now().UnixMilli(),
		strconv.FormatFloat(b.ratePerMs, 'f', 10, 64),
		strconv.FormatFloat(b.capacity, 'f', 10, 64),
		b.ttl.Milliseconds(),
	).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("evaluate rate limit: %w", err)
	}

	allowed, tokens, retryMs, err := parseReply(raw)
	if err != nil {
		return Decision{}, err
	}

	decision.Allowed = allowed
	decision.Remaining = int(math.Max(0, math.Floor(tokens)))
	if allowed {
		// time until the bucket is full again
		decision.ResetAfter = time.Duration(math.Ceil((b.capacity-tokens)/b.ratePerMs)) * time.Millisecond
		if decision.ResetAfter < 0 {
			decision.ResetAfter = 0
		}
	} else {
		decision.RetryAfter = time.Duration(retryMs) * time.Millisecond
		decision.ResetAfter = decision.RetryAfter
	}
	return decision, nil
}

// ScriptHash returns the SHA1 the bucket script is loaded under
func (l *Limiter) ScriptHash() string {
	return l.script.Hash()
}

// WithNow overrides the clock
func (l *Limiter) WithNow(now func() time.Time) {
	l.now = now
}

type bucket struct {
	ratePerMs float64
	capacity  float64
	ttl       time.Duration
}

func newBucket(rule Rule, fallbackWindow time.Duration) bucket {
	window := rule.Window
	if window <= 0 {
		window = fallbackWindow
	}
	if window < time.Millisecond {
		window = time.Minute
	}

	capacity := float64(rule.Limit + rule.Burst)
	if capacity < 1 {
		capacity = 1
	}

	return bucket{
		ratePerMs: float64(rule.Limit) / float64(window.Milliseconds()),
		capacity:  capacity,
		ttl:       2 * window,
	}
}

func parseReply(raw interface{}) (allowed bool, tokens float64, retryMs int64, err error) {
	values, ok := raw.([]interface{})
	if !ok || len(values) != 3 {
		return false, 0, 0, errors.New("unexpected rate limit script reply")
	}
	return toInt(values[0]) == 1, toFloat(values[1]), toInt(values[2]), nil
}

func toInt(value interface{}) int64 {
	switch v := value.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case string:
		i, _ := strconv.ParseInt(v, 10, 64)
		return i
	}
	return 0
}

func toFloat(value interface{}) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}
