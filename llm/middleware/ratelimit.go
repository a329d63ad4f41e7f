// Package middleware provides reusable llm.Client middlewares: adaptive rate
// limiting and validation of returned tool-call payloads against the
// request's tool schemas, grounded on
// features/model/middleware/ratelimit.go.
package middleware

import (
	"context"
	"errors"
	"strconv"
	"sync"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"stencilacore/llm"
)

// AdaptiveRateLimiter applies an AIMD-style adaptive token bucket on top of
// an llm.Client: it estimates the token cost of each request, blocks callers
// until capacity is available, and backs off its effective tokens-per-minute
// budget whenever the provider reports rate limiting, recovering gradually
// otherwise. Grounded 1:1 on the teacher's AdaptiveRateLimiter, with the
// teacher's Pulse-replicated-map cluster coordination replaced by an
// optional Redis-backed shared budget (Pulse is dropped from this module
// entirely — see DESIGN.md — but the clustering *concern* survives via
// go-redis, already a direct dependency).
type AdaptiveRateLimiter struct {
	mu sync.Mutex

	limiter *rate.Limiter

	currentTPM float64
	minTPM     float64
	maxTPM     float64

	recoveryRate float64

	cluster *clusterBudget
}

// clusterBudget coordinates a shared tokens-per-minute budget across
// processes via a Redis key, read opportunistically rather than on every
// call.
type clusterBudget struct {
	rdb *goredis.Client
	key string
}

// NewAdaptiveRateLimiter constructs a process-local limiter with an initial
// tokens-per-minute budget and an upper bound. When maxTPM is zero or below
// initialTPM, it is clamped to initialTPM.
func NewAdaptiveRateLimiter(initialTPM, maxTPM float64) *AdaptiveRateLimiter {
	if initialTPM <= 0 {
		initialTPM = 60000
	}
	if maxTPM <= 0 || maxTPM < initialTPM {
		maxTPM = initialTPM
	}
	minTPM := initialTPM * 0.1
	if minTPM < 1 {
		minTPM = 1
	}
	recoveryRate := initialTPM * 0.05
	if recoveryRate < 1 {
		recoveryRate = 1
	}
	return &AdaptiveRateLimiter{
		limiter:      rate.NewLimiter(rate.Limit(initialTPM/60.0), int(initialTPM)),
		currentTPM:   initialTPM,
		minTPM:       minTPM,
		maxTPM:       maxTPM,
		recoveryRate: recoveryRate,
	}
}

// WithClusterBudget enables shared-budget coordination: backoffs lower a
// Redis-stored floor that every process in the deployment observes on its
// next request, so one process hitting a rate limit pulls down its peers'
// effective ceilings too.
func (l *AdaptiveRateLimiter) WithClusterBudget(rdb *goredis.Client, key string) *AdaptiveRateLimiter {
	l.cluster = &clusterBudget{rdb: rdb, key: key}
	return l
}

type limitedClient struct {
	next    llm.Client
	limiter *AdaptiveRateLimiter
}

// Middleware returns an llm.Client middleware enforcing the adaptive
// tokens-per-minute limit for both Complete and Stream calls.
func (l *AdaptiveRateLimiter) Middleware() func(llm.Client) llm.Client {
	return func(next llm.Client) llm.Client {
		if next == nil {
			return nil
		}
		return &limitedClient{next: next, limiter: l}
	}
}

func (c *limitedClient) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if err := c.limiter.wait(ctx, req); err != nil {
		return nil, err
	}
	resp, err := c.next.Complete(ctx, req)
	c.limiter.observe(ctx, err)
	return resp, err
}

func (c *limitedClient) Stream(ctx context.Context, req *llm.Request) (llm.Streamer, error) {
	if err := c.limiter.wait(ctx, req); err != nil {
		return nil, err
	}
	stream, err := c.next.Stream(ctx, req)
	c.limiter.observe(ctx, err)
	return stream, err
}

func (l *AdaptiveRateLimiter) wait(ctx context.Context, req *llm.Request) error {
	l.syncFromCluster(ctx)
	tokens := estimateTokens(req)
	return l.limiter.WaitN(ctx, tokens)
}

func (l *AdaptiveRateLimiter) observe(ctx context.Context, err error) {
	if err == nil {
		l.probe()
		return
	}
	var sdkErr *llm.SdkError
	if errors.As(err, &sdkErr) && sdkErr.Kind == llm.SdkErrorRateLimited {
		l.backoff(ctx)
	}
}

func (l *AdaptiveRateLimiter) backoff(ctx context.Context) {
	l.mu.Lock()
	newTPM := l.currentTPM * 0.5
	if newTPM < l.minTPM {
		newTPM = l.minTPM
	}
	changed := newTPM != l.currentTPM
	if changed {
		l.currentTPM = newTPM
		l.limiter.SetLimit(rate.Limit(newTPM / 60.0))
		l.limiter.SetBurst(int(newTPM))
	}
	cluster := l.cluster
	l.mu.Unlock()

	if changed && cluster != nil {
		cluster.publish(ctx, newTPM)
	}
}

func (l *AdaptiveRateLimiter) probe() {
	l.mu.Lock()
	defer l.mu.Unlock()
	newTPM := l.currentTPM + l.recoveryRate
	if newTPM > l.maxTPM {
		newTPM = l.maxTPM
	}
	if newTPM == l.currentTPM {
		return
	}
	l.currentTPM = newTPM
	l.limiter.SetLimit(rate.Limit(newTPM / 60.0))
	l.limiter.SetBurst(int(newTPM))
}

// syncFromCluster reconciles the local budget down to the shared floor a
// peer may have published, never up — only backoffs are shared; recovery is
// always local and gradual.
func (l *AdaptiveRateLimiter) syncFromCluster(ctx context.Context) {
	if l.cluster == nil {
		return
	}
	shared, ok := l.cluster.read(ctx)
	if !ok {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if shared < l.currentTPM {
		l.currentTPM = shared
		l.limiter.SetLimit(rate.Limit(shared / 60.0))
		l.limiter.SetBurst(int(shared))
	}
}

func (c *clusterBudget) publish(ctx context.Context, tpm float64) {
	c.rdb.Set(ctx, c.key, strconv.FormatFloat(tpm, 'f', -1, 64), 0)
}

func (c *clusterBudget) read(ctx context.Context) (float64, bool) {
	val, err := c.rdb.Get(ctx, c.key).Result()
	if err != nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(val, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// estimateTokens computes a cheap heuristic for the token size of a
// request's transcript: character count over text and string tool results,
// divided by a fixed characters-per-token ratio, plus a fixed buffer for
// system prompts and provider framing overhead.
func estimateTokens(req *llm.Request) int {
	charCount := 0
	for _, m := range req.Messages {
		for _, p := range m.Parts {
			switch v := p.(type) {
			case llm.TextPart:
				charCount += len(v.Text)
			case llm.ToolResultPart:
				if s, ok := v.Content.(string); ok {
					charCount += len(s)
				}
			}
		}
	}
	if charCount <= 0 {
		return 500
	}
	tokens := charCount / 3
	if tokens < 1 {
		tokens = 1
	}
	return tokens + 500
}
