package main

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"os"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/shopauth/session"
)

type loadtestOptions struct {
	sessions    int
	concurrency int
	ops         int
	redisAddr   string
	prefix      string
}

func newLoadtestCommand() *cobra.Command {
	o := loadtestOptions{}

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Measure session lookup and refresh rotation against Redis",
		Long: `Seed sessions into Redis, then run a lookup phase (what /api/me/ does)
and a rotation phase (what /api/token/refresh/ does) and report latency
percentiles. Without --redis-addr or SHOPAUTH_REDIS_ADDR an embedded Redis
is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.sessions <= 0 || o.concurrency <= 0 || o.ops <= 0 {
				return fmt.Errorf("sessions, concurrency and ops must be > 0")
			}
			if o.redisAddr == "" {
				o.redisAddr = os.Getenv("SHOPAUTH_REDIS_ADDR")
			}
			return runLoadtest(cmd.Context(), cmd.OutOrStdout(), o)
		},
	}

	f := cmd.Flags()
	f.IntVar(&o.sessions, "sessions", 100000, "number of sessions to seed")
	f.IntVar(&o.concurrency, "concurrency", 256, "number of concurrent workers")
	f.IntVar(&o.ops, "ops", 200000, "operations per phase")
	f.StringVar(&o.redisAddr, "redis-addr", "", "redis address")
	f.StringVar(&o.prefix, "prefix", "lt", "session key prefix")
	return cmd
}

// seeded is one session under test. mu serializes rotations so each worker
// presents the hash the store currently holds.
type seeded struct {
	mu   sync.Mutex
	id   string
	hash [32]byte
}

func runLoadtest(ctx context.Context, out io.Writer, o loadtestOptions) error {
	addr := o.redisAddr
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start embedded redis: %w", err)
		}
		defer mr.Close()
		addr = mr.Addr()
		fmt.Fprintf(out, "using embedded redis at %s\n", addr)
	} else {
		fmt.Fprintf(out, "using redis at %s\n", addr)
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer rdb.Close()
	store := session.NewStore(rdb, o.prefix)

	fmt.Fprintf(out, "seeding %d sessions...\n", o.sessions)
	start := time.Now()
	pool := make([]seeded, o.sessions)
	now := time.Now()
	for i := range pool {
		pool[i].id = "lt-" + strconv.Itoa(i)
		pool[i].hash = refreshHash(uint64(i))
		sess := &session.Session{
			SessionID:   pool[i].id,
			UserID:      strconv.Itoa(i%1000 + 1),
			RefreshHash: pool[i].hash,
			CreatedAt:   now.Unix(),
			ExpiresAt:   now.Add(24 * time.Hour).Unix(),
		}
		if err := store.Save(ctx, sess, 24*time.Hour); err != nil {
			return fmt.Errorf("seed session: %w", err)
		}
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(start).Round(time.Millisecond))

	lookups := runPhase(o.ops, o.concurrency, func(r *rand.Rand, _ int) error {
		_, err := store.Get(ctx, pool[r.Intn(len(pool))].id)
		return err
	})
	rotations := runPhase(o.ops, o.concurrency, func(r *rand.Rand, op int) error {
		s := &pool[r.Intn(len(pool))]
		s.mu.Lock()
		defer s.mu.Unlock()
		next := refreshHash(uint64(op) + uint64(len(pool)))
		if _, err := store.RotateRefreshHash(ctx, s.id, s.hash, next); err != nil {
			return err
		}
		s.hash = next
		return nil
	})

	fmt.Fprintln(out, "---- results ----")
	lookups.print(out, "lookup")
	rotations.print(out, "rotate")
	return nil
}

// runPhase spreads ops calls of fn across workers and records each call's
// latency.
func runPhase(ops, workers int, fn func(r *rand.Rand, op int) error) phaseStats {
	var (
		wg       sync.WaitGroup
		next     atomic.Int64
		failures atomic.Int64
		samples  = make([]time.Duration, ops)
	)

	start := time.Now()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for {
				op := int(next.Add(1)) - 1
				if op >= ops {
					return
				}
				t0 := time.Now()
				if err := fn(r, op); err != nil {
					failures.Add(1)
				}
				samples[op] = time.Since(t0)
			}
		}(time.Now().UnixNano() + int64(w)*7919)
	}
	wg.Wait()
	return summarize(time.Since(start), samples, failures.Load())
}

type phaseStats struct {
	elapsed  time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
}

func summarize(elapsed time.Duration, samples []time.Duration, failures int64) phaseStats {
	s := phaseStats{elapsed: elapsed, ops: len(samples), failures: failures}
	if len(samples) == 0 {
		return s
	}
	slices.Sort(samples)
	s.p50 = percentile(samples, 50)
	s.p95 = percentile(samples, 95)
	s.p99 = percentile(samples, 99)
	return s
}

// percentile expects sorted samples.
func percentile(samples []time.Duration, p int) time.Duration {
	switch {
	case len(samples) == 0:
		return 0
	case p <= 0:
		return samples[0]
	case p >= 100:
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func (s phaseStats) opsPerSec() float64 {
	if s.elapsed <= 0 {
		return 0
	}
	return float64(s.ops) / s.elapsed.Seconds()
}

func (s phaseStats) print(out io.Writer, name string) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name, s.ops, s.failures,
		s.elapsed.Round(time.Millisecond), s.opsPerSec(),
		s.p50.Round(time.Microsecond), s.p95.Round(time.Microsecond), s.p99.Round(time.Microsecond))
}

func refreshHash(n uint64) [32]byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n)
	return sha256.Sum256(b[:])
}
