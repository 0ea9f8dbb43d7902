package ban

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goGuard/internal/dbtest"
	"github.com/MrEthical07/goGuard/internal/errs"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var testClient = Client{IP: "203.0.113.7", UserAgent: "curl/8", URL: "/login"}

func newTestTracker(t *testing.T, policy Policy, opts ...Option) (*Tracker, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewTracker(dbtest.Open(t), policy, opts...), clock
}

func fail(t *testing.T, tr *Tracker, client Client) {
	t.Helper()
	require.NoError(t, tr.RecordFailure(context.Background(), client, 0, "Login for user \"x\" failed because of wrong password", CodePasswordError))
}

func TestDisabledPolicyAlwaysAllows(t *testing.T) {
	for _, p := range []Policy{
		{MaxTries: 0, LogWindow: time.Minute, BanDuration: time.Minute},
		{MaxTries: 1, LogWindow: 0, BanDuration: time.Minute},
		{MaxTries: 1, LogWindow: time.Minute, BanDuration: 0},
	} {
		tr, _ := newTestTracker(t, p)
		for i := 0; i < 5; i++ {
			fail(t, tr, testClient)
		}
		d, err := tr.Check(context.Background(), testClient)
		require.NoError(t, err)
		require.Equal(t, Allowed, d, "policy %+v", p)
	}
}

func TestThresholdBlocksAndBanExpires(t *testing.T) {
	tr, clock := newTestTracker(t, Policy{MaxTries: 3, LogWindow: 300 * time.Second, BanDuration: 600 * time.Second})
	ctx := context.Background()

	fail(t, tr, testClient)
	fail(t, tr, testClient)
	d, err := tr.Check(ctx, testClient)
	require.NoError(t, err)
	require.Equal(t, Allowed, d)

	fail(t, tr, testClient)
	d, err = tr.Check(ctx, testClient)
	require.NoError(t, err)
	require.Equal(t, Blocked, d)

	activated, ok, err := tr.Log().LastActivation(ctx, testClient.IP)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, clock.Now(), activated)

	// Still inside the window and the ban: blocked without a second activation.
	clock.Advance(200 * time.Second)
	d, err = tr.Check(ctx, testClient)
	require.NoError(t, err)
	require.Equal(t, Blocked, d)

	clock.Advance(401 * time.Second)
	d, err = tr.Check(ctx, testClient)
	require.NoError(t, err)
	require.Equal(t, Allowed, d)

	rows, err := tr.Log().Recent(ctx, testClient.IP, 10)
	require.NoError(t, err)
	activations := 0
	for _, r := range rows {
		if r.Code == CodeBanActivated {
			activations++
		}
	}
	require.Equal(t, 1, activations)
}

func TestLapsedBanReactivatesWhileFailuresPersist(t *testing.T) {
	tr, clock := newTestTracker(t, Policy{MaxTries: 2, LogWindow: 300 * time.Second, BanDuration: 120 * time.Second})
	ctx := context.Background()

	fail(t, tr, testClient)
	fail(t, tr, testClient)
	d, err := tr.Check(ctx, testClient)
	require.NoError(t, err)
	require.Equal(t, Blocked, d)

	// Failures keep arriving inside the window; the ban has lapsed, so a
	// new activation is written and the client is blocked again.
	clock.Advance(121 * time.Second)
	fail(t, tr, testClient)
	d, err = tr.Check(ctx, testClient)
	require.NoError(t, err)
	require.Equal(t, Blocked, d)

	activated, ok, err := tr.Log().LastActivation(ctx, testClient.IP)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, clock.Now(), activated)
}

func TestFailuresOutsideWindowDoNotCount(t *testing.T) {
	tr, clock := newTestTracker(t, Policy{MaxTries: 2, LogWindow: 60 * time.Second, BanDuration: 600 * time.Second})
	ctx := context.Background()

	fail(t, tr, testClient)
	clock.Advance(60 * time.Second)
	fail(t, tr, testClient)

	d, err := tr.Check(ctx, testClient)
	require.NoError(t, err)
	require.Equal(t, Allowed, d)
}

func TestIPsAreIndependent(t *testing.T) {
	tr, _ := newTestTracker(t, Policy{MaxTries: 1, LogWindow: time.Minute, BanDuration: time.Minute})
	ctx := context.Background()

	fail(t, tr, testClient)

	d, err := tr.Check(ctx, Client{IP: "198.51.100.1"})
	require.NoError(t, err)
	require.Equal(t, Allowed, d)

	d, err = tr.Check(ctx, testClient)
	require.NoError(t, err)
	require.Equal(t, Blocked, d)
}

func TestMappedIPv4IsNormalized(t *testing.T) {
	tr, _ := newTestTracker(t, Policy{MaxTries: 1, LogWindow: time.Minute, BanDuration: time.Minute})

	fail(t, tr, Client{IP: "::ffff:203.0.113.7"})

	d, err := tr.Check(context.Background(), testClient)
	require.NoError(t, err)
	require.Equal(t, Blocked, d)
}

func TestInvalidIPIsValidation(t *testing.T) {
	tr, _ := newTestTracker(t, Policy{MaxTries: 1, LogWindow: time.Minute, BanDuration: time.Minute})

	_, err := tr.Check(context.Background(), Client{IP: "not-an-ip"})
	require.True(t, errors.Is(err, ErrInvalidIP))
	require.True(t, errs.IsValidation(err))

	err = tr.RecordFailure(context.Background(), Client{}, 0, "x", CodeBanable)
	require.True(t, errors.Is(err, ErrInvalidIP))
}

func TestBlockedAccessLogsNotice(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	tr, _ := newTestTracker(t, Policy{MaxTries: 1, LogWindow: time.Minute, BanDuration: time.Minute}, WithLogger(logger))
	ctx := context.Background()

	fail(t, tr, testClient)
	_, err := tr.Check(ctx, testClient)
	require.NoError(t, err)
	_, err = tr.Check(ctx, testClient)
	require.NoError(t, err)

	out := buf.String()
	require.True(t, strings.Contains(out, "ban_activated"))
	require.True(t, strings.Contains(out, "banned_ip_access"))
	require.True(t, strings.Contains(out, "notice=true"))
}

func TestLogAddNormalizesCode(t *testing.T) {
	tr, clock := newTestTracker(t, DefaultPolicy())
	ctx := context.Background()

	_, err := tr.Log().Add(ctx, Entry{IP: testClient.IP, Text: "odd", Code: Code(9), UserID: 4})
	require.NoError(t, err)

	rows, err := tr.Log().Recent(ctx, testClient.IP, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, CodeBanable, rows[0].Code)
	require.Equal(t, int64(4), rows[0].UserID)
	require.Equal(t, clock.Now(), rows[0].LoggedAt)
}

func TestFailureCode(t *testing.T) {
	require.Equal(t, CodeUsernameError, FailureCode(true, false))
	require.Equal(t, CodePasswordError, FailureCode(false, true))
	require.Equal(t, Code(3), FailureCode(true, true))
	require.Equal(t, CodeBanable, FailureCode(false, false))
}

func TestActivationHookRunsOncePerBan(t *testing.T) {
	var calls []int
	tr, _ := newTestTracker(t, Policy{MaxTries: 2, LogWindow: time.Minute, BanDuration: time.Minute},
		WithActivationHook(func(_ context.Context, ip string, failures int) {
			require.Equal(t, testClient.IP, ip)
			calls = append(calls, failures)
		}))
	ctx := context.Background()

	fail(t, tr, testClient)
	fail(t, tr, testClient)
	for i := 0; i < 3; i++ {
		d, err := tr.Check(ctx, testClient)
		require.NoError(t, err)
		require.Equal(t, Blocked, d)
	}
	require.Equal(t, []int{2}, calls)
}
