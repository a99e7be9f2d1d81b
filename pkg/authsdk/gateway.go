package authsdk

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/aussiebroadwan/clubhouse/pkg/slogx"
)

// Gateway defaults.
const (
	DefaultTimeout     = 15 * time.Second
	DefaultMaxAttempts = 2
	DefaultRetryDelay  = 500 * time.Millisecond
)

// Operation names a backend call and whether it may be repeated safely.
type Operation struct {
	Name       string
	Idempotent bool
}

func (o Operation) String() string { return o.Name }

// Known identity backend operations. Only read-only calls are idempotent;
// everything that changes state or submits credentials is attempted once.
var (
	OpRegister             = Operation{Name: "register"}
	OpLogin                = Operation{Name: "login"}
	OpLogout               = Operation{Name: "logout"}
	OpValidateSession      = Operation{Name: "validateSession", Idempotent: true}
	OpVerifyEmail          = Operation{Name: "verifyEmail"}
	OpRequestPasswordReset = Operation{Name: "requestPasswordReset"}
	OpResetPassword        = Operation{Name: "resetPassword"}
	OpChangePassword       = Operation{Name: "changePassword"}
	OpUpdateProfile        = Operation{Name: "updateProfile"}
	OpSetUserRole          = Operation{Name: "setUserRole"}
	OpSetUserStatus        = Operation{Name: "setUserStatus"}
	OpListUsers            = Operation{Name: "listUsers", Idempotent: true}
)

// Attempt describes one finished call attempt. Delay is the wait before the
// next attempt, zero when no further attempt follows.
type Attempt struct {
	Op     Operation
	Number int
	Err    error
	Delay  time.Duration
}

// Observer is notified after every attempt the gateway makes.
type Observer func(Attempt)

// Gateway wraps every identity backend call with a timeout race and, for
// idempotent operations, bounded sequential retries with linear backoff.
// It never touches the session store.
type Gateway struct {
	// Timeout bounds each attempt.
	Timeout time.Duration

	// MaxAttempts is the total number of attempts for idempotent operations,
	// including the first.
	MaxAttempts int

	// RetryDelay is the base delay; the wait before attempt n+1 is
	// RetryDelay*n.
	RetryDelay time.Duration

	// Observer, if set, sees every attempt.
	Observer Observer
}

// NewGateway returns a gateway with the default policy.
func NewGateway() *Gateway {
	return &Gateway{
		Timeout:     DefaultTimeout,
		MaxAttempts: DefaultMaxAttempts,
		RetryDelay:  DefaultRetryDelay,
	}
}

// CallOption overrides the gateway policy for a single call.
type CallOption func(*callPolicy)

type callPolicy struct {
	timeout     time.Duration
	maxAttempts int
	retryDelay  time.Duration
}

// WithTimeout overrides the per-attempt timeout.
func WithTimeout(d time.Duration) CallOption {
	return func(p *callPolicy) { p.timeout = d }
}

// WithMaxAttempts overrides the attempt budget. It has no effect on
// non-idempotent operations, which are always attempted once.
func WithMaxAttempts(n int) CallOption {
	return func(p *callPolicy) { p.maxAttempts = n }
}

// WithRetryDelay overrides the base retry delay.
func WithRetryDelay(d time.Duration) CallOption {
	return func(p *callPolicy) { p.retryDelay = d }
}

func (g *Gateway) policy(op Operation, opts []CallOption) callPolicy {
	p := callPolicy{
		timeout:     g.Timeout,
		maxAttempts: g.MaxAttempts,
		retryDelay:  g.RetryDelay,
	}
	for _, opt := range opts {
		opt(&p)
	}

	if p.timeout <= 0 {
		p.timeout = DefaultTimeout
	}
	if p.maxAttempts < 1 {
		p.maxAttempts = 1
	}
	if p.retryDelay < 0 {
		p.retryDelay = 0
	}
	if !op.Idempotent {
		p.maxAttempts = 1
	}
	return p
}

// Invoke runs call through the gateway and converts the outcome to a Result.
// A successful payload that fails its own shape check becomes a
// ValidationFailure, whichever Backend produced it.
//
// Each attempt runs on its own goroutine with a context detached from the
// caller's cancellation, raced against the timeout. A losing call is not
// cancelled; its result is discarded. Only NetworkTimeout and
// BackendUnavailable failures are retried. On exhaustion the last error is
// returned as-is.
func Invoke[T any](
	ctx context.Context,
	g *Gateway,
	op Operation,
	call func(context.Context) (T, error),
	opts ...CallOption,
) Result[T] {
	p := g.policy(op, opts)
	log := slogx.FromContext(ctx).With("op", op.Name)

	attempt := 0
	var lastErr error

	operation := func() (T, error) {
		attempt++
		v, err := race(ctx, p.timeout, call)
		if err == nil {
			g.observe(Attempt{Op: op, Number: attempt})
			return v, nil
		}

		log.Debug("identity call attempt failed", "attempt", attempt, "error", err)
		err = classify(err)
		lastErr = err
		if !retryable(err) || attempt >= p.maxAttempts {
			g.observe(Attempt{Op: op, Number: attempt, Err: err})
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	notify := func(err error, next time.Duration) {
		log.Warn("identity call failed, retrying",
			"attempt", attempt,
			"max_attempts", p.maxAttempts,
			"delay", next,
			"error_kind", KindOf(err),
		)
		g.observe(Attempt{Op: op, Number: attempt, Err: err, Delay: next})
	}

	b := backoff.WithMaxRetries(&linearBackOff{delay: p.retryDelay}, uint64(p.maxAttempts-1))
	payload, err := backoff.RetryNotifyWithData(operation, b, notify)
	if err != nil {
		if lastErr != nil {
			err = lastErr
		}
		log.Debug("identity call failed", "attempts", attempt, "error_kind", KindOf(err))
		return FailFrom[T](err)
	}
	if v, ok := any(payload).(validator); ok {
		if err := v.validate(); err != nil {
			log.Warn("identity backend returned a malformed payload", "error", err)
			return FailFrom[T](Errorf(KindValidationFailure, "malformed response from identity service: %v", err))
		}
	}
	return Ok(payload)
}

// validator is implemented by payload types that can check their own shape.
type validator interface {
	validate() error
}

func (g *Gateway) observe(a Attempt) {
	if g.Observer != nil {
		g.Observer(a)
	}
}

// race runs call on a detached goroutine and waits for it or the timeout,
// whichever comes first.
func race[T any](ctx context.Context, timeout time.Duration, call func(context.Context) (T, error)) (T, error) {
	type outcome struct {
		val T
		err error
	}

	// Buffered so an abandoned call can still deliver and exit.
	done := make(chan outcome, 1)
	callCtx := context.WithoutCancel(ctx)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("identity backend panicked: %v", r)}
			}
		}()
		v, err := call(callCtx)
		done <- outcome{val: v, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o := <-done:
		return o.val, o.err
	case <-timer.C:
		var zero T
		return zero, ErrNetworkTimeout
	}
}

// classify maps transport errors onto the taxonomy. Errors the backend
// already typed pass through untouched.
func classify(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrNetworkTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrNetworkTimeout
	}
	return ErrBackendUnavailable
}

func retryable(err error) bool {
	switch KindOf(err) {
	case KindNetworkTimeout, KindBackendUnavailable:
		return true
	}
	return false
}

// linearBackOff waits delay*n before the (n+1)th attempt.
type linearBackOff struct {
	delay time.Duration
	n     int
}

var _ backoff.BackOff = (*linearBackOff)(nil)

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return b.delay * time.Duration(b.n)
}

func (b *linearBackOff) Reset() { b.n = 0 }
