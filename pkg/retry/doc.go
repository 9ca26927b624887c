// Package retry re-runs failed operations with a backoff between attempts.
//
// Features:
//   - Exponential, linear and constant backoff strategies
//   - Jitter to spread out retries of concurrent workers
//   - Context support for cancellation
//   - Retry predicate driven by the error taxonomy in pkg/errors
//
// Basic usage:
//
//	err := retry.Do(ctx, func(ctx context.Context, attempt int) error {
//		if err := limiter.Wait(ctx); err != nil {
//			return err
//		}
//		return run(ctx)
//	}, &retry.Config{
//		MaxAttempts: 4,
//		Backoff:     &retry.ConstantBackoff{Delay: time.Second},
//		Logger:      logger.GetLogger(),
//	})
//
// Error handling:
//   - Command errors and unknown errors are retried
//   - Configuration errors, abandoned waits and context errors are not
package retry
