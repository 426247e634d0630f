// Package resilience groups the fault-tolerance helpers used around every
// outbound call of a cycle.
//
//   - circuitbreaker: one breaker per remote dependency (model provider,
//     analysis service, headline feed) so a dead dependency fails fast.
//   - retry: exponential backoff with jitter for idempotent Drive calls.
//
// Usage:
//
//	cb := circuitbreaker.New(circuitbreaker.AnalysisAPIConfig())
//	res, err := circuitbreaker.Run(cb, func() (*Result, error) {
//	    return callAnalysis(ctx)
//	})
//
//	err := retry.WithBackoff(ctx, retry.GoogleAPIConfig(), func() error {
//	    return moveToFolder(ctx)
//	})
package resilience
