// Package resilience groups the fault tolerance helpers used when talking to
// the crawl backend and to probed seed URLs.
//
//   - circuitbreaker wraps sony/gobreaker so an unreachable backend fails fast
//   - retry provides exponential backoff with jitter for the initial source load
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.BackendAPIConfig())
//	result, err := cb.Execute(func() (interface{}, error) {
//	    return client.Do(req)
//	})
//
//	err := retry.WithBackoff(ctx, retry.InitialLoadConfig(5), func() error {
//	    return controller.Refresh(ctx)
//	})
package resilience
