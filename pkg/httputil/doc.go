// Package httputil provides retry helpers shared by the LLM provider clients.
//
// Clients wrap transient failures (network errors, 5xx responses, 429 rate
// limits) in [RetryableError] and run each request through [Retry]:
//
//	err := httputil.Retry(ctx, 3, time.Second, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return &httputil.RetryableError{Err: err}
//	    }
//	    ...
//	})
//
// Errors not wrapped in [RetryableError] are returned immediately. A
// RetryableError with After set waits that long (capped at [MaxRetryAfter])
// instead of the current backoff delay.
package httputil
