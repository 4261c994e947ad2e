// Package reliability provides the retry policies used when a bridge
// session connects.
//
// Per-message paths never retry. Only startup may, and only when the
// configuration asks for it.
//
// Example usage:
//
//	policy := reliability.NewExponentialBackoff(time.Second, 30*time.Second, 2.0, 3)
//	err := reliability.Retry(ctx, policy, func() error {
//	    return transport.Connect(ctx)
//	})
package reliability
