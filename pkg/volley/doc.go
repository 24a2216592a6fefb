// Package volley issues large batches of HTTP requests with bounded
// concurrency, fixed-backoff retries on timeouts, and per-request
// failure capture.
//
// A batch pairs a list of target URLs with one shared Config. Results
// come back either in input order via All, or in completion order via
// Stream. A failed request never aborts the batch: its slot carries a
// *RequestError value instead of a result.
//
//	cfg := volley.DefaultConfig()
//	cfg.BaseURL = "https://api.example.com"
//	cfg.MaxConnections = 50
//
//	results, err := volley.Up(ctx, urls, cfg)
//	if err != nil {
//		return err
//	}
//	for _, r := range results {
//		if reqErr, ok := r.(*volley.RequestError); ok {
//			log.Warn().Err(reqErr).Msg("request failed")
//			continue
//		}
//		// r is the JSON-decoded body by default.
//	}
//
// Concurrency is governed by a semaphore whose capacity derives from
// MaxConnections, can be pinned with MaxInFlight, or removed entirely
// with Unbounded. The gate covers only the network call, so response
// decoding never holds a slot.
package volley
