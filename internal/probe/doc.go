// Package probe validates and times batches of HTTP resources.
//
// A typical run scrapes a page for the files it sources, confirms each
// candidate with a HEAD check (following redirects, dropping dead
// links), then downloads the survivors and records wall-clock response
// times alongside a CPU-time overhead term that bounds the measurement
// error.
//
// Both the checks and the downloads go through an elastic worker pool:
// up to N workers drain a shared work list until it is empty, so slow
// targets never serialize the batch. Result order reflects completion.
//
//	scraper, err := probe.NewScraper(ctx, "http://www.example.com")
//	if err != nil {
//		return err
//	}
//	targets := scraper.GenURLListThreaded(ctx, 8)
//	results := probe.NewProber().LatencyAll(ctx, targets, 8)
package probe
