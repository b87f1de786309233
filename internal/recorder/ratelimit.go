package recorder

import (
	"context"

	"golang.org/x/time/rate"
)

// limitedFetcher waits on a token bucket before every request.
type limitedFetcher struct {
	next    Fetcher
	limiter *rate.Limiter
}

// newLimitedFetcher wraps next with a limiter of rps requests per second.
// A non-positive rps returns next unchanged.
func newLimitedFetcher(next Fetcher, rps float64) Fetcher {
	if rps <= 0 {
		return next
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &limitedFetcher{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (f *limitedFetcher) Get(ctx context.Context, url string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return f.next.Get(ctx, url)
}
