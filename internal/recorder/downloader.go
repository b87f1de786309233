package recorder

import (
	"context"
	"errors"
	"time"
)

var errEmptySegment = errors.New("empty segment body")

// Downloader fetches segment bodies with a fixed retry budget.
type Downloader struct {
	fetcher  Fetcher
	attempts int
	delay    time.Duration
}

// NewDownloader returns a Downloader making up to attempts tries per segment,
// waiting delay between tries.
func NewDownloader(fetcher Fetcher, attempts int, delay time.Duration) *Downloader {
	if attempts < 1 {
		attempts = 1
	}
	return &Downloader{fetcher: fetcher, attempts: attempts, delay: delay}
}

// Download returns the full body of ref. After the last failed attempt it
// returns a *SegmentFetchError; when ctx is done it returns ctx.Err().
func (d *Downloader) Download(ctx context.Context, ref SegmentRef) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		data, err := d.fetcher.Get(ctx, ref.URI)
		if err == nil && len(data) == 0 {
			err = errEmptySegment
		}
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if attempt < d.attempts {
			if err := sleep(ctx, d.delay); err != nil {
				return nil, err
			}
		}
	}
	return nil, &SegmentFetchError{
		Sequence: ref.Sequence,
		URI:      ref.URI,
		Attempts: d.attempts,
		Err:      lastErr,
	}
}
