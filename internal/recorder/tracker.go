package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/grafov/m3u8"
)

var sequencePattern = regexp.MustCompile(`_(\d+)\.ts(?:\?.*)?$`)

// SequenceFromURI extracts the segment sequence number from a URI such as
// "media_720p_101.ts?token=x".
func SequenceFromURI(uri string) (int64, bool) {
	m := sequencePattern.FindStringSubmatch(uri)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// PollResult is what one tracker poll produced.
type PollResult struct {
	Segments []SegmentRef
	Ended    bool
}

// Tracker polls a media playlist and hands out each segment exactly once,
// in ascending sequence order. A Tracker belongs to a single room loop and
// is not safe for concurrent use.
type Tracker struct {
	fetcher     Fetcher
	url         string
	seedBacklog int64

	last     int64
	seeded   bool
	failures int
}

// NewTracker returns a Tracker for the media playlist at playlistURL. The first
// non-empty poll returns at most seedBacklog of the newest segments.
func NewTracker(fetcher Fetcher, playlistURL string, seedBacklog int) *Tracker {
	return &Tracker{
		fetcher:     fetcher,
		url:         playlistURL,
		seedBacklog: int64(seedBacklog),
	}
}

// Seed sets the last sequence handed out, skipping first-poll seeding.
func (t *Tracker) Seed(last int64) {
	t.last = last
	t.seeded = true
}

// Last returns the highest sequence handed out and whether the tracker is seeded.
func (t *Tracker) Last() (int64, bool) {
	return t.last, t.seeded
}

// Failures returns the number of consecutive failed polls.
func (t *Tracker) Failures() int {
	return t.failures
}

// Poll fetches the playlist once and returns the segments newer than the
// last one handed out. Failures match ErrPlaylistFetch.
func (t *Tracker) Poll(ctx context.Context) (PollResult, error) {
	body, err := t.fetcher.Get(ctx, t.url)
	if err != nil {
		if ctx.Err() != nil {
			return PollResult{}, ctx.Err()
		}
		t.failures++
		return PollResult{}, fmt.Errorf("%w: %w", ErrPlaylistFetch, err)
	}

	refs, ended, err := parseMediaPlaylist(t.url, body)
	if err != nil {
		t.failures++
		return PollResult{}, fmt.Errorf("%w: %w", ErrPlaylistFetch, err)
	}
	t.failures = 0

	return PollResult{Segments: t.advance(refs), Ended: ended}, nil
}

func (t *Tracker) advance(refs []SegmentRef) []SegmentRef {
	if len(refs) == 0 {
		return nil
	}
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Sequence < refs[j].Sequence })

	if !t.seeded {
		t.last = refs[len(refs)-1].Sequence - t.seedBacklog
		t.seeded = true
	}

	var out []SegmentRef
	for _, ref := range refs {
		if ref.Sequence <= t.last {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Sequence == ref.Sequence {
			continue
		}
		out = append(out, ref)
	}
	if len(out) > 0 {
		t.last = out[len(out)-1].Sequence
	}
	return out
}

// parseMediaPlaylist decodes a media playlist into absolute segment refs and
// reports whether it carries #EXT-X-ENDLIST.
func parseMediaPlaylist(playlistURL string, body []byte) ([]SegmentRef, bool, error) {
	base, err := url.Parse(playlistURL)
	if err != nil {
		return nil, false, fmt.Errorf("invalid playlist URL: %w", err)
	}
	pl, listType, err := m3u8.DecodeFrom(bytes.NewReader(body), false)
	if err != nil {
		return nil, false, err
	}
	if listType != m3u8.MEDIA {
		return nil, false, errors.New("not a media playlist")
	}
	media := pl.(*m3u8.MediaPlaylist)

	var refs []SegmentRef
	for _, seg := range media.Segments {
		if seg == nil {
			continue
		}
		seq, ok := SequenceFromURI(seg.URI)
		if !ok {
			// SeqId is EXT-X-MEDIA-SEQUENCE plus the segment's index.
			seq = int64(seg.SeqId)
		}
		ref, err := base.Parse(seg.URI)
		if err != nil {
			return nil, false, fmt.Errorf("segment URI %q: %w", seg.URI, err)
		}
		refs = append(refs, SegmentRef{
			Sequence: seq,
			URI:      ref.String(),
			Duration: time.Duration(seg.Duration * float64(time.Second)),
		})
	}
	return refs, media.Closed, nil
}
