package recorder

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hls-recorder/internal/hlstest"
)

const testPlaylistURL = "https://edge.example.com/live/room/chunklist_720p.m3u8"

func sequences(refs []SegmentRef) []int64 {
	out := make([]int64, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Sequence)
	}
	return out
}

func TestSequenceFromURI(t *testing.T) {
	tests := []struct {
		uri  string
		want int64
		ok   bool
	}{
		{"media_720p_101.ts", 101, true},
		{"https://edge.example.com/live/media_w123_b5000_t64RlBTOjYwLjA=_4567.ts", 4567, true},
		{"media_720p_101.ts?token=abc_9.ts1", 101, true},
		{"segment-101.ts", 0, false},
		{"media_720p_101.aac", 0, false},
	}
	for _, tt := range tests {
		got, ok := SequenceFromURI(tt.uri)
		assert.Equal(t, tt.ok, ok, tt.uri)
		assert.Equal(t, tt.want, got, tt.uri)
	}
}

func TestTracker_AdvancesAcrossPolls(t *testing.T) {
	f := newFakeFetcher()
	f.sequence(testPlaylistURL,
		hlstest.MediaPlaylist(hlstest.Segments("720p", 101, 103, 2), false),
		hlstest.MediaPlaylist(hlstest.Segments("720p", 102, 104, 2), false),
	)
	tr := NewTracker(f, testPlaylistURL, DefaultSeedBacklog)
	tr.Seed(100)

	first, err := tr.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{101, 102, 103}, sequences(first.Segments))
	assert.False(t, first.Ended)

	second, err := tr.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{104}, sequences(second.Segments))

	last, seeded := tr.Last()
	assert.True(t, seeded)
	assert.Equal(t, int64(104), last)
}

func TestTracker_FirstPollSeedsBacklog(t *testing.T) {
	f := newFakeFetcher()
	f.serve(testPlaylistURL, hlstest.MediaPlaylist(hlstest.Segments("720p", 1, 10, 2), false))
	tr := NewTracker(f, testPlaylistURL, 3)

	res, err := tr.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{8, 9, 10}, sequences(res.Segments))

	res, err = tr.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Segments)
}

func TestTracker_SegmentRefs(t *testing.T) {
	f := newFakeFetcher()
	f.serve(testPlaylistURL, hlstest.MediaPlaylist(hlstest.Segments("720p", 5, 5, 2.5), false))
	tr := NewTracker(f, testPlaylistURL, 3)

	res, err := tr.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Segments, 1)
	ref := res.Segments[0]
	assert.Equal(t, "https://edge.example.com/live/room/media_720p_5.ts", ref.URI)
	assert.Equal(t, 2500*time.Millisecond, ref.Duration)
}

func TestTracker_FallsBackToMediaSequence(t *testing.T) {
	segs := []hlstest.Segment{
		{Sequence: 50, Duration: 2, URI: "chunk-a.ts"},
		{Sequence: 51, Duration: 2, URI: "chunk-b.ts"},
	}
	f := newFakeFetcher()
	f.serve(testPlaylistURL, hlstest.MediaPlaylist(segs, false))
	tr := NewTracker(f, testPlaylistURL, 5)

	res, err := tr.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{50, 51}, sequences(res.Segments))
}

func TestTracker_Endlist(t *testing.T) {
	f := newFakeFetcher()
	f.serve(testPlaylistURL, hlstest.MediaPlaylist(hlstest.Segments("720p", 1, 2, 2), true))
	tr := NewTracker(f, testPlaylistURL, 3)

	res, err := tr.Poll(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Ended)
	assert.Equal(t, []int64{1, 2}, sequences(res.Segments))
}

func TestTracker_EmptyFirstPollDoesNotSeed(t *testing.T) {
	f := newFakeFetcher()
	f.sequence(testPlaylistURL,
		hlstest.MediaPlaylist(nil, false),
		hlstest.MediaPlaylist(hlstest.Segments("720p", 20, 25, 2), false),
	)
	tr := NewTracker(f, testPlaylistURL, 2)

	res, err := tr.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Segments)
	_, seeded := tr.Last()
	assert.False(t, seeded)

	res, err = tr.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{24, 25}, sequences(res.Segments))
}

func TestTracker_CountsConsecutiveFailures(t *testing.T) {
	f := newFakeFetcher()
	good := hlstest.MediaPlaylist(hlstest.Segments("720p", 1, 3, 2), false)
	f.on(testPlaylistURL, func(call int) ([]byte, error) {
		switch call {
		case 0:
			return nil, errors.New("connection reset")
		case 1:
			return []byte("not a playlist"), nil
		default:
			return []byte(good), nil
		}
	})
	tr := NewTracker(f, testPlaylistURL, 3)

	_, err := tr.Poll(context.Background())
	require.ErrorIs(t, err, ErrPlaylistFetch)
	assert.Equal(t, 1, tr.Failures())

	_, err = tr.Poll(context.Background())
	require.ErrorIs(t, err, ErrPlaylistFetch)
	assert.Equal(t, 2, tr.Failures())

	_, err = tr.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, tr.Failures())
}

func TestTracker_NeverRepeatsOrGoesBack(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	tr := NewTracker(nil, testPlaylistURL, 3)

	var handed []int64
	head := int64(1000)
	for i := 0; i < 200; i++ {
		// Sliding windows that sometimes jump back, overlap or repeat entries.
		head += int64(rng.Intn(4)) - 1
		var refs []SegmentRef
		for n := rng.Intn(6); n >= 0; n-- {
			seq := head - int64(rng.Intn(5))
			refs = append(refs, SegmentRef{Sequence: seq})
			if rng.Intn(4) == 0 {
				refs = append(refs, SegmentRef{Sequence: seq})
			}
		}
		before, _ := tr.Last()
		out := tr.advance(refs)
		for j, r := range out {
			if len(handed) > 0 {
				require.Greater(t, r.Sequence, before)
			}
			if j > 0 {
				require.Greater(t, r.Sequence, out[j-1].Sequence)
			}
		}
		handed = append(handed, sequences(out)...)
	}

	for i := 1; i < len(handed); i++ {
		require.Greater(t, handed[i], handed[i-1])
	}
}
