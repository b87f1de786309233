// Package hlstest builds the documents a live room serves (room page, master
// playlist, media playlist) so recorder tests can script a remote site.
package hlstest

import (
	"fmt"
	"math"
	"strings"
)

// Segment is one media playlist entry.
type Segment struct {
	Sequence int64
	Duration float64
	URI      string
}

// Segments returns segments from..to (inclusive) named the way the site names
// them, e.g. "media_720p_101.ts".
func Segments(rendition string, from, to int64, duration float64) []Segment {
	var out []Segment
	for seq := from; seq <= to; seq++ {
		out = append(out, Segment{
			Sequence: seq,
			Duration: duration,
			URI:      SegmentURI(rendition, seq),
		})
	}
	return out
}

// SegmentURI names segment seq of rendition.
func SegmentURI(rendition string, seq int64) string {
	return fmt.Sprintf("media_%s_%d.ts", rendition, seq)
}

// MediaPlaylist renders segments (ordered by sequence ascending) as a live
// media playlist. If ended is true, #EXT-X-ENDLIST is appended.
// An empty segments slice produces a minimal valid playlist with media sequence 0.
func MediaPlaylist(segments []Segment, ended bool) string {
	var b strings.Builder

	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")

	if len(segments) == 0 {
		b.WriteString("#EXT-X-TARGETDURATION:1\n")
		b.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n")
		if ended {
			b.WriteString("#EXT-X-ENDLIST\n")
		}
		return b.String()
	}

	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", targetDuration(segments))
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n", segments[0].Sequence)

	for _, seg := range segments {
		fmt.Fprintf(&b, "#EXTINF:%.3f,\n", seg.Duration)
		b.WriteString(seg.URI)
		b.WriteString("\n")
	}

	if ended {
		b.WriteString("#EXT-X-ENDLIST\n")
	}

	return b.String()
}

// targetDuration is the ceiling of the longest segment duration.
func targetDuration(segments []Segment) int {
	max := 0.0
	for _, seg := range segments {
		if seg.Duration > max {
			max = seg.Duration
		}
	}
	if max <= 0 {
		return 1
	}
	return int(math.Ceil(max))
}

// Variant is one master playlist entry.
type Variant struct {
	URI       string
	Width     int
	Height    int
	Bandwidth int
	FrameRate float64
	Name      string
}

// MasterPlaylist renders variants as a master playlist.
func MasterPlaylist(variants []Variant) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	for _, v := range variants {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%dx%d", v.Bandwidth, v.Width, v.Height)
		if v.FrameRate > 0 {
			fmt.Fprintf(&b, ",FRAME-RATE=%.3f", v.FrameRate)
		}
		if v.Name != "" {
			fmt.Fprintf(&b, ",NAME=%q", v.Name)
		}
		b.WriteString("\n")
		b.WriteString(v.URI)
		b.WriteString("\n")
	}
	return b.String()
}

// RoomPage renders a room page embedding dossierJSON the way the site does:
// as a JavaScript string literal with quotes escaped as \u0022.
func RoomPage(dossierJSON string) string {
	escaped := strings.ReplaceAll(dossierJSON, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\u0022`)
	escaped = strings.ReplaceAll(escaped, `/`, `\/`)
	return "<html><head><title>room</title></head><body>\n" +
		"<script>window.initialRoomDossier = \"" + escaped + "\";</script>\n" +
		"</body></html>\n"
}

// LiveDossier returns a dossier whose hls_source points at masterURL.
func LiveDossier(masterURL string) string {
	return fmt.Sprintf(`{"broadcaster_username": "room", "room_status": "public", "hls_source": %q}`, masterURL)
}

// OfflinePage is a room page without any playlist reference.
const OfflinePage = "<html><body><script>window.initialRoomDossier = \"{\\u0022room_status\\u0022: \\u0022offline\\u0022, \\u0022hls_source\\u0022: \\u0022\\u0022}\";</script></body></html>\n"
