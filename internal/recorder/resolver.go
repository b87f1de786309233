package recorder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"

	"hls-recorder/internal/platform/httpclient"
)

const (
	livePlaylistMarker = "playlist.m3u8"

	// maxRoomPageSize bounds how much of a room page is searched for the dossier.
	maxRoomPageSize = 4 << 20
)

var dossierPattern = regexp.MustCompile(`window\.initialRoomDossier\s*=\s*"((?:[^"\\]|\\.)*)"`)

// dossier is the part of the room page's embedded state the recorder reads.
type dossier struct {
	HLSSource   string `json:"hls_source"`
	RoomStatus  string `json:"room_status"`
	Broadcaster string `json:"broadcaster_username"`
}

// Resolver discovers a room's live media playlist.
type Resolver struct {
	fetcher    Fetcher
	domain     string
	resolution int
	framerate  int
}

// NewResolver returns a Resolver for rooms under domain (with trailing slash)
// that selects the variant closest to resolution and framerate.
func NewResolver(fetcher Fetcher, domain string, resolution, framerate int) *Resolver {
	if !strings.HasSuffix(domain, "/") {
		domain += "/"
	}
	return &Resolver{
		fetcher:    fetcher,
		domain:     domain,
		resolution: resolution,
		framerate:  framerate,
	}
}

// Resolve fetches the room page and master playlist and returns the selected variant.
// Errors match ErrRoomNotFound, ErrRoomOffline, ErrDiscoveryParse or ErrPlaylistFetch,
// or are the context's error when ctx is done.
func (r *Resolver) Resolve(ctx context.Context, room string) (PlaylistVariant, error) {
	page, err := r.fetcher.Get(ctx, r.domain+room+"/")
	if err != nil {
		if ctx.Err() != nil {
			return PlaylistVariant{}, ctx.Err()
		}
		return PlaylistVariant{}, classifyPageError(room, err)
	}

	masterURL, err := parseRoomPage(room, page)
	if err != nil {
		return PlaylistVariant{}, err
	}

	body, err := r.fetcher.Get(ctx, masterURL)
	if err != nil {
		if ctx.Err() != nil {
			return PlaylistVariant{}, ctx.Err()
		}
		return PlaylistVariant{}, &DiscoveryError{Room: room, Kind: ErrPlaylistFetch, Reason: "master playlist", Err: err}
	}

	variants, err := parseMasterPlaylist(masterURL, body)
	if err != nil {
		return PlaylistVariant{}, &DiscoveryError{Room: room, Kind: ErrDiscoveryParse, Reason: "master playlist", Err: err}
	}

	v, ok := SelectVariant(variants, r.resolution, r.framerate)
	if !ok {
		return PlaylistVariant{}, &DiscoveryError{Room: room, Kind: ErrDiscoveryParse, Reason: "no variants"}
	}
	return v, nil
}

func classifyPageError(room string, err error) error {
	switch {
	case errors.Is(err, httpclient.ErrNotFound):
		return &DiscoveryError{Room: room, Kind: ErrRoomNotFound}
	case errors.Is(err, httpclient.ErrForbidden):
		return &DiscoveryError{Room: room, Kind: ErrRoomOffline, Reason: "private"}
	case errors.Is(err, httpclient.ErrBlocked):
		return &DiscoveryError{Room: room, Kind: ErrDiscoveryParse, Reason: "cloudflare challenge", Err: err}
	case errors.Is(err, httpclient.ErrAgeVerification):
		return &DiscoveryError{Room: room, Kind: ErrDiscoveryParse, Reason: "age verification", Err: err}
	default:
		return &DiscoveryError{Room: room, Kind: ErrPlaylistFetch, Reason: "room page", Err: err}
	}
}

// parseRoomPage extracts the master playlist URL from a room page.
func parseRoomPage(room string, page []byte) (string, error) {
	if len(page) > maxRoomPageSize {
		page = page[:maxRoomPageSize]
	}
	if !bytes.Contains(page, []byte(livePlaylistMarker)) {
		return "", &DiscoveryError{Room: room, Kind: ErrRoomOffline}
	}

	m := dossierPattern.FindSubmatch(page)
	if m == nil {
		return "", &DiscoveryError{Room: room, Kind: ErrDiscoveryParse, Reason: "room dossier not found"}
	}

	var raw string
	if err := json.Unmarshal([]byte(`"`+string(m[1])+`"`), &raw); err != nil {
		return "", &DiscoveryError{Room: room, Kind: ErrDiscoveryParse, Reason: "room dossier escapes", Err: err}
	}
	var d dossier
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return "", &DiscoveryError{Room: room, Kind: ErrDiscoveryParse, Reason: "room dossier json", Err: err}
	}
	if d.HLSSource == "" {
		return "", &DiscoveryError{Room: room, Kind: ErrRoomOffline, Reason: d.RoomStatus}
	}
	return d.HLSSource, nil
}

func parseMasterPlaylist(masterURL string, body []byte) ([]PlaylistVariant, error) {
	base, err := url.Parse(masterURL)
	if err != nil {
		return nil, fmt.Errorf("invalid master URL: %w", err)
	}
	pl, listType, err := m3u8.DecodeFrom(bytes.NewReader(body), false)
	if err != nil {
		return nil, err
	}
	if listType != m3u8.MASTER {
		return nil, errors.New("not a master playlist")
	}
	master := pl.(*m3u8.MasterPlaylist)

	variants := make([]PlaylistVariant, 0, len(master.Variants))
	for _, v := range master.Variants {
		if v == nil || v.URI == "" {
			continue
		}
		ref, err := base.Parse(v.URI)
		if err != nil {
			return nil, fmt.Errorf("variant URI %q: %w", v.URI, err)
		}
		variants = append(variants, PlaylistVariant{
			URL:        ref.String(),
			Resolution: resolutionHeight(v.Resolution),
			Framerate:  variantFramerate(v.VariantParams),
			Bandwidth:  int64(v.Bandwidth),
		})
	}
	return variants, nil
}

// resolutionHeight returns the height of a "WIDTHxHEIGHT" attribute, or 0.
func resolutionHeight(res string) int {
	_, h, ok := strings.Cut(res, "x")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(h)
	if err != nil {
		return 0
	}
	return n
}

func variantFramerate(p m3u8.VariantParams) int {
	if p.FrameRate > 0 {
		return int(math.Round(p.FrameRate))
	}
	if strings.Contains(p.Name, "FPS:60") {
		return 60
	}
	return 30
}

// SelectVariant picks the variant for the target resolution and framerate:
// the exact resolution if offered, else the highest below it, else the lowest.
// Within that resolution a variant at the target framerate wins, then the
// highest framerate, then the highest bandwidth, then playlist order.
func SelectVariant(variants []PlaylistVariant, resolution, framerate int) (PlaylistVariant, bool) {
	if len(variants) == 0 {
		return PlaylistVariant{}, false
	}

	res, below, lowest := -1, -1, math.MaxInt
	for _, v := range variants {
		if v.Resolution == resolution {
			res = resolution
		}
		if v.Resolution < resolution && v.Resolution > below {
			below = v.Resolution
		}
		if v.Resolution < lowest {
			lowest = v.Resolution
		}
	}
	switch {
	case res >= 0:
	case below >= 0:
		res = below
	default:
		res = lowest
	}

	var atRes, exact []PlaylistVariant
	for _, v := range variants {
		if v.Resolution != res {
			continue
		}
		atRes = append(atRes, v)
		if v.Framerate == framerate {
			exact = append(exact, v)
		}
	}
	candidates := atRes
	if len(exact) > 0 {
		candidates = exact
	}

	best := candidates[0]
	for _, v := range candidates[1:] {
		if v.Framerate > best.Framerate || (v.Framerate == best.Framerate && v.Bandwidth > best.Bandwidth) {
			best = v
		}
	}
	return best, true
}
