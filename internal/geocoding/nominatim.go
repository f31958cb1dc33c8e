// Package geocoding resolves place identifiers to boundary polygons through a
// Nominatim-compatible details endpoint.
package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/iliyamo/cityhelp/internal/geo"
)

var (
	// ErrUnavailable wraps every transport, status and decoding failure.
	ErrUnavailable = errors.New("geocoder unavailable")
	// ErrNotAPolygon is returned when the place geometry is not a Polygon.
	ErrNotAPolygon = errors.New("geometry is not a polygon")
)

const maxBodyBytes = 8 << 20

type Client struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	http      *http.Client
}

// NewClient builds a client for baseURL.  A nil httpClient uses a fresh
// http.Client; the per-call timeout is applied through the request context.
func NewClient(baseURL, userAgent string, timeout time.Duration, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{baseURL: baseURL, userAgent: userAgent, timeout: timeout, http: httpClient}
}

type detailsResponse struct {
	Geometry json.RawMessage `json:"geometry"`
}

type geometryHeader struct {
	Type string `json:"type"`
}

// Polygon fetches the boundary of placeID.
func (c *Client) Polygon(ctx context.Context, placeID uint64) (geo.Polygon, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("place_id", strconv.FormatUint(placeID, 10))
	q.Set("polygon_geojson", "1")
	q.Set("format", "json")
	endpoint := c.baseURL + "/details?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	var details detailsResponse
	if err := json.Unmarshal(body, &details); err != nil {
		return nil, fmt.Errorf("%w: decode details: %v", ErrUnavailable, err)
	}
	if len(details.Geometry) == 0 || string(details.Geometry) == "null" {
		return nil, fmt.Errorf("%w: response has no geometry", ErrUnavailable)
	}

	var hdr geometryHeader
	if err := json.Unmarshal(details.Geometry, &hdr); err != nil {
		return nil, fmt.Errorf("%w: decode geometry: %v", ErrUnavailable, err)
	}
	if hdr.Type != "Polygon" {
		return nil, fmt.Errorf("%w: got %q", ErrNotAPolygon, hdr.Type)
	}

	g, err := geojson.UnmarshalGeometry(details.Geometry)
	if err != nil {
		return nil, fmt.Errorf("%w: decode polygon: %v", ErrUnavailable, err)
	}
	poly, ok := g.Geometry().(orb.Polygon)
	if !ok || len(poly) == 0 {
		return nil, fmt.Errorf("%w: empty polygon", ErrUnavailable)
	}
	return fromOrb(poly), nil
}

func fromOrb(p orb.Polygon) geo.Polygon {
	out := make(geo.Polygon, 0, len(p))
	for _, ring := range p {
		r := make(geo.Ring, 0, len(ring))
		for _, pt := range ring {
			r = append(r, geo.Point{Lng: pt.Lon(), Lat: pt.Lat()})
		}
		out = append(out, r)
	}
	return out
}
