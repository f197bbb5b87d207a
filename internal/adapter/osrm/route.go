package osrm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Temutjin2k/geo-tracker/internal/domain/models"
	"github.com/Temutjin2k/geo-tracker/internal/domain/types"
	wrap "github.com/Temutjin2k/geo-tracker/pkg/logger/wrapper"
)

const (
	DefaultBaseURL = "https://router.project-osrm.org"
	DefaultProfile = "driving"

	codeOk = "Ok"
)

// Client asks an OSRM server for driving routes. Requests have no timeout of their own;
// they end when the server answers or ctx is done.
type Client struct {
	baseURL string
	profile string
	http    *http.Client
}

func New(baseURL, profile string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if profile == "" {
		profile = DefaultProfile
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		profile: profile,
		http:    &http.Client{},
	}
}

type routeResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

// Route implements tracker.Router
func (c *Client) Route(ctx context.Context, from, to models.Position) (models.Route, error) {
	const op = "OSRMClient.Route"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.routeURL(from, to), nil)
	if err != nil {
		return models.Route{}, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		ctx = wrap.WithAction(ctx, types.ActionExternalServiceFailed)
		return models.Route{}, wrap.Error(ctx, fmt.Errorf("%s: failed to make request to OSRM: %w", op, err))
	}
	defer resp.Body.Close()

	var payload routeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		if resp.StatusCode != http.StatusOK {
			ctx = wrap.WithAction(ctx, types.ActionExternalServiceFailed)
			return models.Route{}, wrap.Error(ctx, fmt.Errorf("%s: unexpected response status %d", op, resp.StatusCode))
		}
		return models.Route{}, wrap.Error(ctx, fmt.Errorf("%s: failed to decode OSRM response: %w", op, err))
	}

	// OSRM reports NoRoute and friends with a 400 and a code in the body
	if payload.Code != codeOk || len(payload.Routes) == 0 {
		ctx = wrap.WithAction(ctx, types.ActionExternalServiceFailed)
		return models.Route{}, wrap.Error(ctx, fmt.Errorf("%s: %w: %s %s", op, types.ErrRouteNotFound, payload.Code, payload.Message))
	}

	best := payload.Routes[0]
	geometry := make([]models.Position, 0, len(best.Geometry.Coordinates))
	for _, pt := range best.Geometry.Coordinates {
		if len(pt) < 2 {
			continue
		}
		// GeoJSON order is lon, lat
		geometry = append(geometry, models.Position{Latitude: pt[1], Longitude: pt[0]})
	}

	return models.Route{
		From:            from,
		To:              to,
		Geometry:        geometry,
		DistanceMeters:  best.Distance,
		DurationSeconds: best.Duration,
	}, nil
}

func (c *Client) routeURL(from, to models.Position) string {
	return fmt.Sprintf("%s/route/v1/%s/%s;%s?overview=full&geometries=geojson",
		c.baseURL, c.profile, coord(from), coord(to))
}

func coord(p models.Position) string {
	return strconv.FormatFloat(p.Longitude, 'f', -1, 64) + "," + strconv.FormatFloat(p.Latitude, 'f', -1, 64)
}
