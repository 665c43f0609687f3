// Package backend is the HTTP client for the knowledge service: species
// search and descriptions, image search, geocoding, and map rendering.
// The service contract is consumed here, not defined; every call carries an
// explicit timeout and a timeout is treated like any non-success response.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lakeguide/internal/types"
)

// ErrNotFound is returned when the service reports no matching object.
var ErrNotFound = errors.New("backend: not found")

// FindStatus is the outcome of a species lookup.
type FindStatus string

const (
	StatusFound     FindStatus = "found"
	StatusAmbiguous FindStatus = "ambiguous"
	StatusNotFound  FindStatus = "not_found"
)

// FindResult is the response to FindSpecies.
type FindResult struct {
	Status  FindStatus `json:"status"`
	Matches []string   `json:"matches"`
	HasMore bool       `json:"has_more"`
}

// DescriptionText is one description fragment. The service has returned
// both bare strings and {content} objects over time; both decode here.
type DescriptionText string

func (d *DescriptionText) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*d = DescriptionText(s)
		return nil
	}
	var obj struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*d = DescriptionText(obj.Content)
	return nil
}

// DescriptionResult is the response to GetDescription.
type DescriptionResult struct {
	Descriptions []DescriptionText `json:"descriptions"`
	Raw          json.RawMessage   `json:"-"`
}

// Texts returns the fragments as plain strings.
func (r *DescriptionResult) Texts() []string {
	out := make([]string, len(r.Descriptions))
	for i, d := range r.Descriptions {
		out[i] = string(d)
	}
	return out
}

// ImageRef is one image hit.
type ImageRef struct {
	ImagePath string `json:"image_path"`
}

// ImagesResult is the response to SearchImages.
type ImagesResult struct {
	Images []ImageRef      `json:"images"`
	Raw    json.RawMessage `json:"-"`
}

// Coords is a geocoding result.
type Coords struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// MapResult is a map rendering with the objects that fell inside it.
type MapResult struct {
	Names          []string `json:"names"`
	StaticMap      string   `json:"static_map"`
	InteractiveMap string   `json:"interactive_map"`
}

// AreaResult is the response to ObjectsInPolygon and FindInfrastructure.
type AreaResult struct {
	Names          []string `json:"all_biological_names"`
	StaticMap      string   `json:"static_map,omitempty"`
	InteractiveMap string   `json:"interactive_map,omitempty"`
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	// Timeout bounds primary lookups. Probe calls pass a context with the
	// shorter ProbeTimeout deadline instead.
	Timeout      time.Duration
	ProbeTimeout time.Duration
	PageSize     int
}

// DefaultConfig returns sensible defaults for a local knowledge service.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:      baseURL,
		Timeout:      20 * time.Second,
		ProbeTimeout: 6 * time.Second,
		PageSize:     4,
	}
}

// Client calls the knowledge service.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	probeTimeout time.Duration
	pageSize     int
}

// NewClient creates a knowledge-service client.
func NewClient(config Config) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 20 * time.Second
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 6 * time.Second
	}
	if config.PageSize <= 0 {
		config.PageSize = 4
	}
	return &Client{
		baseURL:      strings.TrimRight(config.BaseURL, "/"),
		httpClient:   &http.Client{Timeout: config.Timeout},
		probeTimeout: config.ProbeTimeout,
		pageSize:     config.PageSize,
	}
}

// PageSize returns the disambiguation page size requested per lookup.
func (c *Client) PageSize() int { return c.pageSize }

// ProbeContext derives a context with the short probe deadline.
func (c *Client) ProbeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.probeTimeout)
}

// post issues one JSON request/response exchange.
func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend %s failed with status %d: %s", path, resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", path, err)
	}
	if raw, ok := out.(interface{ setRaw(json.RawMessage) }); ok {
		raw.setRaw(body)
	}
	return nil
}

func (r *DescriptionResult) setRaw(b json.RawMessage) { r.Raw = b }
func (r *ImagesResult) setRaw(b json.RawMessage)      { r.Raw = b }

// FindSpecies looks up a species name, paginated by offset.
func (c *Client) FindSpecies(ctx context.Context, name string, limit, offset int) (*FindResult, error) {
	var out FindResult
	err := c.post(ctx, "/species/find", map[string]any{
		"name":   name,
		"limit":  limit,
		"offset": offset,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Status == "" {
		out.Status = StatusNotFound
	}
	return &out, nil
}

// GetDescription fetches description text for a resolved species name.
func (c *Client) GetDescription(ctx context.Context, speciesName string, debug bool) (*DescriptionResult, error) {
	var out DescriptionResult
	if err := c.post(ctx, "/species/description", map[string]any{
		"species_name": speciesName,
		"debug_mode":   debug,
	}, &out); err != nil {
		return nil, err
	}
	if len(out.Descriptions) == 0 {
		return nil, ErrNotFound
	}
	return &out, nil
}

// SearchImages finds images of a species filtered by attributes.
func (c *Client) SearchImages(ctx context.Context, speciesName string, features types.Attributes) (*ImagesResult, error) {
	var out ImagesResult
	if err := c.post(ctx, "/images/search", map[string]any{
		"species_name": speciesName,
		"features":     features,
	}, &out); err != nil {
		return nil, err
	}
	if len(out.Images) == 0 {
		return nil, ErrNotFound
	}
	return &out, nil
}

// GetCoords geocodes an object name.
func (c *Client) GetCoords(ctx context.Context, name string) (*Coords, error) {
	var out Coords
	if err := c.post(ctx, "/geo/coords", map[string]any{"name": name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CoordsToMap renders a map around a point and lists the objects on it.
func (c *Client) CoordsToMap(ctx context.Context, coords Coords, radiusKm float64, name, objectType string) (*MapResult, error) {
	var out MapResult
	if err := c.post(ctx, "/geo/map", map[string]any{
		"latitude":     coords.Latitude,
		"longitude":    coords.Longitude,
		"radius_km":    radiusKm,
		"species_name": name,
		"object_type":  objectType,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ObjectsInPolygon lists objects inside a named area, with optional buffer.
func (c *Client) ObjectsInPolygon(ctx context.Context, name string, bufferKm float64, objectType, objectSubtype string) (*AreaResult, error) {
	payload := map[string]any{
		"name":             name,
		"buffer_radius_km": bufferKm,
		"object_type":      objectType,
	}
	if objectSubtype != "" {
		payload["object_subtype"] = objectSubtype
	}
	var out AreaResult
	if err := c.post(ctx, "/geo/polygon", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindInfrastructure looks up infrastructure objects by name/type/area.
func (c *Client) FindInfrastructure(ctx context.Context, name, objectType, area string) (*AreaResult, error) {
	var out AreaResult
	if err := c.post(ctx, "/infra/find", map[string]any{
		"name":        name,
		"object_type": objectType,
		"area":        area,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
