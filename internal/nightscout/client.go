// Package nightscout reads glucose entries and carb treatments from the Nightscout API
package nightscout

import (
	"context"
	"crypto/sha1" //nolint:gosec // Required for Nightscout API secret hashing (legacy API requirement)
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mrcode/glucose-spikes/internal/models"
)

// maxCount caps the number of documents asked for in one request.
// Nightscout returns only 10 when no count is given.
const maxCount = 100000

// Client handles communication with the Nightscout API
type Client struct {
	baseURL       string
	apiSecret     string
	apiToken      string
	useToken      bool
	glycemicIndex float64
	httpClient    *http.Client
	logger        *slog.Logger
}

// NewClient creates a new Nightscout client
func NewClient(cfg models.NightscoutConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.URL, "/"),
		apiSecret:     cfg.APISecret,
		apiToken:      cfg.APIToken,
		useToken:      cfg.UseToken,
		glycemicIndex: cfg.GlycemicIndex,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With("component", "nightscout"),
	}
}

// hashSecret generates SHA1 hash of the API secret
// Note: SHA1 is required for Nightscout API compatibility
func hashSecret(secret string) string {
	hasher := sha1.New() //nolint:gosec // Required for Nightscout API
	hasher.Write([]byte(secret))
	return hex.EncodeToString(hasher.Sum(nil))
}

// buildRequest creates an HTTP request with proper authentication
func (c *Client) buildRequest(ctx context.Context, method, endpoint string, params url.Values) (*http.Request, error) {
	fullURL := c.baseURL + endpoint
	if params != nil {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")

	// Add authentication
	if c.useToken && c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	} else if c.apiSecret != "" {
		req.Header.Set("API-SECRET", hashSecret(c.apiSecret))
	}

	return req, nil
}

// get executes a GET request and decodes the JSON body into out
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	req, err := c.buildRequest(ctx, http.MethodGet, endpoint, params)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing %s: %w", endpoint, err)
	}
	return nil
}

// GetStatus retrieves the Nightscout server status
func (c *Client) GetStatus(ctx context.Context) (*models.ServerStatus, error) {
	var status models.ServerStatus
	if err := c.get(ctx, "/api/v1/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetEntries retrieves glucose entries for a time range. Zero bounds are
// left open.
func (c *Client) GetEntries(ctx context.Context, from, to time.Time) ([]models.GlucoseEntry, error) {
	params := url.Values{}
	if !from.IsZero() {
		params.Set("find[date][$gte]", strconv.FormatInt(from.UnixMilli(), 10))
	}
	if !to.IsZero() {
		params.Set("find[date][$lte]", strconv.FormatInt(to.UnixMilli(), 10))
	}
	params.Set("count", strconv.Itoa(maxCount))

	var entries []models.GlucoseEntry
	if err := c.get(ctx, "/api/v1/entries/sgv", params, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetTreatments retrieves treatments created in a time range
func (c *Client) GetTreatments(ctx context.Context, from, to time.Time) ([]models.Treatment, error) {
	params := url.Values{}
	if !from.IsZero() {
		params.Set("find[created_at][$gte]", from.UTC().Format(time.RFC3339))
	}
	if !to.IsZero() {
		params.Set("find[created_at][$lte]", to.UTC().Format(time.RFC3339))
	}
	params.Set("count", strconv.Itoa(maxCount))

	var treatments []models.Treatment
	if err := c.get(ctx, "/api/v1/treatments", params, &treatments); err != nil {
		return nil, err
	}
	return treatments, nil
}

// Readings returns the glucose series of a time range sorted by time.
// Entries without a glucose value are dropped.
func (c *Client) Readings(ctx context.Context, from, to time.Time) ([]models.Reading, error) {
	entries, err := c.GetEntries(ctx, from, to)
	if err != nil {
		return nil, err
	}

	readings := make([]models.Reading, 0, len(entries))
	for i := range entries {
		if entries[i].SGV <= 0 {
			continue
		}
		readings = append(readings, entries[i].Reading())
	}

	c.logger.InfoContext(ctx, "fetched glucose entries", "entries", len(entries), "readings", len(readings))
	return models.SortReadings(readings), nil
}

// Meals returns the carb treatments of a time range as meals, sorted by time
func (c *Client) Meals(ctx context.Context, from, to time.Time) ([]models.Meal, error) {
	treatments, err := c.GetTreatments(ctx, from, to)
	if err != nil {
		return nil, err
	}

	var meals []models.Meal
	for i := range treatments {
		if !treatments[i].HasCarbs() {
			continue
		}
		meals = append(meals, treatments[i].Meal(c.glycemicIndex))
	}

	c.logger.InfoContext(ctx, "fetched treatments", "treatments", len(treatments), "meals", len(meals))
	return models.SortMeals(meals), nil
}
