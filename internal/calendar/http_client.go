package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// HTTPClient talks to the calendar provider's REST API. The provider itself is
// a black box; only the three capabilities the engine needs are exposed.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        zerolog.Logger
}

func NewHTTPClient(baseURL, token string, timeout time.Duration, log zerolog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log.With().Str("component", "calendar").Logger(),
	}
}

type busyResponse struct {
	Busy []struct {
		Start  time.Time `json:"start"`
		End    time.Time `json:"end"`
		Status string    `json:"status"`
	} `json:"busy"`
}

func (c *HTTPClient) ListBusyIntervals(ctx context.Context, calendarRef string, from, to time.Time) ([]BusyInterval, error) {
	endpoint := fmt.Sprintf("%s/v1/calendars/%s/busy?from=%s&to=%s",
		c.baseURL,
		url.PathEscape(calendarRef),
		url.QueryEscape(from.Format(time.RFC3339)),
		url.QueryEscape(to.Format(time.RFC3339)),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build busy request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(body))
	}

	var parsed busyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode busy response: %w", err)
	}

	intervals := make([]BusyInterval, 0, len(parsed.Busy))
	for _, b := range parsed.Busy {
		// Cancelled holds do not block availability.
		if b.Status == "cancelled" {
			continue
		}
		intervals = append(intervals, BusyInterval{Start: b.Start, End: b.End})
	}
	return intervals, nil
}

type createEventRequest struct {
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

type createEventResponse struct {
	ID string `json:"id"`
}

func (c *HTTPClient) CreateEvent(ctx context.Context, calendarRef string, ev Event) (string, error) {
	payload, err := json.Marshal(createEventRequest{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       ev.Start,
		End:         ev.End,
	})
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/calendars/%s/events", c.baseURL, url.PathEscape(calendarRef))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(body))
	}

	var parsed createEventResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("create event: provider returned empty event id")
	}

	c.log.Debug().Str("calendar_ref", calendarRef).Str("event_ref", parsed.ID).Msg("event created")
	return parsed.ID, nil
}

func (c *HTTPClient) DeleteEvent(ctx context.Context, calendarRef, eventRef string) error {
	endpoint := fmt.Sprintf("%s/v1/calendars/%s/events/%s",
		c.baseURL, url.PathEscape(calendarRef), url.PathEscape(eventRef))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		// Already gone; deletion is idempotent from our side.
		return ErrEventNotFound
	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(body))
	}
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
