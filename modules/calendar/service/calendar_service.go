package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"consult-booking/core/config"
	"consult-booking/core/constants"
	"consult-booking/core/errors"
	"consult-booking/core/logger"
	"consult-booking/modules/calendar/dto"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
)

const (
	googleCalendarAPIBase = "https://www.googleapis.com/calendar/v3"
	googleCalendarScope   = "https://www.googleapis.com/auth/calendar"
	defaultTimeout        = 10 * time.Second
)

type Calendar interface {
	CreateEvent(ctx context.Context, req dto.CreateEventRequest) (*dto.Event, error)
}

type googleCalendar struct {
	client     *http.Client
	baseURL    string
	calendarID string
	timeout    time.Duration
	configured bool
}

// NewGoogleCalendar authenticates as a service account. With no credentials the
// returned Calendar reports a configuration error on every call.
func NewGoogleCalendar(cfg config.CalendarConfig) Calendar {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}

	if cfg.ClientEmail == "" || cfg.PrivateKey == "" {
		logger.Warn("GoogleCalendar:New:NotConfigured")
		return &googleCalendar{calendarID: calendarID, timeout: timeout}
	}

	jwtCfg := &jwt.Config{
		Email:      cfg.ClientEmail,
		PrivateKey: []byte(strings.ReplaceAll(cfg.PrivateKey, `\n`, "\n")),
		Scopes:     []string{googleCalendarScope},
		TokenURL:   google.JWTTokenURL,
		Subject:    cfg.Subject,
	}

	base := &http.Client{Timeout: timeout}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	client := oauth2.NewClient(tokenCtx, jwtCfg.TokenSource(tokenCtx))
	client.Timeout = timeout

	return &googleCalendar{
		client:     client,
		baseURL:    googleCalendarAPIBase,
		calendarID: calendarID,
		timeout:    timeout,
		configured: true,
	}
}

func newGoogleCalendarWithClient(client *http.Client, baseURL, calendarID string, timeout time.Duration) *googleCalendar {
	return &googleCalendar{client: client, baseURL: baseURL, calendarID: calendarID, timeout: timeout, configured: true}
}

type eventResponse struct {
	ID             string `json:"id"`
	HTMLLink       string `json:"htmlLink"`
	HangoutLink    string `json:"hangoutLink"`
	ConferenceData struct {
		EntryPoints []struct {
			EntryPointType string `json:"entryPointType"`
			URI            string `json:"uri"`
		} `json:"entryPoints"`
	} `json:"conferenceData"`
}

func (g *googleCalendar) CreateEvent(ctx context.Context, req dto.CreateEventRequest) (*dto.Event, error) {
	if !g.configured {
		return nil, errors.NewAppError(errors.ErrConfiguration, "Google Calendar credentials are not configured", nil)
	}

	tz := req.Timezone
	if tz == "" {
		tz = constants.DefaultTimezone
	}

	event := map[string]any{
		"summary":     req.Summary,
		"description": req.Description,
		"start": map[string]string{
			"dateTime": req.Start.Format(time.RFC3339),
			"timeZone": tz,
		},
		"end": map[string]string{
			"dateTime": req.End.Format(time.RFC3339),
			"timeZone": tz,
		},
		"conferenceData": map[string]any{
			"createRequest": map[string]any{
				"requestId":             uuid.NewString(),
				"conferenceSolutionKey": map[string]string{"type": "hangoutsMeet"},
			},
		},
	}

	if len(req.Attendees) > 0 {
		attendees := make([]map[string]string, 0, len(req.Attendees))
		for _, email := range req.Attendees {
			if email != "" {
				attendees = append(attendees, map[string]string{"email": email})
			}
		}
		event["attendees"] = attendees
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to encode calendar event", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/calendars/%s/events?conferenceDataVersion=1&sendUpdates=all", g.baseURL, url.PathEscape(g.calendarID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(eventJSON))
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to build calendar request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrUpstream, "Failed to create calendar event", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.NewAppError(errors.ErrUpstream, fmt.Sprintf("Google API error: %s", string(body)), nil)
	}

	var result eventResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.NewAppError(errors.ErrUpstream, "Malformed Google Calendar response", err)
	}
	if result.ID == "" {
		return nil, errors.NewAppError(errors.ErrUpstream, "Google Calendar returned no event id", nil)
	}

	joinLink := result.HangoutLink
	if joinLink == "" {
		for _, ep := range result.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" && ep.URI != "" {
				joinLink = ep.URI
				break
			}
		}
	}

	logger.Info("GoogleCalendar:CreateEvent:Success", "event_id", result.ID, "has_join_link", joinLink != "")
	return &dto.Event{EventID: result.ID, JoinLink: joinLink, HTMLLink: result.HTMLLink}, nil
}
