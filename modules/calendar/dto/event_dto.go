package dto

import "time"

type CreateEventRequest struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Timezone    string
	Attendees   []string
}

type Event struct {
	EventID  string `json:"event_id"`
	JoinLink string `json:"join_link,omitempty"`
	HTMLLink string `json:"html_link,omitempty"`
}
