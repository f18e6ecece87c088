package types

import "time"

// Endpoint identifies which webhook ingress route a delivery arrived
// on, determining which handler in the worker pool processes it.
type Endpoint string

const (
	EndpointMail    Endpoint = "mail"
	EndpointScrape  Endpoint = "scrape"
	EndpointBooking Endpoint = "booking"
	EndpointAlert   Endpoint = "alert"
)

// WebhookAuditEntry records one received webhook delivery. Uniqueness
// on (Endpoint, ExternalID) is how duplicate deliveries are detected.
type WebhookAuditEntry struct {
	ID         string    `json:"id"`
	Endpoint   Endpoint  `json:"endpoint"`
	ExternalID string    `json:"external_id"`
	Body       []byte    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

// DomainEntity is an opaque side-effect record (Lead, Insight,
// CampaignRecord, CalendarEvent, Alert, Document, Scrape, ...). The
// engine only knows it may be inserted after an agent or webhook
// handler finishes; it never interprets Payload.
type DomainEntity struct {
	ID          string         `json:"id"`
	Kind        string         `json:"kind"`
	RequesterID string         `json:"requester_id"`
	Payload     map[string]any `json:"payload"`
	CreatedAt   time.Time      `json:"created_at"`
}
