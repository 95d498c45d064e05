package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"rolegate/pkg/requestcontext"
)

// Enrich stamps e with an id, the request time, its category and the request
// metadata carried by ctx. Fields already set are kept.
func Enrich(ctx context.Context, e Event) Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = requestcontext.Now(ctx).UTC()
	}
	if e.Category == "" {
		e.Category = e.Action.Category()
	}
	if e.RequestID == "" {
		e.RequestID = requestcontext.RequestID(ctx)
	}
	if e.ClientIP == "" {
		e.ClientIP = requestcontext.ClientIP(ctx)
	}
	if e.UserAgent == "" {
		e.UserAgent = requestcontext.UserAgent(ctx)
	}
	if e.Client == nil && e.UserAgent != "" {
		e.Client = ParseClient(e.UserAgent)
	}
	return e
}

// ParseClient extracts browser and platform details from a User-Agent header.
func ParseClient(raw string) *Client {
	ua := useragent.New(raw)
	name, version := ua.Browser()
	return &Client{
		Browser:        name,
		BrowserVersion: version,
		OS:             ua.OS(),
		Mobile:         ua.Mobile(),
		Bot:            ua.Bot(),
	}
}
