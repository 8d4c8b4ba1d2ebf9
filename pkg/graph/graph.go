// Package graph is a Microsoft Graph application client covering the
// pieces the scheduled jobs need: client-credentials tokens and the
// change-notification subscription lifecycle.
//
// Subscriptions expire on a per-resource schedule, so jobs renew them
// on a timer and reconcile the local record of what was created
// against what Graph still knows about. The local record lives behind
// the Store interface; FileStore keeps the original JSON file layout
// and internal/state provides a SQLite-backed implementation.
package graph

import (
	"time"
)

// DefaultBaseURL is the Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// requestTimeout bounds every Graph and token request.
const requestTimeout = 30 * time.Second

// DefaultRenewalWindow is how close to expiry a subscription may get
// before the renewal job picks it up.
const DefaultRenewalWindow = 60 * time.Minute

// Subscription is a Graph change-notification subscription as the API
// returns it.
type Subscription struct {
	ID                        string    `json:"id,omitempty"`
	Resource                  string    `json:"resource,omitempty"`
	ChangeType                string    `json:"changeType,omitempty"`
	NotificationURL           string    `json:"notificationUrl,omitempty"`
	ExpirationDateTime        time.Time `json:"expirationDateTime,omitempty"`
	ClientState               string    `json:"clientState,omitempty"`
	ApplicationID             string    `json:"applicationId,omitempty"`
	CreatorID                 string    `json:"creatorId,omitempty"`
	LatestSupportedTLSVersion string    `json:"latestSupportedTlsVersion,omitempty"`
}

// lifetimes holds the maximum subscription length Graph allows per
// resource class, in minutes.
var lifetimes = map[string]int{
	"mail":       10_069, // Outlook messages (just under 7 days)
	"calendar":   10_070,
	"contacts":   10_070,
	"onedrive":   42_300, // driveItem (30 days)
	"sharepoint": 42_300, // list items
	"directory":  41_760, // users, groups (29 days)
	"teams":      4_320,  // channels, chat messages (3 days)
	"presence":   60,
	"print":      4_230,
	"todo":       4_230,
	"security":   43_200, // alerts (30 days)
	"copilot":    4_320,
}

// defaultLifetime applies to unknown resource classes.
const defaultLifetime = 1_440 // one day

// Lifetime reports the maximum subscription length for a resource
// class, falling back to one day for classes not in the table.
func Lifetime(class string) time.Duration {
	minutes, ok := lifetimes[class]
	if !ok {
		minutes = defaultLifetime
	}
	return time.Duration(minutes) * time.Minute
}

// Expiration computes the furthest allowed expiration for a resource
// class, starting from now.
func Expiration(class string, now time.Time) time.Time {
	return now.UTC().Add(Lifetime(class)).Truncate(time.Second)
}

// FormatTime renders an expiration the way the subscriptions API
// expects it: UTC, whole seconds, trailing Z.
func FormatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
}
