package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLifetime(t *testing.T) {
	tests := []struct {
		class string
		want  time.Duration
	}{
		{class: "mail", want: 10_069 * time.Minute},
		{class: "calendar", want: 10_070 * time.Minute},
		{class: "contacts", want: 10_070 * time.Minute},
		{class: "onedrive", want: 42_300 * time.Minute},
		{class: "sharepoint", want: 42_300 * time.Minute},
		{class: "directory", want: 41_760 * time.Minute},
		{class: "teams", want: 4_320 * time.Minute},
		{class: "presence", want: 60 * time.Minute},
		{class: "print", want: 4_230 * time.Minute},
		{class: "todo", want: 4_230 * time.Minute},
		{class: "security", want: 43_200 * time.Minute},
		{class: "copilot", want: 4_320 * time.Minute},
		{class: "", want: 24 * time.Hour},
		{class: "unknown", want: 24 * time.Hour},
	}

	for _, tt := range tests {
		name := tt.class
		if name == "" {
			name = "empty"
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, Lifetime(tt.class))
		})
	}
}

func TestExpiration(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 589_793_238, time.UTC)

	got := Expiration("presence", now)
	assert.Equal(t, time.Date(2026, 3, 14, 10, 26, 53, 0, time.UTC), got)

	// Local times shift to UTC before the lifetime is added.
	mountain := time.FixedZone("MST", -7*60*60)
	got = Expiration("presence", now.In(mountain))
	assert.Equal(t, time.Date(2026, 3, 14, 10, 26, 53, 0, time.UTC), got)
}

func TestFormatTime(t *testing.T) {
	stamp := time.Date(2026, 3, 14, 9, 26, 53, 589_793_238, time.UTC)
	assert.Equal(t, "2026-03-14T09:26:53Z", FormatTime(stamp))

	mountain := time.FixedZone("MST", -7*60*60)
	assert.Equal(t, "2026-03-14T16:26:53Z", FormatTime(stamp.In(mountain).Add(7*time.Hour)))
}
