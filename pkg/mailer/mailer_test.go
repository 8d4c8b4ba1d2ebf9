package mailer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalized(t *testing.T) {
	tests := []struct {
		name string
		in   Message
		want Message
	}{
		{
			name: "duplicates within a list",
			in:   Message{To: []string{"a@wcap.ca", "b@wcap.ca", "a@wcap.ca"}},
			want: Message{To: []string{"a@wcap.ca", "b@wcap.ca"}},
		},
		{
			name: "to wins over cc and bcc",
			in: Message{
				To:  []string{"a@wcap.ca"},
				Cc:  []string{"a@wcap.ca", "c@wcap.ca"},
				Bcc: []string{"a@wcap.ca", "c@wcap.ca", "d@wcap.ca"},
			},
			want: Message{
				To:  []string{"a@wcap.ca"},
				Cc:  []string{"c@wcap.ca"},
				Bcc: []string{"d@wcap.ca"},
			},
		},
		{
			name: "first seen order kept",
			in:   Message{To: []string{"c@wcap.ca", "a@wcap.ca", "b@wcap.ca", "a@wcap.ca"}},
			want: Message{To: []string{"c@wcap.ca", "a@wcap.ca", "b@wcap.ca"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.normalized()
			assert.Equal(t, tt.want.To, got.To)
			assert.Equal(t, tt.want.Cc, got.Cc)
			assert.Equal(t, tt.want.Bcc, got.Bcc)
		})
	}
}

func TestBuild(t *testing.T) {
	t.Run("plain text", func(t *testing.T) {
		msg, err := build(Message{
			From:    "jobs@wcap.ca",
			To:      []string{"a@wcap.ca", "b@wcap.ca"},
			Subject: "relay check",
			Body:    "produced water volumes attached",
		})
		require.NoError(t, err)

		var buf bytes.Buffer
		_, err = msg.WriteTo(&buf)
		require.NoError(t, err)

		rendered := buf.String()
		assert.Contains(t, rendered, "<jobs@wcap.ca>")
		assert.Contains(t, rendered, "<a@wcap.ca>")
		assert.Contains(t, rendered, "<b@wcap.ca>")
		assert.Contains(t, rendered, "Subject: relay check")
		assert.Contains(t, rendered, "text/plain")
		assert.Contains(t, rendered, "produced water volumes attached")
	})

	t.Run("html body", func(t *testing.T) {
		msg, err := build(Message{
			From:    "jobs@wcap.ca",
			To:      []string{"a@wcap.ca"},
			Subject: "daily report",
			Body:    "<h1>volumes</h1>",
			HTML:    true,
		})
		require.NoError(t, err)

		var buf bytes.Buffer
		_, err = msg.WriteTo(&buf)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "text/html")
	})

	t.Run("attachment", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "report.csv")
		require.NoError(t, os.WriteFile(path, []byte("uwi,volume\n"), 0o644))

		msg, err := build(Message{
			From:        "jobs@wcap.ca",
			To:          []string{"a@wcap.ca"},
			Subject:     "daily report",
			Body:        "see attached",
			Attachments: []string{path},
		})
		require.NoError(t, err)

		var buf bytes.Buffer
		_, err = msg.WriteTo(&buf)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), `filename="report.csv"`)
	})

	t.Run("missing sender", func(t *testing.T) {
		_, err := build(Message{To: []string{"a@wcap.ca"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sender")
	})

	t.Run("missing recipients", func(t *testing.T) {
		_, err := build(Message{From: "jobs@wcap.ca"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "recipient")
	})

	t.Run("missing attachment", func(t *testing.T) {
		_, err := build(Message{
			From:        "jobs@wcap.ca",
			To:          []string{"a@wcap.ca"},
			Attachments: []string{filepath.Join(t.TempDir(), "absent.csv")},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "attachment")
	})
}
