package vault

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wcap/wcplib/internal/testutil"
)

const testList = 208

func listPayload() []map[string]any {
	return []map[string]any{
		{
			"PasswordID": 101,
			"Title":      "WAREHOUSE",
			"UserName":   "LoadUser",
			"Password":   "hunter2",
			"OTP":        "",
			"GenericFieldInfo": []map[string]string{
				{"GenericFieldID": "GenericField1", "DisplayName": "Host", "Value": "db.wcap.ca"},
				{"GenericFieldID": "GenericField2", "DisplayName": "Port", "Value": "1521"},
				{"GenericFieldID": "GenericField3", "DisplayName": "Username", "Value": "LOADUSER"},
			},
		},
		{
			"PasswordID": 102,
			"Title":      "SFTP DROP",
			"UserName":   "dropbox",
			"Password":   "s3cret",
			"OTP":        "998877",
			"URL":        "sftp://drop.wcap.ca",
			"GenericFieldInfo": []map[string]string{
				{"GenericFieldID": "GenericField1", "DisplayName": "Host", "Value": "drop.wcap.ca"},
			},
		},
	}
}

// newTestClient stands up a vault API stub and a client aimed at it.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key",
		WithBaseURL(srv.URL),
		WithLogger(testutil.NewTestLogger(t)),
	)
}

func TestClientList(t *testing.T) {
	var gotHeader string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("APIKey")
		assert.Equal(t, "/208", r.URL.Path)
		assert.Equal(t, "QueryAll", r.URL.RawQuery)
		require.NoError(t, json.NewEncoder(w).Encode(listPayload()))
	}))

	creds, err := client.List(context.Background(), testList)
	require.NoError(t, err)
	assert.Equal(t, "test-key", gotHeader)
	require.Len(t, creds, 2)

	first := creds[0]
	assert.Equal(t, 101, first.PasswordID)
	assert.Equal(t, "LoadUser", first.UserName)
	assert.Equal(t, "db.wcap.ca", first.Fields["Host"])
	assert.Equal(t, "1521", first.Fields["Port"])
	// Generic fields displayed as "username" come back lowercased.
	assert.Equal(t, "loaduser", first.Fields["Username"])

	second := creds[1]
	assert.Equal(t, "998877", second.OTP)
	assert.Equal(t, "sftp://drop.wcap.ca", second.URL)
}

func TestClientListEmpty(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[]"))
	}))

	_, err := client.List(context.Background(), testList)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestClientListServerError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))

	_, err := client.List(context.Background(), testList)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissingCredentials)
	assert.Contains(t, err.Error(), "403")
}

func TestClientGet(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/101", r.URL.Path)
		require.NoError(t, json.NewEncoder(w).Encode(listPayload()[:1]))
	}))

	cred, err := client.Get(context.Background(), 101)
	require.NoError(t, err)
	assert.Equal(t, "LoadUser", cred.UserName)
	assert.Equal(t, "hunter2", cred.Password)
}

func TestClientGetUnnamedFields(t *testing.T) {
	// Lists without configured display names surface fields under
	// their GenericFieldN slots instead of colliding on "".
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode([]map[string]any{{
			"PasswordID": 103,
			"Title":      "PG WAREHOUSE",
			"UserName":   "pg_load",
			"Password":   "s3cret",
			"GenericFieldInfo": []map[string]string{
				{"GenericFieldID": "GenericField1", "DisplayName": "", "Value": "host-a"},
				{"GenericFieldID": "GenericField2", "DisplayName": "", "Value": "5432"},
			},
		}}))
	}))

	cred, err := client.Get(context.Background(), 103)
	require.NoError(t, err)
	require.Len(t, cred.Fields, 2)
	assert.Equal(t, "host-a", cred.Field("GenericField1"))
	assert.Equal(t, "5432", cred.Field("GenericField2"))
}

func TestClientGetMissing(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[]"))
	}))

	_, err := client.Get(context.Background(), 999)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestClientUpdateTranslatesFieldSlots(t *testing.T) {
	var putBody map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			require.NoError(t, json.NewEncoder(w).Encode(listPayload()))
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&putBody))
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	}))

	cred := &Credential{
		PasswordID: 101,
		UserName:   "LoadUser",
		Password:   "new-password",
		OTP:        "123456",
		Fields: map[string]string{
			"Host": "db2.wcap.ca",
			"Port": "1522",
		},
	}
	require.NoError(t, client.Update(context.Background(), testList, cred))

	assert.Equal(t, float64(101), putBody["PasswordID"])
	assert.Equal(t, "new-password", putBody["Password"])
	assert.Equal(t, "db2.wcap.ca", putBody["GenericField1"])
	assert.Equal(t, "1522", putBody["GenericField2"])
	// One-time passwords must never be written back.
	_, hasOTP := putBody["OTP"]
	assert.False(t, hasOTP)
}

func TestClientUpdateUnknownUser(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(listPayload()))
	}))

	err := client.Update(context.Background(), testList, &Credential{UserName: "nobody"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestManagerCredential(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(listPayload()))
	}))
	mgr := NewManager(client, testList)

	tests := []struct {
		name     string
		username string
		wantID   int
		wantErr  bool
	}{
		{name: "exact case", username: "dropbox", wantID: 102},
		{name: "mixed case", username: "LOADUSER", wantID: 101},
		{name: "unknown user", username: "ghost", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := mgr.Credential(context.Background(), tt.username)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMissingCredentials)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, cred.PasswordID)
		})
	}
}

func TestFTPManagerNewCredential(t *testing.T) {
	var posted map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
		w.WriteHeader(http.StatusCreated)
	}))
	mgr := NewFTPManager(client)

	err := mgr.NewCredential(context.Background(), FTPCredential{
		UserName: "DropBox",
		Password: "s3cret",
		Host:     "drop.wcap.ca",
		Port:     22,
		Protocol: "SFTP",
	})
	require.NoError(t, err)

	assert.Equal(t, float64(FTPPasswordListID), posted["PasswordListID"])
	assert.Equal(t, "DROPBOX", posted["Title"])
	assert.Equal(t, "dropbox", posted["UserName"])
	assert.Equal(t, "drop.wcap.ca", posted["GenericField1"])
	assert.Equal(t, float64(22), posted["GenericField2"])
	assert.Equal(t, "SFTP", posted["GenericField3"])
}

func TestFTPManagerNewCredentialRejected(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "duplicate", http.StatusConflict)
	}))
	mgr := NewFTPManager(client)

	err := mgr.NewCredential(context.Background(), FTPCredential{UserName: "dup"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
}

func TestCredentialField(t *testing.T) {
	c := &Credential{Fields: map[string]string{"Host": "db.wcap.ca"}}
	assert.Equal(t, "db.wcap.ca", c.Field("Host"))
	assert.Equal(t, "db.wcap.ca", c.Field("host"))
	assert.Empty(t, c.Field("Service"))
}
