package vault

import (
	"context"
	"fmt"
	"strings"
)

// Manager binds a client to one password list and answers
// username-keyed lookups against it.
type Manager struct {
	client *Client
	listID int
}

// NewManager returns a manager for the given password list.
func NewManager(client *Client, listID int) *Manager {
	return &Manager{client: client, listID: listID}
}

// ListID reports the password list this manager serves.
func (m *Manager) ListID() int { return m.listID }

// Credentials fetches the whole list keyed by lowercased username.
func (m *Manager) Credentials(ctx context.Context) (map[string]Credential, error) {
	creds, err := m.client.List(ctx, m.listID)
	if err != nil {
		return nil, err
	}
	byUser := make(map[string]Credential, len(creds))
	for _, c := range creds {
		byUser[strings.ToLower(c.UserName)] = c
	}
	return byUser, nil
}

// Credential looks up one username, case-insensitively.
func (m *Manager) Credential(ctx context.Context, username string) (*Credential, error) {
	byUser, err := m.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	c, ok := byUser[strings.ToLower(username)]
	if !ok {
		return nil, fmt.Errorf("no entry for %q in list %d: %w", username, m.listID, ErrMissingCredentials)
	}
	return &c, nil
}

// CredentialByID fetches one entry by its password ID.
func (m *Manager) CredentialByID(ctx context.Context, passwordID int) (*Credential, error) {
	return m.client.Get(ctx, passwordID)
}

// Update writes a modified credential back to the list.
func (m *Manager) Update(ctx context.Context, cred *Credential) error {
	return m.client.Update(ctx, m.listID, cred)
}

// FTPManager manages the FTP/SFTP password list.
type FTPManager struct {
	*Manager
}

// NewFTPManager returns a manager bound to the FTP list.
func NewFTPManager(client *Client) *FTPManager {
	return &FTPManager{Manager: NewManager(client, FTPPasswordListID)}
}

// FTPCredential describes a new FTP or SFTP login.
type FTPCredential struct {
	UserName string
	Password string
	Host     string
	Port     int
	Protocol string // "FTP" or "SFTP"
	Title    string // defaults to the upper-cased username
	Notes    string
}

// NewCredential publishes a new FTP login to the vault. Titles are
// stored upper-case and usernames lower-case, matching the list's
// conventions.
func (m *FTPManager) NewCredential(ctx context.Context, cred FTPCredential) error {
	title := cred.Title
	if title == "" {
		title = cred.UserName
	}
	fields := map[string]any{
		"PasswordListID": m.listID,
		"Title":          strings.ToUpper(title),
		"UserName":       strings.ToLower(cred.UserName),
		"Password":       cred.Password,
		"GenericField1":  cred.Host,
		"GenericField2":  cred.Port,
		"GenericField3":  cred.Protocol,
	}
	if cred.Notes != "" {
		fields["Notes"] = cred.Notes
	}
	return m.client.Create(ctx, fields)
}
