// Package vault reads and writes credentials held in the corporate
// Passwordstate vault.
//
// Entries live in password lists. Each entry carries the standard
// title/username/password columns plus up to ten generic fields whose
// display names are configured per list; the package flattens those
// into a name-keyed map so callers address fields as "Host" or "Port"
// rather than by slot number.
package vault

import (
	"errors"
	"strings"
	"time"
)

// DefaultBaseURL is the passwords endpoint of the corporate vault.
const DefaultBaseURL = "https://vault.wcap.ca/api/passwords"

// FTPPasswordListID is the vault list holding FTP and SFTP logins.
const FTPPasswordListID = 208

const (
	defaultReason  = "Automated script access"
	requestTimeout = 30 * time.Second
)

// ErrMissingCredentials reports that a lookup matched nothing: an
// empty list, an unknown username, or an unknown password ID.
var ErrMissingCredentials = errors.New("credentials not found")

// Credential is one password-list entry with its generic fields
// flattened by display name.
type Credential struct {
	PasswordID int
	Title      string
	UserName   string
	Password   string
	URL        string
	OTP        string
	Fields     map[string]string
}

// Field returns a generic field by display name, case-insensitively.
func (c *Credential) Field(name string) string {
	if v, ok := c.Fields[name]; ok {
		return v
	}
	for k, v := range c.Fields {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// entry mirrors the vault's wire format.
type entry struct {
	PasswordID       int            `json:"PasswordID"`
	Title            string         `json:"Title"`
	UserName         string         `json:"UserName"`
	Password         string         `json:"Password"`
	URL              string         `json:"URL,omitempty"`
	OTP              string         `json:"OTP,omitempty"`
	GenericFieldInfo []genericField `json:"GenericFieldInfo,omitempty"`
}

type genericField struct {
	GenericFieldID string `json:"GenericFieldID"`
	DisplayName    string `json:"DisplayName"`
	Value          string `json:"Value"`
}

// credential flattens a wire entry. Values of fields displayed as
// "username" are lowercased, matching how lookups are keyed.
func (e *entry) credential() Credential {
	c := Credential{
		PasswordID: e.PasswordID,
		Title:      e.Title,
		UserName:   e.UserName,
		Password:   e.Password,
		URL:        e.URL,
		OTP:        e.OTP,
		Fields:     make(map[string]string, len(e.GenericFieldInfo)),
	}
	for _, f := range e.GenericFieldInfo {
		v := f.Value
		if strings.EqualFold(f.DisplayName, "username") {
			v = strings.ToLower(v)
		}
		c.Fields[f.key()] = v
	}
	return c
}

// fieldSlots maps display names back to their GenericFieldN slots.
func (e *entry) fieldSlots() map[string]string {
	slots := make(map[string]string, len(e.GenericFieldInfo))
	for _, f := range e.GenericFieldInfo {
		slots[f.key()] = f.GenericFieldID
	}
	return slots
}

// key is the map key a generic field is surfaced under: the list's
// configured display name, or the GenericFieldN slot when the list
// leaves the name blank.
func (f *genericField) key() string {
	if f.DisplayName != "" {
		return f.DisplayName
	}
	return f.GenericFieldID
}
