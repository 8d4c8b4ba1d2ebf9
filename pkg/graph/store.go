package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"time"
)

// Record is the locally tracked half of a subscription: enough to
// renew or recreate it without asking Graph first.
type Record struct {
	ID              string
	Resource        string
	Class           string
	ChangeType      string
	NotificationURL string
	ClientState     string
	Expiration      time.Time
}

// Store keeps subscription records between runs. Get and Delete
// report ErrNotFound for unknown IDs.
type Store interface {
	List(ctx context.Context) ([]Record, error)
	Get(ctx context.Context, id string) (*Record, error)
	Put(ctx context.Context, rec Record) error
	Delete(ctx context.Context, id string) error
}

// fileRecord is the on-disk shape, kept compatible with the JSON
// files earlier job generations wrote.
type fileRecord struct {
	Class           string `json:"resource_type"`
	ChangeType      string `json:"change_type"`
	NotificationURL string `json:"notification_url"`
	Resource        string `json:"resource"`
	Expiration      string `json:"expiration_datetime"`
	ClientState     string `json:"clientState"`
}

// FileStore persists records as one JSON object keyed by subscription
// ID. A missing file reads as an empty store.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// List returns every record, ordered by ID.
func (s *FileStore) List(_ context.Context) ([]Record, error) {
	byID, err := s.load()
	if err != nil {
		return nil, err
	}

	recs := make([]Record, 0, len(byID))
	for id, fr := range byID {
		recs = append(recs, fr.record(id))
	}
	slices.SortFunc(recs, func(a, b Record) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return recs, nil
}

// Get returns one record by subscription ID.
func (s *FileStore) Get(_ context.Context, id string) (*Record, error) {
	byID, err := s.load()
	if err != nil {
		return nil, err
	}
	fr, ok := byID[id]
	if !ok {
		return nil, fmt.Errorf("subscription %s: %w", id, ErrNotFound)
	}
	rec := fr.record(id)
	return &rec, nil
}

// Put inserts or replaces a record.
func (s *FileStore) Put(_ context.Context, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record needs a subscription ID")
	}
	byID, err := s.load()
	if err != nil {
		return err
	}
	byID[rec.ID] = fileRecord{
		Class:           rec.Class,
		ChangeType:      rec.ChangeType,
		NotificationURL: rec.NotificationURL,
		Resource:        rec.Resource,
		Expiration:      FormatTime(rec.Expiration),
		ClientState:     rec.ClientState,
	}
	return s.save(byID)
}

// Delete removes a record.
func (s *FileStore) Delete(_ context.Context, id string) error {
	byID, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := byID[id]; !ok {
		return fmt.Errorf("subscription %s: %w", id, ErrNotFound)
	}
	delete(byID, id)
	return s.save(byID)
}

func (s *FileStore) load() (map[string]fileRecord, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]fileRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read subscription store: %w", err)
	}

	byID := map[string]fileRecord{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &byID); err != nil {
			return nil, fmt.Errorf("parse subscription store %s: %w", s.path, err)
		}
	}
	return byID, nil
}

func (s *FileStore) save(byID map[string]fileRecord) error {
	data, err := json.MarshalIndent(byID, "", "  ")
	if err != nil {
		return fmt.Errorf("encode subscription store: %w", err)
	}
	if err := os.WriteFile(s.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write subscription store: %w", err)
	}
	return nil
}

func (fr fileRecord) record(id string) Record {
	expiration, _ := time.Parse(time.RFC3339, fr.Expiration)
	return Record{
		ID:              id,
		Resource:        fr.Resource,
		Class:           fr.Class,
		ChangeType:      fr.ChangeType,
		NotificationURL: fr.NotificationURL,
		ClientState:     fr.ClientState,
		Expiration:      expiration,
	}
}
