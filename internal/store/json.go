package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/mrcode/glucose-spikes/internal/models"
)

// document is the on-disk layout of the meals file
type document struct {
	Meals    []mealRecord   `json:"meals"`
	Groups   []groupRecord  `json:"groups"`
	Bypasses []bypassRecord `json:"bypassed_spikes"`
}

type mealRecord struct {
	ID          string  `json:"id,omitempty"`
	Timestamp   string  `json:"timestamp"`
	GL          float64 `json:"gl"`
	Description string  `json:"description,omitempty"`
}

type groupRecord struct {
	Start       string  `json:"start"`
	End         *string `json:"end"`
	Description string  `json:"description"`
}

type bypassRecord struct {
	ID        string `json:"id,omitempty"`
	Timestamp string `json:"timestamp"`
	Reason    string `json:"reason"`
}

// JSONStore keeps the snapshot in a single JSON file
type JSONStore struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewJSON creates a store backed by the file at path
func NewJSON(path string, logger *slog.Logger) *JSONStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &JSONStore{
		path:   path,
		logger: logger.With("component", "store", "backend", "json"),
	}
}

// Path returns the backing file
func (s *JSONStore) Path() string {
	return s.path
}

// Load reads the snapshot. A missing file is an empty snapshot.
func (s *JSONStore) Load(ctx context.Context) (models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.logger.DebugContext(ctx, "no meals file yet", "path", s.path)
		return models.Snapshot{}, nil
	}
	if err != nil {
		return models.Snapshot{}, err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.Snapshot{}, fmt.Errorf("parsing %s: %w", filepath.Base(s.path), err)
	}

	snap, err := doc.snapshot()
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("reading %s: %w", filepath.Base(s.path), err)
	}
	return snap, nil
}

// Save replaces the file contents with snap
func (s *JSONStore) Save(ctx context.Context, snap models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(newDocument(snap), "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "saved snapshot",
		"meals", len(snap.Meals),
		"groups", len(snap.Groups),
		"bypasses", len(snap.Bypasses))
	return nil
}

// Close is a no-op for the file store
func (s *JSONStore) Close() error {
	return nil
}

func newDocument(snap models.Snapshot) document {
	doc := document{
		Meals:    make([]mealRecord, len(snap.Meals)),
		Groups:   make([]groupRecord, len(snap.Groups)),
		Bypasses: make([]bypassRecord, len(snap.Bypasses)),
	}
	for i, m := range snap.Meals {
		doc.Meals[i] = mealRecord{
			ID:          m.ID,
			Timestamp:   models.FormatTimestamp(m.Time),
			GL:          m.GlycemicLoad,
			Description: m.Note,
		}
	}
	for i, g := range snap.Groups {
		rec := groupRecord{Start: models.FormatTimestamp(g.Start), Description: g.Description}
		if g.End != nil {
			end := models.FormatTimestamp(*g.End)
			rec.End = &end
		}
		doc.Groups[i] = rec
	}
	for i, b := range snap.Bypasses {
		doc.Bypasses[i] = bypassRecord{ID: b.ID, Timestamp: models.FormatTimestamp(b.Time), Reason: b.Reason}
	}
	return doc
}

func (d document) snapshot() (models.Snapshot, error) {
	snap := models.Snapshot{
		Meals:    make([]models.Meal, 0, len(d.Meals)),
		Groups:   make([]models.Group, 0, len(d.Groups)),
		Bypasses: make([]models.Bypass, 0, len(d.Bypasses)),
	}

	for i, rec := range d.Meals {
		at, err := models.ParseTimestamp(rec.Timestamp)
		if err != nil {
			return models.Snapshot{}, fmt.Errorf("meal %d: %w", i+1, err)
		}
		id := rec.ID
		if id == "" {
			id = legacyID("meal", i, rec.Timestamp)
		}
		snap.Meals = append(snap.Meals, models.Meal{ID: id, Time: at, GlycemicLoad: rec.GL, Note: rec.Description})
	}

	for i, rec := range d.Groups {
		start, err := models.ParseTimestamp(rec.Start)
		if err != nil {
			return models.Snapshot{}, fmt.Errorf("group %d: %w", i+1, err)
		}
		g := models.Group{Start: start, Description: rec.Description}
		if rec.End != nil {
			end, err := models.ParseTimestamp(*rec.End)
			if err != nil {
				return models.Snapshot{}, fmt.Errorf("group %d: %w", i+1, err)
			}
			g.End = &end
		}
		snap.Groups = append(snap.Groups, g)
	}

	for i, rec := range d.Bypasses {
		at, err := models.ParseTimestamp(rec.Timestamp)
		if err != nil {
			return models.Snapshot{}, fmt.Errorf("bypass %d: %w", i+1, err)
		}
		id := rec.ID
		if id == "" {
			id = legacyID("bypass", i, rec.Timestamp)
		}
		snap.Bypasses = append(snap.Bypasses, models.Bypass{ID: id, Time: at, Reason: rec.Reason})
	}
	return snap, nil
}

// legacyID derives a stable ID for records written without one
func legacyID(kind string, idx int, timestamp string) string {
	name := kind + ":" + strconv.Itoa(idx) + ":" + timestamp
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}
