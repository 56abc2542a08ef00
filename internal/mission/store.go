// Package mission keeps planned and simulated missions in memory with an
// optional JSON snapshot on disk.
package mission

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"uav_planner/internal/models"
)

// Store owns mission records. All methods are safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	missions map[string]models.Mission
	order    []string
	savePath string
}

func NewStore(savePath string) *Store {
	return &Store{
		missions: make(map[string]models.Mission),
		savePath: savePath,
	}
}

// NewMissionID mints an identifier in the mission_<uuid> form used by the API.
func NewMissionID() string {
	return "mission_" + uuid.NewString()
}

// Add inserts a mission, stamping CreatedAt and generating an ID when the
// caller left it empty. Insertion order is preserved for listing.
func (s *Store) Add(m models.Mission) models.Mission {
	if m.MissionID == "" {
		m.MissionID = NewMissionID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.missions[m.MissionID]; !exists {
		s.order = append(s.order, m.MissionID)
	}
	s.missions[m.MissionID] = m
	return m
}

func (s *Store) Get(id string) (models.Mission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.missions[id]
	return m, ok
}

// List returns summaries of all missions in insertion order.
func (s *Store) List() []models.MissionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.MissionSummary, 0, len(s.order))
	for _, id := range s.order {
		m := s.missions[id]
		out = append(out, models.MissionSummary{
			MissionID:         m.MissionID,
			CreatedAt:         m.CreatedAt,
			RiskScore:         m.RiskScore,
			TotalDistance:     m.TotalDistance,
			EstimatedDuration: m.EstimatedDuration,
		})
	}
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.missions)
}

// persisted is the on-disk shape; keeping it separate from Store makes the
// file format explicit.
type persisted struct {
	Order    []string                  `json:"order"`
	Missions map[string]models.Mission `json:"missions"`
}

// Save persists all missions to disk via a temp-file rename.
func (s *Store) Save(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if path == "" {
		path = s.savePath
	}
	data, err := json.MarshalIndent(persisted{Order: s.order, Missions: s.missions}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load replaces the store contents from disk if the file is present.
func (s *Store) Load(path string) error {
	if path == "" {
		path = s.savePath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parse mission save file: %w", err)
	}
	if p.Missions == nil {
		p.Missions = make(map[string]models.Mission)
	}
	// Old saves may miss order entries; rebuild from the mission map.
	order := make([]string, 0, len(p.Missions))
	seen := make(map[string]bool, len(p.Missions))
	for _, id := range p.Order {
		if _, ok := p.Missions[id]; ok && !seen[id] {
			order = append(order, id)
			seen[id] = true
		}
	}
	for id := range p.Missions {
		if !seen[id] {
			order = append(order, id)
		}
	}
	s.mu.Lock()
	s.missions = p.Missions
	s.order = order
	s.mu.Unlock()
	return nil
}
