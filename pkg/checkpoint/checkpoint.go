// Package checkpoint persists the crawl cursor so an interrupted crawl can resume.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// DefaultEvery is the default page cadence between periodic saves.
const DefaultEvery = 10

// State is the resumption cursor. It is overwritten in place on every save.
type State struct {
	CurrentCity    string    `json:"current_city"`
	CurrentPage    int       `json:"current_page"`
	FinishedCities []string  `json:"finished_cities"`
	TotalScraped   int       `json:"total_scraped"`
	Timestamp      time.Time `json:"timestamp"`
	Site           string    `json:"site,omitempty"`
	RunID          string    `json:"run_id,omitempty"`
}

// IsFinished reports whether city was completed. City names compare
// case-insensitively.
func (s *State) IsFinished(city string) bool {
	return s != nil && slices.ContainsFunc(s.FinishedCities, func(c string) bool {
		return strings.EqualFold(c, city)
	})
}

// MarkFinished records city as completed.
func (s *State) MarkFinished(city string) {
	if !s.IsFinished(city) {
		s.FinishedCities = append(s.FinishedCities, city)
	}
}

// Manager reads and writes the checkpoint file and tracks the save cadence.
type Manager struct {
	path   string
	every  int
	pages  int
	logger *slog.Logger
	now    func() time.Time
}

// New creates a manager for the checkpoint at path, saving every N pages.
func New(path string, every int, logger *slog.Logger) *Manager {
	if every <= 0 {
		every = DefaultEvery
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		path:   path,
		every:  every,
		logger: logger,
		now:    time.Now,
	}
}

// Path returns the checkpoint file path.
func (m *Manager) Path() string {
	return m.path
}

// Load reads the checkpoint. It returns nil when the file is missing; a
// malformed or unreadable file is logged and also treated as missing.
func (m *Manager) Load() *State {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			m.logger.Warn("checkpoint unreadable, starting fresh", "path", m.path, "error", err)
		}
		return nil
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		m.logger.Warn("checkpoint malformed, starting fresh", "path", m.path, "error", err)
		return nil
	}
	if st.CurrentPage < 1 {
		st.CurrentPage = 1
	}
	m.logger.Info("checkpoint loaded",
		"city", st.CurrentCity,
		"page", st.CurrentPage,
		"finished", len(st.FinishedCities),
		"total", st.TotalScraped)
	return &st
}

// Tick counts one processed page and reports whether a periodic save is due.
func (m *Manager) Tick() bool {
	m.pages++
	return m.pages%m.every == 0
}

// Save writes st, stamping it with the current time. The file is replaced
// atomically so a crash mid-write leaves the previous checkpoint intact.
func (m *Manager) Save(st State) error {
	st.Timestamp = m.now().UTC()
	if st.FinishedCities == nil {
		st.FinishedCities = []string{}
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		return fmt.Errorf("replace checkpoint: %w", err)
	}

	m.logger.Debug("checkpoint saved", "city", st.CurrentCity, "page", st.CurrentPage, "total", st.TotalScraped)
	return nil
}
