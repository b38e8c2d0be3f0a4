package checkpoint

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestManager_LoadMissing(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "checkpoint.json"), 10, nil)
	if st := m.Load(); st != nil {
		t.Errorf("Load() = %+v, want nil", st)
	}
}

func TestManager_LoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	buf := &bytes.Buffer{}
	m := New(path, 10, slog.New(slog.NewTextHandler(buf, nil)))
	if st := m.Load(); st != nil {
		t.Errorf("Load() = %+v, want nil", st)
	}
	if !strings.Contains(buf.String(), "malformed") {
		t.Errorf("expected a malformed warning, got %q", buf.String())
	}
}

func TestManager_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "checkpoint.json")
	m := New(path, 10, nil)
	fixed := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	in := State{
		CurrentCity:    "Noida",
		CurrentPage:    14,
		FinishedCities: []string{"Gurgaon"},
		TotalScraped:   420,
		Site:           "magicbricks",
	}
	if err := m.Save(in); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got := m.Load()
	if got == nil {
		t.Fatal("Load() = nil after Save()")
	}
	if got.CurrentCity != "Noida" || got.CurrentPage != 14 || got.TotalScraped != 420 {
		t.Errorf("Load() = %+v", got)
	}
	if !got.IsFinished("Gurgaon") || got.IsFinished("Noida") {
		t.Errorf("FinishedCities = %v", got.FinishedCities)
	}
	if !got.Timestamp.Equal(fixed) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, fixed)
	}
}

func TestManager_SaveWritesRequiredKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	m := New(path, 10, nil)
	if err := m.Save(State{CurrentCity: "Noida", CurrentPage: 2}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("checkpoint is not JSON: %v", err)
	}
	for _, key := range []string{"current_city", "current_page", "finished_cities", "total_scraped", "timestamp"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("checkpoint missing key %q", key)
		}
	}
	if list, ok := raw["finished_cities"].([]any); !ok || len(list) != 0 {
		t.Errorf("finished_cities = %v, want empty list", raw["finished_cities"])
	}
}

func TestManager_Tick(t *testing.T) {
	m := New("unused", 3, nil)
	var due []bool
	for i := 0; i < 6; i++ {
		due = append(due, m.Tick())
	}
	want := []bool{false, false, true, false, false, true}
	for i := range want {
		if due[i] != want[i] {
			t.Errorf("Tick() #%d = %v, want %v", i+1, due[i], want[i])
		}
	}
}

func TestState_MarkFinished(t *testing.T) {
	var st State
	st.MarkFinished("Noida")
	st.MarkFinished("Noida")
	if len(st.FinishedCities) != 1 {
		t.Errorf("FinishedCities = %v, want one entry", st.FinishedCities)
	}
}

func TestState_IsFinishedIgnoresCase(t *testing.T) {
	st := State{FinishedCities: []string{"gurgaon"}}
	if !st.IsFinished("Gurgaon") {
		t.Error("IsFinished(Gurgaon) = false for finished city \"gurgaon\"")
	}
	if st.IsFinished("Noida") {
		t.Error("IsFinished(Noida) = true")
	}
	st.MarkFinished("GURGAON")
	if len(st.FinishedCities) != 1 {
		t.Errorf("FinishedCities = %v, want one entry", st.FinishedCities)
	}

	var nilState *State
	if nilState.IsFinished("Noida") {
		t.Error("nil state reports a finished city")
	}
}
