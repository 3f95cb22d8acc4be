package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	v1 "github.com/f9-o/launchpad/api/v1"
)

type memStore struct {
	runs    []v1.RunRecord
	deleted []string
	err     error
}

func (s *memStore) ListRuns(string) ([]v1.RunRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]v1.RunRecord(nil), s.runs...), nil
}

func (s *memStore) DeleteRun(id string) error {
	s.deleted = append(s.deleted, id)
	kept := s.runs[:0]
	for _, r := range s.runs {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	s.runs = kept
	return nil
}

func sampleRuns() []v1.RunRecord {
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []v1.RunRecord{
		{
			ID: "run-1", Target: "/srv/blog", Project: "blog", App: "posts",
			Stage: v1.StageDone, Started: started, Commit: "abc123",
			Stages: []v1.StageResult{
				{Stage: v1.StageCollect, Status: v1.StageOK, Detail: "blog/posts"},
				{Stage: v1.StageEmitArtifacts, Status: v1.StageSkipped, Detail: "deployment artifacts not requested"},
			},
		},
		{
			ID: "run-2", Target: "/srv/shop", Project: "shop", App: "cart",
			Stage: v1.StageFailed, Started: started.Add(-time.Hour),
			Stages: []v1.StageResult{
				{Stage: v1.StageInstallDeps, Status: v1.StageError, Err: "pip exited with status 1"},
			},
		},
	}
}

// load runs Init's command and feeds the result back into the model.
func load(t *testing.T, m *Model) {
	t.Helper()
	cmd := m.Init()
	if cmd == nil {
		t.Fatal("Init returned no command")
	}
	m.Update(cmd())
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModelListsRuns(t *testing.T) {
	m := New(Config{Store: &memStore{runs: sampleRuns()}})
	load(t, m)

	if len(m.runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(m.runs))
	}
	view := m.View()
	for _, want := range []string{"2 runs", "blog", "shop", "success", "failure"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModelEmptyHistory(t *testing.T) {
	m := New(Config{Store: &memStore{}})
	load(t, m)
	if !strings.Contains(m.View(), "No runs recorded yet") {
		t.Error("empty history should show a hint")
	}
	m.Update(keyMsg("enter"))
	if m.showDetail {
		t.Error("enter with no runs should not open the detail view")
	}
}

func TestModelOpensStageDetail(t *testing.T) {
	m := New(Config{Store: &memStore{runs: sampleRuns()}})
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	load(t, m)

	m.Update(keyMsg("enter"))
	if !m.showDetail {
		t.Fatal("enter should open the detail view")
	}
	view := m.View()
	for _, want := range []string{"run-1", "abc123", string(v1.StageCollect), "deployment artifacts not requested"} {
		if !strings.Contains(view, want) {
			t.Errorf("detail view missing %q", want)
		}
	}

	m.Update(keyMsg("esc"))
	if m.showDetail {
		t.Error("esc should return to the run list")
	}
}

func TestModelDeleteSelected(t *testing.T) {
	store := &memStore{runs: sampleRuns()}
	m := New(Config{Store: store})
	load(t, m)

	_, cmd := m.Update(keyMsg("d"))
	if cmd == nil {
		t.Fatal("delete should return a command")
	}
	m.Update(cmd())

	if len(store.deleted) != 1 || store.deleted[0] != "run-1" {
		t.Errorf("deleted = %v, want [run-1]", store.deleted)
	}
	if len(m.runs) != 1 || m.runs[0].ID != "run-2" {
		t.Errorf("runs after delete = %+v", m.runs)
	}
}

func TestModelShowsLoadError(t *testing.T) {
	m := New(Config{Store: &memStore{err: errors.New("database locked")}})
	load(t, m)
	if !strings.Contains(m.View(), "database locked") {
		t.Error("load error should appear in the footer")
	}
}

func TestModelRefreshClearsError(t *testing.T) {
	store := &memStore{err: errors.New("database locked")}
	m := New(Config{Store: store})
	load(t, m)

	store.err = nil
	store.runs = sampleRuns()
	_, cmd := m.Update(keyMsg("r"))
	if cmd == nil {
		t.Fatal("r should reload the runs")
	}
	m.Update(cmd())
	if view := m.View(); strings.Contains(view, "database locked") {
		t.Errorf("stale error after a successful reload:\n%s", view)
	}
	if len(m.runs) != len(sampleRuns()) {
		t.Errorf("runs = %d", len(m.runs))
	}
}

func TestModelQuit(t *testing.T) {
	m := New(Config{Store: &memStore{}})
	_, cmd := m.Update(keyMsg("q"))
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should produce tea.QuitMsg")
	}
}
