package storage

import (
	"encoding/json"
	"strings"
	"testing"

	"slate-api/domain"
)

func TestTaskEntityRoundTrip(t *testing.T) {
	task := domain.Task{
		ID:         "t1",
		Title:      "Write code",
		Notes:      "in go",
		CategoryID: "c1",
		ProjectID:  "p1",
		Position:   1500.5,
		Done:       true,
		UpdatedAt:  1234567890123456789,
	}

	ent := taskToEntity("user-1", task)
	if ent.PartitionKey != "user-1" || ent.RowKey != "t1" {
		t.Fatalf("unexpected keys: %q %q", ent.PartitionKey, ent.RowKey)
	}
	if ent.Kind != kindTask {
		t.Fatalf("unexpected kind %q", ent.Kind)
	}

	payload, err := json.Marshal(ent)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	// Int64 properties must travel as annotated strings to survive the
	// table service's JSON number range.
	if !strings.Contains(string(payload), `"UpdatedAt":"1234567890123456789"`) {
		t.Fatalf("expected string-encoded UpdatedAt, got %s", payload)
	}
	if !strings.Contains(string(payload), `"UpdatedAt@odata.type":"Edm.Int64"`) {
		t.Fatalf("expected odata type annotation, got %s", payload)
	}

	var decoded boardEntity
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := decoded.task(); got != task {
		t.Fatalf("round trip mismatch: expected %+v, got %+v", task, got)
	}
}

func TestCategoryEntityKeepsReorderCount(t *testing.T) {
	cat := domain.Category{ID: "c1", ProjectID: "p1", Title: "Todo", Position: 20, ReorderCount: 7, UpdatedAt: 42}

	ent := categoryToEntity("user-1", cat)
	payload, err := json.Marshal(ent)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded boardEntity
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := decoded.category(); got != cat {
		t.Fatalf("round trip mismatch: expected %+v, got %+v", cat, got)
	}
}

func TestBoardUpdateOmitsUnsetFields(t *testing.T) {
	pos := 2500.0
	payload, err := json.Marshal(boardUpdate{Position: &pos})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(payload)
	if strings.Contains(s, "Title") || strings.Contains(s, "Done") || strings.Contains(s, "ReorderCount") {
		t.Fatalf("partial update leaked unset fields: %s", s)
	}
	if !strings.Contains(s, `"Position":2500`) {
		t.Fatalf("expected position in payload, got %s", s)
	}
}

func TestProjectEntityRoundTrip(t *testing.T) {
	proj := domain.Project{ID: "p1", Title: "Personal", ReorderCount: 3, UpdatedAt: 99}

	payload, err := json.Marshal(projectToEntity("user-1", proj))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded boardEntity
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := decoded.project(); got != proj {
		t.Fatalf("round trip mismatch: expected %+v, got %+v", proj, got)
	}
}
