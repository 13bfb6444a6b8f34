package domain

import (
	"strings"
	"testing"

	"github.com/bytedance/sonic"
)

func TestTaskMarshalIncludesZeroPosition(t *testing.T) {
	task := Task{ID: "t1", Title: "Title", CategoryID: "c1", Position: 0}

	payload, err := sonic.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}

	if !strings.Contains(string(payload), "\"position\":0") {
		t.Fatalf("expected position field to be present, got %s", payload)
	}
}

func TestCategoryMarshalOmitsReorderCount(t *testing.T) {
	cat := Category{ID: "c1", ProjectID: "p1", Title: "Todo", Position: 10, ReorderCount: 7}

	payload, err := sonic.Marshal(cat)
	if err != nil {
		t.Fatalf("marshal category: %v", err)
	}

	if strings.Contains(string(payload), "ReorderCount") || strings.Contains(string(payload), "reorderCount") {
		t.Fatalf("reorder counter must not leak to clients, got %s", payload)
	}
}
