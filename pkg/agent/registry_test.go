package agent

import (
	"context"
	"fmt"
	"testing"
)

func noopTool(name string) *Tool {
	return &Tool{
		Name:        name,
		Description: "test tool",
		Handler: func(ctx context.Context, input map[string]interface{}) (*ToolResult, error) {
			return &ToolResult{Content: "ok from " + name}, nil
		},
	}
}

func TestRegister_Validation(t *testing.T) {
	registry := NewToolRegistry()

	if err := registry.Register(nil); err == nil {
		t.Error("expected error registering nil tool")
	}
	if err := registry.Register(&Tool{Handler: noopTool("x").Handler}); err == nil {
		t.Error("expected error registering unnamed tool")
	}
	if err := registry.Register(&Tool{Name: "no_handler"}); err == nil {
		t.Error("expected error registering tool without handler")
	}
	if err := registry.Register(noopTool("valid")); err != nil {
		t.Errorf("unexpected error registering valid tool: %v", err)
	}
}

func TestRegistry_PreservesOrder(t *testing.T) {
	registry := NewToolRegistry()
	names := []string{"charlie", "alpha", "bravo"}
	for _, name := range names {
		if err := registry.Register(noopTool(name)); err != nil {
			t.Fatalf("failed to register %s: %v", name, err)
		}
	}

	got := registry.Names()
	if len(got) != len(names) {
		t.Fatalf("expected %d names, got %d", len(names), len(got))
	}
	for i, name := range names {
		if got[i] != name {
			t.Errorf("position %d: expected %s, got %s", i, name, got[i])
		}
	}

	// Re-registering replaces the tool without changing its position.
	if err := registry.Register(noopTool("alpha")); err != nil {
		t.Fatalf("failed to re-register: %v", err)
	}
	if got := registry.Names(); len(got) != 3 || got[1] != "alpha" {
		t.Errorf("re-registration must keep the original position, got %v", got)
	}
}

func TestRegistry_Execute(t *testing.T) {
	registry := NewToolRegistry()
	if err := registry.Register(noopTool("greet")); err != nil {
		t.Fatalf("failed to register: %v", err)
	}

	result, err := registry.Execute(context.Background(), "greet", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != "ok from greet" {
		t.Errorf("unexpected result: %s", result.Content)
	}
}

func TestRegistry_ExecuteUnknownTool(t *testing.T) {
	registry := NewToolRegistry()

	result, err := registry.Execute(context.Background(), "missing", nil)
	if err == nil {
		t.Error("expected error for unknown tool")
	}
	if result == nil || !result.IsError {
		t.Error("expected an error result for unknown tool")
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewToolRegistry()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = registry.Register(noopTool(fmt.Sprintf("tool_%d", i%10)))
		}
	}()
	for i := 0; i < 100; i++ {
		registry.Names()
		registry.All()
	}
	<-done
}
