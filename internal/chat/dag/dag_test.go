package dag

import (
	"context"
	"errors"
	"testing"
)

func TestGraphRunThreadsResults(t *testing.T) {
	g, err := New([]Node{
		{Name: "a", Run: func(ctx context.Context, c *Context) (any, error) { return 1, nil }},
		{Name: "b", Depends: []string{"a"}, Run: func(ctx context.Context, c *Context) (any, error) {
			return c.Results["a"].(int) + 1, nil
		}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	c := &Context{SessionID: "s1", Query: "q"}
	if err := g.Run(context.Background(), c); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if c.Results["b"] != 2 {
		t.Fatalf("expected b=2, got %v", c.Results["b"])
	}
}

func TestNewRejectsUnknownDependency(t *testing.T) {
	_, err := New([]Node{
		{Name: "a", Depends: []string{"missing"}, Run: func(context.Context, *Context) (any, error) { return nil, nil }},
	})
	if err == nil {
		t.Fatal("expected error for unknown dependency")
	}
}

func TestRunAbortsOnNodeError(t *testing.T) {
	g, err := New([]Node{
		{Name: "a", Run: func(context.Context, *Context) (any, error) { return nil, errors.New("boom") }},
		{Name: "b", Depends: []string{"a"}, Run: func(context.Context, *Context) (any, error) { return "never", nil }},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c := &Context{}
	if err := g.Run(context.Background(), c); err == nil {
		t.Fatal("expected error from failing node")
	}
	if _, ok := c.Results["b"]; ok {
		t.Fatal("expected node b to not run after a failed")
	}
}

func TestBuildChatGraphClassifiesAndAnswers(t *testing.T) {
	g, err := BuildChatGraph()
	if err != nil {
		t.Fatalf("BuildChatGraph: %v", err)
	}
	reply, err := RunChat(context.Background(), g, "sess-1", "what's my portfolio?")
	if err != nil {
		t.Fatalf("RunChat: %v", err)
	}
	if reply.Status != "ok" {
		t.Fatalf("expected ok status, got %s", reply.Status)
	}
	if reply.Answer == "" {
		t.Fatal("expected non-empty answer")
	}
}
