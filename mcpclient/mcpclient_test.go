package mcpclient

import (
	"context"
	"strings"
	"testing"
)

func TestConnectAllEmptyConfigsIsNoOp(t *testing.T) {
	m := NewManager()
	tools, warnings, err := m.ConnectAll(context.Background(), nil)
	if tools != nil || warnings != nil || err != nil {
		t.Fatalf("got (%v, %v, %v), want all nil", tools, warnings, err)
	}
}

func TestConnectAllFailsWhenEveryServerFails(t *testing.T) {
	m := NewManager()
	configs := []ServerConfig{
		{Name: "bad-one", Command: ""},
		{Name: "bad-two", Command: "this-binary-does-not-exist-anywhere"},
	}
	tools, warnings, err := m.ConnectAll(context.Background(), configs)
	if err == nil {
		t.Fatal("expected an error when every configured server fails")
	}
	if tools != nil {
		t.Fatalf("expected no tools on total failure, got %v", tools)
	}
	if len(warnings) != 2 {
		t.Fatalf("expected a warning per failed server, got %v", warnings)
	}
	if !strings.Contains(err.Error(), "bad-one") {
		t.Fatalf("expected the error to mention the failing server name, got %v", err)
	}
}

func TestCloseAllOnEmptyManagerIsSafe(t *testing.T) {
	m := NewManager()
	m.CloseAll() // must not panic with no connections
}
