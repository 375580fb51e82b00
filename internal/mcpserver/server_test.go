package mcpserver_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"slices"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/useclearbound-netizen/clearbound-v2/internal/mcpserver"
	"github.com/useclearbound-netizen/clearbound-v2/internal/qc"
	"github.com/useclearbound-netizen/clearbound-v2/internal/scoring"
)

func connectInMemory(t *testing.T, ctx context.Context) *sdkmcp.ClientSession {
	t.Helper()
	srv, err := mcpserver.NewServer("test", scoring.Aggregate{}, qc.New(qc.PolicyRelaxed),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t1, t2 := sdkmcp.NewInMemoryTransports()
	if _, err := srv.MCPServer.Connect(ctx, t1, nil); err != nil {
		t.Fatalf("server.Connect: %v", err)
	}
	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func callTool(t *testing.T, ctx context.Context, session *sdkmcp.ClientSession, name string, args map[string]any) map[string]any {
	t.Helper()
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if res.IsError {
		for _, c := range res.Content {
			if tc, ok := c.(*sdkmcp.TextContent); ok {
				t.Fatalf("CallTool(%s) returned error: %s", name, tc.Text)
			}
		}
		t.Fatalf("CallTool(%s) returned error", name)
	}
	result := make(map[string]any)
	for _, c := range res.Content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			if err := json.Unmarshal([]byte(tc.Text), &result); err != nil {
				t.Fatalf("unmarshal tool result: %v (text: %s)", err, tc.Text)
			}
			return result
		}
	}
	t.Fatalf("no text content in tool result")
	return nil
}

func expectToolError(t *testing.T, ctx context.Context, session *sdkmcp.ClientSession, name string, args map[string]any) {
	t.Helper()
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return
	}
	if !res.IsError {
		t.Fatalf("CallTool(%s): expected error but got success", name)
	}
}

func stringsOf(v any) []string {
	var out []string
	for _, x := range v.([]any) {
		out = append(out, x.(string))
	}
	return out
}

func TestComputeParameters_ReportsMissing(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx)

	got := callTool(t, ctx, session, "compute_parameters", map[string]any{
		"state": map[string]any{"paywall": map[string]any{"package": "message"}},
	})
	if got["model"] != "aggregate" {
		t.Errorf("model = %v", got["model"])
	}
	missing := stringsOf(got["missing"])
	if slices.Contains(missing, "MISSING_PACKAGE") || !slices.Contains(missing, "MISSING_RECIPIENT_TYPE") {
		t.Errorf("missing = %v", missing)
	}
	if got["overall_tier"] == "" {
		t.Error("overall tier should always be set")
	}
}

func TestComputeParameters_UnwrapsState(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx)

	flat := map[string]any{
		"paywall": map[string]any{"package": "message"},
		"target":  map[string]any{"recipient_type": "peer"},
	}
	encoded, _ := json.Marshal(flat)

	tests := []struct {
		name  string
		state map[string]any
	}{
		{"flat", flat},
		{"wrapped", map[string]any{"state": flat}},
		{"wrapped string", map[string]any{"state": string(encoded)}},
		{"two wrappers", map[string]any{"payload": map[string]any{"state": flat}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := callTool(t, ctx, session, "compute_parameters", map[string]any{"state": tt.state})
			missing := stringsOf(got["missing"])
			if slices.Contains(missing, "MISSING_PACKAGE") || slices.Contains(missing, "MISSING_RECIPIENT_TYPE") {
				t.Errorf("missing = %v", missing)
			}
		})
	}
}

func TestComputeParameters_ModelOverride(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx)

	got := callTool(t, ctx, session, "compute_parameters", map[string]any{
		"state": map[string]any{}, "model": "strategy_map",
	})
	if got["model"] != "strategy_map" {
		t.Errorf("model = %v", got["model"])
	}

	expectToolError(t, ctx, session, "compute_parameters", map[string]any{"state": map[string]any{}, "model": "astrology"})
}

func TestStrategyMap_Extreme(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx)

	got := callTool(t, ctx, session, "strategy_map", map[string]any{
		"situation": map[string]any{
			"emotional_volatility": "high",
			"continuity":           "high",
			"prior_conflict":       true,
			"urgency_level":        "high",
			"power_asymmetry":      true,
			"relationship_axis":    "professional",
		},
	})
	if got["overall_tier"] != "extreme" || got["version"] != scoring.StrategyMapVersion {
		t.Errorf("got %v", got)
	}
}

func TestValidateOutput(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx)

	got := callTool(t, ctx, session, "validate_output", map[string]any{
		"package":   "message",
		"candidate": map[string]any{"message_text": "One thing first. Please clarify the priority.\n\nThat is all for now."},
		"tone":      "calm",
		"detail":    "standard",
	})
	if got["ok"] != false {
		t.Errorf("ok = %v", got["ok"])
	}
	if !slices.Contains(stringsOf(got["issues"]), "message_paragraphs_must_be_3") {
		t.Errorf("issues = %v", got["issues"])
	}

	expectToolError(t, ctx, session, "validate_output", map[string]any{"package": "message"})
}

func TestRunSimulation(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx)

	got := callTool(t, ctx, session, "run_simulation", map[string]any{})
	if got["count"] != float64(10) || got["extreme_count"] != float64(2) {
		t.Errorf("got %v", got)
	}
	if _, ok := got["results"]; ok {
		t.Error("compact run should not include results")
	}

	full := callTool(t, ctx, session, "run_simulation", map[string]any{"full": true})
	if n := len(full["results"].([]any)); n != 10 {
		t.Errorf("results = %d, want 10", n)
	}
}
