package mcpserver

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/ansuz/internal/document"
	"github.com/starford/ansuz/internal/limits"
	"github.com/starford/ansuz/internal/noteservice"
	"github.com/starford/ansuz/internal/pipeline"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/testutil"
)

func testServer(t *testing.T, fake *testutil.FakeBackend) (*Server, storage.Provider) {
	t.Helper()
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	est := limits.NewEstimator(limits.NewRegistry(nil), 0, nil)
	svc := noteservice.NewService(store, db, fake, est, pipeline.Config{}, nil, nil)
	return New(svc), store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go doesn't expose a direct "call tool" test helper, so we call the
	// handler functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "format_transcript":
		result, err = srv.formatTranscript(ctx, req)
	case "create_video_note":
		result, err = srv.createVideoNote(ctx, req)
	case "enrich_note":
		result, err = srv.enrichNote(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "list_runs":
		result, err = srv.listRuns(ctx, req)
	case "get_note_contract":
		result, err = srv.getNoteContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestFormatTranscript(t *testing.T) {
	srv, _ := testServer(t, testutil.NewFakeBackend())

	r := callTool(t, srv, "format_transcript", map[string]interface{}{
		"segments": `[{"start": 0, "text": "opening"}, {"start": 65, "text": "argument"}]`,
	})
	text := resultText(r)
	if !strings.Contains(text, "00:00:00 marker:0 opening") {
		t.Errorf("format result = %q", text)
	}
	if !strings.Contains(text, "00:01:05 marker:65 argument") {
		t.Errorf("format result = %q", text)
	}

	// Custom bucket size merges both segments.
	r = callTool(t, srv, "format_transcript", map[string]interface{}{
		"segments":           `[{"start": 0, "text": "opening"}, {"start": 65, "text": "argument"}]`,
		"min_bucket_seconds": "300",
	})
	text = resultText(r)
	if strings.Contains(text, "marker:65") {
		t.Errorf("expected single bucket, got %q", text)
	}

	r = callTool(t, srv, "format_transcript", map[string]interface{}{"segments": "not json"})
	if !r.IsError {
		t.Error("expected error for invalid segments JSON")
	}
}

func TestCreateAndReadVideoNote(t *testing.T) {
	fake := testutil.NewFakeBackend(testutil.FakeResponse{Text: "## Overview\ndraft body"})
	srv, _ := testServer(t, fake)

	r := callTool(t, srv, "create_video_note", map[string]interface{}{
		"transcript": `{"video_id": "vid42", "title": "A Good Talk", "segments": [{"start": 0, "text": "hello"}]}`,
	})
	text := resultText(r)
	if text != "created: videos/a-good-talk.md" {
		t.Errorf("create result = %q", text)
	}

	r = callTool(t, srv, "read_note", map[string]interface{}{"path": "videos/a-good-talk.md"})
	text = resultText(r)
	if !strings.Contains(text, "## Overview") || !strings.Contains(text, "marker:0") {
		t.Errorf("read result = %q", text)
	}

	// Duplicate create errors.
	r = callTool(t, srv, "create_video_note", map[string]interface{}{
		"transcript": `{"video_id": "vid42", "title": "A Good Talk", "segments": [{"start": 0, "text": "hello"}]}`,
	})
	if !r.IsError {
		t.Error("expected error for duplicate note")
	}
}

func TestEnrichNoteTool(t *testing.T) {
	fake := testutil.NewFakeBackend(testutil.FakeResponse{
		Text: "## First point marker:0\nsome prose\n## Second point marker:65\nmore prose\n",
	})
	srv, store := testServer(t, fake)

	annotated := "00:00:00 marker:0 opening remarks\n00:01:05 marker:65 main argument"
	content := document.BuildMetadataBlock("A Good Talk", "vid42", "", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), annotated) +
		"## First point\nsome prose\n## Second point\nmore prose\n"
	if err := store.Write("videos/talk.md", []byte(content)); err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "enrich_note", map[string]interface{}{"path": "videos/talk.md"})
	text := resultText(r)
	if !strings.Contains(text, "added 2 links across 2 sections") {
		t.Errorf("enrich result = %q", text)
	}

	r = callTool(t, srv, "enrich_note", map[string]interface{}{"path": "videos/nope.md"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestListRunsTool(t *testing.T) {
	fake := testutil.NewFakeBackend(testutil.FakeResponse{Text: "## Overview\ndraft body"})
	srv, _ := testServer(t, fake)

	_ = callTool(t, srv, "create_video_note", map[string]interface{}{
		"transcript": `{"video_id": "vid42", "title": "Talk", "segments": [{"start": 0, "text": "hello"}]}`,
	})

	r := callTool(t, srv, "list_runs", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, `"pass": "summary"`) {
		t.Errorf("list_runs result = %q", text)
	}

	r = callTool(t, srv, "list_runs", map[string]interface{}{"path": "videos/talk.md"})
	text = resultText(r)
	if !strings.Contains(text, "summary") {
		t.Errorf("filtered list_runs result = %q", text)
	}
}

func TestGetNoteContract(t *testing.T) {
	srv, _ := testServer(t, testutil.NewFakeBackend())
	r := callTool(t, srv, "get_note_contract", map[string]interface{}{})
	if !strings.Contains(resultText(r), "marker:N") {
		t.Error("contract missing marker documentation")
	}
}
