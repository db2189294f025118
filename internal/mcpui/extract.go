package mcpui

import "github.com/tidwall/gjson"

// envelopePaths are the locations the vendor has been observed to place the
// tool-call envelope, checked in order. The first match wins.
var envelopePaths = []string{
	"mcp_tool_call",
	"data.mcp_tool_call",
	"message.mcp_tool_call",
	"tool_call",
}

// ExtractResources pulls renderable UI resources out of an arbitrary vendor
// debug/message payload. The payload shape is vendor-controlled: anything
// without a tool-call envelope, and anything malformed, yields an empty
// slice. It never errors.
//
// Entries in the envelope's result list are kept in encounter order when
// tagged type=="resource"; everything else is discarded.
func ExtractResources(raw []byte) []Resource {
	env, ok := envelope(raw)
	if !ok {
		return nil
	}
	return resourcesFromEnvelope(env)
}

// ToolResult carries the envelope metadata alongside its first textual
// result entry, for callers that synthesize a widget from structured tool
// output.
type ToolResult struct {
	ToolName string
	Query    string
	Text     string
}

// ExtractToolResult returns the tool-call envelope's name, query parameter,
// and first result text. ok is false when there is no envelope or the first
// result entry carries no text.
func ExtractToolResult(raw []byte) (ToolResult, bool) {
	env, ok := envelope(raw)
	if !ok {
		return ToolResult{}, false
	}
	text := env.Get("result.0.text").String()
	if text == "" {
		return ToolResult{}, false
	}
	return ToolResult{
		ToolName: env.Get("tool_name").String(),
		Query:    env.Get("parameters.query").String(),
		Text:     text,
	}, true
}

func envelope(raw []byte) (gjson.Result, bool) {
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, false
	}
	body := gjson.ParseBytes(raw)
	if !body.IsObject() {
		return gjson.Result{}, false
	}
	for _, path := range envelopePaths {
		env := body.Get(path)
		if env.Exists() {
			return env, true
		}
	}
	return gjson.Result{}, false
}

func resourcesFromEnvelope(env gjson.Result) []Resource {
	var out []Resource
	env.Get("result").ForEach(func(_, entry gjson.Result) bool {
		if entry.Get("type").String() != "resource" {
			return true
		}
		res := entry.Get("resource")
		if !res.Exists() {
			return true
		}
		out = append(out, Resource{
			URI:      res.Get("uri").String(),
			MimeType: res.Get("mimeType").String(),
			Text:     res.Get("text").String(),
		})
		return true
	})
	return out
}
