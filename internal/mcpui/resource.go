package mcpui

// Resource is a self-contained, renderable description of a UI fragment as
// delivered by an agent tool call or synthesized locally. It is immutable
// once created; the renderer consumes it as-is.
type Resource struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}
