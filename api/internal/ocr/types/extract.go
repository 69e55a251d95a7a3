package types

// ExtractRequest is what every engine receives: one image plus the resolved
// model, prompt and sampling temperature.
type ExtractRequest struct {
	Model        string  `json:"model"`
	Image        string  `json:"image"` // data URL or any URL the provider accepts, passed through untouched
	SystemPrompt string  `json:"system_prompt"`
	Temperature  float64 `json:"temperature"`
}

// ExtractResponse carries the model text verbatim. Empty is set when the
// provider answered successfully but produced no content.
type ExtractResponse struct {
	Text  string `json:"text"`
	Empty bool   `json:"empty"`
}
