package ai

import "context"

// ImageRequest describes one outbound image-generation call.
type ImageRequest struct {
	Model   string
	Prompt  string
	N       int
	Size    string
	Quality string // empty means omit the parameter
}

// TextRequest describes one outbound chat-completion call. System carries the
// persona-derived instruction; Prompt is the caller's text, verbatim.
type TextRequest struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// ImageGenerator generates one image and returns its URL.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (string, error)
}

// TextGenerator generates text from a system instruction and a user prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, req TextRequest) (string, error)
}
