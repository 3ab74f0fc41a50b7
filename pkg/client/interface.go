// Package client defines the vision-model client contract shared by the
// Ollama and llama.cpp backends.
package client

import (
	"context"

	"github.com/menta2k/headshot/pkg/types"
)

// VisionClient sends one image plus a prompt to a vision model
type VisionClient interface {
	// SimpleQuery returns the model's free-form answer
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	// AnalyzeImage returns the faces the model located
	AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error)
}
