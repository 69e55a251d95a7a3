package ocr

import (
	"context"
	"fmt"

	"img2tex/api/internal/ocr/types"
)

type Engine interface {
	Name() string
	Extract(ctx context.Context, in types.ExtractRequest) (types.ExtractResponse, error)
}

type Engines struct {
	OpenRouter Engine
	Gemini     Engine
}

func (e *Engines) GetEngine(name string) (Engine, error) {
	var eng Engine
	switch name {
	case "openrouter", "":
		eng = e.OpenRouter
	case "gemini":
		eng = e.Gemini
	default:
		return nil, fmt.Errorf("unknown provider %q; use 'openrouter' or 'gemini'", name)
	}
	if eng == nil {
		return nil, fmt.Errorf("provider %q is not configured", name)
	}
	return eng, nil
}
