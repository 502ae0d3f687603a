package server

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by every external-collaborator stub: the CMS
// JSON CRUD, the generative-image/text API, and the super-resolution
// upscaler subprocess are explicit spec.md Non-goals — this module defines
// the boundary interface and ships no network client.
var ErrNotConfigured = errors.New("server: external collaborator not configured")

// ExternalImageGenerator is the boundary interface for the external
// generative-image/text API backing /api/planet/{preview,hybrid,ecology,
// humanity}. The real client lives outside this module.
type ExternalImageGenerator interface {
	GenerateImage(ctx context.Context, request interface{}) ([]byte, error)
}

// Upscaler is the boundary interface for the external super-resolution
// subprocess backing /api/planet/upscale.
type Upscaler interface {
	Upscale(ctx context.Context, image []byte, factor int) ([]byte, error)
}

// stubImageGenerator and stubUpscaler are the nil-object defaults: every
// call returns ErrNotConfigured rather than panicking on a nil interface.
type stubImageGenerator struct{}

func (stubImageGenerator) GenerateImage(ctx context.Context, request interface{}) ([]byte, error) {
	return nil, ErrNotConfigured
}

type stubUpscaler struct{}

func (stubUpscaler) Upscale(ctx context.Context, image []byte, factor int) ([]byte, error) {
	return nil, ErrNotConfigured
}
