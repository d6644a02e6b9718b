// Package render drives the card renderer that turns a character id into PNG bytes.
//
// The renderer itself lives out of process; this package owns the boundary: a
// Renderer interface, an HTTP implementation and the Service that gates every
// render behind a one-time readiness check.
package render

import "context"

// ContentType is the media type of every rendered card.
const ContentType = "image/png"

// Renderer produces card images.
type Renderer interface {
	// Init prepares the renderer. It must succeed before any render.
	Init(ctx context.Context) error

	// Render draws the portrait card for id.
	Render(ctx context.Context, id int64) ([]byte, error)

	// RenderEquipment draws the equipment card for id.
	RenderEquipment(ctx context.Context, id int64) ([]byte, error)
}
