package render

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Sternrassler/card-gateway/internal/testutil"
	"github.com/rs/zerolog"
)

func newTestHTTPRenderer(t *testing.T, mock *testutil.MockUpstream) *HTTPRenderer {
	t.Helper()

	r, err := NewHTTPRenderer(HTTPConfig{BaseURL: mock.URL(), Timeout: 2 * time.Second}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHTTPRenderer failed: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestNewHTTPRenderer_RequiresBaseURL(t *testing.T) {
	if _, err := NewHTTPRenderer(HTTPConfig{}, zerolog.Nop()); err == nil {
		t.Error("NewHTTPRenderer should fail without a base URL")
	}
}

func TestHTTPRenderer_Init(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	r := newTestHTTPRenderer(t, mock)

	if err := r.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	mock.SetHealthStatus(http.StatusServiceUnavailable)
	if err := r.Init(context.Background()); err == nil {
		t.Error("Init should fail when the backend is unhealthy")
	}
	if mock.GetHealthCount() != 2 {
		t.Errorf("health calls = %d, want 2", mock.GetHealthCount())
	}
}

func TestHTTPRenderer_Render(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	r := newTestHTTPRenderer(t, mock)
	ctx := context.Background()

	portrait, err := r.Render(ctx, 42)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !bytes.Equal(portrait, testutil.CardBytes("/cards/42.png")) {
		t.Errorf("portrait = %q", portrait)
	}

	equipment, err := r.RenderEquipment(ctx, 42)
	if err != nil {
		t.Fatalf("RenderEquipment failed: %v", err)
	}
	if !bytes.Equal(equipment, testutil.CardBytes("/cards/equipment/42.png")) {
		t.Errorf("equipment = %q", equipment)
	}
}

func TestHTTPRenderer_ErrorStatus(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetRenderStatus(http.StatusInternalServerError)
	r := newTestHTTPRenderer(t, mock)

	if _, err := r.Render(context.Background(), 42); err == nil {
		t.Error("Render should fail on a 5xx response")
	}
}

func TestHTTPRenderer_Timeout(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetRenderDelay(500 * time.Millisecond)
	r := newTestHTTPRenderer(t, mock)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := r.Render(ctx, 42); err == nil {
		t.Error("Render should fail when the context expires")
	}
}
