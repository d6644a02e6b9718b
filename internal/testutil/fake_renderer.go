package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FakeRenderer is an in-process renderer with scriptable failures.
// Cards are the PNG signature followed by "portrait:<id>" or "equipment:<id>".
type FakeRenderer struct {
	mu sync.Mutex

	InitErr   error
	RenderErr error
	Delay     time.Duration

	InitCalls      int
	RenderCalls    int
	EquipmentCalls int
}

// NewFakeRenderer creates a renderer that always succeeds.
func NewFakeRenderer() *FakeRenderer {
	return &FakeRenderer{}
}

// FakeCard returns the bytes FakeRenderer produces for kind ("portrait" or "equipment") and id.
func FakeCard(kind string, id int64) []byte {
	return append(append([]byte{}, PNGHeader...), []byte(fmt.Sprintf("%s:%d", kind, id))...)
}

// SetInitErr changes the Init failure.
func (f *FakeRenderer) SetInitErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.InitErr = err
}

// SetRenderErr changes the render failure.
func (f *FakeRenderer) SetRenderErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RenderErr = err
}

// Init implements the renderer contract.
func (f *FakeRenderer) Init(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.InitCalls++
	return f.InitErr
}

// Render implements the renderer contract.
func (f *FakeRenderer) Render(ctx context.Context, id int64) ([]byte, error) {
	f.mu.Lock()
	f.RenderCalls++
	err, delay := f.RenderErr, f.Delay
	f.mu.Unlock()

	return f.finish(ctx, delay, err, FakeCard("portrait", id))
}

// RenderEquipment implements the renderer contract.
func (f *FakeRenderer) RenderEquipment(ctx context.Context, id int64) ([]byte, error) {
	f.mu.Lock()
	f.EquipmentCalls++
	err, delay := f.RenderErr, f.Delay
	f.mu.Unlock()

	return f.finish(ctx, delay, err, FakeCard("equipment", id))
}

// Counts returns the number of Init, Render and RenderEquipment calls.
func (f *FakeRenderer) Counts() (initCalls, renderCalls, equipmentCalls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.InitCalls, f.RenderCalls, f.EquipmentCalls
}

func (f *FakeRenderer) finish(ctx context.Context, delay time.Duration, err error, card []byte) ([]byte, error) {
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return card, nil
}
