package gateway

import (
	"errors"
	"testing"

	"github.com/foxseedlab/kikitori/internal/gateway"
)

func newTestStream(t *testing.T) (*StubGateway, gateway.ModelHandle, gateway.StreamHandle) {
	t.Helper()
	g := NewStubGateway(nil)
	model, err := g.LoadModel("", "", nil)
	if err != nil {
		t.Fatalf("LoadModel failed: %v", err)
	}
	stream, err := g.CreateStream(model, gateway.FlagNone)
	if err != nil {
		t.Fatalf("CreateStream failed: %v", err)
	}
	if err := g.StartStream(model, stream); err != nil {
		t.Fatalf("StartStream failed: %v", err)
	}
	return g, model, stream
}

func TestStubGateway_InvalidHandles(t *testing.T) {
	g := NewStubGateway(nil)
	if _, err := g.CreateStream(42, gateway.FlagNone); !errors.Is(err, gateway.ErrInvalidHandle) {
		t.Fatalf("expected ErrInvalidHandle, got %v", err)
	}
	if err := g.FreeModel(42); !errors.Is(err, gateway.ErrInvalidHandle) {
		t.Fatalf("expected ErrInvalidHandle, got %v", err)
	}

	_, model, stream := newTestStream(t)
	if err := g.StartStream(model, stream); !errors.Is(err, gateway.ErrInvalidHandle) {
		t.Fatalf("expected ErrInvalidHandle for foreign gateway, got %v", err)
	}
}

func TestStubGateway_DoubleFree(t *testing.T) {
	g, model, stream := newTestStream(t)
	if err := g.FreeStream(model, stream); err != nil {
		t.Fatalf("FreeStream failed: %v", err)
	}
	if err := g.FreeStream(model, stream); !errors.Is(err, gateway.ErrInvalidHandle) {
		t.Fatalf("expected ErrInvalidHandle on double free, got %v", err)
	}
	if err := g.FreeModel(model); err != nil {
		t.Fatalf("FreeModel failed: %v", err)
	}
	if err := g.FreeModel(model); !errors.Is(err, gateway.ErrInvalidHandle) {
		t.Fatalf("expected ErrInvalidHandle on double model free, got %v", err)
	}
}

func TestStubGateway_PushAudioRejectsBadSampleRate(t *testing.T) {
	g, model, stream := newTestStream(t)
	err := g.PushAudio(model, stream, make([]float32, 100), 0, gateway.FlagNone)
	if !errors.Is(err, gateway.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestStubGateway_PartialLineGrowsThenCompletes(t *testing.T) {
	g, model, stream := newTestStream(t)

	// Half a second: one in-progress line.
	if err := g.PushAudio(model, stream, make([]float32, 8000), 16000, gateway.FlagNone); err != nil {
		t.Fatalf("PushAudio failed: %v", err)
	}
	snap, err := g.TranscribeStream(model, stream, gateway.FlagNone)
	if err != nil {
		t.Fatalf("TranscribeStream failed: %v", err)
	}
	if len(snap.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(snap.Lines))
	}
	first := snap.Lines[0]
	if !first.New || !first.Updated || first.Complete {
		t.Fatalf("unexpected flags on first snapshot: %+v", first)
	}

	// Cross the one second boundary: line 1 completes, line 2 starts.
	if err := g.PushAudio(model, stream, make([]float32, 16000), 16000, gateway.FlagNone); err != nil {
		t.Fatalf("PushAudio failed: %v", err)
	}
	snap, err = g.TranscribeStream(model, stream, gateway.FlagNone)
	if err != nil {
		t.Fatalf("TranscribeStream failed: %v", err)
	}
	if len(snap.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(snap.Lines))
	}
	if !snap.Lines[0].Complete || !snap.Lines[0].Updated {
		t.Fatalf("expected line 1 to complete: %+v", snap.Lines[0])
	}
	if snap.Lines[1].Complete || !snap.Lines[1].New {
		t.Fatalf("expected line 2 in progress: %+v", snap.Lines[1])
	}

	// No new audio: nothing changed.
	snap, err = g.TranscribeStream(model, stream, gateway.FlagNone)
	if err != nil {
		t.Fatalf("TranscribeStream failed: %v", err)
	}
	for _, l := range snap.Lines {
		if l.New || l.Updated || l.TextChanged {
			t.Fatalf("expected quiet snapshot, got %+v", l)
		}
	}
}

func TestStubGateway_StopFinalizesPartialLine(t *testing.T) {
	g, model, stream := newTestStream(t)
	if err := g.PushAudio(model, stream, make([]float32, 8000), 16000, gateway.FlagNone); err != nil {
		t.Fatalf("PushAudio failed: %v", err)
	}
	if _, err := g.TranscribeStream(model, stream, gateway.FlagNone); err != nil {
		t.Fatalf("TranscribeStream failed: %v", err)
	}
	if err := g.StopStream(model, stream); err != nil {
		t.Fatalf("StopStream failed: %v", err)
	}
	snap, err := g.TranscribeStream(model, stream, gateway.FlagForceUpdate)
	if err != nil {
		t.Fatalf("TranscribeStream failed: %v", err)
	}
	if len(snap.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(snap.Lines))
	}
	if !snap.Lines[0].Complete || !snap.Lines[0].Updated {
		t.Fatalf("expected finalized line, got %+v", snap.Lines[0])
	}
}

func TestStubGateway_OneShot(t *testing.T) {
	g := NewStubGateway(nil)
	model, err := g.LoadModel("", "", nil)
	if err != nil {
		t.Fatalf("LoadModel failed: %v", err)
	}

	snap, err := g.TranscribeOneShot(model, nil, 16000, gateway.FlagNone)
	if err != nil {
		t.Fatalf("TranscribeOneShot failed: %v", err)
	}
	if len(snap.Lines) != 0 {
		t.Fatalf("expected empty transcript for empty input, got %d lines", len(snap.Lines))
	}

	snap, err = g.TranscribeOneShot(model, make([]float32, 40000), 16000, gateway.FlagNone)
	if err != nil {
		t.Fatalf("TranscribeOneShot failed: %v", err)
	}
	if len(snap.Lines) != 3 {
		t.Fatalf("expected 3 lines for 2.5s of audio, got %d", len(snap.Lines))
	}
	for _, l := range snap.Lines {
		if !l.Complete {
			t.Fatalf("expected all one-shot lines complete, got %+v", l)
		}
	}
}
