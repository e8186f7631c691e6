package gateway

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/foxseedlab/kikitori/internal/gateway"
	"github.com/foxseedlab/kikitori/internal/transcript"
)

// segmentSeconds is the length of one synthetic line in the stub backend.
const segmentSeconds = 1.0

// StubGateway produces deterministic transcripts without invoking any
// inference engine. Every full second of pushed audio becomes a completed
// line; the trailing fraction stays in progress with its text tracking the
// amount of audio received so far.
type StubGateway struct {
	mu         sync.Mutex
	log        *slog.Logger
	nextModel  gateway.ModelHandle
	nextStream gateway.StreamHandle
	models     map[gateway.ModelHandle]*stubModel
}

type stubModel struct {
	streams map[gateway.StreamHandle]*stubStream
}

type stubStream struct {
	seconds  float64
	stopped  bool
	reported map[int64]reportedLine
}

type reportedLine struct {
	text     string
	complete bool
}

func NewStubGateway(logger *slog.Logger) *StubGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubGateway{
		log:    logger.With("component", "gateway.stub"),
		models: make(map[gateway.ModelHandle]*stubModel),
	}
}

func (g *StubGateway) LoadModel(path, architecture string, options []string) (gateway.ModelHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextModel++
	h := g.nextModel
	g.models[h] = &stubModel{streams: make(map[gateway.StreamHandle]*stubStream)}
	g.log.Debug("stub model loaded", "model", h, "path", path, "architecture", architecture, "options", options)
	return h, nil
}

func (g *StubGateway) FreeModel(model gateway.ModelHandle) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.models[model]; !ok {
		return gateway.ErrInvalidHandle
	}
	delete(g.models, model)
	return nil
}

func (g *StubGateway) CreateStream(model gateway.ModelHandle, flags gateway.Flags) (gateway.StreamHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.models[model]
	if !ok {
		return 0, gateway.ErrInvalidHandle
	}
	g.nextStream++
	h := g.nextStream
	m.streams[h] = &stubStream{reported: make(map[int64]reportedLine)}
	return h, nil
}

func (g *StubGateway) StartStream(model gateway.ModelHandle, stream gateway.StreamHandle) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, err := g.streamLocked(model, stream)
	return err
}

func (g *StubGateway) PushAudio(model gateway.ModelHandle, stream gateway.StreamHandle, samples []float32, sampleRate int, flags gateway.Flags) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, err := g.streamLocked(model, stream)
	if err != nil {
		return err
	}
	if sampleRate <= 0 {
		return gateway.ErrInvalidArgument
	}
	s.seconds += float64(len(samples)) / float64(sampleRate)
	return nil
}

func (g *StubGateway) TranscribeStream(model gateway.ModelHandle, stream gateway.StreamHandle, flags gateway.Flags) (transcript.Transcript, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, err := g.streamLocked(model, stream)
	if err != nil {
		return transcript.Transcript{}, err
	}

	snapshot := synthesizeLines(s.seconds, s.stopped)
	for i := range snapshot.Lines {
		line := &snapshot.Lines[i]
		prev, existed := s.reported[line.ID]
		line.New = !existed
		line.TextChanged = !existed || prev.text != line.Text
		line.Updated = line.New || line.TextChanged || (line.Complete && !prev.complete)
		s.reported[line.ID] = reportedLine{text: line.Text, complete: line.Complete}
	}
	return snapshot, nil
}

func (g *StubGateway) StopStream(model gateway.ModelHandle, stream gateway.StreamHandle) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, err := g.streamLocked(model, stream)
	if err != nil {
		return err
	}
	s.stopped = true
	return nil
}

func (g *StubGateway) FreeStream(model gateway.ModelHandle, stream gateway.StreamHandle) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.models[model]
	if !ok {
		return gateway.ErrInvalidHandle
	}
	if _, ok := m.streams[stream]; !ok {
		return gateway.ErrInvalidHandle
	}
	delete(m.streams, stream)
	return nil
}

func (g *StubGateway) TranscribeOneShot(model gateway.ModelHandle, samples []float32, sampleRate int, flags gateway.Flags) (transcript.Transcript, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.models[model]; !ok {
		return transcript.Transcript{}, gateway.ErrInvalidHandle
	}
	if len(samples) == 0 {
		return transcript.Transcript{}, nil
	}
	if sampleRate <= 0 {
		return transcript.Transcript{}, gateway.ErrInvalidArgument
	}
	seconds := float64(len(samples)) / float64(sampleRate)
	snapshot := synthesizeLines(seconds, true)
	for i := range snapshot.Lines {
		snapshot.Lines[i].New = true
		snapshot.Lines[i].Updated = true
		snapshot.Lines[i].TextChanged = true
	}
	return snapshot, nil
}

func (g *StubGateway) streamLocked(model gateway.ModelHandle, stream gateway.StreamHandle) (*stubStream, error) {
	m, ok := g.models[model]
	if !ok {
		return nil, gateway.ErrInvalidHandle
	}
	s, ok := m.streams[stream]
	if !ok {
		return nil, gateway.ErrInvalidHandle
	}
	return s, nil
}

// synthesizeLines slices the accumulated audio into one line per second. A
// trailing fraction becomes an in-progress line unless the stream has
// stopped, in which case it completes too.
func synthesizeLines(seconds float64, finalize bool) transcript.Transcript {
	full := int(math.Floor(seconds + 1e-9))
	frac := seconds - float64(full)

	var out transcript.Transcript
	for i := 0; i < full; i++ {
		out.Lines = append(out.Lines, transcript.Line{
			ID:           int64(i + 1),
			Text:         fmt.Sprintf("[stub] segment %d (%.1fs)", i+1, segmentSeconds),
			StartSeconds: float64(i) * segmentSeconds,
			Duration:     segmentSeconds,
			Complete:     true,
		})
	}
	if frac > 1e-9 {
		out.Lines = append(out.Lines, transcript.Line{
			ID:           int64(full + 1),
			Text:         fmt.Sprintf("[stub] segment %d (%.1fs)", full+1, frac),
			StartSeconds: float64(full) * segmentSeconds,
			Duration:     frac,
			Complete:     finalize,
		})
	}
	return out
}
