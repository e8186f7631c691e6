package session

import (
	"context"
	"testing"

	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/foxseedlab/kikitori/internal/repository"
	"github.com/foxseedlab/kikitori/internal/transcript"
	"github.com/foxseedlab/kikitori/internal/webhook"
)

type fakeRepository struct {
	sessions  map[string]*repository.Session
	lines     map[string]map[int64]repository.InsertLineInput
	completed []repository.CompleteSessionInput
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		sessions: make(map[string]*repository.Session),
		lines:    make(map[string]map[int64]repository.InsertLineInput),
	}
}

func (r *fakeRepository) CreateSession(_ context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	s := &repository.Session{
		ID:        "sess-1",
		Language:  input.Language,
		Backend:   input.Backend,
		StartedAt: input.StartedAt,
		Status:    repository.SessionStatusRunning,
	}
	r.sessions[s.ID] = s
	r.lines[s.ID] = make(map[int64]repository.InsertLineInput)
	return s, nil
}

func (r *fakeRepository) UpdateSessionCompleted(_ context.Context, input repository.CompleteSessionInput) error {
	r.completed = append(r.completed, input)
	return nil
}

func (r *fakeRepository) ListRunningSessions(_ context.Context) ([]repository.Session, error) {
	var out []repository.Session
	for _, s := range r.sessions {
		if s.Status == repository.SessionStatusRunning {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeRepository) InsertLine(_ context.Context, input repository.InsertLineInput) error {
	r.lines[input.SessionID][input.LineID] = input
	return nil
}

func (r *fakeRepository) ListLinesBySessionID(_ context.Context, sessionID string) ([]repository.TranscriptLine, error) {
	var out []repository.TranscriptLine
	for _, in := range r.lines[sessionID] {
		out = append(out, repository.TranscriptLine{
			SessionID:       in.SessionID,
			LineID:          in.LineID,
			Content:         in.Content,
			StartSeconds:    in.StartSeconds,
			DurationSeconds: in.DurationSeconds,
		})
	}
	return out, nil
}

type fakeSender struct {
	payloads []webhook.TranscriptWebhookPayload
}

func (s *fakeSender) SendTranscript(_ context.Context, payload webhook.TranscriptWebhookPayload) error {
	s.payloads = append(s.payloads, payload)
	return nil
}

type fakeNotifier struct {
	lines       []string
	transcripts []string
}

func (n *fakeNotifier) PostLine(_ context.Context, content string) error {
	n.lines = append(n.lines, content)
	return nil
}

func (n *fakeNotifier) PostTranscript(_ context.Context, filename string, _ []byte) error {
	n.transcripts = append(n.transcripts, filename)
	return nil
}

type fakePacketDecoder struct {
	closed bool
}

func (d *fakePacketDecoder) DecodePacket(_ []byte) ([]float32, error) {
	return make([]float32, 1600), nil
}

func (d *fakePacketDecoder) SampleRate() int { return 16000 }

func (d *fakePacketDecoder) Close() error {
	d.closed = true
	return nil
}

func newTestPipeline(t *testing.T, g *fakeGateway) (*Pipeline, *fakeRepository, *fakeSender, *fakeNotifier) {
	t.Helper()
	tr := newTestTranscriber(t, g)
	repo := newFakeRepository()
	wh := &fakeSender{}
	nt := &fakeNotifier{}
	p := NewPipeline(testConfig(), repo, wh, nt, tr, audio.PacketDecoderFactory(func() (audio.PacketDecoder, error) {
		return &fakePacketDecoder{}, nil
	}))
	return p, repo, wh, nt
}

func TestPipeline_RunPersistsAndDeliversTranscript(t *testing.T) {
	g := &fakeGateway{snapshots: []transcript.Transcript{
		{Lines: []transcript.Line{
			{ID: 1, Text: "recognized line", Duration: 0.5, Complete: true, Updated: true, New: true, TextChanged: true},
		}},
		{Lines: []transcript.Line{
			{ID: 1, Text: "recognized line", Duration: 0.5, Complete: true},
		}},
	}}
	p, repo, wh, nt := newTestPipeline(t, g)

	// One second of audio at 16kHz; updates fire at 0.5s and 1.0s plus the
	// final flush on stop.
	if err := p.Run(context.Background(), make([]float32, 16000), 16000); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	lines := repo.lines["sess-1"]
	if len(lines) != 1 {
		t.Fatalf("expected 1 persisted line, got %d", len(lines))
	}
	if lines[1].Content != "recognized line" {
		t.Fatalf("unexpected line content: %q", lines[1].Content)
	}
	if len(repo.completed) != 1 || repo.completed[0].LineCount != 1 {
		t.Fatalf("expected session completion with 1 line, got %+v", repo.completed)
	}
	if len(wh.payloads) != 1 || wh.payloads[0].SessionID != "sess-1" {
		t.Fatalf("expected webhook delivery, got %+v", wh.payloads)
	}
	if len(nt.lines) != 1 || nt.lines[0] != "recognized line" {
		t.Fatalf("expected completed line posted, got %v", nt.lines)
	}
	if len(nt.transcripts) != 1 {
		t.Fatalf("expected transcript file posted, got %v", nt.transcripts)
	}
	if g.stopCalls != 1 || g.freeStreamCalls != 1 {
		t.Fatalf("expected session stopped and freed, got stop=%d free=%d", g.stopCalls, g.freeStreamCalls)
	}
}

func TestPipeline_RunRespectsCancellation(t *testing.T) {
	g := &fakeGateway{}
	p, _, _, _ := newTestPipeline(t, g)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Run(ctx, make([]float32, 16000), 16000); err == nil {
		t.Fatal("expected context error")
	}
	if g.freeStreamCalls != 1 {
		t.Fatalf("expected stream freed on cancellation, got %d", g.freeStreamCalls)
	}
}

func TestPipeline_RunPackets(t *testing.T) {
	g := &fakeGateway{}
	p, repo, _, _ := newTestPipeline(t, g)

	packets := make([][]byte, 8)
	for i := range packets {
		packets[i] = []byte{0x01}
	}
	if err := p.RunPackets(context.Background(), packets); err != nil {
		t.Fatalf("RunPackets failed: %v", err)
	}
	if len(repo.sessions) != 1 {
		t.Fatalf("expected a session record, got %d", len(repo.sessions))
	}
	if g.pushCalls == 0 {
		t.Fatalf("expected decoded audio pushed to the gateway")
	}
}

func TestPipeline_RunPacketsEmptyStream(t *testing.T) {
	g := &fakeGateway{}
	tr := newTestTranscriber(t, g)
	repo := newFakeRepository()
	p := NewPipeline(testConfig(), repo, &fakeSender{}, &fakeNotifier{}, tr, func() (audio.PacketDecoder, error) {
		return &silentPacketDecoder{}, nil
	})

	if err := p.RunPackets(context.Background(), [][]byte{{0x01}}); err != nil {
		t.Fatalf("RunPackets failed: %v", err)
	}
	if len(repo.sessions) != 0 {
		t.Fatalf("expected no session for silent stream, got %d", len(repo.sessions))
	}
}

type silentPacketDecoder struct{}

func (d *silentPacketDecoder) DecodePacket(_ []byte) ([]float32, error) { return nil, nil }
func (d *silentPacketDecoder) SampleRate() int                         { return 16000 }
func (d *silentPacketDecoder) Close() error                            { return nil }
