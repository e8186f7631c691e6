package gateway

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/foxseedlab/kikitori/internal/gateway"
	"github.com/foxseedlab/kikitori/internal/transcript"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const speechAPIEndpointPort = 443

type CloudSpeechConfig struct {
	ProjectID       string
	CredentialsJSON string
	Language        string
	Location        string
	Model           string
}

// CloudGateway adapts the Cloud Speech v2 streaming API to the handle-based
// gateway contract. Each model handle owns one API client; each stream
// handle owns one streaming recognize call, opened lazily on the first audio
// push once the sample rate is known.
type CloudGateway struct {
	mu         sync.Mutex
	log        *slog.Logger
	cfg        CloudSpeechConfig
	nextModel  gateway.ModelHandle
	nextStream gateway.StreamHandle
	models     map[gateway.ModelHandle]*cloudModel
}

type cloudModel struct {
	client   *speech.Client
	language string
	streams  map[gateway.StreamHandle]*cloudStream
}

type cloudStream struct {
	mu         sync.Mutex
	api        speechpb.Speech_StreamingRecognizeClient
	cancel     context.CancelFunc
	sampleRate int
	stopped    bool

	// Recognized state maintained by the receiver goroutine. Completed
	// lines are stable; the interim line always follows them and reuses
	// the next ID until it finalizes.
	completed []cloudLine
	interim   string
	recvErr   error

	reported map[int64]reportedLine
}

type cloudLine struct {
	text         string
	startSeconds float64
	endSeconds   float64
}

func NewCloudGateway(cfg CloudSpeechConfig, logger *slog.Logger) *CloudGateway {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Location = strings.TrimSpace(cfg.Location)
	if cfg.Location == "" {
		cfg.Location = "global"
	}
	return &CloudGateway{
		log:    logger.With("component", "gateway.cloud"),
		cfg:    cfg,
		models: make(map[gateway.ModelHandle]*cloudModel),
	}
}

func (g *CloudGateway) LoadModel(path, architecture string, options []string) (gateway.ModelHandle, error) {
	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(g.cfg.CredentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return 0, fmt.Errorf("detect credentials: %w", err)
	}
	opts := []option.ClientOption{option.WithAuthCredentials(creds)}
	if g.cfg.Location != "global" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:%d", g.cfg.Location, speechAPIEndpointPort)))
	}
	client, err := speech.NewClient(context.Background(), opts...)
	if err != nil {
		return 0, fmt.Errorf("create speech client: %w", err)
	}

	language := g.cfg.Language
	for _, opt := range options {
		if v, ok := strings.CutPrefix(opt, "language="); ok && v != "" {
			language = v
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextModel++
	h := g.nextModel
	g.models[h] = &cloudModel{
		client:   client,
		language: language,
		streams:  make(map[gateway.StreamHandle]*cloudStream),
	}
	g.log.Info("cloud speech model ready", "model", h, "location", g.cfg.Location, "language", language)
	return h, nil
}

func (g *CloudGateway) FreeModel(model gateway.ModelHandle) error {
	g.mu.Lock()
	m, ok := g.models[model]
	if ok {
		delete(g.models, model)
	}
	g.mu.Unlock()
	if !ok {
		return gateway.ErrInvalidHandle
	}
	for _, s := range m.streams {
		s.teardown()
	}
	return m.client.Close()
}

func (g *CloudGateway) CreateStream(model gateway.ModelHandle, flags gateway.Flags) (gateway.StreamHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.models[model]
	if !ok {
		return 0, gateway.ErrInvalidHandle
	}
	g.nextStream++
	h := g.nextStream
	m.streams[h] = &cloudStream{reported: make(map[int64]reportedLine)}
	return h, nil
}

func (g *CloudGateway) StartStream(model gateway.ModelHandle, stream gateway.StreamHandle) error {
	_, _, err := g.lookup(model, stream)
	return err
}

func (g *CloudGateway) PushAudio(model gateway.ModelHandle, stream gateway.StreamHandle, samples []float32, sampleRate int, flags gateway.Flags) error {
	m, s, err := g.lookup(model, stream)
	if err != nil {
		return err
	}
	if sampleRate <= 0 {
		return gateway.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return gateway.ErrInvalidHandle
	}
	if s.api == nil {
		if err := g.openStreamLocked(m, s, sampleRate); err != nil {
			return err
		}
	}
	if len(samples) == 0 {
		return nil
	}
	req := &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_Audio{
			Audio: samplesToLinear16(samples),
		},
	}
	if err := s.api.Send(req); err != nil {
		return mapGRPCError(err)
	}
	return nil
}

func (g *CloudGateway) TranscribeStream(model gateway.ModelHandle, stream gateway.StreamHandle, flags gateway.Flags) (transcript.Transcript, error) {
	_, s, err := g.lookup(model, stream)
	if err != nil {
		return transcript.Transcript{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recvErr != nil {
		return transcript.Transcript{}, mapGRPCError(s.recvErr)
	}

	var snap transcript.Transcript
	for i, cl := range s.completed {
		snap.Lines = append(snap.Lines, transcript.Line{
			ID:           int64(i + 1),
			Text:         cl.text,
			StartSeconds: cl.startSeconds,
			Duration:     cl.endSeconds - cl.startSeconds,
			Complete:     true,
		})
	}
	if s.interim != "" {
		start := 0.0
		if n := len(s.completed); n > 0 {
			start = s.completed[n-1].endSeconds
		}
		snap.Lines = append(snap.Lines, transcript.Line{
			ID:           int64(len(s.completed) + 1),
			Text:         s.interim,
			StartSeconds: start,
		})
	}
	for i := range snap.Lines {
		line := &snap.Lines[i]
		prev, existed := s.reported[line.ID]
		line.New = !existed
		line.TextChanged = !existed || prev.text != line.Text
		line.Updated = line.New || line.TextChanged || (line.Complete && !prev.complete)
		s.reported[line.ID] = reportedLine{text: line.Text, complete: line.Complete}
	}
	return snap, nil
}

func (g *CloudGateway) StopStream(model gateway.ModelHandle, stream gateway.StreamHandle) error {
	_, s, err := g.lookup(model, stream)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	if s.api != nil {
		if err := s.api.CloseSend(); err != nil {
			return mapGRPCError(err)
		}
	}
	return nil
}

func (g *CloudGateway) FreeStream(model gateway.ModelHandle, stream gateway.StreamHandle) error {
	g.mu.Lock()
	m, ok := g.models[model]
	if !ok {
		g.mu.Unlock()
		return gateway.ErrInvalidHandle
	}
	s, ok := m.streams[stream]
	if !ok {
		g.mu.Unlock()
		return gateway.ErrInvalidHandle
	}
	delete(m.streams, stream)
	g.mu.Unlock()
	s.teardown()
	return nil
}

func (g *CloudGateway) TranscribeOneShot(model gateway.ModelHandle, samples []float32, sampleRate int, flags gateway.Flags) (transcript.Transcript, error) {
	g.mu.Lock()
	m, ok := g.models[model]
	g.mu.Unlock()
	if !ok {
		return transcript.Transcript{}, gateway.ErrInvalidHandle
	}
	if len(samples) == 0 {
		return transcript.Transcript{}, nil
	}
	if sampleRate <= 0 {
		return transcript.Transcript{}, gateway.ErrInvalidArgument
	}

	resp, err := m.client.Recognize(context.Background(), &speechpb.RecognizeRequest{
		Recognizer: g.recognizerName(),
		Config:     g.recognitionConfig(m.language, sampleRate),
		AudioSource: &speechpb.RecognizeRequest_Content{
			Content: samplesToLinear16(samples),
		},
	})
	if err != nil {
		return transcript.Transcript{}, mapGRPCError(err)
	}

	var snap transcript.Transcript
	start := 0.0
	for _, result := range resp.GetResults() {
		if len(result.GetAlternatives()) == 0 {
			continue
		}
		end := result.GetResultEndOffset().AsDuration().Seconds()
		snap.Lines = append(snap.Lines, transcript.Line{
			ID:           int64(len(snap.Lines) + 1),
			Text:         result.GetAlternatives()[0].GetTranscript(),
			StartSeconds: start,
			Duration:     end - start,
			Complete:     true,
			New:          true,
			Updated:      true,
			TextChanged:  true,
		})
		start = end
	}
	return snap, nil
}

func (g *CloudGateway) lookup(model gateway.ModelHandle, stream gateway.StreamHandle) (*cloudModel, *cloudStream, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.models[model]
	if !ok {
		return nil, nil, gateway.ErrInvalidHandle
	}
	s, ok := m.streams[stream]
	if !ok {
		return nil, nil, gateway.ErrInvalidHandle
	}
	return m, s, nil
}

func (g *CloudGateway) recognizerName() string {
	return fmt.Sprintf("projects/%s/locations/%s/recognizers/_", g.cfg.ProjectID, g.cfg.Location)
}

func (g *CloudGateway) recognitionConfig(language string, sampleRate int) *speechpb.RecognitionConfig {
	return &speechpb.RecognitionConfig{
		Model:         g.cfg.Model,
		LanguageCodes: []string{language},
		DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
			ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
				Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
				SampleRateHertz:   int32(sampleRate),
				AudioChannelCount: 1,
			},
		},
		Features: &speechpb.RecognitionFeatures{},
	}
}

func (g *CloudGateway) openStreamLocked(m *cloudModel, s *cloudStream, sampleRate int) error {
	ctx, cancel := context.WithCancel(context.Background())
	api, err := m.client.StreamingRecognize(ctx)
	if err != nil {
		cancel()
		return mapGRPCError(err)
	}
	err = api.Send(&speechpb.StreamingRecognizeRequest{
		Recognizer: g.recognizerName(),
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config:            g.recognitionConfig(m.language, sampleRate),
				StreamingFeatures: &speechpb.StreamingRecognitionFeatures{InterimResults: true},
			},
		},
	})
	if err != nil {
		_ = api.CloseSend()
		cancel()
		return mapGRPCError(err)
	}
	s.api = api
	s.cancel = cancel
	s.sampleRate = sampleRate
	go g.receiveLoop(api, s)
	g.log.Info("cloud speech stream opened", "sample_rate", sampleRate)
	return nil
}

// receiveLoop folds streaming responses into the stream's line state.
// Finalized results append to completed; the latest non-final result becomes
// the interim line.
func (g *CloudGateway) receiveLoop(api speechpb.Speech_StreamingRecognizeClient, s *cloudStream) {
	for {
		resp, err := api.Recv()
		if err != nil {
			if err == io.EOF || strings.Contains(err.Error(), "context canceled") {
				return
			}
			s.mu.Lock()
			s.recvErr = err
			s.mu.Unlock()
			g.log.Warn("cloud speech receive loop ended", "error", err)
			return
		}
		s.mu.Lock()
		for _, result := range resp.GetResults() {
			if len(result.GetAlternatives()) == 0 {
				continue
			}
			text := result.GetAlternatives()[0].GetTranscript()
			if result.GetIsFinal() {
				start := 0.0
				if n := len(s.completed); n > 0 {
					start = s.completed[n-1].endSeconds
				}
				end := result.GetResultEndOffset().AsDuration().Seconds()
				if end < start {
					end = start
				}
				s.completed = append(s.completed, cloudLine{
					text:         text,
					startSeconds: start,
					endSeconds:   end,
				})
				s.interim = ""
			} else {
				s.interim = text
			}
		}
		s.mu.Unlock()
	}
}

func (s *cloudStream) teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.api != nil && s.cancel != nil {
		s.cancel()
	}
	s.api = nil
	s.cancel = nil
}

func samplesToLinear16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, v := range samples {
		if v > 1 {
			v = 1
		}
		if v < -1 {
			v = -1
		}
		n := int16(v * 32767)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(n))
	}
	return out
}

func mapGRPCError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", gateway.ErrInvalidArgument, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%w: %s", gateway.ErrInvalidHandle, st.Message())
	case codes.Unknown, codes.Internal:
		return fmt.Errorf("%w: %s", gateway.ErrUnknown, st.Message())
	default:
		return err
	}
}
