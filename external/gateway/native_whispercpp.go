//go:build whispercpp

package gateway

/*
#cgo CFLAGS: -I${SRCDIR}/../../third_party/whisper.cpp -I${SRCDIR}/../../third_party/whisper.cpp/include -I${SRCDIR}/../../third_party/whisper.cpp/ggml/include
#cgo CXXFLAGS: -std=c++17 -I${SRCDIR}/../../third_party/whisper.cpp -I${SRCDIR}/../../third_party/whisper.cpp/include -I${SRCDIR}/../../third_party/whisper.cpp/ggml/include
#cgo LDFLAGS: -L${SRCDIR}/../../third_party/whisper.cpp/build -L${SRCDIR}/../../third_party/whisper.cpp/build/src -Wl,-rpath,${SRCDIR}/../../third_party/whisper.cpp/build/src -lwhisper -lstdc++ -lm

#include "stdlib.h"
#include "include/whisper.h"
#include "ggml.h"

bool kikitoriGoAbort(void * user_data);
*/
import "C"

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/cgo"
	"strings"
	"sync"
	"unsafe"

	"github.com/foxseedlab/kikitori/internal/gateway"
	"github.com/foxseedlab/kikitori/internal/transcript"
)

const (
	whisperSampleRate = 16000
	// Inference windows mirror whisper.cpp's stream example: recompute over
	// at most 30s of audio, confirming everything older than the tail.
	windowSeconds     = 30
	tailHoldbackLines = 1
)

func NativeAvailable() bool { return true }

// NativeGateway runs whisper.cpp in process. One whisper context per model
// handle; streams accumulate resampled audio and re-run inference over a
// sliding window, turning whisper segments into transcript lines.
type NativeGateway struct {
	mu         sync.Mutex
	log        *slog.Logger
	nextModel  gateway.ModelHandle
	nextStream gateway.StreamHandle
	models     map[gateway.ModelHandle]*nativeModel
}

type nativeModel struct {
	ctx      *C.struct_whisper_context
	inferMu  sync.Mutex
	language string
	streams  map[gateway.StreamHandle]*nativeStream
}

type nativeStream struct {
	audio       []float32
	baseSeconds float64
	confirmed   []transcript.Line
	stopped     bool
	reported    map[int64]reportedLine
	nextLineID  int64
}

func NewNativeGateway(logger *slog.Logger) *NativeGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &NativeGateway{
		log:    logger.With("component", "gateway.native"),
		models: make(map[gateway.ModelHandle]*nativeModel),
	}
}

func (g *NativeGateway) LoadModel(path, architecture string, options []string) (gateway.ModelHandle, error) {
	if path == "" {
		return 0, fmt.Errorf("%w: model path required", gateway.ErrInvalidArgument)
	}
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))
	cParams := C.whisper_context_default_params()
	cParams.use_gpu = C.bool(false)

	ctx := C.whisper_init_from_file_with_params(cPath, cParams)
	if ctx == nil {
		return 0, fmt.Errorf("%w: failed to initialise whisper context for %s", gateway.ErrUnknown, path)
	}

	language := ""
	for _, opt := range options {
		if v, ok := strings.CutPrefix(opt, "language="); ok {
			language = v
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextModel++
	h := g.nextModel
	g.models[h] = &nativeModel{
		ctx:      ctx,
		language: language,
		streams:  make(map[gateway.StreamHandle]*nativeStream),
	}
	g.log.Info("whisper model loaded", "model", h, "path", path, "architecture", architecture)
	return h, nil
}

func (g *NativeGateway) FreeModel(model gateway.ModelHandle) error {
	g.mu.Lock()
	m, ok := g.models[model]
	if ok {
		delete(g.models, model)
	}
	g.mu.Unlock()
	if !ok {
		return gateway.ErrInvalidHandle
	}
	m.inferMu.Lock()
	defer m.inferMu.Unlock()
	if m.ctx != nil {
		C.whisper_free(m.ctx)
		m.ctx = nil
	}
	return nil
}

func (g *NativeGateway) CreateStream(model gateway.ModelHandle, flags gateway.Flags) (gateway.StreamHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.models[model]
	if !ok {
		return 0, gateway.ErrInvalidHandle
	}
	g.nextStream++
	h := g.nextStream
	m.streams[h] = &nativeStream{
		reported:   make(map[int64]reportedLine),
		nextLineID: 1,
	}
	return h, nil
}

func (g *NativeGateway) StartStream(model gateway.ModelHandle, stream gateway.StreamHandle) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, _, err := g.lookupLocked(model, stream)
	return err
}

func (g *NativeGateway) PushAudio(model gateway.ModelHandle, stream gateway.StreamHandle, samples []float32, sampleRate int, flags gateway.Flags) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, s, err := g.lookupLocked(model, stream)
	if err != nil {
		return err
	}
	if sampleRate <= 0 {
		return gateway.ErrInvalidArgument
	}
	s.audio = append(s.audio, resampleTo16k(samples, sampleRate)...)

	// Bound the working buffer. Everything trimmed off the front has
	// already been confirmed into completed lines.
	maxSamples := whisperSampleRate * windowSeconds
	if len(s.audio) > maxSamples {
		drop := len(s.audio) - maxSamples
		s.audio = s.audio[drop:]
		s.baseSeconds += float64(drop) / float64(whisperSampleRate)
	}
	return nil
}

func (g *NativeGateway) TranscribeStream(model gateway.ModelHandle, stream gateway.StreamHandle, flags gateway.Flags) (transcript.Transcript, error) {
	g.mu.Lock()
	m, s, err := g.lookupLocked(model, stream)
	if err != nil {
		g.mu.Unlock()
		return transcript.Transcript{}, err
	}
	buffer := append([]float32(nil), s.audio...)
	base := s.baseSeconds
	language := m.language
	finalize := s.stopped
	g.mu.Unlock()

	var segments []transcript.Line
	if len(buffer) > 0 {
		segments, err = m.runInference(buffer, base, language)
		if err != nil {
			return transcript.Transcript{}, err
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// Confirm all but the tail segments; the tail stays open because the
	// next window may still revise it. On a stopped stream everything
	// confirms.
	confirmUpTo := len(segments) - tailHoldbackLines
	if finalize {
		confirmUpTo = len(segments)
	}
	for i := 0; i < confirmUpTo; i++ {
		seg := segments[i]
		seg.ID = s.nextLineID
		seg.Complete = true
		s.nextLineID++
		s.confirmed = append(s.confirmed, seg)
		end := seg.StartSeconds + seg.Duration
		if cut := int((end - s.baseSeconds) * whisperSampleRate); cut > 0 && cut <= len(s.audio) {
			s.audio = s.audio[cut:]
			s.baseSeconds = end
		}
	}

	var snap transcript.Transcript
	snap.Lines = append(snap.Lines, s.confirmed...)
	for i := confirmUpTo; i >= 0 && i < len(segments); i++ {
		seg := segments[i]
		seg.ID = s.nextLineID + int64(i-confirmUpTo)
		snap.Lines = append(snap.Lines, seg)
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

func (g *NativeGateway) StopStream(model gateway.ModelHandle, stream gateway.StreamHandle) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, s, err := g.lookupLocked(model, stream)
	if err != nil {
		return err
	}
	s.stopped = true
	return nil
}

func (g *NativeGateway) FreeStream(model gateway.ModelHandle, stream gateway.StreamHandle) error {
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

func (g *NativeGateway) TranscribeOneShot(model gateway.ModelHandle, samples []float32, sampleRate int, flags gateway.Flags) (transcript.Transcript, error) {
	g.mu.Lock()
	m, ok := g.models[model]
	language := ""
	if ok {
		language = m.language
	}
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

	segments, err := m.runInference(resampleTo16k(samples, sampleRate), 0, language)
	if err != nil {
		return transcript.Transcript{}, err
	}
	var snap transcript.Transcript
	for i, seg := range segments {
		seg.ID = int64(i + 1)
		seg.Complete = true
		seg.New = true
		seg.Updated = true
		seg.TextChanged = true
		snap.Lines = append(snap.Lines, seg)
	}
	return snap, nil
}

func (g *NativeGateway) lookupLocked(model gateway.ModelHandle, stream gateway.StreamHandle) (*nativeModel, *nativeStream, error) {
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

// runInference executes one whisper pass over the buffer and returns the
// recognized segments as lines with absolute timestamps. Line IDs are
// assigned by the caller.
func (m *nativeModel) runInference(buffer []float32, baseSeconds float64, language string) ([]transcript.Line, error) {
	m.inferMu.Lock()
	defer m.inferMu.Unlock()
	if m.ctx == nil {
		return nil, gateway.ErrInvalidHandle
	}

	state := C.whisper_init_state(m.ctx)
	if state == nil {
		return nil, fmt.Errorf("%w: failed to initialise whisper state", gateway.ErrUnknown)
	}
	defer C.whisper_free_state(state)

	params := C.whisper_full_default_params(C.WHISPER_SAMPLING_GREEDY)
	params.print_progress = C.bool(false)
	params.print_realtime = C.bool(false)
	params.print_timestamps = C.bool(false)
	params.translate = C.bool(false)
	params.no_context = C.bool(false)
	params.single_segment = C.bool(false)

	lang := strings.TrimSpace(language)
	if lang == "" {
		lang = "auto"
	}
	cLang := C.CString(lang)
	defer C.free(unsafe.Pointer(cLang))
	params.language = cLang
	if strings.EqualFold(lang, "auto") {
		params.detect_language = C.bool(true)
	}

	handle := cgo.NewHandle(context.Background())
	defer handle.Delete()
	params.abort_callback = (C.ggml_abort_callback)(C.kikitoriGoAbort)
	params.abort_callback_user_data = unsafe.Pointer(&handle)

	cSamples := (*C.float)(unsafe.Pointer(&buffer[0]))
	if ret := C.whisper_full_with_state(m.ctx, state, params, cSamples, C.int(len(buffer))); ret != 0 {
		return nil, fmt.Errorf("%w: whisper inference failed with code %d", gateway.ErrUnknown, int(ret))
	}

	count := int(C.whisper_full_n_segments_from_state(state))
	var lines []transcript.Line
	for i := 0; i < count; i++ {
		text := strings.TrimSpace(C.GoString(C.whisper_full_get_segment_text_from_state(state, C.int(i))))
		if text == "" || strings.EqualFold(text, "[BLANK_AUDIO]") {
			continue
		}
		// Segment timestamps are in units of 10ms.
		t0 := float64(C.whisper_full_get_segment_t0_from_state(state, C.int(i))) / 100.0
		t1 := float64(C.whisper_full_get_segment_t1_from_state(state, C.int(i))) / 100.0
		lines = append(lines, transcript.Line{
			Text:         text,
			StartSeconds: baseSeconds + t0,
			Duration:     t1 - t0,
		})
	}
	return lines, nil
}

// resampleTo16k converts mono samples at an arbitrary rate to whisper's
// 16kHz input rate by linear interpolation.
func resampleTo16k(samples []float32, sampleRate int) []float32 {
	if sampleRate == whisperSampleRate || len(samples) == 0 {
		return samples
	}
	outLen := len(samples) * whisperSampleRate / sampleRate
	if outLen == 0 {
		return nil
	}
	out := make([]float32, outLen)
	ratio := float64(sampleRate) / float64(whisperSampleRate)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = samples[j]*(1-frac) + samples[j+1]*frac
	}
	return out
}

//export kikitoriGoAbort
func kikitoriGoAbort(userData unsafe.Pointer) C.bool {
	return C.bool(shouldAbort(userData))
}
