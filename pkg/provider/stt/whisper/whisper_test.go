package whisper_test

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/scribe/pkg/provider/stt"
	"github.com/MrWong99/scribe/pkg/provider/stt/whisper"
)

// ---- helpers ----------------------------------------------------------------

// inferenceServer records the form fields of every /inference request and
// answers with body.
type inferenceServer struct {
	*httptest.Server
	calls atomic.Int32

	mu     sync.Mutex
	fields []map[string]string
}

func newInferenceServer(t *testing.T, body any) *inferenceServer {
	t.Helper()
	s := &inferenceServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f := map[string]string{}
		for k, v := range r.MultipartForm.Value {
			f[k] = v[0]
		}
		s.mu.Lock()
		s.fields = append(s.fields, f)
		s.mu.Unlock()
		s.calls.Add(1)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *inferenceServer) lastFields() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.fields) == 0 {
		return nil
	}
	return s.fields[len(s.fields)-1]
}

func textBody(text string) map[string]string { return map[string]string{"text": text} }

// makeSpeechPCM generates a 440 Hz sine at 16 kHz whose RMS is far above the
// silence threshold.
func makeSpeechPCM(samples int) []byte {
	const amplitude = 10_000.0
	buf := make([]byte, samples*2)
	for i := range samples {
		v := int16(amplitude * math.Sin(2*math.Pi*440*float64(i)/16000))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

func makeSilencePCM(samples int) []byte {
	return make([]byte, samples*2)
}

func mustStartStream(t *testing.T, p *whisper.Provider, cfg stt.StreamConfig) stt.SessionHandle {
	t.Helper()
	h, err := p.StartStream(context.Background(), cfg)
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	return h
}

func waitFinal(t *testing.T, h stt.SessionHandle) stt.Transcript {
	t.Helper()
	select {
	case tr, ok := <-h.Finals():
		if !ok {
			t.Fatal("Finals closed before a transcript arrived")
		}
		return tr
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for final transcript")
	}
	return stt.Transcript{}
}

var mono16k = stt.StreamConfig{SampleRate: 16000, Channels: 1}

// ---- construction -----------------------------------------------------------

func TestNew_EmptyServerURL_ReturnsError(t *testing.T) {
	if _, err := whisper.New(""); err == nil {
		t.Fatal("expected error for empty serverURL, got nil")
	}
}

func TestStartStream_CancelledContext_ReturnsError(t *testing.T) {
	p, _ := whisper.New("http://localhost:1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.StartStream(ctx, mono16k); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

// ---- segmentation and timing ------------------------------------------------

func TestSilenceAloneDoesNotTriggerInference(t *testing.T) {
	srv := newInferenceServer(t, textBody("unexpected"))

	p, _ := whisper.New(srv.URL, whisper.WithSilenceThresholdMs(50))
	h := mustStartStream(t, p, mono16k)
	_ = h.SendAudio(makeSilencePCM(16000))
	h.Close()

	if n := srv.calls.Load(); n != 0 {
		t.Errorf("inference called %d time(s) for silence-only audio; want 0", n)
	}
}

func TestSpeechFollowedBySilence_CarriesStreamPosition(t *testing.T) {
	const wantText = "Hello darkness my old friend"
	srv := newInferenceServer(t, textBody(wantText))

	p, _ := whisper.New(srv.URL, whisper.WithSilenceThresholdMs(100))
	h := mustStartStream(t, p, mono16k)
	defer h.Close()

	// 500 ms leading silence, 100 ms speech, 100 ms silence.
	for _, chunk := range [][]byte{makeSilencePCM(8000), makeSpeechPCM(1600), makeSilencePCM(1600)} {
		if err := h.SendAudio(chunk); err != nil {
			t.Fatalf("SendAudio: %v", err)
		}
	}

	tr := waitFinal(t, h)
	if tr.Text != wantText || !tr.IsFinal {
		t.Errorf("final = %q (IsFinal=%v), want %q", tr.Text, tr.IsFinal, wantText)
	}
	if tr.Timestamp != 500*time.Millisecond {
		t.Errorf("Timestamp = %v, want 500ms", tr.Timestamp)
	}
	if tr.Duration != 200*time.Millisecond {
		t.Errorf("Duration = %v, want 200ms of buffered audio", tr.Duration)
	}

	select {
	case p := <-h.Partials():
		if p.Text != wantText || p.IsFinal {
			t.Errorf("partial = %+v", p)
		}
	case <-time.After(time.Second):
		t.Error("no partial emitted alongside the final")
	}
}

func TestMaxBufferExceededForcesFlush(t *testing.T) {
	srv := newInferenceServer(t, textBody("long speech"))

	p, _ := whisper.New(srv.URL,
		whisper.WithSilenceThresholdMs(10_000),
		whisper.WithMaxBufferDurationMs(200),
	)
	h := mustStartStream(t, p, mono16k)
	defer h.Close()

	if err := h.SendAudio(makeSpeechPCM(3360)); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}
	if tr := waitFinal(t, h); tr.Text != "long speech" {
		t.Errorf("Text = %q", tr.Text)
	}
}

func TestVerboseJSON_WordsShiftedByOffset(t *testing.T) {
	body := map[string]any{
		"text": " Hello there",
		"segments": []map[string]any{{
			"text": " Hello there", "start": 0.0, "end": 0.8,
			"words": []map[string]any{
				{"word": " Hello", "start": 0.0, "end": 0.4, "probability": 0.9},
				{"word": " there", "start": 0.4, "end": 0.8, "probability": 0.5},
			},
		}},
	}
	srv := newInferenceServer(t, body)

	p, _ := whisper.New(srv.URL, whisper.WithSilenceThresholdMs(100))
	h := mustStartStream(t, p, mono16k)
	defer h.Close()

	_ = h.SendAudio(makeSilencePCM(16000)) // 1 s
	_ = h.SendAudio(makeSpeechPCM(1600))
	_ = h.SendAudio(makeSilencePCM(1600))

	tr := waitFinal(t, h)
	if len(tr.Words) != 2 {
		t.Fatalf("got %d words, want 2", len(tr.Words))
	}
	if tr.Words[0].Word != "Hello" || tr.Words[1].Word != "there" {
		t.Errorf("words = %q, %q", tr.Words[0].Word, tr.Words[1].Word)
	}
	if tr.Words[1].Start != 1400*time.Millisecond {
		t.Errorf("second word start = %v, want 1.4s", tr.Words[1].Start)
	}
	if tr.Duration != 800*time.Millisecond {
		t.Errorf("Duration = %v, want segment end 800ms", tr.Duration)
	}
	if math.Abs(tr.Confidence-0.7) > 1e-9 {
		t.Errorf("Confidence = %v, want mean 0.7", tr.Confidence)
	}
	if f := srv.lastFields(); f["response_format"] != "verbose_json" || f["language"] != "en" {
		t.Errorf("form fields = %v", f)
	}
}

func TestSetKeywords_BecomesPrompt(t *testing.T) {
	srv := newInferenceServer(t, textBody("ok"))

	p, _ := whisper.New(srv.URL, whisper.WithSilenceThresholdMs(100))
	h, err := p.StartStream(context.Background(), stt.StreamConfig{
		SampleRate: 16000, Channels: 1,
		Keywords: []stt.KeywordBoost{{Keyword: "Kubernetes"}},
	})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	defer h.Close()

	_ = h.SendAudio(makeSpeechPCM(1600))
	_ = h.SendAudio(makeSilencePCM(1600))
	waitFinal(t, h)
	if got := srv.lastFields()["prompt"]; got != "Kubernetes" {
		t.Errorf("prompt = %q, want %q", got, "Kubernetes")
	}

	if err := h.SetKeywords([]stt.KeywordBoost{{Keyword: "etcd"}, {Keyword: "Helm"}}); err != nil {
		t.Fatalf("SetKeywords: %v", err)
	}
	_ = h.SendAudio(makeSpeechPCM(1600))
	_ = h.SendAudio(makeSilencePCM(1600))
	waitFinal(t, h)
	if got := srv.lastFields()["prompt"]; got != "etcd, Helm" {
		t.Errorf("prompt = %q, want %q", got, "etcd, Helm")
	}
}

// ---- close ------------------------------------------------------------------

func TestClose_FlushesRemainingBuffer(t *testing.T) {
	srv := newInferenceServer(t, textBody("tail"))

	p, _ := whisper.New(srv.URL, whisper.WithSilenceThresholdMs(60_000))
	h := mustStartStream(t, p, mono16k)
	_ = h.SendAudio(makeSpeechPCM(1600))
	h.Close()

	var got []string
	for tr := range h.Finals() {
		got = append(got, tr.Text)
	}
	if len(got) != 1 || got[0] != "tail" {
		t.Errorf("finals after Close = %q, want [tail]", got)
	}
}

func TestClose_IdempotentAndRejectsAudio(t *testing.T) {
	srv := newInferenceServer(t, textBody(""))

	p, _ := whisper.New(srv.URL)
	h := mustStartStream(t, p, mono16k)
	if err := h.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, open := <-h.Partials(); open {
		t.Error("Partials still open after Close")
	}
	if err := h.SendAudio(makeSpeechPCM(100)); err == nil {
		t.Error("SendAudio after Close should fail")
	}
}

// ---- errors -----------------------------------------------------------------

func TestInference_ServerError_EmitsNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, _ := whisper.New(srv.URL, whisper.WithSilenceThresholdMs(100))
	h := mustStartStream(t, p, mono16k)
	_ = h.SendAudio(makeSpeechPCM(1600))
	_ = h.SendAudio(makeSilencePCM(1600))
	h.Close()

	for tr := range h.Finals() {
		t.Errorf("unexpected final %q after server error", tr.Text)
	}
}

func TestInference_EmptyResponse_ProducesNoTranscript(t *testing.T) {
	srv := newInferenceServer(t, textBody("  "))

	p, _ := whisper.New(srv.URL, whisper.WithSilenceThresholdMs(100))
	h := mustStartStream(t, p, mono16k)
	_ = h.SendAudio(makeSpeechPCM(1600))
	_ = h.SendAudio(makeSilencePCM(1600))
	h.Close()

	for tr := range h.Finals() {
		t.Errorf("unexpected final %q for blank response", tr.Text)
	}
	if srv.calls.Load() != 1 {
		t.Errorf("inference calls = %d, want 1", srv.calls.Load())
	}
}

func TestConcurrentSendAudio_DoesNotRace(t *testing.T) {
	srv := newInferenceServer(t, textBody("hello"))

	p, _ := whisper.New(srv.URL, whisper.WithSilenceThresholdMs(100))
	h := mustStartStream(t, p, mono16k)
	defer h.Close()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				_ = h.SendAudio(makeSpeechPCM(160))
			}
		}()
	}
	wg.Wait()
}
