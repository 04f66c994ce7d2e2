package openai_test

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/MrWong99/elocute/pkg/provider/tts/openai"
)

// speechServer answers /audio/speech with fixed PCM and keeps the last body.
func speechServer(t *testing.T, pcm []byte, last *map[string]any, mu *sync.Mutex) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/speech") {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		body := map[string]any{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		*last = body
		mu.Unlock()
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(pcm)
	}))
}

func TestNew_Validation(t *testing.T) {
	if _, err := openai.New("", ""); err == nil {
		t.Error("expected error for empty api key")
	}
	if _, err := openai.New("sk-test", "", openai.WithSpeed(10)); err == nil {
		t.Error("expected error for out-of-range speed")
	}
	if _, err := openai.New("sk-test", ""); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSynthesize_DecodesPCM(t *testing.T) {
	pcm := make([]byte, 8)
	for i, v := range []int16{0, 16384, -16384, 0} {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}

	var (
		mu   sync.Mutex
		last map[string]any
	)
	srv := speechServer(t, pcm, &last, &mu)
	defer srv.Close()

	p, err := openai.New("sk-test", "", openai.WithBaseURL(srv.URL+"/v1/"), openai.WithVoice("nova"), openai.WithSpeed(0.8))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w, err := p.Synthesize(context.Background(), "The quick brown fox.", "en")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if w.SampleRate != 24000 {
		t.Errorf("SampleRate = %d, want 24000", w.SampleRate)
	}
	if len(w.Samples) != 4 || w.Samples[1] != 0.5 || w.Samples[2] != -0.5 {
		t.Errorf("Samples = %v", w.Samples)
	}

	mu.Lock()
	defer mu.Unlock()
	if last["input"] != "The quick brown fox." {
		t.Errorf("input = %v", last["input"])
	}
	if last["model"] != "tts-1" || last["voice"] != "nova" || last["response_format"] != "pcm" {
		t.Errorf("body = %v", last)
	}
	if last["speed"] != 0.8 {
		t.Errorf("speed = %v, want 0.8", last["speed"])
	}
}

func TestSynthesize_EmptyAudio(t *testing.T) {
	var (
		mu   sync.Mutex
		last map[string]any
	)
	srv := speechServer(t, nil, &last, &mu)
	defer srv.Close()

	p, _ := openai.New("sk-test", "", openai.WithBaseURL(srv.URL+"/v1/"))
	if _, err := p.Synthesize(context.Background(), "Hello.", "en"); err == nil {
		t.Fatal("expected error for empty audio body")
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	p, _ := openai.New("sk-test", "")
	if _, err := p.Synthesize(context.Background(), "", "en"); err == nil {
		t.Fatal("expected error for empty text")
	}
}
