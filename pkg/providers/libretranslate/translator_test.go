package libretranslate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/linguabridge/linguabridge/pkg/errorsx"
)

func newServer(t *testing.T, handler http.HandlerFunc) *Translator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL})
}

func TestTranslate(t *testing.T) {
	tr := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req translateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Q != "hello" || req.Source != "en" || req.Target != "hi" {
			t.Fatalf("unexpected request %+v", req)
		}
		_ = json.NewEncoder(w).Encode(translateResponse{TranslatedText: "नमस्ते"})
	})

	out, err := tr.Translate(context.Background(), "hello", "en", "hi")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if out != "नमस्ते" {
		t.Fatalf("unexpected translation %q", out)
	}
}

func TestTranslateUnsupportedPair(t *testing.T) {
	tr := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(translateResponse{Error: "xx is not supported"})
	})

	_, err := tr.Translate(context.Background(), "hello", "en", "xx")
	if !errorsx.HasReason(err, errorsx.ReasonUnsupportedLanguage) {
		t.Fatalf("expected unsupported language reason, got %v", err)
	}
}

func TestTranslateServerError(t *testing.T) {
	tr := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := tr.Translate(context.Background(), "hello", "en", "hi")
	if !errorsx.HasReason(err, errorsx.ReasonTranslationFailed) {
		t.Fatalf("expected translation failed reason, got %v", err)
	}
}

func TestDetectLanguage(t *testing.T) {
	tr := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]detection{{Language: "hi", Confidence: 92}})
	})

	lang, confidence, err := tr.DetectLanguage(context.Background(), "नमस्ते")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if lang != "hi" || confidence != 0.92 {
		t.Fatalf("unexpected detection %s %.2f", lang, confidence)
	}
}

func TestLanguages(t *testing.T) {
	tr := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/languages" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]language{{Code: "EN", Name: "English"}, {Code: "hi", Name: "Hindi"}})
	})

	codes, err := tr.Languages(context.Background())
	if err != nil {
		t.Fatalf("languages: %v", err)
	}
	if len(codes) != 2 || codes[0] != "en" || codes[1] != "hi" {
		t.Fatalf("unexpected codes %v", codes)
	}
}
