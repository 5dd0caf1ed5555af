package libretranslate

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/linguabridge/linguabridge/pkg/adapters/translate"
	"github.com/linguabridge/linguabridge/pkg/errorsx"
	"github.com/linguabridge/linguabridge/pkg/logging"
)

const DefaultBaseURL = "https://libretranslate.com"

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Translator talks to a LibreTranslate server. It also implements the
// detector contract via the /detect endpoint.
type Translator struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func New(cfg Config) *Translator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Translator{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logging.NewComponentLogger(slog.Default(), "libretranslate"),
	}
}

func (t *Translator) Name() string { return "libretranslate" }

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error"`
}

func (t *Translator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	var resp translateResponse
	err := t.post(ctx, "/translate", translateRequest{
		Q:      text,
		Source: sourceLang,
		Target: targetLang,
		Format: "text",
		APIKey: t.cfg.APIKey,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Error != "" {
		t.logger.Warn("translation rejected",
			slog.String("source", sourceLang),
			slog.String("target", targetLang),
			slog.String("error", resp.Error))
		if strings.Contains(strings.ToLower(resp.Error), "not supported") {
			return "", errorsx.New(errorsx.ReasonUnsupportedLanguage, resp.Error)
		}
		return "", errorsx.New(errorsx.ReasonTranslationFailed, resp.Error)
	}
	return resp.TranslatedText, nil
}

type detection struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

func (t *Translator) DetectLanguage(ctx context.Context, text string) (string, float64, error) {
	var resp []detection
	err := t.post(ctx, "/detect", map[string]string{"q": text, "api_key": t.cfg.APIKey}, &resp)
	if err != nil {
		return "", 0, err
	}
	if len(resp) == 0 {
		return "", 0, errorsx.New(errorsx.ReasonTranslationFailed, "no detection result")
	}
	// Scores come back 0..100; normalize to 0..1.
	return resp[0].Language, resp[0].Confidence / 100, nil
}

type language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Languages lists the language codes the server can translate between.
func (t *Translator) Languages(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.cfg.BaseURL+"/languages", nil)
	if err != nil {
		return nil, err
	}
	res, err := t.http.Do(req)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonTranslationFailed)
	}
	defer res.Body.Close()
	var langs []language
	if err := json.NewDecoder(res.Body).Decode(&langs); err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonTranslationFailed)
	}
	codes := make([]string, 0, len(langs))
	for _, l := range langs {
		codes = append(codes, strings.ToLower(l.Code))
	}
	return codes, nil
}

func (t *Translator) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := t.http.Do(req)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonTranslationFailed)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonTranslationFailed)
	}
	if res.StatusCode >= 400 {
		var e translateResponse
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			if res.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(e.Error), "not supported") {
				return errorsx.New(errorsx.ReasonUnsupportedLanguage, e.Error)
			}
			return errorsx.New(errorsx.ReasonTranslationFailed, e.Error)
		}
		return errorsx.New(errorsx.ReasonTranslationFailed, res.Status)
	}
	return json.Unmarshal(data, out)
}

var (
	_ translate.Translator = (*Translator)(nil)
	_ translate.Detector   = (*Translator)(nil)
)
