package deepgram

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/linguabridge/linguabridge/pkg/adapters/transcribe"
	"github.com/linguabridge/linguabridge/pkg/errorsx"
	"github.com/linguabridge/linguabridge/pkg/logging"

	listenapi "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

type Config struct {
	APIKey     string
	Model      string
	SampleRate int
}

// Transcriber sends each finalized PCM16 chunk to Deepgram's prerecorded
// endpoint. Chunks are short, so per-request latency beats holding a
// streaming socket open per participant.
type Transcriber struct {
	cfg    Config
	dg     *listenapi.Client
	logger *slog.Logger
}

func New(cfg Config) *Transcriber {
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	c := client.NewREST(cfg.APIKey, &interfaces.ClientOptions{})
	return &Transcriber{
		cfg:    cfg,
		dg:     listenapi.New(c),
		logger: logging.NewComponentLogger(slog.Default(), "deepgram_stt"),
	}
}

func (t *Transcriber) Name() string { return "deepgram_prerecorded" }

func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, sampleRate int, lang string) (transcribe.Result, error) {
	if sampleRate <= 0 {
		sampleRate = t.cfg.SampleRate
	}
	opts := &interfaces.PreRecordedTranscriptionOptions{
		Model:       t.cfg.Model,
		SmartFormat: true,
		Encoding:    "linear16",
		SampleRate:  sampleRate,
	}
	if lang == "" || lang == transcribe.LangAuto {
		opts.DetectLanguage = true
	} else {
		opts.Language = lang
	}

	res, err := t.dg.FromStream(ctx, bytes.NewReader(audio), opts)
	if err != nil {
		// The request never produced a transcript; the vendor is down or
		// unreachable, which is distinct from a bad transcription.
		t.logger.Error("transcription request failed",
			slog.String("model", t.cfg.Model),
			slog.String("error", err.Error()))
		return transcribe.Result{}, errorsx.Wrap(err, errorsx.ReasonTranscriptionUnavailable)
	}
	if res == nil || len(res.Results.Channels) == 0 || len(res.Results.Channels[0].Alternatives) == 0 {
		return transcribe.Result{}, nil
	}

	ch := res.Results.Channels[0]
	alt := ch.Alternatives[0]
	out := transcribe.Result{
		Text:         alt.Transcript,
		DetectedLang: ch.DetectedLanguage,
		Confidence:   alt.Confidence,
	}
	t.logger.Debug("transcript received",
		slog.String("detected_language", out.DetectedLang),
		slog.Int("chars", len(out.Text)))
	return out, nil
}

var _ transcribe.Transcriber = (*Transcriber)(nil)
