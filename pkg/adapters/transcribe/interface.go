package transcribe

import "context"

// LangAuto asks the adapter to detect the spoken language itself.
const LangAuto = "auto"

// Result is one finished transcription of a closed audio segment.
type Result struct {
	Text string
	// DetectedLang is set when the adapter identified the language,
	// whether or not LangAuto was requested.
	DetectedLang string
	// Confidence of the language detection, 0 when the adapter does not score it.
	Confidence float64
}

// Transcriber defines the contract for any STT vendor implementation.
// Transcribe consumes one finalized utterance chunk, not an open stream.
type Transcriber interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Transcribe converts a PCM16 chunk to text. lang may be LangAuto.
	Transcribe(ctx context.Context, audio []byte, sampleRate int, lang string) (Result, error)
}

// Config contains vendor-agnostic transcription configuration.
type Config struct {
	Language   string
	SampleRate int
	Model      string
}
