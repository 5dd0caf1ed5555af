package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	// Capture device lost; terminal for that direction's pipeline.
	ReasonCaptureUnavailable ReasonCode = "capture_unavailable"

	ReasonTranscriptionUnavailable ReasonCode = "transcription_unavailable"
	ReasonTranscriptionFailed      ReasonCode = "transcription_failed"

	ReasonTranslationFailed    ReasonCode = "translation_failed"
	ReasonUnsupportedLanguage  ReasonCode = "unsupported_language_pair"
	ReasonSynthesisUnavailable ReasonCode = "synthesis_unavailable"

	ReasonRoomNotJoinable ReasonCode = "room_not_joinable"
	ReasonSessionClosed   ReasonCode = "session_closed"

	ReasonTransportSend ReasonCode = "transport_send"
)
