package artifact

// Well-known artifact types used across the surrounding system. The engine
// itself only treats KindProgress and KindRunMeta specially; the rest exist
// so modules and their callers agree on one set of literals.
const (
	KindVideoSource      Type = "VideoSource:local.v1"
	KindChatSource       Type = "ChatSource:html.v1"
	KindChatLog          Type = "ChatLog:json.v1"
	KindAudio            Type = "Audio:extracted.v1"
	KindTranscript       Type = "Transcript:whisper_json.v1"
	KindVideoEmotion     Type = "VideoEmotion:segments.v1"
	KindSpeakerResult    Type = "SpeakerSeparation:result.v1"
	KindAudioHost        Type = "Audio:host.v1"
	KindAudioVideoSpeech Type = "Audio:video_speech.v1"
	KindAudioGame        Type = "Audio:game.v1"
	KindAudioLabels      Type = "AudioLabels:json.v1"
	KindSegments         Type = "Segments:analysis.v1"
	KindClips            Type = "Clips:files.v1"
	KindProgress         Type = "Progress:stage.v1"
	KindRunMeta          Type = "Run:meta.v1"
)
