package model

import "context"

// SpeechInput blocks until the caller finished one utterance and returns its text.
type SpeechInput interface {
	Listen(ctx context.Context) (string, error)
}

// SpeechOutput renders text to the caller and returns when playback completes.
type SpeechOutput interface {
	Say(ctx context.Context, text string) error
}
