// Package voice defines the speech-to-text collaborator contract.
//
// No real speech engine ships with sos; the implementations here are
// stand-ins that honour the contract so the orchestrator can be driven
// end to end.
package voice

import (
	"context"
	"errors"
	"strings"
)

// ErrTranscriptionUnavailable is returned when audio cannot be turned into
// text. Callers treat it as an empty submission.
var ErrTranscriptionUnavailable = errors.New("transcription unavailable")

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// TranscriberFunc adapts a function to Transcriber.
type TranscriberFunc func(ctx context.Context, audio []byte) (string, error)

func (f TranscriberFunc) Transcribe(ctx context.Context, audio []byte) (string, error) {
	return f(ctx, audio)
}

// Unavailable always fails with ErrTranscriptionUnavailable.
type Unavailable struct{}

func (Unavailable) Transcribe(context.Context, []byte) (string, error) {
	return "", ErrTranscriptionUnavailable
}

// Static returns a fixed transcript for any non-empty audio.
type Static struct {
	Transcript string
}

func (s Static) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(audio) == 0 || strings.TrimSpace(s.Transcript) == "" {
		return "", ErrTranscriptionUnavailable
	}
	return s.Transcript, nil
}

// Text treats the audio payload as UTF-8 text. Useful for the console and
// tests where "audio" is typed in.
type Text struct{}

func (Text) Transcribe(_ context.Context, audio []byte) (string, error) {
	s := strings.TrimSpace(string(audio))
	if s == "" {
		return "", ErrTranscriptionUnavailable
	}
	return s, nil
}

// New selects a transcriber: a non-empty transcript gives Static,
// otherwise Unavailable.
func New(transcript string) Transcriber {
	if strings.TrimSpace(transcript) != "" {
		return Static{Transcript: transcript}
	}
	return Unavailable{}
}
