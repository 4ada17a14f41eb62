package llm

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Fallback holds the texts used in place of a generated answer.
type Fallback struct {
	Empty  string // the service answered with no text
	Failed string // the call itself failed
}

// Writer makes one attempt per prompt and never returns an error: failures
// are logged and replaced by the fallback text.
type Writer struct {
	gen     Generator
	timeout time.Duration
	log     zerolog.Logger
}

func NewWriter(gen Generator, timeout time.Duration, log zerolog.Logger) *Writer {
	if gen == nil {
		gen = Disabled{}
	}
	return &Writer{gen: gen, timeout: timeout, log: log}
}

// Write reports whether the text was generated (true) or a fallback (false).
func (w *Writer) Write(ctx context.Context, purpose, prompt string, fallback Fallback) (string, bool) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	started := time.Now()
	text, err := w.gen.Generate(ctx, prompt)
	event := w.log.With().
		Str("provider", w.gen.Name()).
		Str("purpose", purpose).
		Dur("duration", time.Since(started)).
		Logger()

	if err != nil {
		event.Warn().Err(err).Msg("text generation failed, using fallback")
		return fallback.Failed, false
	}
	if strings.TrimSpace(text) == "" {
		event.Warn().Msg("text generation returned no text, using fallback")
		return fallback.Empty, false
	}
	event.Debug().Int("chars", len(text)).Msg("text generated")
	return text, true
}
