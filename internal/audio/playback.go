package audio

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/wav"
)

// RunPlayback decodes and plays a sound file on the default output, blocking
// until playback finishes. With loop set it repeats forever and only returns
// when the process is killed. Device selection is not supported by the audio
// backend; a requested device is logged and the default output is used.
func RunPlayback(path, device string, loop bool, logger *slog.Logger) error {
	if device != "" {
		logger.Info("Audio device selection not supported, using default output", "requested", device)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open sound file: %w", err)
	}
	defer f.Close()

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		streamer, format, err = wav.Decode(f)
	default:
		streamer, format, err = mp3.Decode(f)
	}
	if err != nil {
		return fmt.Errorf("decode sound file: %w", err)
	}
	defer streamer.Close()

	if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
		return fmt.Errorf("init audio output: %w", err)
	}

	if loop {
		speaker.Play(beep.Loop(-1, streamer))
		select {} // killed by the parent
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		close(done)
	})))
	<-done
	return nil
}
