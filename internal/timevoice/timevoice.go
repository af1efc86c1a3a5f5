// Package timevoice resolves "it is now H:MM" into playable audio.
//
// Synthesis itself is an external concern; the default implementation is a
// bank of pre-recorded hour/minute files on disk. A failed or incomplete
// lookup is an error the sequencer degrades around — the bell still rings.
package timevoice

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Teller resolves a clock time to an ordered list of playable handles.
// Implementations must respect ctx: lookups may sit in front of slow
// storage or a network service and must not stall the minute tick.
type Teller interface {
	TimeHandles(ctx context.Context, hour, minute int) ([]string, error)
}

// SoundBank reads pre-recorded announcement files from a directory laid out
// as hour_HH.<ext> and minute_MM.<ext> (asset naming from the stock install
// image). Both files must exist for the announcement to play.
type SoundBank struct {
	dir string
	ext string
}

func NewSoundBank(dir, ext string) *SoundBank {
	if ext == "" {
		ext = "wav"
	}
	return &SoundBank{dir: dir, ext: ext}
}

func (b *SoundBank) TimeHandles(ctx context.Context, hour, minute int) ([]string, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("timevoice: invalid time %02d:%02d", hour, minute)
	}
	paths := []string{
		filepath.Join(b.dir, fmt.Sprintf("hour_%02d.%s", hour, b.ext)),
		filepath.Join(b.dir, fmt.Sprintf("minute_%02d.%s", minute, b.ext)),
	}
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("timevoice: missing %s: %w", filepath.Base(p), err)
		}
	}
	return paths, nil
}

// TellerFunc adapts a function to Teller. Test helper.
type TellerFunc func(ctx context.Context, hour, minute int) ([]string, error)

func (f TellerFunc) TimeHandles(ctx context.Context, hour, minute int) ([]string, error) {
	return f(ctx, hour, minute)
}
