package store

import (
	"os"
	"path/filepath"
	"time"

	"parla/encoder"
	"parla/log"
)

// Archive writes one FLAC file per scored attempt. Like the database it is
// best-effort: a failed write is logged and dropped.
type Archive struct {
	Dir     string
	Enabled bool
}

// TrySave compresses the raw PCM clip and writes it under the archive
// directory. Returns the written path, or "" when archiving is disabled or
// the write failed.
func (a *Archive) TrySave(pcm []byte, ts time.Time) string {
	if a == nil || !a.Enabled || len(pcm) == 0 {
		return ""
	}
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		log.Warnf("attempt archive dropped: %v", err)
		return ""
	}
	data, err := encoder.EncodeFlac(pcm)
	if err != nil {
		log.Warnf("attempt archive dropped: %v", err)
		return ""
	}
	path := filepath.Join(a.Dir, "attempt_"+ts.Format("20060102_150405")+".flac")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Warnf("attempt archive dropped: %v", err)
		return ""
	}
	return path
}
