package badger

import (
	"encoding/binary"
	"time"
)

const (
	paperPrefix          = "paper:"
	paperPublishedPrefix = "paperpub:"
	checkpointSuffix     = ":chkpt"
)

// makePaperKey generates a key for a paper by arXiv id.
func makePaperKey(id string) []byte {
	return append([]byte(paperPrefix), id...)
}

// makePublishedKey generates a composite key for the publication index.
// Format: prefix:timestamp:id
func makePublishedKey(published time.Time, id string) []byte {
	prefixBytes := []byte(paperPublishedPrefix)
	buf := make([]byte, len(prefixBytes)+8+len(id))
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	// Pre-epoch and zero times sort as the oldest entries.
	binary.BigEndian.PutUint64(buf[offset:], uint64(max(published.UnixMicro(), 0)))
	offset += 8
	copy(buf[offset:], id)
	return buf
}

// makePublishedSeekKey returns a key that sorts after every publication index entry.
func makePublishedSeekKey() []byte {
	prefixBytes := []byte(paperPublishedPrefix)
	buf := make([]byte, len(prefixBytes)+9)
	offset := copy(buf, prefixBytes)
	for i := offset; i < len(buf); i++ {
		buf[i] = 0xFF
	}
	return buf
}

// makeCheckpointKey generates a key for job checkpoints.
func makeCheckpointKey(job string) []byte {
	return []byte(job + checkpointSuffix)
}
