package persistence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	archiveVersion = 1
	archiveExt     = ".json.zst"
)

// ArchiveHeader is the first line of every archive.
type ArchiveHeader struct {
	Version int       `json:"version"`
	Agent   string    `json:"agent"`
	SavedAt time.Time `json:"saved_at"`
}

// Export writes st as a zstd-compressed archive in dir and returns its path.
func Export(dir, agent string, st State) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if st.SavedAt.IsZero() {
		st.SavedAt = time.Now()
	}
	name := fmt.Sprintf("%s-%s%s", strings.ToLower(agent), st.SavedAt.UTC().Format("20060102T150405.000"), archiveExt)
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return "", err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, _ := json.Marshal(ArchiveHeader{Version: archiveVersion, Agent: agent, SavedAt: st.SavedAt})
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		enc.Close()
		return "", err
	}
	if err := json.NewEncoder(bw).Encode(&st); err != nil {
		enc.Close()
		return "", fmt.Errorf("json encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return path, f.Close()
}

// Import reads an archive written by Export.
func Import(path string) (ArchiveHeader, State, error) {
	var (
		hdr ArchiveHeader
		st  State
	)
	f, err := os.Open(path)
	if err != nil {
		return hdr, st, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return hdr, st, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return hdr, st, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &hdr); err != nil {
		return hdr, st, fmt.Errorf("decode header: %w", err)
	}
	if hdr.Version != archiveVersion {
		return hdr, st, fmt.Errorf("unsupported archive version %d", hdr.Version)
	}
	if err := json.NewDecoder(br).Decode(&st); err != nil {
		return hdr, st, fmt.Errorf("json decode: %w", err)
	}
	return hdr, st, nil
}

// Latest returns the newest archive in dir, or "" when there is none.
func Latest(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+archiveExt))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", nil
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}
