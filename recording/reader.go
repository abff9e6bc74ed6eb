package recording

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"github.com/gogpu/overdraw"
)

// Snapshot is one decoded line of the samples stream.
type Snapshot struct {
	Frame      uint64
	CapturedAt time.Time
	Stats      []overdraw.Stats
}

// Recording is a fully loaded session.
type Recording struct {
	Dir       string
	Manifest  Manifest
	Snapshots []Snapshot
	Frames    []Frame
}

// Load reads the session at path, either the directory or its manifest.
func Load(path string) (*Recording, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	manifestPath := path
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		manifestPath = filepath.Join(path, manifestFile)
	}
	dir := filepath.Dir(manifestPath)

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, err
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("recording: parse manifest: %w", err)
	}
	if manifest.Version != Version {
		return nil, fmt.Errorf("unsupported manifest version %d", manifest.Version)
	}

	snapshots, err := loadSnapshots(filepath.Join(dir, manifest.SamplesPath))
	if err != nil {
		return nil, err
	}
	frames, err := loadFrames(filepath.Join(dir, manifest.FramesPath))
	if err != nil {
		return nil, err
	}
	return &Recording{Dir: dir, Manifest: manifest, Snapshots: snapshots, Frames: frames}, nil
}

func loadSnapshots(path string) ([]Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(snappy.NewReader(file))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var out []Snapshot
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var line snapshotLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			return nil, fmt.Errorf("recording: parse snapshot: %w", err)
		}
		captured, err := time.Parse(time.RFC3339Nano, line.CapturedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, Snapshot{Frame: line.Frame, CapturedAt: captured, Stats: line.Stats})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func loadFrames(path string) ([]Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	dec, err := zstd.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []Frame
	var size [4]byte
	for {
		if _, err := io.ReadFull(dec, size[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("recording: read frame header: %w", err)
		}
		body := make([]byte, binary.LittleEndian.Uint32(size[:]))
		if _, err := io.ReadFull(dec, body); err != nil {
			return nil, fmt.Errorf("recording: read frame body: %w", err)
		}
		f, err := decodeFrame(body)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
}

// CameraSummary is the replay of one camera's frames.
type CameraSummary struct {
	Camera       overdraw.CameraID
	Frames       int
	Failed       int
	AverageRatio float64
	MaxRatio     float64
	Fragments    uint64
}

// Summary rebuilds per-camera statistics from the frame records, sorted by
// camera. Failed frames count but contribute no ratio.
func (r *Recording) Summary() []CameraSummary {
	byID := make(map[overdraw.CameraID]*CameraSummary)
	sums := make(map[overdraw.CameraID]float64)
	for _, f := range r.Frames {
		s, ok := byID[f.Camera]
		if !ok {
			s = &CameraSummary{Camera: f.Camera}
			byID[f.Camera] = s
		}
		if f.Failed {
			s.Failed++
			continue
		}
		s.Frames++
		s.Fragments += f.Fragments
		sums[f.Camera] += f.Ratio
		s.MaxRatio = max(s.MaxRatio, f.Ratio)
	}
	out := make([]CameraSummary, 0, len(byID))
	for id, s := range byID {
		if s.Frames > 0 {
			s.AverageRatio = sums[id] / float64(s.Frames)
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Camera < out[j].Camera })
	return out
}

// Last returns the final snapshot, or nil for an empty session.
func (r *Recording) Last() []overdraw.Stats {
	if len(r.Snapshots) == 0 {
		return nil
	}
	return r.Snapshots[len(r.Snapshots)-1].Stats
}
