// Package recording persists measurement sessions and reads them back.
//
// A session is a directory holding:
//
//	manifest.json       session metadata and file names
//	samples.jsonl.sz    one JSON registry snapshot per line, snappy framed
//	frames.bin.zst      length-prefixed per-camera frame records, zstd
//
// Snapshots carry the aggregated statistics; frame records carry every
// measurement including failures, so a replay can rebuild any statistic.
package recording

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"github.com/gogpu/overdraw"
)

// Version is the manifest format version written by this package.
const Version = 1

const (
	manifestFile = "manifest.json"
	samplesFile  = "samples.jsonl.sz"
	framesFile   = "frames.bin.zst"
)

var nameCleaner = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// ErrClosed is returned when appending to a closed writer.
var ErrClosed = errors.New("recording: writer closed")

// Manifest describes a session directory.
type Manifest struct {
	Version        int    `json:"version"`
	CreatedAt      string `json:"created_at"`
	Backend        string `json:"backend"`
	ScreenWidth    int    `json:"screen_width"`
	ScreenHeight   int    `json:"screen_height"`
	SamplePeriodMs int64  `json:"sample_period_ms"`
	SamplesPath    string `json:"samples_path"`
	FramesPath     string `json:"frames_path"`
}

// Session is the metadata a writer stamps into the manifest.
type Session struct {
	Name         string
	Backend      string
	ScreenWidth  int
	ScreenHeight int
	SamplePeriod time.Duration
}

// Writer streams a session to disk. It is safe for concurrent use.
type Writer struct {
	mu         sync.Mutex
	dir        string
	now        func() time.Time
	sampleFile *os.File
	samples    *snappy.Writer
	frameFile  *os.File
	frames     *zstd.Encoder
	frameBuf   []byte
	closed     bool
}

// NewWriter creates a session directory under root and opens its streams.
// A nil clock uses time.Now.
func NewWriter(root string, s Session, clock func() time.Time) (*Writer, Manifest, error) {
	if root == "" {
		return nil, Manifest{}, fmt.Errorf("recording root must be provided")
	}
	if clock == nil {
		clock = time.Now
	}

	name := nameCleaner.ReplaceAllString(s.Name, "")
	if name == "" {
		name = "session"
	}
	created := clock().UTC()
	dir := filepath.Join(root, fmt.Sprintf("%s-%s", name, created.Format("20060102T150405Z")))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, Manifest{}, err
	}

	manifest := Manifest{
		Version:        Version,
		CreatedAt:      created.Format(time.RFC3339Nano),
		Backend:        s.Backend,
		ScreenWidth:    s.ScreenWidth,
		ScreenHeight:   s.ScreenHeight,
		SamplePeriodMs: s.SamplePeriod.Milliseconds(),
		SamplesPath:    samplesFile,
		FramesPath:     framesFile,
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, Manifest{}, err
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFile), data, 0o644); err != nil {
		return nil, Manifest{}, err
	}

	sampleFile, err := os.Create(filepath.Join(dir, samplesFile))
	if err != nil {
		return nil, Manifest{}, err
	}
	frameFile, err := os.Create(filepath.Join(dir, framesFile))
	if err != nil {
		sampleFile.Close()
		return nil, Manifest{}, err
	}
	frames, err := zstd.NewWriter(frameFile)
	if err != nil {
		sampleFile.Close()
		frameFile.Close()
		return nil, Manifest{}, err
	}

	w := &Writer{
		dir:        dir,
		now:        clock,
		sampleFile: sampleFile,
		samples:    snappy.NewBufferedWriter(sampleFile),
		frameFile:  frameFile,
		frames:     frames,
	}
	return w, manifest, nil
}

// Dir returns the session directory.
func (w *Writer) Dir() string {
	if w == nil {
		return ""
	}
	return w.dir
}

// snapshotLine is one line of the samples stream.
type snapshotLine struct {
	Frame      uint64           `json:"frame"`
	CapturedAt string           `json:"captured_at"`
	Stats      []overdraw.Stats `json:"stats"`
}

// AppendSnapshot writes the registry snapshot taken after frame.
func (w *Writer) AppendSnapshot(frame uint64, stats []overdraw.Stats) error {
	captured := w.now().UTC()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	line, err := json.Marshal(snapshotLine{
		Frame:      frame,
		CapturedAt: captured.Format(time.RFC3339Nano),
		Stats:      stats,
	})
	if err != nil {
		return err
	}
	line = append(line, '\n')
	if _, err := w.samples.Write(line); err != nil {
		return err
	}
	return w.samples.Flush()
}

// AppendFrame writes one record per report of frame.
func (w *Writer) AppendFrame(frame uint64, reports []overdraw.FrameReport) error {
	captured := w.now().UTC()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	for _, r := range reports {
		w.frameBuf = encodeFrame(w.frameBuf[:0], Frame{
			Frame:      frame,
			CapturedAt: captured,
			Camera:     r.Camera,
			Fragments:  r.Result.Fragments,
			Ratio:      r.Result.Ratio,
			Width:      r.Result.Width,
			Height:     r.Result.Height,
			Failed:     r.Err != nil,
		})
		if _, err := w.frames.Write(w.frameBuf); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and closes both streams, reporting the first failure.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	var firstErr error
	if err := w.samples.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.sampleFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.frames.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.frameFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Frame is one camera's measurement in one frame.
type Frame struct {
	Frame      uint64
	CapturedAt time.Time
	Camera     overdraw.CameraID
	Fragments  uint64
	Ratio      float64
	Width      int
	Height     int
	Failed     bool
}

// Record layout, little endian:
//
//	u32 body length
//	u64 frame, i64 unix nanos, u64 fragments, f64 ratio
//	u32 width, u32 height, u8 failed
//	u16 camera length, camera bytes
const frameFixed = 8 + 8 + 8 + 8 + 4 + 4 + 1 + 2

func encodeFrame(buf []byte, f Frame) []byte {
	id := []byte(f.Camera)
	if len(id) > math.MaxUint16 {
		id = id[:math.MaxUint16]
	}
	body := frameFixed + len(id)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(body)) //nolint:gosec // bounded above
	buf = binary.LittleEndian.AppendUint64(buf, f.Frame)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(f.CapturedAt.UnixNano())) //nolint:gosec // round-trips through int64
	buf = binary.LittleEndian.AppendUint64(buf, f.Fragments)
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(f.Ratio))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(f.Width))  //nolint:gosec // pixel sizes are small
	buf = binary.LittleEndian.AppendUint32(buf, uint32(f.Height)) //nolint:gosec // pixel sizes are small
	failed := byte(0)
	if f.Failed {
		failed = 1
	}
	buf = append(buf, failed)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(id))) //nolint:gosec // bounded above
	return append(buf, id...)
}

func decodeFrame(body []byte) (Frame, error) {
	if len(body) < frameFixed {
		return Frame{}, fmt.Errorf("recording: frame record too short (%d bytes)", len(body))
	}
	le := binary.LittleEndian
	f := Frame{
		Frame:      le.Uint64(body[0:8]),
		CapturedAt: time.Unix(0, int64(le.Uint64(body[8:16]))).UTC(), //nolint:gosec // written from int64
		Fragments:  le.Uint64(body[16:24]),
		Ratio:      math.Float64frombits(le.Uint64(body[24:32])),
		Width:      int(le.Uint32(body[32:36])),
		Height:     int(le.Uint32(body[36:40])),
		Failed:     body[40] == 1,
	}
	n := int(le.Uint16(body[41:43]))
	if len(body) != frameFixed+n {
		return Frame{}, fmt.Errorf("recording: camera id length %d does not match record", n)
	}
	f.Camera = overdraw.CameraID(body[frameFixed:])
	return f, nil
}
