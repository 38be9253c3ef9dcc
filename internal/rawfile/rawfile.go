// Package rawfile reads capture files: headerless native-endian float64
// samples, interleaved frame by frame.
package rawfile

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"time"

	"github.com/go-audio/audio"
	"github.com/spf13/afero"

	"github.com/tphakala/rawrecord/internal/errors"
)

// BytesPerSample is the size of one stored sample.
const BytesPerSample = 8

// Reader decodes a raw capture stream into float buffers.
type Reader struct {
	r      *bufio.Reader
	format *audio.Format
	raw    []byte
}

// NewReader returns a Reader for a stream with the given layout.
func NewReader(r io.Reader, channels, sampleRate int) *Reader {
	return &Reader{
		r:      bufio.NewReader(r),
		format: &audio.Format{NumChannels: max(channels, 1), SampleRate: sampleRate},
	}
}

// Format returns the stream layout.
func (r *Reader) Format() *audio.Format { return r.format }

// PCMBuffer fills buf.Data with whole frames and returns the number of
// samples read. It returns 0 and no error at end of stream. A trailing
// partial frame is reported as io.ErrUnexpectedEOF.
func (r *Reader) PCMBuffer(buf *audio.FloatBuffer) (int, error) {
	buf.Format = r.format
	channels := r.format.NumChannels
	want := len(buf.Data) - len(buf.Data)%channels
	if want == 0 {
		return 0, nil
	}

	if need := want * BytesPerSample; cap(r.raw) < need {
		r.raw = make([]byte, need)
	}
	raw := r.raw[:want*BytesPerSample]

	n, err := io.ReadFull(r.r, raw)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, err
	}

	frameBytes := channels * BytesPerSample
	whole := n - n%frameBytes
	for i := 0; i < whole; i += BytesPerSample {
		buf.Data[i/BytesPerSample] = math.Float64frombits(binary.NativeEndian.Uint64(raw[i:]))
	}
	if whole != n {
		return whole / BytesPerSample, io.ErrUnexpectedEOF
	}
	return whole / BytesPerSample, nil
}

// ReadFile loads a whole capture file.
func ReadFile(fs afero.Fs, path string, channels, sampleRate int) (*audio.FloatBuffer, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return nil, errors.New(err).
			Component("rawfile").
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Build()
	}

	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("rawfile").
			Category(errors.CategoryFileIO).
			FileContext(path, info.Size()).
			Build()
	}
	defer f.Close()

	r := NewReader(f, channels, sampleRate)
	buf := &audio.FloatBuffer{Data: make([]float64, info.Size()/BytesPerSample)}
	n, err := r.PCMBuffer(buf)
	if err != nil {
		return nil, errors.New(err).
			Component("rawfile").
			Category(errors.CategoryFileParsing).
			FileContext(path, info.Size()).
			Context("channels", channels).
			Build()
	}
	buf.Data = buf.Data[:n]
	return buf, nil
}

// Summary describes the content of a capture.
type Summary struct {
	Channels int
	Frames   int
	Duration time.Duration
	Peak     []float64
	RMS      []float64
	// Clipped counts samples with magnitude >= 1.
	Clipped []int
}

// Analyze reads r to the end in chunks of chunkFrames frames and summarizes it.
func Analyze(r *Reader, chunkFrames int) (Summary, error) {
	channels := r.Format().NumChannels
	s := Summary{
		Channels: channels,
		Peak:     make([]float64, channels),
		RMS:      make([]float64, channels),
		Clipped:  make([]int, channels),
	}
	sumSquares := make([]float64, channels)

	buf := &audio.FloatBuffer{Data: make([]float64, max(chunkFrames, 1)*channels)}
	for {
		n, err := r.PCMBuffer(buf)
		for i, v := range buf.Data[:n] {
			ch := i % channels
			a := math.Abs(v)
			s.Peak[ch] = max(s.Peak[ch], a)
			sumSquares[ch] += v * v
			if a >= 1 {
				s.Clipped[ch]++
			}
		}
		s.Frames += n / channels

		if err != nil {
			return s, errors.New(err).
				Component("rawfile").
				Category(errors.CategoryFileParsing).
				Context("frames_read", s.Frames).
				Build()
		}
		if n == 0 {
			break
		}
	}

	if s.Frames > 0 {
		for ch := range channels {
			s.RMS[ch] = math.Sqrt(sumSquares[ch] / float64(s.Frames))
		}
	}
	if rate := r.Format().SampleRate; rate > 0 {
		s.Duration = time.Duration(s.Frames) * time.Second / time.Duration(rate)
	}
	return s, nil
}

// DBFS converts a linear level to decibels relative to full scale.
func DBFS(level float64) float64 {
	if level <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(level)
}
