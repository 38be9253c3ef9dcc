package audiosource

import (
	"encoding/binary"
	"math"
)

// BlockSink receives de-interleaved sample blocks. *recorder.Session
// satisfies it.
type BlockSink interface {
	AcceptBlock(block [][]float64, frames int)
}

// bytesPerF32 is the size of one captured sample.
const bytesPerF32 = 4

// Deinterleaver splits interleaved native-endian float32 frames into one
// float64 slice per channel. Its buffers are allocated once, so Process is
// safe to call from the device callback.
type Deinterleaver struct {
	channels int
	block    [][]float64
}

// NewDeinterleaver returns a Deinterleaver for channels that hands out at most
// maxFrames frames per block. Longer callbacks are split.
func NewDeinterleaver(channels, maxFrames int) *Deinterleaver {
	channels = max(channels, 1)
	maxFrames = max(maxFrames, 1)

	block := make([][]float64, channels)
	for ch := range block {
		block[ch] = make([]float64, maxFrames)
	}
	return &Deinterleaver{channels: channels, block: block}
}

// Process converts the first frames frames of data and delivers them to sink.
// frames is clamped to what data holds. It returns the number of frames delivered.
func (d *Deinterleaver) Process(data []byte, frames int, sink BlockSink) int {
	frameBytes := d.channels * bytesPerF32
	frames = min(frames, len(data)/frameBytes)
	maxFrames := len(d.block[0])

	done := 0
	for done < frames {
		n := min(frames-done, maxFrames)
		off := done * frameBytes
		for i := range n {
			for ch := range d.channels {
				bits := binary.NativeEndian.Uint32(data[off:])
				d.block[ch][i] = float64(math.Float32frombits(bits))
				off += bytesPerF32
			}
		}
		sink.AcceptBlock(d.block, n)
		done += n
	}
	return done
}
