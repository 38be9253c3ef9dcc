// Package recorder captures blocks of multi-channel float64 audio into a raw
// sample file without blocking the real-time audio callback.
//
// A Session owns a power-of-two ring buffer split into two halves. The audio
// callback calls AcceptBlock, which interleaves samples at the head of the
// ring and, whenever a half fills up, queues a flush of that half. A single
// writer goroutine drains the queue in order and appends each half to the
// open file, so the callback only ever touches the half that is not being
// written out.
//
// The file is headerless: interleaved native-endian float64 samples, frame
// major and channel minor. Open, Start and Stop drive the capture; Stop
// writes whatever is left in the ring, truncates the file to the bytes
// written and reports totals through the Notifier.
package recorder
