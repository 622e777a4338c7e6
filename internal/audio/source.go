package audio

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// ErrAcquisitionDenied is returned by Source.Start when the input capability
// is unavailable or access was declined. It is not retried.
var ErrAcquisitionDenied = errors.New("audio input unavailable")

var errSourceClosed = errors.New("audio source closed")

// errSourceDrained signals a source that produced its final frame.
var errSourceDrained = io.EOF

// Source is the capability interface over a microphone-like input. One
// implementation exists per target environment; the rest of the system only
// sees normalized sample frames.
type Source interface {
	// Start acquires the underlying input. On failure no resources are held.
	Start() error
	// ReadFrame fills frame with the next samples at the capture cadence.
	// Returns io.EOF when the source is exhausted.
	ReadFrame(frame []float32) error
	// Stop releases everything Start acquired. Idempotent.
	Stop() error
}

// ReaderSource adapts a raw little-endian PCM16 mono stream (for example
// stdin fed by arecord) into a Source.
type ReaderSource struct {
	R io.Reader
	// Realtime paces ReadFrame at the frame duration.
	Realtime bool

	mu   sync.Mutex
	open bool
	next time.Time
	buf  []byte
}

func (r *ReaderSource) Start() error {
	if r.R == nil {
		return fmt.Errorf("%w: no input stream", ErrAcquisitionDenied)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open = true
	r.next = time.Now()
	return nil
}

func (r *ReaderSource) ReadFrame(frame []float32) error {
	r.mu.Lock()
	if !r.open {
		r.mu.Unlock()
		return errSourceClosed
	}
	if len(r.buf) < len(frame)*2 {
		r.buf = make([]byte, len(frame)*2)
	}
	buf := r.buf[:len(frame)*2]
	realtime := r.Realtime
	wait := time.Until(r.next)
	r.next = r.next.Add(time.Duration(len(frame)) * time.Second / SampleRate)
	r.mu.Unlock()

	n, err := io.ReadFull(r.R, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return err
	}
	// Zero-pad a short final read.
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	for i := range frame {
		frame[i] = sample(int16(uint16(buf[i*2]) | uint16(buf[i*2+1])<<8))
	}
	if realtime && wait > 0 {
		time.Sleep(wait)
	}
	return nil
}

func (r *ReaderSource) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open = false
	return nil
}
