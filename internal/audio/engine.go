package audio

import (
	"fmt"
	"io"
	"math/cmplx"
	"sync"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/dsp/fourier"
)

// fftWindow is the number of recent samples feeding the frequency snapshot,
// yielding fftWindow/2 magnitude bins.
const fftWindow = 256

// Engine turns a Source into a stream of transmittable chunks. While
// capturing it reads fixed-size frames, converts each one synchronously to
// PCM16 + base64 and invokes the chunk callback in strict frame order. One
// Engine covers a single start/stop cycle of the underlying input.
type Engine struct {
	src    Source
	logger *log.Logger

	mu        sync.Mutex
	capturing bool
	done      chan struct{}
	finished  chan struct{}
	wg        sync.WaitGroup

	specMu sync.Mutex
	recent []float32
	fft    *fourier.FFT
}

func NewEngine(src Source, logger *log.Logger) *Engine {
	return &Engine{
		src:    src,
		logger: logger,
		fft:    fourier.NewFFT(fftWindow),
	}
}

// Start acquires the source and begins producing chunks. onChunk is invoked
// once per frame, in capture order, before the next frame is read. Fails
// with ErrAcquisitionDenied (wrapped) when the input cannot be acquired; on
// failure nothing is left held.
func (e *Engine) Start(onChunk func(chunk string)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.capturing {
		return fmt.Errorf("capture already running")
	}

	if err := e.src.Start(); err != nil {
		return fmt.Errorf("acquire audio input: %w", err)
	}

	e.capturing = true
	e.done = make(chan struct{})
	e.finished = make(chan struct{})
	e.wg.Add(1)
	go e.pump(onChunk, e.done, e.finished)
	return nil
}

func (e *Engine) pump(onChunk func(string), done, finished chan struct{}) {
	defer e.wg.Done()
	defer close(finished)

	frame := make([]float32, FrameSize)
	for {
		select {
		case <-done:
			return
		default:
		}

		if err := e.src.ReadFrame(frame); err != nil {
			if err != io.EOF {
				e.logger.Warn("audio source read failed", "err", err)
			}
			return
		}

		e.specMu.Lock()
		if e.recent == nil {
			e.recent = make([]float32, fftWindow)
		}
		copy(e.recent, frame[len(frame)-fftWindow:])
		e.specMu.Unlock()

		// Checked again after the blocking read so a frame in flight at
		// Stop time is not delivered.
		select {
		case <-done:
			return
		default:
		}
		onChunk(EncodeFrame(frame))
	}
}

// Stop halts capture and releases the source. Idempotent, and safe to call
// before Start ever succeeded. When Stop returns, no further onChunk
// invocations will occur.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.capturing {
		e.mu.Unlock()
		return
	}
	e.capturing = false
	close(e.done)
	e.mu.Unlock()

	_ = e.src.Stop()
	e.wg.Wait()

	e.specMu.Lock()
	e.recent = nil
	e.specMu.Unlock()
}

// Capturing reports whether the engine is currently producing chunks.
func (e *Engine) Capturing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.capturing
}

// Done returns a channel closed when the pump exits, either because Stop was
// called or because the source drained. Callers use it to resolve the end of
// a one-shot source such as a WAV file.
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.finished == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return e.finished
}

// FrequencySnapshot returns the current magnitude spectrum of the most
// recent samples as fftWindow/2 bytes, for visualization only. Empty when
// not capturing.
func (e *Engine) FrequencySnapshot() []byte {
	e.specMu.Lock()
	defer e.specMu.Unlock()
	if e.recent == nil {
		return []byte{}
	}

	seq := make([]float64, fftWindow)
	for i, s := range e.recent {
		seq[i] = float64(s)
	}
	coeffs := e.fft.Coefficients(nil, seq)

	out := make([]byte, fftWindow/2)
	for i := range out {
		mag := cmplx.Abs(coeffs[i]) / (fftWindow / 2)
		if mag > 1 {
			mag = 1
		}
		out[i] = byte(mag * 255)
	}
	return out
}
