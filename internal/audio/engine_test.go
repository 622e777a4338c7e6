package audio

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

// fakeSource produces a fixed number of frames with a recognizable ramp so
// ordering is observable, then drains.
type fakeSource struct {
	frames int

	mu      sync.Mutex
	started bool
	stopped int
	served  int
}

func (f *fakeSource) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return nil
}

func (f *fakeSource) ReadFrame(frame []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.started {
		return errors.New("not started")
	}
	if f.served >= f.frames {
		return io.EOF
	}
	// Tag every sample of frame n with n/1000 so chunks are distinguishable.
	v := float32(f.served) / 1000
	for i := range frame {
		frame[i] = v
	}
	f.served++
	return nil
}

func (f *fakeSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = false
	f.stopped++
	return nil
}

type deniedSource struct{}

func (deniedSource) Start() error                { return fmt.Errorf("%w: permission declined", ErrAcquisitionDenied) }
func (deniedSource) ReadFrame([]float32) error   { return io.EOF }
func (deniedSource) Stop() error                 { return nil }

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestEngine_ChunksInFrameOrder(t *testing.T) {
	src := &fakeSource{frames: 5}
	e := NewEngine(src, testLogger())

	var mu sync.Mutex
	var chunks []string
	err := e.Start(func(chunk string) {
		mu.Lock()
		chunks = append(chunks, chunk)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case <-e.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not drain the source")
	}
	e.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(chunks) != 5 {
		t.Fatalf("got %d chunks, want 5", len(chunks))
	}
	for i, chunk := range chunks {
		frame, err := DecodeChunk(chunk)
		if err != nil {
			t.Fatalf("chunk %d: %v", i, err)
		}
		want := pcm16(float32(i) / 1000)
		got := pcm16(frame[0])
		if got != want {
			t.Errorf("chunk %d carries frame tag %d, want %d (out of order?)", i, got, want)
		}
	}
}

func TestEngine_StartAcquisitionDenied(t *testing.T) {
	e := NewEngine(deniedSource{}, testLogger())
	err := e.Start(func(string) {})
	if err == nil {
		t.Fatal("Start() expected error")
	}
	if !errors.Is(err, ErrAcquisitionDenied) {
		t.Errorf("Start() error = %v, want ErrAcquisitionDenied", err)
	}
	// Nothing acquired, Stop must still be safe.
	e.Stop()
}

func TestEngine_StopIdempotent(t *testing.T) {
	src := &fakeSource{frames: 1000000}
	e := NewEngine(src, testLogger())

	// Stop before Start ever succeeded.
	e.Stop()

	if err := e.Start(func(string) {}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	e.Stop()
	e.Stop()
	e.Stop()

	src.mu.Lock()
	defer src.mu.Unlock()
	if src.started {
		t.Error("source still held after Stop")
	}
}

func TestEngine_NoChunksAfterStop(t *testing.T) {
	src := &fakeSource{frames: 1000000}
	e := NewEngine(src, testLogger())

	var mu sync.Mutex
	count := 0
	if err := e.Start(func(string) {
		mu.Lock()
		count++
		mu.Unlock()
	}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Let a few frames through, then stop.
	deadline := time.After(5 * time.Second)
	for {
		mu.Lock()
		n := count
		mu.Unlock()
		if n >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no chunks produced")
		case <-time.After(time.Millisecond):
		}
	}

	e.Stop()
	mu.Lock()
	after := count
	mu.Unlock()

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	final := count
	mu.Unlock()
	if final != after {
		t.Errorf("chunk callback fired %d times after Stop returned", final-after)
	}
}

func TestEngine_FrequencySnapshot(t *testing.T) {
	src := &fakeSource{frames: 1000000}
	e := NewEngine(src, testLogger())

	if got := e.FrequencySnapshot(); len(got) != 0 {
		t.Errorf("snapshot before capture = %d bytes, want empty", len(got))
	}

	started := make(chan struct{})
	var once sync.Once
	if err := e.Start(func(string) {
		once.Do(func() { close(started) })
	}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("no chunks produced")
	}

	if got := e.FrequencySnapshot(); len(got) != fftWindow/2 {
		t.Errorf("snapshot during capture = %d bytes, want %d", len(got), fftWindow/2)
	}

	e.Stop()
	if got := e.FrequencySnapshot(); len(got) != 0 {
		t.Errorf("snapshot after Stop = %d bytes, want empty", len(got))
	}
}

func TestEngine_RestartAfterDenied(t *testing.T) {
	src := &fakeSource{frames: 2}
	e := NewEngine(src, testLogger())
	if err := e.Start(func(string) {}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := e.Start(func(string) {}); err == nil {
		t.Error("second Start() while capturing should fail")
	}
	e.Stop()
}
