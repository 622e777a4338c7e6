package server

import "testing"

func frameWithAmplitude(a float32) []float32 {
	frame := make([]float32, 256)
	for i := range frame {
		frame[i] = a
	}
	return frame
}

func TestUtteranceDetector_Boundary(t *testing.T) {
	d := newUtteranceDetector()
	loud := frameWithAmplitude(0.5)
	quiet := frameWithAmplitude(0)

	// Leading silence produces nothing.
	for i := 0; i < 5; i++ {
		if speech, boundary := d.Feed(quiet); speech || boundary {
			t.Fatalf("silence before speech: speech=%v boundary=%v", speech, boundary)
		}
	}

	for i := 0; i < 3; i++ {
		speech, boundary := d.Feed(loud)
		if !speech || boundary {
			t.Fatalf("voiced frame %d: speech=%v boundary=%v", i, speech, boundary)
		}
	}

	// First silent frame is hangover, second closes the utterance.
	if speech, boundary := d.Feed(quiet); speech || boundary {
		t.Fatalf("first silent frame: speech=%v boundary=%v", speech, boundary)
	}
	if speech, boundary := d.Feed(quiet); speech || !boundary {
		t.Fatalf("second silent frame: speech=%v boundary=%v, want boundary", speech, boundary)
	}

	// After the boundary, more silence is inert.
	if _, boundary := d.Feed(quiet); boundary {
		t.Fatal("boundary reported twice")
	}
}

func TestUtteranceDetector_Flush(t *testing.T) {
	d := newUtteranceDetector()
	if d.Flush() {
		t.Error("Flush without speech should not report a boundary")
	}
	d.Feed(frameWithAmplitude(0.5))
	if !d.Flush() {
		t.Error("Flush with open speech should report a boundary")
	}
	if d.Flush() {
		t.Error("second Flush should be inert")
	}
}

func TestRMS(t *testing.T) {
	if got := rms(nil); got != 0 {
		t.Errorf("rms(nil) = %v, want 0", got)
	}
	if got := rms(frameWithAmplitude(0.5)); got < 0.49 || got > 0.51 {
		t.Errorf("rms of constant 0.5 = %v, want ~0.5", got)
	}
}
