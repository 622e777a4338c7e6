package server

import "math"

// Default utterance detection parameters. A frame is voiced when its RMS
// energy exceeds the threshold; an utterance closes after hangover
// consecutive silent frames following speech.
const (
	defaultEnergyThreshold = 0.015
	defaultHangoverFrames  = 2
)

// utteranceDetector segments an audio chunk stream into utterances by
// energy. It is deliberately simple: the dev server only needs a plausible
// boundary to drive the partial/result message sequence.
type utteranceDetector struct {
	threshold float64
	hangover  int

	inSpeech bool
	silent   int
	voiced   int
}

func newUtteranceDetector() *utteranceDetector {
	return &utteranceDetector{
		threshold: defaultEnergyThreshold,
		hangover:  defaultHangoverFrames,
	}
}

// Feed consumes one frame. speech reports whether the frame is voiced;
// boundary reports that an utterance just ended with this frame.
func (d *utteranceDetector) Feed(frame []float32) (speech, boundary bool) {
	voiced := rms(frame) >= d.threshold

	if voiced {
		d.inSpeech = true
		d.silent = 0
		d.voiced++
		return true, false
	}

	if !d.inSpeech {
		return false, false
	}
	d.silent++
	if d.silent >= d.hangover {
		d.inSpeech = false
		d.silent = 0
		d.voiced = 0
		return false, true
	}
	return false, false
}

// Flush closes a speech run left open by the end of the stream.
func (d *utteranceDetector) Flush() (boundary bool) {
	open := d.inSpeech
	d.inSpeech = false
	d.silent = 0
	d.voiced = 0
	return open
}

func rms(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(frame)))
}
