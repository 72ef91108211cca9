// SPDX-License-Identifier: MIT
package analysis

import (
	"beatmap/internal/audio"
	"beatmap/internal/fft"
	"beatmap/internal/onset"
	"beatmap/internal/transport"
	"beatmap/pkg/utils"
	"context"
	"errors"
	"iter"
	"math"
	"testing"
)

const testSampleRate = 44100

func sliceSource(t *testing.T, samples []float64, channels int) *audio.SliceSource {
	t.Helper()
	src, err := audio.NewSliceSource(samples, testSampleRate, channels)
	if err != nil {
		t.Fatalf("NewSliceSource: %v", err)
	}
	return src
}

// failingSource yields good frames and then a read error.
type failingSource struct {
	good int
	err  error
}

func (s *failingSource) Format() audio.Format {
	return audio.Format{SampleRate: testSampleRate, Channels: 1}
}

func (s *failingSource) Frames(frameSize int) iter.Seq2[[]float64, error] {
	return func(yield func([]float64, error) bool) {
		for range s.good {
			if !yield(make([]float64, frameSize), nil) {
				return
			}
		}
		yield(nil, s.err)
	}
}

func (s *failingSource) Close() error { return nil }

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
		valid  bool
	}{
		{"Defaults", func(*Options) {}, true},
		{"Frame size not power of two", func(o *Options) { o.FrameSize = 1000 }, false},
		{"Frame size too small", func(o *Options) { o.FrameSize = 1 }, false},
		{"Zero sensitivity", func(o *Options) { o.Sensitivity = 0 }, false},
		{"Negative span", func(o *Options) { o.ThresholdTimeSpan = -1 }, false},
		{"NaN sensitivity", func(o *Options) { o.Sensitivity = math.NaN() }, false},
		{"Infinite sensitivity", func(o *Options) { o.Sensitivity = math.Inf(1) }, false},
		{"NaN span", func(o *Options) { o.ThresholdTimeSpan = math.NaN() }, false},
		{"Infinite span", func(o *Options) { o.ThresholdTimeSpan = math.Inf(1) }, false},
		{"Huge finite span", func(o *Options) { o.ThresholdTimeSpan = 1e300 }, true},
		{"Bad sign", func(o *Options) { o.Convention = fft.Convention{A: 0, B: 2} }, false},
		{"Signal processing", func(o *Options) { o.Convention = fft.SignalProcessing }, true},
		{"Unknown normalization", func(o *Options) { o.Normalization = onset.Normalization(9) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.modify(&opts)
			if err := opts.Validate(); (err == nil) != tt.valid {
				t.Errorf("Validate() = %v, valid = %v", err, tt.valid)
			}
		})
	}
}

func TestRunHugeThresholdSpan(t *testing.T) {
	opts := DefaultOptions()
	opts.ThresholdTimeSpan = 1e300
	src := sliceSource(t, utils.GenerateImpulseTrain(2, 0.5, testSampleRate), 1)

	result, err := Run(context.Background(), src, opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for i, v := range result.Onsets {
		if v < 0 || math.IsNaN(v) {
			t.Errorf("onset[%d] = %g, want finite non-negative", i, v)
		}
	}
}

func TestRunRejectsNonFinite(t *testing.T) {
	for _, modify := range []func(*Options){
		func(o *Options) { o.Sensitivity = math.NaN() },
		func(o *Options) { o.ThresholdTimeSpan = math.Inf(1) },
		func(o *Options) { o.ThresholdTimeSpan = math.NaN() },
	} {
		opts := DefaultOptions()
		modify(&opts)
		src := sliceSource(t, utils.GenerateImpulseTrain(2, 0.5, testSampleRate), 1)
		if _, err := Run(context.Background(), src, opts); err == nil {
			t.Errorf("Run(%+v) succeeded, want a validation error", opts)
		}
	}
}

func TestRunInvalidFrameSize(t *testing.T) {
	opts := DefaultOptions()
	opts.FrameSize = 1000

	_, err := Run(context.Background(), sliceSource(t, nil, 1), opts)
	if !errors.Is(err, fft.ErrInvalidSize) {
		t.Errorf("error = %v, want ErrInvalidSize", err)
	}
}

func TestRunSilence(t *testing.T) {
	src := sliceSource(t, utils.GenerateSilence(2, testSampleRate), 1)

	result, err := Run(context.Background(), src, DefaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantFrames := int(math.Ceil(2 * testSampleRate / float64(DefaultFrameSize)))
	if result.Frames() != wantFrames || len(result.Onsets) != wantFrames {
		t.Errorf("frames = %d/%d, want %d", result.Frames(), len(result.Onsets), wantFrames)
	}
	if events := result.Events(); len(events) != 0 {
		t.Errorf("silence produced events %v", events)
	}
}

func TestRunImpulseTrain(t *testing.T) {
	tests := []struct {
		name     string
		channels int
		samples  func() []float64
	}{
		{"Mono", 1, func() []float64 {
			return utils.GenerateImpulseTrain(2, 0.5, testSampleRate)
		}},
		{"Stereo", 2, func() []float64 {
			train := utils.GenerateImpulseTrain(2, 0.5, testSampleRate)
			return utils.Interleave(train, train)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Run(context.Background(), sliceSource(t, tt.samples(), tt.channels), DefaultOptions())
			if err != nil {
				t.Fatalf("Run: %v", err)
			}

			events := result.Events()
			want := []int{21, 43, 64}
			if len(events) != len(want) {
				t.Fatalf("events = %v, want indices %v", events, want)
			}
			for i, e := range events {
				if e.Index != want[i] {
					t.Errorf("event %d at frame %d, want %d", i, e.Index, want[i])
				}
				target := float64(i+1) * 0.5
				if math.Abs(e.Time-target) > result.TimePerFrame {
					t.Errorf("event %d at %.4fs, more than a frame from %.1fs", i, e.Time, target)
				}
				if e.Strength <= 0 {
					t.Errorf("event %d strength %g", i, e.Strength)
				}
			}
		})
	}
}

func TestRunNormalizes(t *testing.T) {
	opts := DefaultOptions()
	opts.Normalization = onset.MaxScale

	result, err := Run(context.Background(), sliceSource(t, utils.GenerateImpulseTrain(2, 0.5, testSampleRate), 1), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	maxStrength := 0.0
	for _, e := range result.Events() {
		maxStrength = math.Max(maxStrength, e.Strength)
	}
	if maxStrength != 1 {
		t.Errorf("max strength = %g, want 1", maxStrength)
	}
	if result.Normalization != onset.MaxScale {
		t.Errorf("normalization = %v", result.Normalization)
	}
}

func TestRunTiming(t *testing.T) {
	result, err := Run(context.Background(), sliceSource(t, make([]float64, 4096), 1), DefaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	tpf := float64(DefaultFrameSize) / testSampleRate
	if result.TimePerFrame != tpf {
		t.Errorf("TimePerFrame = %g, want %g", result.TimePerFrame, tpf)
	}
	if result.TimeAt(3) != 3*tpf {
		t.Errorf("TimeAt(3) = %g", result.TimeAt(3))
	}
	if result.Duration() != 4*tpf {
		t.Errorf("Duration = %g", result.Duration())
	}
}

func TestRunSourceError(t *testing.T) {
	src := &failingSource{good: 3, err: audio.ErrSourceUnavailable}

	result, err := Run(context.Background(), src, DefaultOptions())
	if !errors.Is(err, audio.ErrSourceUnavailable) {
		t.Errorf("error = %v, want ErrSourceUnavailable", err)
	}
	if result != nil {
		t.Error("partial result returned after source error")
	}
}

func TestRunConsumedSource(t *testing.T) {
	src := sliceSource(t, make([]float64, 4096), 1)
	if _, err := Run(context.Background(), src, DefaultOptions()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if _, err := Run(context.Background(), src, DefaultOptions()); !errors.Is(err, audio.ErrSourceConsumed) {
		t.Errorf("second Run error = %v, want ErrSourceConsumed", err)
	}
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := DefaultOptions()
	var seen int
	opts.Progress = func(frames int) {
		seen = frames
		if frames == 5 {
			cancel()
		}
	}

	src := sliceSource(t, utils.GenerateSilence(2, testSampleRate), 1)
	result, err := Run(ctx, src, opts)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if result != nil {
		t.Error("partial result returned after cancellation")
	}
	if seen != 5 {
		t.Errorf("processed %d frames after cancel, want 5", seen)
	}
}

func TestRunPassesAreIndependent(t *testing.T) {
	samples := utils.GenerateImpulseTrain(1, 0.25, testSampleRate)

	first, err := Run(context.Background(), sliceSource(t, samples, 1), DefaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	second, err := Run(context.Background(), sliceSource(t, samples, 1), DefaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for i := range first.Onsets {
		if first.Onsets[i] != second.Onsets[i] {
			t.Fatalf("passes differ at frame %d", i)
		}
	}
}

func TestPublish(t *testing.T) {
	result, err := Run(context.Background(), sliceSource(t, utils.GenerateImpulseTrain(2, 0.5, testSampleRate), 1), DefaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	mock := &utils.MockTransport{}
	if err := Publish(mock, result); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	msgs := mock.Messages()
	if len(msgs) != 3+len(result.Events()) {
		t.Fatalf("messages = %d, want %d", len(msgs), 3+len(result.Events()))
	}

	summary, ok := msgs[0].(map[string]any)
	if !ok || summary["type"] != transport.TypeSummary || summary["onsets"] != 3 {
		t.Errorf("summary = %v", msgs[0])
	}
	if s, ok := msgs[2].(transport.Series); !ok || s.Name != "onsets" || len(s.Values) != result.Frames() {
		t.Errorf("onset series = %v", msgs[2])
	}
	event, ok := msgs[3].(map[string]any)
	if !ok || event["type"] != transport.TypeEvent || event["index"] != 21 {
		t.Errorf("first event = %v", msgs[3])
	}
}

func TestPublishErrors(t *testing.T) {
	result := &Result{Flux: []float64{0}, Onsets: []float64{0}}

	if err := Publish(nil, result); err == nil {
		t.Error("expected error for nil transport")
	}

	boom := errors.New("boom")
	if err := Publish(&utils.MockTransport{Err: boom}, result); !errors.Is(err, boom) {
		t.Errorf("error = %v, want boom", err)
	}
}

func BenchmarkRun(b *testing.B) {
	samples := utils.GenerateComplexWave(testSampleRate*2, testSampleRate)

	for b.Loop() {
		src, _ := audio.NewSliceSource(samples, testSampleRate, 1)
		if _, err := Run(context.Background(), src, DefaultOptions()); err != nil {
			b.Fatal(err)
		}
	}
}
