package history

import (
	"errors"
	"math/rand/v2"
	"reflect"
	"strings"
	"testing"

	"github.com/iwvelando/budget-optimizer/internal/forecast"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func TestSynthesizeShape(t *testing.T) {
	fc := forecast.ChannelForecast{300, 200, 250, 150}
	points, err := Synthesize(fc, 7, DefaultOptions(), newRand(1))
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}
	if len(points) != 7 {
		t.Fatalf("expected 7 points, got %d", len(points))
	}

	wantLabels := []string{"6 days ago", "5 days ago", "4 days ago", "3 days ago", "2 days ago", "1 day ago", "today (predicted)"}
	for i, p := range points {
		if p.Label != wantLabels[i] {
			t.Errorf("point %d label = %q, want %q", i, p.Label, wantLabels[i])
		}
		if p.Label != strings.TrimSpace(p.Label) {
			t.Errorf("point %d label %q is not trimmed", i, p.Label)
		}
	}

	last := points[len(points)-1]
	if !reflect.DeepEqual(last.Values, []float64(fc)) {
		t.Fatalf("last point %v does not equal forecast %v", last.Values, fc)
	}
}

func TestSynthesizeStaysInRange(t *testing.T) {
	fc := forecast.ChannelForecast{800, 50, 333.33, 0}
	opts := DefaultOptions()
	for seed := uint64(0); seed < 20; seed++ {
		points, err := Synthesize(fc, 60, opts, newRand(seed))
		if err != nil {
			t.Fatalf("Synthesize returned error: %v", err)
		}
		for _, p := range points[:len(points)-1] {
			for c, v := range p.Values {
				lo, hi := 0.6*fc[c], 1.1*fc[c]
				if v < lo-1e-9 || v > hi+1e-9 {
					t.Fatalf("seed %d %s channel %d: %v outside [%v, %v]", seed, p.Label, c, v, lo, hi)
				}
			}
		}
	}
}

func TestSynthesizeIsDeterministicForSeed(t *testing.T) {
	fc := forecast.ChannelForecast{300, 200}
	a, err := Synthesize(fc, 5, DefaultOptions(), newRand(42))
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}
	b, err := Synthesize(fc, 5, DefaultOptions(), newRand(42))
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same seed produced different series")
	}
}

func TestSynthesizeWithoutJitterFollowsTrend(t *testing.T) {
	opts := Options{Jitter: 0, Decay: 0.1, Floor: 0.6}
	points, err := Synthesize(forecast.ChannelForecast{100}, 6, opts, newRand(3))
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}
	want := []float64{60, 60, 70, 80, 90, 100}
	for i, p := range points {
		if diff := p.Values[0] - want[i]; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("point %d = %v, want %v", i, p.Values[0], want[i])
		}
	}
}

func TestSynthesizeSingleDay(t *testing.T) {
	points, err := Synthesize(forecast.ChannelForecast{120}, 1, DefaultOptions(), newRand(1))
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}
	if len(points) != 1 || points[0].Label != TodayLabel || points[0].Values[0] != 120 {
		t.Fatalf("unexpected single-day series %+v", points)
	}
}

func TestSynthesizeErrors(t *testing.T) {
	fc := forecast.ChannelForecast{100}
	if _, err := Synthesize(fc, 0, DefaultOptions(), newRand(1)); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
	if _, err := Synthesize(fc, 3, Options{Jitter: 1.5, Decay: 0, Floor: 0.6}, newRand(1)); err == nil {
		t.Fatalf("expected error for jitter above 1")
	}
	if _, err := Synthesize(fc, 3, DefaultOptions(), nil); err == nil {
		t.Fatalf("expected error for nil random source")
	}
}

func TestSeriesMarshalJSON(t *testing.T) {
	s := Series{
		Channels: []string{"Naver", "Meta"},
		Points: []Point{
			{Label: "1 day ago", Values: []float64{281.456, 190.1}},
			{Label: TodayLabel, Values: []float64{300, 200}},
		},
	}
	data, err := s.Rounded().MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON returned error: %v", err)
	}
	want := `[{"label":"1 day ago","Naver":281.46,"Meta":190.1},{"label":"today (predicted)","Naver":300,"Meta":200}]`
	if string(data) != want {
		t.Fatalf("unexpected JSON\n got: %s\nwant: %s", data, want)
	}

	s.Channels = []string{"Naver"}
	if _, err := s.MarshalJSON(); err == nil {
		t.Fatalf("expected error for channel count mismatch")
	}
}
