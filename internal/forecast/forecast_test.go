package forecast

import (
	"math"
	"reflect"
	"testing"
)

func TestSanitize(t *testing.T) {
	band := DefaultBand()
	tests := []struct {
		name string
		raw  []float64
		want ChannelForecast
	}{
		{
			name: "within band untouched",
			raw:  []float64{300, 200, 250, 150},
			want: ChannelForecast{300, 200, 250, 150},
		},
		{
			name: "both ends clamped",
			raw:  []float64{10, 900, -5, 800},
			want: ChannelForecast{50, 800, 50, 800},
		},
		{
			name: "non-finite values",
			raw:  []float64{math.NaN(), math.Inf(1), math.Inf(-1)},
			want: ChannelForecast{50, 800, 50},
		},
		{
			name: "empty",
			raw:  []float64{},
			want: ChannelForecast{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.raw, band)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Sanitize(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestSanitizeIsIdempotentAndCopies(t *testing.T) {
	band := Band{Min: 100, Max: 400}
	raw := []float64{12, 150, 999, 400, 100}
	once := Sanitize(raw, band)
	twice := Sanitize(once, band)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("clamping is not idempotent: %v then %v", once, twice)
	}
	if raw[0] != 12 {
		t.Fatalf("Sanitize mutated its input")
	}
	for i, v := range once {
		if !band.Contains(v) {
			t.Errorf("value %d (%v) outside band", i, v)
		}
	}
}

func TestClamped(t *testing.T) {
	got := Clamped([]float64{10, 200, math.NaN(), 900}, DefaultBand())
	if !reflect.DeepEqual(got, []int{0, 2, 3}) {
		t.Fatalf("unexpected clamped indices %v", got)
	}
	if got := Clamped([]float64{50, 800}, DefaultBand()); got != nil {
		t.Fatalf("expected no clamped indices, got %v", got)
	}
}

func TestBandValidate(t *testing.T) {
	tests := []struct {
		name    string
		band    Band
		wantErr bool
	}{
		{name: "default", band: DefaultBand()},
		{name: "degenerate", band: Band{Min: 100, Max: 100}},
		{name: "inverted", band: Band{Min: 800, Max: 50}, wantErr: true},
		{name: "negative", band: Band{Min: -1, Max: 50}, wantErr: true},
		{name: "nan", band: Band{Min: math.NaN(), Max: 50}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.band.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBest(t *testing.T) {
	if got := (ChannelForecast{200, 300, 300, 100}).Best(); got != 1 {
		t.Fatalf("expected first maximum at index 1, got %d", got)
	}
}
