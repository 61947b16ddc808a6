package broodminder

import (
	"errors"
	"testing"
)

func scalePayload(model, weightLo, weightHi byte) []byte {
	b := make([]byte, 21)
	copy(b, []byte{model, 1, 1, 10, 90, 0, 0, 20, 30, 5})
	b[19] = weightLo
	b[20] = weightHi
	return b
}

func TestDecode_Temperature(t *testing.T) {
	data := []byte{47, 1, 1, 10, 90, 0, 0, 20, 30, 5}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v, want nil", err)
	}

	if got.Model != ModelT2 {
		t.Errorf("Model = %d, want %d", got.Model, ModelT2)
	}
	if got.MinorVersion != 1 || got.MajorVersion != 1 {
		t.Errorf("version = %d.%d, want 1.1", got.MajorVersion, got.MinorVersion)
	}
	if got.BatteryPercent != 90 {
		t.Errorf("BatteryPercent = %d, want 90", got.BatteryPercent)
	}
	if got.RealtimeTemperatureC != float32(-37.1) {
		t.Errorf("RealtimeTemperatureC = %v, want %v", got.RealtimeTemperatureC, float32(-37.1))
	}
	if got.TemperatureC != 27 {
		t.Errorf("TemperatureC = %v, want 27", got.TemperatureC)
	}
	if got.HasWeight {
		t.Error("HasWeight = true, want false for temperature model")
	}
	if got.RealtimeWeightKg != 0 || got.RealtimeWeightLbs != 0 {
		t.Errorf("weight = %v kg / %v lbs, want zero", got.RealtimeWeightKg, got.RealtimeWeightLbs)
	}
}

func TestDecode_FahrenheitFollowsCelsius(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "freezing-ish", data: []byte{47, 0, 0, 136, 50, 0, 0, 136, 19, 19}},
		{name: "warm brood", data: []byte{47, 0, 0, 0x10, 80, 0, 0, 0x64, 0x21, 0x21}},
		{name: "all zero", data: make([]byte, 10)},
		{name: "all max", data: []byte{47, 255, 255, 255, 255, 255, 255, 255, 255, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.data)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if want := got.TemperatureC*9/5 + 32; got.TemperatureF != want {
				t.Errorf("TemperatureF = %v, want %v", got.TemperatureF, want)
			}
			if want := got.RealtimeTemperatureC*9/5 + 32; got.RealtimeTemperatureF != want {
				t.Errorf("RealtimeTemperatureF = %v, want %v", got.RealtimeTemperatureF, want)
			}
		})
	}
}

func TestDecode_Deterministic(t *testing.T) {
	data := scalePayload(ModelWPlus, 25, 132)

	first, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Decode(data)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if again != first {
			t.Fatalf("Decode() run %d = %+v, want %+v", i, again, first)
		}
	}
}

func TestDecode_Scale(t *testing.T) {
	got, err := Decode(scalePayload(ModelWPlus, 25, 132))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if !got.HasWeight {
		t.Fatal("HasWeight = false, want true")
	}
	if got.WeightLo != 25 || got.WeightHi != 132 {
		t.Errorf("weight bytes = %d/%d, want 25/132", got.WeightLo, got.WeightHi)
	}
	if got.RealtimeWeightKg != 10 {
		t.Errorf("RealtimeWeightKg = %v, want 10", got.RealtimeWeightKg)
	}
	if want := got.RealtimeWeightKg * 2.204623; got.RealtimeWeightLbs != want {
		t.Errorf("RealtimeWeightLbs = %v, want %v", got.RealtimeWeightLbs, want)
	}
}

func TestDecode_NonScaleIgnoresWeightBytes(t *testing.T) {
	got, err := Decode(scalePayload(ModelT2, 25, 132))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.HasWeight {
		t.Error("HasWeight = true, want false")
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "nil", data: nil},
		{name: "empty", data: []byte{}},
		{name: "nine bytes", data: []byte{47, 1, 1, 10, 90, 0, 0, 20, 30}},
		{name: "scale without weight bytes", data: []byte{57, 1, 1, 10, 90, 0, 0, 20, 30, 5}},
		{name: "scale one byte short", data: scalePayload(ModelWPlus, 0, 128)[:20]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			if !errors.Is(err, ErrMalformedPayload) {
				t.Fatalf("Decode() error = %v, want ErrMalformedPayload", err)
			}
		})
	}
}

func TestIsRecognized(t *testing.T) {
	tests := []struct {
		name string
		data map[uint16][]byte
		want bool
	}{
		{name: "nil map", data: nil, want: false},
		{name: "empty map", data: map[uint16][]byte{}, want: false},
		{name: "other vendor", data: map[uint16][]byte{0x004C: {1, 2}}, want: false},
		{name: "broodminder", data: map[uint16][]byte{653: {47}}, want: true},
		{name: "broodminder with empty payload", data: map[uint16][]byte{653: nil}, want: true},
		{name: "mixed", data: map[uint16][]byte{0x004C: {1}, 0xFFFF: {2}, 653: {47}}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRecognized(tt.data); got != tt.want {
				t.Errorf("IsRecognized() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestModelName(t *testing.T) {
	if got := ModelName(ModelWPlus); got != "W+" {
		t.Errorf("ModelName(57) = %q, want W+", got)
	}
	if got := ModelName(200); got != "model 200" {
		t.Errorf("ModelName(200) = %q, want %q", got, "model 200")
	}
}

func TestReading_Firmware(t *testing.T) {
	r := Reading{MajorVersion: 3, MinorVersion: 7}
	if got := r.Firmware(); got != "3.07" {
		t.Errorf("Firmware() = %q, want 3.07", got)
	}
}
