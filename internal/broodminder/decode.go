package broodminder

import (
	"errors"
	"fmt"
)

// Broodminder beacons advertise manufacturer specific data under company ID 0x028D (653).
// Payload layout (offsets into the manufacturer data, after the company ID):
//
//	 0 : model
//	 1 : firmware minor
//	 2 : firmware major
//	 3 : realtime temperature low byte
//	 4 : battery %
//	 5 : elapsed tick a
//	 6 : elapsed tick b
//	 7 : temperature low byte (aggregated)
//	 8 : temperature high byte (aggregated)
//	 9 : realtime temperature high byte
//	19 : realtime weight low byte (scales only)
//	20 : realtime weight high byte (scales only)
const (
	ManufacturerID uint16 = 0x028D

	coreLen  = 10
	scaleLen = 21

	offWeightLo = 19
	offWeightHi = 20

	lbsPerKg = 2.204623
)

// Known model bytes.
const (
	ModelT2    byte = 47 // temperature (+ SwarmMinder)
	ModelTH2   byte = 56 // temperature + humidity
	ModelWPlus byte = 57 // scale, 2 load cells
)

// ErrMalformedPayload is returned when a recognized payload is too short for its fixed offsets.
var ErrMalformedPayload = errors.New("broodminder: malformed payload")

// Reading is one decoded Broodminder advertisement.
type Reading struct {
	Model        byte `json:"model"`
	MinorVersion byte `json:"minor_version"`
	MajorVersion byte `json:"major_version"`

	RealtimeTempLo byte `json:"-"`
	RealtimeTempHi byte `json:"-"`
	BatteryPercent byte `json:"battery_percent"`
	ElapsedTickA   byte `json:"-"`
	ElapsedTickB   byte `json:"-"`
	TempLo         byte `json:"-"`
	TempHi         byte `json:"-"`
	WeightLo       byte `json:"-"`
	WeightHi       byte `json:"-"`

	RealtimeTemperatureC float32 `json:"realtime_temperature_c"`
	RealtimeTemperatureF float32 `json:"realtime_temperature_f"`
	TemperatureC         float32 `json:"temperature_c"`
	TemperatureF         float32 `json:"temperature_f"`

	HasWeight         bool    `json:"has_weight"`
	RealtimeWeightKg  float32 `json:"realtime_weight_kg,omitempty"`
	RealtimeWeightLbs float32 `json:"realtime_weight_lbs,omitempty"`
}

// IsRecognized reports whether the manufacturer data carries a Broodminder payload.
func IsRecognized(manufacturerData map[uint16][]byte) bool {
	_, ok := manufacturerData[ManufacturerID]
	return ok
}

// IsScale reports whether the model reports weight.
func IsScale(model byte) bool {
	return model == ModelWPlus
}

// HasTemperature reports whether the model publishes a temperature channel.
func HasTemperature(model byte) bool {
	return model == ModelT2 || model == ModelWPlus
}

// Decode parses a Broodminder manufacturer data payload.
// Weight bytes are only read for scale models, which therefore need the longer payload.
func Decode(data []byte) (Reading, error) {
	if len(data) < coreLen {
		return Reading{}, fmt.Errorf("%w: got %d bytes, need at least %d", ErrMalformedPayload, len(data), coreLen)
	}

	r := Reading{
		Model:          data[0],
		MinorVersion:   data[1],
		MajorVersion:   data[2],
		RealtimeTempLo: data[3],
		BatteryPercent: data[4],
		ElapsedTickA:   data[5],
		ElapsedTickB:   data[6],
		TempLo:         data[7],
		TempHi:         data[8],
		RealtimeTempHi: data[9],
	}

	r.RealtimeTemperatureC = centigrade(r.RealtimeTempHi, r.RealtimeTempLo)
	r.RealtimeTemperatureF = fahrenheit(r.RealtimeTemperatureC)
	r.TemperatureC = centigrade(r.TempHi, r.TempLo)
	r.TemperatureF = fahrenheit(r.TemperatureC)

	if IsScale(r.Model) {
		if len(data) < scaleLen {
			return Reading{}, fmt.Errorf("%w: scale model %d got %d bytes, need at least %d",
				ErrMalformedPayload, r.Model, len(data), scaleLen)
		}
		r.WeightLo = data[offWeightLo]
		r.WeightHi = data[offWeightHi]
		r.HasWeight = true
		r.RealtimeWeightKg = (256*float32(r.WeightHi) - float32(r.WeightLo) - 32767) / 100
		r.RealtimeWeightLbs = r.RealtimeWeightKg * lbsPerKg
	}

	return r, nil
}

func centigrade(hi, lo byte) float32 {
	return (256*float32(hi) + float32(lo) - 5000) / 100
}

func fahrenheit(c float32) float32 {
	return c*9/5 + 32
}

// ModelName returns the product name for a model byte.
func ModelName(model byte) string {
	switch model {
	case 41:
		return "T"
	case 42:
		return "TH"
	case 43:
		return "W"
	case ModelT2:
		return "T2"
	case 49:
		return "W3"
	case ModelTH2:
		return "TH2"
	case ModelWPlus:
		return "W+"
	case 58:
		return "DIY"
	default:
		return fmt.Sprintf("model %d", model)
	}
}

// Firmware formats the firmware version as major.minor.
func (r Reading) Firmware() string {
	return fmt.Sprintf("%d.%02d", r.MajorVersion, r.MinorVersion)
}
