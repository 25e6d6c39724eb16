package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bambu-link/bambu-go/pkg/wire"
)

// GcodeLine sends raw G-code. Each line is terminated with a newline.
func GcodeLine(lines ...string) (wire.Command, error) {
	var b strings.Builder
	for _, l := range lines {
		l = strings.TrimRight(l, "\r\n")
		if strings.TrimSpace(l) == "" {
			continue
		}
		b.WriteString(l)
		b.WriteByte('\n')
	}
	if b.Len() == 0 {
		return wire.Command{}, ErrEmptyGcode
	}
	return wire.Command{
		Group:  wire.GroupPrint,
		Name:   NameGcodeLine,
		Params: map[string]any{"param": b.String()},
	}, nil
}

// Fan selects a fan by its M106 index.
type Fan uint8

const (
	FanPart    Fan = 1
	FanAux     Fan = 2
	FanChamber Fan = 3
)

// String returns the fan name.
func (f Fan) String() string {
	switch f {
	case FanPart:
		return "PART"
	case FanAux:
		return "AUX"
	case FanChamber:
		return "CHAMBER"
	default:
		return "UNKNOWN"
	}
}

// ParseFan accepts part, aux or chamber.
func ParseFan(s string) (Fan, error) {
	switch strings.ToLower(s) {
	case "part":
		return FanPart, nil
	case "aux":
		return FanAux, nil
	case "chamber":
		return FanChamber, nil
	}
	return 0, fmt.Errorf("%w: fan %q", ErrInvalidArgument, s)
}

// MaxFanSpeed is the PWM value for a fan at full speed.
const MaxFanSpeed = 255

// FanSpeed sets a fan to speed in 0..255.
func FanSpeed(fan Fan, speed int) (wire.Command, error) {
	if fan < FanPart || fan > FanChamber {
		return wire.Command{}, fmt.Errorf("%w: fan %d", ErrInvalidArgument, fan)
	}
	if speed < 0 || speed > MaxFanSpeed {
		return wire.Command{}, fmt.Errorf("%w: fan speed %d", ErrInvalidArgument, speed)
	}
	return GcodeLine(fmt.Sprintf("M106 P%d S%d", fan, speed))
}

// Heater selects a heater by the M-code that sets it.
type Heater uint8

const (
	HeaterNozzle Heater = 104
	HeaterBed    Heater = 140
)

// String returns the heater name.
func (h Heater) String() string {
	switch h {
	case HeaterNozzle:
		return "NOZZLE"
	case HeaterBed:
		return "BED"
	default:
		return "UNKNOWN"
	}
}

// ParseHeater accepts nozzle or bed.
func ParseHeater(s string) (Heater, error) {
	switch strings.ToLower(s) {
	case "nozzle", "extruder":
		return HeaterNozzle, nil
	case "bed":
		return HeaterBed, nil
	}
	return 0, fmt.Errorf("%w: heater %q", ErrInvalidArgument, s)
}

// MaxTemperature bounds heater targets in degrees Celsius.
const MaxTemperature = 320

// SetTemperature sets a heater target. Zero turns it off.
func SetTemperature(h Heater, celsius int) (wire.Command, error) {
	if h != HeaterNozzle && h != HeaterBed {
		return wire.Command{}, fmt.Errorf("%w: heater %d", ErrInvalidArgument, h)
	}
	if celsius < 0 || celsius > MaxTemperature {
		return wire.Command{}, fmt.Errorf("%w: temperature %d", ErrInvalidArgument, celsius)
	}
	return GcodeLine(fmt.Sprintf("M%d S%d", h, celsius))
}

// Home homes all axes.
func Home() wire.Command {
	cmd, _ := GcodeLine("G28")
	return cmd
}

// Axis is a motion axis.
type Axis string

const (
	AxisX Axis = "X"
	AxisY Axis = "Y"
	AxisZ Axis = "Z"
)

// ParseAxis accepts x, y or z in either case.
func ParseAxis(s string) (Axis, error) {
	switch a := Axis(strings.ToUpper(s)); a {
	case AxisX, AxisY, AxisZ:
		return a, nil
	}
	return "", fmt.Errorf("%w: axis %q", ErrInvalidArgument, s)
}

// MoveFeedrate is the feedrate used for manual moves in mm/min.
const MoveFeedrate = 3000

// Move jogs one axis by a relative distance in millimetres. Soft endstops
// are enabled for the move and the previous positioning mode is restored.
func Move(axis Axis, distance float64) (wire.Command, error) {
	if _, err := ParseAxis(string(axis)); err != nil {
		return wire.Command{}, err
	}
	if distance == 0 {
		return wire.Command{}, fmt.Errorf("%w: zero distance", ErrInvalidArgument)
	}
	return GcodeLine(
		"M211 S",
		"M211 X1 Y1 Z1",
		"M1002 push_ref_mode",
		"G91",
		fmt.Sprintf("G1 %s%s F%d", axis, strconv.FormatFloat(distance, 'f', -1, 64), MoveFeedrate),
		"M1002 pop_ref_mode",
		"M211 R",
	)
}

// unloadScript retracts filament from the external spool path back into
// the AMS (tray 254).
var unloadScript = []string{
	"M620 S254",
	"M106 S255",
	"M104 S250",
	"M17 S",
	"M17 X0.5 Y0.5",
	"G91",
	"G1 Y-5 F1200",
	"G1 Z3",
	"G90",
	"G28 X",
	"M17 R",
	"G1 X70 F21000",
	"G1 Y245",
	"G1 Y265 F3000",
	"G4",
	"M106 S0",
	"M109 S250",
	"G1 X90",
	"G1 Y255",
	"G1 X120",
	"G1 X20 Y50 F21000",
	"G1 Y-3",
	"T254",
	"G1 X54",
	"G1 Y265",
	"G92 E0",
	"G1 E40 F180",
	"G4",
	"M104 S0",
	"G1 X70 F15000",
	"G1 X76",
	"G1 X65",
	"G1 X76",
	"G1 X65",
	"G1 X90 F3000",
	"G1 Y255",
	"G1 X100",
	"G1 Y265",
	"G1 X70 F10000",
	"G1 X100 F5000",
	"G1 X70 F10000",
	"G1 X100 F5000",
	"G1 X165 F12000",
	"G1 Y245",
	"G1 X70",
	"G1 Y265 F3000",
	"G91",
	"G1 Z-3 F1200",
	"G90",
	"M621 S254",
}

// UnloadFilament runs the AMS unload sequence.
func UnloadFilament() wire.Command {
	cmd, _ := GcodeLine(unloadScript...)
	return cmd
}
