package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bambu-link/bambu-go/pkg/state"
	"github.com/bambu-link/bambu-go/pkg/wire"
)

// Command names.
const (
	NamePushall     = "pushall"
	NameGetVersion  = "get_version"
	NameLEDControl  = "ledctrl"
	NameGcodeLine   = "gcode_line"
	NameStop        = "stop"
	NamePause       = "pause"
	NameResume      = "resume"
	NamePrintSpeed  = "print_speed"
	NameProjectFile = "project_file"
)

// Light nodes.
const (
	LightChamber = "chamber_light"
	LightWork    = "work_light"
)

// Default ledctrl timing in milliseconds.
const (
	DefaultLEDOnTime  = 500
	DefaultLEDOffTime = 500
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrEmptyGcode      = errors.New("no gcode lines")
)

// Pushall requests a full status report.
func Pushall() wire.Command {
	return wire.Command{Group: wire.GroupPushing, Name: NamePushall}
}

// GetVersion requests the firmware module versions.
func GetVersion() wire.Command {
	return wire.Command{Group: wire.GroupInfo, Name: NameGetVersion}
}

// LEDControl is a ledctrl request.
type LEDControl struct {
	Node         string
	Mode         state.LightMode
	OnTime       int
	OffTime      int
	LoopTimes    int
	IntervalTime int
}

// LED builds a ledctrl command.
func LED(c LEDControl) (wire.Command, error) {
	if c.Node == "" {
		return wire.Command{}, fmt.Errorf("%w: light node is empty", ErrInvalidArgument)
	}
	if _, ok := state.ParseLightMode(string(c.Mode)); !ok {
		return wire.Command{}, fmt.Errorf("%w: light mode %q", ErrInvalidArgument, c.Mode)
	}
	if c.OnTime < 0 || c.OffTime < 0 || c.LoopTimes < 0 || c.IntervalTime < 0 {
		return wire.Command{}, fmt.Errorf("%w: negative led timing", ErrInvalidArgument)
	}
	return wire.Command{
		Group: wire.GroupSystem,
		Name:  NameLEDControl,
		Params: map[string]any{
			"led_node":      c.Node,
			"led_mode":      string(c.Mode),
			"led_on_time":   c.OnTime,
			"led_off_time":  c.OffTime,
			"loop_times":    c.LoopTimes,
			"interval_time": c.IntervalTime,
		},
	}, nil
}

// Light switches a light node on or off.
func Light(node string, on bool) (wire.Command, error) {
	mode := state.LightOff
	if on {
		mode = state.LightOn
	}
	return LED(LEDControl{
		Node:    node,
		Mode:    mode,
		OnTime:  DefaultLEDOnTime,
		OffTime: DefaultLEDOffTime,
	})
}

// Stop aborts the current print.
func Stop() wire.Command {
	return printControl(NameStop)
}

// Pause pauses the current print.
func Pause() wire.Command {
	return printControl(NamePause)
}

// Resume resumes a paused print.
func Resume() wire.Command {
	return printControl(NameResume)
}

func printControl(name string) wire.Command {
	return wire.Command{
		Group:  wire.GroupPrint,
		Name:   name,
		Params: map[string]any{"param": ""},
	}
}

// SpeedLevel is a print speed profile.
type SpeedLevel uint8

const (
	SpeedSilent    SpeedLevel = 1
	SpeedStandard  SpeedLevel = 2
	SpeedSport     SpeedLevel = 3
	SpeedLudicrous SpeedLevel = 4
)

// String returns the speed level name.
func (l SpeedLevel) String() string {
	switch l {
	case SpeedSilent:
		return "SILENT"
	case SpeedStandard:
		return "STANDARD"
	case SpeedSport:
		return "SPORT"
	case SpeedLudicrous:
		return "LUDICROUS"
	default:
		return "UNKNOWN"
	}
}

// ParseSpeedLevel accepts a level name or its number.
func ParseSpeedLevel(s string) (SpeedLevel, error) {
	switch strings.ToLower(s) {
	case "silent", "1":
		return SpeedSilent, nil
	case "standard", "2":
		return SpeedStandard, nil
	case "sport", "3":
		return SpeedSport, nil
	case "ludicrous", "4":
		return SpeedLudicrous, nil
	}
	return 0, fmt.Errorf("%w: speed level %q", ErrInvalidArgument, s)
}

// PrintSpeed selects a speed profile for the running print.
func PrintSpeed(level SpeedLevel) (wire.Command, error) {
	if level < SpeedSilent || level > SpeedLudicrous {
		return wire.Command{}, fmt.Errorf("%w: speed level %d", ErrInvalidArgument, level)
	}
	return wire.Command{
		Group:  wire.GroupPrint,
		Name:   NamePrintSpeed,
		Params: map[string]any{"param": strconv.Itoa(int(level))},
	}, nil
}

// ProjectFile describes a print job stored on the printer or reachable by
// URL.
type ProjectFile struct {
	// URL of the 3mf file, e.g. "ftp:///model.3mf" or "file:///sdcard/model.3mf".
	URL string

	// Plate is the 1-based plate number inside the project.
	Plate int

	// Name is shown as the job name. Empty derives it from URL.
	Name string

	UseAMS        bool
	AMSMapping    []int
	Timelapse     bool
	BedLeveling   bool
	FlowCali      bool
	VibrationCali bool
	LayerInspect  bool
}

// StartProject starts printing a plate from a project file.
func StartProject(p ProjectFile) (wire.Command, error) {
	if p.URL == "" {
		return wire.Command{}, fmt.Errorf("%w: project url is empty", ErrInvalidArgument)
	}
	plate := p.Plate
	if plate == 0 {
		plate = 1
	}
	if plate < 0 {
		return wire.Command{}, fmt.Errorf("%w: plate %d", ErrInvalidArgument, p.Plate)
	}
	name := p.Name
	if name == "" {
		name = p.URL[strings.LastIndex(p.URL, "/")+1:]
	}
	mapping := p.AMSMapping
	if mapping == nil {
		mapping = []int{}
	}

	return wire.Command{
		Group: wire.GroupPrint,
		Name:  NameProjectFile,
		Params: map[string]any{
			"param":          fmt.Sprintf("Metadata/plate_%d.gcode", plate),
			"url":            p.URL,
			"subtask_name":   name,
			"use_ams":        p.UseAMS,
			"ams_mapping":    mapping,
			"timelapse":      p.Timelapse,
			"bed_leveling":   p.BedLeveling,
			"flow_cali":      p.FlowCali,
			"vibration_cali": p.VibrationCali,
			"layer_inspect":  p.LayerInspect,
			"profile_id":     "0",
			"project_id":     "0",
			"subtask_id":     "0",
			"task_id":        "0",
		},
	}, nil
}
