package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bambu-link/bambu-go/pkg/command"
	"github.com/bambu-link/bambu-go/pkg/wire"
)

var errUsage = errors.New("usage")

// printerCommands maps shell verbs onto command builders. Each builder
// receives the arguments after the verb.
var printerCommands = map[string]struct {
	usage string
	build func(args []string) (wire.Command, error)
}{
	"version": {"version", noArgs(command.GetVersion)},
	"pause":   {"pause", noArgs(command.Pause)},
	"resume":  {"resume", noArgs(command.Resume)},
	"stop":    {"stop", noArgs(command.Stop)},
	"home":    {"home", noArgs(command.Home)},
	"unload":  {"unload", noArgs(command.UnloadFilament)},
	"speed":   {"speed <silent|standard|sport|ludicrous|1-4>", buildSpeed},
	"light":   {"light <chamber|work> <on|off>", buildLight},
	"fan":     {"fan <part|aux|chamber> <0-255>", buildFan},
	"temp":    {"temp <nozzle|bed> <celsius>", buildTemp},
	"move":    {"move <x|y|z> <mm>", buildMove},
	"gcode":   {"gcode <line> [; <line> ...]", buildGcode},
	"print":   {"print <url> [plate] [ams]", buildPrint},
}

func noArgs(fn func() wire.Command) func([]string) (wire.Command, error) {
	return func(args []string) (wire.Command, error) {
		if len(args) != 0 {
			return wire.Command{}, errUsage
		}
		return fn(), nil
	}
}

// buildCommand turns a shell line into a printer command.
func buildCommand(verb string, args []string) (wire.Command, error) {
	entry, ok := printerCommands[verb]
	if !ok {
		return wire.Command{}, fmt.Errorf("unknown command: %s", verb)
	}
	cmd, err := entry.build(args)
	if errors.Is(err, errUsage) {
		return cmd, fmt.Errorf("usage: %s", entry.usage)
	}
	return cmd, err
}

func buildSpeed(args []string) (wire.Command, error) {
	if len(args) != 1 {
		return wire.Command{}, errUsage
	}
	level, err := command.ParseSpeedLevel(args[0])
	if err != nil {
		return wire.Command{}, err
	}
	return command.PrintSpeed(level)
}

func buildLight(args []string) (wire.Command, error) {
	if len(args) != 2 {
		return wire.Command{}, errUsage
	}
	var node string
	switch strings.ToLower(args[0]) {
	case "chamber":
		node = command.LightChamber
	case "work":
		node = command.LightWork
	default:
		return wire.Command{}, errUsage
	}
	switch strings.ToLower(args[1]) {
	case "on":
		return command.Light(node, true)
	case "off":
		return command.Light(node, false)
	default:
		return wire.Command{}, errUsage
	}
}

func buildFan(args []string) (wire.Command, error) {
	if len(args) != 2 {
		return wire.Command{}, errUsage
	}
	fan, err := command.ParseFan(args[0])
	if err != nil {
		return wire.Command{}, err
	}
	speed, err := strconv.Atoi(args[1])
	if err != nil {
		return wire.Command{}, errUsage
	}
	return command.FanSpeed(fan, speed)
}

func buildTemp(args []string) (wire.Command, error) {
	if len(args) != 2 {
		return wire.Command{}, errUsage
	}
	heater, err := command.ParseHeater(args[0])
	if err != nil {
		return wire.Command{}, err
	}
	celsius, err := strconv.Atoi(args[1])
	if err != nil {
		return wire.Command{}, errUsage
	}
	return command.SetTemperature(heater, celsius)
}

func buildMove(args []string) (wire.Command, error) {
	if len(args) != 2 {
		return wire.Command{}, errUsage
	}
	axis, err := command.ParseAxis(args[0])
	if err != nil {
		return wire.Command{}, err
	}
	distance, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return wire.Command{}, errUsage
	}
	return command.Move(axis, distance)
}

func buildGcode(args []string) (wire.Command, error) {
	if len(args) == 0 {
		return wire.Command{}, errUsage
	}
	var lines []string
	for _, part := range strings.Split(strings.Join(args, " "), ";") {
		if line := strings.TrimSpace(part); line != "" {
			lines = append(lines, line)
		}
	}
	return command.GcodeLine(lines...)
}

func buildPrint(args []string) (wire.Command, error) {
	if len(args) < 1 || len(args) > 3 {
		return wire.Command{}, errUsage
	}
	p := command.ProjectFile{URL: args[0]}
	if len(args) > 1 {
		plate, err := strconv.Atoi(args[1])
		if err != nil {
			return wire.Command{}, errUsage
		}
		p.Plate = plate
	}
	if len(args) > 2 {
		if args[2] != "ams" {
			return wire.Command{}, errUsage
		}
		p.UseAMS = true
	}
	return command.StartProject(p)
}
