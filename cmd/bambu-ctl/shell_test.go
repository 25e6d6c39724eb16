package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bambu-link/bambu-go/pkg/command"
	"github.com/bambu-link/bambu-go/pkg/correlator"
	"github.com/bambu-link/bambu-go/pkg/session"
	"github.com/bambu-link/bambu-go/pkg/state"
	"github.com/bambu-link/bambu-go/pkg/wire"
)

type fakePrinter struct {
	snapshot   *state.State
	refreshErr error
	sendErr    error
	sent       []wire.Command
	timeouts   []time.Duration
}

func (f *fakePrinter) Status() session.Status { return session.StatusConnected }
func (f *fakePrinter) State() *state.State { return f.snapshot }
func (f *fakePrinter) Pending() int { return 2 }

func (f *fakePrinter) Get(path string) (any, bool) {
	return state.Select(f.snapshot, path)
}

func (f *fakePrinter) Refresh(context.Context) error { return f.refreshErr }

func (f *fakePrinter) SendTimeout(_ context.Context, cmd wire.Command, timeout time.Duration) (*wire.Message, error) {
	f.sent = append(f.sent, cmd)
	f.timeouts = append(f.timeouts, timeout)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &wire.Message{Payload: []byte(`{"print":{"result":"success"}}`)}, nil
}

func newTestShell(p printer) (*Shell, *bytes.Buffer) {
	var buf bytes.Buffer
	return &Shell{printer: p, timeout: time.Second, out: &buf}, &buf
}

func TestShellSendsCommands(t *testing.T) {
	p := &fakePrinter{}
	sh, out := newTestShell(p)

	assert.False(t, sh.execute(context.Background(), "pause"))
	assert.False(t, sh.execute(context.Background(), "LIGHT chamber on"))

	require.Len(t, p.sent, 2)
	assert.Equal(t, command.NamePause, p.sent[0].Name)
	assert.Equal(t, command.NameLEDControl, p.sent[1].Name)
	assert.Equal(t, "chamber_light", p.sent[1].Params["led_node"])
	assert.Equal(t, []time.Duration{time.Second, time.Second}, p.timeouts)
	assert.Contains(t, out.String(), `pause: {"print":{"result":"success"}}`)
}

func TestShellReportsErrors(t *testing.T) {
	p := &fakePrinter{sendErr: correlator.ErrCommandTimeout, refreshErr: errors.New("boom")}
	sh, out := newTestShell(p)

	sh.execute(context.Background(), "stop")
	assert.Contains(t, out.String(), "stop failed")

	sh.execute(context.Background(), "refresh")
	assert.Contains(t, out.String(), "Refresh failed: boom")

	sh.execute(context.Background(), "fan part 300")
	assert.Contains(t, out.String(), "invalid argument")

	sh.execute(context.Background(), "frobnicate")
	assert.Contains(t, out.String(), "unknown command: frobnicate")

	assert.Len(t, p.sent, 1, "invalid commands are not sent")
}

func TestShellState(t *testing.T) {
	p := &fakePrinter{snapshot: &state.State{Temps: &state.Temperatures{Nozzle: state.Ptr(210.5)}}}
	sh, out := newTestShell(p)

	sh.execute(context.Background(), "get temps.nozzle")
	assert.Contains(t, out.String(), "210.5")

	out.Reset()
	sh.execute(context.Background(), "get temps.bed")
	assert.Contains(t, out.String(), "temps.bed: not reported")

	out.Reset()
	sh.execute(context.Background(), "state")
	assert.Contains(t, out.String(), `"temps"`)

	out.Reset()
	sh.execute(context.Background(), "status")
	assert.Contains(t, out.String(), "CONNECTED")
	assert.Contains(t, out.String(), "Pending: 2")
}

func TestShellQuitAndBlank(t *testing.T) {
	sh, _ := newTestShell(&fakePrinter{})
	assert.False(t, sh.execute(context.Background(), "   "))
	assert.True(t, sh.execute(context.Background(), "quit"))
	assert.True(t, sh.execute(context.Background(), "exit"))
}

func TestBuildCommand(t *testing.T) {
	valid := map[string][]string{
		"version": nil,
		"resume":  nil,
		"home":    nil,
		"unload":  nil,
		"speed":   {"sport"},
		"light":   {"work", "off"},
		"fan":     {"aux", "128"},
		"temp":    {"bed", "60"},
		"move":    {"z", "-1.5"},
		"gcode":   {"M104", "S0;", "G28"},
		"print":   {"ftp:///job.3mf", "2", "ams"},
	}
	for verb, args := range valid {
		cmd, err := buildCommand(verb, args)
		require.NoError(t, err, verb)
		assert.NoError(t, cmd.Validate(), verb)
	}

	gcode, err := buildCommand("gcode", []string{"M104", "S0;", "G28"})
	require.NoError(t, err)
	assert.Equal(t, "M104 S0\nG28\n", gcode.Params["param"])

	job, err := buildCommand("print", []string{"ftp:///job.3mf", "2", "ams"})
	require.NoError(t, err)
	assert.Equal(t, "Metadata/plate_2.gcode", job.Params["param"])
	assert.Equal(t, true, job.Params["use_ams"])

	invalid := map[string][]string{
		"pause": {"now"},
		"speed": nil,
		"light": {"desk", "on"},
		"fan":   {"part", "fast"},
		"temp":  {"nozzle"},
		"move":  {"x", "far"},
		"gcode": nil,
		"print": {"ftp:///job.3mf", "1", "nope"},
	}
	for verb, args := range invalid {
		_, err := buildCommand(verb, args)
		assert.Error(t, err, verb)
	}

	_, err = buildCommand("speed", nil)
	assert.EqualError(t, err, "usage: speed <silent|standard|sport|ludicrous|1-4>")
}
