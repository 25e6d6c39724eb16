package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bambu-link/bambu-go/pkg/state"
)

// ErrMalformed is returned when a payload is not a JSON document at all.
var ErrMalformed = errors.New("malformed status payload")

// Decode runs the lenient schema pass over raw. Only syntactically invalid
// JSON is an error; shape mismatches leave the affected fields absent.
func Decode(raw []byte) (*Report, error) {
	var doc Report
	if err := json.Unmarshal(raw, &doc); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	return &doc, nil
}

// Normalize decodes raw and projects it into a partial canonical state
// stamped with now.
func Normalize(raw []byte, now time.Time) (*state.State, error) {
	doc, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return Project(doc, raw, now), nil
}

// Project maps a decoded report onto the canonical model. It never fails:
// anything that does not coerce is left absent.
func Project(doc *Report, raw []byte, now time.Time) *state.State {
	s := &state.State{
		Meta: state.Meta{Timestamp: now},
	}
	if len(raw) > 0 {
		s.Meta.Raw = append(json.RawMessage(nil), raw...)
	}

	p := doc.Print
	if p == nil {
		s.Meta.Command = str(doc.Command)
		s.Meta.SequenceID = str(doc.SequenceID)
		return s
	}

	s.Meta.Command = firstStr(p.Command, doc.Command)
	s.Meta.SequenceID = firstStr(p.SequenceID, doc.SequenceID)

	s.Temps = temps(p)
	s.Fans = fans(p)
	s.Lights = lights(p.LightsReport)
	s.Camera = camera(p.IPCam)
	s.Upgrade = upgrade(p.UpgradeState)
	s.AMS = ams(p)
	s.ExternalTray = externalTray(p.VTTray)
	s.Online = online(p.Online)
	s.Network = network(p)
	s.Job = job(p)
	s.Nozzle = nozzle(p)
	return s
}

func temps(p *PrintReport) *state.Temperatures {
	t := &state.Temperatures{
		Nozzle:       num(p.NozzleTemper),
		NozzleTarget: num(p.NozzleTargetTemper),
		Bed:          num(p.BedTemper),
		BedTarget:    num(p.BedTargetTemper),
		Chamber:      num(p.ChamberTemper),
	}
	if *t == (state.Temperatures{}) {
		return nil
	}
	return t
}

func fans(p *PrintReport) *state.Fans {
	f := &state.Fans{
		Part:      num(p.CoolingFanSpeed),
		Aux:       num(p.BigFan1Speed),
		Chamber:   num(p.BigFan2Speed),
		Heatbreak: num(p.HeatbreakFanSpeed),
	}
	if *f == (state.Fans{}) {
		return nil
	}
	return f
}

func lights(list []LightReport) map[string]state.LightMode {
	var out map[string]state.LightMode
	for _, l := range list {
		node, ok := l.Node.String()
		if !ok {
			continue
		}
		raw, ok := l.Mode.String()
		if !ok {
			continue
		}
		mode, ok := state.ParseLightMode(raw)
		if !ok {
			continue
		}
		if out == nil {
			out = make(map[string]state.LightMode)
		}
		out[node] = mode
	}
	return out
}

func camera(c *IPCamReport) *state.Camera {
	if c == nil {
		return nil
	}
	cam := &state.Camera{
		Resolution: str(c.Resolution),
		ModeBits:   integer(c.ModeBits),
	}
	if dev, ok := c.IPCamDev.String(); ok {
		cam.Enabled = state.Ptr(dev == "1")
	}
	cam.Record = toggle(c.IPCamRecord)
	cam.Timelapse = toggle(c.Timelapse)
	if *cam == (state.Camera{}) {
		return nil
	}
	return cam
}

func upgrade(u *UpgradeReport) *state.Upgrade {
	if u == nil {
		return nil
	}
	up := &state.Upgrade{
		Message: str(u.Message),
	}
	if s, ok := u.Status.String(); ok {
		if status, ok := state.ParseUpgradeStatus(s); ok {
			up.Status = &status
		}
	}
	if pct, ok := parsePercent(u.Progress); ok {
		up.ProgressPct = &pct
	}
	if u.NewVerList != nil {
		var cur, next *string
		if len(u.NewVerList) > 0 {
			cur = str(u.NewVerList[0].CurVer)
			next = str(u.NewVerList[0].NewVer)
		}
		up.CurrentVersion = cur
		up.NewVersion = next
		up.HasNewVersion = state.Ptr(next != nil && (cur == nil || *next != *cur))
	}
	if *up == (state.Upgrade{}) {
		return nil
	}
	return up
}

func ams(p *PrintReport) *state.AMS {
	a := p.AMS
	if a == nil {
		a = &AMSReport{}
	}

	var trays map[int]state.Tray
	for _, unit := range a.Units {
		for i := range unit.Trays {
			t, ok := tray(&unit.Trays[i], -1)
			if !ok {
				continue
			}
			if trays == nil {
				trays = make(map[int]state.Tray)
			}
			trays[t.ID] = t
		}
	}

	reported := a.TrayNow.Present() || a.TrayPre.Present() || a.AMSExistBits.Present() ||
		a.TrayIsBBLBits.Present() || a.Version.Present()
	if len(trays) == 0 && !reported {
		return nil
	}

	return &state.AMS{
		Trays:     trays,
		TrayNow:   integer(a.TrayNow),
		TrayPre:   integer(a.TrayPre),
		ExistBits: firstStr(a.AMSExistBits, p.AMSExistBits),
		IsBBLBits: firstStr(a.TrayIsBBLBits, p.TrayIsBBL),
		Version:   firstInt(a.Version, p.Version),
	}
}

func externalTray(vt *TrayReport) *state.Tray {
	if vt == nil || !vt.present() {
		return nil
	}
	t, _ := tray(vt, state.ExternalTrayID)
	return &t
}

func (r *TrayReport) present() bool {
	for _, v := range []Value{r.ID, r.TrayType, r.TrayColor, r.TrayInfoIdx,
		r.NozzleTempMin, r.NozzleTempMax, r.BedTemp, r.Remain} {
		if v.Present() {
			return true
		}
	}
	return false
}

// tray projects one tray record. When fallbackID is negative a tray without a
// usable id is rejected.
func tray(r *TrayReport, fallbackID int) (state.Tray, bool) {
	id, ok := r.ID.Int()
	if !ok {
		if fallbackID < 0 {
			return state.Tray{}, false
		}
		id = int64(fallbackID)
	}

	t := state.NewTray(int(id))
	t.Type = str(r.TrayType)
	t.ColorHex = str(r.TrayColor)
	t.InfoIdx = str(r.TrayInfoIdx)
	t.NozzleTempMin = num(r.NozzleTempMin)
	t.NozzleTempMax = num(r.NozzleTempMax)
	t.BedTemp = num(r.BedTemp)
	t.Remain = num(r.Remain)
	return t, true
}

func online(o *OnlineReport) *state.Online {
	if o == nil {
		return nil
	}
	out := &state.Online{
		AHB:     boolean(o.AHB),
		RFID:    boolean(o.RFID),
		Version: str(o.Version),
	}
	if *out == (state.Online{}) {
		return nil
	}
	return out
}

func network(p *PrintReport) *state.Network {
	n := &state.Network{}
	if dbm, ok := parseSignal(p.WifiSignal); ok {
		n.WifiSignalDBm = &dbm
	}
	if p.Net != nil {
		for _, info := range p.Net.Info {
			n.Interfaces = append(n.Interfaces, state.NetInterface{
				IP:   integer(info.IP),
				Mask: integer(info.Mask),
			})
		}
	}
	if n.WifiSignalDBm == nil && len(n.Interfaces) == 0 {
		return nil
	}
	return n
}

func job(p *PrintReport) *state.Job {
	j := &state.Job{
		Stage:            str(p.MCPrintStage),
		SubStage:         integer(p.MCPrintSubStage),
		Percent:          num(p.MCPercent),
		RemainingSeconds: num(p.MCRemainingTime),
		File:             str(p.GcodeFile),
		GcodeState:       str(p.GcodeState),
		PrintType:        str(p.PrintType),
		Lifecycle:        str(p.Lifecycle),
		Layer:            integer(p.LayerNum),
		TotalLayers:      integer(p.TotalLayerNum),
	}
	if *j == (state.Job{}) {
		return nil
	}
	return j
}

func nozzle(p *PrintReport) *state.Nozzle {
	n := &state.Nozzle{
		Diameter: str(p.NozzleDiameter),
		Type:     str(p.NozzleType),
	}
	if *n == (state.Nozzle{}) {
		return nil
	}
	return n
}

func num(v Value) *float64 {
	if f, ok := v.Float(); ok {
		return &f
	}
	return nil
}

func integer(v Value) *int64 {
	if n, ok := v.Int(); ok {
		return &n
	}
	return nil
}

func str(v Value) *string {
	if s, ok := v.String(); ok {
		return &s
	}
	return nil
}

func boolean(v Value) *bool {
	if b, ok := v.Bool(); ok {
		return &b
	}
	return nil
}

func toggle(v Value) *state.Toggle {
	s, ok := v.String()
	if !ok {
		return nil
	}
	if t, ok := state.ParseToggle(s); ok {
		return &t
	}
	return nil
}

func firstStr(vs ...Value) *string {
	for _, v := range vs {
		if s := str(v); s != nil {
			return s
		}
	}
	return nil
}

func firstInt(vs ...Value) *int64 {
	for _, v := range vs {
		if n := integer(v); n != nil {
			return n
		}
	}
	return nil
}
