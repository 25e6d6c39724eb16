package state

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() *State {
	return &State{
		Temps: &Temperatures{
			Nozzle:    Ptr(210.0),
			BedTarget: Ptr(60.0),
		},
		Fans:   &Fans{Part: Ptr(15.0)},
		Lights: map[string]LightMode{"chamber_light": LightOn},
		AMS: &AMS{
			Trays: map[int]Tray{
				0: {ID: 0, Type: Ptr("PLA"), Remain: Ptr(80.0)},
				1: {ID: 1, Type: Ptr("PETG")},
			},
			TrayNow: Ptr(int64(0)),
		},
		Network: &Network{
			WifiSignalDBm: Ptr(int64(-45)),
			Interfaces:    []NetInterface{{IP: Ptr(int64(1)), Mask: Ptr(int64(2))}},
		},
		Job: &Job{Percent: Ptr(12.0), File: Ptr("cube.3mf")},
		Meta: Meta{
			Timestamp:  time.Unix(1700000000, 0),
			SequenceID: Ptr("7"),
		},
	}
}

func TestMergeIdentity(t *testing.T) {
	s := sampleState()

	assert.Equal(t, s, Merge(s, &State{}))
	assert.Equal(t, s, Merge(s, nil))
}

func TestMergeNilPrevious(t *testing.T) {
	patch := &State{Temps: &Temperatures{Bed: Ptr(60.0)}}

	got := Merge(nil, patch)
	require.NotNil(t, got)
	assert.Equal(t, patch, got)

	// The result must not alias the patch.
	*got.Temps.Bed = 70
	assert.Equal(t, 60.0, *patch.Temps.Bed)
}

func TestMergeDoesNotClearAbsentFields(t *testing.T) {
	prev := sampleState()
	patch := &State{Temps: &Temperatures{Bed: Ptr(61.0)}}

	got := Merge(prev, patch)

	assert.Equal(t, 61.0, *got.Temps.Bed)
	assert.Equal(t, 210.0, *got.Temps.Nozzle)
	assert.Equal(t, 60.0, *got.Temps.BedTarget)
	assert.Equal(t, "cube.3mf", *got.Job.File)
	assert.Equal(t, prev.Meta, got.Meta)
	assert.Nil(t, prev.Temps.Bed, "previous snapshot must not be mutated")
}

func TestMergeRecursesIntoMaps(t *testing.T) {
	prev := sampleState()
	patch := &State{
		AMS: &AMS{Trays: map[int]Tray{
			0:   {ID: 0, Remain: Ptr(40.0)},
			254: NewTray(254),
		}},
		Lights: map[string]LightMode{"work_light": LightFlashing},
	}

	got := Merge(prev, patch)

	require.Len(t, got.AMS.Trays, 3)
	assert.Equal(t, "PLA", *got.AMS.Trays[0].Type)
	assert.Equal(t, 40.0, *got.AMS.Trays[0].Remain)
	assert.True(t, got.AMS.Trays[254].External)
	assert.Equal(t, int64(0), *got.AMS.TrayNow)
	assert.Equal(t, map[string]LightMode{
		"chamber_light": LightOn,
		"work_light":    LightFlashing,
	}, got.Lights)
}

func TestMergeReplacesSlices(t *testing.T) {
	prev := sampleState()

	t.Run("Replace", func(t *testing.T) {
		patch := &State{Network: &Network{Interfaces: []NetInterface{{IP: Ptr(int64(9))}}}}
		got := Merge(prev, patch)
		assert.Equal(t, []NetInterface{{IP: Ptr(int64(9))}}, got.Network.Interfaces)
		assert.Equal(t, int64(-45), *got.Network.WifiSignalDBm)
	})

	t.Run("EmptyClears", func(t *testing.T) {
		patch := &State{Network: &Network{Interfaces: []NetInterface{}}}
		got := Merge(prev, patch)
		assert.NotNil(t, got.Network.Interfaces)
		assert.Empty(t, got.Network.Interfaces)
	})
}

func TestMergeMeta(t *testing.T) {
	prev := sampleState()
	ts := time.Unix(1700000100, 0)
	patch := &State{Meta: Meta{Timestamp: ts, Command: Ptr("push_status")}}

	got := Merge(prev, patch)

	assert.Equal(t, ts, got.Meta.Timestamp)
	assert.Equal(t, "push_status", *got.Meta.Command)
	assert.Equal(t, "7", *got.Meta.SequenceID)
}

func TestDiffNoop(t *testing.T) {
	s := sampleState()

	patch, changed := Diff(s, Clone(s))
	assert.False(t, changed)
	assert.Nil(t, patch)

	// Bookkeeping alone is not a change.
	other := Clone(s)
	other.Meta = Meta{Timestamp: time.Now(), Raw: json.RawMessage(`{}`)}
	_, changed = Diff(s, other)
	assert.False(t, changed)
}

func TestDiffMinimalPatch(t *testing.T) {
	prev := sampleState()
	next := Clone(prev)
	next.Temps.Bed = Ptr(61.0)

	patch, changed := Diff(prev, next)
	require.True(t, changed)

	data, err := json.Marshal(patch)
	require.NoError(t, err)
	assert.JSONEq(t, `{"temps":{"bed":61}}`, string(data))
}

func TestDiffTrays(t *testing.T) {
	prev := sampleState()
	next := Clone(prev)
	tray := next.AMS.Trays[1]
	tray.ColorHex = Ptr("FF0000FF")
	next.AMS.Trays[1] = tray
	next.AMS.Trays[254] = NewTray(254)

	patch, changed := Diff(prev, next)
	require.True(t, changed)
	require.NotNil(t, patch.AMS)

	assert.Len(t, patch.AMS.Trays, 2)
	assert.Equal(t, Tray{ID: 1, ColorHex: Ptr("FF0000FF")}, patch.AMS.Trays[1])
	assert.True(t, patch.AMS.Trays[254].External)
	assert.Nil(t, patch.AMS.TrayNow)
	assert.Nil(t, patch.Temps)
}

func TestDiffSlicesWhole(t *testing.T) {
	prev := sampleState()

	t.Run("Same", func(t *testing.T) {
		next := Clone(prev)
		_, changed := Diff(prev, next)
		assert.False(t, changed)
	})

	t.Run("Longer", func(t *testing.T) {
		next := Clone(prev)
		next.Network.Interfaces = append(next.Network.Interfaces, NetInterface{IP: Ptr(int64(3))})
		patch, changed := Diff(prev, next)
		require.True(t, changed)
		assert.Equal(t, next.Network.Interfaces, patch.Network.Interfaces)
		assert.Nil(t, patch.Network.WifiSignalDBm)
	})

	t.Run("ElementChanged", func(t *testing.T) {
		next := Clone(prev)
		next.Network.Interfaces[0].Mask = Ptr(int64(99))
		patch, changed := Diff(prev, next)
		require.True(t, changed)
		assert.Equal(t, next.Network.Interfaces, patch.Network.Interfaces)
	})
}

func TestDiffMergeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		s1   *State
		s2   func(*State) *State
	}{
		{
			name: "FromEmpty",
			s1:   &State{},
			s2:   func(*State) *State { return sampleState() },
		},
		{
			name: "LeafChanges",
			s1:   sampleState(),
			s2: func(s *State) *State {
				n := Clone(s)
				n.Temps.Nozzle = Ptr(215.5)
				n.Job.Percent = Ptr(13.0)
				n.Camera = &Camera{Enabled: Ptr(true), Record: Ptr(ToggleEnable)}
				return n
			},
		},
		{
			name: "TrayAndArrayReplacement",
			s1:   sampleState(),
			s2: func(s *State) *State {
				n := Clone(s)
				n.AMS.Trays[2] = Tray{ID: 2, Type: Ptr("ABS")}
				n.Network.Interfaces = []NetInterface{{IP: Ptr(int64(10))}, {IP: Ptr(int64(11))}}
				n.Lights["work_light"] = LightOff
				return n
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s2 := tt.s2(tt.s1)
			s2.Meta = tt.s1.Meta

			patch, changed := Diff(tt.s1, s2)
			require.True(t, changed)
			assert.Equal(t, s2, Merge(tt.s1, patch))
		})
	}
}

func TestEqual(t *testing.T) {
	a := sampleState()
	b := Clone(a)
	b.Meta = Meta{}
	assert.True(t, Equal(a, b))

	b.Lights["work_light"] = LightOn
	assert.False(t, Equal(a, b))
	assert.False(t, Equal(a, nil))
	assert.True(t, Equal(nil, nil))
}

func TestSelect(t *testing.T) {
	s := sampleState()

	tests := []struct {
		path string
		want any
		ok   bool
	}{
		{"temps.nozzle", 210.0, true},
		{"temps.bed", nil, false},
		{"ams.trays.0.type", "PLA", true},
		{"ams.trays.254.type", nil, false},
		{"lights.chamber_light", LightOn, true},
		{"network.interfaces.0.ip", int64(1), true},
		{"network.interfaces.5.ip", nil, false},
		{"camera.enabled", nil, false},
		{"meta.sequenceId", "7", true},
		{"nope", nil, false},
		{"temps..bed", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := Select(s, tt.path)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseEnums(t *testing.T) {
	m, ok := ParseLightMode("flashing")
	assert.True(t, ok)
	assert.Equal(t, LightFlashing, m)
	_, ok = ParseLightMode("strobe")
	assert.False(t, ok)

	u, ok := ParseUpgradeStatus("DOWNLOADING")
	assert.True(t, ok)
	assert.Equal(t, UpgradeDownloading, u)
	_, ok = ParseUpgradeStatus("FLASHING")
	assert.False(t, ok)

	_, ok = ParseToggle("maybe")
	assert.False(t, ok)
}
