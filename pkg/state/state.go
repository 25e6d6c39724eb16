package state

import (
	"encoding/json"
	"time"
)

// ExternalTrayID is the reserved tray id of the external spool holder, which
// is not part of the automatic material system.
const ExternalTrayID = 254

// LightMode is the reported mode of a light node.
type LightMode string

const (
	LightOn       LightMode = "on"
	LightOff      LightMode = "off"
	LightFlashing LightMode = "flashing"
)

// ParseLightMode validates a reported light mode.
func ParseLightMode(s string) (LightMode, bool) {
	switch m := LightMode(s); m {
	case LightOn, LightOff, LightFlashing:
		return m, true
	default:
		return "", false
	}
}

// Toggle is an enable/disable switch as reported by the camera subsystem.
type Toggle string

const (
	ToggleEnable  Toggle = "enable"
	ToggleDisable Toggle = "disable"
)

// ParseToggle validates a reported enable/disable value.
func ParseToggle(s string) (Toggle, bool) {
	switch t := Toggle(s); t {
	case ToggleEnable, ToggleDisable:
		return t, true
	default:
		return "", false
	}
}

// UpgradeStatus is the firmware upgrade state machine position.
type UpgradeStatus string

const (
	UpgradeIdle        UpgradeStatus = "IDLE"
	UpgradeDownloading UpgradeStatus = "DOWNLOADING"
	UpgradeInstalling  UpgradeStatus = "INSTALLING"
	UpgradeUnknown     UpgradeStatus = "UNKNOWN"
)

// ParseUpgradeStatus validates a reported upgrade status.
func ParseUpgradeStatus(s string) (UpgradeStatus, bool) {
	switch u := UpgradeStatus(s); u {
	case UpgradeIdle, UpgradeDownloading, UpgradeInstalling, UpgradeUnknown:
		return u, true
	default:
		return "", false
	}
}

// State is the canonical snapshot of a printer.
type State struct {
	Temps        *Temperatures        `json:"temps,omitempty"`
	Fans         *Fans                `json:"fans,omitempty"`
	Lights       map[string]LightMode `json:"lights,omitempty"`
	Camera       *Camera              `json:"camera,omitempty"`
	Upgrade      *Upgrade             `json:"upgrade,omitempty"`
	AMS          *AMS                 `json:"ams,omitempty"`
	ExternalTray *Tray                `json:"externalTray,omitempty"`
	Online       *Online              `json:"online,omitempty"`
	Network      *Network             `json:"network,omitempty"`
	Job          *Job                 `json:"job,omitempty"`
	Nozzle       *Nozzle              `json:"nozzle,omitempty"`

	Meta Meta `json:"meta,omitzero" diff:"-"`
}

// Temperatures in degrees Celsius.
type Temperatures struct {
	Nozzle       *float64 `json:"nozzle,omitempty"`
	NozzleTarget *float64 `json:"nozzleTarget,omitempty"`
	Bed          *float64 `json:"bed,omitempty"`
	BedTarget    *float64 `json:"bedTarget,omitempty"`
	Chamber      *float64 `json:"chamber,omitempty"`
}

// Fans holds fan duty values in the unit the device reports.
type Fans struct {
	Part      *float64 `json:"part,omitempty"`
	Aux       *float64 `json:"aux,omitempty"`
	Chamber   *float64 `json:"chamber,omitempty"`
	Heatbreak *float64 `json:"heatbreak,omitempty"`
}

// Camera describes the built-in camera.
type Camera struct {
	Enabled    *bool   `json:"enabled,omitempty"`
	Record     *Toggle `json:"record,omitempty"`
	Timelapse  *Toggle `json:"timelapse,omitempty"`
	Resolution *string `json:"resolution,omitempty"`
	ModeBits   *int64  `json:"modeBits,omitempty"`
}

// Upgrade describes the firmware upgrade subsystem.
type Upgrade struct {
	Status         *UpgradeStatus `json:"status,omitempty"`
	ProgressPct    *float64       `json:"progressPct,omitempty"`
	Message        *string        `json:"message,omitempty"`
	CurrentVersion *string        `json:"currentVersion,omitempty"`
	NewVersion     *string        `json:"newVersion,omitempty"`
	HasNewVersion  *bool          `json:"hasNewVersion,omitempty"`
}

// AMS is the automatic material system.
type AMS struct {
	Trays     map[int]Tray `json:"trays,omitempty"`
	TrayNow   *int64       `json:"trayNow,omitempty"`
	TrayPre   *int64       `json:"trayPre,omitempty"`
	ExistBits *string      `json:"existBits,omitempty"`
	IsBBLBits *string      `json:"isBblBits,omitempty"`
	Version   *int64       `json:"version,omitempty"`
}

// Tray is one material slot.
type Tray struct {
	ID       int  `json:"id"`
	External bool `json:"external"`

	Type          *string  `json:"type,omitempty"`
	ColorHex      *string  `json:"colorHex,omitempty"`
	InfoIdx       *string  `json:"infoIdx,omitempty"`
	NozzleTempMin *float64 `json:"nozzleTempMin,omitempty"`
	NozzleTempMax *float64 `json:"nozzleTempMax,omitempty"`
	BedTemp       *float64 `json:"bedTemp,omitempty"`
	Remain        *float64 `json:"remain,omitempty"`
}

// NewTray returns a tray record with the external flag derived from id.
func NewTray(id int) Tray {
	return Tray{ID: id, External: id == ExternalTrayID}
}

// Online reports which optional modules are connected.
type Online struct {
	AHB     *bool   `json:"ahb,omitempty"`
	RFID    *bool   `json:"rfid,omitempty"`
	Version *string `json:"version,omitempty"`
}

// Network describes the printer's network link.
type Network struct {
	WifiSignalDBm *int64         `json:"wifiSignalDbm,omitempty"`
	Interfaces    []NetInterface `json:"interfaces,omitempty"`
}

// NetInterface is one reported address. IP and mask are packed integers as
// sent by the firmware.
type NetInterface struct {
	IP   *int64 `json:"ip,omitempty"`
	Mask *int64 `json:"mask,omitempty"`
}

// Job describes the active print job.
type Job struct {
	Stage            *string  `json:"stage,omitempty"`
	SubStage         *int64   `json:"subStage,omitempty"`
	Percent          *float64 `json:"percent,omitempty"`
	RemainingSeconds *float64 `json:"remainingSeconds,omitempty"`
	File             *string  `json:"file,omitempty"`
	GcodeState       *string  `json:"gcodeState,omitempty"`
	PrintType        *string  `json:"printType,omitempty"`
	Lifecycle        *string  `json:"lifecycle,omitempty"`
	Layer            *int64   `json:"layer,omitempty"`
	TotalLayers      *int64   `json:"totalLayers,omitempty"`
}

// Nozzle describes the installed hotend nozzle.
type Nozzle struct {
	Diameter *string `json:"diameter,omitempty"`
	Type     *string `json:"type,omitempty"`
}

// Meta is bookkeeping about the message a snapshot was last updated from.
type Meta struct {
	Timestamp  time.Time       `json:"timestamp"`
	Raw        json.RawMessage `json:"raw,omitempty"`
	Command    *string         `json:"command,omitempty"`
	SequenceID *string         `json:"sequenceId,omitempty"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
