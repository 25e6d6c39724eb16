package normalize

// Report is the lenient shape of an inbound status document. Every leaf is a
// Value, so a field of the wrong type never fails the decode; a nested object
// or list of the wrong shape is skipped and the rest of the document is kept.
type Report struct {
	Command        Value        `json:"command"`
	SequenceID     Value        `json:"sequence_id"`
	SequenceNumber Value        `json:"sequenceNumber"`
	Print          *PrintReport `json:"print"`
}

// PrintReport is the "print" object carried by push_status reports.
type PrintReport struct {
	Command    Value `json:"command"`
	SequenceID Value `json:"sequence_id"`

	NozzleTemper       Value `json:"nozzle_temper"`
	NozzleTargetTemper Value `json:"nozzle_target_temper"`
	BedTemper          Value `json:"bed_temper"`
	BedTargetTemper    Value `json:"bed_target_temper"`
	ChamberTemper      Value `json:"chamber_temper"`

	CoolingFanSpeed   Value `json:"cooling_fan_speed"`
	BigFan1Speed      Value `json:"big_fan1_speed"`
	BigFan2Speed      Value `json:"big_fan2_speed"`
	HeatbreakFanSpeed Value `json:"heatbreak_fan_speed"`

	LightsReport []LightReport  `json:"lights_report"`
	IPCam        *IPCamReport   `json:"ipcam"`
	UpgradeState *UpgradeReport `json:"upgrade_state"`
	AMS          *AMSReport     `json:"ams"`
	VTTray       *TrayReport    `json:"vt_tray"`
	Online       *OnlineReport  `json:"online"`
	Net          *NetReport     `json:"net"`
	WifiSignal   Value          `json:"wifi_signal"`
	AMSExistBits Value          `json:"ams_exist_bits"`
	TrayIsBBL    Value          `json:"tray_is_bbl_bits"`
	Version      Value          `json:"version"`

	MCPrintStage    Value `json:"mc_print_stage"`
	MCPrintSubStage Value `json:"mc_print_sub_stage"`
	MCPercent       Value `json:"mc_percent"`
	MCRemainingTime Value `json:"mc_remaining_time"`
	GcodeFile       Value `json:"gcode_file"`
	GcodeState      Value `json:"gcode_state"`
	PrintType       Value `json:"print_type"`
	Lifecycle       Value `json:"lifecycle"`
	LayerNum        Value `json:"layer_num"`
	TotalLayerNum   Value `json:"total_layer_num"`

	NozzleDiameter Value `json:"nozzle_diameter"`
	NozzleType     Value `json:"nozzle_type"`
}

// LightReport is one entry of lights_report.
type LightReport struct {
	Node Value `json:"node"`
	Mode Value `json:"mode"`
}

// IPCamReport is the camera block.
type IPCamReport struct {
	IPCamDev    Value `json:"ipcam_dev"`
	IPCamRecord Value `json:"ipcam_record"`
	Timelapse   Value `json:"timelapse"`
	Resolution  Value `json:"resolution"`
	ModeBits    Value `json:"mode_bits"`
}

// UpgradeReport is the firmware upgrade block.
type UpgradeReport struct {
	SequenceID Value           `json:"sequence_id"`
	Status     Value           `json:"status"`
	Progress   Value           `json:"progress"`
	Message    Value           `json:"message"`
	NewVerList []VersionReport `json:"new_ver_list"`
}

// VersionReport is one entry of new_ver_list.
type VersionReport struct {
	Name   Value `json:"name"`
	CurVer Value `json:"cur_ver"`
	NewVer Value `json:"new_ver"`
}

// AMSReport is the material system block.
type AMSReport struct {
	Units         []AMSUnitReport `json:"ams"`
	TrayNow       Value           `json:"tray_now"`
	TrayPre       Value           `json:"tray_pre"`
	AMSExistBits  Value           `json:"ams_exist_bits"`
	TrayIsBBLBits Value           `json:"tray_is_bbl_bits"`
	Version       Value           `json:"version"`
}

// AMSUnitReport is one feeder unit.
type AMSUnitReport struct {
	ID    Value        `json:"id"`
	Trays []TrayReport `json:"tray"`
}

// TrayReport is one tray record, used for AMS trays and vt_tray alike.
type TrayReport struct {
	ID            Value `json:"id"`
	TrayType      Value `json:"tray_type"`
	TrayColor     Value `json:"tray_color"`
	TrayInfoIdx   Value `json:"tray_info_idx"`
	NozzleTempMin Value `json:"nozzle_temp_min"`
	NozzleTempMax Value `json:"nozzle_temp_max"`
	BedTemp       Value `json:"bed_temp"`
	Remain        Value `json:"remain"`
}

// OnlineReport lists attached modules.
type OnlineReport struct {
	AHB     Value `json:"ahb"`
	RFID    Value `json:"rfid"`
	Version Value `json:"version"`
}

// NetReport is the network block.
type NetReport struct {
	Info []NetInfoReport `json:"info"`
}

// NetInfoReport is one interface address.
type NetInfoReport struct {
	IP   Value `json:"ip"`
	Mask Value `json:"mask"`
}
