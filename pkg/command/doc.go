// Package command builds the printer's control requests.
//
// Every builder returns a wire.Command that has not been assigned a sequence
// number yet. Hand it to a session or correlator to send it:
//
//	cmd, err := command.FanSpeed(command.FanPart, 255)
//	if err != nil {
//		return err
//	}
//	reply, err := sess.Send(ctx, cmd)
//
// G-code based commands are sent as print/gcode_line with one instruction
// per line.
package command
