// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

// Command is an outbound request to the command station. The set of
// implementations is closed; Encode handles every one of them.
//
// Commands with parameters are built with their New... constructor, which
// validates the parameters. Their fields are unexported, so a constructed
// command cannot change afterwards.
type Command interface {
	// Name returns the protocol name, e.g. "LAN_X_SET_TRACK_POWER_ON".
	Name() string
	isCommand()
}

// GetSerialNumber requests the serial number (LAN_GET_SERIAL_NUMBER).
type GetSerialNumber struct{}

// LogOff unsubscribes this client (LAN_LOGOFF). No reply.
type LogOff struct{}

// GetVersion requests the X-Bus version (LAN_X_GET_VERSION).
type GetVersion struct{}

// GetStatus requests the central state (LAN_X_GET_STATUS).
// The reply is LAN_X_STATUS_CHANGED.
type GetStatus struct{}

// SetTrackPowerOff switches the track voltage off (LAN_X_SET_TRACK_POWER_OFF).
type SetTrackPowerOff struct{}

// SetTrackPowerOn switches the track voltage on (LAN_X_SET_TRACK_POWER_ON).
type SetTrackPowerOn struct{}

// SetStop stops all locos, leaving track voltage on (LAN_X_SET_STOP).
type SetStop struct{}

// GetFirmwareVersion requests the firmware version (LAN_X_GET_FIRMWARE_VERSION).
type GetFirmwareVersion struct{}

// GetBroadcastFlags requests the subscribed broadcasts (LAN_GET_BROADCASTFLAGS).
type GetBroadcastFlags struct{}

// GetSystemState requests LAN_SYSTEMSTATE_DATACHANGED (LAN_SYSTEMSTATE_GETDATA).
type GetSystemState struct{}

// GetHwInfo requests hardware type and firmware version (LAN_GET_HWINFO).
type GetHwInfo struct{}

// GetCode requests the software feature scope (LAN_GET_CODE).
type GetCode struct{}

// SetBroadcastFlags subscribes this client to broadcasts (LAN_SET_BROADCASTFLAGS).
type SetBroadcastFlags struct {
	flags uint32
}

// NewSetBroadcastFlags creates a LAN_SET_BROADCASTFLAGS command.
// Use DefaultBroadcastFlags for driving, system state and all loco updates.
func NewSetBroadcastFlags(flags uint32) SetBroadcastFlags {
	return SetBroadcastFlags{flags: flags}
}

// Flags returns the broadcast flag mask
func (c SetBroadcastFlags) Flags() uint32 { return c.flags }

// GetLocoInfo requests the state of one loco (LAN_X_GET_LOCO_INFO).
type GetLocoInfo struct {
	address uint16
}

// NewGetLocoInfo creates a LAN_X_GET_LOCO_INFO command.
func NewGetLocoInfo(address uint16) (GetLocoInfo, error) {
	if err := validateLocoAddress("LAN_X_GET_LOCO_INFO", address); err != nil {
		return GetLocoInfo{}, err
	}
	return GetLocoInfo{address: address}, nil
}

// Address returns the loco address
func (c GetLocoInfo) Address() uint16 { return c.address }

// SetLocoDrive sets speed and direction of one loco (LAN_X_SET_LOCO_DRIVE).
type SetLocoDrive struct {
	address   uint16
	steps     SpeedSteps
	direction Direction
	speed     uint8
	emergency bool
}

// NewSetLocoDrive creates a LAN_X_SET_LOCO_DRIVE command.
// Speed 0 stops the loco; the maximum depends on steps (14, 28 or 126).
func NewSetLocoDrive(address uint16, steps SpeedSteps, direction Direction, speed uint8) (SetLocoDrive, error) {
	c := SetLocoDrive{address: address, steps: steps, direction: direction, speed: speed}
	if err := c.validate(); err != nil {
		return SetLocoDrive{}, err
	}
	return c, nil
}

// NewLocoEmergencyStop creates a LAN_X_SET_LOCO_DRIVE command that stops the
// loco immediately, ignoring its deceleration.
func NewLocoEmergencyStop(address uint16, steps SpeedSteps, direction Direction) (SetLocoDrive, error) {
	c := SetLocoDrive{address: address, steps: steps, direction: direction, emergency: true}
	if err := c.validate(); err != nil {
		return SetLocoDrive{}, err
	}
	return c, nil
}

func (c SetLocoDrive) validate() error {
	const name = "LAN_X_SET_LOCO_DRIVE"
	if err := validateLocoAddress(name, c.address); err != nil {
		return err
	}
	if !c.steps.Valid() {
		return invalidCommand(name, "speed steps", int(c.steps), "must be 14, 28 or 128")
	}
	if c.direction != Forward && c.direction != Reverse {
		return invalidCommand(name, "direction", int(c.direction), "must be forward or reverse")
	}
	if c.speed > c.steps.MaxSpeed() {
		return invalidCommand(name, "speed", int(c.speed), "exceeds the speed step range")
	}
	if c.emergency && c.speed != 0 {
		return invalidCommand(name, "speed", int(c.speed), "must be 0 for an emergency stop")
	}
	return nil
}

// Address returns the loco address
func (c SetLocoDrive) Address() uint16 { return c.address }

// SpeedSteps returns the speed step mode
func (c SetLocoDrive) SpeedSteps() SpeedSteps { return c.steps }

// Direction returns the direction of travel
func (c SetLocoDrive) Direction() Direction { return c.direction }

// Speed returns the speed step (0 = stop)
func (c SetLocoDrive) Speed() uint8 { return c.speed }

// EmergencyStop reports whether this is an emergency stop
func (c SetLocoDrive) EmergencyStop() bool { return c.emergency }

// SetLocoFunction switches one loco function (LAN_X_SET_LOCO_FUNCTION).
type SetLocoFunction struct {
	address uint16
	index   uint8
	action  FunctionAction
}

// NewSetLocoFunction creates a LAN_X_SET_LOCO_FUNCTION command for F0..F31.
func NewSetLocoFunction(address uint16, index uint8, action FunctionAction) (SetLocoFunction, error) {
	c := SetLocoFunction{address: address, index: index, action: action}
	if err := c.validate(); err != nil {
		return SetLocoFunction{}, err
	}
	return c, nil
}

func (c SetLocoFunction) validate() error {
	const name = "LAN_X_SET_LOCO_FUNCTION"
	if err := validateLocoAddress(name, c.address); err != nil {
		return err
	}
	if c.index > MaxFunctionIndex {
		return invalidCommand(name, "function", int(c.index), "must be 0-31")
	}
	if c.action > FunctionToggle {
		return invalidCommand(name, "action", int(c.action), "must be off, on or toggle")
	}
	return nil
}

// Address returns the loco address
func (c SetLocoFunction) Address() uint16 { return c.address }

// Function returns the function index (0 = light)
func (c SetLocoFunction) Function() uint8 { return c.index }

// Action returns the switch action
func (c SetLocoFunction) Action() FunctionAction { return c.action }

// GetTurnoutInfo requests the position of one turnout (LAN_X_GET_TURNOUT_INFO).
type GetTurnoutInfo struct {
	address uint16
}

// NewGetTurnoutInfo creates a LAN_X_GET_TURNOUT_INFO command. Address is 1-based.
func NewGetTurnoutInfo(address uint16) (GetTurnoutInfo, error) {
	if err := validateTurnoutAddress("LAN_X_GET_TURNOUT_INFO", address); err != nil {
		return GetTurnoutInfo{}, err
	}
	return GetTurnoutInfo{address: address}, nil
}

// Address returns the 1-based turnout address
func (c GetTurnoutInfo) Address() uint16 { return c.address }

// SetTurnout switches a turnout output (LAN_X_SET_TURNOUT).
type SetTurnout struct {
	address  uint16
	output   TurnoutOutput
	activate bool
	queue    bool
}

// NewSetTurnout creates a LAN_X_SET_TURNOUT command. Address is 1-based.
// With queue set, the command station queues the command instead of sending
// it to the track immediately.
func NewSetTurnout(address uint16, output TurnoutOutput, activate, queue bool) (SetTurnout, error) {
	const name = "LAN_X_SET_TURNOUT"
	if err := validateTurnoutAddress(name, address); err != nil {
		return SetTurnout{}, err
	}
	if output > TurnoutOutput2 {
		return SetTurnout{}, invalidCommand(name, "output", int(output), "must be output 1 or 2")
	}
	return SetTurnout{address: address, output: output, activate: activate, queue: queue}, nil
}

// Address returns the 1-based turnout address
func (c SetTurnout) Address() uint16 { return c.address }

// Output returns the selected output
func (c SetTurnout) Output() TurnoutOutput { return c.output }

// Activate reports whether the output is switched on
func (c SetTurnout) Activate() bool { return c.activate }

// Queue reports whether the command is queued
func (c SetTurnout) Queue() bool { return c.queue }

// GetRMBusData requests one R-Bus feedback group (LAN_RMBUS_GETDATA).
type GetRMBusData struct {
	group uint8
}

// NewGetRMBusData creates a LAN_RMBUS_GETDATA command.
// Group 0 covers modules 1-10, group 1 covers modules 11-20.
func NewGetRMBusData(group uint8) (GetRMBusData, error) {
	if group >= RMBusGroupCount {
		return GetRMBusData{}, invalidCommand("LAN_RMBUS_GETDATA", "group", int(group), "must be 0 or 1")
	}
	return GetRMBusData{group: group}, nil
}

// Group returns the feedback group index
func (c GetRMBusData) Group() uint8 { return c.group }

func validateLocoAddress(command string, address uint16) error {
	if address < MinLocoAddress || address > MaxLocoAddress {
		return invalidCommand(command, "loco address", int(address), "must be 1-9999")
	}
	return nil
}

func validateTurnoutAddress(command string, address uint16) error {
	if address < MinTurnoutAddress || address > MaxTurnoutAddress {
		return invalidCommand(command, "turnout address", int(address), "must be 1-2048")
	}
	return nil
}

func (GetSerialNumber) Name() string    { return "LAN_GET_SERIAL_NUMBER" }
func (LogOff) Name() string             { return "LAN_LOGOFF" }
func (GetVersion) Name() string         { return "LAN_X_GET_VERSION" }
func (GetStatus) Name() string          { return "LAN_X_GET_STATUS" }
func (SetTrackPowerOff) Name() string   { return "LAN_X_SET_TRACK_POWER_OFF" }
func (SetTrackPowerOn) Name() string    { return "LAN_X_SET_TRACK_POWER_ON" }
func (SetStop) Name() string            { return "LAN_X_SET_STOP" }
func (GetFirmwareVersion) Name() string { return "LAN_X_GET_FIRMWARE_VERSION" }
func (SetBroadcastFlags) Name() string  { return "LAN_SET_BROADCASTFLAGS" }
func (GetBroadcastFlags) Name() string  { return "LAN_GET_BROADCASTFLAGS" }
func (GetSystemState) Name() string     { return "LAN_SYSTEMSTATE_GETDATA" }
func (GetHwInfo) Name() string          { return "LAN_GET_HWINFO" }
func (GetCode) Name() string            { return "LAN_GET_CODE" }
func (GetLocoInfo) Name() string        { return "LAN_X_GET_LOCO_INFO" }
func (SetLocoDrive) Name() string       { return "LAN_X_SET_LOCO_DRIVE" }
func (SetLocoFunction) Name() string    { return "LAN_X_SET_LOCO_FUNCTION" }
func (GetTurnoutInfo) Name() string     { return "LAN_X_GET_TURNOUT_INFO" }
func (SetTurnout) Name() string         { return "LAN_X_SET_TURNOUT" }
func (GetRMBusData) Name() string       { return "LAN_RMBUS_GETDATA" }

func (GetSerialNumber) isCommand()    {}
func (LogOff) isCommand()             {}
func (GetVersion) isCommand()         {}
func (GetStatus) isCommand()          {}
func (SetTrackPowerOff) isCommand()   {}
func (SetTrackPowerOn) isCommand()    {}
func (SetStop) isCommand()            {}
func (GetFirmwareVersion) isCommand() {}
func (SetBroadcastFlags) isCommand()  {}
func (GetBroadcastFlags) isCommand()  {}
func (GetSystemState) isCommand()     {}
func (GetHwInfo) isCommand()          {}
func (GetCode) isCommand()            {}
func (GetLocoInfo) isCommand()        {}
func (SetLocoDrive) isCommand()       {}
func (SetLocoFunction) isCommand()    {}
func (GetTurnoutInfo) isCommand()     {}
func (SetTurnout) isCommand()         {}
func (GetRMBusData) isCommand()       {}
