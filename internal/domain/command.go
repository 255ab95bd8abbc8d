package domain

// Built-in station commands. They are executed by the station itself rather
// than looked up in the registry.
const (
	CommandPlay   = "play"
	CommandStop   = "stop"
	CommandPause  = "pause"
	CommandResume = "resume"
	CommandVolume = "volume"
	CommandSay    = "say"
)

// Default registry commands.
const (
	CommandLights   = "lights"
	CommandClimate  = "climate"
	CommandSecurity = "security"
	CommandWeather  = "weather"
	CommandNews     = "news"
	CommandTime     = "time"
)

// BuiltinCommands lists the station built-ins in a stable order.
var BuiltinCommands = []string{
	CommandPlay,
	CommandStop,
	CommandPause,
	CommandResume,
	CommandVolume,
	CommandSay,
}

// CommandRequest is the wire form of a command sent to the physical device.
type CommandRequest struct {
	Command string `json:"command"`
	Params  Params `json:"params"`
}
