package options

import (
	"fmt"
	"strconv"
	"strings"
)

// Option names understood by the server properties template.
const (
	ServerPort   = "server-port"
	Gamemode     = "gamemode"
	Difficulty   = "difficulty"
	MaxPlayers   = "max-players"
	Motd         = "motd"
	LevelName    = "level-name"
	PVP          = "pvp"
	OnlineMode   = "online-mode"
	ViewDistance = "view-distance"
)

// Kind is the value type of an option.
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindBool   Kind = "bool"
)

// Definition declares one configuration option.
type Definition struct {
	Name    string
	Kind    Kind
	Default string
	// Restart marks options whose change must cycle the server process.
	Restart bool
	Min     int
	Max     int
	Allowed []string
}

// Schema lists every option. The server reads server.properties only at
// startup, so every option is restart-requiring.
var Schema = []Definition{
	{Name: ServerPort, Kind: KindInt, Default: "25565", Restart: true, Min: 1, Max: 65535},
	{Name: Gamemode, Kind: KindString, Default: "survival", Restart: true, Allowed: []string{"survival", "creative", "adventure", "spectator"}},
	{Name: Difficulty, Kind: KindString, Default: "easy", Restart: true, Allowed: []string{"peaceful", "easy", "normal", "hard"}},
	{Name: MaxPlayers, Kind: KindInt, Default: "20", Restart: true, Min: 1, Max: 1 << 20},
	{Name: Motd, Kind: KindString, Default: "A Minecraft Server", Restart: true},
	{Name: LevelName, Kind: KindString, Default: "world", Restart: true},
	{Name: PVP, Kind: KindBool, Default: "true", Restart: true},
	{Name: OnlineMode, Kind: KindBool, Default: "true", Restart: true},
	{Name: ViewDistance, Kind: KindInt, Default: "10", Restart: true, Min: 2, Max: 32},
}

// Lookup returns the definition for name.
func Lookup(name string) (Definition, bool) {
	for _, def := range Schema {
		if def.Name == name {
			return def, true
		}
	}
	return Definition{}, false
}

// Defaults returns the default value for every option.
func Defaults() map[string]string {
	values := make(map[string]string, len(Schema))
	for _, def := range Schema {
		values[def.Name] = def.Default
	}
	return values
}

// RequiresRestart reports whether any of the changed options is restart-requiring.
// Names outside the schema are treated as restart-requiring.
func RequiresRestart(changed []string) bool {
	for _, name := range changed {
		def, ok := Lookup(name)
		if !ok || def.Restart {
			return true
		}
	}
	return false
}

// Validate checks a value against its definition and returns the normalized form.
func (d Definition) Validate(value string) (string, error) {
	value = strings.TrimSpace(value)
	switch d.Kind {
	case KindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return "", fmt.Errorf("option %q: %q is not an integer", d.Name, value)
		}
		if n < d.Min || n > d.Max {
			return "", fmt.Errorf("option %q: %d out of range %d-%d", d.Name, n, d.Min, d.Max)
		}
		return strconv.Itoa(n), nil
	case KindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return "", fmt.Errorf("option %q: %q is not a boolean", d.Name, value)
		}
		return strconv.FormatBool(b), nil
	}
	if len(d.Allowed) > 0 {
		lower := strings.ToLower(value)
		for _, allowed := range d.Allowed {
			if lower == allowed {
				return allowed, nil
			}
		}
		return "", fmt.Errorf("option %q: %q must be one of %s", d.Name, value, strings.Join(d.Allowed, ", "))
	}
	return value, nil
}
