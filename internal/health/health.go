package health

// Level is the workload status level shown to the operator.
type Level string

const (
	LevelMaintenance Level = "maintenance"
	LevelActive      Level = "active"
	LevelWaiting     Level = "waiting"
	LevelBlocked     Level = "blocked"
)

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelMaintenance, LevelActive, LevelWaiting, LevelBlocked:
		return true
	}
	return false
}

// Report is one status publication.
type Report struct {
	Level   Level
	Message string
}

// Canonical status messages.
const (
	MessageStarting     = "Starting..."
	MessageRestarting   = "Restarting..."
	MessageReady        = "Ready."
	MessageNeedResource = "Need server-jar resource."
	MessageNotRunning   = "Not running"
)

func Blocked(message string) Report     { return Report{Level: LevelBlocked, Message: message} }
func Active(message string) Report      { return Report{Level: LevelActive, Message: message} }
func Waiting(message string) Report     { return Report{Level: LevelWaiting, Message: message} }
func Maintenance(message string) Report { return Report{Level: LevelMaintenance, Message: message} }
