package engine

import (
	"fmt"
	"strings"
)

// Trigger is the external event that caused a reconciliation pass.
type Trigger string

const (
	TriggerInstall       Trigger = "install"
	TriggerConfigChanged Trigger = "config-changed"
	TriggerUpgrade       Trigger = "upgrade"
	TriggerStart         Trigger = "start"
	TriggerUpdateStatus  Trigger = "update-status"
)

// Triggers lists every trigger in a stable order.
var Triggers = []Trigger{TriggerInstall, TriggerConfigChanged, TriggerUpgrade, TriggerStart, TriggerUpdateStatus}

// ParseTrigger maps a hook name onto a Trigger.
func ParseTrigger(value string) (Trigger, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, trigger := range Triggers {
		if string(trigger) == normalized {
			return trigger, nil
		}
	}
	return "", fmt.Errorf("unknown trigger %q", value)
}
