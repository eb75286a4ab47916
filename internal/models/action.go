package models

import (
	"fmt"
	"strings"
)

// Action is the care task a reminder is about.
type Action string

const (
	ActionFeed     Action = "feed"
	ActionWater    Action = "water"
	ActionPotty    Action = "potty"
	ActionWalk     Action = "walk"
	ActionBrush    Action = "brush"
	ActionBathe    Action = "bathe"
	ActionMedicine Action = "medicine"
	ActionSleep    Action = "sleep"
	ActionTraining Action = "training"
	ActionVetVisit Action = "vet-visit"
	ActionCustom   Action = "custom"
)

// Actions lists every action in display order.
var Actions = []Action{
	ActionFeed, ActionWater, ActionPotty, ActionWalk, ActionBrush, ActionBathe,
	ActionMedicine, ActionSleep, ActionTraining, ActionVetVisit, ActionCustom,
}

var actionLabels = map[Action]string{
	ActionFeed:     "Feed",
	ActionWater:    "Fresh Water",
	ActionPotty:    "Potty",
	ActionWalk:     "Walk",
	ActionBrush:    "Brush",
	ActionBathe:    "Bathe",
	ActionMedicine: "Medicine",
	ActionSleep:    "Sleep",
	ActionTraining: "Training Session",
	ActionVetVisit: "Vet Visit",
	ActionCustom:   "Custom",
}

func (a Action) Valid() bool {
	_, ok := actionLabels[a]
	return ok
}

func (a Action) Label() string {
	if l, ok := actionLabels[a]; ok {
		return l
	}
	return string(a)
}

// ParseAction is case-insensitive and accepts "vet_visit" for "vet-visit".
func ParseAction(s string) (Action, error) {
	a := Action(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	if !a.Valid() {
		return "", fmt.Errorf("unknown action %q", s)
	}
	return a, nil
}
