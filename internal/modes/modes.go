// Package modes translates between the Netatmo thermostat mode vocabulary and
// the platform-neutral hvac/preset vocabulary.
//
// The vendor uses different words for the same thing depending on the endpoint
// ("schedule" in /homestatus, "home" in /setstate) and overloads "away" to mean
// both the eco sub-level of a manual setpoint and the whole-home holiday mode.
// Every translation in the repository goes through this package; no entity
// adapter carries its own mapping table.
package modes

// HvacMode is the platform-neutral thermostat mode.
type HvacMode string

const (
	HvacAuto HvacMode = "auto"
	HvacHeat HvacMode = "heat"
	HvacOff  HvacMode = "off"
)

// Preset is the platform-neutral preset.
type Preset string

const (
	PresetNone    Preset = "none"
	PresetComfort Preset = "comfort"
	PresetEco     Preset = "eco"
	PresetAway    Preset = "away"
)

// HvacAction reports whether a room is actively heating.
type HvacAction string

const (
	ActionHeating HvacAction = "heating"
	ActionIdle    HvacAction = "idle"
	ActionOff     HvacAction = "off"
)

// Netatmo setpoint modes and fil pilote sub-modes, as they appear on the wire.
const (
	ModeSchedule   = "schedule"
	ModeHome       = "home"
	ModeManual     = "manual"
	ModeAway       = "away"
	ModeFrostGuard = "frost_guard"
	ModeHG         = "hg" // legacy spelling of frost_guard
	ModeOff        = "off"

	FPComfort    = "comfort"
	FPAway       = "away"
	FPFrostGuard = "frost_guard"
	FPEco        = "eco"
)

type localState struct {
	hvac   HvacMode
	preset Preset
}

var remoteToLocal = map[[2]string]localState{
	{ModeSchedule, ""}:         {HvacAuto, PresetNone},
	{ModeHome, ""}:             {HvacAuto, PresetNone},
	{ModeOff, ""}:              {HvacOff, PresetNone},
	{ModeManual, FPComfort}:    {HvacHeat, PresetComfort},
	{ModeManual, FPAway}:       {HvacHeat, PresetEco},
	{ModeManual, FPEco}:        {HvacHeat, PresetEco},
	{ModeManual, FPFrostGuard}: {HvacOff, PresetAway},
	{ModeManual, ""}:           {HvacHeat, PresetComfort},
	{ModeAway, ""}:             {HvacOff, PresetEco},
	{ModeFrostGuard, ""}:       {HvacOff, PresetAway},
}

// RemoteToLocal converts a Netatmo setpoint mode and optional fil pilote
// sub-mode to the platform hvac mode and preset. Unknown combinations fall
// back to auto/none: the vendor omits the fp modifier inconsistently and an
// "unknown" state must never reach the user.
func RemoteToLocal(setpointMode, fpMode string) (HvacMode, Preset) {
	mode := normalizeMode(setpointMode)
	fp := normalizeFP(fpMode)
	if s, ok := remoteToLocal[[2]string{mode, fp}]; ok {
		return s.hvac, s.preset
	}
	return HvacAuto, PresetNone
}

// LocalToRemote converts a platform hvac mode and preset to the mode and fil
// pilote sub-mode of a room command. It is total: every local state has
// exactly one remote representation.
//
// Note the asymmetry with RemoteToLocal: auto is sent as mode "home", not
// "schedule". The command vocabulary differs from the status vocabulary; this
// is a vendor quirk, not a bug.
func LocalToRemote(hvac HvacMode, preset Preset) (mode, fpMode string) {
	switch preset {
	case PresetComfort:
		return ModeManual, FPComfort
	case PresetEco:
		if hvac == HvacOff {
			// holiday: the whole-home away mode
			return ModeAway, ""
		}
		return ModeManual, FPAway
	case PresetAway:
		return ModeManual, FPFrostGuard
	}
	switch hvac {
	case HvacOff:
		return ModeOff, ""
	case HvacHeat:
		return ModeManual, FPComfort
	default:
		return ModeHome, ""
	}
}

// Action derives the hvac action from the translated mode and the room's
// heating power request.
func Action(hvac HvacMode, heatingPower *int) HvacAction {
	if hvac == HvacOff {
		return ActionOff
	}
	if heatingPower != nil && *heatingPower > 0 {
		return ActionHeating
	}
	return ActionIdle
}

func normalizeMode(mode string) string {
	switch mode {
	case ModeHG:
		return ModeFrostGuard
	case "":
		return ModeSchedule
	default:
		return mode
	}
}

func normalizeFP(fp string) string {
	if fp == ModeHG {
		return FPFrostGuard
	}
	return fp
}
