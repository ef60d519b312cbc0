package netatmo

import "github.com/clambin/go-common/set"

// Class is the capability class of a device type.
type Class int

const (
	ClassUnknown Class = iota
	ClassClimate
	ClassLight
	ClassDimmer
	ClassPlug
	ClassBridge
)

var classes = map[string]Class{
	// climate
	"NATherm1": ClassClimate, // smart thermostat
	"NRV":      ClassClimate, // radiator valve
	"OTM":      ClassClimate, // opentherm modulating thermostat
	"NLC":      ClassClimate, // cable outlet (fil pilote)
	// lights
	"NLF":  ClassDimmer, // 2-wire dimmer
	"NLFN": ClassDimmer, // dimmer, new generation
	"NLM":  ClassLight,  // micro module light switch
	"NLL":  ClassLight,  // italian light switch
	// plugs
	"NLP":  ClassPlug, // power plug
	"NLPM": ClassPlug, // mobile plug
	"NLPO": ClassPlug, // connected contactor
	"NLPT": ClassPlug, // latching relay
	// bridges
	"NAPlug": ClassBridge, // thermostat relay
	"NLG":    ClassBridge, // legrand gateway
	"NLE":    ClassBridge, // ecometer
}

// bridgedTypes are radio device types that are commanded through their
// gateway: a command without the bridge id is silently dropped by the vendor,
// so it is rejected client-side instead.
var bridgedTypes = set.New("NRV", "NATherm1", "OTM", "NLD", "NLT")

// ClassOf returns the capability class for a vendor device-type code.
func ClassOf(deviceType string) Class {
	return classes[deviceType]
}

// RequiresBridge reports whether commands for this device type must carry the
// id of the gateway module.
func RequiresBridge(deviceType string) bool {
	return bridgedTypes.Contains(deviceType)
}

// IsDimmer reports whether the device type supports brightness.
func IsDimmer(deviceType string) bool {
	return classes[deviceType] == ClassDimmer
}
