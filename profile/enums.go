package profile

import (
	"fmt"
	"strings"

	"github.com/tormoder/fit"
)

// sdkEnums names values of the enum types the FIT SDK generates code for.
var sdkEnums = map[string]func(uint64) fmt.Stringer{
	"event":             func(v uint64) fmt.Stringer { return fit.Event(v) },
	"event_type":        func(v uint64) fmt.Stringer { return fit.EventType(v) },
	"file":              func(v uint64) fmt.Stringer { return fit.FileType(v) },
	"gender":            func(v uint64) fmt.Stringer { return fit.Gender(v) },
	"intensity":         func(v uint64) fmt.Stringer { return fit.Intensity(v) },
	"lap_trigger":       func(v uint64) fmt.Stringer { return fit.LapTrigger(v) },
	"manufacturer":      func(v uint64) fmt.Stringer { return fit.Manufacturer(v) },
	"mesg_num":          func(v uint64) fmt.Stringer { return fit.MesgNum(v) },
	"session_trigger":   func(v uint64) fmt.Stringer { return fit.SessionTrigger(v) },
	"sport":             func(v uint64) fmt.Stringer { return fit.Sport(v) },
	"sub_sport":         func(v uint64) fmt.Stringer { return fit.SubSport(v) },
	"wkt_step_duration": func(v uint64) fmt.Stringer { return fit.WktStepDuration(v) },
	"wkt_step_target":   func(v uint64) fmt.Stringer { return fit.WktStepTarget(v) },
}

// EnumName returns the symbolic name of raw in the named enum. Tables from
// the YAML catalog take precedence over the SDK's generated types.
func (p *Profile) EnumName(enum string, raw uint64) (string, bool) {
	if enum == "" {
		return "", false
	}
	if table, ok := p.enums[enum]; ok {
		name, ok := table[raw]
		return name, ok
	}
	ctor, ok := sdkEnums[enum]
	if !ok {
		return "", false
	}
	name := ctor(raw).String()
	// Generated stringers fall back to "Type(n)" for values they do not know.
	if strings.HasSuffix(name, ")") && strings.Contains(name, "(") {
		return "", false
	}
	return name, true
}

// MessageName names a global message number, using the SDK's list for types
// the catalog does not carry.
func (p *Profile) MessageName(num uint16) string {
	if m, ok := p.messages[num]; ok {
		return m.Name
	}
	name := fmt.Sprint(fit.MesgNum(num))
	if strings.HasPrefix(name, "MesgNum(") {
		return fmt.Sprintf("global_%d", num)
	}
	return name
}
