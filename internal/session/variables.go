package session

import (
	"sync"
)

// variableDefault is one registered client tuning variable and its
// client-side default value.
type variableDefault struct {
	name  string
	value string
}

// variableDefaults is the registry of tuning variables a server may
// address over the extended protocol. Unknown names in a control packet
// are logged and skipped, never created.
var variableDefaults = []variableDefault{
	{"sv_allow_speed_override", "0"},
	{"sv_has_irc_users", "1"},

	{"ar_override", "-1"},
	{"ar_override_lock", "0"},
	{"ar_overridenegative", "0"},
	{"cs_override", "-1"},
	{"cs_overridenegative", "0"},
	{"hp_override", "-1"},

	{"mod_actual_flashlight", "0"},
	{"mod_nightmare", "0"},
	{"mod_artimewarp", "0"},
	{"mod_artimewarp_multiplier", "1.0"},
	{"mod_arwobble", "0"},
	{"mod_arwobble_interval", "7.0"},
	{"mod_arwobble_strength", "1.0"},
	{"mod_fadingcursor", "0"},
	{"mod_fposu", "0"},
	{"mod_fposu_sound_panning", "0"},
	{"mod_fps", "0"},
	{"mod_fps_sound_panning", "0"},
	{"mod_hd_circle_fadein_end_percent", "0.6"},
	{"mod_hd_circle_fadein_start_percent", "1.0"},
	{"mod_jigsaw1", "0"},
	{"mod_jigsaw2", "0"},
	{"mod_jigsaw_followcircle_radius_factor", "0"},
	{"mod_mafham", "0"},
	{"mod_mafham_ignore_hittable_dim", "1"},
	{"mod_mafham_render_chunksize", "15"},
	{"mod_mafham_render_livesize", "25"},
	{"mod_millhioref", "0"},
	{"mod_minimize", "0"},
	{"mod_minimize_multiplier", "0.5"},
	{"mod_reverse_sliders", "0"},
	{"mod_shirone", "0"},
	{"mod_shirone_combo", "20"},
	{"mod_strict_tracking", "0"},
	{"mod_timewarp", "0"},
	{"mod_timewarp_multiplier", "1.5"},
	{"mod_wobble", "0"},
	{"mod_wobble2", "0"},
	{"mod_wobble_frequency", "1.0"},
	{"mod_wobble_rotation_speed", "1.0"},
	{"mod_wobble_strength", "25"},
	{"mod_fullalternate", "0"},
	{"mod_singletap", "0"},
	{"mod_no_keylock", "0"},
	{"notelock_type", "2"},
}

// extendedSessionUnprotected are the gameplay variables an extended
// server hands back to client control as part of the capability
// handshake, instead of pushing one unprotect packet per name.
var extendedSessionUnprotected = []string{
	"ar_override", "ar_override_lock", "ar_overridenegative",
	"cs_override", "cs_overridenegative",
	"hp_override",
	"mod_actual_flashlight",
	"mod_nightmare",
	"mod_artimewarp", "mod_artimewarp_multiplier",
	"mod_arwobble", "mod_arwobble_interval", "mod_arwobble_strength",
	"mod_fadingcursor",
	"mod_fposu", "mod_fposu_sound_panning",
	"mod_fps", "mod_fps_sound_panning",
	"mod_hd_circle_fadein_end_percent", "mod_hd_circle_fadein_start_percent",
	"mod_jigsaw1", "mod_jigsaw2", "mod_jigsaw_followcircle_radius_factor",
	"mod_mafham", "mod_mafham_ignore_hittable_dim",
	"mod_mafham_render_chunksize", "mod_mafham_render_livesize",
	"mod_millhioref",
	"mod_minimize", "mod_minimize_multiplier",
	"mod_reverse_sliders",
	"mod_shirone", "mod_shirone_combo",
	"mod_strict_tracking",
	"mod_timewarp", "mod_timewarp_multiplier",
	"mod_wobble", "mod_wobble2",
	"mod_wobble_frequency", "mod_wobble_rotation_speed", "mod_wobble_strength",
	"mod_fullalternate", "mod_singletap", "mod_no_keylock", "notelock_type",
}

// Variables tracks the server-override layer on top of the registered
// tuning variables: which variables the server currently protects, and
// the values it has forced. Every registered variable starts protected;
// a forced value shadows the client default until the server resets it
// or the session ends.
type Variables struct {
	mu sync.RWMutex

	defaults  map[string]string
	forced    map[string]string
	protected map[string]bool
}

// NewVariables builds the variable store with every registered variable
// at its default value and under server protection.
func NewVariables() *Variables {
	v := &Variables{
		defaults:  make(map[string]string, len(variableDefaults)),
		forced:    make(map[string]string),
		protected: make(map[string]bool, len(variableDefaults)),
	}
	for _, d := range variableDefaults {
		v.defaults[d.name] = d.value
		v.protected[d.name] = true
	}
	return v
}

// Protect marks a variable as server-protected. Returns false for an
// unregistered name.
func (v *Variables) Protect(name string) bool {
	return v.setProtected(name, true)
}

// Unprotect releases a variable back to client control. Returns false
// for an unregistered name.
func (v *Variables) Unprotect(name string) bool {
	return v.setProtected(name, false)
}

func (v *Variables) setProtected(name string, protected bool) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.defaults[name]; !ok {
		return false
	}
	v.protected[name] = protected
	return true
}

// Force installs a server-supplied value that shadows the client
// default. Returns false for an unregistered name.
func (v *Variables) Force(name, value string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.defaults[name]; !ok {
		return false
	}
	v.forced[name] = value
	return true
}

// ClearForced drops the server-supplied value for one variable, falling
// back to the client default. Returns false for an unregistered name.
func (v *Variables) ClearForced(name string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.defaults[name]; !ok {
		return false
	}
	delete(v.forced, name)
	return true
}

// Value returns the effective value of a variable: the forced value when
// the server set one, the client default otherwise. The second return is
// false for an unregistered name.
func (v *Variables) Value(name string) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if val, ok := v.forced[name]; ok {
		return val, true
	}
	val, ok := v.defaults[name]
	return val, ok
}

// Protected reports whether the server currently protects a variable.
// Unregistered names report false.
func (v *Variables) Protected(name string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.protected[name]
}

// Forced returns a copy of the server-forced values.
func (v *Variables) Forced() map[string]string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[string]string, len(v.forced))
	for k, val := range v.forced {
		out[k] = val
	}
	return out
}

// ApplyExtendedDefaults installs the overrides an extended server would
// otherwise push in handshake packets: the speed-override and IRC-user
// flags get their server values, and the gameplay-mod variables are
// released to client control.
func (v *Variables) ApplyExtendedDefaults() {
	v.Force("sv_allow_speed_override", "1")
	v.Force("sv_has_irc_users", "0")
	for _, name := range extendedSessionUnprotected {
		v.Unprotect(name)
	}
}

// ResetSession drops all server overrides: forced values are cleared and
// every variable returns to the protected default.
func (v *Variables) ResetSession() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.forced = make(map[string]string)
	for name := range v.defaults {
		v.protected[name] = true
	}
}
