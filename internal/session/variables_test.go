package session

import "testing"

func TestVariableForceAndClear(t *testing.T) {
	v := NewVariables()

	if val, ok := v.Value("mod_timewarp"); !ok || val != "0" {
		t.Fatalf("default value = %q, %v", val, ok)
	}

	if !v.Force("mod_timewarp", "1") {
		t.Fatal("known variable refused a forced value")
	}
	if val, _ := v.Value("mod_timewarp"); val != "1" {
		t.Fatalf("forced value = %q", val)
	}

	if v.Force("mod_unheard_of", "1") {
		t.Fatal("unknown variable accepted a forced value")
	}
	if _, ok := v.Value("mod_unheard_of"); ok {
		t.Fatal("unknown variable materialized")
	}

	if !v.ClearForced("mod_timewarp") {
		t.Fatal("known variable refused a clear")
	}
	if val, _ := v.Value("mod_timewarp"); val != "0" {
		t.Fatalf("value after clear = %q", val)
	}
	if v.ClearForced("mod_unheard_of") {
		t.Fatal("unknown variable accepted a clear")
	}
}

func TestVariableProtectionToggles(t *testing.T) {
	v := NewVariables()

	if !v.Protected("ar_override") {
		t.Fatal("variables must start protected")
	}
	if !v.Unprotect("ar_override") || v.Protected("ar_override") {
		t.Fatal("unprotect not applied")
	}
	if !v.Protect("ar_override") || !v.Protected("ar_override") {
		t.Fatal("protect not applied")
	}
	if v.Protect("mod_unheard_of") || v.Unprotect("mod_unheard_of") {
		t.Fatal("unknown variable accepted a protection change")
	}
}

func TestExtendedDefaultsApplied(t *testing.T) {
	v := NewVariables()
	v.ApplyExtendedDefaults()

	if val, _ := v.Value("sv_allow_speed_override"); val != "1" {
		t.Fatalf("sv_allow_speed_override = %q", val)
	}
	if val, _ := v.Value("sv_has_irc_users"); val != "0" {
		t.Fatalf("sv_has_irc_users = %q", val)
	}
	for _, name := range []string{"mod_timewarp", "ar_override", "notelock_type"} {
		if v.Protected(name) {
			t.Fatalf("%s still protected after the extended handshake", name)
		}
	}
	// The server flags are forced, not released.
	if !v.Protected("sv_allow_speed_override") {
		t.Fatal("server flag released to client control")
	}
}

func TestResetSessionRestoresDefaults(t *testing.T) {
	v := NewVariables()
	v.ApplyExtendedDefaults()
	v.Force("mod_wobble", "1")

	v.ResetSession()

	if val, _ := v.Value("mod_wobble"); val != "0" {
		t.Fatalf("mod_wobble = %q after reset", val)
	}
	if !v.Protected("mod_timewarp") {
		t.Fatal("protection not restored by reset")
	}
	if len(v.Forced()) != 0 {
		t.Fatal("forced values survived reset")
	}
}
