package access

import "testing"

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"client":       RoleClient,
		"user":         RoleClient,
		"consultant":   RoleConsultant,
		"admin":        RoleAdmin,
		"mediaManager": RoleMediaManager,
	}
	for in, want := range cases {
		got, ok := ParseRole(in)
		if !ok || got != want {
			t.Fatalf("ParseRole(%q) = %v, %v", in, got, ok)
		}
	}
	if _, ok := ParseRole("superuser"); ok {
		t.Fatal("expected unknown role to be rejected")
	}
}

func TestCan(t *testing.T) {
	cases := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleClient, ActionRequestBooking, true},
		{RoleClient, ActionDecideBooking, false},
		{RoleClient, ActionManageOwnSlots, false},
		{RoleConsultant, ActionDecideBooking, true},
		{RoleConsultant, ActionManageAnySlots, false},
		{RoleConsultant, ActionViewAnyBooking, false},
		{RoleAdmin, ActionActOnAnyBooking, true},
		{RoleMediaManager, ActionRequestBooking, false},
		{RoleMediaManager, ActionReadNotifications, true},
		{RoleUnknown, ActionReadNotifications, false},
	}
	for _, tc := range cases {
		if got := Can(tc.role, tc.action); got != tc.want {
			t.Errorf("Can(%v, %d) = %v, want %v", tc.role, tc.action, got, tc.want)
		}
	}
}
