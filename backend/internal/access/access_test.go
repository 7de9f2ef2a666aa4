package access

import "testing"

func TestMatch(t *testing.T) {
	cases := []struct {
		given, required string
		want            bool
	}{
		{"root", "anything", true},
		{"staff", "staff", true},
		{"staff", "staff.representative", true},
		{"staff.representative", "staff", false},
		{"staff", "staffing", false},
		{"leader", "admin", false},
		{"admin", "admin.mail", true},
	}
	for _, c := range cases {
		if got := Match(c.given, c.required); got != c.want {
			t.Errorf("Match(%q, %q) 期望 %v，实际 %v", c.given, c.required, c.want, got)
		}
	}
}

func TestPrincipal_HasAccess(t *testing.T) {
	p := &Principal{Access: []string{"leader", "finance"}}
	if !p.HasAccess("finance") {
		t.Error("应具有 finance 权限")
	}
	if p.HasAccess("staff") {
		t.Error("不应具有 staff 权限")
	}
	if !p.HasAny("staff", "leader") {
		t.Error("HasAny 应匹配 leader")
	}

	var nilP *Principal
	if nilP.HasAccess("leader") {
		t.Error("nil 调用方不应具有任何权限")
	}
}

func TestPrincipal_CanManageSchool(t *testing.T) {
	leader := &Principal{User: "u1", School: "s1", Access: []string{Leader}}
	if !leader.CanManageSchool("s1") {
		t.Error("领队应能管理本校")
	}
	if leader.CanManageSchool("s2") {
		t.Error("领队不应能管理他校")
	}

	staff := &Principal{User: "u2", Access: []string{Staff}}
	if !staff.CanManageSchool("s2") {
		t.Error("会务应能管理任意学校")
	}

	orphan := &Principal{User: "u3", Access: []string{Leader}}
	if orphan.CanManageSchool("") {
		t.Error("未绑定学校的领队不应通过")
	}

	if !System().CanManageSchool("s9") {
		t.Error("系统身份应能管理任意学校")
	}
}
