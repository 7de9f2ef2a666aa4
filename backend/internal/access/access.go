// Package access 调用方身份与权限域匹配
package access

import "strings"

// 权限域
const (
	Root    = "root"
	Admin   = "admin"
	Staff   = "staff"
	Finance = "finance"
	Leader  = "leader"
	Dais    = "dais"

	// StaffRepresentative 代表名单维护，staff 自动覆盖
	StaffRepresentative = "staff.representative"
)

// Principal 当前调用方，来自 JWT 声明；IP 与 UserAgent 仅用于操作日志
type Principal struct {
	User      string
	School    string
	Session   string
	Access    []string
	IP        string
	UserAgent string
}

// Match 判断已授予的权限域 given 是否覆盖 required。
// root 覆盖一切；否则按点分层级前缀匹配，staff 覆盖 staff.representative
func Match(given, required string) bool {
	if given == Root {
		return true
	}
	return strings.HasPrefix(required+".", given+".")
}

// HasAccess 任一已授予权限域覆盖 required 即通过
func (p *Principal) HasAccess(required string) bool {
	if p == nil {
		return false
	}
	for _, g := range p.Access {
		if Match(g, required) {
			return true
		}
	}
	return false
}

// HasAny 满足任一所需权限域
func (p *Principal) HasAny(required ...string) bool {
	for _, r := range required {
		if p.HasAccess(r) {
			return true
		}
	}
	return false
}

// IsStaff 会务及以上
func (p *Principal) IsStaff() bool {
	return p.HasAny(Staff, Admin)
}

// CanManageSchool 会务、管理员，或该校领队
func (p *Principal) CanManageSchool(schoolID string) bool {
	if p.IsStaff() {
		return true
	}
	return p.HasAccess(Leader) && p.School != "" && p.School == schoolID
}

// System 内部任务使用的身份
func System() *Principal {
	return &Principal{User: "system", Access: []string{Root}}
}
