package model

// 权限名
const (
	PermManageBoards       = "manage_boards"
	PermManageMembergroups = "manage_membergroups"
	PermAdminForum         = "admin_forum"
	PermDeleteOwn          = "delete_own"
	PermDeleteAny          = "delete_any"
	PermRemoveOwn          = "remove_own"
	PermRemoveAny          = "remove_any"
)

// Actor 当前操作者
type Actor struct {
	MemberID    int             `json:"uid"`
	Name        string          `json:"username"`
	IsAdmin     bool            `json:"is_admin"`
	Permissions map[string]bool `json:"permissions,omitempty"`
}

// Allowed 是否拥有权限，管理员拥有全部权限
func (a *Actor) Allowed(perm string) bool {
	if a == nil {
		return false
	}
	return a.IsAdmin || a.Permissions[perm]
}

// SystemActor 内部维护任务使用的操作者
func SystemActor() *Actor {
	return &Actor{MemberID: 0, Name: "system", IsAdmin: true}
}
