package rbac

// 权限常量
const (
	PermissionCreateProject    = "project:create"
	PermissionCompleteProject  = "project:complete"
	PermissionRateFreelancer   = "project:rate"
	PermissionListOwnProjects  = "project:list_own"
	PermissionBrowseAvailable  = "project:browse_available"
	PermissionSubmitProposal   = "proposal:submit"
	PermissionWithdrawProposal = "proposal:withdraw"
	PermissionDecideProposal   = "proposal:decide" // accept / reject
	PermissionViewProposals    = "proposal:view_project"
	PermissionListOwnProposals = "proposal:list_own"
	PermissionRecommendations  = "recommendation:read"
	PermissionSetPreferences   = "recommendation:preferences"
)

// 角色常量
const (
	RoleClient     = "client"
	RoleFreelancer = "freelancer"
)

// 角色权限映射
var rolePermissions = map[string][]string{
	RoleClient: {
		PermissionCreateProject,
		PermissionCompleteProject,
		PermissionRateFreelancer,
		PermissionListOwnProjects,
		PermissionDecideProposal,
		PermissionViewProposals,
	},
	RoleFreelancer: {
		PermissionBrowseAvailable,
		PermissionSubmitProposal,
		PermissionWithdrawProposal,
		PermissionListOwnProposals,
		PermissionRecommendations,
		PermissionSetPreferences,
	},
}

// ValidRole 角色是否合法
func ValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// HasPermission 检查角色是否有指定权限
func HasPermission(role string, permission string) bool {
	for _, p := range rolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission 检查角色是否有指定权限（返回错误而不是布尔值，便于处理）
func CheckPermission(role string, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{
			Role:       role,
			Permission: permission,
		}
	}
	return nil
}

// PermissionDeniedError 表示权限不足的错误
type PermissionDeniedError struct {
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions: role " + e.Role + " lacks " + e.Permission
}
