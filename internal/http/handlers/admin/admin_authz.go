package admin

import (
	"github.com/emarket-next/internal/authz"
	"github.com/emarket-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetAuthzMe 当前管理员的角色与生效策略
func (h *Handler) GetAuthzMe(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	if h.AuthzService == nil {
		respondError(c, response.CodeInternal, "error.authz_unavailable", nil)
		return
	}
	isSuper := c.GetBool("admin_is_super")

	roles, err := h.AuthzService.GetAdminRoles(adminID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.authz_query_failed", err)
		return
	}
	policies, err := h.AuthzService.GetAdminPolicies(adminID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.authz_query_failed", err)
		return
	}
	if policies == nil {
		policies = []authz.Policy{}
	}
	response.Success(c, gin.H{
		"admin_id": adminID,
		"is_super": isSuper,
		"roles":    roles,
		"policies": policies,
	})
}

// ListAuthzRoles 角色列表
func (h *Handler) ListAuthzRoles(c *gin.Context) {
	if h.AuthzService == nil {
		respondError(c, response.CodeInternal, "error.authz_unavailable", nil)
		return
	}
	roles, err := h.AuthzService.ListRoles()
	if err != nil {
		respondError(c, response.CodeInternal, "error.authz_query_failed", err)
		return
	}
	response.Success(c, roles)
}

// RolePolicyRequest 角色策略请求
type RolePolicyRequest struct {
	Object string `json:"object" binding:"required"`
	Action string `json:"action" binding:"required"`
}

// AdminRolesRequest 管理员角色覆盖请求
type AdminRolesRequest struct {
	Roles []string `json:"roles"`
}

var authzErrorRules = []mappedHandlerError{
	{target: authz.ErrRoleImmutable, code: response.CodeForbidden, key: "error.authz_role_immutable"},
	{target: authz.ErrRoleInvalid, code: response.CodeBadRequest, key: "error.authz_role_invalid"},
	{target: authz.ErrPolicyInvalid, code: response.CodeBadRequest, key: "error.authz_policy_invalid"},
	{target: authz.ErrUnavailable, code: response.CodeInternal, key: "error.authz_unavailable"},
}

// ListRolePolicies 角色自身策略
func (h *Handler) ListRolePolicies(c *gin.Context) {
	if h.AuthzService == nil {
		respondError(c, response.CodeInternal, "error.authz_unavailable", nil)
		return
	}
	policies, err := h.AuthzService.ListRolePolicies(c.Param("role"))
	if err != nil {
		respondWithMappedError(c, err, authzErrorRules, response.CodeInternal, "error.authz_query_failed")
		return
	}
	response.Success(c, policies)
}

// GrantRolePolicy 为自定义角色授予后台路由权限
func (h *Handler) GrantRolePolicy(c *gin.Context) {
	if h.AuthzService == nil {
		respondError(c, response.CodeInternal, "error.authz_unavailable", nil)
		return
	}
	var req RolePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	policy, err := h.AuthzService.GrantRolePolicy(c.Param("role"), req.Object, req.Action)
	if err != nil {
		respondWithMappedError(c, err, authzErrorRules, response.CodeInternal, "error.authz_update_failed")
		return
	}
	adminID, _ := c.Get("admin_id")
	requestLog(c).Infow("authz_role_policy_granted",
		"operator_admin_id", adminID,
		"role", policy.Subject,
		"object", policy.Object,
		"action", policy.Action,
	)
	response.Success(c, policy)
}

// RevokeRolePolicy 撤销自定义角色的策略
func (h *Handler) RevokeRolePolicy(c *gin.Context) {
	if h.AuthzService == nil {
		respondError(c, response.CodeInternal, "error.authz_unavailable", nil)
		return
	}
	var req RolePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	removed, err := h.AuthzService.RevokeRolePolicy(c.Param("role"), req.Object, req.Action)
	if err != nil {
		respondWithMappedError(c, err, authzErrorRules, response.CodeInternal, "error.authz_update_failed")
		return
	}
	if !removed {
		respondError(c, response.CodeNotFound, "error.authz_policy_not_found", nil)
		return
	}
	adminID, _ := c.Get("admin_id")
	requestLog(c).Infow("authz_role_policy_revoked",
		"operator_admin_id", adminID,
		"role", c.Param("role"),
		"object", req.Object,
		"action", req.Action,
	)
	response.Success(c, nil)
}

// SetAdminRoles 覆盖设置指定管理员的角色
func (h *Handler) SetAdminRoles(c *gin.Context) {
	if h.AuthzService == nil {
		respondError(c, response.CodeInternal, "error.authz_unavailable", nil)
		return
	}
	targetID, ok := parsePathUint(c, "id")
	if !ok {
		return
	}
	var req AdminRolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	target, err := h.AdminRepo.GetByID(targetID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.authz_update_failed", err)
		return
	}
	if target == nil {
		respondError(c, response.CodeNotFound, "error.admin_not_found", nil)
		return
	}
	if err := h.AuthzService.SetAdminRoles(target.ID, req.Roles); err != nil {
		respondWithMappedError(c, err, authzErrorRules, response.CodeInternal, "error.authz_update_failed")
		return
	}
	roles, err := h.AuthzService.GetAdminRoles(target.ID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.authz_query_failed", err)
		return
	}
	response.Success(c, gin.H{"admin_id": target.ID, "roles": roles})
}
