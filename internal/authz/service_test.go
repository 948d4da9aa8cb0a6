package authz

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupAuthzServiceTest(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	return svc
}

func TestEnforceAdminWithRolePolicy(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if _, err := svc.GrantRolePolicy("ops", "/admin/products/:id", "GET"); err != nil {
		t.Fatalf("grant role policy failed: %v", err)
	}
	if err := svc.SetAdminRoles(1, []string{"ops"}); err != nil {
		t.Fatalf("set admin roles failed: %v", err)
	}

	allow, err := svc.EnforceAdmin(1, "/api/v1/admin/products/42", "get")
	if err != nil {
		t.Fatalf("enforce allow failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected allow=true")
	}

	allow, err = svc.EnforceAdmin(1, "/api/v1/admin/products/42", "POST")
	if err != nil {
		t.Fatalf("enforce deny failed: %v", err)
	}
	if allow {
		t.Fatalf("expected allow=false")
	}
}

func TestSetAdminRolesOverride(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if _, err := svc.GrantRolePolicy("ops", "/admin/orders", "GET"); err != nil {
		t.Fatalf("grant ops policy failed: %v", err)
	}
	if _, err := svc.GrantRolePolicy("finance", "/admin/payment-transactions", "GET"); err != nil {
		t.Fatalf("grant finance policy failed: %v", err)
	}

	if err := svc.SetAdminRoles(2, []string{"ops"}); err != nil {
		t.Fatalf("set first role failed: %v", err)
	}
	roles, err := svc.GetAdminRoles(2)
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != "role:ops" {
		t.Fatalf("roles want [role:ops], got=%v", roles)
	}

	if err := svc.SetAdminRoles(2, []string{"finance"}); err != nil {
		t.Fatalf("set second role failed: %v", err)
	}
	roles, err = svc.GetAdminRoles(2)
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != "role:finance" {
		t.Fatalf("roles want [role:finance], got=%v", roles)
	}

	allow, err := svc.EnforceAdmin(2, "/admin/orders", "GET")
	if err != nil {
		t.Fatalf("enforce old role failed: %v", err)
	}
	if allow {
		t.Fatalf("expected old role permission removed")
	}

	allow, err = svc.EnforceAdmin(2, "/admin/payment-transactions", "GET")
	if err != nil {
		t.Fatalf("enforce new role failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected new role permission granted")
	}
}

func TestNormalizeObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "/api/v1/admin/orders/:id", want: "/admin/orders/:id"},
		{in: "/admin/orders/:id", want: "/admin/orders/:id"},
		{in: "admin/orders", want: "/admin/orders"},
		{in: "/api/v1", want: "/"},
		{in: "", want: "/"},
	}
	for _, item := range cases {
		got := NormalizeObject(item.in)
		if got != item.want {
			t.Fatalf("normalize object failed, in=%q want=%q got=%q", item.in, item.want, got)
		}
	}
}

func TestBootstrapBuiltinRoles(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}

	roles, err := svc.ListRoles()
	if err != nil {
		t.Fatalf("list roles failed: %v", err)
	}
	wantRoles := map[string]bool{
		"role:readonly_auditor": true,
		"role:catalog_manager":  true,
		"role:fulfillment":      true,
		"role:finance":          true,
	}
	for _, role := range roles {
		delete(wantRoles, role)
	}
	if len(wantRoles) != 0 {
		t.Fatalf("builtin roles missing: %v", wantRoles)
	}

	if err := svc.SetAdminRoles(3, []string{"fulfillment"}); err != nil {
		t.Fatalf("set admin roles failed: %v", err)
	}

	checks := []struct {
		path   string
		method string
		want   bool
	}{
		{path: "/api/v1/admin/payment-transactions", method: "GET", want: true},
		{path: "/api/v1/admin/orders/12/status", method: "PATCH", want: true},
		{path: "/api/v1/admin/shipping-settings/3", method: "PUT", want: true},
		{path: "/api/v1/admin/orders/12", method: "DELETE", want: false},
		{path: "/api/v1/admin/products", method: "POST", want: false},
	}
	for _, item := range checks {
		allow, err := svc.EnforceAdmin(3, item.path, item.method)
		if err != nil {
			t.Fatalf("enforce %s %s failed: %v", item.method, item.path, err)
		}
		if allow != item.want {
			t.Fatalf("enforce %s %s want %v got %v", item.method, item.path, item.want, allow)
		}
	}

	policies, err := svc.GetAdminPolicies(3)
	if err != nil {
		t.Fatalf("get admin policies failed: %v", err)
	}
	// fulfillment 自身 3 条 + 继承 readonly_auditor 的 1 条
	if len(policies) != 4 {
		t.Fatalf("fulfillment effective policies want 4 got %d: %+v", len(policies), policies)
	}

	// 重复执行不产生重复策略
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap again failed: %v", err)
	}
	again, err := svc.GetAdminPolicies(3)
	if err != nil {
		t.Fatalf("get admin policies failed: %v", err)
	}
	if len(again) != 4 {
		t.Fatalf("bootstrap should be idempotent, got %d policies", len(again))
	}
}

func TestGrantRolePolicyRejectsBuiltinAndForeignObjects(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}

	if _, err := svc.GrantRolePolicy("finance", "/admin/products", "POST"); !errors.Is(err, ErrRoleImmutable) {
		t.Fatalf("builtin role grant want ErrRoleImmutable got %v", err)
	}
	if _, err := svc.RevokeRolePolicy("role:fulfillment", "/admin/shipping-settings", "*"); !errors.Is(err, ErrRoleImmutable) {
		t.Fatalf("builtin role revoke want ErrRoleImmutable got %v", err)
	}
	if _, err := svc.GrantRolePolicy("support", "/cart", "GET"); !errors.Is(err, ErrPolicyInvalid) {
		t.Fatalf("storefront object want ErrPolicyInvalid got %v", err)
	}
	if _, err := svc.GrantRolePolicy("support", "/admin/orders", "TRACE"); !errors.Is(err, ErrPolicyInvalid) {
		t.Fatalf("unknown action want ErrPolicyInvalid got %v", err)
	}
	if _, err := svc.GrantRolePolicy("  ", "/admin/orders", "GET"); !errors.Is(err, ErrRoleInvalid) {
		t.Fatalf("blank role want ErrRoleInvalid got %v", err)
	}
}

func TestCustomRoleGrantRevokeAndInherit(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}

	policy, err := svc.GrantRolePolicy("customer support", "/api/v1/admin/orders/:id/status", "patch")
	if err != nil {
		t.Fatalf("grant custom policy failed: %v", err)
	}
	if policy.Subject != "role:customer_support" || policy.Object != "/admin/orders/:id/status" || policy.Action != "PATCH" {
		t.Fatalf("unexpected normalized policy: %+v", policy)
	}
	if err := svc.InheritRole("customer_support", "readonly_auditor"); err != nil {
		t.Fatalf("inherit role failed: %v", err)
	}
	if err := svc.SetAdminRoles(7, []string{"customer_support"}); err != nil {
		t.Fatalf("set admin roles failed: %v", err)
	}

	allow, err := svc.EnforceAdmin(7, "/api/v1/admin/orders/9/status", "PATCH")
	if err != nil || !allow {
		t.Fatalf("custom grant should allow, allow=%v err=%v", allow, err)
	}
	allow, err = svc.EnforceAdmin(7, "/api/v1/admin/contact-messages", "GET")
	if err != nil || !allow {
		t.Fatalf("inherited read should allow, allow=%v err=%v", allow, err)
	}

	listed, err := svc.ListRolePolicies("customer_support")
	if err != nil {
		t.Fatalf("list role policies failed: %v", err)
	}
	if len(listed) != 1 || listed[0] != policy {
		t.Fatalf("role policies want [%+v] got %+v", policy, listed)
	}

	removed, err := svc.RevokeRolePolicy("customer_support", "/admin/orders/:id/status", "PATCH")
	if err != nil || !removed {
		t.Fatalf("revoke failed, removed=%v err=%v", removed, err)
	}
	allow, err = svc.EnforceAdmin(7, "/api/v1/admin/orders/9/status", "PATCH")
	if err != nil {
		t.Fatalf("enforce after revoke failed: %v", err)
	}
	if allow {
		t.Fatalf("revoked policy should deny")
	}
	removed, err = svc.RevokeRolePolicy("customer_support", "/admin/orders/:id/status", "PATCH")
	if err != nil || removed {
		t.Fatalf("second revoke should be a no-op, removed=%v err=%v", removed, err)
	}
}
