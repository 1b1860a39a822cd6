package authz

import "fmt"

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role      string
	Inherits  []string
	Policies  []Policy
	Immutable bool
}

// BuiltinRoleSeeds 系统预置角色矩阵
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: "readonly_auditor",
			Policies: []Policy{
				{Object: "/admin/*", Action: "GET"},
			},
			Immutable: true,
		},
		{
			Role:     "operations",
			Inherits: []string{"readonly_auditor"},
			Policies: []Policy{
				{Object: "/admin/merchants", Action: "*"},
				{Object: "/admin/merchants/:id", Action: "*"},
				{Object: "/admin/merchants/:id/encryption", Action: "*"},
				{Object: "/admin/merchants/:id/encryption/hash-key", Action: "POST"},
				{Object: "/admin/merchants/:id/encryption/rsa-keys", Action: "POST"},
				{Object: "/admin/channels", Action: "*"},
				{Object: "/admin/channels/:id", Action: "*"},
				{Object: "/admin/channel-accounts", Action: "POST"},
				{Object: "/admin/channel-accounts/:id", Action: "*"},
			},
			Immutable: true,
		},
		{
			Role:     "finance",
			Inherits: []string{"readonly_auditor"},
			Policies: []Policy{
				{Object: "/admin/orders", Action: "GET"},
				{Object: "/admin/orders/:tradeNo", Action: "GET"},
				{Object: "/admin/orders/:tradeNo/close", Action: "POST"},
				{Object: "/admin/orders/:tradeNo/freeze", Action: "POST"},
				{Object: "/admin/orders/:tradeNo/unfreeze", Action: "POST"},
				{Object: "/admin/orders/:tradeNo/settle-retry", Action: "POST"},
				{Object: "/admin/orders/:tradeNo/notify-resend", Action: "POST"},
				{Object: "/admin/orders/:tradeNo/refund", Action: "POST"},
				{Object: "/admin/refunds", Action: "GET"},
				{Object: "/admin/refunds/:id", Action: "GET"},
				{Object: "/admin/withdrawals", Action: "GET"},
				{Object: "/admin/withdrawals/:id", Action: "GET"},
				{Object: "/admin/withdrawals/:id/status", Action: "PUT"},
				{Object: "/admin/withdrawals/settle-account", Action: "POST"},
				{Object: "/admin/wallets/:merchantID", Action: "GET"},
				{Object: "/admin/wallets/adjust-available", Action: "POST"},
				{Object: "/admin/wallets/adjust-prepaid", Action: "POST"},
			},
			Immutable: true,
		},
		{
			Role:     "risk",
			Inherits: []string{"readonly_auditor"},
			Policies: []Policy{
				{Object: "/admin/blacklists", Action: "*"},
				{Object: "/admin/blacklists/:id", Action: "*"},
				{Object: "/admin/risk-logs", Action: "GET"},
				{Object: "/admin/risk/buyer-summary", Action: "GET"},
				{Object: "/admin/notifications", Action: "GET"},
			},
			Immutable: true,
		},
	}
}

// BootstrapBuiltinRoles 初始化预置角色与默认策略
func (s *Service) BootstrapBuiltinRoles() error {
	if s == nil || s.enforcer == nil {
		return fmt.Errorf("authz service unavailable")
	}

	changed := false
	for _, seed := range BuiltinRoleSeeds() {
		role, err := NormalizeRole(seed.Role)
		if err != nil {
			return err
		}

		exists, err := s.enforcer.HasNamedGroupingPolicy("g", role, roleAnchor)
		if err != nil {
			return fmt.Errorf("check builtin role failed: %w", err)
		}
		if !exists {
			added, err := s.enforcer.AddNamedGroupingPolicy("g", role, roleAnchor)
			if err != nil {
				return fmt.Errorf("create builtin role failed: %w", err)
			}
			if added {
				changed = true
			}
		}

		for _, parent := range seed.Inherits {
			parentRole, err := NormalizeRole(parent)
			if err != nil {
				return err
			}
			added, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole)
			if err != nil {
				return fmt.Errorf("link role inheritance failed: %w", err)
			}
			if added {
				changed = true
			}
		}

		for _, policy := range seed.Policies {
			action := NormalizeAction(policy.Action)
			if action == "" {
				return fmt.Errorf("builtin policy action is required")
			}
			added, err := s.enforcer.AddPolicy(role, NormalizeObject(policy.Object), action)
			if err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
			if added {
				changed = true
			}
		}
	}

	if changed {
		return s.saveAndReload()
	}
	return nil
}
