package permissions

import "testing"

func newTestEngine() *PolicyEngine {
	pe := NewPolicyEngine()
	pe.RegisterMethod("node.ping", TableNode)
	pe.RegisterMethod("exec.approval.approve", TableApproval)
	pe.RegisterMethod("device.pair.request", TablePairing)
	pe.RegisterMethod("sessions.list", TableRead)
	pe.RegisterMethod("sessions.delete", TableWrite)
	return pe
}

func TestAuthorizeUnknownMethodRejected(t *testing.T) {
	pe := newTestEngine()
	if pe.Authorize("no.such.method", RoleOperator, map[Scope]bool{ScopeAdmin: true}) {
		t.Fatal("expected unknown method to be rejected even for admin")
	}
}

func TestAuthorizeAdminTrumpsAll(t *testing.T) {
	pe := newTestEngine()
	scopes := map[Scope]bool{ScopeAdmin: true}
	for _, m := range []string{"node.ping", "exec.approval.approve", "device.pair.request", "sessions.list", "sessions.delete"} {
		if !pe.Authorize(m, RoleOperator, scopes) {
			t.Fatalf("admin scope should authorize %q", m)
		}
	}
}

func TestAuthorizeNodeTable(t *testing.T) {
	pe := newTestEngine()
	if pe.Authorize("node.ping", RoleOperator, map[Scope]bool{ScopeWrite: true}) {
		t.Fatal("operator role should not satisfy the node table")
	}
	if !pe.Authorize("node.ping", RoleNode, nil) {
		t.Fatal("node role should satisfy the node table without any scopes")
	}
}

func TestAuthorizeReadSatisfiedByWrite(t *testing.T) {
	pe := newTestEngine()
	if !pe.Authorize("sessions.list", RoleOperator, map[Scope]bool{ScopeWrite: true}) {
		t.Fatal("write scope should satisfy the read table")
	}
	if pe.Authorize("sessions.list", RoleOperator, map[Scope]bool{}) {
		t.Fatal("no scopes should not satisfy the read table")
	}
}

func TestAuthorizeWriteRequiresWriteScope(t *testing.T) {
	pe := newTestEngine()
	if pe.Authorize("sessions.delete", RoleOperator, map[Scope]bool{ScopeRead: true}) {
		t.Fatal("read scope alone should not satisfy the write table")
	}
	if !pe.Authorize("sessions.delete", RoleOperator, map[Scope]bool{ScopeWrite: true}) {
		t.Fatal("write scope should satisfy the write table")
	}
}

func TestAuthorizeApprovalAndPairingScopes(t *testing.T) {
	pe := newTestEngine()
	if !pe.Authorize("exec.approval.approve", RoleOperator, map[Scope]bool{ScopeApprovals: true}) {
		t.Fatal("approvals scope should satisfy the approval table")
	}
	if pe.Authorize("exec.approval.approve", RoleOperator, map[Scope]bool{ScopeWrite: true}) {
		t.Fatal("write scope should not satisfy the approval table")
	}
	if !pe.Authorize("device.pair.request", RoleOperator, map[Scope]bool{ScopePairing: true}) {
		t.Fatal("pairing scope should satisfy the pairing table")
	}
}
