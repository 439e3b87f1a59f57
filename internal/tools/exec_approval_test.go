package tools

import (
	"testing"
	"time"
)

func TestExecApprovalCheckCommandFullAllowsByDefault(t *testing.T) {
	mgr := NewExecApprovalManager(DefaultExecApprovalConfig())
	if got := mgr.CheckCommand("ls -la"); got != "allow" {
		t.Fatalf("expected allow, got %q", got)
	}
}

func TestExecApprovalCheckCommandFullAsksAlways(t *testing.T) {
	cfg := DefaultExecApprovalConfig()
	cfg.Ask = ExecAskAlways
	mgr := NewExecApprovalManager(cfg)
	if got := mgr.CheckCommand("ls -la"); got != "ask" {
		t.Fatalf("expected ask, got %q", got)
	}
}

func TestExecApprovalCheckCommandDenySecurityRequiresAllowlist(t *testing.T) {
	mgr := NewExecApprovalManager(ExecApprovalConfig{
		Security:  ExecSecurityDeny,
		Ask:       ExecAskOff,
		Allowlist: []string{"git *"},
	})
	if got := mgr.CheckCommand("git status"); got != "allow" {
		t.Fatalf("expected allow for allowlisted command, got %q", got)
	}
	if got := mgr.CheckCommand("rm file.txt"); got != "deny" {
		t.Fatalf("expected deny for non-allowlisted command, got %q", got)
	}
}

func TestExecApprovalCheckCommandAllowlistSecurityAsksOnMiss(t *testing.T) {
	mgr := NewExecApprovalManager(ExecApprovalConfig{
		Security:  ExecSecurityAllowlist,
		Ask:       ExecAskOnMiss,
		Allowlist: []string{"git *"},
	})
	if got := mgr.CheckCommand("git status"); got != "allow" {
		t.Fatalf("expected allow for allowlisted command, got %q", got)
	}
	if got := mgr.CheckCommand("npm install"); got != "ask" {
		t.Fatalf("expected ask for non-allowlisted command, got %q", got)
	}
}

func TestExecApprovalCheckCommandAllowlistSecurityDeniesWhenAskOff(t *testing.T) {
	mgr := NewExecApprovalManager(ExecApprovalConfig{
		Security:  ExecSecurityAllowlist,
		Ask:       ExecAskOff,
		Allowlist: []string{"git *"},
	})
	if got := mgr.CheckCommand("npm install"); got != "deny" {
		t.Fatalf("expected deny, got %q", got)
	}
}

func TestExecApprovalRequestApprovalResolvedApprove(t *testing.T) {
	mgr := NewExecApprovalManager(DefaultExecApprovalConfig())

	done := make(chan ApprovalDecision, 1)
	errCh := make(chan error, 1)
	go func() {
		decision, err := mgr.RequestApproval("rm -rf /tmp/scratch", "agent-1", time.Second)
		done <- decision
		errCh <- err
	}()

	var id string
	for i := 0; i < 100; i++ {
		reqs := mgr.List()
		if len(reqs) == 1 {
			id = reqs[0].ID
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if id == "" {
		t.Fatal("approval request never appeared in List()")
	}

	if err := mgr.Resolve(id, true); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if decision := <-done; decision != ApprovalApprove {
		t.Fatalf("expected approve, got %v", decision)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExecApprovalRequestApprovalResolvedDeny(t *testing.T) {
	mgr := NewExecApprovalManager(DefaultExecApprovalConfig())

	done := make(chan ApprovalDecision, 1)
	go func() {
		decision, _ := mgr.RequestApproval("curl evil.example", "agent-1", time.Second)
		done <- decision
	}()

	var id string
	for i := 0; i < 100; i++ {
		reqs := mgr.List()
		if len(reqs) == 1 {
			id = reqs[0].ID
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if id == "" {
		t.Fatal("approval request never appeared in List()")
	}

	if err := mgr.Resolve(id, false); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if decision := <-done; decision != ApprovalDeny {
		t.Fatalf("expected deny, got %v", decision)
	}
}

func TestExecApprovalRequestApprovalTimesOut(t *testing.T) {
	mgr := NewExecApprovalManager(DefaultExecApprovalConfig())

	decision, err := mgr.RequestApproval("whoami", "agent-1", 20*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if decision != ApprovalDeny {
		t.Fatalf("expected deny on timeout, got %v", decision)
	}
}

func TestExecApprovalResolveUnknownID(t *testing.T) {
	mgr := NewExecApprovalManager(DefaultExecApprovalConfig())
	if err := mgr.Resolve("not-a-real-id", true); err == nil {
		t.Fatal("expected error for unknown approval ID")
	}
}
