package kube

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testKubeconfig = `apiVersion: v1
kind: Config
clusters:
- name: alpha
  cluster:
    server: https://alpha.example:6443
- name: beta
  cluster:
    server: https://beta.example:6443
users:
- name: alpha-user
  user:
    token: alpha-token
- name: beta-user
  user:
    token: beta-token
contexts:
- name: alpha
  context:
    cluster: alpha
    user: alpha-user
- name: beta
  context:
    cluster: beta
    user: beta-user
current-context: alpha
`

func writeKubeconfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	if err := os.WriteFile(path, []byte(testKubeconfig), 0600); err != nil {
		t.Fatalf("write kubeconfig: %v", err)
	}
	return path
}

func TestNewConnUsesNamedContext(t *testing.T) {
	path := writeKubeconfig(t)

	conn, err := NewConn(path, "beta")
	if err != nil {
		t.Fatalf("NewConn: %v", err)
	}
	if !strings.Contains(conn.Host, "beta.example") {
		t.Fatalf("expected beta cluster host, got %q", conn.Host)
	}
	if conn.Core == nil || conn.REST == nil {
		t.Fatalf("expected connection clients to be populated")
	}
}

func TestNewConnDefaultsToCurrentContext(t *testing.T) {
	path := writeKubeconfig(t)

	conn, err := NewConn(path, "")
	if err != nil {
		t.Fatalf("NewConn: %v", err)
	}
	if !strings.Contains(conn.Host, "alpha.example") {
		t.Fatalf("expected current-context cluster host, got %q", conn.Host)
	}
}

func TestNewConnRejectsUnknownContext(t *testing.T) {
	path := writeKubeconfig(t)

	if _, err := NewConn(path, "missing"); err == nil {
		t.Fatalf("expected error for unknown context")
	}
}
