package main

import (
	"bytes"
	"testing"
)

func TestTokenCmd_RejectsBadToken(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"token", "not-a-real-token", "--secret", "whatever"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for an unverifiable token")
	}
}

func TestTokenCmd_RequiresArgument(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"token"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error when no token argument is given")
	}
}
