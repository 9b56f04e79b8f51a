package email

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"github.com/oakline/upkeep/internal/config"
)

func TestNew_DisabledWithoutHost(t *testing.T) {
	if g := New(config.EmailConfig{}); g != nil {
		t.Error("expected nil gateway when host is empty")
	}
}

func TestSendEmail_BuildsMultipartMessage(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	g := New(config.EmailConfig{Host: "mail.test", Port: 587, From: "upkeep@org.test"})
	g.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err := g.SendEmail(context.Background(), "tenant@x.test", "Boiler repair",
		"<html><body><p>hi</p></body></html>", "hi")
	if err != nil {
		t.Fatalf("SendEmail: %v", err)
	}
	if gotAddr != "mail.test:587" {
		t.Errorf("addr = %q", gotAddr)
	}
	if gotFrom != "upkeep@org.test" {
		t.Errorf("from = %q", gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "tenant@x.test" {
		t.Errorf("to = %v", gotTo)
	}
	msg := string(gotMsg)
	if !strings.Contains(msg, "Content-Type: multipart/alternative") {
		t.Error("missing multipart header")
	}
	if !strings.Contains(msg, "text/plain") || !strings.Contains(msg, "text/html") {
		t.Error("missing alternative parts")
	}
	if !strings.Contains(msg, "Subject: Boiler repair") {
		t.Error("missing subject header")
	}
}

func TestSendEmail_CancelledContext(t *testing.T) {
	g := New(config.EmailConfig{Host: "mail.test", Port: 587})
	g.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		t.Error("send should not be called with cancelled context")
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := g.SendEmail(ctx, "a@b.test", "s", "<p>h</p>", "h"); err == nil {
		t.Fatal("expected context error")
	}
}
