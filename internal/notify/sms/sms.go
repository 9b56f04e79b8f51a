// Package sms implements the notify SMSGateway against an HTTP delivery
// provider authenticated with an OAuth2 client-credentials grant.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/oakline/upkeep/internal/config"
	"golang.org/x/oauth2/clientcredentials"
)

// Gateway posts messages to the provider's send endpoint.
type Gateway struct {
	sendURL string
	from    string
	client  *http.Client
}

// New creates an SMS gateway from config. Returns nil (channel disabled)
// when no send URL is configured.
func New(cfg config.SMSConfig) *Gateway {
	if cfg.SendURL == "" {
		return nil
	}
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	return &Gateway{
		sendURL: cfg.SendURL,
		from:    cfg.From,
		client:  cc.Client(context.Background()),
	}
}

// SendSMS delivers one text message. The provider returns no delivery
// receipt; a 2xx response is success.
func (g *Gateway) SendSMS(ctx context.Context, to, body string) error {
	payload, err := json.Marshal(map[string]string{
		"from": g.from,
		"to":   to,
		"body": body,
	})
	if err != nil {
		return fmt.Errorf("sms: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.sendURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("sms: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms: send to %s: %w", to, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms: send to %s: provider returned %s", to, resp.Status)
	}
	return nil
}
