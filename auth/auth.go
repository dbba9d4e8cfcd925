// Package auth obtains OAuth2 client-credentials access tokens. Brokers that
// accept JWT authentication take the token as the MQTT password.
package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/kilianp07/shopfloor/infra/logger"
)

// Config holds the client-credentials grant parameters.
type Config struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	TokenURL     string   `json:"token_url"`
	Scopes       []string `json:"scopes"`
	// Username is sent alongside the token. Empty uses the client id.
	Username string `json:"username"`
}

// Validate checks that the grant can be performed.
func (c Config) Validate() error {
	if c.ClientID == "" || c.TokenURL == "" {
		return errors.New("oauth2: client_id and token_url are required")
	}
	return nil
}

func (c Config) clientCredentials() clientcredentials.Config {
	return clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.TokenURL,
		Scopes:       c.Scopes,
	}
}

// ClientCred caches the access token and fetches a new one when it expires.
// It is safe for concurrent use.
type ClientCred struct {
	username string
	src      oauth2.TokenSource
	log      logger.Logger
}

func NewClientCred(cfg Config) *ClientCred {
	cc := cfg.clientCredentials()
	username := cfg.Username
	if username == "" {
		username = cfg.ClientID
	}
	return &ClientCred{
		username: username,
		src:      cc.TokenSource(context.Background()),
		log:      logger.New("auth"),
	}
}

// GetToken returns a valid access token, requesting a new one when the
// cached token has expired.
func (c *ClientCred) GetToken() (string, error) {
	tok, err := c.src.Token()
	if err != nil {
		return "", fmt.Errorf("failed to get token: %w", err)
	}
	return tok.AccessToken, nil
}

// Credentials returns the username and current token. It matches the paho
// credentials provider, which is called on every connection attempt. A failed
// token request yields an empty password so the broker rejects the attempt
// and the client retries.
func (c *ClientCred) Credentials() (username, password string) {
	tok, err := c.GetToken()
	if err != nil {
		c.log.Errorf("broker credentials: %v", err)
		return c.username, ""
	}
	return c.username, tok
}
