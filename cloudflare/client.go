// Package cloudflare publishes deployed apps under a DNS name. Publishing is
// optional: a disabled client composes the domain name without touching the
// Cloudflare API, so the rest of the tool never branches on whether DNS is
// configured.
package cloudflare

import (
	"context"
	"fmt"
	"strings"

	cf "github.com/cloudflare/cloudflare-go"

	"plinth/logger"
	"plinth/types"
)

// recordTTL is deliberately short so a redeployed app's address propagates
// quickly.
const recordTTL = 120

// Client talks to the Cloudflare API for one zone.
type Client struct {
	api    *cf.API
	config types.DomainConfig
	log    *logger.Logger
}

// NewClient creates a Client for the configured zone. When publishing is
// disabled the returned client performs no API calls but still resolves
// domain names locally.
func NewClient(config types.DomainConfig, log *logger.Logger) (*Client, error) {
	if !config.Enabled {
		return &Client{config: config, log: log}, nil
	}

	api, err := cf.NewWithAPIToken(config.APIToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudflare client: %w", err)
	}
	return &Client{api: api, config: config, log: log}, nil
}

// Enabled reports whether the client performs real API calls.
func (c *Client) Enabled() bool {
	return c.config.Enabled
}

// DomainFor returns the full domain an app publishes under.
func (c *Client) DomainFor(appName string) string {
	return sanitizeForDNS(appName) + "." + c.config.BaseDomain
}

// PublishApp creates the app's A record pointing at the configured server
// address. With publishing disabled it returns the would-be domain without
// an API call.
func (c *Client) PublishApp(ctx context.Context, appName string) (*types.AppDomain, error) {
	domain := c.DomainFor(appName)

	if !c.config.Enabled {
		c.log.Debug().Str("app", appName).Str("domain", domain).Msg("dns publishing disabled, returning local-only domain")
		return &types.AppDomain{AppName: appName, Domain: domain}, nil
	}

	proxied := true
	params := cf.CreateDNSRecordParams{
		Type:    "A",
		Name:    sanitizeForDNS(appName),
		Content: c.config.ServerAddress,
		TTL:     recordTTL,
		Proxied: &proxied,
	}

	c.log.Info().Str("domain", domain).Str("target", c.config.ServerAddress).Msg("creating dns record")

	record, err := c.api.CreateDNSRecord(ctx, cf.ZoneIdentifier(c.config.ZoneID), params)
	if err != nil {
		return nil, fmt.Errorf("failed to create dns record for %s: %w", domain, err)
	}

	return &types.AppDomain{
		AppName: appName,
		Domain:  domain,
		DNSRecord: types.DNSRecord{
			RecordID: record.ID,
			Name:     domain,
			Content:  c.config.ServerAddress,
			Type:     "A",
			Proxied:  true,
		},
	}, nil
}

// UnpublishApp deletes the DNS record identified by recordID. With publishing
// disabled, or without a record ID to delete, it is a no-op.
func (c *Client) UnpublishApp(ctx context.Context, appName, recordID string) error {
	if !c.config.Enabled {
		c.log.Debug().Str("app", appName).Msg("dns publishing disabled, nothing to unpublish")
		return nil
	}
	if recordID == "" {
		c.log.Debug().Str("app", appName).Msg("no dns record id, nothing to unpublish")
		return nil
	}

	c.log.Info().Str("app", appName).Str("record_id", recordID).Msg("deleting dns record")

	if err := c.api.DeleteDNSRecord(ctx, cf.ZoneIdentifier(c.config.ZoneID), recordID); err != nil {
		return fmt.Errorf("failed to delete dns record %s of %s: %w", recordID, appName, err)
	}
	return nil
}

// sanitizeForDNS squeezes a name into a valid DNS label: lowercase, with
// anything outside [a-z0-9-] collapsed into single hyphens.
func sanitizeForDNS(name string) string {
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		if r >= 'A' && r <= 'Z' {
			return r + 32
		}
		return '-'
	}, name)

	for strings.Contains(sanitized, "--") {
		sanitized = strings.ReplaceAll(sanitized, "--", "-")
	}

	sanitized = strings.Trim(sanitized, "-")
	if sanitized == "" {
		sanitized = "app"
	}
	return sanitized
}
