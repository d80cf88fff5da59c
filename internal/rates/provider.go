// Package rates resolves the currency table used to price reports.
//
// The feed location is configurable through the store's settings. When the
// configured feed is missing or unusable the provider walks down a fixed
// chain: the application's default feed, then a public fallback, then the
// built-in table. Resolution never fails, it only degrades, and the
// returned Source says how far down the chain it went.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"costbook/internal/core"
)

// SettingKey is the settings entry holding the configured feed location.
const SettingKey = "rate_source_url"

// maxFeedBytes caps how much of a feed response is read; a real rate
// table is a few dozen bytes.
const maxFeedBytes = 1 << 20

// Source says which tier of the fallback chain produced a table.
type Source int

const (
	SourceConfigured Source = iota
	SourceDefault
	SourceFallback
	SourceBuiltin
)

func (s Source) String() string {
	switch s {
	case SourceConfigured:
		return "configured"
	case SourceDefault:
		return "default"
	case SourceFallback:
		return "fallback"
	case SourceBuiltin:
		return "builtin"
	default:
		return "unknown"
	}
}

// SettingsReader is the slice of the store the provider needs.
type SettingsReader interface {
	Setting(ctx context.Context, key string) (string, error)
}

type Provider struct {
	settings    SettingsReader
	client      *http.Client
	defaultURL  string
	fallbackURL string
}

// New builds a provider. The timeout bounds every feed request so a hung
// feed cannot hang report building; zero means 5 seconds.
func New(settings SettingsReader, defaultURL, fallbackURL string, timeout time.Duration) *Provider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Provider{
		settings:    settings,
		client:      &http.Client{Timeout: timeout},
		defaultURL:  defaultURL,
		fallbackURL: fallbackURL,
	}
}

// Fetch resolves the rate table. Every call re-reads the configured feed
// location, so a settings change takes effect on the next report.
func (p *Provider) Fetch(ctx context.Context) (core.RateTable, Source) {
	configured := p.configuredURL(ctx)
	if configured != "" {
		table, err := p.fetchFrom(ctx, configured)
		if err == nil {
			return table, SourceConfigured
		}
		slog.WarnContext(ctx, "Configured rate feed unusable, falling back",
			"url", configured, "error", err)
	}

	if p.defaultURL != "" && p.defaultURL != configured {
		table, err := p.fetchFrom(ctx, p.defaultURL)
		if err == nil {
			return table, SourceDefault
		}
		slog.WarnContext(ctx, "Default rate feed unusable, falling back",
			"url", p.defaultURL, "error", err)
	}

	if p.fallbackURL != "" {
		table, err := p.fetchFrom(ctx, p.fallbackURL)
		if err == nil {
			return table, SourceFallback
		}
		slog.WarnContext(ctx, "Fallback rate feed unusable, using built-in table",
			"url", p.fallbackURL, "error", err)
	}

	return core.DefaultRates(), SourceBuiltin
}

// configuredURL reads the stored feed location. Values arrive from old
// clients wrapped in stray whitespace or a layer of quotes; both are
// stripped before use.
func (p *Provider) configuredURL(ctx context.Context) string {
	value, err := p.settings.Setting(ctx, SettingKey)
	if err != nil {
		slog.WarnContext(ctx, "Reading rate feed setting failed", "error", err)
		return ""
	}
	value = strings.TrimSpace(value)
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			value = strings.TrimSpace(value[1 : len(value)-1])
		}
	}
	return value
}

func (p *Provider) fetchFrom(ctx context.Context, rawURL string) (core.RateTable, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var raw map[string]float64
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxFeedBytes)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("no rates in response")
	}

	table := make(core.RateTable, len(raw))
	for token, rate := range raw {
		table[core.Currency(strings.ToUpper(strings.TrimSpace(token)))] = rate
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}
