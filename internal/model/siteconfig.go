package model

import (
	"encoding/json"
	"fmt"
)

// SiteConfig is the published per-domain record, one file per domain under a
// category path in the iplist repository. Field order and empty-slice
// serialization are part of the published format: consumers expect "[]",
// never null.
type SiteConfig struct {
	Domains  []string       `json:"domains"`
	DNS      []string       `json:"dns"`
	Timeout  int            `json:"timeout"`
	IP4      []string       `json:"ip4"`
	IP6      []string       `json:"ip6"`
	CIDR4    []string       `json:"cidr4"`
	CIDR6    []string       `json:"cidr6"`
	External ExternalConfig `json:"external"`
}

// ExternalConfig is the externally-managed block of a site config.
// Always published empty; populated out of band by list maintainers.
type ExternalConfig struct {
	Domains []string `json:"domains"`
	IP4     []string `json:"ip4"`
	IP6     []string `json:"ip6"`
	CIDR4   []string `json:"cidr4"`
	CIDR6   []string `json:"cidr6"`
}

// NewSiteConfig builds the config for a freshly onboarded domain: the bare
// domain plus its www alias, the resolver hints, and the resolved addresses.
func NewSiteConfig(domain string, dnsServers, ip4, ip6 []string) SiteConfig {
	return SiteConfig{
		Domains:  []string{domain, "www." + domain},
		DNS:      emptyIfNil(dnsServers),
		Timeout:  3600,
		IP4:      emptyIfNil(ip4),
		IP6:      emptyIfNil(ip6),
		CIDR4:    []string{},
		CIDR6:    []string{},
		External: NewExternalConfig(),
	}
}

func NewExternalConfig() ExternalConfig {
	return ExternalConfig{
		Domains: []string{},
		IP4:     []string{},
		IP6:     []string{},
		CIDR4:   []string{},
		CIDR6:   []string{},
	}
}

// MarshalIndented serializes the config in the repository's canonical
// 4-space-indented form.
func (c SiteConfig) MarshalIndented() ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("marshal site config: %w", err)
	}
	return data, nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
