package dnscheck

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Issue classifies why a lookup produced no addresses.
type Issue string

const (
	IssueNXDomain      Issue = "nxdomain"
	IssueNoAnswer      Issue = "no_answer"
	IssueNoNameservers Issue = "no_nameservers"
	IssueTimeout       Issue = "timeout"
	IssueError         Issue = "error"
)

// issuePriority orders reasons for reporting when several apply.
var issuePriority = []Issue{IssueNXDomain, IssueNoNameservers, IssueTimeout, IssueNoAnswer, IssueError}

// Result of an address lookup. Issue is non-empty iff both lists are empty.
type Result struct {
	IP4   []string
	IP6   []string
	Issue Issue
}

func (r Result) Empty() bool {
	return len(r.IP4) == 0 && len(r.IP6) == 0
}

type exchangeFunc func(ctx context.Context, msg *dns.Msg, server string) (*dns.Msg, error)

// Resolver queries a fixed nameserver set for A and AAAA records.
type Resolver struct {
	servers  []string
	lifetime time.Duration
	exchange exchangeFunc
}

// NewResolver builds a resolver for the given nameservers. Entries may carry
// a ":53" suffix or be bracketed IPv6 literals; both are normalized away.
// An empty set falls back to the system nameservers.
func NewResolver(nameservers []string, timeout, lifetime time.Duration) *Resolver {
	servers := normalizeNameservers(nameservers)
	if len(servers) == 0 {
		servers = systemNameservers()
	}

	client := &dns.Client{Timeout: timeout}
	return &Resolver{
		servers:  servers,
		lifetime: lifetime,
		exchange: func(ctx context.Context, msg *dns.Msg, server string) (*dns.Msg, error) {
			in, _, err := client.ExchangeContext(ctx, msg, server)
			return in, err
		},
	}
}

// NewSystemResolver resolves against the nameservers from /etc/resolv.conf.
func NewSystemResolver(timeout, lifetime time.Duration) *Resolver {
	return NewResolver(nil, timeout, lifetime)
}

// Resolve looks up A and AAAA records independently. Each record type that
// fails gets a classified reason; the result carries one only when both
// lists came back empty.
func (r *Resolver) Resolve(ctx context.Context, domain string) Result {
	ctx, cancel := context.WithTimeout(ctx, r.lifetime)
	defer cancel()

	ip4, issue4 := r.lookup(ctx, domain, dns.TypeA)
	ip6, issue6 := r.lookup(ctx, domain, dns.TypeAAAA)

	var issue Issue
	if len(ip4) == 0 && len(ip6) == 0 {
		issue = pickIssue(issue4, issue6)
	}
	return Result{IP4: ip4, IP6: ip6, Issue: issue}
}

func (r *Resolver) lookup(ctx context.Context, domain string, qtype uint16) ([]string, Issue) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), qtype)
	msg.RecursionDesired = true

	var sawServfail, sawTimeout, sawErr bool
	for _, server := range r.servers {
		in, err := r.exchange(ctx, msg, withPort(server))
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				slog.WarnContext(ctx, "dns lifetime exceeded", "domain", domain, "server", server)
				return nil, IssueTimeout
			}
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				sawTimeout = true
			} else {
				sawErr = true
			}
			slog.WarnContext(ctx, "dns exchange failed", "domain", domain, "server", server, "error", err)
			continue
		}

		switch in.Rcode {
		case dns.RcodeSuccess:
			addrs := extractAddrs(in, qtype)
			if len(addrs) == 0 {
				return nil, IssueNoAnswer
			}
			return addrs, ""
		case dns.RcodeNameError:
			return nil, IssueNXDomain
		default:
			// SERVFAIL, REFUSED and friends: try the next nameserver.
			sawServfail = true
		}
	}

	switch {
	case sawServfail:
		return nil, IssueNoNameservers
	case sawTimeout:
		return nil, IssueTimeout
	case sawErr:
		return nil, IssueError
	}
	return nil, IssueError
}

func extractAddrs(in *dns.Msg, qtype uint16) []string {
	var addrs []string
	for _, rr := range in.Answer {
		switch record := rr.(type) {
		case *dns.A:
			if qtype == dns.TypeA {
				addrs = append(addrs, record.A.String())
			}
		case *dns.AAAA:
			if qtype == dns.TypeAAAA {
				addrs = append(addrs, record.AAAA.String())
			}
		}
	}
	return addrs
}

// pickIssue chooses the reported reason across however many reasons exist.
func pickIssue(issues ...Issue) Issue {
	present := make(map[Issue]bool, len(issues))
	for _, issue := range issues {
		if issue != "" {
			present[issue] = true
		}
	}
	for _, candidate := range issuePriority {
		if present[candidate] {
			return candidate
		}
	}
	return ""
}

// normalizeNameservers strips ports and IPv6 brackets from configured
// entries, dropping blanks.
func normalizeNameservers(nameservers []string) []string {
	var normalized []string
	for _, entry := range nameservers {
		value := strings.TrimSpace(entry)
		if value == "" {
			continue
		}
		if strings.HasPrefix(value, "[") {
			if end := strings.Index(value, "]"); end > 0 {
				value = value[1:end]
			}
		} else if strings.Count(value, ":") == 1 && strings.Contains(value, ".") {
			value, _, _ = strings.Cut(value, ":")
		}
		normalized = append(normalized, value)
	}
	return normalized
}

func systemNameservers() []string {
	cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(cfg.Servers) == 0 {
		return []string{"8.8.8.8"}
	}
	return cfg.Servers
}

func withPort(server string) string {
	return net.JoinHostPort(server, "53")
}
