// Package security は外部API呼び出しとストーリー表示のためのセキュリティ機能を提供する。
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// allowedSchemes は検索APIエンドポイントに許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks は静的検証でブロックするネットワーク範囲。
// 接続時のDNS解決後の検証はsafeurlのDialerが行う。
var blockedNetworks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16", // クラウドメタデータIPを含む
	"0.0.0.0/8",
	"::1/128",
	"fe80::/10",
	"fc00::/7",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	networks := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		networks = append(networks, network)
	}
	return networks
}

// EndpointGuard は検索APIエンドポイントの検証と、
// SSRF防止機能付きHTTPクライアントの生成を行う。
type EndpointGuard struct {
	ports []int
}

// NewEndpointGuard はEndpointGuardを生成する。
// portsを省略した場合は80と443のみを許可する。
func NewEndpointGuard(ports ...int) *EndpointGuard {
	if len(ports) == 0 {
		ports = []int{80, 443}
	}
	return &EndpointGuard{ports: ports}
}

// NewSafeClient はsafeurlでラップしたHTTPクライアントを生成する。
// プライベートIP、ループバック、リンクローカル宛ての接続は
// DNS解決後にDialerレベルで拒否される。
// timeoutが0の場合はタイムアウトを設定しない。
func (g *EndpointGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(g.ports...).
		Build()

	return safeurl.Client(config).Client
}

// ValidateEndpoint はエンドポイントURLを起動時に静的検証する。
// 検索語は末尾に連結されるため、クエリ文字列やフラグメントの有無は問わない。
func (g *EndpointGuard) ValidateEndpoint(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty endpoint")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %q (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in endpoint: %s", rawURL)
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}
	if ip := net.ParseIP(host); ip != nil && isBlockedIP(ip) {
		return fmt.Errorf("blocked IP address: %s", ip)
	}

	return nil
}

func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}

func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
