package types

// DomainConfig holds configuration for DNS publishing of deployed apps
type DomainConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled" env:"ENABLED"`                      // Whether DNS publishing is enabled
	APIToken      string `yaml:"api_token" json:"api_token" env:"API_TOKEN"`                // Cloudflare API token for authentication
	ZoneID        string `yaml:"zone_id" json:"zone_id" env:"ZONE_ID"`                      // Cloudflare Zone ID
	BaseDomain    string `yaml:"base_domain" json:"base_domain" env:"BASE_DOMAIN"`          // Base domain for app subdomains, e.g. "example.com"
	ServerAddress string `yaml:"server_address" json:"server_address" env:"SERVER_ADDRESS"` // Public address DNS records point at
	AutoGenerate  *bool  `yaml:"auto_generate" json:"auto_generate" env:"AUTO_GENERATE"`    // Whether to create subdomains automatically on deploy (default true)
}

// AutoGenerateEnabled resolves the AutoGenerate setting, defaulting to true
// when it was never set.
func (d DomainConfig) AutoGenerateEnabled() bool {
	return d.AutoGenerate == nil || *d.AutoGenerate
}

// DNSRecord represents a DNS record created for an app
type DNSRecord struct {
	RecordID string `json:"record_id"` // Cloudflare Record ID
	Name     string `json:"name"`      // The full domain name, e.g. "myapp.example.com"
	Content  string `json:"content"`   // IP address or CNAME value
	Type     string `json:"type"`      // "A" or "CNAME"
	Proxied  bool   `json:"proxied"`   // Whether the record is proxied through Cloudflare
}

// AppDomain ties an app to its published domain
type AppDomain struct {
	AppName   string    `json:"app_name"`             // App the domain belongs to
	Domain    string    `json:"domain"`               // The assigned domain
	DNSRecord DNSRecord `json:"dns_record,omitempty"` // DNS record details
}
