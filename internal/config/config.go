package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Travis-Britz/ddnsync"
	"github.com/Travis-Britz/ddnsync/provider/alidns"
	"github.com/Travis-Britz/ddnsync/provider/dnspod"
	"github.com/Travis-Britz/ddnsync/provider/route53"
)

const (
	ProviderCloudflare = "cloudflare"
	ProviderRoute53    = "route53"
	ProviderAliDNS     = "alidns"
	ProviderDNSPod     = "dnspod"

	ResolverWeb       = "web"
	ResolverDNS       = "dns"
	ResolverInterface = "interface"
	ResolverStatic    = "static"
)

type Config struct {
	StateFile string         `yaml:"state_file"`
	Record    RecordConfig   `yaml:"record"`
	Resolver  ResolverConfig `yaml:"resolver"`
	Provider  ProviderConfig `yaml:"provider"`
	// DriftResync saves the resolved IP when the record was already correct. Defaults to true.
	DriftResync *bool     `yaml:"drift_resync"`
	Log         LogConfig `yaml:"log"`
}

type RecordConfig struct {
	Zone string `yaml:"zone"`
	Name string `yaml:"name"`
	// Type is A or AAAA. Empty derives it from the resolved address.
	Type string `yaml:"type"`
}

type ResolverConfig struct {
	Method     string   `yaml:"method"`
	Services   []string `yaml:"services"`
	Server     string   `yaml:"server"`
	IPv6       bool     `yaml:"ipv6"`
	Interfaces []string `yaml:"interfaces"`
	Address    string   `yaml:"address"`
}

type ProviderConfig struct {
	Name       string           `yaml:"name"`
	Cloudflare CloudflareConfig `yaml:"cloudflare"`
	AliDNS     AliDNSConfig     `yaml:"alidns"`
	DNSPod     DNSPodConfig     `yaml:"dnspod"`
}

type CloudflareConfig struct {
	APIToken  string `yaml:"api_token"`
	TokenFile string `yaml:"token_file"`
	// APIKey and Email select the legacy global key authentication.
	APIKey string `yaml:"api_key"`
	Email  string `yaml:"email"`
}

type AliDNSConfig struct {
	AccessKeyID     string `yaml:"access_key_id"`
	AccessKeySecret string `yaml:"access_key_secret"`
}

type DNSPodConfig struct {
	SecretID  string `yaml:"secret_id"`
	SecretKey string `yaml:"secret_key"`
}

type LogConfig struct {
	Verbose bool   `yaml:"verbose"`
	Format  string `yaml:"format"`
}

// Load reads the YAML file at path, applies defaults and environment overrides.
// It does not validate; see Validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse is Load for an in-memory document.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.StateFile == "" {
		c.StateFile = ddnsync.DefaultStateFile
	}
	if c.Resolver.Method == "" {
		c.Resolver.Method = ResolverWeb
	}
	if c.Resolver.Method == ResolverWeb && len(c.Resolver.Services) == 0 {
		c.Resolver.Services = []string{ddnsync.DefaultServiceURL}
	}
	if c.Provider.Name == "" {
		c.Provider.Name = ProviderCloudflare
	}
	c.Record.Type = strings.ToUpper(c.Record.Type)
	if c.DriftResync == nil {
		t := true
		c.DriftResync = &t
	}
}

func (c *Config) applyEnv() {
	cf := &c.Provider.Cloudflare
	cf.APIToken = env("CLOUDFLARE_API_TOKEN", cf.APIToken)
	cf.APIKey = env("CLOUDFLARE_API_KEY", cf.APIKey)
	cf.Email = env("CLOUDFLARE_EMAIL", cf.Email)

	ali := &c.Provider.AliDNS
	ali.AccessKeyID = env("ALIBABA_CLOUD_ACCESS_KEY_ID", ali.AccessKeyID)
	ali.AccessKeySecret = env("ALIBABA_CLOUD_ACCESS_KEY_SECRET", ali.AccessKeySecret)

	pod := &c.Provider.DNSPod
	pod.SecretID = env("TENCENTCLOUD_SECRET_ID", pod.SecretID)
	pod.SecretKey = env("TENCENTCLOUD_SECRET_KEY", pod.SecretKey)
}

func env(envvar string, defaultvalue string) string {
	e, found := os.LookupEnv(envvar)
	if found {
		return e
	}
	return defaultvalue
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs error
	if c.Record.Zone == "" {
		errs = multierr.Append(errs, errors.New("record.zone cannot be empty"))
	}
	if c.Record.Name == "" {
		errs = multierr.Append(errs, errors.New("record.name cannot be empty"))
	} else if !strings.Contains(c.Record.Name, ".") {
		errs = multierr.Append(errs, errors.New("record.name must have at least one dot"))
	}
	switch c.Record.Type {
	case "", "A", "AAAA":
	default:
		errs = multierr.Append(errs, fmt.Errorf("record.type %q is not A or AAAA", c.Record.Type))
	}

	switch c.Resolver.Method {
	case ResolverWeb:
		if len(c.Resolver.Services) == 0 {
			errs = multierr.Append(errs, errors.New("resolver.services cannot be empty"))
		}
	case ResolverDNS, ResolverInterface:
	case ResolverStatic:
		if c.Resolver.Address == "" {
			errs = multierr.Append(errs, errors.New("resolver.address is required for the static resolver"))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("unknown resolver.method %q", c.Resolver.Method))
	}

	switch c.Provider.Name {
	case ProviderCloudflare:
		cf := c.Provider.Cloudflare
		if cf.APIToken == "" && cf.TokenFile == "" && (cf.APIKey == "" || cf.Email == "") {
			errs = multierr.Append(errs, errors.New("cloudflare requires api_token, token_file, or api_key with email"))
		}
	case ProviderRoute53:
	case ProviderAliDNS:
		if c.Provider.AliDNS.AccessKeyID == "" || c.Provider.AliDNS.AccessKeySecret == "" {
			errs = multierr.Append(errs, errors.New("alidns requires access_key_id and access_key_secret"))
		}
	case ProviderDNSPod:
		if c.Provider.DNSPod.SecretID == "" || c.Provider.DNSPod.SecretKey == "" {
			errs = multierr.Append(errs, errors.New("dnspod requires secret_id and secret_key"))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("unknown provider.name %q", c.Provider.Name))
	}
	return errs
}

// Build validates c and wires a Reconciler from it.
func Build(ctx context.Context, c *Config, logger *zap.Logger) (*ddnsync.Reconciler, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	resolver, err := c.resolver()
	if err != nil {
		return nil, err
	}
	providerOpt, err := c.provider(ctx)
	if err != nil {
		return nil, err
	}
	opts := []ddnsync.Option{
		providerOpt,
		ddnsync.UsingResolver(resolver),
		ddnsync.UsingStateFile(c.StateFile),
		ddnsync.WithRecordType(c.Record.Type),
		ddnsync.WithLogger(logger),
	}
	if !*c.DriftResync {
		opts = append(opts, ddnsync.WithoutDriftResync())
	}
	return ddnsync.New(c.Record.Zone, c.Record.Name, opts...)
}

func (c *Config) resolver() (ddnsync.Resolver, error) {
	r := c.Resolver
	switch r.Method {
	case ResolverDNS:
		return ddnsync.DNSResolver(r.Server, r.IPv6), nil
	case ResolverInterface:
		return ddnsync.InterfaceResolver(r.Interfaces...), nil
	case ResolverStatic:
		return ddnsync.Static(r.Address)
	default:
		return ddnsync.WebResolver(r.Services...), nil
	}
}

func (c *Config) provider(ctx context.Context) (ddnsync.Option, error) {
	switch c.Provider.Name {
	case ProviderRoute53:
		p, err := route53.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("error creating route53 provider: %w", err)
		}
		return ddnsync.UsingProvider(p), nil
	case ProviderAliDNS:
		p, err := alidns.New(c.Provider.AliDNS.AccessKeyID, c.Provider.AliDNS.AccessKeySecret)
		if err != nil {
			return nil, fmt.Errorf("error creating alidns provider: %w", err)
		}
		return ddnsync.UsingProvider(p), nil
	case ProviderDNSPod:
		p, err := dnspod.New(c.Provider.DNSPod.SecretID, c.Provider.DNSPod.SecretKey)
		if err != nil {
			return nil, fmt.Errorf("error creating dnspod provider: %w", err)
		}
		return ddnsync.UsingProvider(p), nil
	default:
		cf := c.Provider.Cloudflare
		if cf.APIToken == "" && cf.TokenFile != "" {
			token, err := ReadKey(cf.TokenFile)
			if err != nil {
				return nil, err
			}
			return ddnsync.UsingCloudflare(token), nil
		}
		if cf.APIToken == "" {
			return ddnsync.UsingCloudflareKey(cf.APIKey, cf.Email), nil
		}
		return ddnsync.UsingCloudflare(cf.APIToken), nil
	}
}
