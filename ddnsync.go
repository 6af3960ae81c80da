package ddnsync

import (
	"fmt"
	"net/http"

	"github.com/cloudflare/cloudflare-go"
	"go.uber.org/zap"
)

// DefaultServiceURL is the lookup service used when no resolver is configured.
const DefaultServiceURL = "https://api.ipify.org"

// DefaultStateFile is the state file used when no store is configured.
const DefaultStateFile = "ipaddress"

// New constructs a Reconciler for the record name in zone.
//
// A Provider is required; the resolver defaults to a WebResolver using DefaultServiceURL
// and the store defaults to a FileStore at DefaultStateFile.
func New(zone, name string, options ...Option) (*Reconciler, error) {
	if zone == "" {
		return nil, fmt.Errorf("ddnsync.New: zone cannot be empty")
	}
	if name == "" {
		return nil, fmt.Errorf("ddnsync.New: record name cannot be empty")
	}
	r := &Reconciler{
		Resolver:    WebResolver(DefaultServiceURL),
		zone:        zone,
		name:        name,
		driftResync: true,
	}
	for i, opt := range options {
		if err := opt(r); err != nil {
			return nil, fmt.Errorf("ddnsync.New: option %d returned an error: %s", i, err)
		}
	}

	if r.Provider == nil {
		return nil, fmt.Errorf("ddnsync.New: no DNS provider was registered and there is no default option - use ddnsync.UsingCloudflare or similar")
	}
	if r.Store == nil {
		r.Store = NewFileStore(DefaultStateFile)
	}

	// this lets us propagate the logger to dependencies that use one if WithLogger was called before all of the dependencies were registered
	withLogger(r.logger)(r)
	return r, nil
}

type Option func(*Reconciler) error

// UsingCloudflare registers a Cloudflare provider authenticated with an API token.
func UsingCloudflare(token string) Option {
	return func(r *Reconciler) (err error) {
		if r.Provider, err = NewCloudflare(token); err != nil {
			return fmt.Errorf("ddnsync.UsingCloudflare: error creating cloudflare DNS provider: %w", err)
		}
		return nil
	}
}

// UsingCloudflareKey registers a Cloudflare provider authenticated with the legacy global API key.
func UsingCloudflareKey(key, email string) Option {
	return func(r *Reconciler) (err error) {
		if r.Provider, err = NewCloudflareWithKey(key, email); err != nil {
			return fmt.Errorf("ddnsync.UsingCloudflareKey: error creating cloudflare DNS provider: %w", err)
		}
		return nil
	}
}

func UsingProvider(provider Provider) Option {
	return func(r *Reconciler) error {
		if provider == nil {
			return fmt.Errorf("provider cannot be nil")
		}
		r.Provider = provider
		return nil
	}
}

func UsingResolver(resolver Resolver) Option {
	return func(r *Reconciler) error {
		if resolver == nil {
			resolver = WebResolver(DefaultServiceURL)
		}
		r.Resolver = resolver
		return nil
	}
}

func UsingWebResolver(serviceURL ...string) Option {
	return func(r *Reconciler) error {
		if len(serviceURL) == 0 {
			return fmt.Errorf("at least one service URL is required")
		}
		r.Resolver = WebResolver(serviceURL...)
		return nil
	}
}

func UsingStore(store Store) Option {
	return func(r *Reconciler) error {
		if store == nil {
			return fmt.Errorf("store cannot be nil")
		}
		r.Store = store
		return nil
	}
}

// UsingStateFile stores the cached IP in a plain text file at path.
func UsingStateFile(path string) Option {
	return func(r *Reconciler) error {
		if path == "" {
			return fmt.Errorf("state file path cannot be empty")
		}
		r.Store = NewFileStore(path)
		return nil
	}
}

// WithRecordType pins the record type instead of deriving it from the resolved address.
func WithRecordType(recordType string) Option {
	return func(r *Reconciler) error {
		switch recordType {
		case "", "A", "AAAA":
		default:
			return fmt.Errorf("unsupported record type %q", recordType)
		}
		r.recordType = recordType
		return nil
	}
}

// WithoutDriftResync leaves the state file untouched when the DNS record already holds the current IP.
func WithoutDriftResync() Option {
	return func(r *Reconciler) error {
		r.driftResync = false
		return nil
	}
}

func withLogger(logger *zap.Logger) Option {
	return func(r *Reconciler) error {
		if logger == nil {
			logger = zap.NewNop()
		}
		r.logger = logger
		type setLogger interface {
			SetLogger(*zap.Logger)
		}

		switch p := r.Provider.(type) {
		case *cloudflareProvider:
			p.logger = logger.Named("cloudflare")
		case setLogger:
			p.SetLogger(logger)
		}

		switch res := r.Resolver.(type) {
		case *webResolver:
			res.logger = logger.Named("web_resolver")
		case setLogger:
			res.SetLogger(logger)
		}

		if s, ok := r.Store.(setLogger); ok {
			s.SetLogger(logger)
		}
		return nil
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Reconciler) error {
		r.logger = logger
		return nil
	}
}

func UsingHTTPClient(httpclient *http.Client) Option {
	return func(r *Reconciler) error {
		if httpclient == nil {
			httpclient = http.DefaultClient
		}
		type setHTTPClient interface {
			SetHTTPClient(*http.Client)
		}
		switch hc := r.Resolver.(type) {
		case *webResolver:
			hc.httpClient = httpclient
		case setHTTPClient:
			hc.SetHTTPClient(httpclient)
		}
		switch p := r.Provider.(type) {
		case *cloudflareProvider:
			if err := cloudflare.HTTPClient(httpclient)(p.api); err != nil {
				return fmt.Errorf("error setting cloudflare http client: %w", err)
			}
		case setHTTPClient:
			p.SetHTTPClient(httpclient)
		}
		return nil
	}
}
