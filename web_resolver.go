package ddnsync

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// WebResolver constructs a resolver which uses external web services to look up a "public" IP address.
//
// Each serviceURL must speak http and return status "200 OK",
// with a valid IPv4 or IPv6 address as the first line of the response body.
// All other responses are considered an error.
//
// If only one serviceURL is given,
// then the resolver will simply return the response.
// If multiple are given,
// then the resolver will request from up to three of them and only return successfully if the first two non-error responses agreed on the IP.
// This approach is taken due to the sensitive nature of having control over DNS records.
//
// For clients which have both IPv4 and IPv6 capability,
// supply a custom *http.Client (using ddnsync.UsingHTTPClient)
// or use a public IP service endpoint that prefers one or the other, e.g. https://api4.ipify.org.
//
// The recommended approach is to run your own service over https.
func WebResolver(serviceURL ...string) Resolver {
	return &webResolver{serviceURLs: serviceURL, logger: zap.NewNop()}
}

type webResolver struct {
	httpClient  *http.Client
	serviceURLs []string
	logger      *zap.Logger
}

// Resolve implements ddnsync.Resolver.
func (wr *webResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	if len(wr.serviceURLs) == 0 {
		return netip.Addr{}, fmt.Errorf("%w: no external IP lookup services were provided", ErrResolution)
	}
	if len(wr.serviceURLs) == 1 {
		ip, err := wr.lookup(ctx, wr.serviceURLs[0])
		if err != nil {
			return netip.Addr{}, fmt.Errorf("%w: %w", ErrResolution, err)
		}
		return ip, nil
	}

	// With several services configured, up to three are queried concurrently
	// and the first two non-error responses must agree.
	// todo: round-robin or randomize service selection. right now it's just using the first three.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		addr netip.Addr
		err  error
	}

	useCount := len(wr.serviceURLs)
	if useCount > 3 {
		useCount = 3
	}
	results := make(chan result, useCount)

	var wg sync.WaitGroup
	wg.Add(useCount)
	for i := 0; i < useCount; i++ {
		u := wr.serviceURLs[i]
		go func() {
			defer wg.Done()
			r := result{}
			r.addr, r.err = wr.lookup(ctx, u)
			results <- r
		}()
	}
	go func() { wg.Wait(); close(results) }()

	var resultCount int
	var errs error
	var ip netip.Addr
	for r := range results {
		if r.err != nil {
			errs = multierr.Append(errs, r.err)
			continue
		}
		resultCount++ // don't increase the result count for errors
		if !ip.IsValid() {
			ip = r.addr
			continue
		}
		if ip == r.addr {
			return ip, nil
		}
		return netip.Addr{}, fmt.Errorf("%w: IP lookup services did not agree on our IP (%s != %s)", ErrResolution, ip, r.addr)
	}
	return netip.Addr{}, fmt.Errorf("%w: not enough lookup services responded without errors (%d ok): %w", ErrResolution, resultCount, errs)
}

func (wr *webResolver) lookup(ctx context.Context, url string) (netip.Addr, error) {
	// 15 seconds is an eternity for the size of the request we're making,
	// but this ensures that all calls to resolve will eventually complete even if the user supplied context.TODO or context.Background
	// using http.DefaultClient (with no timeout).
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	httpclient := wr.httpClient
	if httpclient == nil {
		httpclient = http.DefaultClient
	}

	resp, err := httpclient.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("http request to %s returned %s", url, resp.Status)
	}

	scanner := bufio.NewReader(resp.Body)
	ipstring, _ := scanner.ReadString('\n')
	ip, err := netip.ParseAddr(strings.TrimSpace(ipstring))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error parsing IP address from %s response body: %w", url, err)
	}
	wr.logger.Debug("lookup service responded", zap.String("url", url), zap.Stringer("ip", ip))
	return ip.Unmap(), nil
}
