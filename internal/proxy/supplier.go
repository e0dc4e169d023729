package proxy

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"resty.dev/v3"
)

// ProxySupplier hands out outbound proxies in round-robin order
type ProxySupplier interface {
	Get() string
	Len() int
}

type proxySupplier struct {
	proxies []string
	current int
	mutex   sync.Mutex
}

// NewProxySupplier probes every proxy against testURL and keeps the ones that answer
func NewProxySupplier(ctx context.Context, proxies []string, testURL string) ProxySupplier {
	if len(proxies) == 0 {
		return &proxySupplier{proxies: []string{}}
	}

	log.Infof("🔄 Testing %d proxies in parallel...", len(proxies))

	valid := make([]bool, len(proxies))
	var wg sync.WaitGroup

	for i, proxyURL := range proxies {
		wg.Add(1)

		go func(index int, proxy string) {
			defer wg.Done()

			if isProxyValid(ctx, proxy, testURL) {
				valid[index] = true
				log.Infof("✅ Proxy %s is working", proxy)
			} else {
				log.Infof("❌ Proxy %s is not working, skipping", proxy)
			}
		}(i, proxyURL)
	}

	wg.Wait()

	// Keep the configured order so rotation is predictable
	validProxies := make([]string, 0, len(proxies))
	for i, ok := range valid {
		if ok {
			validProxies = append(validProxies, proxies[i])
		}
	}

	log.Infof("✅ ProxySupplier initialized with %d working proxies out of %d tested", len(validProxies), len(proxies))

	return &proxySupplier{proxies: validProxies}
}

// Get returns the next proxy URL, or "" when there are none
func (p *proxySupplier) Get() string {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if len(p.proxies) == 0 {
		return ""
	}

	proxy := p.proxies[p.current]
	p.current = (p.current + 1) % len(p.proxies)

	return proxy
}

func (p *proxySupplier) Len() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.proxies)
}

func isProxyValid(ctx context.Context, proxyURL, testURL string) bool {
	client := resty.New().
		SetTimeout(5 * time.Second).
		SetRetryCount(0).
		SetProxy(proxyURL)

	resp, err := client.R().
		SetContext(ctx).
		Get(testURL)

	if err != nil {
		log.Infof("Proxy test failed for %s: %v", proxyURL, err)
		return false
	}

	if resp.IsError() {
		log.Infof("Proxy test failed for %s with status: %s", proxyURL, resp.Status())
		return false
	}

	return true
}
