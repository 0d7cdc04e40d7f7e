package discovery

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/libp2p/zeroconf/v2"

	"github.com/easyshare-net/go-core/internal/model"
)

// rescanInterval is how often staleSweep checks for devices past the
// staleness threshold. The browse itself is one long-running query and is
// not restarted on this ticker.
const rescanInterval = 15 * time.Second

// normalizePlatform maps wire synonyms ("macos", "android", ...) onto the
// two canonical platform values before a DiscoveredDevice is ever surfaced.
func normalizePlatform(raw string) model.Platform {
	switch strings.ToLower(raw) {
	case "android", "ios", "mobile":
		return model.PlatformMobile
	default:
		return model.PlatformDesktop
	}
}

// Browser watches the LAN for other EasyShare devices.
type Browser struct {
	SelfID string
	Logger *log.Logger

	OnDeviceFound func(model.DiscoveredDevice)
	OnDeviceLost  func(id string)

	mu      sync.Mutex
	seen    map[string]model.DiscoveredDevice
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewBrowser constructs a Browser that ignores entries advertising selfID.
func NewBrowser(selfID string, logger *log.Logger) *Browser {
	if logger == nil {
		logger = log.Default()
	}
	return &Browser{
		SelfID: selfID,
		Logger: logger,
		seen:   make(map[string]model.DiscoveredDevice),
	}
}

// Start begins browsing. It runs until ctx is cancelled or Stop is called.
func (b *Browser) Start(ctx context.Context) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return model.NewError(model.ErrNetwork, err)
	}

	browseCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})

	entries := make(chan *zeroconf.ServiceEntry, 16)
	go b.consume(entries)

	if err := resolver.Browse(browseCtx, ServiceName, "local.", entries); err != nil {
		cancel()
		return model.NewError(model.ErrNetwork, err)
	}

	go b.staleSweep(browseCtx)

	return nil
}

func (b *Browser) consume(entries <-chan *zeroconf.ServiceEntry) {
	defer close(b.done)
	for entry := range entries {
		dev, ok := b.toDiscovered(entry)
		if !ok {
			continue
		}
		b.mu.Lock()
		b.seen[dev.ID] = dev
		b.mu.Unlock()
		if b.OnDeviceFound != nil {
			b.OnDeviceFound(dev)
		}
	}
}

func (b *Browser) toDiscovered(entry *zeroconf.ServiceEntry) (model.DiscoveredDevice, bool) {
	fields := map[string]string{}
	for _, kv := range entry.Text {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			fields[parts[0]] = parts[1]
		}
	}
	id := fields["id"]
	if id == "" || id == b.SelfID {
		return model.DiscoveredDevice{}, false
	}

	addr := b.preferredAddress(entry)
	if addr == "" {
		return model.DiscoveredDevice{}, false
	}

	return model.DiscoveredDevice{
		DeviceInfo: model.DeviceInfo{
			ID:       id,
			Name:     fields["name"],
			Platform: normalizePlatform(fields["platform"]),
			Version:  fields["version"],
		},
		Address:  addr,
		Port:     entry.Port,
		LastSeen: time.Now(),
	}, true
}

// preferredAddress prefers an IPv4 literal; falling back to the resolved
// hostname with a trailing ".local." suffix stripped when no address record
// came back in the response.
func (b *Browser) preferredAddress(entry *zeroconf.ServiceEntry) string {
	if len(entry.AddrIPv4) > 0 {
		return entry.AddrIPv4[0].String()
	}
	if len(entry.AddrIPv6) > 0 {
		return entry.AddrIPv6[0].String()
	}
	return strings.TrimSuffix(entry.HostName, ".local.")
}

// staleSweep periodically emits OnDeviceLost for devices whose last
// sighting crossed the staleness threshold.
func (b *Browser) staleSweep(ctx context.Context) {
	ticker := time.NewTicker(rescanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			var lost []string
			b.mu.Lock()
			for id, dev := range b.seen {
				if dev.Stale(now) {
					lost = append(lost, id)
					delete(b.seen, id)
				}
			}
			b.mu.Unlock()
			for _, id := range lost {
				if b.OnDeviceLost != nil {
					b.OnDeviceLost(id)
				}
			}
		}
	}
}

// Stop halts browsing and waits for the consumer goroutine to exit.
func (b *Browser) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	if b.done != nil {
		<-b.done
	}
}
