// Package discovery implements LAN peer discovery over mDNS: advertising
// this device's own presence and browsing for others, both scoped to the
// "_easyshare._tcp" service.
//
// Grounded on libp2p_node.go's mDNS advertise/notifee wiring, taken one
// layer down: the teacher runs a full libp2p host with mdns.NewMdnsService
// underneath; EasyShare has no host to run, so this talks to
// github.com/libp2p/zeroconf/v2 (the library underneath that service)
// directly, promoted from an indirect teacher dependency to direct use.
package discovery

import (
	"fmt"
	"log"
	"time"

	"github.com/libp2p/zeroconf/v2"

	"github.com/easyshare-net/go-core/internal/model"
)

// ServiceName is the mDNS service type every EasyShare device advertises
// under and browses for.
const ServiceName = "_easyshare._tcp"

// readvertiseInterval matches the spec's "MAY re-advertise every 30s".
const readvertiseInterval = 30 * time.Second

// Advertiser periodically registers this device's mDNS presence.
type Advertiser struct {
	Device model.DeviceInfo
	Port   int
	Logger *log.Logger

	stop chan struct{}
	done chan struct{}
}

// NewAdvertiser constructs an Advertiser for device, announcing port.
func NewAdvertiser(device model.DeviceInfo, port int, logger *log.Logger) *Advertiser {
	if logger == nil {
		logger = log.Default()
	}
	return &Advertiser{
		Device: device,
		Port:   port,
		Logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (a *Advertiser) instanceName() string {
	return fmt.Sprintf("EasyShare-%s", a.Device.ID)
}

func (a *Advertiser) txtRecord() []string {
	return []string{
		"id=" + a.Device.ID,
		"name=" + a.Device.Name,
		"platform=" + string(a.Device.Platform),
		"version=" + a.Device.Version,
	}
}

// Start registers the mDNS record and keeps re-registering it on a ticker
// until Stop is called, so a flaky network stack never leaves us
// permanently unadvertised.
func (a *Advertiser) Start() error {
	server, err := zeroconf.Register(a.instanceName(), ServiceName, "local.", a.Port, a.txtRecord(), nil)
	if err != nil {
		return model.NewError(model.ErrNetwork, fmt.Errorf("mdns register: %w", err))
	}
	a.Logger.Printf("📡 advertising %s on port %d", a.instanceName(), a.Port)

	go func() {
		defer close(a.done)
		current := server
		ticker := time.NewTicker(readvertiseInterval)
		defer ticker.Stop()
		for {
			select {
			case <-a.stop:
				current.Shutdown()
				return
			case <-ticker.C:
				next, err := zeroconf.Register(a.instanceName(), ServiceName, "local.", a.Port, a.txtRecord(), nil)
				if err != nil {
					a.Logger.Printf("⚠️ mdns re-advertise failed: %v", err)
					continue
				}
				current.Shutdown()
				current = next
			}
		}
	}()
	return nil
}

// Stop withdraws the mDNS record and waits for the re-advertise loop to exit.
func (a *Advertiser) Stop() {
	close(a.stop)
	<-a.done
}
