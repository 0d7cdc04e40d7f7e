package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/easyshare-net/go-core/internal/model"
	"github.com/easyshare-net/go-core/internal/storage"
	"github.com/easyshare-net/go-core/pkg/engine"
)

func main() {
	var (
		name       = flag.String("name", "", "Device name to advertise (defaults to hostname)")
		listenAddr = flag.String("listen", ":0", "TCP listen address for the peer connection")
		autoAccept = flag.Bool("auto-accept", false, "Automatically accept incoming file transfers")
		saveDir    = flag.String("save-dir", ".", "Directory incoming files are saved to (used only when no save directory is stored yet)")
		testMode   = flag.Bool("test", false, "Enable testing mode with debug output")
	)
	flag.Parse()

	if *testMode {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
		log.Printf("🧪 TESTING MODE ENABLED")
	}

	deviceName := *name
	if deviceName == "" {
		if host, err := os.Hostname(); err == nil {
			deviceName = host
		} else {
			deviceName = "easyshare-device"
		}
	}

	self, err := loadOrCreateDeviceIdentity(deviceName)
	if err != nil {
		log.Fatalf("❌ Failed to load device identity: %v", err)
	}
	log.Printf("🚀 Starting EasyShare (%s, id=%s)", self.Name, self.ID)

	store, err := storage.NewFileStore(self.ID)
	if err != nil {
		log.Fatalf("❌ Failed to open storage: %v", err)
	}
	settings, err := store.GetSettings()
	if err != nil {
		log.Fatalf("❌ Failed to read settings: %v", err)
	}
	if settings.SaveDirectory == "" {
		settings.SaveDirectory = *saveDir
		settings.AutoAccept = *autoAccept
		settings.DeviceName = deviceName
		if err := store.UpdateSettings(settings); err != nil {
			log.Printf("⚠️ failed to persist initial settings: %v", err)
		}
	}

	reader := bufio.NewReader(os.Stdin)

	eng := engine.New(self, store, engine.Callbacks{
		OnConnectionStateChange: func(s model.ConnectionState) {
			log.Printf("🔌 connection state: %s (pairing: %s)", s.Status, s.PairingStep)
		},
		OnTransferProgress: func(id string, sent, total int64) {
			log.Printf("📦 transfer %s: %d/%d bytes", id, sent, total)
		},
		OnTransferComplete: func(t model.Transfer) {
			log.Printf("✅ transfer %s complete: %s", t.ID, t.Status)
		},
		OnTextReceived: func(from model.DeviceInfo, body string) {
			log.Printf("💬 %s: %s", from.Name, body)
		},
		OnPairingRequest: func(remote model.DeviceInfo) (string, bool) {
			fmt.Printf("Pairing request from %s (%s). Enter passphrase: ", remote.Name, remote.ID)
			line, _ := reader.ReadString('\n')
			return trimNewline(line), true
		},
		OnDeviceFound: func(d model.DiscoveredDevice) {
			log.Printf("📡 found device %s (%s) at %s:%d", d.Name, d.ID, d.Address, d.Port)
		},
		OnDeviceLost: func(id string) {
			log.Printf("📡 lost device %s", id)
		},
	}, func(req model.FileRequest) bool {
		if *autoAccept {
			return true
		}
		fmt.Printf("Incoming file %s (%d bytes). Accept? [y/N]: ", req.Name, req.Size)
		line, _ := reader.ReadString('\n')
		return trimNewline(line) == "y"
	}, log.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := eng.Start(ctx, *listenAddr); err != nil {
		log.Fatalf("❌ Failed to start engine: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Println("🌐 EasyShare running. Press Ctrl+C to stop.")
	<-sigChan

	log.Println("🛑 Shutting down...")
	eng.Stop()
	log.Println("✅ Shutdown complete")
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
