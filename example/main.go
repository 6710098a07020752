package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brickbattery/panelcore"
)

func main() {
	// start mock devices (see mock_devices.go)
	go StartMockAircon(":9001", "Living Room")
	go StartMockAircon(":9002", "Bedrooms")
	go StartMockController(":9003")
	time.Sleep(100 * time.Millisecond)

	living, err := panelcore.NewDevice("living", "http://localhost:9001", panelcore.KindAircon)
	if err != nil {
		slog.Error("failed to create device", "error", err)
		os.Exit(1)
	}
	bedrooms, _ := panelcore.NewDevice("bedrooms", "http://localhost:9002", panelcore.KindAircon)
	solar, _ := panelcore.NewDevice("solar", "http://localhost:9003", panelcore.KindController)

	p, err := panelcore.New(
		panelcore.WithDevices(living, bedrooms, solar),
		panelcore.WithReadInterval(3*time.Second),
		panelcore.WithPort(8080),
		panelcore.WithUpdateCallback(func(u panelcore.Update) {
			if u.Liveness != panelcore.LivenessHealthy {
				slog.Warn("device not healthy", "device", u.DeviceID, "liveness", u.Liveness)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create panel", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  Panelcore Demo")
	fmt.Println()
	fmt.Println("  State:    curl http://localhost:8080/api/state")
	fmt.Println("  Stream:   curl http://localhost:8080/api/stream")
	fmt.Println("  Control:  curl 'http://localhost:8080/api/controls?dev=living&stemp=22'")
	fmt.Println()
	fmt.Println("  Devices: 2 mock climate units + 1 mock energy controller")
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := p.Start(ctx); err != nil {
		slog.Error("panel error", "error", err)
		os.Exit(1)
	}
}
