package godesk

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"
)

// ScanStream returns a channel that streams FoundDevice as they are discovered
// and stops scanning when the context is canceled. Devices are matched by the
// vendor discovery service UUIDs they advertise.
func ScanStream(ctx context.Context, customServices ...bluetooth.UUID) (<-chan FoundDevice, error) {
	if err := TryEnableAdapter(); err != nil {
		return nil, err
	}

	deviceChan := make(chan FoundDevice)

	go func() {
		defer close(deviceChan)

		mu := sync.Mutex{}
		foundDevices := make(map[string]FoundDevice)
		servicesToScan := getServices(customServices...)

		if len(servicesToScan) == 0 {
			return // No services to scan for, nothing to do
		}

		log.Printf("Starting BLE scan for devices advertising services: %v...", servicesToScan)

		handler := func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			device, ok := matchResult(result, servicesToScan)
			if !ok {
				return
			}

			mu.Lock()
			defer mu.Unlock()

			if _, seen := foundDevices[device.Address.String()]; seen {
				return
			}
			foundDevices[device.Address.String()] = device

			select {
			case deviceChan <- device:
			case <-ctx.Done():
			}
		}

		scan := func() error { return BTAdapter.Scan(handler) }
		if err := awaitScan(ctx, scan, BTAdapter.StopScan); err != nil {
			log.Printf("Error while scanning: %v", err)
		}
	}()

	return deviceChan, nil
}

// Scan finds any desks advertising the given service UUIDs, blocking for the
// duration. With no custom services it scans for every registered
// implementation.
func Scan(duration time.Duration, customServices ...bluetooth.UUID) ([]FoundDevice, error) {
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	log.Println("Enabling Bluetooth adapter...")
	if err := TryEnableAdapter(); err != nil {
		return nil, err
	}

	mu := sync.Mutex{}
	foundDevices := make(map[string]FoundDevice)
	servicesToScan := getServices(customServices...)

	if len(servicesToScan) == 0 {
		return nil, errors.New("scan warning: no implementations registered and no custom services provided")
	}
	log.Printf("Scanning for devices advertising services: %v.", servicesToScan)

	handler := func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		device, ok := matchResult(result, servicesToScan)
		if !ok {
			return
		}

		log.Printf("    --> Found a match! Device: %s", device.Name)
		mu.Lock()
		foundDevices[device.Address.String()] = device
		mu.Unlock()
	}

	log.Println("Starting blocking scan...")
	scan := func() error { return BTAdapter.Scan(handler) }
	if err := awaitScan(ctx, scan, BTAdapter.StopScan); err != nil {
		return nil, err
	}

	results := make([]FoundDevice, 0, len(foundDevices))
	for _, device := range foundDevices {
		results = append(results, device)
	}

	log.Printf("Scan processing finished. Found %d unique matching device(s).", len(results))
	return results, nil
}

// ScanForOne scans until the first matching desk is found or the duration
// elapses.
func ScanForOne(duration time.Duration) (*FoundDevice, error) {
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	stream, err := ScanStream(ctx)
	if err != nil {
		return nil, err
	}

	select {
	case device, ok := <-stream:
		if !ok {
			return nil, errors.New("scan ended before a desk was found")
		}
		return &device, nil
	case <-ctx.Done():
		return nil, errors.New("no desk found before timeout")
	}
}

// awaitScan drives one adapter scan to completion. The adapter's Scan call
// blocks until StopScan, so it runs on its own goroutine while this one
// watches the context; once the context ends the scan is stopped and awaited.
// Returning guarantees the scan call has exited.
func awaitScan(ctx context.Context, scan func() error, stop func() error) error {
	scanErrChan := make(chan error, 1)
	go func() {
		scanErrChan <- scan()
	}()

	select {
	case err := <-scanErrChan:
		// The scan ended on its own, before the context did.
		return err
	case <-ctx.Done():
	}

	log.Println("Stopping scan...")
	if err := stop(); err != nil {
		log.Printf("Warning: failed to stop scan cleanly: %v", err)
	}

	return <-scanErrChan
}

func matchResult(result bluetooth.ScanResult, services []bluetooth.UUID) (FoundDevice, bool) {
	for _, svc := range services {
		if result.HasServiceUUID(svc) {
			return FoundDevice{
				Name:    result.LocalName(),
				Address: result.Address,
				RSSI:    result.RSSI,
				Service: svc,
			}, true
		}
	}
	return FoundDevice{}, false
}

// getServices helper function, provide services in addition to registered desk services
func getServices(customServices ...bluetooth.UUID) []bluetooth.UUID {
	if len(customServices) > 0 {
		return customServices
	}
	regLock.RLock()
	defer regLock.RUnlock()
	keys := make([]bluetooth.UUID, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	return keys
}
