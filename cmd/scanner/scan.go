package main

import (
	"fmt"
	"log"
	"time"

	"github.com/upliftdesk/godesk"
	_ "github.com/upliftdesk/godesk/pkg/desks/all"
)

func main() {
	log.Println("--- godesk Scanner Test ---")

	scanDuration := 15 * time.Second
	log.Printf("Starting BLE scan for %s...", scanDuration)
	log.Println("Make sure your desk's control box is powered.")

	// Scan blocks for the duration and matches any device advertising a
	// registered vendor discovery service.
	devices, err := godesk.Scan(scanDuration)
	if err != nil {
		log.Fatalf("Fatal: Scan failed: %v", err)
	}

	if len(devices) == 0 {
		log.Println("\nScan complete. No desks found.")
		log.Println("Tip: the desk only advertises while its control box has power.")
		return
	}

	fmt.Println("\n--- Found Desks ---")
	for i, device := range devices {
		fmt.Printf("%d: Name: %s\n", i+1, device.Name)
		fmt.Printf("   Addr: %s\n", device.Address.String())
		fmt.Printf("   RSSI: %d\n\n", device.RSSI)
	}
	fmt.Println("-------------------")
}
