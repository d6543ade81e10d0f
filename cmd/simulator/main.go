package main

import (
	"context"
	"log"
	"time"

	"muhabbet/simulator"
)

func main() {
	config := simulator.SimConfig{
		NumUsers:         20,
		NumGroups:        5,
		SimulationTime:   10 * time.Minute,
		MessageFrequency: 120.0,
		ReceiptRate:      0.3,
		CallFrequency:    20.0,
		DisconnectRate:   0.01,
		ReconnectRate:    0.05,
		ZipfS:            1.07,
		ServerURL:        "http://localhost:8080",
	}

	sim := simulator.NewChatSimulator(config)
	ctx, cancel := context.WithTimeout(context.Background(), config.SimulationTime)
	defer cancel()

	log.Printf("Starting simulation with configuration:")
	log.Printf("- Server URL: %s", config.ServerURL)
	log.Printf("- Number of users: %d", config.NumUsers)
	log.Printf("- Number of groups: %d", config.NumGroups)
	log.Printf("- Simulation time: %v", config.SimulationTime)
	log.Printf("- Message frequency: %.2f messages/user/hour", config.MessageFrequency)
	log.Printf("- Receipt rate: %.2f", config.ReceiptRate)
	log.Printf("- Call frequency: %.2f calls/user/hour", config.CallFrequency)
	log.Printf("- Disconnect rate: %.2f", config.DisconnectRate)
	log.Printf("- Zipf parameter: %.2f", config.ZipfS)

	if err := sim.Run(ctx); err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}

	metrics := sim.GetMetrics()
	log.Printf("\nSimulation completed. Final metrics:")
	log.Printf("- Total users: %d", metrics.TotalUsers)
	log.Printf("- Active users at end: %d", metrics.ActiveUsers)
	log.Printf("- Total messages: %d", metrics.TotalMessages)
	log.Printf("- Total receipts: %d", metrics.TotalReceipts)
	log.Printf("- Total calls: %d", metrics.TotalCalls)
	log.Printf("- Error count: %d", metrics.ErrorCount)
}
