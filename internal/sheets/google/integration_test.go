//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"roadbook/internal/core"
)

// Integration tests require real Google Sheets credentials
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_ReadTabs(t *testing.T) {
	if os.Getenv("GOOGLE_SPREADSHEET_ID") == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}

	ctx := context.Background()
	client, err := NewFromEnv(ctx, time.Local)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	cars, err := client.ListCars(ctx)
	if err != nil {
		t.Fatalf("list cars: %v", err)
	}
	t.Logf("Found %d cars", len(cars))

	prices, err := client.ListFuelPrices(ctx)
	if err != nil {
		t.Fatalf("list prices: %v", err)
	}
	if p := core.SelectLatestPrice(prices); p != nil {
		t.Logf("Latest price period %s", p.Period.Format("2006-01"))
	}

	from := core.MonthStart(time.Now())
	trips, err := client.ListTrips(ctx, from, from.AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("list trips: %v", err)
	}
	for _, trip := range trips {
		t.Logf("trip %d car=%d km=%.1f", trip.ID, trip.CarID, core.EffectiveDistance(trip))
	}
}
