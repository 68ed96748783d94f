// Command roadbook-import copies cars, fuel prices, trips and fuel
// expenses from the Google Sheets backend into the SQLite database.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"roadbook/internal/cli"
	"roadbook/internal/log"
	gsheet "roadbook/internal/sheets/google"
	"roadbook/internal/storage"
)

func main() {
	from := flag.String("from", "2000-01", "first month to import (YYYY-MM)")
	to := flag.String("to", "", "last month to import (YYYY-MM), defaults to the current month")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall time limit")
	flag.Parse()

	cfg, logger := cli.LoadConfig("import")
	loc, _ := cli.Calendar(cfg)

	start, err := time.ParseInLocation("2006-01", *from, loc)
	if err != nil {
		logger.Error("Invalid -from month", log.FieldError, err)
		os.Exit(2)
	}
	end := time.Now().In(loc)
	if *to != "" {
		if end, err = time.ParseInLocation("2006-01", *to, loc); err != nil {
			logger.Error("Invalid -to month", log.FieldError, err)
			os.Exit(2)
		}
	}
	// Half-open range ending at the first day after the last month.
	end = time.Date(end.Year(), end.Month()+1, 1, 0, 0, 0, 0, loc)

	ctx, stop := cli.ShutdownContext(logger)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	sheets, err := gsheet.NewFromEnv(ctx, loc)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath, loc)
	defer repo.Close()

	var snap storage.Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Cars, err = sheets.ListCars(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Prices, err = sheets.ListFuelPrices(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Trips, err = sheets.ListTrips(gctx, start, end)
		return err
	})
	g.Go(func() (err error) {
		snap.Fuel, err = sheets.ListFuelExpenses(gctx, start, end)
		return err
	})
	if err := g.Wait(); err != nil {
		logger.Error("Failed to read spreadsheet", log.FieldError, err)
		os.Exit(1)
	}

	if err := repo.Import(ctx, snap); err != nil {
		logger.Error("Import failed, database unchanged", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Import completed",
		"db_path", cfg.SQLiteDBPath,
		"cars", len(snap.Cars),
		"fuel_prices", len(snap.Prices),
		"trips", len(snap.Trips),
		"fuel_expenses", len(snap.Fuel),
		"from", start.Format("2006-01"),
		"to", end.AddDate(0, -1, 0).Format("2006-01"))
}
