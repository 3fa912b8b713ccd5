// Command seedprices writes one day of price_info points to InfluxDB so the
// refiner can be run against a local database. Prices come from a JSON
// fixture or from a synthetic two-peak daily profile.
//
// Usage:
//
//	go run ./cmd/seedprices -day tomorrow
//	go run ./cmd/seedprices -date 2024-04-26 \
//	  -fixture internal/pipeline/testdata/price_info_2024-04-26.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/couchcryptid/spot-price-refiner/internal/adapter/influx"
	"github.com/couchcryptid/spot-price-refiner/internal/config"
	"github.com/couchcryptid/spot-price-refiner/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dayFlag := flag.String("day", "today", "day to seed: today or tomorrow")
	dateFlag := flag.String("date", "", "explicit date (YYYY-MM-DD); overrides -day")
	fixture := flag.String("fixture", "", "JSON file of {hour, price} objects")
	base := flag.Float64("base", 0.8, "mean price of the synthetic profile")
	seed := flag.Uint64("seed", 1, "random seed for the synthetic profile")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cal := domain.NewCalendar(nil, cfg.Location)

	date, err := resolveDate(cal, *dayFlag, *dateFlag)
	if err != nil {
		return err
	}

	var series domain.PriceSeries
	if *fixture != "" {
		series, err = loadFixture(*fixture)
		if err != nil {
			return err
		}
	} else {
		series = syntheticDay(*base, *seed)
	}

	store, err := influx.NewStore(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.InfluxTimeout)
	defer cancel()
	if err := store.WritePrices(ctx, cal, date, series); err != nil {
		return fmt.Errorf("write prices: %w", err)
	}

	log.Printf("seeded %d hours for %s into %s", len(series), date.Format(domain.DateLayout), cfg.InfluxDatabase)
	return nil
}

func resolveDate(cal domain.Calendar, day, explicit string) (time.Time, error) {
	if explicit != "" {
		return cal.ParseDate(explicit)
	}
	d, err := domain.ParseDay(day)
	if err != nil {
		return time.Time{}, err
	}
	return cal.Date(d)
}

func loadFixture(path string) (domain.PriceSeries, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var series domain.PriceSeries
	if err := json.Unmarshal(data, &series); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	for _, hp := range series {
		if hp.Hour < 0 || hp.Hour >= domain.HoursPerDay {
			return nil, fmt.Errorf("fixture %s: hour %d outside 0-%d", path, hp.Hour, domain.HoursPerDay-1)
		}
	}
	return series, nil
}

// syntheticDay shapes a day around a morning peak at 08 and an evening peak
// at 18 with a night trough, plus up to 3% jitter.
func syntheticDay(base float64, seed uint64) domain.PriceSeries {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	peak := func(h, center, width float64) float64 {
		return math.Exp(-(h - center) * (h - center) / (2 * width * width))
	}

	series := make(domain.PriceSeries, 0, domain.HoursPerDay)
	for h := range domain.HoursPerDay {
		x := float64(h)
		shape := 1 + 0.35*peak(x, 8, 1.5) + 0.5*peak(x, 18, 2) - 0.25*peak(x, 3, 2.5)
		jitter := 1 + (rng.Float64()-0.5)*0.06
		price := math.Round(base*shape*jitter*10000) / 10000
		series = append(series, domain.HourPrice{Hour: h, Price: price})
	}
	return series
}
