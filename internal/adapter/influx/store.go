package influx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"

	"github.com/couchcryptid/spot-price-refiner/internal/config"
	"github.com/couchcryptid/spot-price-refiner/internal/domain"
)

const (
	priceMeasurement   = "price_info"
	refinedMeasurement = "refined"
)

// Store reads price_info rows and writes refined rows over the InfluxDB 1.x
// HTTP API. It implements pipeline.PriceSource and pipeline.RecordSink.
type Store struct {
	client   client.Client
	database string
	logger   *slog.Logger
}

// NewStore creates an HTTP client for the configured database. The client
// applies INFLUXDB_TIMEOUT to every request.
func NewStore(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	c, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:     cfg.InfluxAddr,
		Username: cfg.InfluxUsername,
		Password: cfg.InfluxPassword,
		Timeout:  cfg.InfluxTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create influx client: %w", err)
	}
	return &Store{client: c, database: cfg.InfluxDatabase, logger: logger}, nil
}

// FetchPrices returns the hourly prices stored for date (YYYY-MM-DD).
func (s *Store) FetchPrices(ctx context.Context, date string) (domain.PriceSeries, error) {
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: date %q: %w", domain.ErrNormalization, date, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrQuery, err)
	}

	q := client.NewQuery(fmt.Sprintf("SELECT price, hour FROM %s WHERE date = '%s'", priceMeasurement, date), s.database, "")
	resp, err := s.client.Query(q)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrQuery, err)
	}
	if err := resp.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrQuery, err)
	}

	series, err := decodeSeries(resp)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("price_info queried", "date", date, "rows", len(series))
	return series, nil
}

// WriteRecord writes rec as one point in the refined measurement, tagged by
// hour and date and stamped with the hour start.
func (s *Store) WriteRecord(ctx context.Context, rec domain.ClassificationRecord) error {
	pt, err := client.NewPoint(refinedMeasurement, map[string]string{
		"hour": strconv.Itoa(rec.Hour),
		"date": rec.Date,
	}, recordFields(rec), rec.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: build refined point: %w", domain.ErrWrite, err)
	}
	return s.write(ctx, pt)
}

// WritePrices writes a day of price_info points. Used to seed development
// databases; the refiner itself never writes prices.
func (s *Store) WritePrices(ctx context.Context, cal domain.Calendar, date time.Time, series domain.PriceSeries) error {
	ds := date.In(cal.Location()).Format(domain.DateLayout)
	points := make([]*client.Point, 0, len(series))
	for _, hp := range series {
		ts, err := cal.HourStart(date, hp.Hour)
		if err != nil {
			return err
		}
		pt, err := client.NewPoint(priceMeasurement,
			map[string]string{"date": ds},
			map[string]any{"price": hp.Price, "hour": hp.Hour},
			ts,
		)
		if err != nil {
			return fmt.Errorf("%w: build price point: %w", domain.ErrWrite, err)
		}
		points = append(points, pt)
	}
	return s.write(ctx, points...)
}

// CheckReadiness pings the server.
func (s *Store) CheckReadiness(ctx context.Context) error {
	timeout := 2 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if timeout <= 0 {
		return fmt.Errorf("influx ping: %w", context.DeadlineExceeded)
	}
	if _, _, err := s.client.Ping(timeout); err != nil {
		return fmt.Errorf("influx ping: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) write(ctx context.Context, points ...*client.Point) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrWrite, err)
	}
	bp, err := client.NewBatchPoints(client.BatchPointsConfig{Database: s.database})
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrWrite, err)
	}
	bp.AddPoints(points)
	if err := s.client.Write(bp); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrWrite, err)
	}
	return nil
}

func recordFields(rec domain.ClassificationRecord) map[string]any {
	return map[string]any{
		"pris_snitt_24":   rec.Average,
		"pris_time":       rec.Price,
		"pris_forhold_24": rec.Ratio,
		"pris_max":        rec.MaxHour,
		"pris_min":        rec.MinHour,
		"in_6_l_8":        rec.ShoulderLowBand,
		"in_0_6_high":     rec.HighNight,
		"in_6_12_high":    rec.HighMorning,
		"in_12_18_high":   rec.HighAfternoon,
		"in_18_24_high":   rec.HighEvening,
		"t0_60":           rec.Below60,
		"t60_90":          rec.From60To90,
		"t90_115":         rec.From90To115,
		"t115_140":        rec.From115To140,
		"t140_999":        rec.Above140,
		"i8h_low":         rec.DailyLowBand,
	}
}

// decodeSeries maps the price and hour columns of the first result. Hours
// must be whole numbers in 0-23 and appear at most once.
func decodeSeries(resp *client.Response) (domain.PriceSeries, error) {
	if len(resp.Results) == 0 || len(resp.Results[0].Series) == 0 {
		return nil, domain.ErrEmptyResult
	}
	row := resp.Results[0].Series[0]

	priceCol, hourCol := -1, -1
	for i, c := range row.Columns {
		switch c {
		case "price":
			priceCol = i
		case "hour":
			hourCol = i
		}
	}
	if priceCol < 0 || hourCol < 0 {
		return nil, fmt.Errorf("%w: columns %v lack price or hour", domain.ErrParse, row.Columns)
	}
	if len(row.Values) == 0 {
		return nil, domain.ErrEmptyResult
	}

	series := make(domain.PriceSeries, 0, len(row.Values))
	seen := make(map[int]bool, len(row.Values))
	for i, v := range row.Values {
		if len(v) <= max(priceCol, hourCol) {
			return nil, fmt.Errorf("%w: row %d has %d values", domain.ErrParse, i, len(v))
		}
		price, err := toFloat(v[priceCol])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d price: %w", domain.ErrParse, i, err)
		}
		rawHour, err := toFloat(v[hourCol])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d hour: %w", domain.ErrParse, i, err)
		}
		hour := int(rawHour)
		if float64(hour) != rawHour || hour < 0 || hour >= domain.HoursPerDay {
			return nil, fmt.Errorf("%w: row %d hour %v outside 0-%d", domain.ErrParse, i, v[hourCol], domain.HoursPerDay-1)
		}
		if seen[hour] {
			return nil, fmt.Errorf("%w: duplicate hour %d", domain.ErrParse, hour)
		}
		seen[hour] = true
		series = append(series, domain.HourPrice{Hour: hour, Price: price})
	}
	return series, nil
}

// toFloat accepts the representations the client produces for fields
// (json.Number) and for tags (string).
func toFloat(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, err
		}
		f = parsed
	case float64:
		f = n
	case int64:
		f = float64(n)
	case int:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	case nil:
		return 0, errors.New("missing value")
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value %v", f)
	}
	return f, nil
}
