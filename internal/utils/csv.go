package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"sniperBot/internal/domain"
	"sniperBot/internal/strategy/optimization"
)

var klineHeader = []string{"open_time", "close_time", "symbol", "interval", "open", "high", "low", "close", "volume", "quote_volume"}

// WriteKlinesToCSV writes klines with a header row, creating parent directories.
func WriteKlinesToCSV(klines []*domain.Kline, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("create directory for %s: %w", filename, err)
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(klineHeader); err != nil {
		return err
	}

	for _, k := range klines {
		if err := writer.Write([]string{
			k.OpenTime.UTC().Format(time.RFC3339),
			k.CloseTime.UTC().Format(time.RFC3339),
			k.Symbol,
			k.Interval,
			strconv.FormatFloat(k.Open, 'f', -1, 64),
			strconv.FormatFloat(k.High, 'f', -1, 64),
			strconv.FormatFloat(k.Low, 'f', -1, 64),
			strconv.FormatFloat(k.Close, 'f', -1, 64),
			strconv.FormatFloat(k.Volume, 'f', -1, 64),
			strconv.FormatFloat(k.QuoteVolume, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadKlinesFromCSV reads a file written by WriteKlinesToCSV. The
// quote_volume column is optional.
func ReadKlinesFromCSV(filename string) ([]*domain.Kline, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("read header of %s: %w", filename, err)
	}

	var klines []*domain.Kline
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", filename, line, err)
		}
		k, err := parseKlineRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", filename, line, err)
		}
		klines = append(klines, k)
	}
	return klines, nil
}

func parseKlineRecord(rec []string) (*domain.Kline, error) {
	if len(rec) < 9 {
		return nil, fmt.Errorf("expected at least 9 columns, got %d", len(rec))
	}
	openTime, err := time.Parse(time.RFC3339, rec[0])
	if err != nil {
		return nil, fmt.Errorf("open_time: %w", err)
	}
	closeTime, err := time.Parse(time.RFC3339, rec[1])
	if err != nil {
		return nil, fmt.Errorf("close_time: %w", err)
	}

	nums := make([]float64, 0, 6)
	for i := 4; i < len(rec) && i < 10; i++ {
		v, err := strconv.ParseFloat(rec[i], 64)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", klineHeader[i], err)
		}
		nums = append(nums, v)
	}
	k := &domain.Kline{
		OpenTime:  openTime,
		CloseTime: closeTime,
		Symbol:    rec[2],
		Interval:  rec[3],
		Open:      nums[0],
		High:      nums[1],
		Low:       nums[2],
		Close:     nums[3],
		Volume:    nums[4],
	}
	if len(nums) > 5 {
		k.QuoteVolume = nums[5]
	}
	return k, nil
}

// KlinesToDataPoints converts candles into optimizer observations. The
// volatility of each point is the candle's high-low range relative to close.
func KlinesToDataPoints(klines []*domain.Kline) []optimization.DataPoint {
	points := make([]optimization.DataPoint, 0, len(klines))
	for _, k := range klines {
		var vol float64
		if k.Close > 0 {
			vol = (k.High - k.Low) / k.Close
		}
		points = append(points, optimization.DataPoint{
			Timestamp:  k.CloseTime,
			Price:      k.Close,
			Volume:     k.Volume,
			Volatility: vol,
		})
	}
	return points
}
