package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/i474232898/weatherservice/internal/weather"
)

var locationHeader = []string{"postcode", "woonplaats", "gemeente", "provincie", "lat", "lon", "soort"}

// ImportLocationsCSV seeds the location catalogue from a CSV file with the
// header postcode,woonplaats,gemeente,provincie,lat,lon,soort. It does nothing
// when the catalogue already has entries and returns the number imported.
func ImportLocationsCSV(ctx context.Context, s Store, path string) (int, error) {
	n, err := s.CountLocations(ctx)
	if err != nil {
		return 0, fmt.Errorf("count locations: %w", err)
	}
	if n > 0 {
		return 0, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	locs, err := ParseLocationsCSV(f)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := s.SaveLocations(ctx, locs); err != nil {
		return 0, err
	}
	return len(locs), nil
}

// ParseLocationsCSV reads location rows. Columns are matched by header name.
func ParseLocationsCSV(r io.Reader) ([]weather.Location, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty file")
		}
		return nil, err
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range locationHeader {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var out []weather.Location
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		get := func(col string) string { return strings.TrimSpace(rec[idx[col]]) }

		loc := weather.Location{
			Woonplaats: get("woonplaats"),
			Gemeente:   get("gemeente"),
			Provincie:  get("provincie"),
			Soort:      get("soort"),
		}
		if loc.Woonplaats == "" {
			return nil, fmt.Errorf("line %d: empty woonplaats", line)
		}
		if v := get("postcode"); v != "" {
			if loc.Postcode, err = strconv.Atoi(v); err != nil {
				return nil, fmt.Errorf("line %d: postcode: %w", line, err)
			}
		}
		if loc.Lat, err = strconv.ParseFloat(get("lat"), 64); err != nil {
			return nil, fmt.Errorf("line %d: lat: %w", line, err)
		}
		if loc.Lon, err = strconv.ParseFloat(get("lon"), 64); err != nil {
			return nil, fmt.Errorf("line %d: lon: %w", line, err)
		}
		out = append(out, loc)
	}
	return out, nil
}
