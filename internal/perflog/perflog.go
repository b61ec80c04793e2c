// Package perflog keeps a bounded, file-backed log of served requests and
// derives per-endpoint performance figures from it.
package perflog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/i474232898/weatherservice/internal/logging"
)

// DefaultMaxEntries is the number of newest entries kept on disk.
const DefaultMaxEntries = 10000

// outlierThreshold is the group size above which IQR filtering applies.
const outlierThreshold = 5

// Entry is one served request.
type Entry struct {
	Timestamp      time.Time `json:"timestamp"`
	Method         string    `json:"method"`
	Path           string    `json:"path"`
	StatusCode     int       `json:"statusCode"`
	ResponseTimeMs int64     `json:"responseTimeMs"`
	RequestID      string    `json:"requestId,omitempty"`
}

// IsSuccessful reports a 2xx or 3xx status.
func (e Entry) IsSuccessful() bool {
	return e.StatusCode >= 200 && e.StatusCode < 400
}

// MarshalJSON adds the derived isSuccessful flag.
func (e Entry) MarshalJSON() ([]byte, error) {
	type plain Entry
	return json.Marshal(struct {
		plain
		IsSuccessful bool `json:"isSuccessful"`
	}{plain(e), e.IsSuccessful()})
}

// Filter selects entries in Logs. Zero values match everything.
type Filter struct {
	Path  string
	Start time.Time
	End   time.Time
}

// Stats is the per-endpoint summary served by the API.
type Stats struct {
	AverageResponseTimesByEndpoint map[string]float64 `json:"averageResponseTimesByEndpoint"`
	RequestCountByEndpoint         map[string]int     `json:"requestCountByEndpoint"`
	SuccessRateByEndpoint          map[string]float64 `json:"successRateByEndPoint"`
}

// Service is the request performance log. It is safe for concurrent use.
type Service struct {
	mu         sync.Mutex
	path       string
	maxEntries int
	entries    []Entry
	logger     *slog.Logger
	gauge      prometheus.Gauge
}

// Option configures a Service.
type Option func(*Service)

// WithGauge reports the number of held entries on g.
func WithGauge(g prometheus.Gauge) Option {
	return func(s *Service) { s.gauge = g }
}

// New opens the log at path. An unreadable or corrupt file is logged and
// the service starts empty.
func New(path string, maxEntries int, logger *slog.Logger, opts ...Option) (*Service, error) {
	if path == "" {
		return nil, errors.New("perflog: path is required")
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("perflog: mkdir: %w", err)
	}

	s := &Service{
		path:       path,
		maxEntries: maxEntries,
		logger:     logging.Component(logger, "perflog"),
	}
	for _, o := range opts {
		o(s)
	}

	entries, err := readEntries(path)
	if err != nil {
		s.logger.Error("error reading performance log, starting empty", "path", path, "error", err)
		entries = nil
	}
	s.entries = s.trim(entries)
	s.setGauge()
	s.logger.Info("request performance log ready", "path", path, "entries", len(s.entries))
	return s, nil
}

func readEntries(path string) ([]Entry, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// trim keeps the newest maxEntries by timestamp, in chronological order.
func (s *Service) trim(entries []Entry) []Entry {
	if len(entries) <= s.maxEntries {
		return entries
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Timestamp.Before(entries[j].Timestamp) })
	return append([]Entry(nil), entries[len(entries)-s.maxEntries:]...)
}

func (s *Service) setGauge() {
	if s.gauge != nil {
		s.gauge.Set(float64(len(s.entries)))
	}
}

// Log appends e and rewrites the file. Write failures are logged only.
func (s *Service) Log(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	e.Timestamp = e.Timestamp.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = s.trim(append(s.entries, e))
	s.setGauge()
	if err := s.persist(); err != nil {
		s.logger.Error("error writing performance log", "path", s.path, "error", err)
	}
}

func (s *Service) persist() error {
	raw, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Service) snapshot() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Logs returns the entries matching f, oldest first.
func (s *Service) Logs(f Filter) []Entry {
	out := []Entry{}
	for _, e := range s.snapshot() {
		if f.Path != "" && !strings.Contains(e.Path, f.Path) {
			continue
		}
		if !f.Start.IsZero() && e.Timestamp.Before(f.Start) {
			continue
		}
		if !f.End.IsZero() && e.Timestamp.After(f.End) {
			continue
		}
		out = append(out, e)
	}
	return out
}

var historyPath = regexp.MustCompile(`/history/\d+`)

// NormalizePath folds per-station history paths into one endpoint.
func NormalizePath(path string) string {
	if !strings.Contains(path, "/history/") {
		return path
	}
	return historyPath.ReplaceAllString(path, "/history/{id}")
}

func (s *Service) grouped() map[string][]Entry {
	groups := make(map[string][]Entry)
	for _, e := range s.snapshot() {
		key := NormalizePath(e.Path)
		groups[key] = append(groups[key], e)
	}
	return groups
}

// AverageResponseTimes is the mean response time per endpoint in ms, with
// IQR outliers removed from groups larger than five samples.
func (s *Service) AverageResponseTimes() map[string]float64 {
	out := make(map[string]float64)
	for key, entries := range s.grouped() {
		times := make([]float64, len(entries))
		for i, e := range entries {
			times[i] = float64(e.ResponseTimeMs)
		}
		if len(times) > outlierThreshold {
			times = RemoveOutliers(times)
		}
		out[key] = mean(times)
	}
	return out
}

// RequestCounts is the number of requests per endpoint.
func (s *Service) RequestCounts() map[string]int {
	out := make(map[string]int)
	for key, entries := range s.grouped() {
		out[key] = len(entries)
	}
	return out
}

// SuccessRates is the percentage of successful requests per endpoint.
func (s *Service) SuccessRates() map[string]float64 {
	out := make(map[string]float64)
	for key, entries := range s.grouped() {
		ok := 0
		for _, e := range entries {
			if e.IsSuccessful() {
				ok++
			}
		}
		out[key] = float64(ok) * 100 / float64(len(entries))
	}
	return out
}

// Stats collects all three summaries.
func (s *Service) Stats() Stats {
	return Stats{
		AverageResponseTimesByEndpoint: s.AverageResponseTimes(),
		RequestCountByEndpoint:         s.RequestCounts(),
		SuccessRateByEndpoint:          s.SuccessRates(),
	}
}

// RemoveOutliers drops values outside [q1 - 1.5 IQR, q3 + 1.5 IQR], where
// q1 and q3 are taken at floor(n/4) and floor(3n/4) of the sorted values.
// Input order is preserved.
func RemoveOutliers(values []float64) []float64 {
	if len(values) == 0 {
		return values
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	n := float64(len(sorted))
	q1 := sorted[int(math.Floor(n*0.25))]
	q3 := sorted[int(math.Floor(n*0.75))]
	iqr := q3 - q1
	lower, upper := q1-1.5*iqr, q3+1.5*iqr

	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v >= lower && v <= upper {
			out = append(out, v)
		}
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
