// Package integration handles external service interactions
package integration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/entities"
	"go.uber.org/zap"
)

// ErrLogNotFound is returned when the logger has no file for the requested day
var ErrLogNotFound = errors.New("rain log not found")

// RainLogFetcher downloads daily rain gauge log files from the logger's web folder
type RainLogFetcher struct {
	baseURL string
	prefix  string
	client  *http.Client
	logger  *zap.SugaredLogger
}

// NewRainLogFetcher creates a fetcher for files named <baseURL>/<prefix>DD-MM-YYYY.txt
func NewRainLogFetcher(baseURL, prefix string, timeout time.Duration, logger *zap.SugaredLogger) *RainLogFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &RainLogFetcher{
		baseURL: baseURL,
		prefix:  prefix,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// FileURL returns the URL of the log for the calendar day of date, in date's own location
func (f *RainLogFetcher) FileURL(date time.Time) string {
	return fmt.Sprintf("%s%s%s.txt", f.baseURL, f.prefix, date.Format(entities.DateKeyLayout))
}

// FetchRainLog retrieves the raw text of one day's log
func (f *RainLogFetcher) FetchRainLog(ctx context.Context, date time.Time) (string, error) {
	fileURL := f.FileURL(date)
	f.logger.Debugw("fetching rain log", "url", fileURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request for %s: %w", fileURL, err)
	}

	res, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", fileURL, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s", ErrLogNotFound, fileURL)
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code for %s: %d %s", fileURL, res.StatusCode, res.Status)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", fileURL, err)
	}

	f.logger.Debugw("rain log fetched", "url", fileURL, "bytes", len(body))
	return string(body), nil
}

// ListAvailableDates reads the logger folder's HTML index and returns the days
// for which a log file is published, oldest first
func (f *RainLogFetcher) ListAvailableDates(ctx context.Context, loc *time.Location) ([]time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build index request: %w", err)
	}

	res, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch log index: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code for log index: %d %s", res.StatusCode, res.Status)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log index: %w", err)
	}

	nameRe := regexp.MustCompile("^" + regexp.QuoteMeta(f.prefix) + `(\d{2}-\d{2}-\d{4})\.txt$`)
	seen := make(map[string]bool)
	var dates []time.Time
	skipped := 0

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		name := href[strings.LastIndex(href, "/")+1:]
		match := nameRe.FindStringSubmatch(name)
		if match == nil {
			return
		}
		if seen[match[1]] {
			return
		}
		day, err := time.ParseInLocation(entities.DateKeyLayout, match[1], loc)
		if err != nil {
			skipped++
			return
		}
		seen[match[1]] = true
		dates = append(dates, day)
	})

	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Before(dates[j])
	})

	f.logger.Debugw("parsed log index", "files", len(dates), "skipped", skipped)
	return dates, nil
}
