// Package geonames searches the GeoNames cities15000 dump so that zones can
// be added by city name.
package geonames

import (
	"archive/zip"
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/philtim/timearchitect/clock"
	"github.com/philtim/timearchitect/logger"
)

const (
	// GeoNamesURL is the download URL for cities with 15000+ population
	GeoNamesURL = "http://download.geonames.org/export/dump/cities15000.zip"
	// CacheFileName is the name of the cached cities file
	CacheFileName = "cities15000.txt"

	minQueryLen = 3
)

// City represents a city from the GeoNames database
type City struct {
	Name        string `json:"name"`
	CountryCode string `json:"country_code"`
	Timezone    string `json:"timezone"`
	Population  int    `json:"population"`
}

// Database holds the GeoNames cities data
type Database struct {
	URL      string
	CacheDir string
	Client   *http.Client

	mu     sync.RWMutex
	cities []City
	ready  bool
	err    error
}

// NewDatabase creates a database caching its download under cacheDir. An
// empty cacheDir means ~/.cache/timearchitect.
func NewDatabase(cacheDir string) *Database {
	if cacheDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cacheDir = filepath.Join(home, ".cache", "timearchitect")
		}
	}
	return &Database{
		URL:      GeoNamesURL,
		CacheDir: cacheDir,
		Client:   &http.Client{Timeout: 2 * time.Minute},
	}
}

// LoadAsync loads the database in the background
func (db *Database) LoadAsync(ctx context.Context) {
	go func() {
		if err := db.Load(ctx); err != nil {
			logger.Warnf("City database unavailable: %v", err)
		}
	}()
}

// Load downloads the dump if it is not cached yet and parses it.
func (db *Database) Load(ctx context.Context) error {
	err := db.load(ctx)
	if err != nil {
		db.mu.Lock()
		db.err = err
		db.mu.Unlock()
	}
	return err
}

func (db *Database) load(ctx context.Context) error {
	if db.CacheDir == "" {
		return fmt.Errorf("no cache directory")
	}
	cachePath := filepath.Join(db.CacheDir, CacheFileName)

	if _, err := os.Stat(cachePath); os.IsNotExist(err) {
		if err := db.downloadAndExtract(ctx, cachePath); err != nil {
			return fmt.Errorf("failed to download GeoNames data: %w", err)
		}
	}

	f, err := os.Open(cachePath)
	if err != nil {
		return err
	}
	defer f.Close()

	cities, err := Parse(f)
	if err != nil {
		return fmt.Errorf("failed to parse GeoNames data: %w", err)
	}
	db.SetCities(cities)
	logger.Infof("Loaded %d cities", len(cities))
	return nil
}

// SetCities replaces the loaded cities and marks the database ready.
func (db *Database) SetCities(cities []City) {
	sort.SliceStable(cities, func(i, j int) bool {
		return cities[i].Population > cities[j].Population
	})
	db.mu.Lock()
	db.cities = cities
	db.ready = true
	db.err = nil
	db.mu.Unlock()
}

// IsReady returns whether the database is loaded and ready
func (db *Database) IsReady() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.ready
}

// Err returns any error that occurred during loading
func (db *Database) Err() error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.err
}

// Search returns up to maxResults cities whose name matches query: exact
// matches first, then prefix, then substring, each by population.
func (db *Database) Search(query string, maxResults int) []City {
	db.mu.RLock()
	defer db.mu.RUnlock()

	query = strings.ToLower(strings.TrimSpace(query))
	if !db.ready || len(query) < minQueryLen || maxResults <= 0 {
		return []City{}
	}

	var exact, prefix, contains []City
	for _, city := range db.cities {
		name := strings.ToLower(city.Name)
		switch {
		case name == query:
			exact = append(exact, city)
		case strings.HasPrefix(name, query):
			prefix = append(prefix, city)
		case strings.Contains(name, query):
			contains = append(contains, city)
		}
	}

	results := append(append(exact, prefix...), contains...)
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}

// SuggestCode proposes a zone code for city: the zone's abbreviation at t
// when it is alphabetic (CET, JST), otherwise the first three letters of
// the city name.
func SuggestCode(city City, t time.Time) string {
	if loc, err := time.LoadLocation(city.Timezone); err == nil {
		abbr, _ := t.In(loc).Zone()
		if isLetters(abbr) {
			return abbr
		}
	}
	var b strings.Builder
	for _, r := range strings.ToUpper(city.Name) {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
			if b.Len() == 3 {
				break
			}
		}
	}
	if b.Len() == 0 {
		return "CTY"
	}
	return b.String()
}

// Entry turns city into a registry entry with the given code.
func (c City) Entry(code string) clock.Entry {
	return clock.Entry{
		Code:     code,
		TZ:       c.Timezone,
		Label:    c.Timezone,
		Location: fmt.Sprintf("%s, %s", c.Name, c.CountryCode),
	}
}

func isLetters(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// downloadAndExtract downloads the GeoNames zip file and extracts it
func (db *Database) downloadAndExtract(ctx context.Context, targetPath string) error {
	cacheDir := filepath.Dir(targetPath)
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tempZip, err := os.CreateTemp(cacheDir, "cities-*.zip")
	if err != nil {
		return err
	}
	defer os.Remove(tempZip.Name())

	if err := db.download(ctx, tempZip); err != nil {
		tempZip.Close()
		return fmt.Errorf("failed to download file: %w", err)
	}
	if err := tempZip.Close(); err != nil {
		return err
	}

	if err := extractFile(tempZip.Name(), CacheFileName, targetPath); err != nil {
		return fmt.Errorf("failed to extract file: %w", err)
	}
	return nil
}

func (db *Database) download(ctx context.Context, out io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, db.URL, nil)
	if err != nil {
		return err
	}
	client := db.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}
	_, err = io.Copy(out, resp.Body)
	return err
}

// extractFile extracts a specific file from a zip archive via a ".part" file
func extractFile(zipPath, fileName, targetPath string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != fileName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		defer rc.Close()

		tmp := targetPath + ".part"
		out, err := os.Create(tmp)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, rc); err != nil {
			out.Close()
			os.Remove(tmp)
			return err
		}
		if err := out.Close(); err != nil {
			os.Remove(tmp)
			return err
		}
		return os.Rename(tmp, targetPath)
	}

	return fmt.Errorf("file %s not found in zip archive", fileName)
}

// Parse reads the tab-separated GeoNames format. Lines without a timezone
// are skipped.
func Parse(r io.Reader) ([]City, error) {
	var cities []City
	scanner := bufio.NewScanner(r)

	// Increase buffer size for long lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")

		// timezone is at index 17
		if len(fields) < 18 || fields[17] == "" {
			continue
		}

		population, _ := strconv.Atoi(fields[14])
		cities = append(cities, City{
			Name:        fields[1],
			CountryCode: fields[8],
			Timezone:    fields[17],
			Population:  population,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cities, nil
}
