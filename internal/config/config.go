package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelvins/geocoder"

	"github.com/cerro-obs/cloudfrac/internal/cloudfrac"
	"github.com/cerro-obs/cloudfrac/internal/objstore"
)

var validate = validator.New()

// AppConfig is the full configuration surface.
type AppConfig struct {
	Satellite string `validate:"required,oneof=goes16 goes17 goes18 goes19"`
	Sector    string `validate:"required,oneof=F C M"`

	Site cloudfrac.Site `validate:"required"`

	// Cadence between scan times.
	Cadence time.Duration `validate:"required,gt=0"`

	// CacheRoot is where remote objects are mirrored.
	CacheRoot string `validate:"required"`

	// Serve-mode settings: refresh every Interval over the trailing
	// Lookback window, retaining up to MaxRows / MaxAge in memory.
	Interval time.Duration `validate:"gt=0"`
	Lookback time.Duration `validate:"gt=0"`
	MaxRows  int
	MaxAge   time.Duration

	Port    string
	Verbose bool
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: no .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{}

	cfg.Satellite = getenvDefault("CLOUDFRAC_SATELLITE", "goes19")
	cfg.Sector = getenvDefault("CLOUDFRAC_SECTOR", "F")

	site, err := loadSite()
	if err != nil {
		return nil, err
	}
	cfg.Site = site

	cadenceMin := getenvInt("CLOUDFRAC_CADENCE_MINUTES", 10)
	cfg.Cadence = time.Duration(cadenceMin) * time.Minute

	cacheRoot := os.Getenv(objstore.EnvCacheDir)
	if cacheRoot == "" {
		cacheRoot, err = objstore.DefaultCacheRoot()
		if err != nil {
			return nil, err
		}
	}
	cfg.CacheRoot = cacheRoot

	interval, err := time.ParseDuration(getenvDefault("CLOUDFRAC_REFRESH_INTERVAL", "10m"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLOUDFRAC_REFRESH_INTERVAL: %w", err)
	}
	cfg.Interval = interval

	lookback, err := time.ParseDuration(getenvDefault("CLOUDFRAC_LOOKBACK", "2h"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLOUDFRAC_LOOKBACK: %w", err)
	}
	cfg.Lookback = lookback

	cfg.MaxRows = getenvInt("CLOUDFRAC_STORE_MAX_ROWS", 288) // two days at 10-minute cadence

	maxAge, err := time.ParseDuration(getenvDefault("CLOUDFRAC_STORE_MAX_AGE", "48h"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLOUDFRAC_STORE_MAX_AGE: %w", err)
	}
	cfg.MaxAge = maxAge

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.Verbose = getenvBool("CLOUDFRAC_VERBOSE", true)

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadSite builds the site from SITE_LAT/SITE_LON/SITE_ALT_M/SITE_NAME,
// defaulting to Rubin Observatory. When coordinates are absent but
// SITE_ADDRESS is set, the address is geocoded (requires
// GOOGLE_GEOCODER_API_KEY).
func loadSite() (cloudfrac.Site, error) {
	site := cloudfrac.RubinSite()

	if name := os.Getenv("SITE_NAME"); name != "" {
		site.Name = name
	}
	if alt := os.Getenv("SITE_ALT_M"); alt != "" {
		v, err := strconv.ParseFloat(alt, 64)
		if err != nil {
			return site, fmt.Errorf("invalid SITE_ALT_M: %w", err)
		}
		site.AltitudeM = v
	}

	latStr, lonStr := os.Getenv("SITE_LAT"), os.Getenv("SITE_LON")
	switch {
	case latStr != "" && lonStr != "":
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			return site, fmt.Errorf("invalid SITE_LAT: %w", err)
		}
		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil {
			return site, fmt.Errorf("invalid SITE_LON: %w", err)
		}
		site.Lat, site.Lon = lat, lon
	case latStr != "" || lonStr != "":
		return site, fmt.Errorf("SITE_LAT and SITE_LON must be set together")
	case os.Getenv("SITE_ADDRESS") != "":
		lat, lon, err := geocodeAddress(os.Getenv("SITE_ADDRESS"))
		if err != nil {
			return site, err
		}
		site.Lat, site.Lon = lat, lon
	}

	if err := validate.Struct(site); err != nil {
		return site, fmt.Errorf("invalid site: %w", err)
	}
	return site, nil
}

func geocodeAddress(address string) (lat, lon float64, err error) {
	key := os.Getenv("GOOGLE_GEOCODER_API_KEY")
	if key == "" {
		return 0, 0, fmt.Errorf("SITE_ADDRESS set but GOOGLE_GEOCODER_API_KEY missing")
	}
	geocoder.ApiKey = key

	location, err := geocoder.Geocoding(geocoder.Address{Street: address})
	if err != nil {
		return 0, 0, fmt.Errorf("geocode %q: %w", address, err)
	}
	return location.Latitude, location.Longitude, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}
