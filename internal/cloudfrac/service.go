// Package cloudfrac assembles the cloud-fraction time series for a site from
// GOES ABI L2 cloud-mask and cloud-top-height products.
package cloudfrac

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"
	"sort"
	"time"

	"github.com/cerro-obs/cloudfrac/internal/abi"
	"github.com/cerro-obs/cloudfrac/internal/fraction"
	"github.com/cerro-obs/cloudfrac/internal/geo"
	"github.com/cerro-obs/cloudfrac/internal/grid"
	"github.com/cerro-obs/cloudfrac/internal/scan"
)

// Site is the geographic point the series is sampled at.
type Site struct {
	Name      string  `validate:"required"`
	Lat       float64 `validate:"gte=-90,lte=90"`
	Lon       float64 `validate:"gte=-180,lte=180"`
	AltitudeM float64
}

// RubinSite is the default site: Rubin Observatory, Cerro Pachón.
func RubinSite() Site {
	return Site{Name: "Rubin", Lat: -30.2407, Lon: -70.7366, AltitudeM: 2660}
}

// Row is one time step of the assembled series. Fractions are in [0,1];
// NaN means the quantity is undefined at that time (missing product,
// unreadable file, off-swath site).
type Row struct {
	Timestamp              time.Time `json:"timestamp"`
	CloudFraction          float64   `json:"cloudfraction"`
	CloudFractionAboveSite float64   `json:"cloudfraction_above_site"`
}

// MarshalJSON encodes undefined fractions as null; encoding/json rejects NaN.
func (r Row) MarshalJSON() ([]byte, error) {
	type jsonRow struct {
		Timestamp              time.Time `json:"timestamp"`
		CloudFraction          *float64  `json:"cloudfraction"`
		CloudFractionAboveSite *float64  `json:"cloudfraction_above_site"`
	}
	out := jsonRow{Timestamp: r.Timestamp}
	if !math.IsNaN(r.CloudFraction) {
		out.CloudFraction = &r.CloudFraction
	}
	if !math.IsNaN(r.CloudFractionAboveSite) {
		out.CloudFractionAboveSite = &r.CloudFractionAboveSite
	}
	return json.Marshal(out)
}

// Resolver maps a directory-style remote key to a local file.
type Resolver interface {
	Resolve(ctx context.Context, bucket, keyPrefix string) (string, error)
}

// Opener reads cached grid files.
type Opener interface {
	OpenMask(path string) (*grid.Grid, error)
	OpenHeight(path string) (*grid.Grid, error)
}

// NetCDFOpener is the production Opener.
type NetCDFOpener struct{}

func (NetCDFOpener) OpenMask(path string) (*grid.Grid, error)   { return grid.OpenMask(path) }
func (NetCDFOpener) OpenHeight(path string) (*grid.Grid, error) { return grid.OpenHeight(path) }

// Options configures a Service. Zero-valued fields take defaults.
type Options struct {
	Satellite string // default goes19
	Sector    string // default F (full disk)
	Site      Site
	Step      time.Duration // default 10 minutes

	// MaskProduct and HeightProducts are the product cascade: the mask
	// product is mandatory per scan time; height products are tried in
	// order until one resolves.
	MaskProduct    string
	HeightProducts []string

	Verbose bool
}

func (o *Options) applyDefaults() {
	if o.Satellite == "" {
		o.Satellite = "goes19"
	}
	if o.Sector == "" {
		o.Sector = "F"
	}
	if o.Site == (Site{}) {
		o.Site = RubinSite()
	}
	if o.Step == 0 {
		o.Step = 10 * time.Minute
	}
	if o.MaskProduct == "" {
		o.MaskProduct = "ACMF"
	}
	if len(o.HeightProducts) == 0 {
		o.HeightProducts = []string{"ACHAF", "ACHA"}
	}
}

// Service runs the per-scan-time pipeline: key building, retrieval, grid
// reading, geolocation, and fraction computation. Processing is strictly
// sequential; one scan time completes before the next begins.
type Service struct {
	resolver Resolver
	opener   Opener
	bucket   string
	opts     Options
}

// NewService validates the satellite and builds a Service.
func NewService(resolver Resolver, opener Opener, opts Options) (*Service, error) {
	opts.applyDefaults()
	bucket, err := abi.Bucket(opts.Satellite)
	if err != nil {
		return nil, err
	}
	return &Service{
		resolver: resolver,
		opener:   opener,
		bucket:   bucket,
		opts:     opts,
	}, nil
}

// Site returns the configured site.
func (s *Service) Site() Site { return s.opts.Site }

// Plan returns the remote keys a run over [start, end] would touch, without
// fetching anything: the mask key and the primary height key per scan time,
// interleaved.
func (s *Service) Plan(start, end time.Time) ([]string, error) {
	times, err := scan.Times(start, end, s.opts.Step)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, 2*len(times))
	for _, t := range times {
		keys = append(keys,
			abi.Key(s.opts.MaskProduct, s.opts.Sector, t),
			abi.Key(s.opts.HeightProducts[0], s.opts.Sector, t),
		)
	}
	return keys, nil
}

// Run computes the series for [start, end]. Per-timestamp failures degrade
// the affected row to NaN and the run continues; the only fatal error is an
// empty scan-time sequence.
func (s *Service) Run(ctx context.Context, start, end time.Time) ([]Row, error) {
	times, err := scan.Times(start, end, s.opts.Step)
	if err != nil {
		return nil, err
	}

	if s.opts.Verbose {
		log.Printf("INFO: cloud fraction run: %s to %s | sat=%s sector=%s site=%s",
			times[0].Format(time.RFC3339), times[len(times)-1].Format(time.RFC3339),
			s.opts.Satellite, s.opts.Sector, s.opts.Site.Name)
	}

	rows := make([]Row, 0, len(times))
	for i, t := range times {
		if s.opts.Verbose {
			log.Printf("INFO: (%d/%d) time=%s", i+1, len(times), t.Format(time.RFC3339))
		}

		cf := s.maskFractionAt(ctx, t)

		var above float64
		switch {
		case math.IsNaN(cf):
			// Undefined cloud state implies undefined above-altitude state;
			// do not touch the height products.
			above = math.NaN()
		case cf == 0:
			// Clear sky implies nothing above the site, by definition.
			above = 0
		default:
			above = s.heightFractionAt(ctx, t)
		}

		rows = append(rows, Row{Timestamp: t, CloudFraction: cf, CloudFractionAboveSite: above})
	}

	// Sequential processing already yields timestamp order; keep the
	// guarantee explicit for anyone who parallelizes Run later.
	sort.Slice(rows, func(i, j int) bool { return rows[i].Timestamp.Before(rows[j].Timestamp) })
	return rows, nil
}

// maskFractionAt retrieves the cloud mask for t and computes the weighted
// cloud fraction at the site. Any failure yields NaN.
func (s *Service) maskFractionAt(ctx context.Context, t time.Time) float64 {
	key := abi.Key(s.opts.MaskProduct, s.opts.Sector, t)

	path, err := s.resolver.Resolve(ctx, s.bucket, key)
	if err != nil {
		log.Printf("WARN: mask missing at %s (%v)", t.Format(time.RFC3339), err)
		return math.NaN()
	}

	g, err := s.opener.OpenMask(path)
	if err != nil {
		log.Printf("WARN: mask read failed at %s: %v", t.Format(time.RFC3339), err)
		return math.NaN()
	}

	px := g.Proj.Locate(s.opts.Site.Lat, s.opts.Site.Lon, g.XAxis, g.YAxis)
	return fraction.CloudFraction(g.Values, geo.Neighbors(px))
}

// heightFractionAt retrieves a cloud-top-height product for t through the
// fallback cascade and computes the above-altitude fraction. The site is
// re-located against the height grid independently of the mask grid (the two
// are not assumed perfectly co-registered), and a finite height stands in for
// "cloud present" — the height product is only populated over detected cloud.
func (s *Service) heightFractionAt(ctx context.Context, t time.Time) float64 {
	var path string
	for _, product := range s.opts.HeightProducts {
		key := abi.Key(product, s.opts.Sector, t)
		p, err := s.resolver.Resolve(ctx, s.bucket, key)
		if err != nil {
			log.Printf("WARN: %s missing at %s (%v)", product, t.Format(time.RFC3339), err)
			continue
		}
		path = p
		break
	}
	if path == "" {
		return math.NaN()
	}

	g, err := s.opener.OpenHeight(path)
	if err != nil {
		log.Printf("WARN: height read failed at %s: %v", t.Format(time.RFC3339), err)
		return math.NaN()
	}

	px := g.Proj.Locate(s.opts.Site.Lat, s.opts.Site.Lon, g.XAxis, g.YAxis)
	neighbors := geo.Neighbors(px)

	maskLike := make([][]float64, len(g.Values))
	for r, row := range g.Values {
		maskLike[r] = make([]float64, len(row))
		for c, v := range row {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				maskLike[r][c] = 1
			}
		}
	}

	return fraction.FractionAbove(g.Values, maskLike, neighbors, s.opts.Site.AltitudeM)
}

// IsFatal reports whether err aborts a run outright rather than degrading a
// single row.
func IsFatal(err error) bool {
	return errors.Is(err, scan.ErrEmptyRange) || errors.Is(err, abi.ErrUnknownSatellite)
}
