// Package abi maps GOES ABI L2 products and scan times to the NOAA bucket
// layout: <bucket>/ABI-L2-<PRODUCT>/<year>/<day-of-year>/<hour>/<file>.nc.
package abi

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownSatellite is returned for satellite ids with no known bucket.
var ErrUnknownSatellite = errors.New("unknown satellite")

// bucketBySatellite maps satellite ids to their public, anonymously readable
// S3 buckets.
var bucketBySatellite = map[string]string{
	"goes16": "noaa-goes16",
	"goes17": "noaa-goes17", // legacy (GOES-18 operational since 2023)
	"goes18": "noaa-goes18",
	"goes19": "noaa-goes19", // GOES-East since 2025
}

// productAliases corrects commonly confused product codes to the product
// actually wanted. ACHT* is cloud-top *temperature*; height requests using it
// are redirected to ACHA*. ACHA2KM has no full-disk variant in the archive.
var productAliases = map[string]string{
	"ACHT":    "ACHA",
	"ACHTF":   "ACHAF",
	"ACHTC":   "ACHAC",
	"ACHTM":   "ACHAM",
	"ACHA2KM": "ACHAF",
}

// Bucket resolves a satellite id to its bucket name.
func Bucket(satellite string) (string, error) {
	b, ok := bucketBySatellite[strings.ToLower(satellite)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSatellite, satellite)
	}
	return b, nil
}

// Satellites returns the known satellite ids.
func Satellites() []string {
	ids := make([]string, 0, len(bucketBySatellite))
	for id := range bucketBySatellite {
		ids = append(ids, id)
	}
	return ids
}

// CanonicalProduct resolves product aliases. Resolution is total: codes
// without an alias entry pass through unchanged.
func CanonicalProduct(product string) string {
	p := strings.ToUpper(product)
	if canonical, ok := productAliases[p]; ok {
		return canonical
	}
	return p
}

// Key builds the directory-style remote key for a product at a scan time.
// Product codes embed their sector suffix where one applies (ACMF is the
// full-disk mask, ACHAC the CONUS height); sector is accepted alongside the
// code but does not enter the key.
//
// Key is a candidate locator only: it does not verify that any object exists
// under the returned prefix.
func Key(product, sector string, t time.Time) string {
	code := CanonicalProduct(product)

	ts := t.UTC()
	return fmt.Sprintf("ABI-L2-%s/%04d/%03d/%02d/", code, ts.Year(), ts.YearDay(), ts.Hour())
}
