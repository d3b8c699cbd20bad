package objstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// fakeRemote serves canned listings and bodies, counting calls so tests can
// assert the cache never re-fetches.
type fakeRemote struct {
	keys    []string
	body    string
	lists   int
	fetches int
	fetchEr error
}

func (f *fakeRemote) List(_ context.Context, _, _ string) ([]string, error) {
	f.lists++
	return f.keys, nil
}

func (f *fakeRemote) Fetch(_ context.Context, _, _ string, w io.Writer) error {
	f.fetches++
	if f.fetchEr != nil {
		return f.fetchEr
	}
	_, err := io.WriteString(w, f.body)
	return err
}

func TestResolvePicksLexicographicallyLast(t *testing.T) {
	remote := &fakeRemote{
		keys: []string{
			"ABI-L2-ACMF/2026/034/14/OR_ABI-L2-ACMF-M6_G19_s20260341410205_e20260341419513_c20260341421093.nc",
			"ABI-L2-ACMF/2026/034/14/OR_ABI-L2-ACMF-M6_G19_s20260341410205_e20260341419513_c20260341425000.nc",
			"ABI-L2-ACMF/2026/034/14/manifest.json",
		},
		body: "netcdf-bytes",
	}
	cache := NewCache(t.TempDir(), remote)

	path, err := cache.Resolve(context.Background(), "noaa-goes19", "ABI-L2-ACMF/2026/034/14/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(path) != "OR_ABI-L2-ACMF-M6_G19_s20260341410205_e20260341419513_c20260341425000.nc" {
		t.Errorf("resolved %q, want the later creation timestamp", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cached file: %v", err)
	}
	if string(data) != "netcdf-bytes" {
		t.Errorf("cached body = %q", data)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	remote := &fakeRemote{
		keys: []string{"ABI-L2-ACMF/2026/034/14/a.nc"},
		body: "payload",
	}
	cache := NewCache(t.TempDir(), remote)

	first, err := cache.Resolve(context.Background(), "noaa-goes19", "ABI-L2-ACMF/2026/034/14/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := cache.Resolve(context.Background(), "noaa-goes19", "ABI-L2-ACMF/2026/034/14/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first != second {
		t.Errorf("paths differ: %q vs %q", first, second)
	}
	if remote.fetches != 1 {
		t.Errorf("expected exactly 1 fetch, got %d", remote.fetches)
	}
}

func TestResolveEmptyListing(t *testing.T) {
	cache := NewCache(t.TempDir(), &fakeRemote{})

	_, err := cache.Resolve(context.Background(), "noaa-goes19", "ABI-L2-ACMF/2026/034/14/")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestResolveIgnoresNonNetCDFKeys(t *testing.T) {
	remote := &fakeRemote{keys: []string{"ABI-L2-ACMF/2026/034/14/index.html"}}
	cache := NewCache(t.TempDir(), remote)

	_, err := cache.Resolve(context.Background(), "noaa-goes19", "ABI-L2-ACMF/2026/034/14/")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestResolveFailedFetchLeavesNoEntry(t *testing.T) {
	remote := &fakeRemote{
		keys:    []string{"ABI-L2-ACMF/2026/034/14/a.nc"},
		fetchEr: errors.New("connection reset"),
	}
	root := t.TempDir()
	cache := NewCache(root, remote)

	if _, err := cache.Resolve(context.Background(), "noaa-goes19", "ABI-L2-ACMF/2026/034/14/"); err == nil {
		t.Fatal("expected fetch error")
	}

	// The destination must not exist and no temp debris should remain.
	entries := []string{}
	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			entries = append(entries, path)
		}
		return nil
	})
	if len(entries) != 0 {
		t.Errorf("cache not clean after failed fetch: %v", entries)
	}
}
