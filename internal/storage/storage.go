package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/maltedev/wildberries-parser/internal/models"
	"github.com/maltedev/wildberries-parser/internal/parser"
)

// SnapshotStore writes pretty-printed JSON snapshots below a data directory:
// products/{id}.json, categories/{id}.json, sellers/{id}.json and
// search/{query}.json.
type SnapshotStore struct {
	mu  sync.Mutex
	dir string
}

func NewSnapshotStore(dir string) *SnapshotStore {
	return &SnapshotStore{dir: dir}
}

func (s *SnapshotStore) ProductPath(wbID int64) string {
	return filepath.Join(s.dir, "products", strconv.FormatInt(wbID, 10)+".json")
}

func (s *SnapshotStore) CategoryPath(categoryID string) string {
	return filepath.Join(s.dir, "categories", filepath.Base(categoryID)+".json")
}

func (s *SnapshotStore) SellerPath(sellerID int64) string {
	return filepath.Join(s.dir, "sellers", strconv.FormatInt(sellerID, 10)+".json")
}

func (s *SnapshotStore) SearchPath(query string) string {
	name := parser.SafeQueryName(query)
	if name == "" {
		name = "query"
	}
	return filepath.Join(s.dir, "search", name+".json")
}

func (s *SnapshotStore) SaveProduct(p *models.Product) (string, error) {
	return s.save(s.ProductPath(p.WBID), p)
}

func (s *SnapshotStore) SaveCategory(categoryID string, items []models.ListingItem) (string, error) {
	return s.save(s.CategoryPath(categoryID), items)
}

func (s *SnapshotStore) SaveSeller(sellerID int64, items []models.ListingItem) (string, error) {
	return s.save(s.SellerPath(sellerID), items)
}

func (s *SnapshotStore) SaveSearch(query string, items []models.ListingItem) (string, error) {
	return s.save(s.SearchPath(query), items)
}

func (s *SnapshotStore) save(path string, v any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := SaveJSON(path, v); err != nil {
		return "", err
	}
	return path, nil
}

// SaveJSON writes v as UTF-8 JSON indented by four spaces. Non-ASCII text and
// HTML characters are written as is. The file is replaced atomically.
func SaveJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmpFile, err)
	}

	if err := os.Rename(tmpFile, path); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename %s: %w", tmpFile, err)
	}
	return nil
}
