package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/maltedev/wildberries-parser/internal/models"
)

var sellerCSVHeader = []string{"product_name", "product_url", "seller_name", "seller_info"}

// SellerCSV appends seller detail rows to a CSV file, flushing after each row
// so partial runs keep their results.
type SellerCSV struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	path   string
	rows   int
}

// SellerCSVPath names the output file after the run start time.
func SellerCSVPath(dir string, started time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("wildberries_sellers_%s.csv", started.Format("20060102_150405")))
}

func NewSellerCSV(path string) (*SellerCSV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create csv file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(sellerCSVHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	w.Flush()

	return &SellerCSV{file: f, writer: w, path: path}, nil
}

func (s *SellerCSV) Write(d *models.SellerDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writer.Write([]string{d.ProductName, d.ProductURL, d.SellerName, d.SellerInfo}); err != nil {
		return fmt.Errorf("failed to write csv row: %w", err)
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}

	s.rows++
	return nil
}

func (s *SellerCSV) Path() string {
	return s.path
}

func (s *SellerCSV) Rows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}

func (s *SellerCSV) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
