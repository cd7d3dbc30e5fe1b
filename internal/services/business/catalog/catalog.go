// Package catalog loads YAML seed catalogs for a shop's inventory.
package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/vmitra/vmitra/internal/services/business/inventory"
	"github.com/vmitra/vmitra/internal/services/business/money"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

// Catalog is a seed file: a shop name and its starting stock.
type Catalog struct {
	Shop  string  `yaml:"shop"`
	Items []Entry `yaml:"items"`
}

// Entry is one seeded item with prices in rupees.
type Entry struct {
	ID        string  `yaml:"id"`
	Name      string  `yaml:"name"`
	Category  string  `yaml:"category"`
	Stock     int     `yaml:"stock"`
	Unit      string  `yaml:"unit"`
	Price     float64 `yaml:"price"`
	CostPrice float64 `yaml:"costPrice"`
}

// Default returns the built-in starter catalog.
func Default() (Catalog, error) {
	return Parse(bytes.NewReader(defaultCatalog))
}

// Load reads a catalog file.
func Load(path string) (Catalog, error) {
	file, err := os.Open(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("open catalog: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse decodes and validates a YAML catalog.
func Parse(r io.Reader) (Catalog, error) {
	var cat Catalog
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cat); err != nil {
		if err == io.EOF {
			return Catalog{}, fmt.Errorf("catalog is empty")
		}
		return Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	seen := make(map[string]struct{}, len(cat.Items))
	for i, entry := range cat.Items {
		if _, err := inventory.NormalizeItemInput(entry.Input()); err != nil {
			return Catalog{}, fmt.Errorf("catalog item %d: %w", i+1, err)
		}
		if entry.ID == "" {
			continue
		}
		if _, ok := seen[entry.ID]; ok {
			return Catalog{}, fmt.Errorf("catalog item %d: duplicate id %q", i+1, entry.ID)
		}
		seen[entry.ID] = struct{}{}
	}
	return cat, nil
}

// Input converts the entry into an inventory input.
func (e Entry) Input() inventory.ItemInput {
	return inventory.ItemInput{
		ID:        e.ID,
		Name:      e.Name,
		Category:  e.Category,
		Stock:     e.Stock,
		Unit:      e.Unit,
		Price:     money.FromRupees(e.Price),
		CostPrice: money.FromRupees(e.CostPrice),
	}
}
