package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shadenhost/shaden/internal/model"
)

// Catalog is the plan/store definition loaded from a JSON file.
// Server plans and store items are read at startup; purchases copy the
// resource vectors out of the catalog rather than referencing them live.
type Catalog struct {
	Categories []string    `json:"categories"`
	Plans      []Plan      `json:"plans"`
	Items      []StoreItem `json:"items"`
}

// Plan defines a purchasable server plan.
type Plan struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     int64           `json:"price"` // coins
	Resources model.Resources `json:"resources"`
	Enabled   bool            `json:"enabled"`
}

// StoreItem defines a purchasable store entry (typically a resource pack).
type StoreItem struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Price        int64            `json:"price"` // coins
	Category     string           `json:"category"`
	Resources    *model.Resources `json:"resources,omitempty"`
	DurationDays *int             `json:"duration_days,omitempty"`
	Enabled      bool             `json:"enabled"`
}

// FindPlan returns the enabled plan with the given id.
func (c *Catalog) FindPlan(id string) (*Plan, bool) {
	for i := range c.Plans {
		if c.Plans[i].ID == id && c.Plans[i].Enabled {
			return &c.Plans[i], true
		}
	}
	return nil, false
}

// FindItem returns the enabled store item with the given id.
func (c *Catalog) FindItem(id string) (*StoreItem, bool) {
	for i := range c.Items {
		if c.Items[i].ID == id && c.Items[i].Enabled {
			return &c.Items[i], true
		}
	}
	return nil, false
}

// DefaultCatalog returns the built-in catalog used when no file exists.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Categories: []string{"Resources", "Servers"},
		Plans: []Plan{
			{
				ID:    "free",
				Name:  "Free Plan",
				Price: 0,
				Resources: model.Resources{
					RAM: 512, CPU: 50, Disk: 1024,
					Databases: 1, Allocations: 1, Backups: 1,
				},
				Enabled: true,
			},
			{
				ID:    "basic",
				Name:  "Basic Plan",
				Price: 500,
				Resources: model.Resources{
					RAM: 1024, CPU: 100, Disk: 2048,
					Databases: 2, Allocations: 2, Backups: 2,
				},
				Enabled: true,
			},
		},
		Items: []StoreItem{
			{
				ID:          "ram_512",
				Name:        "512MB RAM",
				Description: "Add 512MB RAM to your account",
				Price:       100,
				Category:    "Resources",
				Resources:   &model.Resources{RAM: 512},
				Enabled:     true,
			},
			{
				ID:          "disk_1024",
				Name:        "1GB Disk",
				Description: "Add 1GB disk to your account",
				Price:       75,
				Category:    "Resources",
				Resources:   &model.Resources{Disk: 1024},
				Enabled:     true,
			},
		},
	}
}

// LoadCatalog reads the catalog file at path. If the file does not exist,
// the default catalog is written there and returned.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		catalog := DefaultCatalog()
		out, err := json.MarshalIndent(catalog, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal default catalog: %w", err)
		}
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return nil, fmt.Errorf("write default catalog: %w", err)
		}
		return catalog, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var catalog Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &catalog, nil
}
