package knowledge_test

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/MegaGrindStone/retail-cs-web-ui/internal/knowledge"
)

func TestDefault(t *testing.T) {
	kb := knowledge.Default()

	wantCategories := []string{"elektronik", "fashion", "makanan", "rumah_tangga"}
	if got := kb.Categories(); !slices.Equal(got, wantCategories) {
		t.Errorf("Categories() = %v, want %v", got, wantCategories)
	}
	if got := kb.Items("makanan"); !slices.Equal(got, []string{"Snack", "Minuman", "Makanan Ringan"}) {
		t.Errorf("Items(makanan) = %v", got)
	}
	if got := kb.Items("otomotif"); got != nil {
		t.Errorf("Items(otomotif) = %v, want nil", got)
	}
	if got := len(kb.Services()); got != 5 {
		t.Errorf("len(Services()) = %d, want 5", got)
	}
	if got := len(kb.Promotions()); got != 4 {
		t.Errorf("len(Promotions()) = %d, want 4", got)
	}
}

func TestBaseIsImmutable(t *testing.T) {
	kb := knowledge.Default()

	services := kb.Services()
	services[0] = "changed"
	products := kb.Products()
	products["elektronik"][0] = "changed"
	delete(products, "fashion")

	if kb.Services()[0] != "Pembelian Online" {
		t.Error("Services() exposed internal slice")
	}
	if kb.Items("elektronik")[0] != "Laptop" {
		t.Error("Products() exposed internal items")
	}
	if len(kb.Categories()) != 4 {
		t.Error("Products() exposed internal map")
	}
}

func TestNew(t *testing.T) {
	products := map[string][]string{"buku": {"Novel"}}
	services := []string{"Pengiriman"}

	kb, err := knowledge.New(products, services, []string{"Diskon"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	products["buku"][0] = "Komik"
	services[0] = "Garansi"

	if kb.Items("buku")[0] != "Novel" {
		t.Error("New() did not copy products")
	}
	if kb.Services()[0] != "Pengiriman" {
		t.Error("New() did not copy services")
	}

	tests := []struct {
		name       string
		products   map[string][]string
		services   []string
		promotions []string
	}{
		{name: "No products", services: []string{"a"}, promotions: []string{"b"}},
		{name: "No services", products: products, promotions: []string{"b"}},
		{name: "No promotions", products: products, services: []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := knowledge.New(tt.products, tt.services, tt.promotions); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "kb.yaml")
	content := `
products:
  buku: [Novel, Komik]
  alat_tulis: [Pensil]
services:
  - Pengiriman
promotions:
  - Diskon 5%
`
	if err := os.WriteFile(valid, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	kb, err := knowledge.Load(valid)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := kb.Categories(); !slices.Equal(got, []string{"alat_tulis", "buku"}) {
		t.Errorf("Categories() = %v", got)
	}
	if got := kb.Promotions(); !slices.Equal(got, []string{"Diskon 5%"}) {
		t.Errorf("Promotions() = %v", got)
	}

	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("services: [Pengiriman]\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := knowledge.Load(empty); err == nil {
		t.Error("Load() of incomplete file error = nil, want error")
	}

	if _, err := knowledge.Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Load() of missing file error = nil, want error")
	}
}
