// Package knowledge holds the static retail knowledge base that grounds both the prompt sent to the model
// and the canned quick-action replies. A Base is immutable after it is loaded: every accessor returns a
// copy.
package knowledge

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Base is the retail knowledge base: product categories with their items, the offered services, and the
// running promotions.
type Base struct {
	products   map[string][]string
	services   []string
	promotions []string
}

type rawBase struct {
	Products   map[string][]string `yaml:"products"`
	Services   []string            `yaml:"services"`
	Promotions []string            `yaml:"promotions"`
}

// Default returns the built-in knowledge base of the retail store.
func Default() Base {
	return Base{
		products: map[string][]string{
			"elektronik":   {"Laptop", "Smartphone", "Tablet", "Headphone", "Speaker"},
			"fashion":      {"Pakaian", "Sepatu", "Tas", "Aksesoris"},
			"makanan":      {"Snack", "Minuman", "Makanan Ringan"},
			"rumah_tangga": {"Dapur", "Kamar Mandi", "Kamar Tidur", "Ruang Tamu"},
		},
		services: []string{
			"Pembelian Online",
			"Pengiriman",
			"Return & Refund",
			"Garansi",
			"Customer Support",
		},
		promotions: []string{
			"Diskon 20% untuk member",
			"Buy 2 Get 1 Free",
			"Free ongkir untuk pembelian di atas 500k",
			"Cashback 10% untuk pembayaran digital",
		},
	}
}

// Load reads a knowledge base from the YAML file at path. The file must define at least one product
// category, one service and one promotion.
func Load(path string) (Base, error) {
	f, err := os.Open(path)
	if err != nil {
		return Base{}, fmt.Errorf("failed to open knowledge base: %w", err)
	}
	defer f.Close()

	var raw rawBase
	if err := yaml.NewDecoder(f).Decode(&raw); err != nil {
		return Base{}, fmt.Errorf("failed to decode knowledge base: %w", err)
	}

	return New(raw.Products, raw.Services, raw.Promotions)
}

// New builds a knowledge base from the given sections. The arguments are copied, so later changes by the
// caller are not observed by the returned Base.
func New(products map[string][]string, services, promotions []string) (Base, error) {
	if len(products) == 0 {
		return Base{}, errors.New("knowledge base has no products")
	}
	if len(services) == 0 {
		return Base{}, errors.New("knowledge base has no services")
	}
	if len(promotions) == 0 {
		return Base{}, errors.New("knowledge base has no promotions")
	}

	ps := make(map[string][]string, len(products))
	for category, items := range products {
		ps[category] = slices.Clone(items)
	}

	return Base{
		products:   ps,
		services:   slices.Clone(services),
		promotions: slices.Clone(promotions),
	}, nil
}

// Categories returns the product category names in sorted order.
func (b Base) Categories() []string {
	return slices.Sorted(maps.Keys(b.products))
}

// Items returns the items of the given product category, or nil if the category is unknown.
func (b Base) Items(category string) []string {
	return slices.Clone(b.products[category])
}

// Products returns a copy of the category to items mapping.
func (b Base) Products() map[string][]string {
	ps := make(map[string][]string, len(b.products))
	for category, items := range b.products {
		ps[category] = slices.Clone(items)
	}
	return ps
}

// Services returns the offered services.
func (b Base) Services() []string {
	return slices.Clone(b.services)
}

// Promotions returns the running promotions.
func (b Base) Promotions() []string {
	return slices.Clone(b.promotions)
}
