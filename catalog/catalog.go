// Package catalog holds the product and user collections backing the shop.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/freekieb7/storefront/filesystem"
)

var ErrProductNotFound = errors.New("catalog: product not found")

const (
	DefaultPage  = 1
	DefaultLimit = 10

	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"

	DefaultImage = "default.svg"
)

var byteOrderMark = []byte("\xEF\xBB\xBF")

type Comment struct {
	Author  string `json:"author"`
	Name    string `json:"name"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
	Date    string `json:"date"`
}

type Product struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
	Stock       int       `json:"stock"`
	Comments    []Comment `json:"comments,omitempty"`
}

func (product Product) clone() Product {
	product.Comments = slices.Clone(product.Comments)
	return product
}

// Catalog is the product list, kept in memory and written back to its JSON
// file on every change.
type Catalog struct {
	mu       sync.RWMutex
	path     string
	fs       filesystem.Filesystem
	products []Product
}

func Load(path string, fs filesystem.Filesystem) (*Catalog, error) {
	var products []Product
	if err := readJSON(fs, path, &products); err != nil {
		return nil, err
	}

	return &Catalog{path: path, fs: fs, products: products}, nil
}

// New builds a catalog from products; Save writes to path.
func New(path string, fs filesystem.Filesystem, products []Product) *Catalog {
	return &Catalog{path: path, fs: fs, products: slices.Clone(products)}
}

func (catalog *Catalog) All() []Product {
	catalog.mu.RLock()
	defer catalog.mu.RUnlock()

	products := make([]Product, len(catalog.products))
	for i, product := range catalog.products {
		products[i] = product.clone()
	}
	return products
}

// Featured returns the first n products.
func (catalog *Catalog) Featured(n int) []Product {
	products := catalog.All()
	if n < len(products) {
		products = products[:n]
	}
	return products
}

func (catalog *Catalog) Find(id int) (Product, bool) {
	catalog.mu.RLock()
	defer catalog.mu.RUnlock()

	for _, product := range catalog.products {
		if product.ID == id {
			return product.clone(), true
		}
	}

	return Product{}, false
}

// Categories lists distinct categories in catalog order.
func (catalog *Catalog) Categories() []string {
	catalog.mu.RLock()
	defer catalog.mu.RUnlock()

	var categories []string
	for _, product := range catalog.products {
		if product.Category != "" && !slices.Contains(categories, product.Category) {
			categories = append(categories, product.Category)
		}
	}
	return categories
}

type Query struct {
	Category string
	MinPrice *float64
	MaxPrice *float64
	Sort     string
	Page     int
	Limit    int
}

// ParseQuery reads category, min_price, max_price, sort, page and limit.
// Unparseable numbers fall back to their defaults.
func ParseQuery(values map[string]string) Query {
	query := Query{
		Category: values["category"],
		Sort:     values["sort"],
		Page:     positiveInt(values["page"], DefaultPage),
		Limit:    positiveInt(values["limit"], DefaultLimit),
	}

	if price, err := strconv.ParseFloat(values["min_price"], 64); err == nil {
		query.MinPrice = &price
	}
	if price, err := strconv.ParseFloat(values["max_price"], 64); err == nil {
		query.MaxPrice = &price
	}

	return query
}

type Page struct {
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
	Products []Product `json:"products"`
}

// Filter applies the query's filters and sort, then cuts out one page.
// Total counts all matches before pagination.
func (catalog *Catalog) Filter(query Query) Page {
	if query.Page < 1 {
		query.Page = DefaultPage
	}
	if query.Limit < 1 {
		query.Limit = DefaultLimit
	}

	matches := make([]Product, 0)
	for _, product := range catalog.All() {
		if query.Category != "" && product.Category != query.Category {
			continue
		}
		if query.MinPrice != nil && product.Price < *query.MinPrice {
			continue
		}
		if query.MaxPrice != nil && product.Price > *query.MaxPrice {
			continue
		}
		matches = append(matches, product)
	}

	switch query.Sort {
	case SortPriceAsc:
		slices.SortStableFunc(matches, func(a, b Product) int { return compareFloat(a.Price, b.Price) })
	case SortPriceDesc:
		slices.SortStableFunc(matches, func(a, b Product) int { return compareFloat(b.Price, a.Price) })
	}

	page := Page{Total: len(matches), Page: query.Page, Limit: query.Limit, Products: []Product{}}

	// Compared before multiplying so huge page numbers cannot overflow.
	if query.Page <= page.Pages() {
		start := (query.Page - 1) * query.Limit
		end := len(matches)
		if query.Limit < end-start {
			end = start + query.Limit
		}
		page.Products = matches[start:end]
	}

	return page
}

// Pages is the number of pages needed to show every match.
func (page Page) Pages() int {
	if page.Limit < 1 {
		return 0
	}
	pages := page.Total / page.Limit
	if page.Total%page.Limit != 0 {
		pages++
	}
	return pages
}

// AddComment appends comment to the product and persists the catalog.
func (catalog *Catalog) AddComment(id int, comment Comment) error {
	return catalog.update(id, func(product *Product) {
		product.Comments = append(product.Comments, comment)
	})
}

// SetImage points the product at a new image and persists the catalog.
func (catalog *Catalog) SetImage(id int, image string) error {
	return catalog.update(id, func(product *Product) {
		product.ImageURL = image
	})
}

func (catalog *Catalog) update(id int, change func(product *Product)) error {
	catalog.mu.Lock()
	defer catalog.mu.Unlock()

	index := slices.IndexFunc(catalog.products, func(product Product) bool { return product.ID == id })
	if index < 0 {
		return fmt.Errorf("%w: %d", ErrProductNotFound, id)
	}

	// The change only becomes visible once the file was written.
	products := slices.Clone(catalog.products)
	products[index] = products[index].clone()
	change(&products[index])

	if err := catalog.write(products); err != nil {
		return err
	}

	catalog.products = products
	return nil
}

// Save writes the catalog as indented JSON.
func (catalog *Catalog) Save() error {
	catalog.mu.RLock()
	defer catalog.mu.RUnlock()
	return catalog.write(catalog.products)
}

func (catalog *Catalog) write(products []Product) error {
	data, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		return fmt.Errorf("catalog: encoding products: %w", err)
	}

	if err := catalog.fs.WriteFile(catalog.path, data); err != nil {
		return fmt.Errorf("catalog: writing %s: %w", catalog.path, err)
	}

	return nil
}

func readJSON(fs filesystem.Filesystem, path string, target any) error {
	data, err := fs.ReadFile(path)
	if err != nil {
		return fmt.Errorf("catalog: reading %s: %w", path, err)
	}

	data = bytes.TrimPrefix(bytes.TrimSpace(data), byteOrderMark)
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("catalog: decoding %s: %w", path, err)
	}

	return nil
}

func positiveInt(value string, fallback int) int {
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
