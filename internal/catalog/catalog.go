package catalog

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	// ErrCityNotFound is returned when a city is not listed in CITIES.
	ErrCityNotFound = errors.New("catalog: city not found")
	// ErrProductNotFound is returned when no city carries the product.
	ErrProductNotFound = errors.New("catalog: product not found")
	// ErrDuplicateProduct is returned when a city already has a product with that name.
	ErrDuplicateProduct = errors.New("catalog: duplicate product")
	// ErrInvalidPrice is returned for negative prices.
	ErrInvalidPrice = errors.New("catalog: invalid price")
)

// Product is a purchasable item priced in whole rubles.
type Product struct {
	Name  string `yaml:"name" json:"name"`
	Price int64  `yaml:"price" json:"price"`
}

// PaymentMethod is a payment option shown to buyers with its transfer details.
type PaymentMethod struct {
	Method  string `yaml:"method" json:"method"`
	Details string `yaml:"details" json:"details"`
}

// Document mirrors the catalog file as stored on disk.
type Document struct {
	Token          string               `yaml:"TOKEN" json:"TOKEN"`
	Admins         []int64              `yaml:"ADMINS" json:"ADMINS"`
	Cities         []string             `yaml:"CITIES" json:"CITIES"`
	Districts      map[string][]string  `yaml:"DISTRICTS" json:"DISTRICTS"`
	Products       map[string][]Product `yaml:"PRODUCTS" json:"PRODUCTS"`
	PaymentMethods []PaymentMethod      `yaml:"PAYMENT_METHODS" json:"PAYMENT_METHODS"`
}

// LoadError reports a catalog document that is missing or malformed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("catalog: %v", e.Err)
	}
	return fmt.Sprintf("catalog %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Catalog is the validated, mutable catalog shared by all chats.
type Catalog struct {
	mu  sync.RWMutex
	doc Document
}

// Load reads and validates the catalog document at path. JSON documents are
// accepted because YAML is a superset of JSON.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	c, err := New(doc)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
		}
		return nil, err
	}
	return c, nil
}

// Parse decodes a catalog document without validating it.
func Parse(data []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decode: %w", err)
	}
	return doc, nil
}

// New validates doc and returns a Catalog holding a private copy of it.
func New(doc Document) (*Catalog, error) {
	if err := Validate(doc); err != nil {
		return nil, &LoadError{Err: err}
	}
	return &Catalog{doc: cloneDocument(doc)}, nil
}

// Validate checks the structural rules a catalog must satisfy before serving.
func Validate(doc Document) error {
	if len(doc.Cities) == 0 {
		return errors.New("CITIES must list at least one city")
	}
	cities := make(map[string]struct{}, len(doc.Cities))
	for _, city := range doc.Cities {
		if strings.TrimSpace(city) == "" {
			return errors.New("CITIES contains an empty name")
		}
		if _, dup := cities[city]; dup {
			return fmt.Errorf("CITIES lists %q twice", city)
		}
		cities[city] = struct{}{}
	}
	for city, districts := range doc.Districts {
		if _, ok := cities[city]; !ok {
			return fmt.Errorf("DISTRICTS references unknown city %q", city)
		}
		for _, d := range districts {
			if strings.TrimSpace(d) == "" {
				return fmt.Errorf("DISTRICTS[%s] contains an empty name", city)
			}
		}
	}
	for city, products := range doc.Products {
		if _, ok := cities[city]; !ok {
			return fmt.Errorf("PRODUCTS references unknown city %q", city)
		}
		names := make(map[string]struct{}, len(products))
		for _, p := range products {
			if strings.TrimSpace(p.Name) == "" {
				return fmt.Errorf("PRODUCTS[%s] contains a product without a name", city)
			}
			if p.Price < 0 {
				return fmt.Errorf("PRODUCTS[%s] %q: %w", city, p.Name, ErrInvalidPrice)
			}
			if _, dup := names[p.Name]; dup {
				return fmt.Errorf("PRODUCTS[%s] %q: %w", city, p.Name, ErrDuplicateProduct)
			}
			names[p.Name] = struct{}{}
		}
	}
	if len(doc.PaymentMethods) == 0 {
		return errors.New("PAYMENT_METHODS must list at least one method")
	}
	methods := make(map[string]struct{}, len(doc.PaymentMethods))
	for _, m := range doc.PaymentMethods {
		if strings.TrimSpace(m.Method) == "" {
			return errors.New("PAYMENT_METHODS contains an empty method")
		}
		if _, dup := methods[m.Method]; dup {
			return fmt.Errorf("PAYMENT_METHODS lists %q twice", m.Method)
		}
		methods[m.Method] = struct{}{}
	}
	return nil
}

// Token returns the transport credential stored in the document.
func (c *Catalog) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.doc.Token
}

// Admins returns the administrator chat ids listed in the document.
func (c *Catalog) Admins() []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.doc.Admins)
}

// IsAdmin reports whether chatID is listed in ADMINS.
func (c *Catalog) IsAdmin(chatID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Contains(c.doc.Admins, chatID)
}

// Cities returns city names in document order.
func (c *Catalog) Cities() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.doc.Cities)
}

// HasCity reports whether city is listed. Matching is exact.
func (c *Catalog) HasCity(city string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Contains(c.doc.Cities, city)
}

// Districts returns the districts of city in document order.
func (c *Catalog) Districts(city string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.doc.Districts[city])
}

// HasDistrict reports whether district belongs to city.
func (c *Catalog) HasDistrict(city, district string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Contains(c.doc.Districts[city], district)
}

// Products returns the products of city in document order.
func (c *Catalog) Products(city string) []Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.doc.Products[city])
}

// FindProduct looks a product up by exact name within city.
func (c *Catalog) FindProduct(city, name string) (Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.doc.Products[city] {
		if p.Name == name {
			return p, true
		}
	}
	return Product{}, false
}

// PaymentMethods returns payment methods in document order.
func (c *Catalog) PaymentMethods() []PaymentMethod {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.doc.PaymentMethods)
}

// FindPaymentMethod looks a payment method up by exact name.
func (c *Catalog) FindPaymentMethod(method string) (PaymentMethod, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.doc.PaymentMethods {
		if m.Method == method {
			return m, true
		}
	}
	return PaymentMethod{}, false
}

// AddProduct appends p to the product list of city.
func (c *Catalog) AddProduct(city string, p Product) error {
	if p.Price < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPrice, p.Price)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !slices.Contains(c.doc.Cities, city) {
		return fmt.Errorf("%w: %s", ErrCityNotFound, city)
	}
	for _, existing := range c.doc.Products[city] {
		if existing.Name == p.Name {
			return fmt.Errorf("%w: %s in %s", ErrDuplicateProduct, p.Name, city)
		}
	}
	if c.doc.Products == nil {
		c.doc.Products = make(map[string][]Product)
	}
	c.doc.Products[city] = append(c.doc.Products[city], p)
	return nil
}

// DeleteProduct removes the first product called name, scanning cities in
// CITIES order, and returns the city it was removed from.
func (c *Catalog) DeleteProduct(name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, city := range c.doc.Cities {
		products := c.doc.Products[city]
		for i, p := range products {
			if p.Name == name {
				c.doc.Products[city] = slices.Delete(slices.Clone(products), i, i+1)
				return city, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrProductNotFound, name)
}

// Snapshot returns a deep copy of the current document.
func (c *Catalog) Snapshot() Document {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneDocument(c.doc)
}

func cloneDocument(doc Document) Document {
	out := Document{
		Token:          doc.Token,
		Admins:         slices.Clone(doc.Admins),
		Cities:         slices.Clone(doc.Cities),
		PaymentMethods: slices.Clone(doc.PaymentMethods),
	}
	if doc.Districts != nil {
		out.Districts = make(map[string][]string, len(doc.Districts))
		for k, v := range doc.Districts {
			out.Districts[k] = slices.Clone(v)
		}
	}
	if doc.Products != nil {
		out.Products = make(map[string][]Product, len(doc.Products))
		for k, v := range doc.Products {
			out.Products[k] = slices.Clone(v)
		}
	}
	return out
}
