// Package product defines the goods traded on the marketplace.
package product

import (
	"errors"
	"fmt"
	"strings"
)

// Product is a unit of goods. Implementations are plain comparable structs,
// so two units with the same fields are interchangeable.
type Product interface {
	Kind() string
	fmt.Stringer
}

// Coffee is a coffee product.
type Coffee struct {
	Name       string
	Price      int
	Acidity    string
	RoastLevel string
}

// Kind implements Product.
func (Coffee) Kind() string { return KindCoffee }

func (c Coffee) String() string {
	return fmt.Sprintf("Coffee(name='%s', price=%d, acidity='%s', roast_level='%s')",
		c.Name, c.Price, c.Acidity, c.RoastLevel)
}

// Tea is a tea product.
type Tea struct {
	Name  string
	Price int
	Type  string
}

// Kind implements Product.
func (Tea) Kind() string { return KindTea }

func (t Tea) String() string {
	return fmt.Sprintf("Tea(name='%s', price=%d, type='%s')", t.Name, t.Price, t.Type)
}

// Product kinds accepted in a Spec.
const (
	KindCoffee = "coffee"
	KindTea    = "tea"
)

// ErrUnknownKind is returned by Spec.Build for an unsupported product type.
var ErrUnknownKind = errors.New("unknown product type")

// Spec is the declarative form of a product, as found in scenario files and
// HTTP request bodies.
type Spec struct {
	Type       string `json:"type" yaml:"type" validate:"required,oneof=coffee tea Coffee Tea"`
	Name       string `json:"name" yaml:"name" validate:"required"`
	Price      int    `json:"price" yaml:"price" validate:"gte=0"`
	Acidity    string `json:"acidity,omitempty" yaml:"acidity"`
	RoastLevel string `json:"roast_level,omitempty" yaml:"roast_level"`
	TeaType    string `json:"tea_type,omitempty" yaml:"tea_type"`
}

// Build turns the spec into a Product value.
func (s Spec) Build() (Product, error) {
	switch strings.ToLower(s.Type) {
	case KindCoffee:
		return Coffee{Name: s.Name, Price: s.Price, Acidity: s.Acidity, RoastLevel: s.RoastLevel}, nil
	case KindTea:
		return Tea{Name: s.Name, Price: s.Price, Type: s.TeaType}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, s.Type)
}

// SpecOf returns the spec that builds p.
func SpecOf(p Product) Spec {
	switch v := p.(type) {
	case Coffee:
		return Spec{Type: KindCoffee, Name: v.Name, Price: v.Price, Acidity: v.Acidity, RoastLevel: v.RoastLevel}
	case Tea:
		return Spec{Type: KindTea, Name: v.Name, Price: v.Price, TeaType: v.Type}
	}
	return Spec{Type: p.Kind(), Name: p.String()}
}
