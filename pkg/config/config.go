// Package config loads scenario files and service settings.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"

	"marketplace/pkg/product"
)

// Operation kinds of a consumer script.
const (
	OpAdd    = "add"
	OpRemove = "remove"
)

// Scenario describes one run of the marketplace: its capacity, the product
// catalog, and the producers and consumers trading on it.
type Scenario struct {
	QueueSizePerProducer int                     `yaml:"queue_size_per_producer" env:"QUEUE_SIZE_PER_PRODUCER" validate:"gte=1"`
	Products             map[string]product.Spec `yaml:"products" validate:"required,dive"`
	Producers            []ProducerConfig        `yaml:"producers" validate:"dive"`
	Consumers            []ConsumerConfig        `yaml:"consumers" validate:"dive"`
}

// ProducerConfig is one producer's catalog and pacing.
type ProducerConfig struct {
	Name              string         `yaml:"name"`
	RepublishWaitTime time.Duration  `yaml:"republish_wait_time" validate:"gte=0"`
	Products          []CatalogEntry `yaml:"products" validate:"required,min=1,dive"`
}

// CatalogEntry is a product a producer makes, how many units per round and
// how long to wait after each published unit.
type CatalogEntry struct {
	Product  string        `yaml:"product" validate:"required"`
	Quantity int           `yaml:"quantity" validate:"gte=1"`
	Pace     time.Duration `yaml:"pace" validate:"gte=0"`
}

// ConsumerConfig is one consumer's script.
type ConsumerConfig struct {
	Name          string        `yaml:"name"`
	RetryWaitTime time.Duration `yaml:"retry_wait_time" validate:"gte=0"`
	Operations    []Operation   `yaml:"operations" validate:"dive"`
}

// Operation is one scripted step: add or remove Quantity units of Product.
type Operation struct {
	Type     string `yaml:"type" validate:"required,oneof=add remove"`
	Product  string `yaml:"product" validate:"required"`
	Quantity int    `yaml:"quantity" validate:"gte=1"`
}

// Service is the environment of cmd/api.
type Service struct {
	HTTPAddr             string        `env:"HTTP_ADDR" env-default:":8443"`
	TLSCert              string        `env:"TLS_CERT"`
	TLSKey               string        `env:"TLS_KEY"`
	DatabaseURL          string        `env:"DATABASE_URL"`
	RedisAddr            string        `env:"REDIS_ADDR" env-default:"localhost:6379"`
	SessionTTL           time.Duration `env:"SESSION_TTL" env-default:"1h"`
	OTELHost             string        `env:"OTEL_HOST"`
	TraceProbability     float64       `env:"TRACE_PROBABILITY" env-default:"1"`
	QueueSizePerProducer int           `env:"QUEUE_SIZE_PER_PRODUCER" env-default:"10" validate:"gte=1"`
	LogLevel             string        `env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
}

var validate = validator.New()

// LoadScenario reads a YAML scenario, applies environment overrides and
// validates it, including that every referenced product is defined.
func LoadScenario(path string) (Scenario, error) {
	var s Scenario
	if err := cleanenv.ReadConfig(path, &s); err != nil {
		return Scenario{}, fmt.Errorf("read scenario %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return Scenario{}, err
	}
	return s, nil
}

// Validate checks field constraints and product references.
func (s Scenario) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid scenario: %w", err)
	}
	for _, p := range s.Producers {
		for _, e := range p.Products {
			if _, ok := s.Products[e.Product]; !ok {
				return fmt.Errorf("invalid scenario: producer %q references unknown product %q", p.Name, e.Product)
			}
		}
	}
	for _, c := range s.Consumers {
		for _, op := range c.Operations {
			if _, ok := s.Products[op.Product]; !ok {
				return fmt.Errorf("invalid scenario: consumer %q references unknown product %q", c.Name, op.Product)
			}
		}
	}
	return nil
}

// Catalog builds every product of the scenario, keyed by its id.
func (s Scenario) Catalog() (map[string]product.Product, error) {
	out := make(map[string]product.Product, len(s.Products))
	for id, spec := range s.Products {
		p, err := spec.Build()
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", id, err)
		}
		out[id] = p
	}
	return out, nil
}

// LoadService reads the service configuration from the environment.
func LoadService() (Service, error) {
	var s Service
	if err := cleanenv.ReadEnv(&s); err != nil {
		return Service{}, fmt.Errorf("read env: %w", err)
	}
	if err := validate.Struct(s); err != nil {
		return Service{}, fmt.Errorf("invalid service config: %w", err)
	}
	return s, nil
}
