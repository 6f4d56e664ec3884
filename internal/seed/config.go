package seed

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

// Config controls the shape of one ETL run.
type Config struct {
	Customers int
	Products  int
	Sales     int
	Days      int
	Seed      int64
	Truncate  bool
	Extract   bool
	Timeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		Customers: 50,
		Products:  20,
		Sales:     50,
		Days:      365,
		Seed:      time.Now().UTC().UnixNano(),
		Truncate:  false,
		Extract:   false,
		Timeout:   2 * time.Minute,
	}
}

func LoadConfig(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	steps := []error{
		applyInt(lookup, "SALESQL_SEED_CUSTOMERS", &cfg.Customers),
		applyInt(lookup, "SALESQL_SEED_PRODUCTS", &cfg.Products),
		applyInt(lookup, "SALESQL_SEED_SALES", &cfg.Sales),
		applyInt(lookup, "SALESQL_SEED_DAYS", &cfg.Days),
		applyInt64(lookup, "SALESQL_SEED_RANDOM_SEED", &cfg.Seed),
		applyBool(lookup, "SALESQL_SEED_TRUNCATE", &cfg.Truncate),
		applyBool(lookup, "SALESQL_SEED_EXTRACT", &cfg.Extract),
		applyDuration(lookup, "SALESQL_SEED_TIMEOUT", &cfg.Timeout),
	}
	for _, err := range steps {
		if err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.Customers <= 0:
		return fmt.Errorf("SALESQL_SEED_CUSTOMERS must be > 0")
	case c.Products <= 0:
		return fmt.Errorf("SALESQL_SEED_PRODUCTS must be > 0")
	case c.Sales < 0:
		return fmt.Errorf("SALESQL_SEED_SALES must be >= 0")
	case c.Days < 0:
		return fmt.Errorf("SALESQL_SEED_DAYS must be >= 0")
	case c.Timeout <= 0:
		return fmt.Errorf("SALESQL_SEED_TIMEOUT must be > 0")
	}
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}
