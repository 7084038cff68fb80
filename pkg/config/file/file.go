package file

import (
	"fmt"
	"os"
	"time"

	"github.com/jichu20/sleuth-go/pkg/config"
	"gopkg.in/yaml.v3"
)

var _ config.Config = &Config{}

type raw []byte

func (r raw) Raw() []byte {
	return r
}

func (r raw) Unmarshal(out interface{}) error {
	if len(r) == 0 {
		return nil
	}
	return yaml.Unmarshal(r, out)
}

// Config is a YAML document. Nested keys are addressed with dots, so
// "book.downstream" reads downstream under the book mapping.
type Config struct {
	v map[string]interface{}
	config.Data
}

// Load reads and parses the YAML file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(b)
}

// Parse parses an in-memory YAML document.
func Parse(b []byte) (*Config, error) {
	c := &Config{v: map[string]interface{}{}, Data: raw(b)}
	doc := map[string]interface{}{}
	if err := c.Data.Unmarshal(&doc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	flatten("", doc, c.v)
	return c, nil
}

func flatten(prefix string, in map[string]interface{}, out map[string]interface{}) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		out[key] = v
		if m, ok := v.(map[string]interface{}); ok {
			flatten(key, m, out)
		}
	}
}

func (c *Config) Get(key string) (v interface{}, ok bool) {
	return c.get(key)
}

func (c *Config) GetString(key string) (v string, ok bool) {
	res, ok := c.get(key)
	if ok {
		v, ok = res.(string)
	}
	return
}

func (c *Config) GetBool(key string) (v bool, ok bool) {
	res, ok := c.get(key)
	if ok {
		v, ok = res.(bool)
	}
	return
}

func (c *Config) GetInt(key string) (v int64, ok bool) {
	res, ok := c.get(key)
	if !ok {
		return
	}
	switch n := res.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	}
	return 0, false
}

func (c *Config) GetFloat(key string) (v float64, ok bool) {
	res, ok := c.get(key)
	if !ok {
		return
	}
	switch n := res.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// GetDuration accepts time.ParseDuration strings such as "1m30s".
func (c *Config) GetDuration(key string) (v time.Duration, ok bool) {
	s, ok := c.GetString(key)
	if !ok {
		return
	}
	v, err := time.ParseDuration(s)
	return v, err == nil
}

// GetTime accepts YAML timestamps and RFC 3339 strings.
func (c *Config) GetTime(key string) (v time.Time, ok bool) {
	res, ok := c.get(key)
	if !ok {
		return
	}
	switch t := res.(type) {
	case time.Time:
		return t, true
	case string:
		v, err := time.Parse(time.RFC3339, t)
		return v, err == nil
	}
	return time.Time{}, false
}

func (c *Config) get(key string) (res interface{}, ok bool) {
	if c == nil {
		return
	}
	res, ok = c.v[key]
	return
}

func (c *Config) Unmarshal(v interface{}) error {
	if c == nil || c.Data == nil {
		return nil
	}
	return c.Data.Unmarshal(v)
}

func (c *Config) Raw() []byte {
	if c == nil || c.Data == nil {
		return nil
	}
	return c.Data.Raw()
}
