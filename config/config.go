package config

import (
	"context"
	"strings"
	"sync"

	"github.com/go-upf/upf/encoding"
	"github.com/go-upf/upf/pkg/routine"
)

type Config struct {
	l         sync.RWMutex
	values    map[string]any
	flattened map[string]any
	changes   []func(*Config)
	format    string
	delimiter string
	src       Source
}

type Option func(*Config)

func WithSource(src Source) Option {
	return func(c *Config) {
		c.src = src
	}
}

func WithFormat(format string) Option {
	return func(c *Config) {
		c.format = format
	}
}

func WithDelimiter(delimiter string) Option {
	return func(c *Config) {
		c.delimiter = delimiter
	}
}

func New(opts ...Option) *Config {
	c := &Config{
		values:    make(map[string]any),
		flattened: make(map[string]any),
		delimiter: ".",
		format:    "yaml",
		changes:   make([]func(*Config), 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.src != nil && len(c.src.Format()) != 0 {
		c.format = c.src.Format()
	}
	return c
}

func (c *Config) Load() error {
	raw, err := c.src.Load()
	if err != nil {
		return err
	}
	err = c.load(raw)
	if err != nil {
		return err
	}
	routine.GoSafe(context.TODO(), func() {
		for range c.src.Watch() {
			raw, err = c.src.Load()
			if err != nil {
				continue
			}
			_ = c.load(raw)
			c.l.RLock()
			changes := c.changes
			c.l.RUnlock()
			for _, change := range changes {
				change(c)
			}
		}
	})
	return nil
}

func (c *Config) load(raw []byte) error {
	values := make(map[string]any)
	err := encoding.GetCodec(c.format).Unmarshal(raw, &values)
	if err != nil {
		return err
	}
	flattened := make(map[string]any)
	flatten("", c.delimiter, values, flattened)
	c.l.Lock()
	c.values = values
	c.flattened = flattened
	c.l.Unlock()
	return nil
}

// Scan decodes the whole document into v.
func (c *Config) Scan(v interface{}) error {
	c.l.RLock()
	values := c.values
	c.l.RUnlock()
	codec := encoding.GetCodec(c.format)
	raw, err := codec.Marshal(values)
	if err != nil {
		return err
	}
	return codec.Unmarshal(raw, v)
}

func (c *Config) OnChange(fn func(*Config)) {
	c.l.Lock()
	c.changes = append(c.changes, fn)
	c.l.Unlock()
}

func (c *Config) Close() error {
	return c.src.Close()
}

func flatten(prefix, delimiter string, src map[string]any, dst map[string]any) {
	for k, v := range src {
		key := k
		if len(prefix) != 0 {
			key = strings.Join([]string{prefix, k}, delimiter)
		}
		switch vv := v.(type) {
		case map[string]any:
			flatten(key, delimiter, vv, dst)
		default:
			dst[key] = v
		}
	}
}
