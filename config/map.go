package config

import (
	"time"

	"github.com/spf13/cast"
)

func (c *Config) Get(key string) (any, bool) {
	c.l.RLock()
	defer c.l.RUnlock()
	v, ok := c.flattened[key]
	return v, ok
}

func (c *Config) GetString(key string) string {
	v, _ := c.Get(key)
	return cast.ToString(v)
}

func (c *Config) GetInt(key string) int {
	v, _ := c.Get(key)
	return cast.ToInt(v)
}

func (c *Config) GetBool(key string) bool {
	v, _ := c.Get(key)
	return cast.ToBool(v)
}

func (c *Config) GetDuration(key string) time.Duration {
	v, _ := c.Get(key)
	return cast.ToDuration(v)
}

func (c *Config) GetStringSlice(key string) []string {
	v, _ := c.Get(key)
	return cast.ToStringSlice(v)
}
