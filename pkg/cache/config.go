package cache

import "time"

type RedisConfig struct {
	Addr         string        `yaml:"addr" default:"localhost:6379"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db" default:"0"`
	DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"3s"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"3s"`
	PoolSize     int           `yaml:"pool_size" default:"10"`
}

type Config struct {
	// Backend selects "memory" or "redis".
	Backend  string      `yaml:"backend" default:"memory" validate:"oneof=memory redis"`
	Capacity int         `yaml:"capacity" default:"10000" validate:"gt=0"`
	Redis    RedisConfig `yaml:"redis"`
}

// New builds the configured backend.
func New(cfg Config) (Service, error) {
	if cfg.Backend == "redis" {
		return NewRedis(cfg.Redis)
	}
	return NewMemory(
		WithCapacity(cfg.Capacity),
		WithJanitorInterval(time.Minute),
	), nil
}
