package config

import (
	"log"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/mkayfour/school-lending/pkg/auth"
	"github.com/mkayfour/school-lending/pkg/cache"
	cb "github.com/mkayfour/school-lending/pkg/circuit_breaker"
	"github.com/mkayfour/school-lending/pkg/logger"
	"github.com/mkayfour/school-lending/pkg/postgres"
)

type HTTPServer struct {
	Host         string        `yaml:"host" envconfig:"LENDING_HTTP_HOST" default:"0.0.0.0"`
	Port         string        `yaml:"port" envconfig:"LENDING_HTTP_PORT" default:"8080"`
	ReadTimeout  time.Duration `yaml:"readTimeout" envconfig:"HTTP_READ" default:"10s"`
	WriteTimeout time.Duration `yaml:"writeTimeout" envconfig:"HTTP_WRITE"`
}

type Catalog struct {
	// GuardDelete rejects deleting equipment referenced by active requests.
	GuardDelete bool `yaml:"guardDelete" envconfig:"CATALOG_GUARD_DELETE" default:"false"`
}

type Storage string

const (
	StoragePostgres Storage = "postgres"
	StorageMemory   Storage = "memory"
)

type Config struct {
	Server         HTTPServer  `yaml:"server"`
	Database       postgres.DB `yaml:"db"`
	Storage        Storage     `yaml:"storage" envconfig:"LENDING_STORAGE" default:"postgres"`
	Redis          cache.Config
	CircuitBreaker cb.Config
	Auth           auth.Config
	Catalog        Catalog
	Log            logger.Log `yaml:"log"`
}

var (
	once sync.Once
	cfg  *Config
)

// NewConfig reads config from environment.
func NewConfig(ops ...Option) *Config {
	once.Do(func() {
		var config Config
		for _, op := range ops {
			op(&config)
		}
		err := envconfig.Process("", &config)
		if err != nil {
			log.Fatal("NewConfig ", err)
		}
		cfg = &config
	})

	return cfg
}
