package config

import (
	"github.com/verdictlabs/verdict/docstore"
	"github.com/verdictlabs/verdict/httpclient"
	"github.com/verdictlabs/verdict/kvcache"
	"github.com/verdictlabs/verdict/queueclient"
	"github.com/verdictlabs/verdict/sqlclient"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	HTTP     httpclient.Config  `yaml:"http"`
	Database sqlclient.Config   `yaml:"database"`
	DocStore docstore.Config    `yaml:"docstore"`
	Queue    queueclient.Config `yaml:"queue"`
	Cache    kvcache.Config     `yaml:"cache"`
	Logging  LoggingConfig      `yaml:"logging"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}
