package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

type Application struct {
	Host     string   `koanf:"host"`
	Port     int      `koanf:"port"`
	Database Database `koanf:"db"`
	Ledger   Ledger   `koanf:"ledger"`
	Budget   Budget   `koanf:"budget"`
	Jobs     Jobs     `koanf:"jobs"`
	Notifier Notifier `koanf:"notifier"`
	Metrics  Metrics  `koanf:"metrics"`
}

type Database struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	User   string `koanf:"user"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name"`
	Schema string `koanf:"schema"`
	// MaxConns caps the pool. Every unit of work holding wallet locks keeps one connection.
	MaxConns int32 `koanf:"maxconns"`
	MinConns int32 `koanf:"minconns"`
}

type Ledger struct {
	// BalanceFloor is the lowest balance a wallet may reach. Anything below is treated as a data-entry error.
	BalanceFloor       string        `koanf:"balancefloor"`
	DuplicateWindow    time.Duration `koanf:"duplicatewindow"`
	DuplicateTolerance string        `koanf:"duplicatetolerance"`
	DuplicateLimit     int           `koanf:"duplicatelimit"`
}

type Budget struct {
	// AlertThreshold is the default fraction used when a budget does not specify one.
	AlertThreshold string `koanf:"alertthreshold"`
}

type Jobs struct {
	Concurrency int `koanf:"concurrency"`
}

type Notifier struct {
	AMQP    AMQP    `koanf:"amqp"`
	Breaker Breaker `koanf:"breaker"`
}

type AMQP struct {
	Url      string `koanf:"url"`
	Exchange string `koanf:"exchange"`
	Queue    string `koanf:"queue"`
}

type Breaker struct {
	MaxFailures uint32        `koanf:"maxfailures"`
	Timeout     time.Duration `koanf:"timeout"`
}

type Metrics struct {
	Enabled bool `koanf:"enabled"`
}

func Defaults() Application {
	return Application{
		Host: "http://localhost:3000",
		Port: 8181,
		Database: Database{
			Host:     "localhost",
			Port:     5432,
			User:     "walletwise",
			Pass:     "",
			Name:     "walletwise",
			Schema:   "walletwise",
			MaxConns: 25,
			MinConns: 5,
		},
		Ledger: Ledger{
			BalanceFloor:       "-10000000",
			DuplicateWindow:    24 * time.Hour,
			DuplicateTolerance: "0.01",
			DuplicateLimit:     5,
		},
		Budget: Budget{
			AlertThreshold: "0.80",
		},
		Jobs: Jobs{
			Concurrency: 4,
		},
		Notifier: Notifier{
			AMQP: AMQP{
				Exchange: "walletwise",
				Queue:    "mail.budget-alert",
			},
			Breaker: Breaker{
				MaxFailures: 5,
				Timeout:     30 * time.Second,
			},
		},
		Metrics: Metrics{
			Enabled: true,
		},
	}
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(Defaults(), "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: "WALLETWISE_",
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, "WALLETWISE_")), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.UnmarshalWithConf("", &app, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Application{}, err
	}

	return app, nil
}
