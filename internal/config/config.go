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
	Google   Google   `koanf:"google"`
	Mailgun  Mailgun  `koanf:"mailgun"`
	Sync     Sync     `koanf:"sync"`
	Database Database `koanf:"db"`
}

type Google struct {
	ClientId     string `koanf:"clientid"`
	ClientSecret string `koanf:"clientsecret"`
	// CalendarId is the shared calendar every subscription syncs into.
	CalendarId string `koanf:"calendarid"`
}

type Mailgun struct {
	Domain          string   `koanf:"domain"`
	APIKey          string   `koanf:"apikey"`
	Sender          string   `koanf:"sender"`
	AdminRecipients []string `koanf:"admins"`
}

type Sync struct {
	// FeedTimeout bounds a single feed fetch.
	FeedTimeout time.Duration `koanf:"feedtimeout"`
	// InvocationBudget is the wall-clock budget of one sync invocation
	// before it checkpoints and reschedules the remainder.
	InvocationBudget time.Duration `koanf:"invocationbudget"`
	// RetryPause is the pause between remote calendar API attempts.
	RetryPause time.Duration `koanf:"retrypause"`
}

type Database struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	User   string `koanf:"user"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name"`
	Schema string `koanf:"schema"`
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(Application{
		Host: "http://localhost:3000",
		Mailgun: Mailgun{
			Sender: "Persistent Cal Errors <errors@percal.example.com>",
		},
		Sync: Sync{
			FeedTimeout:      30 * time.Second,
			InvocationBudget: 9 * time.Minute,
			RetryPause:       3 * time.Second,
		},
		Database: Database{
			Host:   "localhost",
			Port:   5432,
			User:   "percal",
			Pass:   "",
			Name:   "percal",
			Schema: "percal",
		},
	}, "koanf"), nil)
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
		Prefix: "PERCAL_",
		TransformFunc: func(k, v string) (string, any) {
			// Transform the key.
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, "PERCAL_")), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	return app, nil
}
