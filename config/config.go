// PowerSNMP - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)

// Package config loads SNMP targets from a YAML file with overrides from
// the environment (POWERSNMP_* variables, optionally read from a .env file).
//
// Example targets.yaml:
//
//	defaults:
//	  timeout: 500ms
//	  retries: 2
//	targets:
//	  - name: core-sw
//	    host: 192.168.5.252
//	    version: v3
//	    username: SNMPv3User
//	    auth_protocol: sha256
//	    auth_password: authpass1
//	    priv_protocol: aes
//	    priv_password: privpass1
//	    oids: [1.3.6.1.2.1.1.5.0]
//	  - name: access-sw
//	    host: 192.168.5.10
//	    version: 2c
//	    community: public
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	PowerSNMP "github.com/OlegPowerC/powersnmp"
)

// EnvPrefix prefixes every environment variable read by LoadEnv.
const EnvPrefix = "POWERSNMP_"

// Env holds the settings taken from the environment.
type Env struct {
	Config         string        `env:"CONFIG"          envDefault:"targets.yaml"`
	Timeout        time.Duration `env:"TIMEOUT"`
	Retries        int           `env:"RETRIES"         envDefault:"-1"`
	MaxRepetitions int           `env:"MAX_REPETITIONS"`
	LogLevel       string        `env:"LOG_LEVEL"       envDefault:"off"`
	MetricsAddr    string        `env:"METRICS_ADDR"`
}

// LoadEnv loads the given .env files (".env" when none are given; a
// missing file is not an error) and parses the POWERSNMP_* variables.
func LoadEnv(files ...string) (Env, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Env{}, fmt.Errorf("load env file: %w", err)
	}
	var e Env
	if err := env.ParseWithOptions(&e, env.Options{Prefix: EnvPrefix}); err != nil {
		return Env{}, err
	}
	return e, nil
}

// Defaults apply to every target that leaves the field unset.
type Defaults struct {
	Port           int           `yaml:"port,omitempty"`
	Timeout        time.Duration `yaml:"timeout,omitempty"`
	Retries        *int          `yaml:"retries,omitempty"`
	MaxRepetitions int           `yaml:"max_repetitions,omitempty"`
}

// Target is one SNMP agent.
type Target struct {
	Name    string `yaml:"name"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port,omitempty"`
	Version string `yaml:"version"`

	Community string `yaml:"community,omitempty"`

	Username     string `yaml:"username,omitempty"`
	AuthProtocol string `yaml:"auth_protocol,omitempty"`
	AuthPassword string `yaml:"auth_password,omitempty"`
	PrivProtocol string `yaml:"priv_protocol,omitempty"`
	PrivPassword string `yaml:"priv_password,omitempty"`
	ContextName  string `yaml:"context_name,omitempty"`

	Timeout        time.Duration `yaml:"timeout,omitempty"`
	Retries        *int          `yaml:"retries,omitempty"`
	MaxRepetitions int           `yaml:"max_repetitions,omitempty"`

	// OIDs queried by cmd/snmpget
	OIDs []string `yaml:"oids,omitempty"`
}

// File is the content of a targets file.
type File struct {
	Defaults Defaults `yaml:"defaults"`
	Targets  []Target `yaml:"targets"`
}

// Load reads and checks a targets file. Defaults are merged into the
// targets.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a targets file from data.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse targets: %w", err)
	}
	seen := make(map[string]bool, len(f.Targets))
	for i := range f.Targets {
		t := &f.Targets[i]
		if t.Host == "" {
			return nil, fmt.Errorf("target %d: host is required", i+1)
		}
		if t.Name == "" {
			t.Name = t.Host
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("target %q defined twice", t.Name)
		}
		seen[t.Name] = true
		f.Defaults.apply(t)
	}
	return &f, nil
}

func (d Defaults) apply(t *Target) {
	if t.Port == 0 {
		t.Port = d.Port
	}
	if t.Timeout == 0 {
		t.Timeout = d.Timeout
	}
	if t.Retries == nil && d.Retries != nil {
		r := *d.Retries
		t.Retries = &r
	}
	if t.MaxRepetitions == 0 {
		t.MaxRepetitions = d.MaxRepetitions
	}
}

// ApplyEnv overrides timing settings of every target with those set in e.
func (f *File) ApplyEnv(e Env) {
	for i := range f.Targets {
		t := &f.Targets[i]
		if e.Timeout > 0 {
			t.Timeout = e.Timeout
		}
		if e.Retries >= 0 {
			r := e.Retries
			t.Retries = &r
		}
		if e.MaxRepetitions > 0 {
			t.MaxRepetitions = e.MaxRepetitions
		}
	}
}

// Lookup finds a target by name.
func (f *File) Lookup(name string) (Target, bool) {
	for _, t := range f.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return Target{}, false
}

// Params converts the target into validated client parameters. Unset
// fields keep the library defaults.
func (t Target) Params() (*PowerSNMP.Params, error) {
	version, err := PowerSNMP.ParseVersion(t.Version)
	if err != nil {
		return nil, fmt.Errorf("target %q: %w", t.Name, err)
	}
	var p *PowerSNMP.Params
	switch version {
	case PowerSNMP.Version2c:
		p = PowerSNMP.NewParamsV2c(t.Host, t.Username, t.Community)
	default:
		auth, err := PowerSNMP.ParseAuthProtocol(t.AuthProtocol)
		if err != nil {
			return nil, fmt.Errorf("target %q: %w", t.Name, err)
		}
		priv, err := PowerSNMP.ParsePrivProtocol(t.PrivProtocol)
		if err != nil {
			return nil, fmt.Errorf("target %q: %w", t.Name, err)
		}
		p = PowerSNMP.NewParamsV3(t.Host, t.Username, auth, t.AuthPassword, priv, t.PrivPassword)
		p.ContextName = t.ContextName
	}
	if t.Port != 0 {
		p.Port = t.Port
	}
	if t.Timeout != 0 {
		p.Timeout = t.Timeout
	}
	if t.Retries != nil {
		p.Retries = *t.Retries
	}
	if t.MaxRepetitions != 0 {
		p.MaxRepetitions = t.MaxRepetitions
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("target %q: %w", t.Name, err)
	}
	return p, nil
}

// ParseOIDs parses the OIDs of the target.
func (t Target) ParseOIDs() ([]PowerSNMP.OID, error) {
	oids := make([]PowerSNMP.OID, 0, len(t.OIDs))
	for _, s := range t.OIDs {
		o, err := PowerSNMP.ParseOID(s)
		if err != nil {
			return nil, fmt.Errorf("target %q: %w", t.Name, err)
		}
		oids = append(oids, o)
	}
	return oids, nil
}
