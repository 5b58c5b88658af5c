//go:build !integration

// PowerSNMP - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	PowerSNMP "github.com/OlegPowerC/powersnmp"
)

const targetsYAML = `
defaults:
  timeout: 500ms
  retries: 2
  max_repetitions: 40
targets:
  - name: core-sw
    host: 192.168.5.252
    version: v3
    username: SNMPv3User
    auth_protocol: sha256
    auth_password: authpass1
    priv_protocol: aes
    priv_password: privpass1
    context_name: vlan-10
    oids: [1.3.6.1.2.1.1.5.0, 1.3.6.1.2.1.1.3.0]
  - host: 192.168.5.10
    port: 1161
    version: 2c
    community: public
    timeout: 2s
    retries: 0
`

func intPtr(v int) *int { return &v }

func TestParse(t *testing.T) {
	f, err := Parse([]byte(targetsYAML))
	require.NoError(t, err)
	require.Len(t, f.Targets, 2)

	want := []Target{
		{
			Name: "core-sw", Host: "192.168.5.252", Version: "v3",
			Username: "SNMPv3User", AuthProtocol: "sha256", AuthPassword: "authpass1",
			PrivProtocol: "aes", PrivPassword: "privpass1", ContextName: "vlan-10",
			Timeout: 500 * time.Millisecond, Retries: intPtr(2), MaxRepetitions: 40,
			OIDs: []string{"1.3.6.1.2.1.1.5.0", "1.3.6.1.2.1.1.3.0"},
		},
		{
			// имя по умолчанию берется из host
			Name: "192.168.5.10", Host: "192.168.5.10", Port: 1161, Version: "2c", Community: "public",
			Timeout: 2 * time.Second, Retries: intPtr(0), MaxRepetitions: 40,
		},
	}
	if diff := cmp.Diff(want, f.Targets); diff != "" {
		t.Errorf("targets mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"missing host": "targets:\n  - name: a\n    version: 2c\n",
		"duplicate":    "targets:\n  - host: h1\n    name: a\n  - host: h2\n    name: a\n",
		"host as name": "targets:\n  - host: h1\n  - host: h1\n",
		"bad yaml":     "targets: [",
		"bad timeout":  "defaults:\n  timeout: soon\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestTarget_Params(t *testing.T) {
	f, err := Parse([]byte(targetsYAML))
	require.NoError(t, err)

	core, ok := f.Lookup("core-sw")
	require.True(t, ok)
	p, err := core.Params()
	require.NoError(t, err)
	assert.Equal(t, PowerSNMP.Version3, p.Version())
	assert.Equal(t, "192.168.5.252:161", p.Address())
	assert.Equal(t, "vlan-10", p.ContextName)
	assert.Equal(t, 500*time.Millisecond, p.Timeout)
	assert.Equal(t, 2, p.Retries)
	assert.Equal(t, 40, p.MaxRepetitions)
	auth, err := p.AuthProtocol()
	require.NoError(t, err)
	assert.Equal(t, PowerSNMP.AuthSHA256, auth)
	priv, err := p.PrivProtocol()
	require.NoError(t, err)
	assert.Equal(t, PowerSNMP.PrivAES, priv)

	oids, err := core.ParseOIDs()
	require.NoError(t, err)
	assert.Equal(t, []PowerSNMP.OID{
		PowerSNMP.MustParseOID("1.3.6.1.2.1.1.5.0"),
		PowerSNMP.MustParseOID("1.3.6.1.2.1.1.3.0"),
	}, oids)

	access, ok := f.Lookup("192.168.5.10")
	require.True(t, ok)
	p, err = access.Params()
	require.NoError(t, err)
	assert.Equal(t, PowerSNMP.Version2c, p.Version())
	assert.Equal(t, "192.168.5.10:1161", p.Address())
	assert.Equal(t, 0, p.Retries)
	community, err := p.Community()
	require.NoError(t, err)
	assert.Equal(t, "public", community)

	_, ok = f.Lookup("nope")
	assert.False(t, ok)
}

func TestTarget_ParamsInvalid(t *testing.T) {
	tests := map[string]Target{
		"version":       {Name: "a", Host: "h", Version: "1", Community: "public"},
		"auth protocol": {Name: "a", Host: "h", Version: "3", Username: "u", AuthProtocol: "sha3", AuthPassword: "authpass1"},
		"priv protocol": {Name: "a", Host: "h", Version: "3", Username: "u", AuthProtocol: "sha", AuthPassword: "authpass1", PrivProtocol: "rc4"},
		"short key":     {Name: "a", Host: "h", Version: "3", Username: "u", AuthProtocol: "md5", AuthPassword: "pass"},
		"no community":  {Name: "a", Host: "h", Version: "2c"},
		"retries":       {Name: "a", Host: "h", Version: "2c", Community: "c", Retries: intPtr(-3)},
	}
	for name, target := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := target.Params()
			assert.ErrorContains(t, err, `target "a"`)
		})
	}

	_, err := Target{Name: "a", OIDs: []string{"1.3.6.x"}}.ParseOIDs()
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	f, err := Parse([]byte(targetsYAML))
	require.NoError(t, err)

	f.ApplyEnv(Env{Retries: -1})
	assert.Equal(t, 2, *f.Targets[0].Retries, "retries -1 leaves the file value")
	assert.Equal(t, 500*time.Millisecond, f.Targets[0].Timeout)

	f.ApplyEnv(Env{Timeout: 3 * time.Second, Retries: 5, MaxRepetitions: 10})
	for _, tg := range f.Targets {
		assert.Equal(t, 3*time.Second, tg.Timeout)
		assert.Equal(t, 5, *tg.Retries)
		assert.Equal(t, 10, tg.MaxRepetitions)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("POWERSNMP_TIMEOUT", "750ms")
	t.Setenv("POWERSNMP_LOG_LEVEL", "debug")

	dir := t.TempDir()
	dotenv := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("POWERSNMP_MAX_REPETITIONS=15\nPOWERSNMP_LOG_LEVEL=error\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("POWERSNMP_MAX_REPETITIONS") })

	e, err := LoadEnv(dotenv)
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, e.Timeout)
	assert.Equal(t, 15, e.MaxRepetitions)
	assert.Equal(t, "debug", e.LogLevel, "the environment wins over the .env file")
	assert.Equal(t, -1, e.Retries)
	assert.Equal(t, "targets.yaml", e.Config)

	_, err = LoadEnv(filepath.Join(dir, "missing.env"))
	assert.NoError(t, err)
}

func TestLoadEnv_Invalid(t *testing.T) {
	t.Setenv("POWERSNMP_RETRIES", "many")
	_, err := LoadEnv(filepath.Join(t.TempDir(), "none.env"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(targetsYAML), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, f.Targets, 2)

	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
