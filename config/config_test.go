// Copyright (C) 2025 SAGE-X Project
//
// This file is part of seal.
//
// seal is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// seal is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with seal.  If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadParsesINIKeyValuePairs(t *testing.T) {
	path := writeTemp(t, "seal.conf", `
# comment line

domain = example.com
keyfile = /etc/seal/key.pem
cert-insecure = yes
verbose = 0
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "example.com", cfg.Domain)
	assert.Equal(t, "/etc/seal/key.pem", cfg.KeyFile)
	assert.True(t, cfg.CertInsecure)
	assert.False(t, cfg.Verbose)
}

func TestLoadRejectsUnrecognisedKey(t *testing.T) {
	path := writeTemp(t, "seal.conf", "bogus = 1\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "unrecognised key")
}

func TestLoadRejectsLineWithoutEquals(t *testing.T) {
	path := writeTemp(t, "seal.conf", "this is not valid\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "missing '='")
}

func TestLoadParsesYAMLByExtension(t *testing.T) {
	path := writeTemp(t, "seal.yaml", "domain: example.org\nkv: \"2\"\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "example.org", cfg.Domain)
	assert.Equal(t, "2", cfg.KV)
}

func TestWatchDeliversInitialConfigThenReload(t *testing.T) {
	path := writeTemp(t, "seal.conf", "domain = first.example\n")
	w, err := Watch(path)
	require.NoError(t, err)
	defer w.Close()

	select {
	case cfg := <-w.Updates:
		assert.Equal(t, "first.example", cfg.Domain)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for initial config")
	}

	require.NoError(t, os.WriteFile(path, []byte("domain = second.example\n"), 0o644))

	select {
	case cfg := <-w.Updates:
		assert.Equal(t, "second.example", cfg.Domain)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}
