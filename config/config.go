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

// Package config loads spec.md §6's configuration file: an INI-like
// "key = value" file whose recognized keys are exactly the CLI
// long-option names. A ".yaml"/".yml" extension is accepted as an
// alternate syntax for the same key set. Watch keeps a long-running
// verifier's config (DNS override path, key file path) current without
// a restart.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Config holds every recognized long-option key. Field names match the
// CLI long option they correspond to; short-flag-only options (-d, -k,
// -K, -A, -o, -O, -D, -u, -a, -i, -c/-C, -v, -V) are given the long name
// spec.md implies for a config-file key.
type Config struct {
	Domain         string `ini:"domain" yaml:"domain"`
	KeyFile        string `ini:"keyfile" yaml:"keyfile"`
	KA             string `ini:"ka" yaml:"ka"`
	DA             string `ini:"da" yaml:"da"`
	KV             string `ini:"kv" yaml:"kv"`
	SF             string `ini:"sf" yaml:"sf"`
	Out            string `ini:"out" yaml:"out"`
	Options        string `ini:"options" yaml:"options"`
	DNSFile        string `ini:"dnsfile" yaml:"dnsfile"`
	APIURL         string `ini:"apiurl" yaml:"apiurl"`
	APIKey         string `ini:"apikey" yaml:"apikey"`
	ID             string `ini:"id" yaml:"id"`
	Comment        string `ini:"comment" yaml:"comment"`
	Info           string `ini:"info" yaml:"info"`
	Src            string `ini:"src" yaml:"src"`
	SrcA           string `ini:"srca" yaml:"srca"`
	SrcD           string `ini:"srcd" yaml:"srcd"`
	SrcF           string `ini:"srcf" yaml:"srcf"`
	CACert         string `ini:"cacert" yaml:"cacert"`
	CertInsecure   bool   `ini:"cert-insecure" yaml:"cert-insecure"`
	Verbose        bool   `ini:"verbose" yaml:"verbose"`
}

var iniKeyToField = map[string]string{
	"domain": "Domain", "keyfile": "KeyFile", "ka": "KA", "da": "DA",
	"kv": "KV", "sf": "SF", "out": "Out", "options": "Options",
	"dnsfile": "DNSFile", "apiurl": "APIURL", "apikey": "APIKey", "id": "ID",
	"comment": "Comment", "info": "Info", "src": "Src", "srca": "SrcA",
	"srcd": "SrcD", "srcf": "SrcF", "cacert": "CACert",
	"cert-insecure": "CertInsecure", "verbose": "Verbose",
}

// Load reads path and parses it as YAML (".yaml"/".yml" extension) or
// the INI-like "key = value" syntax otherwise.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		var c Config
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("config: parse yaml %s: %w", path, err)
		}
		return &c, nil
	}
	return parseINI(data)
}

func parseINI(data []byte) (*Config, error) {
	c := &Config{}
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		eq := strings.Index(line, "=")
		if eq < 0 {
			return nil, fmt.Errorf("config: line %d: missing '=': %q", lineNo, line)
		}
		key := strings.ToLower(strings.TrimSpace(line[:eq]))
		val := strings.TrimSpace(line[eq+1:])
		if err := setField(c, key, val); err != nil {
			return nil, fmt.Errorf("config: line %d: %w", lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("config: scan: %w", err)
	}
	return c, nil
}

func setField(c *Config, key, val string) error {
	fieldName, ok := iniKeyToField[key]
	if !ok {
		return fmt.Errorf("unrecognised key %q", key)
	}
	switch fieldName {
	case "CertInsecure", "Verbose":
		b, err := parseBool(val)
		if err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		if fieldName == "CertInsecure" {
			c.CertInsecure = b
		} else {
			c.Verbose = b
		}
	default:
		setStringField(c, fieldName, val)
	}
	return nil
}

func parseBool(val string) (bool, error) {
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off", "":
		return false, nil
	default:
		return false, fmt.Errorf("not a boolean: %q", val)
	}
}

func setStringField(c *Config, fieldName, val string) {
	switch fieldName {
	case "Domain":
		c.Domain = val
	case "KeyFile":
		c.KeyFile = val
	case "KA":
		c.KA = val
	case "DA":
		c.DA = val
	case "KV":
		c.KV = val
	case "SF":
		c.SF = val
	case "Out":
		c.Out = val
	case "Options":
		c.Options = val
	case "DNSFile":
		c.DNSFile = val
	case "APIURL":
		c.APIURL = val
	case "APIKey":
		c.APIKey = val
	case "ID":
		c.ID = val
	case "Comment":
		c.Comment = val
	case "Info":
		c.Info = val
	case "Src":
		c.Src = val
	case "SrcA":
		c.SrcA = val
	case "SrcD":
		c.SrcD = val
	case "SrcF":
		c.SrcF = val
	case "CACert":
		c.CACert = val
	}
}

// Watcher reloads a Config from disk whenever its source file changes,
// for a long-running verifier process that wants live updates to its DNS
// override path or key file without a restart.
type Watcher struct {
	path    string
	fsw     *fsnotify.Watcher
	Updates chan *Config
	Errors  chan error
}

// Watch starts watching path and performs an initial Load, delivered as
// the first value on Updates. Call Close to stop watching.
func Watch(path string) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: new watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}

	w := &Watcher{
		path:    path,
		fsw:     fsw,
		Updates: make(chan *Config, 1),
		Errors:  make(chan error, 1),
	}
	w.Updates <- cfg

	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				w.Errors <- err
				continue
			}
			w.Updates <- cfg
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.Errors <- err
		}
	}
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
