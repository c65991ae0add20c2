// Copyright 2025 Velda Inc
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package clientlib

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"velda.io/wslattr/pkg/distro"
	"velda.io/wslattr/pkg/wslfile"
)

const (
	// KeyDefaultDistro names the configured distro used when nothing else
	// selects one.
	KeyDefaultDistro = "default-distro"
	// KeyJournal is the path of the downgrade journal database.
	KeyJournal = "journal"
	// KeyOutput is the default output format.
	KeyOutput = "output"
)

// Keys are the settings accepted by `config set`.
var Keys = []string{KeyDefaultDistro, KeyJournal, KeyOutput}

var (
	configDir string
	Debug     bool
)

func InitConfigFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&configDir, "config_dir", "", "config directory. Defaults to env WSLATTR_CONFIG_DIR or ~/.config/wslattr")
	cmd.PersistentFlags().BoolVar(&Debug, "debug", false, "Enable debug mode")
}

func DebugLog(format string, args ...interface{}) {
	if Debug {
		log.Printf(format, args...)
	}
}

func getUserConfigDir() (string, error) {
	sudoUser := os.Getenv("SUDO_USER")
	if sudoUser != "" {
		// If running under sudo, use the config of the original user.
		u, err := user.Lookup(sudoUser)
		if err != nil {
			return "", fmt.Errorf("unable to lookup home directory for user %s: %w", sudoUser, err)
		}
		return filepath.Join(u.HomeDir, ".config", "wslattr"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "wslattr"), nil
}

// InitConfig settles the config directory from the flag, the environment or
// the home directory.
func InitConfig() error {
	if configDir == "" {
		configDir = os.Getenv("WSLATTR_CONFIG_DIR")
	}
	if configDir == "" {
		var err error
		if configDir, err = getUserConfigDir(); err != nil {
			return fmt.Errorf("unable to determine the config directory, set --config_dir or $WSLATTR_CONFIG_DIR: %w", err)
		}
	}
	configDir = filepath.Clean(configDir)
	DebugLog("Using config directory: %s", configDir)
	return os.MkdirAll(configDir, 0755)
}

func GetConfigDir() string {
	return configDir
}

// Configs is the settings store. It also keeps distros added by hand, for
// rootfs copies the Lxss registry does not know about.
type Configs struct {
	db *sql.DB
}

var _ distro.Registry = (*Configs)(nil)

// OpenConfigs opens config.db in dir.
func OpenConfigs(dir string) (*Configs, error) {
	if dir == "" {
		return nil, errors.New("config directory not set")
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, "config.db")+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	for _, stmt := range []string{
		"CREATE TABLE IF NOT EXISTS config(key TEXT PRIMARY KEY, value TEXT)",
		"CREATE TABLE IF NOT EXISTS distros(name TEXT PRIMARY KEY, base_path TEXT NOT NULL, fs_type TEXT NOT NULL)",
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &Configs{db: db}, nil
}

func (c *Configs) SetConfig(key string, value string) error {
	_, err := c.db.Exec("INSERT INTO config(key, value) VALUES($1, $2) ON CONFLICT(key) DO UPDATE SET value = $2", key, value)
	return err
}

// GetConfig returns the value of key, or "" when it is not set.
func (c *Configs) GetConfig(key string) (string, error) {
	var value string
	err := c.db.QueryRow("SELECT value FROM config WHERE key = $1", key).Scan(&value)
	if err != nil && err != sql.ErrNoRows {
		return "", err
	}
	return value, nil
}

func (c *Configs) ListConfigs() (map[string]string, error) {
	rows, err := c.db.Query("SELECT key, value FROM config")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	configs := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		configs[key] = value
	}
	return configs, rows.Err()
}

func (c *Configs) DeleteConfig(key string) error {
	_, err := c.db.Exec("DELETE FROM config WHERE key = $1", key)
	return err
}

// AddDistro stores d, replacing a distro of the same name.
func (c *Configs) AddDistro(d distro.Distro) error {
	if d.Name == "" || d.BasePath == "" {
		return errors.New("distro name and base path are required")
	}
	_, err := c.db.Exec(`INSERT INTO distros(name, base_path, fs_type) VALUES($1, $2, $3)
ON CONFLICT(name) DO UPDATE SET base_path = $2, fs_type = $3`, d.Name, d.BasePath, d.FsType.String())
	return err
}

func (c *Configs) RemoveDistro(name string) error {
	res, err := c.db.Exec("DELETE FROM distros WHERE name = $1", name)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", distro.ErrNotFound, name)
	}
	return nil
}

func (c *Configs) List() ([]distro.Distro, error) {
	rows, err := c.db.Query("SELECT name, base_path, fs_type FROM distros ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []distro.Distro
	for rows.Next() {
		var d distro.Distro
		var fsType string
		if err := rows.Scan(&d.Name, &d.BasePath, &fsType); err != nil {
			return nil, err
		}
		if d.FsType, err = wslfile.ParseFsType(fsType); err != nil {
			return nil, fmt.Errorf("distro %s: %w", d.Name, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Default is the distro named by the default-distro setting.
func (c *Configs) Default() (*distro.Distro, error) {
	name, err := c.GetConfig(KeyDefaultDistro)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("%w: %s is not set", distro.ErrNotFound, KeyDefaultDistro)
	}
	return distro.Lookup(c, name)
}

func (c *Configs) SetFsType(name string, t wslfile.FsType) error {
	res, err := c.db.Exec("UPDATE distros SET fs_type = $1 WHERE name = $2", t.String(), name)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", distro.ErrNotFound, name)
	}
	return nil
}

func (c *Configs) Close() {
	c.db.Close()
}

var globalConfig *Configs
var globalConfigErr error
var globalConfigInit sync.Once

// GlobalConfig opens the store of the config directory once.
func GlobalConfig() (*Configs, error) {
	globalConfigInit.Do(func() {
		globalConfig, globalConfigErr = OpenConfigs(configDir)
	})
	return globalConfig, globalConfigErr
}

// Registry combines the Lxss registry with the configured distros. The
// Lxss registry wins for names known to both.
func Registry() distro.Registry {
	cfg, err := GlobalConfig()
	if err != nil {
		DebugLog("Config store unavailable: %v", err)
		return distro.NewRegistry()
	}
	return distro.Multi{distro.NewRegistry(), cfg}
}

// GetFlagValue returns the flag if it was given and the stored setting of
// the same name otherwise.
func GetFlagValue(cmd *cobra.Command, flagName string) (string, error) {
	if cmd.Flags().Changed(flagName) {
		return cmd.Flags().Lookup(flagName).Value.String(), nil
	}
	cfg, err := GlobalConfig()
	if err != nil {
		return "", err
	}
	value, err := cfg.GetConfig(flagName)
	if err != nil || value != "" {
		return value, err
	}
	if f := cmd.Flags().Lookup(flagName); f != nil {
		return f.DefValue, nil
	}
	return "", nil
}

// SortedKeys returns the keys of m in order.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
