// Package syncconfig persists the single durable flag spec §6 requires of
// the larger application — whether the installation has ever completed a
// full initial synchronization — plus the last-used local and cloud
// directories. Grounded on the YAML-backed config loaders in the retrieval
// pack (jbctechsolutions-skillrunner's internal/infrastructure/config,
// walteh-copyrc's pkg/config) rather than the teacher's JSON/viper config;
// this package binds no CLI flags itself (cmd/notesyncd does that with
// viper), it only stores what must survive a restart.
package syncconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/notewell/notesync/internal/utils"
)

// Config is the full durable config document. Only one field is mandated
// by spec §6; LocalDir/CloudDir round out the document so a restart can
// resume watching the same two directories without re-specifying flags.
type Config struct {
	LocalDir                        string `yaml:"local_dir"`
	CloudDir                        string `yaml:"cloud_dir"`
	DidFinishInitialSynchronization bool   `yaml:"did_finish_initial_synchronization"`
}

const header = "# notesyncd configuration\n# did_finish_initial_synchronization gates the reconciler's initial-sync\n# handling (spec §6) across restarts; do not hand-edit it while the\n# daemon is running.\n"

// Store is a YAML file on disk, guarded by a mutex so concurrent callers
// within this process (the daemon's startup code and the orchestrator's
// lane) never interleave a read with a write.
type Store struct {
	path string
	mu   sync.Mutex
}

// Open returns a Store backed by path, creating a zero-value Config file if
// path doesn't exist yet. The file is read on each Load/IsInitialSync call,
// not here.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if !utils.FileExists(path) {
		if err := s.save(&Config{}); err != nil {
			return nil, fmt.Errorf("initialize config %s: %w", path, err)
		}
	}
	return s, nil
}

// Load reads the current config from disk.
func (s *Store) Load() (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (*Config, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", s.path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", s.path, err)
	}
	return cfg, nil
}

func (s *Store) save(cfg *Config) error {
	if err := utils.EnsureParent(s.path); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(header+string(data)), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return os.Rename(tmp, filepath.Clean(s.path))
}

// IsInitialSync reports the negation of the persisted
// DidFinishInitialSynchronization flag, matching the Reconciler's
// constructor argument directly.
func (s *Store) IsInitialSync() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := s.load()
	if err != nil {
		// A missing or corrupt config is treated as "never finished": the
		// safer default preserves local data via the initial-conflict pass
		// rather than risk silently overwriting it.
		return true
	}
	return !cfg.DidFinishInitialSynchronization
}

// SetInitialSyncFinished implements iocoord.ConfigStore: persisted
// synchronously on receipt of DidFinishInitialSync (spec §6).
func (s *Store) SetInitialSyncFinished(done bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := s.load()
	if err != nil {
		cfg = &Config{}
	}
	cfg.DidFinishInitialSynchronization = done
	return s.save(cfg)
}

// SetDirs persists the watched directories, called once at daemon startup
// so a future restart with no flags resumes the same workspace.
func (s *Store) SetDirs(localDir, cloudDir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := s.load()
	if err != nil {
		cfg = &Config{}
	}
	cfg.LocalDir = localDir
	cfg.CloudDir = cloudDir
	return s.save(cfg)
}
