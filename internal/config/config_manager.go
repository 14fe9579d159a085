package config

import (
	"context"
	"os"
	"sync"
	"time"

	"taskboard-go/internal/events"

	log "github.com/sirupsen/logrus"
)

// ConfigManager owns the live configuration and reloads it when the backing
// file changes.
type ConfigManager struct {
	mu         sync.RWMutex
	config     *Config
	configPath string
	stopCh     chan struct{}
	stopOnce   sync.Once
	reloadMu   sync.Mutex
	onChange   []func(*Config)
	lastMod    time.Time
	publisher  events.Publisher
}

// NewConfigManager loads path and, when the file exists, starts watching it.
func NewConfigManager(path string) (*ConfigManager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cm := &ConfigManager{
		config:     cfg,
		configPath: expandHome(path),
		stopCh:     make(chan struct{}),
	}
	if cm.configPath != "" {
		if info, err := os.Stat(cm.configPath); err == nil {
			cm.lastMod = info.ModTime()
			cm.startWatcher()
		}
	}
	return cm, nil
}

// OnChange registers a callback for configuration changes
func (cm *ConfigManager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.onChange = append(cm.onChange, fn)
}

// SetEventPublisher wires the event hub used to broadcast config updates.
func (cm *ConfigManager) SetEventPublisher(p events.Publisher) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.publisher = p
}

// GetConfig returns a copy of the current configuration
func (cm *ConfigManager) GetConfig() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config.Clone()
}

// Close stops the configuration manager
func (cm *ConfigManager) Close() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}

func (cm *ConfigManager) reload() {
	next, err := Load(cm.configPath)
	if err != nil {
		log.WithError(err).WithField("path", cm.configPath).Warn("failed to reload config")
		return
	}
	cm.mu.Lock()
	prev := cm.config
	cm.config = next
	cm.mu.Unlock()

	cm.logConfigChanges(prev, next)
	cm.emitChange(prev, next)
}

func (cm *ConfigManager) listenersSnapshot() ([]func(*Config), events.Publisher, string) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	callbacks := make([]func(*Config), len(cm.onChange))
	copy(callbacks, cm.onChange)
	return callbacks, cm.publisher, cm.configPath
}

func (cm *ConfigManager) emitChange(oldCfg, newCfg *Config) {
	callbacks, publisher, path := cm.listenersSnapshot()

	for _, fn := range callbacks {
		fn(newCfg.Clone())
	}

	if publisher != nil && newCfg != nil {
		event := ConfigChangeEvent{
			Path:      path,
			UpdatedAt: time.Now().UTC(),
			Config:    *newCfg.Clone(),
		}
		if oldCfg != nil {
			event.Previous = oldCfg.Clone()
		}
		publisher.Publish(context.Background(), events.TopicConfigUpdated, event, nil)
	}
}

// ConfigChangeEvent is the payload broadcast when configuration changes.
type ConfigChangeEvent struct {
	Path      string    `json:"path"`
	UpdatedAt time.Time `json:"updated_at"`
	Config    Config    `json:"config"`
	Previous  *Config   `json:"previous,omitempty"`
}
