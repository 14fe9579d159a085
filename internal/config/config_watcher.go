package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

func (cm *ConfigManager) startWatcher() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.WithError(err).Warn("failed to create file watcher, falling back to polling")
		cm.startPollingWatcher()
		return
	}

	// Watch the directory to catch atomic writes (rename operations)
	configDir := filepath.Dir(cm.configPath)
	if err := watcher.Add(configDir); err != nil {
		log.WithError(err).WithField("dir", configDir).Warn("failed to watch config directory, falling back to polling")
		watcher.Close()
		cm.startPollingWatcher()
		return
	}

	log.WithField("path", cm.configPath).Debug("file watcher started using fsnotify")

	go func() {
		defer watcher.Close()

		// Debounce timer to avoid multiple reloads on rapid changes
		var debounceTimer *time.Timer
		debounceDuration := 100 * time.Millisecond

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(cm.configPath) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, cm.checkAndReload)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("file watcher error")

			case <-cm.stopCh:
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				return
			}
		}
	}()
}

// startPollingWatcher is a fallback when fsnotify is not available
func (cm *ConfigManager) startPollingWatcher() {
	ticker := time.NewTicker(5 * time.Second)
	log.WithField("interval", "5s").Info("file watcher started using polling")

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cm.checkAndReload()
			case <-cm.stopCh:
				return
			}
		}
	}()
}

func (cm *ConfigManager) checkAndReload() {
	cm.reloadMu.Lock()
	defer cm.reloadMu.Unlock()

	info, err := os.Stat(cm.configPath)
	if err != nil {
		return
	}
	cm.mu.Lock()
	changed := info.ModTime().After(cm.lastMod)
	if changed {
		cm.lastMod = info.ModTime()
	}
	cm.mu.Unlock()
	if changed {
		cm.reload()
	}
}

func (cm *ConfigManager) logConfigChanges(old, new *Config) {
	if old == nil || new == nil {
		return
	}
	if old.Retry.Max != new.Retry.Max {
		log.WithFields(log.Fields{"field": "retry.max", "old": old.Retry.Max, "new": new.Retry.Max}).Info("config changed")
	}
	if old.Auth.RefreshAheadSeconds != new.Auth.RefreshAheadSeconds {
		log.WithFields(log.Fields{"field": "auth.refresh_ahead_seconds", "old": old.Auth.RefreshAheadSeconds, "new": new.Auth.RefreshAheadSeconds}).Info("config changed")
	}
	if old.Polling.IntervalSec != new.Polling.IntervalSec {
		log.WithFields(log.Fields{"field": "polling.interval_sec", "old": old.Polling.IntervalSec, "new": new.Polling.IntervalSec}).Info("config changed")
	}
	if old.Security.Debug != new.Security.Debug {
		log.WithFields(log.Fields{"field": "debug", "old": old.Security.Debug, "new": new.Security.Debug}).Info("config changed")
	}
}
