package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// DefaultInsufficiencyPhrases is the compiled-in phrase set used when no
// phrases file is present. Matching is case-insensitive substring.
var DefaultInsufficiencyPhrases = []string{
	"not enough context",
	"insufficient information",
	"cannot provide a complete answer",
}

// PhrasesConfig is the on-disk shape of the insufficiency phrase list
type PhrasesConfig struct {
	Phrases []string `json:"phrases"`
}

// LoadPhrases loads the insufficiency phrase list from a JSON file.
// A missing file is not an error: the defaults are returned.
func LoadPhrases(filePath string) ([]string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultInsufficiencyPhrases, nil
		}
		return nil, fmt.Errorf("failed to read phrases file: %w", err)
	}

	var cfg PhrasesConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse phrases JSON: %w", err)
	}

	if len(cfg.Phrases) == 0 {
		return DefaultInsufficiencyPhrases, nil
	}
	return cfg.Phrases, nil
}

// WatchPhrases watches the phrases file and invokes onReload with the new
// phrase list whenever it changes. Runs until the process exits.
func WatchPhrases(filePath string, onReload func([]string)) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️  Failed to create phrases watcher: %v", err)
		return
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		log.Printf("⚠️  Failed to resolve phrases file path %s: %v", filePath, err)
		watcher.Close()
		return
	}

	// Watch the directory: editors replace files, which drops file-level watches
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		log.Printf("⚠️  Failed to watch phrases directory: %v", err)
		watcher.Close()
		return
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != absPath {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				phrases, err := LoadPhrases(absPath)
				if err != nil {
					log.Printf("⚠️  Failed to reload phrases file: %v", err)
					continue
				}
				log.Printf("🔄 Reloaded %d insufficiency phrases from %s", len(phrases), filePath)
				onReload(phrases)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("⚠️  Phrases watcher error: %v", err)
			}
		}
	}()
}
