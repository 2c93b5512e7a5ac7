package jwt

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
)

// Key files let operators rotate the hs256 secret without a restart:
//
//	key_id = "2025-08"
//	secret = "base64 of at least 32 bytes"
//
// WatchKeyFile feeds changes into Manager.Rotate.

const (
	keyFileDebounce  = 250 * time.Millisecond
	minKeyFileSecret = 32
)

type keyFilePayload struct {
	KeyID  string `toml:"key_id"`
	Secret string `toml:"secret"`
}

// LoadKeyFile reads and decodes one signing secret from path.
func LoadKeyFile(path string) (string, []byte, error) {
	var payload keyFilePayload
	if _, err := toml.DecodeFile(path, &payload); err != nil {
		return "", nil, fmt.Errorf("decode key file: %w", err)
	}
	if payload.KeyID == "" {
		return "", nil, errors.New("key file missing key_id")
	}
	secret, err := base64.StdEncoding.DecodeString(payload.Secret)
	if err != nil {
		return "", nil, fmt.Errorf("decode key file secret: %w", err)
	}
	if len(secret) < minKeyFileSecret {
		return "", nil, fmt.Errorf("key file secret shorter than %d bytes", minKeyFileSecret)
	}
	return payload.KeyID, secret, nil
}

// WatchKeyFile rotates mgr whenever the file at path changes, until ctx is
// canceled. The parent directory is watched rather than the file itself:
// most editors and secret mounts replace the file, which would otherwise
// drop the watch. Reload failures are logged and the previous key stays
// active.
func WatchKeyFile(ctx context.Context, mgr *Manager, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("key file watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()

		var pending *time.Timer
		reload := func() {
			keyID, secret, err := LoadKeyFile(path)
			if err != nil {
				log.Print("authcore: signing key reload failed: ", err)
				return
			}
			if err := mgr.Rotate(keyID, secret); err != nil {
				log.Print("authcore: signing key rotation rejected: ", err)
				return
			}
			log.Print("authcore: signing key rotated, kid ", keyID)
		}

		for {
			select {
			case <-ctx.Done():
				if pending != nil {
					pending.Stop()
				}
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				// Writers emit event bursts; coalesce them into one reload.
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(keyFileDebounce, reload)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Print("authcore: key file watcher error: ", err)
			}
		}
	}()
	return nil
}
