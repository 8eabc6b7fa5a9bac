package config

import (
	"fmt"
	"strings"
)

// WatchedRoot is a directory whose immediate subdirectories are candidate
// run directories. Host is empty or "localhost" for local roots.
type WatchedRoot struct {
	Host string
	Path string
}

// Local reports whether the root lives on this machine.
func (r WatchedRoot) Local() bool {
	return r.Host == "" || strings.EqualFold(r.Host, "localhost")
}

func (r WatchedRoot) String() string {
	if r.Host == "" {
		return r.Path
	}
	return r.Host + ":" + r.Path
}

// ParseWatchedRoot accepts "path" or "host:path".
func ParseWatchedRoot(raw string) (WatchedRoot, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return WatchedRoot{}, fmt.Errorf("watched root is empty")
	}
	if idx := strings.Index(value, ":"); idx > 0 && !strings.ContainsAny(value[:idx], `/\`) {
		host := value[:idx]
		path := value[idx+1:]
		if strings.TrimSpace(path) == "" {
			return WatchedRoot{}, fmt.Errorf("watched root %q has no path", raw)
		}
		return WatchedRoot{Host: host, Path: path}, nil
	}
	return WatchedRoot{Path: value}, nil
}
