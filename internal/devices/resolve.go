package devices

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DevRoot is where device nodes and their stable symlinks live.
var DevRoot = "/dev"

// ResolveNode converts a configured v4l2 node to a usable path. Full paths
// are returned unchanged; bare names are looked up under /dev, then the
// by-path and by-id symlink directories.
func ResolveNode(node string) (string, error) {
	if filepath.IsAbs(node) {
		return node, nil
	}

	candidates := []string{filepath.Join(DevRoot, node)}
	if strings.HasPrefix(node, "platform-") || strings.HasPrefix(node, "usb-") {
		candidates = append(candidates, filepath.Join(DevRoot, "v4l", "by-path", node))
	}
	if strings.HasPrefix(node, "usb-") {
		candidates = append(candidates, filepath.Join(DevRoot, "v4l", "by-id", node))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no device node found for %s", node)
}
