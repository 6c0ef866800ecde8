package keyword

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var MediaExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
	".avi":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".mp3":  true,
	".wav":  true,
	".srt":  true,
	".ass":  true,
}

func IsMediaFile(filename string) bool {
	return MediaExtensions[strings.ToLower(filepath.Ext(filename))]
}

// mediaFiles lists media files directly inside dir whose name contains
// filter, case-insensitively. The result is sorted by name.
func mediaFiles(dir, filter string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	filter = strings.ToLower(filter)

	var out []string
	for _, e := range entries {
		if e.IsDir() || !IsMediaFile(e.Name()) {
			continue
		}
		if filter != "" && !strings.Contains(strings.ToLower(e.Name()), filter) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}
