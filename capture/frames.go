package capture

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// FrameFile is one still of a frame directory.
type FrameFile struct {
	// Path is the path to the image file.
	Path string
	// Frame is the frame number parsed from the name.
	Frame int
}

// LoadFrameFiles lists the frame-N images of a directory in frame order.
//
// Arguments:
//   - dir: Directory path containing frame-N.jpg style files.
//
// Returns:
//   - []FrameFile: The stills, sorted by frame number.
//   - error: If the directory cannot be read or an image is not named frame-N.
func LoadFrameFiles(dir string) ([]FrameFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var frames []FrameFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		switch ext {
		case ".jpg", ".jpeg", ".png", ".bmp":
			number := strings.TrimPrefix(strings.TrimSuffix(name, filepath.Ext(name)), "frame-")
			frame, err := strconv.Atoi(number)
			if err != nil {
				return nil, errors.Wrapf(err, "frame number of %s", name)
			}
			frames = append(frames, FrameFile{
				Path:  filepath.Join(dir, name),
				Frame: frame,
			})
		}
	}

	sort.Slice(frames, func(i, j int) bool {
		return frames[i].Frame < frames[j].Frame
	})

	return frames, nil
}
