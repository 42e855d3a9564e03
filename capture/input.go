// Package capture - Frame sources: camera devices, video files, single images
// and directories of numbered stills.
package capture

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Supported file extensions.
var (
	supportedVideoExtensions = []string{".mp4", ".avi", ".mov", ".mkv"}
	supportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp"}
)

// InputType is the kind of frame source.
type InputType int

const (
	InputCamera InputType = iota
	InputVideo
	InputImage
	InputDirectory
)

// String returns the input type name.
func (t InputType) String() string {
	switch t {
	case InputCamera:
		return "camera"
	case InputVideo:
		return "video"
	case InputImage:
		return "image"
	case InputDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// InputConfig holds the input configuration.
type InputConfig struct {
	Type     InputType `json:"type"`
	Path     string    `json:"path"`
	DeviceID int       `json:"device_id"`
}

// ErrConflictingInputs is returned when more than one input path is given.
var ErrConflictingInputs = errors.New("only one of video, image or directory may be given")

// ValidateInput selects the input from the command line values. With no path
// the camera device is used.
//
// Arguments:
//   - videoPath: A video file, or empty.
//   - imagePath: An image file, or empty.
//   - dirPath: A directory of frame-N images, or empty.
//   - deviceID: The camera device used when no path is given.
//
// Returns:
//   - *InputConfig: The validated input.
//   - error: If more than one path is given, or the path is missing or of an
//     unsupported type.
func ValidateInput(videoPath, imagePath, dirPath string, deviceID int) (*InputConfig, error) {
	given := 0
	for _, p := range []string{videoPath, imagePath, dirPath} {
		if p != "" {
			given++
		}
	}
	if given > 1 {
		return nil, ErrConflictingInputs
	}

	switch {
	case videoPath != "":
		if err := validateFile(videoPath, supportedVideoExtensions); err != nil {
			return nil, errors.Wrap(err, "video")
		}
		return &InputConfig{Type: InputVideo, Path: videoPath}, nil
	case imagePath != "":
		if err := validateFile(imagePath, supportedImageExtensions); err != nil {
			return nil, errors.Wrap(err, "image")
		}
		return &InputConfig{Type: InputImage, Path: imagePath}, nil
	case dirPath != "":
		info, err := os.Stat(dirPath)
		if err != nil {
			return nil, errors.Wrap(err, "directory")
		}
		if !info.IsDir() {
			return nil, errors.Errorf("directory: %s is not a directory", dirPath)
		}
		return &InputConfig{Type: InputDirectory, Path: dirPath}, nil
	default:
		if deviceID < 0 {
			return nil, errors.Errorf("invalid camera device %d", deviceID)
		}
		return &InputConfig{Type: InputCamera, DeviceID: deviceID}, nil
	}
}

// validateFile checks that the file exists and has a supported extension.
func validateFile(filePath string, supportedExtensions []string) error {
	info, err := os.Stat(filePath)
	if err != nil {
		return errors.Wrapf(err, "file not found: %s", filePath)
	}
	if info.IsDir() {
		return errors.Errorf("%s is a directory", filePath)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	for _, supportedExt := range supportedExtensions {
		if ext == supportedExt {
			return nil
		}
	}

	return errors.Errorf("unsupported file extension %q, supported: %v", ext, supportedExtensions)
}

// CameraOutputName is the annotated video written for camera input.
const CameraOutputName = "cameraView_OUT.avi"

// OutputPath returns where the annotated result of an input is written: the
// input path with its extension replaced by _OUT.jpg for images and _OUT.avi
// for videos and directories, or CameraOutputName for a camera.
func (c InputConfig) OutputPath() string {
	switch c.Type {
	case InputImage:
		return strings.TrimSuffix(c.Path, filepath.Ext(c.Path)) + "_OUT.jpg"
	case InputVideo:
		return strings.TrimSuffix(c.Path, filepath.Ext(c.Path)) + "_OUT.avi"
	case InputDirectory:
		return filepath.Clean(c.Path) + "_OUT.avi"
	default:
		return CameraOutputName
	}
}

// IsStill reports whether the input produces a single image.
func (c InputConfig) IsStill() bool {
	return c.Type == InputImage
}
