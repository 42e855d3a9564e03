package capture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestValidateInput(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "traffic.mp4")
	image := filepath.Join(dir, "street.JPG")
	text := filepath.Join(dir, "notes.txt")
	touch(t, video)
	touch(t, image)
	touch(t, text)

	tests := []struct {
		name     string
		video    string
		image    string
		dir      string
		device   int
		wantType InputType
		wantErr  bool
	}{
		{name: "camera by default", device: 0, wantType: InputCamera},
		{name: "second camera", device: 2, wantType: InputCamera},
		{name: "negative device", device: -1, wantErr: true},
		{name: "video", video: video, wantType: InputVideo},
		{name: "image with upper-case extension", image: image, wantType: InputImage},
		{name: "directory", dir: dir, wantType: InputDirectory},
		{name: "missing video", video: filepath.Join(dir, "nope.mp4"), wantErr: true},
		{name: "unsupported image", image: text, wantErr: true},
		{name: "video given a directory", video: dir, wantErr: true},
		{name: "directory given a file", dir: video, wantErr: true},
		{name: "conflicting", video: video, image: image, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := ValidateInput(tt.video, tt.image, tt.dir, tt.device)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, in.Type)
		})
	}
}

func TestValidateInput_Conflicting(t *testing.T) {
	_, err := ValidateInput("a.mp4", "", "frames", 0)
	assert.True(t, errors.Is(err, ErrConflictingInputs))
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		in   InputConfig
		want string
	}{
		{InputConfig{Type: InputImage, Path: "data/street.jpg"}, "data/street_OUT.jpg"},
		{InputConfig{Type: InputImage, Path: "street.png"}, "street_OUT.jpg"},
		{InputConfig{Type: InputVideo, Path: "clips/run.1.mp4"}, "clips/run.1_OUT.avi"},
		{InputConfig{Type: InputDirectory, Path: "frames/"}, "frames_OUT.avi"},
		{InputConfig{Type: InputCamera, DeviceID: 0}, "cameraView_OUT.avi"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.OutputPath(), tt.in.Type.String())
	}
}

func TestLoadFrameFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"frame-10.jpg", "frame-2.jpg", "frame-1.png", "readme.md"} {
		touch(t, filepath.Join(dir, name))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "frame-0.jpg"), 0o755))

	frames, err := LoadFrameFiles(dir)
	require.NoError(t, err)
	require.Len(t, frames, 3)

	assert.Equal(t, 1, frames[0].Frame)
	assert.Equal(t, 2, frames[1].Frame)
	assert.Equal(t, 10, frames[2].Frame)
	assert.Equal(t, filepath.Join(dir, "frame-10.jpg"), frames[2].Path)
}

func TestLoadFrameFiles_BadName(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "frame-one.jpg"))

	_, err := LoadFrameFiles(dir)
	assert.Error(t, err)
}

func TestDirectorySource_EndOfStream(t *testing.T) {
	src, err := Open(InputConfig{Type: InputDirectory, Path: t.TempDir()})
	require.NoError(t, err)
	defer src.Close()

	mat := gocv.NewMat()
	defer mat.Close()

	assert.True(t, errors.Is(src.Read(&mat), ErrEndOfStream))
}

func TestImageSource_Missing(t *testing.T) {
	src, err := Open(InputConfig{Type: InputImage, Path: filepath.Join(t.TempDir(), "gone.jpg")})
	require.NoError(t, err)
	defer src.Close()

	mat := gocv.NewMat()
	defer mat.Close()

	err = src.Read(&mat)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrEndOfStream))
	assert.True(t, errors.Is(src.Read(&mat), ErrEndOfStream))
}
