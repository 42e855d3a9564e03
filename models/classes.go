// Package models - Detection label sets and the vehicle category table.
package models

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// ModelFamily identifies the naming convention / dataset of a label set.
type ModelFamily string

const (
	// ModelFamilyYOLO is the 80 COCO classes, no background.
	ModelFamilyYOLO ModelFamily = "yolo"
	// ModelFamilyCustom is a label set loaded from a names file.
	ModelFamilyCustom ModelFamily = "custom"
)

// ErrEmptyClassSet is returned when a names file holds no labels.
var ErrEmptyClassSet = errors.New("class set has no labels")

// OutputClass represents one detection label.
type OutputClass struct {
	// The integer index returned by the model.
	Index int
	// The human-readable label.
	Name string
}

// OutputClassSet is an ordered label list; a class id is its index in Classes.
type OutputClassSet struct {
	// Class set identifier.
	Style ModelFamily
	// Classes in model output order.
	Classes []OutputClass
	// nameToIdx for fast lookup by name
	nameToIdx map[string]int
}

// BuildNameIndexMap builds or rebuilds the name->index map.
func (s *OutputClassSet) BuildNameIndexMap() {
	s.nameToIdx = make(map[string]int, len(s.Classes))
	for _, c := range s.Classes {
		s.nameToIdx[c.Name] = c.Index
	}
}

// Len returns the number of labels, C, in the set.
func (s *OutputClassSet) Len() int {
	return len(s.Classes)
}

// Contains reports whether idx is a valid class id for this set.
func (s *OutputClassSet) Contains(idx int) bool {
	return idx >= 0 && idx < len(s.Classes)
}

// Name returns the label for a class id.
//
// Arguments:
//   - idx: The class id produced by the detector.
//
// Returns:
//   - string: The label.
//   - error: An error if idx is outside the set.
func (s *OutputClassSet) Name(idx int) (string, error) {
	if !s.Contains(idx) {
		return "", errors.Errorf("index %d out of range for %d %s classes", idx, len(s.Classes), s.Style)
	}
	return s.Classes[idx].Name, nil
}

// Index returns the class id for a label.
func (s *OutputClassSet) Index(name string) (int, error) {
	if s.nameToIdx == nil {
		s.BuildNameIndexMap()
	}
	idx, ok := s.nameToIdx[name]
	if !ok {
		return -1, errors.Errorf("name %q not found in %s classes", name, s.Style)
	}
	return idx, nil
}

// ParseClassSet reads a line-delimited label list. Line order is significant:
// the label on line i (zero based) names class id i. Trailing carriage returns
// are stripped and a trailing blank line is ignored.
//
// Arguments:
//   - r: The reader to consume.
//
// Returns:
//   - *OutputClassSet: The parsed set.
//   - error: An error if reading fails or the list is empty.
func ParseClassSet(r io.Reader) (*OutputClassSet, error) {
	set := &OutputClassSet{Style: ModelFamilyCustom}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		name := strings.TrimRight(scanner.Text(), "\r")
		set.Classes = append(set.Classes, OutputClass{Index: len(set.Classes), Name: name})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading class names")
	}

	// Drop trailing blank entries, but keep blank labels in the middle so that
	// indices stay aligned with the model output.
	for len(set.Classes) > 0 && set.Classes[len(set.Classes)-1].Name == "" {
		set.Classes = set.Classes[:len(set.Classes)-1]
	}
	if len(set.Classes) == 0 {
		return nil, ErrEmptyClassSet
	}

	set.BuildNameIndexMap()
	return set, nil
}

// LoadClassSet reads a names file such as coco.names from disk.
func LoadClassSet(path string) (*OutputClassSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening class names %s", path)
	}
	defer f.Close()

	set, err := ParseClassSet(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing class names %s", path)
	}
	return set, nil
}

// DefaultClassSet returns a fresh copy of the 80 COCO labels used by YOLO models.
func DefaultClassSet() *OutputClassSet {
	set := &OutputClassSet{
		Style:   ModelFamilyYOLO,
		Classes: make([]OutputClass, len(yoloClassNames)),
	}
	for i, name := range yoloClassNames {
		set.Classes[i] = OutputClass{Index: i, Name: name}
	}
	set.BuildNameIndexMap()
	return set
}

// yoloClassNames is the 80 COCO classes (no background).
// YOLO models index directly into this zero-based list.
var yoloClassNames = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat", "dog", "horse",
	"sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack", "umbrella", "handbag", "tie",
	"suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove",
	"skateboard", "surfboard", "tennis racket", "bottle", "wine glass", "cup", "fork", "knife", "spoon",
	"bowl", "banana", "apple", "sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut",
	"cake", "chair", "couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator", "book",
	"clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}
