package postprocess

// Column layout of a detector output row.
const (
	ColCenterX = 0
	ColCenterY = 1
	ColWidth   = 2
	ColHeight  = 3
	// ColReserved is the objectness slot; it is not used for scoring.
	ColReserved = 4
	// ColFirstClass is the first per-class score column.
	ColFirstClass = 5
)

// Output is one raw detector output tensor flattened to rows of
// [cx, cy, w, h, reserved, score_0 .. score_{C-1}], geometry normalized to [0,1].
type Output struct {
	Rows int
	Cols int
	Data []float32
}

// NewOutput wraps row-major data as an Output.
func NewOutput(rows, cols int, data []float32) Output {
	return Output{Rows: rows, Cols: cols, Data: data}
}

// Valid reports whether the tensor is well formed: at least one class column
// and a backing slice that matches its shape.
func (o Output) Valid() bool {
	return o.Rows >= 0 && o.Cols > ColFirstClass && len(o.Data) == o.Rows*o.Cols
}

// NumClasses returns the number of class-score columns.
func (o Output) NumClasses() int {
	if o.Cols <= ColFirstClass {
		return 0
	}
	return o.Cols - ColFirstClass
}

// Row returns row i without copying.
func (o Output) Row(i int) []float32 {
	return o.Data[i*o.Cols : (i+1)*o.Cols]
}
