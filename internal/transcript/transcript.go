package transcript

// Line is one recognized utterance segment within a snapshot. Lines are
// addressed across snapshots by ID, never by position; IDs are unique for
// the lifetime of a stream and are never reused.
type Line struct {
	ID           int64
	Text         string
	StartSeconds float64
	Duration     float64
	// Complete marks a finalized line. Once the engine reports a line as
	// complete it stays complete for every later snapshot of that ID.
	Complete bool
	// Updated reports that the line changed since the previous snapshot.
	Updated bool
	// New reports that the line did not exist in the previous snapshot.
	// New implies Updated.
	New bool
	// TextChanged reports that the text differs from the previous snapshot.
	TextChanged bool
	// Audio optionally carries the raw mono samples of the segment.
	Audio []float32
}

// Transcript is one point-in-time snapshot of everything recognized so far,
// ordered chronologically by line start time.
type Transcript struct {
	Lines []Line
}

// LineByID returns the line with the given ID, if present.
func (t Transcript) LineByID(id int64) (Line, bool) {
	for _, l := range t.Lines {
		if l.ID == id {
			return l, true
		}
	}
	return Line{}, false
}

// Text joins the text of all lines in snapshot order.
func (t Transcript) Text() string {
	out := ""
	for i, l := range t.Lines {
		if i > 0 {
			out += " "
		}
		out += l.Text
	}
	return out
}
