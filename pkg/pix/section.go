package pix

// Property keys reserved for layout preserved by the reader.
const (
	CommentKey = "#"
	BlankKey   = ""
)

// Property is one key: value line. Comments use CommentKey with a string
// value, blank lines use BlankKey.
type Property struct {
	Key   string
	Value Value
}

// IsComment reports whether the property is a preserved comment line.
func (p Property) IsComment() bool { return p.Key == CommentKey }

// IsBlank reports whether the property is a preserved blank line.
func (p Property) IsBlank() bool { return p.Key == BlankKey }

// Row is an indexed data line: INDEX( values... Key: values... ).
type Row struct {
	Index  int
	Values []Value
	Fields []Property
	// Wrap breaks tuples every Wrap items when writing (4 for matrices).
	Wrap int
}

// Field returns the first field named key.
func (r Row) Field(key string) (Value, bool) {
	for _, f := range r.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Floats flattens all numeric leading values of the row, descending into
// tuples.
func (r Row) Floats() []float32 {
	var out []float32
	for _, v := range r.Values {
		out = append(out, v.Floats()...)
	}
	return out
}

// Ints flattens all integer leading values of the row.
func (r Row) Ints() []int {
	var out []int
	for _, v := range r.Values {
		out = append(out, v.IntSlice()...)
	}
	return out
}

// Section is a node of the PIX tree. Order of properties, rows and
// child sections is significant and kept as inserted.
type Section struct {
	Type     string
	Props    []Property
	Rows     []Row
	Sections []*Section
}

// NewSection returns an empty section of the given type.
func NewSection(typ string) *Section {
	return &Section{Type: typ}
}

// Add appends a property and returns s for chaining.
func (s *Section) Add(key string, v Value) *Section {
	s.Props = append(s.Props, Property{Key: key, Value: v})
	return s
}

// AddComment appends a comment line.
func (s *Section) AddComment(text string) *Section {
	return s.Add(CommentKey, String(text))
}

// AddBlank appends a blank line.
func (s *Section) AddBlank() *Section {
	return s.Add(BlankKey, Value{})
}

// AddRow appends a data row. The index is assigned from the row count.
func (s *Section) AddRow(values ...Value) *Row {
	s.Rows = append(s.Rows, Row{Index: len(s.Rows), Values: values})
	return &s.Rows[len(s.Rows)-1]
}

// AddSection appends a child section and returns it.
func (s *Section) AddSection(child *Section) *Section {
	s.Sections = append(s.Sections, child)
	return child
}

// Set replaces the first property named key, or appends it.
func (s *Section) Set(key string, v Value) *Section {
	for i := range s.Props {
		if s.Props[i].Key == key {
			s.Props[i].Value = v
			return s
		}
	}
	return s.Add(key, v)
}

// Prop returns the first property named key.
func (s *Section) Prop(key string) (Value, bool) {
	for _, p := range s.Props {
		if p.Key == key {
			return p.Value, true
		}
	}
	return Value{}, false
}

// Int returns an integer property.
func (s *Section) Int(key string) (int, bool) {
	v, ok := s.Prop(key)
	if !ok {
		return 0, false
	}
	return v.AsInt()
}

// Float returns a numeric property.
func (s *Section) Float(key string) (float32, bool) {
	v, ok := s.Prop(key)
	if !ok {
		return 0, false
	}
	return v.AsFloat()
}

// Str returns a string or name property.
func (s *Section) Str(key string) (string, bool) {
	v, ok := s.Prop(key)
	if !ok {
		return "", false
	}
	return v.AsString()
}

// Child returns the first child section of the given type.
func (s *Section) Child(typ string) *Section {
	for _, c := range s.Sections {
		if c.Type == typ {
			return c
		}
	}
	return nil
}

// Children returns all child sections of the given type.
func (s *Section) Children(typ string) []*Section {
	var out []*Section
	for _, c := range s.Sections {
		if c.Type == typ {
			out = append(out, c)
		}
	}
	return out
}

// Find returns the first top-level section of the given type.
func Find(sections []*Section, typ string) *Section {
	for _, s := range sections {
		if s.Type == typ {
			return s
		}
	}
	return nil
}

// FindAll returns every top-level section of the given type.
func FindAll(sections []*Section, typ string) []*Section {
	var out []*Section
	for _, s := range sections {
		if s.Type == typ {
			out = append(out, s)
		}
	}
	return out
}

// HeaderOf returns the Type and FormatVersion of the Header section.
func HeaderOf(sections []*Section) (typ string, version int, ok bool) {
	h := Find(sections, "Header")
	if h == nil {
		return "", 0, false
	}
	typ, _ = h.Str("Type")
	version, _ = h.Int("FormatVersion")
	return typ, version, true
}
