package events

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"downtowncal/internal/model"
)

const (
	defaultLocation = "Downtown Mall"
	defaultSource   = "curated"
)

//go:embed defaults.yaml
var defaultTableYAML []byte

var (
	// ErrUnknownPattern marks a definition whose pattern tag is not recognized.
	ErrUnknownPattern = errors.New("unknown pattern")
	// ErrDuplicateName marks a second definition reusing an earlier name.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrInvalidDefinition marks any other malformed field.
	ErrInvalidDefinition = errors.New("invalid definition")
)

// DefinitionError names the table row that failed to load.
type DefinitionError struct {
	Index int
	Name  string
	Err   error
}

func (e *DefinitionError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("events: definition #%d: %v", e.Index+1, e.Err)
	}
	return fmt.Sprintf("events: definition %q: %v", e.Name, e.Err)
}

func (e *DefinitionError) Unwrap() error { return e.Err }

// Definition is the authored (YAML) and exported (JSON) shape of one event
// definition. Only the fields of its pattern may be set.
type Definition struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type" json:"type"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Source      string `yaml:"source,omitempty" json:"source,omitempty"`

	Pattern     string `yaml:"pattern" json:"pattern"`
	Weekday     string `yaml:"weekday,omitempty" json:"weekday,omitempty"`
	Month       int    `yaml:"month,omitempty" json:"month,omitempty"`
	Days        []int  `yaml:"days,omitempty" json:"days,omitempty"`
	SeasonStart string `yaml:"season_start,omitempty" json:"season_start,omitempty"`
	SeasonEnd   string `yaml:"season_end,omitempty" json:"season_end,omitempty"`

	StartYear int      `yaml:"start_year,omitempty" json:"start_year"`
	EndYear   int      `yaml:"end_year,omitempty" json:"end_year"`
	SkipYears []int    `yaml:"skip_years,omitempty" json:"skip_years,omitempty"`
	Boost     *float64 `yaml:"boost" json:"boost"`
	Time      string   `yaml:"time,omitempty" json:"time,omitempty"`
	Location  string   `yaml:"location,omitempty" json:"location,omitempty"`
}

type tableDoc struct {
	Events []Definition `yaml:"events"`
}

// Table is a loaded, validated list of event definitions in authored order.
type Table struct {
	Definitions []model.EventDefinition
}

// Len returns the number of definitions.
func (t *Table) Len() int { return len(t.Definitions) }

// Lookup finds a definition by name.
func (t *Table) Lookup(name string) (model.EventDefinition, bool) {
	for _, d := range t.Definitions {
		if d.Name == name {
			return d, true
		}
	}
	return model.EventDefinition{}, false
}

// DefaultTable parses the built-in Charlottesville table.
func DefaultTable(span model.YearRange) (*Table, error) {
	return ParseTable(defaultTableYAML, span)
}

// LoadTable reads a YAML table from path. An empty path selects the
// built-in table.
func LoadTable(path string, span model.YearRange) (*Table, error) {
	if path == "" {
		return DefaultTable(span)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("events: read table: %w", err)
	}
	return ParseTable(data, span)
}

// ParseTable decodes and validates a YAML table. Missing start/end years
// default to span. Every malformed definition is reported; the table is
// rejected if any definition fails.
func ParseTable(data []byte, span model.YearRange) (*Table, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc tableDoc
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("events: parse table: %w", err)
	}

	return NewTable(doc.Events, span)
}

// NewTable validates authored definitions and converts them to the typed model.
func NewTable(docs []Definition, span model.YearRange) (*Table, error) {
	var errs []error
	seen := make(map[string]bool, len(docs))
	defs := make([]model.EventDefinition, 0, len(docs))

	for i, doc := range docs {
		def, err := convert(doc, span)
		if err == nil && seen[def.Name] {
			err = ErrDuplicateName
		}
		if err != nil {
			errs = append(errs, &DefinitionError{Index: i, Name: strings.TrimSpace(doc.Name), Err: err})
			continue
		}
		seen[def.Name] = true
		defs = append(defs, def)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &Table{Definitions: defs}, nil
}

func convert(doc Definition, span model.YearRange) (model.EventDefinition, error) {
	def := model.EventDefinition{
		Name:        strings.TrimSpace(doc.Name),
		Category:    model.Category(strings.ToLower(strings.TrimSpace(doc.Type))),
		Description: doc.Description,
		Location:    doc.Location,
		Source:      doc.Source,
		Time:        doc.Time,
		Active:      model.YearRange{Start: doc.StartYear, End: doc.EndYear},
		SkipYears:   slices.Clone(doc.SkipYears),
	}

	if def.Name == "" {
		return def, invalid("name is required")
	}
	if !def.Category.Valid() {
		return def, invalid("unknown type %q", doc.Type)
	}
	if doc.Boost == nil {
		return def, invalid("boost is required")
	}
	def.Boost = *doc.Boost
	if def.Boost < 0 || def.Boost > 1 {
		return def, invalid("boost %v outside [0,1]", def.Boost)
	}

	if def.Active.Start == 0 {
		def.Active.Start = span.Start
	}
	if def.Active.End == 0 {
		def.Active.End = span.End
	}
	if def.Active.Start > def.Active.End {
		return def, invalid("start_year %d is after end_year %d", def.Active.Start, def.Active.End)
	}
	slices.Sort(def.SkipYears)

	if def.Location == "" {
		def.Location = defaultLocation
	}
	if def.Source == "" {
		def.Source = defaultSource
	}

	p, err := parsePattern(doc)
	if err != nil {
		return def, err
	}
	def.Pattern = p
	return def, nil
}

func parsePattern(doc Definition) (model.Pattern, error) {
	tag := strings.ToLower(strings.TrimSpace(doc.Pattern))

	switch {
	case tag == "":
		return nil, fmt.Errorf("%w: pattern is required", ErrUnknownPattern)

	case tag == string(model.KindFixedDates):
		if err := forbid(doc, "weekday", "season_start", "season_end"); err != nil {
			return nil, err
		}
		return parseFixed(doc)

	case tag == string(model.KindWeeklyWeekday):
		wd, err := ParseWeekday(doc.Weekday)
		if err != nil {
			return nil, err
		}
		return parseWeekly(doc, wd)

	case tag == string(model.KindFirstWeekdayOfMonth):
		wd, err := ParseWeekday(doc.Weekday)
		if err != nil {
			return nil, err
		}
		return parseFirst(doc, wd)

	case strings.HasPrefix(tag, "every_"):
		wd, err := shorthandWeekday(doc, strings.TrimPrefix(tag, "every_"))
		if err != nil {
			return nil, err
		}
		return parseWeekly(doc, wd)

	case strings.HasPrefix(tag, "first_"):
		wd, err := shorthandWeekday(doc, strings.TrimPrefix(tag, "first_"))
		if err != nil {
			return nil, err
		}
		return parseFirst(doc, wd)
	}

	return nil, fmt.Errorf("%w %q", ErrUnknownPattern, doc.Pattern)
}

// shorthandWeekday resolves the weekday in tags like "every_friday". A
// separate weekday field must agree with it.
func shorthandWeekday(doc Definition, name string) (time.Weekday, error) {
	wd, err := ParseWeekday(name)
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrUnknownPattern, doc.Pattern)
	}
	if doc.Weekday != "" {
		other, err := ParseWeekday(doc.Weekday)
		if err != nil {
			return 0, err
		}
		if other != wd {
			return 0, invalid("pattern %q conflicts with weekday %q", doc.Pattern, doc.Weekday)
		}
	}
	return wd, nil
}

func parseFixed(doc Definition) (model.Pattern, error) {
	if doc.Month < 1 || doc.Month > 12 {
		return nil, invalid("month %d outside 1..12", doc.Month)
	}
	if len(doc.Days) == 0 {
		return nil, invalid("fixed_dates needs at least one day")
	}
	seen := make(map[int]bool, len(doc.Days))
	for _, d := range doc.Days {
		if d < 1 || d > 31 {
			return nil, invalid("day %d outside 1..31", d)
		}
		if seen[d] {
			return nil, invalid("day %d listed twice", d)
		}
		seen[d] = true
	}
	return model.FixedDates{Month: time.Month(doc.Month), Days: slices.Clone(doc.Days)}, nil
}

func parseWeekly(doc Definition, wd time.Weekday) (model.Pattern, error) {
	if err := forbid(doc, "month", "days"); err != nil {
		return nil, err
	}
	start, err := ParseMonthDay(doc.SeasonStart)
	if err != nil {
		return nil, invalid("season_start: %v", err)
	}
	end, err := ParseMonthDay(doc.SeasonEnd)
	if err != nil {
		return nil, invalid("season_end: %v", err)
	}
	return model.WeeklyWeekday{Weekday: wd, SeasonStart: start, SeasonEnd: end}, nil
}

func parseFirst(doc Definition, wd time.Weekday) (model.Pattern, error) {
	if err := forbid(doc, "month", "days", "season_start", "season_end"); err != nil {
		return nil, err
	}
	return model.FirstWeekdayOfMonth{Weekday: wd}, nil
}

// forbid rejects pattern parameters that do not belong to the chosen pattern.
func forbid(doc Definition, fields ...string) error {
	set := map[string]bool{
		"weekday":      doc.Weekday != "",
		"month":        doc.Month != 0,
		"days":         len(doc.Days) > 0,
		"season_start": doc.SeasonStart != "",
		"season_end":   doc.SeasonEnd != "",
	}
	for _, f := range fields {
		if set[f] {
			return invalid("field %s does not apply to pattern %q", f, doc.Pattern)
		}
	}
	return nil
}

// ParseWeekday accepts full or three-letter English weekday names.
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		full := strings.ToLower(wd.String())
		if name == full || name == full[:3] {
			return wd, nil
		}
	}
	return 0, invalid("unknown weekday %q", s)
}

// ParseMonthDay parses "MM-DD". The day must exist in at least a leap year.
func ParseMonthDay(s string) (model.MonthDay, error) {
	mStr, dStr, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return model.MonthDay{}, fmt.Errorf("want MM-DD, got %q", s)
	}
	m, err1 := strconv.Atoi(mStr)
	d, err2 := strconv.Atoi(dStr)
	if err1 != nil || err2 != nil {
		return model.MonthDay{}, fmt.Errorf("want MM-DD, got %q", s)
	}
	md := model.MonthDay{Month: time.Month(m), Day: d}
	if _, ok := md.In(2000); !ok {
		return model.MonthDay{}, fmt.Errorf("no such date %q", s)
	}
	return md, nil
}

// Describe converts a typed definition back to its authored shape, using the
// shorthand pattern tags.
func Describe(def model.EventDefinition) Definition {
	boost := def.Boost
	doc := Definition{
		Name:        def.Name,
		Type:        string(def.Category),
		Description: def.Description,
		Source:      def.Source,
		Pattern:     Tag(def.Pattern),
		StartYear:   def.Active.Start,
		EndYear:     def.Active.End,
		SkipYears:   slices.Clone(def.SkipYears),
		Boost:       &boost,
		Time:        def.Time,
		Location:    def.Location,
	}
	switch p := def.Pattern.(type) {
	case model.FixedDates:
		doc.Month = int(p.Month)
		doc.Days = slices.Clone(p.Days)
	case model.WeeklyWeekday:
		doc.SeasonStart = p.SeasonStart.String()
		doc.SeasonEnd = p.SeasonEnd.String()
	}
	return doc
}

// Tag returns the shorthand tag of a pattern: "fixed_dates",
// "every_friday" or "first_friday".
func Tag(p model.Pattern) string {
	switch p := p.(type) {
	case model.FixedDates:
		return string(model.KindFixedDates)
	case model.WeeklyWeekday:
		return "every_" + weekdayName(p.Weekday)
	case model.FirstWeekdayOfMonth:
		return "first_" + weekdayName(p.Weekday)
	}
	return "unknown"
}

func weekdayName(wd time.Weekday) string {
	return strings.ToLower(wd.String())
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDefinition, fmt.Sprintf(format, args...))
}
