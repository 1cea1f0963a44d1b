package models

// Required dataset columns
const (
	ColumnText      = "text"
	ColumnSentiment = "sentiment"
	ColumnTopics    = "topics"
)

// Record represents one row of an inspected dataset.
// A record is identified by its position in the dataset, not by a stored ID.
type Record struct {
	Text      string   `json:"text"`
	Sentiment string   `json:"sentiment"`
	Topics    string   `json:"topics"`
	Extra     []string `json:"extra,omitempty"` // Aligned with Dataset.ExtraColumns
}

// Clone returns a deep copy of the record
func (r Record) Clone() Record {
	if r.Extra != nil {
		r.Extra = append([]string(nil), r.Extra...)
	}
	return r
}

// Dataset is an ordered, immutable sequence of records loaded from a CSV file.
// Columns keeps the source column order so exports round-trip the schema.
// Header holds the column names as uploaded and is what exports write; the
// required columns appear in Columns under their canonical names.
type Dataset struct {
	Columns      []string `json:"columns"`
	Header       []string `json:"-"`
	ExtraColumns []string `json:"extra_columns,omitempty"`
	Records      []Record `json:"records"`
}

// Len returns the number of records
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// At returns the record at position i and whether it exists
func (d *Dataset) At(i int) (Record, bool) {
	if d == nil || i < 0 || i >= len(d.Records) {
		return Record{}, false
	}
	return d.Records[i], true
}

// Head returns up to n leading records
func (d *Dataset) Head(n int) []Record {
	if d == nil || n <= 0 {
		return []Record{}
	}
	if n > len(d.Records) {
		n = len(d.Records)
	}
	return d.Records[:n]
}

// Clone returns a deep copy of the dataset
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	out := &Dataset{
		Columns:      append([]string(nil), d.Columns...),
		Header:       append([]string(nil), d.Header...),
		ExtraColumns: append([]string(nil), d.ExtraColumns...),
		Records:      make([]Record, len(d.Records)),
	}
	for i, rec := range d.Records {
		out.Records[i] = rec.Clone()
	}
	return out
}

// ExportHeader returns the header row written on export
func (d *Dataset) ExportHeader() []string {
	if len(d.Header) == len(d.Columns) {
		return d.Header
	}
	return d.Columns
}

// Row renders a record as a CSV row following the dataset column order.
// Only the first column carrying a required name maps to the record field.
func (d *Dataset) Row(rec Record) []string {
	row := make([]string, len(d.Columns))
	var hasText, hasSentiment, hasTopics bool
	extra := 0
	for i, col := range d.Columns {
		switch {
		case col == ColumnText && !hasText:
			row[i] = rec.Text
			hasText = true
		case col == ColumnSentiment && !hasSentiment:
			row[i] = rec.Sentiment
			hasSentiment = true
		case col == ColumnTopics && !hasTopics:
			row[i] = rec.Topics
			hasTopics = true
		default:
			if extra < len(rec.Extra) {
				row[i] = rec.Extra[extra]
			}
			extra++
		}
	}
	return row
}

// IndexedRecord is a record together with its current position
type IndexedRecord struct {
	Index int `json:"index"`
	Record
}

// Indexed pairs each record with its position
func Indexed(records []Record) []IndexedRecord {
	out := make([]IndexedRecord, len(records))
	for i, rec := range records {
		out[i] = IndexedRecord{Index: i, Record: rec}
	}
	return out
}
