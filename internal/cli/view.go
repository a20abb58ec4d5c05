package cli

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/roach88/opsql"
)

// resultView is the CLI rendering of one statement result.
type resultView struct {
	RowsAffected int64          `json:"rows_affected"`
	InsertID     *int64         `json:"insert_id"`
	Metadata     []opsql.Column `json:"metadata"`
	Rows         opsql.Rows     `json:"rows"`
}

func newResultView(res opsql.QueryResult) resultView {
	v := resultView{
		RowsAffected: res.RowsAffected,
		Metadata:     res.Metadata,
		Rows:         res.Rows,
	}
	if v.Metadata == nil {
		v.Metadata = []opsql.Column{}
	}
	if res.InsertID.Valid {
		id := res.InsertID.Int64
		v.InsertID = &id
	}
	return v
}

// String renders the result as tab-separated rows followed by a summary.
func (v resultView) String() string {
	var b strings.Builder
	if len(v.Metadata) > 0 {
		names := make([]string, len(v.Metadata))
		for i, c := range v.Metadata {
			names[i] = c.Name
		}
		b.WriteString(strings.Join(names, "\t"))
		b.WriteByte('\n')

		for _, row := range v.Rows.All() {
			cells := make([]string, row.Len())
			for i, val := range row.Values() {
				cells[i] = formatValue(val)
			}
			b.WriteString(strings.Join(cells, "\t"))
			b.WriteByte('\n')
		}
		b.WriteString("(" + plural(v.Rows.Len(), "row") + ")\n")
	}

	insertID := "NULL"
	if v.InsertID != nil {
		insertID = strconv.FormatInt(*v.InsertID, 10)
	}
	b.WriteString("rows affected: " + strconv.FormatInt(v.RowsAffected, 10) + ", insert id: " + insertID)
	return b.String()
}

// batchView is the CLI rendering of a committed batch.
type batchView struct {
	Commands     int          `json:"commands"`
	RowsAffected int64        `json:"rows_affected"`
	Results      []resultView `json:"results"`
}

func newBatchView(br opsql.BatchResult) batchView {
	v := batchView{
		Commands:     len(br.Results),
		RowsAffected: br.RowsAffected,
		Results:      make([]resultView, len(br.Results)),
	}
	for i, res := range br.Results {
		v.Results[i] = newResultView(res)
	}
	return v
}

// String renders a one-line summary.
func (v batchView) String() string {
	return "batch committed: " + plural(v.Commands, "command") +
		", rows affected: " + strconv.FormatInt(v.RowsAffected, 10)
}

// formatValue renders a cell for text output.
func formatValue(v opsql.Value) string {
	switch v := v.(type) {
	case opsql.Int:
		return strconv.FormatInt(int64(v), 10)
	case opsql.Float:
		return strconv.FormatFloat(float64(v), 'g', -1, 64)
	case opsql.Text:
		return string(v)
	case opsql.Blob:
		return "x'" + hex.EncodeToString(v) + "'"
	default:
		return "NULL"
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return strconv.Itoa(n) + " " + word + "s"
}
