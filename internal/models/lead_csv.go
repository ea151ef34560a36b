package models

import (
	"encoding/csv"
	"io"
)

// WriteCSV writes a LeadColumns header row followed by one row per lead.
func WriteCSV(out io.Writer, leads []Lead) error {
	writer := csv.NewWriter(out)
	if err := writer.Write(LeadColumns); err != nil {
		return err
	}
	for _, lead := range leads {
		if err := writer.Write(lead.Record()); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
