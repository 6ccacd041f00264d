package grade

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

var reportCardCSVHeader = []string{
	"subject_id", "class_id", "quarter1", "quarter2", "quarter3", "quarter4", "final_average", "status",
}

func csvMark(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

// WriteCSV writes one row per record. Marks use a period and two decimals; absent marks are empty.
func (rc ReportCard) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(reportCardCSVHeader); err != nil {
		return errors.Wrap(err, "writing report card header")
	}
	for _, rec := range rc.Records {
		row := []string{
			rec.SubjectID, rec.ClassID,
			csvMark(rec.Quarter1), csvMark(rec.Quarter2), csvMark(rec.Quarter3), csvMark(rec.Quarter4),
			csvMark(rec.FinalAverage), string(rec.Status),
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrapf(err, "writing report card row %s", rec.ID)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing report card")
}
