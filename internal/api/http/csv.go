package httpapi

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rotisserie/eris"

	"github.com/i474232898/city-temps/internal/store"
)

// csvTimeLayout is the export timestamp format: wall clock, no zone, no sub-second.
const csvTimeLayout = "2006-01-02 15:04:05"

var csvHeader = []string{"ID", "City Name", "Temperature (°C)", "Created At", "Updated At"}

func (h *handlers) exportCSV(c *fiber.Ctx) error {
	records, err := h.store.List(c.UserContext(), "")
	if err != nil {
		return storageError(err)
	}

	var buf bytes.Buffer
	if err := writeCSV(&buf, records); err != nil {
		return storageError(err)
	}

	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="citytemps.csv"`)
	return c.Send(buf.Bytes())
}

// writeCSV serializes records, already ordered by recency descending, with
// the fixed header. A nil temperature becomes an empty cell.
func writeCSV(w io.Writer, records []store.CityTemp) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return eris.Wrap(err, "csv: write header")
	}
	for _, r := range records {
		temp := ""
		if r.Temperature != nil {
			temp = strconv.FormatFloat(*r.Temperature, 'f', -1, 64)
		}
		row := []string{
			strconv.FormatInt(r.ID, 10),
			r.CityName,
			temp,
			r.CreatedAt.Format(csvTimeLayout),
			r.UpdatedAt.Format(csvTimeLayout),
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "csv: write row")
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "csv: flush")
}
