package services

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"hygiene-log-backend/internal/models"

	"github.com/go-pdf/fpdf"
)

const (
	formMargin    = 10.0 // mm
	formRowHeight = 8.0
	maxSessions   = 8
)

// BuildObservationPDF renders the direct-observation form: a header grid of
// facility fields followed by one observation session per calendar day
// (capped at maxSessions), each with a row per timing showing whether the
// moment occurred and which actions were taken.
func BuildObservationPDF(info FacilityInfo, records []*models.HygieneRecord) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, formMargin)
	pdf.AddPage()
	pageW, pageH := pdf.GetPageSize()

	// Title block
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Text(pageW/2-pdf.GetStringWidth("Hand Hygiene Direct Observation Form")/2, 20, "Hand Hygiene Direct Observation Form")
	pdf.SetFont("Helvetica", "", 10)
	pdf.Text(pageW/2-pdf.GetStringWidth("Observation Form")/2, 28, "Observation Form")

	y := drawHeaderFields(pdf, info, 35, pageW)
	drawObservationTable(pdf, records, y+10, pageW, pageH)

	// Footer
	pdf.SetFont("Helvetica", "", 8)
	footer := "Adapted from the WHO observation form"
	pdf.Text(pageW-formMargin-pdf.GetStringWidth(footer), pageH-formMargin, footer)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render observation form: %w", err)
	}
	return buf.Bytes(), nil
}

// drawHeaderFields lays the ten header fields out in two columns with an
// underlined value slot each, returning the y below the block.
func drawHeaderFields(pdf *fpdf.Fpdf, info FacilityInfo, yStart, pageW float64) float64 {
	pdf.SetFont("Helvetica", "", 9)

	fields := []struct{ label, value string }{
		{"Facility:", info.FacilityName},
		{"Department:", info.Department},
		{"Ward:", info.Ward},
		{"Section:", info.Section},
		{"Period No:", info.PeriodNumber},
		{"Date (dd/mm/yy):", info.Date},
		{"Session No:", info.SessionNumber},
		{"Observer (initials):", info.Observer},
		{"Page No:", info.PageNumber},
		{"Address:", info.Address},
	}

	const lineHeight = 5.0
	xLeft := formMargin
	xRight := pageW/2 + 5

	for i, f := range fields {
		x := xLeft
		y := yStart + float64(i/2)*lineHeight
		if i%2 == 1 {
			x = xRight
		}

		pdf.Text(x, y, f.label)
		pdf.Line(x+32, y+1, x+70, y+1)
		if f.value != "" {
			pdf.Text(x+33, y, f.value)
		}
	}

	return yStart + float64((len(fields)+1)/2)*lineHeight + 5
}

// drawObservationTable renders header plus one block of five timing rows
// per session, sessions being records grouped by calendar date.
func drawObservationTable(pdf *fpdf.Fpdf, records []*models.HygieneRecord, yStart, pageW, pageH float64) {
	tableW := pageW - 2*formMargin
	colW := tableW / 4
	y := yStart

	drawTableHeader := func() {
		pdf.SetFillColor(237, 214, 191)
		pdf.Rect(formMargin, y, tableW, formRowHeight, "F")
		pdf.SetFont("Helvetica", "B", 7)
		headers := []string{"Opportunity", "Indication", "Hand hygiene", "Opportunity"}
		for i, h := range headers {
			pdf.Text(formMargin+float64(i)*colW+2, y+formRowHeight-2, h)
		}
		y += formRowHeight
	}
	drawTableHeader()

	sessions := groupByDate(records)
	if len(sessions) > maxSessions {
		sessions = sessions[:maxSessions]
	}

	pdf.SetFont("Helvetica", "", 7)
	for si, session := range sessions {
		for t := models.TimingBeforePatientContact; t <= models.TimingAfterSurroundings; t++ {
			if y+formRowHeight > pageH-formMargin-formRowHeight {
				pdf.AddPage()
				y = formMargin
				drawTableHeader()
				pdf.SetFont("Helvetica", "", 7)
			}

			var matched []*models.HygieneRecord
			for _, rec := range session {
				if rec.Timing == t {
					matched = append(matched, rec)
				}
			}

			pdf.SetFillColor(255, 245, 240)
			pdf.Rect(formMargin, y, tableW, formRowHeight, "F")

			pdf.Text(formMargin+2, y+formRowHeight-2, fmt.Sprintf("%d. %s", si+1, t.Name()))

			applicable := "[ ]"
			if len(matched) > 0 {
				applicable = "[x]"
			}
			pdf.Text(formMargin+colW+2, y+formRowHeight-2, applicable)

			pdf.Text(formMargin+2*colW+2, y+formRowHeight-2, actionCell(matched))

			pdf.SetDrawColor(179, 179, 179)
			pdf.Rect(formMargin, y, tableW, formRowHeight, "D")

			y += formRowHeight
		}
	}
}

// actionCell renders the hand-hygiene column: checked labels for the
// actions taken (at most two fit the cell), or the three unchecked options.
func actionCell(matched []*models.HygieneRecord) string {
	var taken []string
	for _, rec := range matched {
		if name, ok := models.ActionNames[rec.Action]; ok {
			taken = append(taken, "[x] "+name)
		}
	}
	if len(taken) == 0 {
		return "[ ] Hand sanitizer  [ ] Hand wash  [ ] No action"
	}
	if len(taken) > 2 {
		taken = taken[:2]
	}
	out := taken[0]
	if len(taken) > 1 {
		out += "  " + taken[1]
	}
	return out
}

// groupByDate buckets records into sessions by calendar day of the event
// timestamp, oldest day first.
func groupByDate(records []*models.HygieneRecord) [][]*models.HygieneRecord {
	byDate := make(map[string][]*models.HygieneRecord)
	for _, rec := range records {
		key := time.UnixMilli(rec.Timestamp).UTC().Format("2006-01-02")
		byDate[key] = append(byDate[key], rec)
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	sessions := make([][]*models.HygieneRecord, 0, len(dates))
	for _, d := range dates {
		sessions = append(sessions, byDate[d])
	}
	return sessions
}
