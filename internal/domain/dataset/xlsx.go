package dataset

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"
)

// loadXLSX extracts the first worksheet of a .xlsx workbook into a Dataset.
// The first row is treated as the header. Only the pieces of the OOXML
// format needed for plain tabular data are handled: shared strings, inline
// strings and raw values.
func (l *loader) loadXLSX(name string, data []byte) (*Dataset, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}

	shared := parseSharedStrings(readZipFile(zr, "xl/sharedStrings.xml"))

	sheetPath := firstSheetPath(zr)
	sheetXML := readZipFile(zr, sheetPath)
	if len(sheetXML) == 0 {
		return nil, fmt.Errorf("%w: no worksheet found", ErrMalformedInput)
	}

	rows, err := parseSheetRows(sheetXML, shared)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}

	header := rows[0]
	body := rows[1:]
	if l.maxRows > 0 && len(body) > l.maxRows {
		body = body[:l.maxRows]
	}
	return New(name, header, body), nil
}

// firstSheetPath resolves the first sheet's worksheet part via the workbook
// relationships, falling back to the conventional sheet1 location.
func firstSheetPath(zr *zip.Reader) string {
	type wbSheet struct {
		RID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	}
	var workbook struct {
		Sheets []wbSheet `xml:"sheets>sheet"`
	}
	_ = xml.Unmarshal(readZipFile(zr, "xl/workbook.xml"), &workbook)

	var rels struct {
		Rels []struct {
			ID     string `xml:"Id,attr"`
			Target string `xml:"Target,attr"`
		} `xml:"Relationship"`
	}
	_ = xml.Unmarshal(readZipFile(zr, "xl/_rels/workbook.xml.rels"), &rels)

	if len(workbook.Sheets) > 0 {
		for _, rel := range rels.Rels {
			if rel.ID == workbook.Sheets[0].RID {
				target := strings.TrimPrefix(rel.Target, "/")
				if !strings.HasPrefix(target, "xl/") {
					target = path.Join("xl", target)
				}
				return target
			}
		}
	}
	return "xl/worksheets/sheet1.xml"
}

// parseSharedStrings collects the concatenated text of each <si> entry.
func parseSharedStrings(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	var sst struct {
		Items []struct {
			Text string   `xml:"t"`
			Runs []string `xml:"r>t"`
		} `xml:"si"`
	}
	if err := xml.Unmarshal(data, &sst); err != nil {
		return nil
	}
	out := make([]string, len(sst.Items))
	for i, item := range sst.Items {
		if item.Text != "" {
			out[i] = item.Text
			continue
		}
		out[i] = strings.Join(item.Runs, "")
	}
	return out
}

type xlsxCell struct {
	Ref    string `xml:"r,attr"`
	Type   string `xml:"t,attr"`
	Value  string `xml:"v"`
	Inline string `xml:"is>t"`
}

type xlsxRow struct {
	Cells []xlsxCell `xml:"c"`
}

// parseSheetRows turns a worksheet part into row-major string cells, mapping
// cell references like "C3" to zero-based column indices.
func parseSheetRows(data []byte, shared []string) ([][]string, error) {
	var sheet struct {
		Rows []xlsxRow `xml:"sheetData>row"`
	}
	if err := xml.Unmarshal(data, &sheet); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, xr := range sheet.Rows {
		width := 0
		for _, c := range xr.Cells {
			if idx := columnIndex(c.Ref); idx+1 > width {
				width = idx + 1
			}
		}
		row := make([]string, width)
		for _, c := range xr.Cells {
			idx := columnIndex(c.Ref)
			row[idx] = cellText(c, shared)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func cellText(c xlsxCell, shared []string) string {
	switch c.Type {
	case "s":
		var i int
		if _, err := fmt.Sscanf(c.Value, "%d", &i); err == nil && i >= 0 && i < len(shared) {
			return shared[i]
		}
		return ""
	case "inlineStr":
		return c.Inline
	case "b":
		if c.Value == "1" {
			return "true"
		}
		return "false"
	default:
		return c.Value
	}
}

// columnIndex converts the letter prefix of a cell reference to a zero-based
// column index ("A" -> 0, "AB" -> 27).
func columnIndex(ref string) int {
	idx := 0
	for _, r := range ref {
		if r < 'A' || r > 'Z' {
			break
		}
		idx = idx*26 + int(r-'A') + 1
	}
	if idx == 0 {
		return 0
	}
	return idx - 1
}

func readZipFile(zr *zip.Reader, name string) []byte {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil
		}
		return data
	}
	return nil
}
