package catalog

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/fleveque/heliassets/internal/model"
)

const noText = "[No text]"

// pageContent is everything read from one page's text layer.
type pageContent struct {
	Number int
	Text   string
	Rows   [][]string // cells per visual row, top to bottom
	Err    error
}

// readPages opens the PDF and reads every page. Per-page failures are stored
// on the page; only failing to open the file is returned as an error.
func readPages(ctx context.Context, path string, columnGap float64, logger *zap.Logger) ([]pageContent, error) {
	f, r, err := openPDF(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	numPages := r.NumPage()
	fonts := make(map[string]*pdf.Font)
	pages := make([]pageContent, 0, numPages)

	// PDF pages are 1-indexed.
	for i := 1; i <= numPages; i++ {
		pc := pageContent{Number: i}
		if err := ctx.Err(); err != nil {
			pc.Err = fmt.Errorf("page %d: %w", i, err)
			pages = append(pages, pc)
			continue
		}

		pc.Err = recoverParse(i, func() error {
			p := r.Page(i)
			if p.V.IsNull() {
				return nil
			}
			for _, name := range p.Fonts() {
				if _, ok := fonts[name]; !ok {
					font := p.Font(name)
					fonts[name] = &font
				}
			}

			text, err := p.GetPlainText(fonts)
			if err != nil {
				return fmt.Errorf("%w: page %d text: %v", model.ErrParse, i, err)
			}
			pc.Text = strings.TrimSpace(text)

			rows, err := p.GetTextByRow()
			if err != nil {
				return fmt.Errorf("%w: page %d rows: %v", model.ErrParse, i, err)
			}
			pc.Rows = rowsToCells(rows, columnGap)
			return nil
		})
		if pc.Err != nil {
			logger.Warn("page extraction failed", zap.Int("page", i), zap.Error(pc.Err))
		}
		pages = append(pages, pc)
	}
	return pages, nil
}

// openPDF opens path for reading. pdf.NewReader panics on some malformed trailers.
func openPDF(path string) (*os.File, *pdf.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", model.ErrFilesystem, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("%w: %v", model.ErrFilesystem, err)
	}

	// The file is ours to close on every failure, panics included.
	var r *pdf.Reader
	err = recoverParse(0, func() error {
		reader, openErr := pdf.NewReader(f, info.Size())
		if openErr != nil {
			return fmt.Errorf("%w: opening %s: %v", model.ErrParse, path, openErr)
		}
		r = reader
		return nil
	})
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return f, r, nil
}

// recoverParse turns a panic inside the PDF library into an ErrParse.
func recoverParse(page int, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if page > 0 {
				err = fmt.Errorf("%w: page %d: %v", model.ErrParse, page, rec)
			} else {
				err = fmt.Errorf("%w: %v", model.ErrParse, rec)
			}
		}
	}()
	return fn()
}

// rowsToCells sorts rows top to bottom and splits each into cells.
func rowsToCells(rows pdf.Rows, columnGap float64) [][]string {
	sorted := make([]*pdf.Row, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			sorted = append(sorted, row)
		}
	}
	// PDF y grows upwards, so the top row has the largest position.
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position > sorted[j].Position })

	out := make([][]string, 0, len(sorted))
	for _, row := range sorted {
		if cells := splitCells(row.Content, columnGap); len(cells) > 0 {
			out = append(out, cells)
		}
	}
	return out
}

// splitCells joins the glyph runs of one row into cells. A horizontal gap wider
// than columnGap starts a new cell; a smaller gap that still looks like a word
// break becomes a space.
func splitCells(texts []pdf.Text, columnGap float64) []string {
	if len(texts) == 0 {
		return nil
	}
	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	var cells []string
	var cur strings.Builder
	flush := func() {
		if s := strings.Join(strings.Fields(cur.String()), " "); s != "" {
			cells = append(cells, s)
		}
		cur.Reset()
	}

	prevEnd := sorted[0].X
	for i, t := range sorted {
		if i > 0 {
			gap := t.X - prevEnd
			switch {
			case gap > columnGap:
				flush()
			case gap > wordGap(t):
				cur.WriteByte(' ')
			}
		}
		cur.WriteString(t.S)
		if end := t.X + t.W; end > prevEnd || i == 0 {
			prevEnd = end
		}
	}
	flush()
	return cells
}

// wordGap is the smallest gap treated as a space: a fifth of the font size.
func wordGap(t pdf.Text) float64 {
	if t.FontSize > 0 {
		return t.FontSize * 0.2
	}
	return 1
}

// findTables groups consecutive rows with at least two cells. A single
// multi-cell row on its own is usually a header or footer, not a table.
func findTables(rows [][]string) [][][]string {
	var tables [][][]string
	var run [][]string
	end := func() {
		if len(run) >= 2 {
			tables = append(tables, run)
		}
		run = nil
	}
	for _, row := range rows {
		if len(row) >= 2 {
			run = append(run, row)
			continue
		}
		end()
	}
	end()
	return tables
}

// renderText produces all-text.txt: one "=== PAGE n ===" block per page.
func renderText(pages []pageContent) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		text := p.Text
		if text == "" {
			text = noText
		}
		parts = append(parts, fmt.Sprintf("\n=== PAGE %d ===\n%s", p.Number, text))
	}
	return strings.Join(parts, "\n") + "\n"
}

// renderTables produces tables.txt and returns how many tables it contains.
func renderTables(pages []pageContent) (string, int) {
	var b strings.Builder
	total := 0
	for _, p := range pages {
		tables := findTables(p.Rows)
		if len(tables) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n=== PAGE %d ===\n", p.Number)
		for j, table := range tables {
			fmt.Fprintf(&b, "\n--- TABLE %d ---\n", j+1)
			for _, row := range table {
				b.WriteString(strings.Join(row, " | "))
				b.WriteByte('\n')
			}
		}
		total += len(tables)
	}
	return b.String(), total
}
