// Package markdown renders rectangular cell arrays as GitHub-flavoured Markdown tables.
package markdown

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Alignment selects where the separator line puts its colons.
type Alignment string

const (
	AlignNone   Alignment = "none"
	AlignLeft   Alignment = "left"
	AlignRight  Alignment = "right"
	AlignCenter Alignment = "center"
)

// minWidth is the narrowest column the separator dashes allow.
const minWidth = 3

var (
	// ErrInvalidAlignment is returned for alignments other than left, right, center and none.
	ErrInvalidAlignment = errors.New("align must be 'left', 'right', 'center' or 'none'")

	// ErrEmptyTable is returned when there is no header row.
	ErrEmptyTable = errors.New("table needs at least a header row")

	// ErrNotRectangular is returned when rows differ in length.
	ErrNotRectangular = errors.New("table rows must all have the same length")
)

// ParseAlignment maps a case-insensitive name to an Alignment.
// The empty string means AlignNone.
func ParseAlignment(s string) (Alignment, error) {
	switch a := Alignment(strings.ToLower(strings.TrimSpace(s))); a {
	case "", AlignNone:
		return AlignNone, nil
	case AlignLeft, AlignRight, AlignCenter:
		return a, nil
	default:
		return "", fmt.Errorf("%w (got %q)", ErrInvalidAlignment, s)
	}
}

type borders struct {
	left, center, right string
}

func (a Alignment) borders() borders {
	switch a {
	case AlignCenter:
		return borders{"|:", ":|:", ":|"}
	case AlignLeft:
		return borders{"|:", " |:", " |"}
	case AlignRight:
		return borders{"| ", ":| ", ":|"}
	default:
		return borders{"| ", " | ", " |"}
	}
}

// Render formats rows as a Markdown table. The first row is the header.
// Every cell is stringified with fmt.Sprint and centred in its column; a
// column is as wide as its widest cell and never narrower than three.
// Each body line ends with a newline.
func Render(rows [][]any, align string) (string, error) {
	alignment, err := ParseAlignment(align)
	if err != nil {
		return "", err
	}

	cells, err := stringify(rows)
	if err != nil {
		return "", err
	}

	widths := columnWidths(cells)
	for _, line := range cells {
		for i := range line {
			line[i] = center(line[i], widths[i])
		}
	}

	var b strings.Builder

	b.WriteString(row(cells[0]))
	b.WriteByte('\n')

	bd := alignment.borders()
	dashes := make([]string, len(widths))
	for i, w := range widths {
		dashes[i] = strings.Repeat("-", w)
	}
	b.WriteString(bd.left + strings.Join(dashes, bd.center) + bd.right)
	b.WriteByte('\n')

	for _, line := range cells[1:] {
		b.WriteString(row(line))
		b.WriteByte('\n')
	}

	return b.String(), nil
}

func stringify(rows [][]any) ([][]string, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyTable
	}

	n := len(rows[0])
	out := make([][]string, len(rows))
	for r, line := range rows {
		if len(line) != n {
			return nil, fmt.Errorf("%w: row %d has %d cells, header has %d", ErrNotRectangular, r, len(line), n)
		}
		out[r] = make([]string, n)
		for c, v := range line {
			out[r][c] = fmt.Sprint(v)
		}
	}
	return out, nil
}

func columnWidths(cells [][]string) []int {
	widths := make([]int, len(cells[0]))
	for i := range widths {
		widths[i] = minWidth
	}
	for _, line := range cells {
		for i, s := range line {
			if n := utf8.RuneCountInString(s); n > widths[i] {
				widths[i] = n
			}
		}
	}
	return widths
}

func row(cells []string) string {
	return "| " + strings.Join(cells, " | ") + " |"
}

// center pads s with spaces to width runes. When the padding is odd the
// extra space goes left only if width is odd too, which is how Python's
// str.center splits it.
func center(s string, width int) string {
	marg := width - utf8.RuneCountInString(s)
	if marg <= 0 {
		return s
	}
	left := marg/2 + (marg & width & 1)
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", marg-left)
}
