package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// Output — форматирование результатов команд.
//
// Данные идут в stdout (таблица или JSON), служебные сообщения —
// в stderr, чтобы `outreach ... --json | jq` работал без фильтрации.
type Output struct {
	jsonMode bool
	data     io.Writer
	msg      io.Writer
}

// NewOutput создаёт Output. При jsonMode=true данные выводятся в JSON.
func NewOutput(jsonMode bool) *Output {
	return &Output{
		jsonMode: jsonMode,
		data:     os.Stdout,
		msg:      os.Stderr,
	}
}

// Print выводит данные в выбранном режиме.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table выводит таблицу через tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Fprintln(o.msg, "(no results)")
		return
	}

	tw := tabwriter.NewWriter(o.data, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	sep := make([]string, len(headers))
	for i, h := range headers {
		sep[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(sep, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

// JSON выводит данные в JSON с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.data)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(o.msg, "Error: encode output:", err)
	}
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(text string) {
	fmt.Fprintln(o.msg, text)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(text string) {
	fmt.Fprintln(o.msg, "Error:", text)
}
