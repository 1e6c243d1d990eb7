package report

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/codebuildervaibhav/transcript-summarizer/internal/types"
)

var markdown = goldmark.New(
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// RenderHTML converts report content to an HTML fragment. Hard wraps keep
// one transcript segment per line.
func RenderHTML(content string) ([]byte, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(content), &buf); err != nil {
		return nil, fmt.Errorf("render report html: %w", err)
	}
	return buf.Bytes(), nil
}

const (
	summarySheet    = "Summary"
	transcriptSheet = "Transcript"
)

// WriteWorkbook writes an XLSX workbook with one sheet of chunk summaries and
// one sheet of timed segments.
func WriteWorkbook(w io.Writer, chunks []types.SummaryChunk, segments []types.Segment) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := setRow(f, summarySheet, 1, "Chunk", "Summary"); err != nil {
		return err
	}
	for i, c := range chunks {
		if err := setRow(f, summarySheet, i+2, c.Index, c.Text); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(transcriptSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := setRow(f, transcriptSheet, 1, "Start", "End", "Speaker", "Text"); err != nil {
		return err
	}
	for i, seg := range segments {
		err := setRow(f, transcriptSheet, i+2,
			FormatTimestamp(seg.Start), FormatTimestamp(seg.End), seg.Speaker, seg.Text)
		if err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values ...any) error {
	cell := "A" + strconv.Itoa(row)
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s!%s: %w", sheet, cell, err)
	}
	return nil
}
