// Package export renders a completed modeling job's result as JSON, CSV or
// a multi-sheet Excel workbook.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"ytcomments/internal/modeling"
)

// WriteJSON streams the full result payload.
func WriteJSON(w io.Writer, result *modeling.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// WriteTopicsCSV writes one row per topic with its top terms.
func WriteTopicsCSV(w io.Writer, result *modeling.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"topic_id", "label", "document_count", "top_words", "word_weights"}); err != nil {
		return err
	}
	for _, t := range result.Topics {
		words := make([]string, len(t.Words))
		weights := make([]string, len(t.Words))
		for i, ww := range t.Words {
			words[i] = ww.Word
			weights[i] = strconv.FormatFloat(ww.Weight, 'f', 4, 64)
		}
		row := []string{
			strconv.Itoa(t.ID),
			t.Label,
			strconv.Itoa(t.DocumentCount),
			strings.Join(words, "|"),
			strings.Join(weights, "|"),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// maxDocumentRows bounds the documents sheet so huge corpora stay openable.
const maxDocumentRows = 5000

// WriteWorkbook writes an Excel workbook with summary, topics and documents
// sheets.
func WriteWorkbook(w io.Writer, result *modeling.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeSummarySheet(f, result); err != nil {
		return err
	}
	if err := writeTopicsSheet(f, result); err != nil {
		return err
	}
	if err := writeDocumentsSheet(f, result); err != nil {
		return err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	return f.Write(w)
}

func writeSummarySheet(f *excelize.File, result *modeling.Result) error {
	const sheet = "Summary"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	rows := [][]any{
		{"Job ID", result.JobID},
		{"Algorithm", strings.ToUpper(result.Algorithm)},
		{"Topics", result.NumTopics},
		{"Channels", strings.Join(result.Channels, ", ")},
		{"Total comments", result.TotalComments},
		{"Valid comments", result.ValidComments},
		{"Topic diversity", result.Diversity},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func writeTopicsSheet(f *excelize.File, result *modeling.Result) error {
	const sheet = "Topics"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	header := []any{"ID", "Label", "Documents", "Top words", "Representative comments"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, t := range result.Topics {
		words := make([]string, len(t.Words))
		for j, ww := range t.Words {
			words[j] = ww.Word
		}
		row := []any{
			t.ID,
			t.Label,
			t.DocumentCount,
			strings.Join(words, ", "),
			strings.Join(t.RepresentativeComments, "\n"),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func writeDocumentsSheet(f *excelize.File, result *modeling.Result) error {
	const sheet = "Documents"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	header := []any{"Index", "Channel", "Video", "Author", "Likes", "Dominant topic", "Probability"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	n := len(result.DocumentTopics)
	if n > maxDocumentRows {
		n = maxDocumentRows
	}
	for i := 0; i < n; i++ {
		dominant, prob := dominantTopic(result.DocumentTopics[i])
		row := []any{i, "", "", "", 0, dominant, prob}
		if i < len(result.Metadata) {
			m := result.Metadata[i]
			row[1] = m.Channel
			row[2] = m.VideoTitle
			row[3] = m.Author
			row[4] = m.Likes
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func dominantTopic(row []float64) (int, float64) {
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	if len(row) == 0 {
		return 0, 0
	}
	return best, row[best]
}

// Filename suggests a download name for the given format.
func Filename(jobID, format string) string {
	return fmt.Sprintf("topic-model-%s.%s", jobID, format)
}
