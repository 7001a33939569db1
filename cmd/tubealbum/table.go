package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/samber/lo"

	"github.com/handiism/tubealbum/internal/download"
	"github.com/handiism/tubealbum/internal/history"
	"github.com/handiism/tubealbum/internal/model"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func renderSummary(s download.Summary) string {
	rows := [][]string{
		{"Total", strconv.Itoa(s.Total)},
		{"Succeeded", strconv.Itoa(s.Succeeded)},
		{"Failed", strconv.Itoa(s.Failed)},
	}
	if s.Cancelled > 0 {
		rows = append(rows, []string{"Cancelled", strconv.Itoa(s.Cancelled)})
	}
	rows = append(rows, []string{"Elapsed", s.Elapsed.Round(time.Second).String()})
	if s.PlaylistPath != "" {
		rows = append(rows, []string{"Playlist", s.PlaylistPath})
	}
	return renderTable([]string{"Summary", ""}, rows, []columnAlignment{alignLeft, alignRight})
}

func renderFailures(failures []download.Failure) string {
	rows := lo.Map(failures, func(f download.Failure, _ int) []string {
		return []string{strconv.Itoa(f.Ref.Index), f.Ref.String(), string(f.Stage), f.Reason}
	})
	return renderTable([]string{"#", "Item", "Stage", "Reason"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft})
}

func renderItems(m *download.Manager) string {
	album := m.Album()
	rows := lo.Map(m.Items(), func(ref model.ItemRef, _ int) []string {
		return []string{strconv.Itoa(ref.Index), ref.ID, ref.URL}
	})
	title := fmt.Sprintf("%s - %s", album.Artist, album.Title)
	return title + "\n" + renderTable([]string{"#", "Video", "URL"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft})
}

func renderRuns(runs []history.Run) string {
	rows := lo.Map(runs, func(r history.Run, _ int) []string {
		result := fmt.Sprintf("%d/%d", r.Succeeded, r.Total)
		if r.FatalError != "" {
			result = "fatal"
		}
		album := r.Album
		if album == "" {
			album = r.PlaylistURL
		}
		return []string{shortID(r.ID), r.StartedAt.Local().Format("2006-01-02 15:04"), r.Artist, album, result}
	})
	return renderTable([]string{"Run", "Started", "Artist", "Album", "OK"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight})
}

func renderRunItems(items []history.Item) string {
	rows := lo.Map(items, func(it history.Item, _ int) []string {
		detail := it.Path
		if it.Status != model.StatusSuccess.String() {
			detail = it.Reason
		}
		return []string{strconv.Itoa(it.Position), it.ItemID, it.Status, it.Stage, detail}
	})
	return renderTable([]string{"#", "Video", "Status", "Stage", "Path / Reason"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
