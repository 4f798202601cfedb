package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/editor"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/model"
)

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatRect(r model.Rect) string {
	return fmt.Sprintf("(%.0f,%.0f %.0fx%.0f)", r.X, r.Y, r.Width, r.Height)
}

func imageURL(ref *model.ImageRef) string {
	if ref == nil {
		return "-"
	}
	if ref.URL != "" {
		return ref.URL
	}
	return ref.ID
}

// renderRegions 渲染当前上下文的区域列表，选中项以 * 标记
func renderRegions(s *model.Session, mode model.EditMode, selected string) string {
	var b strings.Builder
	regions := s.Regions(mode)
	fmt.Fprintf(&b, "%s %s, %d regions, status %s\n",
		color.New(color.Bold).Sprint("session"), s.ID, len(regions), s.Status)
	for _, r := range regions {
		mark := " "
		if r.ID == selected {
			mark = color.CyanString("*")
		}
		text := r.Text(mode)
		if text == "" {
			text = color.HiBlackString("<empty>")
		}
		line := fmt.Sprintf("%s %-10s %-24s %s", mark, r.ID, formatRect(r.BoundingBox), text)
		if r.IsSizeModified {
			line += color.YellowString(" [resized]")
		}
		if r.TextCategory != "" {
			line += color.MagentaString(" #" + r.TextCategory)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func describeCommand(c editor.Command) string {
	switch c.Kind {
	case editor.KindMove, editor.KindResize:
		return fmt.Sprintf("%s %s %s -> %s", c.Kind, c.RegionID, formatRect(c.OldBox), formatRect(c.NewBox))
	case editor.KindAdd, editor.KindDelete:
		return fmt.Sprintf("%s %s", c.Kind, c.RegionID)
	case editor.KindEditText:
		return fmt.Sprintf("%s %s %q -> %q", c.Kind, c.RegionID, c.OldText, c.NewText)
	case editor.KindGenerateText:
		return string(c.Kind)
	}
	return string(c.Kind)
}

// renderHistory 列出 ledger 中的命令，当前位置以 > 标记，之后的条目已被撤销
func renderHistory(l *editor.Ledger, mode model.EditMode) string {
	var b strings.Builder
	cmds := l.Commands()
	fmt.Fprintf(&b, "%s %s: %d/%d\n", color.New(color.Bold).Sprint("history"), mode, l.Index()+1, l.Max())
	if len(cmds) == 0 {
		b.WriteString(color.HiBlackString("  (empty)") + "\n")
		return b.String()
	}
	for i, c := range cmds {
		mark := " "
		if i == l.Index() {
			mark = ">"
		}
		fmt.Fprintf(&b, "%s %2d %s %s\n", mark, i+1, c.Timestamp.Format("15:04:05"), describeCommand(c))
	}
	return b.String()
}
