package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/config"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/editor"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/model"
	"go.uber.org/zap"
)

var errNoSession = errors.New("no session open, use open or upload")

// API 编辑器客户端需要的服务端调用
type API interface {
	editor.Remote
	CreateSession(ctx context.Context, imagePath string) (*model.Session, error)
	GetSession(ctx context.Context, sessionID string) (*model.Session, error)
	Detect(ctx context.Context, sessionID string) (*model.Session, error)
}

type shell struct {
	api    API
	cfg    *config.EditorConfig
	logger *zap.Logger
	out    io.Writer
	editor *editor.Editor
	quit   bool
}

func newShell(api API, cfg *config.EditorConfig, logger *zap.Logger, out io.Writer) *shell {
	return &shell{
		api:    api,
		cfg:    cfg,
		logger: logger,
		out:    out,
	}
}

func (sh *shell) start(ctx context.Context, sessionID, imagePath string) error {
	switch {
	case imagePath != "":
		s, err := sh.api.CreateSession(ctx, imagePath)
		if err != nil {
			return err
		}
		return sh.load(s)
	case sessionID != "":
		s, err := sh.api.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		return sh.load(s)
	}
	return nil
}

// load 用服务端会话重建编辑器，历史清空
func (sh *shell) load(s *model.Session) error {
	e, err := editor.New(&editor.Config{
		Session:        s,
		MaxHistorySize: sh.cfg.MaxHistorySize,
		Remote:         sh.api,
		Logger:         sh.logger,
	})
	if err != nil {
		return err
	}
	sh.editor = e
	fmt.Fprintf(sh.out, "%s %s (%s, %d regions)\n",
		color.GreenString("opened"), s.ID, s.Status, len(s.TextRegions))
	return nil
}

func (sh *shell) current() (*editor.Editor, error) {
	if sh.editor == nil {
		return nil, errNoSession
	}
	return sh.editor, nil
}

func (sh *shell) prompt() string {
	if sh.editor == nil {
		return "labelctl> "
	}
	s := sh.editor.Session()
	return fmt.Sprintf("labelctl [%s %s]> ", shortID(s.ID), color.CyanString(string(sh.editor.Mode())))
}

// exec 解析并执行一行命令
func (sh *shell) exec(ctx context.Context, line string) error {
	root := sh.commands()
	root.SetArgs(strings.Fields(line))
	root.SetOut(sh.out)
	root.SetErr(sh.out)
	return root.ExecuteContext(ctx)
}

func (sh *shell) commands() *cobra.Command {
	root := &cobra.Command{
		Use:           "labelctl",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		&cobra.Command{
			Use:   "open <session-id>",
			Short: "Open an existing session",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := sh.api.GetSession(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return sh.load(s)
			},
		},
		&cobra.Command{
			Use:   "upload <path>",
			Short: "Upload an image and open the new session",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := sh.api.CreateSession(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return sh.load(s)
			},
		},
		&cobra.Command{
			Use:   "detect",
			Short: "Run text detection (discards local history)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := sh.current()
				if err != nil {
					return err
				}
				s, err := sh.api.Detect(cmd.Context(), e.Session().ID)
				if err != nil {
					return err
				}
				return sh.load(s)
			},
		},
		&cobra.Command{
			Use:   "mode <ocr|processed>",
			Short: "Switch editing context",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := sh.current()
				if err != nil {
					return err
				}
				mode, err := model.ParseEditMode(args[0])
				if err != nil {
					return err
				}
				return e.SetMode(mode)
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List regions of the active context",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := sh.current()
				if err != nil {
					return err
				}
				fmt.Fprint(sh.out, renderRegions(e.Session(), e.Mode(), e.Selected()))
				return nil
			},
		},
		&cobra.Command{
			Use:   "select [region-id]",
			Short: "Select a region, or clear the selection",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := sh.current()
				if err != nil {
					return err
				}
				id := ""
				if len(args) == 1 {
					id = args[0]
				}
				return e.Select(id)
			},
		},
		&cobra.Command{
			Use:   "add [x y w h]",
			Short: "Add a region (centered default box when omitted)",
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := sh.current()
				if err != nil {
					return err
				}
				var partial *model.Region
				switch len(args) {
				case 0:
				case 4:
					box, err := parseFloats(args)
					if err != nil {
						return err
					}
					partial = &model.Region{BoundingBox: model.Rect{X: box[0], Y: box[1], Width: box[2], Height: box[3]}}
				default:
					return fmt.Errorf("add takes no arguments or x y w h")
				}
				r, err := e.AddRegion(partial)
				if err != nil {
					return err
				}
				fmt.Fprintf(sh.out, "%s %s %s\n", color.GreenString("added"), r.ID, formatRect(r.BoundingBox))
				return nil
			},
		},
		&cobra.Command{
			Use:     "delete <region-id>",
			Aliases: []string{"rm"},
			Short:   "Delete a region",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := sh.current()
				if err != nil {
					return err
				}
				return e.RemoveRegion(args[0])
			},
		},
		&cobra.Command{
			Use:   "move <region-id> <x> <y>",
			Short: "Move a region",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return sh.geometry(args, func(box model.Rect, v []float64) model.Rect {
					box.X, box.Y = v[0], v[1]
					return box
				}, (*editor.Editor).MoveRegion)
			},
		},
		&cobra.Command{
			Use:   "resize <region-id> <w> <h>",
			Short: "Resize a region",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return sh.geometry(args, func(box model.Rect, v []float64) model.Rect {
					box.Width, box.Height = v[0], v[1]
					return box
				}, (*editor.Editor).ResizeRegion)
			},
		},
		&cobra.Command{
			Use:   "edit <region-id> <text...>",
			Short: "Set the text of a region in the active context",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := sh.current()
				if err != nil {
					return err
				}
				changed, err := e.EditText(args[0], strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				if !changed {
					fmt.Fprintln(sh.out, color.HiBlackString("unchanged"))
				}
				return nil
			},
		},
		sh.categoryCommand(),
		sh.syncCommand(),
		&cobra.Command{
			Use:   "remove",
			Short: "Remove text inside the active regions and enter the processed context",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := sh.current()
				if err != nil {
					return err
				}
				s, err := e.RemoveText(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(sh.out, "%s %s\n", color.GreenString("removed"), imageURL(s.ProcessedImage))
				return nil
			},
		},
		&cobra.Command{
			Use:   "generate",
			Short: "Render user text into the processed regions",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := sh.current()
				if err != nil {
					return err
				}
				s, err := e.GenerateText(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(sh.out, "%s %s\n", color.GreenString("generated"), imageURL(s.ProcessedImage))
				return nil
			},
		},
		&cobra.Command{
			Use:   "undo",
			Short: "Undo the last command of the active context",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := sh.current()
				if err != nil {
					return err
				}
				res, err := e.Undo(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(sh.out, "%s %s\n", color.YellowString("undone"), describeCommand(res.Command))
				if res.Degraded {
					fmt.Fprintln(sh.out, color.RedString(
						"warning: server restore failed (%v); local state reverted, run sync to reconcile", res.SyncErr))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "history",
			Short: "Show the undo history of the active context",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := sh.current()
				if err != nil {
					return err
				}
				fmt.Fprint(sh.out, renderHistory(e.History(e.Mode()), e.Mode()))
				return nil
			},
		},
		&cobra.Command{
			Use:     "quit",
			Aliases: []string{"exit"},
			Short:   "Leave the editor",
			Args:    cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				sh.quit = true
			},
		},
	)
	return root
}

func (sh *shell) categoryCommand() *cobra.Command {
	var (
		fontColor string
		fontScale float64
		thickness int
	)
	cmd := &cobra.Command{
		Use:   "category <region-id> [name]",
		Short: "Set the text category and rendering options of a region (not undoable)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := sh.current()
			if err != nil {
				return err
			}
			name := ""
			if len(args) == 2 {
				name = args[1]
			}
			var cfg *model.CategoryConfig
			if fontColor != "" || fontScale > 0 || thickness > 0 {
				cfg = &model.CategoryConfig{FontScale: fontScale, Color: fontColor, Thickness: thickness}
			}
			return e.SetCategory(args[0], name, cfg)
		},
	}
	cmd.Flags().StringVar(&fontColor, "color", "", "Text color as #rrggbb")
	cmd.Flags().Float64Var(&fontScale, "scale", 0, "Font scale")
	cmd.Flags().IntVar(&thickness, "thickness", 0, "Stroke thickness")
	return cmd
}

func (sh *shell) syncCommand() *cobra.Command {
	var export bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push the active regions to the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := sh.current()
			if err != nil {
				return err
			}
			s, err := e.SyncRegions(cmd.Context(), export)
			if err != nil {
				return err
			}
			msg := fmt.Sprintf("%s %d regions (%s)", color.GreenString("synced"), len(s.Regions(e.Mode())), s.Status)
			if export && s.ExportedAt != nil {
				msg += ", exported at " + s.ExportedAt.Format("15:04:05")
			}
			fmt.Fprintln(sh.out, msg)
			return nil
		},
	}
	cmd.Flags().BoolVar(&export, "export", false, "Mark the session as exported")
	return cmd
}

type geometryFunc func(e *editor.Editor, id string, oldBox, newBox model.Rect) (bool, error)

func (sh *shell) geometry(args []string, apply func(model.Rect, []float64) model.Rect, change geometryFunc) error {
	e, err := sh.current()
	if err != nil {
		return err
	}
	r, ok := e.Region(args[0])
	if !ok {
		return fmt.Errorf("%w: %s", editor.ErrRegionNotFound, args[0])
	}
	v, err := parseFloats(args[1:])
	if err != nil {
		return err
	}

	newBox := apply(r.BoundingBox, v)
	changed, err := change(e, args[0], r.BoundingBox, newBox)
	if err != nil {
		return err
	}
	if !changed {
		fmt.Fprintln(sh.out, color.HiBlackString("unchanged"))
	}
	return nil
}

func parseFloats(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", a)
		}
		out[i] = v
	}
	return out, nil
}
