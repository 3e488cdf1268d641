package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"inventorycore/internal/core"
	"inventorycore/pkg/domain"
)

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Import records from a JSON export (one record or an array)",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payloads, err := readPayloads(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			res, err := a.svc.Import(cmd.Context(), payloads)
			printViolations(cmd.ErrOrStderr(), res.Result)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d records (created %d, updated %d, referenced %d)\n",
				len(res.Created)+len(res.Updated)+len(res.Referenced), len(res.Created), len(res.Updated), len(res.Referenced))
			return nil
		},
	}
}

// readPayloads decodes a single payload object or an array of payloads.
func readPayloads(stdin io.Reader, name string) ([]domain.RecordPayload, error) {
	var r io.Reader = stdin
	if name != "-" {
		f, err := os.Open(filepath.Clean(name))
		if err != nil {
			return nil, withCode(exitUsage, errors.Wrap(err, "open import file"))
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read import file")
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var payloads []domain.RecordPayload
		if err := json.Unmarshal(data, &payloads); err != nil {
			return nil, withCode(exitUsage, errors.Wrap(err, "decode records"))
		}
		return payloads, nil
	}
	var p domain.RecordPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, withCode(exitUsage, errors.Wrap(err, "decode record"))
	}
	return []domain.RecordPayload{p}, nil
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <globalId>",
		Short: "Show a record with its location fields and quantity",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			r, err := a.svc.Record(cmd.Context(), id)
			if err != nil {
				return err
			}
			return renderRecord(cmd.OutOrStdout(), r)
		},
	}
}

func newTreeCmd(a *app) *cobra.Command {
	var (
		expand []string
		all    bool
		query  string
	)
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the navigation tree of top-level records",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			search, err := a.svc.NewSearch(cmd.Context(), query)
			if err != nil {
				return err
			}
			tree := domain.NewTreeModel(search, nil, a.svc.Notifier())
			tree.SetExpanded(expand)
			renderTree(cmd.OutOrStdout(), tree, all)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&expand, "expand", nil, "global ids of the nodes to expand")
	cmd.Flags().BoolVar(&all, "all", false, "expand every node")
	cmd.Flags().StringVar(&query, "query", "", "only show top-level records matching the query")
	return cmd
}

func newFindCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "find <globalId>",
		Short: "Select a record in the tree and print its path from the root",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			search, err := a.svc.NewSearch(cmd.Context(), "")
			if err != nil {
				return err
			}
			tree := domain.NewTreeModel(search, nil, a.svc.Notifier())
			if err := tree.SetSelected(cmd.Context(), id); err != nil {
				return err
			}
			path := domain.PathTo(tree.Selected(), tree)
			parts := make([]string, 0, len(path))
			for _, node := range path[1:] {
				parts = append(parts, nodeLabel(node))
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(parts, " > "))
			return nil
		},
	}
}

func newMoveCmd(a *app) *cobra.Command {
	var row, col int
	cmd := &cobra.Command{
		Use:   "move <globalId> <containerId>",
		Short: "Move a container or subsample into another container",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			target, err := parseID(args[1])
			if err != nil {
				return err
			}
			var loc *domain.ParentLocation
			if row != 0 || col != 0 {
				if row < 1 || col < 1 {
					return withCode(exitUsage, errors.New("--row and --col must both be positive"))
				}
				loc = &domain.ParentLocation{CoordX: col, CoordY: row}
			}
			_, res, err := a.svc.Move(cmd.Context(), id, target, loc)
			printViolations(cmd.ErrOrStderr(), res)
			if err != nil {
				return err
			}
			if loc != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "moved %s to %s at row %d, column %d\n", id, target, row, col)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "moved %s to %s\n", id, target)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&row, "row", 0, "grid row (1-based)")
	cmd.Flags().IntVar(&col, "col", 0, "grid column (1-based)")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return blobCommand(&cobra.Command{
		Use:   "delete <globalId>",
		Short: "Delete an empty record and its attachments",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			res, err := a.svc.Delete(cmd.Context(), id)
			printViolations(cmd.ErrOrStderr(), res)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			return nil
		},
	})
}

func newAttachCmd(a *app) *cobra.Command {
	var contentType string
	cmd := blobCommand(&cobra.Command{
		Use:   "attach <globalId> <file>",
		Short: "Store a file as an attachment of a record",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			path := filepath.Clean(args[1])
			ctype := contentType
			if ctype == "" {
				mt, err := mimetype.DetectFile(path)
				if err != nil {
					return withCode(exitUsage, errors.Wrap(err, "detect content type"))
				}
				ctype = mt.String()
			}
			f, err := os.Open(path)
			if err != nil {
				return withCode(exitUsage, errors.Wrap(err, "open attachment"))
			}
			defer f.Close()
			info, err := a.svc.Attach(cmd.Context(), id, filepath.Base(path), f, ctype)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s (%d bytes, %s)\n", info.Key, info.Size, info.ContentType)
			return nil
		},
	})
	cmd.Flags().StringVar(&contentType, "content-type", "", "content type to record (detected from the file when empty)")
	return cmd
}

func newAttachmentsCmd(a *app) *cobra.Command {
	return blobCommand(&cobra.Command{
		Use:   "attachments <globalId>",
		Short: "List the attachments of a record",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			infos, err := a.svc.Attachments(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(infos) == 0 {
				fmt.Fprintf(out, "%s has no attachments\n", id)
				return nil
			}
			for _, info := range infos {
				fmt.Fprintf(out, "%s\t%d\t%s\n", info.Key, info.Size, info.Metadata[core.MetaFilename])
			}
			return nil
		},
	})
}

func parseID(s string) (domain.GlobalID, error) {
	id, err := domain.ParseGlobalID(s)
	if err != nil {
		return "", withCode(exitUsage, err)
	}
	return id, nil
}

func printViolations(w io.Writer, res domain.Result) {
	for _, v := range res.Violations {
		fmt.Fprintf(w, "%s: %s [%s]\n", v.Severity, v.Message, v.Rule)
	}
}
