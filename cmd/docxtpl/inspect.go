package main

import (
	"fmt"
	"io"
	"path"

	"github.com/spf13/cobra"

	"github.com/yuanying/docxtpl/internal/ooxml"
	"github.com/yuanying/docxtpl/internal/render"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect TEMPLATE",
		Short: "List the parts, relationships and placeholders of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := readLogger(cmd); err != nil {
				return err
			}
			return runInspect(cmd.OutOrStdout(), args[0])
		},
	}
}

func runInspect(w io.Writer, templatePath string) error {
	pkg, err := ooxml.Open(templatePath)
	if err != nil {
		return err
	}
	defer pkg.Close()

	fmt.Fprintln(w, "Parts:")
	for _, f := range pkg.Entries() {
		fmt.Fprintf(w, "  %-48s %10d\n", f.Name, f.UncompressedSize64)
	}

	if pkg.Has(ooxml.DocumentRelsPart) {
		data, err := pkg.ReadFile(ooxml.DocumentRelsPart)
		if err != nil {
			return err
		}
		rels, err := ooxml.ParseRelationships(data)
		if err != nil {
			return &ooxml.PartError{Part: ooxml.DocumentRelsPart, Err: err}
		}

		fmt.Fprintln(w, "Relationships:")
		for _, rel := range rels {
			target := rel.Target
			if rel.IsExternal() {
				target += " (external)"
			}
			fmt.Fprintf(w, "  %-12s %-16s %s\n", rel.ID, path.Base(rel.Type), target)
		}
	}

	document, err := pkg.ReadFile(ooxml.DocumentPart)
	if err != nil {
		return err
	}
	placeholders, err := render.Placeholders(document)
	if err != nil {
		return &ooxml.PartError{Part: ooxml.DocumentPart, Err: err}
	}

	fmt.Fprintln(w, "Placeholders:")
	for _, p := range placeholders {
		fmt.Fprintf(w, "  %s\n", p)
	}
	return nil
}
