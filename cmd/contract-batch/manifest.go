package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cognicore/contractflow/pkg/contractflow/classify"
	"github.com/cognicore/contractflow/pkg/contractflow/manifest"
)

func manifestCmd() *cobra.Command {
	var (
		path  string
		check bool
	)
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Print the resolved manifest",
		Long: `Print the manifest that "run" would process, as YAML. With --check, each
document is also classified locally so missing files and unsupported
extensions show up before any remote call is made.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showManifest(cmd.OutOrStdout(), path, check)
		},
	}
	cmd.Flags().StringVar(&path, "manifest", "", "YAML manifest (default: built-in manifest)")
	cmd.Flags().BoolVar(&check, "check", false, "classify every document locally")
	return cmd
}

func showManifest(w io.Writer, path string, check bool) error {
	docs, err := loadManifest(path)
	if err != nil {
		return err
	}

	data, err := manifest.Marshal(docs)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}

	if !check {
		return nil
	}
	fmt.Fprintln(w, "---")
	for _, d := range docs {
		c, err := classify.Classify(d.Path)
		if err != nil {
			fmt.Fprintf(w, "# %s: %v\n", d.Path, err)
			continue
		}
		fmt.Fprintf(w, "# %s: %s\n", d.Path, c.MimeType)
	}
	return nil
}
