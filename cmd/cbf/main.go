// Command cbf inspects cbforest database files.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lordkev/cbforest"
	"github.com/lordkev/cbforest/cve"
)

var (
	asJSON      bool
	metaOnly    bool
	withDeleted bool
)

var rootCmd = &cobra.Command{
	Use:   "cbf",
	Short: "inspect cbforest database files",
	Long: `cbf opens a cbforest database file read-only and prints its
contents: file info, document listings, and single documents with
optionally JSON-decoded bodies.`,
	SilenceUsage: true,
}

var infoCmd = &cobra.Command{
	Use:   "info PATH",
	Short: "print database info",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openReadOnly(args[0])
		if err != nil {
			return err
		}
		defer db.Close()
		seq, err := db.LastSequence()
		if err != nil {
			return err
		}
		fmt.Printf("path:          %s\n", db.Path())
		fmt.Printf("last sequence: %d\n", seq)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list PATH",
	Short: "list documents in key order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openReadOnly(args[0])
		if err != nil {
			return err
		}
		defer db.Close()
		opts := cbforest.DefaultEnumerationOptions()
		opts.Content = cbforest.MetaOnly
		opts.IncludeDeleted = withDeleted
		e, err := db.Enumerate(nil, nil, &opts)
		if err != nil {
			return err
		}
		defer e.Close()
		for e.Next() {
			doc := e.Document()
			flag := ' '
			if doc.Deleted {
				flag = 'D'
			}
			fmt.Printf("%c %8d  %q\n", flag, doc.Sequence, doc.Key())
		}
		return e.Err()
	},
}

var getCmd = &cobra.Command{
	Use:   "get PATH KEY",
	Short: "print one document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openReadOnly(args[0])
		if err != nil {
			return err
		}
		defer db.Close()
		content := cbforest.DefaultContent
		if metaOnly {
			content = cbforest.MetaOnly
		}
		doc, err := db.Get(cbforest.Slice(args[1]), content)
		if err != nil {
			return err
		}
		if !doc.Exists() {
			return fmt.Errorf("%q not found", args[1])
		}
		fmt.Println(cbforest.DumpDocument(doc))
		if asJSON && len(doc.Body()) > 0 {
			out, err := cve.ToJSON(cve.Root(doc.Body()), nil)
			if err != nil {
				return fmt.Errorf("body is not a valid encoded value: %w", err)
			}
			fmt.Printf("body: %s\n", out)
		}
		return nil
	},
}

func openReadOnly(path string) (*cbforest.Database, error) {
	return cbforest.OpenDatabase(path, cbforest.ReadOnly, cbforest.Config{})
}

func main() {
	getCmd.Flags().BoolVar(&asJSON, "json", false, "decode the body as a compact encoded value and print JSON")
	getCmd.Flags().BoolVar(&metaOnly, "meta-only", false, "skip loading the body")
	listCmd.Flags().BoolVar(&withDeleted, "deleted", false, "include tombstones")
	rootCmd.AddCommand(infoCmd, listCmd, getCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
