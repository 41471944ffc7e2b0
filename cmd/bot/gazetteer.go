package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/liftcare/field-bot/internal/config"
	"github.com/liftcare/field-bot/internal/gazetteer"
)

var gazetteerCmd = &cobra.Command{
	Use:   "gazetteer",
	Short: "Address gazetteer commands",
}

var gazetteerCheckCmd = &cobra.Command{
	Use:   "check [file.json]",
	Short: "Load a gazetteer document and print its counts",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runGazetteerCheck,
}

func init() {
	gazetteerCmd.AddCommand(gazetteerCheckCmd)
}

func runGazetteerCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOffline()
	if err != nil {
		return err
	}
	path := cfg.GazetteerPath
	if len(args) == 1 {
		path = args[0]
	}

	doc, err := gazetteer.LoadDocument(path)
	if err != nil {
		return err
	}
	aliases, err := gazetteer.LoadAliases(cfg.AliasesPath)
	if err != nil {
		return err
	}
	idx := gazetteer.Build(doc, aliases)

	out := cmd.OutOrStdout()
	for _, district := range idx.Districts() {
		fmt.Fprintf(out, "%s: %d streets\n", district, len(idx.Streets(district)))
	}
	active := 0
	for _, p := range idx.Points() {
		if p.Active {
			active++
		}
	}
	fmt.Fprintf(out, "%d entrances, %d active, %d aliases\n", idx.Len(), active, len(aliases))
	return nil
}
