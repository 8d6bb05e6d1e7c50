package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Amendoiim/2d-brawler-engine-sub002/governor/optimizer"
)

var (
	rulesOpts configFlags
	rulesFile string // Rule file to validate
)

// rulesCmd prints the default rules or validates a rule file
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print the default optimizer rules as YAML, or validate a rule file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if rulesFile != "" {
			rules, err := optimizer.LoadRules(rulesFile)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d valid rules\n", rulesFile, len(rules))
			return err
		}
		cfg, err := buildConfig(cmd, &rulesOpts)
		if err != nil {
			return err
		}
		out, err := optimizer.MarshalRules(optimizer.DefaultRules(cfg))
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	registerConfigFlags(rulesCmd, &rulesOpts)
	rulesCmd.Flags().StringVar(&rulesFile, "file", "", "Validate this rule file instead of printing the defaults")
}
