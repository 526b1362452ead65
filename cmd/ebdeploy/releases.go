package main

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/manuelinfosec/ebdeploy/internal/config"
	"github.com/manuelinfosec/ebdeploy/internal/lifecycle"
	"github.com/manuelinfosec/ebdeploy/internal/storage"
)

func newReleasesCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "releases",
		Short: "List recent deploys of the service environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(configFile)
			if err != nil {
				return err
			}
			file, err := config.Load(path)
			if err != nil {
				return err
			}
			svc := file.Custom.ElasticBeanstalk

			db, err := storage.InitDB(filepath.Join(filepath.Dir(path), lifecycle.StateDir, ledgerFile))
			if err != nil {
				return err
			}
			defer db.Close()

			releases, err := storage.ListReleases(cmd.Context(), db, svc.ApplicationName, svc.EnvironmentName, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tLABEL\tPHASE\tSTARTED\tFINISHED\tERROR")
			for _, r := range releases {
				finished := "-"
				if r.FinishedAt.Valid {
					finished = r.FinishedAt.String
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.VersionLabel, r.Phase, r.StartedAt, finished, r.Error)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of releases to show")
	return cmd
}
