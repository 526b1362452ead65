package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/manuelinfosec/ebdeploy/internal/config"
	"github.com/manuelinfosec/ebdeploy/internal/lifecycle"
	"github.com/manuelinfosec/ebdeploy/internal/storage"
)

func newUnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock",
		Short: "Release the deploy lock of the service environment",
		Long: `Release the deploy lock of the service environment. Use it only when the
deploy holding the lock is known to be gone, e.g. after the process was killed.`,
		Args: cobra.NoArgs,
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

			key := storage.EnvironmentLockKey(svc.ApplicationName, svc.EnvironmentName)
			holder, err := storage.ForceReleaseLock(cmd.Context(), db, key)
			if err != nil {
				return err
			}
			if holder == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is not locked\n", svc.EnvironmentName)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Released %s (held by %s)\n", svc.EnvironmentName, holder)
			return nil
		},
	}
}
