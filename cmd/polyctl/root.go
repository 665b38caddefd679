package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newRootCmd builds the command tree. Each call uses its own viper instance
// so that tests do not share configuration.
func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:   "polyctl",
		Short: "Inspect and maintain polyalloc catalog images",
		Long: `polyctl reads the catalog images a polyalloc deployment writes to its
blob store. It lists entities and their placements, checks that every
column and partition still has a full copy, and prunes old images.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./polyctl.yaml or $HOME/.polyctl/polyctl.yaml)")
	flags.String("store", "local", "blob store kind: local, s3, minio")
	flags.String("path", ".", "catalog directory for the local store")
	flags.String("bucket", "", "bucket for s3 and minio stores")
	flags.String("prefix", "", "key prefix inside the bucket")
	flags.String("region", "", "AWS region for the s3 store")
	flags.String("endpoint", "", "endpoint for the minio store")
	flags.String("access-key", "", "access key for the minio store")
	flags.String("secret-key", "", "secret key for the minio store")
	flags.Bool("insecure", false, "use plain HTTP for the minio store")
	flags.Bool("no-color", false, "disable styled output")

	for _, name := range []string{"store", "path", "bucket", "prefix", "region", "endpoint", "access-key", "secret-key", "insecure", "no-color"} {
		_ = v.BindPFlag(configKey(name), flags.Lookup(name))
	}

	root.AddCommand(
		newInspectCmd(v),
		newVerifyCmd(v),
		newVersionsCmd(v),
		newPruneCmd(v),
	)
	return root
}

// configKey maps a flag name to its key in polyctl.yaml.
func configKey(flag string) string {
	switch flag {
	case "store":
		return "store.kind"
	case "no-color":
		return "output.no_color"
	default:
		return "store." + strings.ReplaceAll(flag, "-", "_")
	}
}

func initConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("polyctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".polyctl"))
		}
	}

	v.SetEnvPrefix("POLYCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// The config file is optional unless named explicitly.
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}
