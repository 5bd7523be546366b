package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chatwright/chatwright/agent"
	"github.com/chatwright/chatwright/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type cli struct {
	cfg config.Config
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("config-file", "", "Path to config file.")
	cmd.Flags().String("redis-addr", "localhost:6379", "comma separated list of redis host:port")
	cmd.Flags().String("namespace", "chatwright", "namespace used in storage")
	cmd.Flags().Int("http-port", 8080, "http port for rest endpoints")
	cmd.Flags().String("storage-impl", "redis", "implementation of underline storage")
	cmd.Flags().String("catalog-dir", "", "directory of yaml flow definitions loaded at boot")
	cmd.Flags().String("telemetry-file", "", "file receiving classification and step records")
	cmd.Flags().Int("partitions", 16, "number of logical run partitions")
	cmd.Flags().Duration("run-ttl", 24*time.Hour, "idle expiry for flow runs")
	cmd.Flags().Duration("lock-ttl", 10*time.Second, "session lock ttl")
	cmd.Flags().Duration("executor-timeout", 5*time.Second, "per executor invocation timeout")
	cmd.Flags().Duration("tier-timeout", 3*time.Second, "per classifier tier timeout")
	return viper.BindPFlags(cmd.Flags())
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}
	viper.SetConfigFile(configFile)

	if err = viper.ReadInConfig(); err != nil {
		// it's ok if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configFile != "" {
			return err
		}
	}

	c.cfg = config.Default()
	c.cfg.RedisConfig.Addrs = strings.Split(viper.GetString("redis-addr"), ",")
	c.cfg.RedisConfig.Namespace = viper.GetString("namespace")
	c.cfg.HttpPort = viper.GetInt("http-port")
	c.cfg.StorageType = config.StorageType(viper.GetString("storage-impl"))
	c.cfg.CatalogDir = viper.GetString("catalog-dir")
	c.cfg.TelemetryFile = viper.GetString("telemetry-file")
	c.cfg.PartitionCount = viper.GetInt("partitions")
	c.cfg.RunTTL = viper.GetDuration("run-ttl")
	c.cfg.SessionLockTTL = viper.GetDuration("lock-ttl")
	c.cfg.ExecutorTimeout = viper.GetDuration("executor-timeout")
	c.cfg.ClassifierConfig.TierTimeout = viper.GetDuration("tier-timeout")
	return nil
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	a, err := agent.New(c.cfg, agent.Collaborators{})
	if err != nil {
		return err
	}
	if err := a.Start(); err != nil {
		return err
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	return a.Shutdown()
}

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:     "chatwrightd",
		PreRunE: cli.setupConfig,
		RunE:    cli.run,
	}

	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
