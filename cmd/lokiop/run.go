package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/obsstack/lokiop/pkg/cluster"
	"github.com/obsstack/lokiop/pkg/events"
	"github.com/obsstack/lokiop/pkg/log"
	"github.com/obsstack/lokiop/pkg/metrics"
	"github.com/obsstack/lokiop/pkg/operator"
	"github.com/obsstack/lokiop/pkg/relation"
	"github.com/obsstack/lokiop/pkg/secrets"
	"github.com/obsstack/lokiop/pkg/types"
	"github.com/obsstack/lokiop/pkg/worker"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the operator trigger loop",
	Long: `Run the operator. Triggers are read from stdin, one per line
(workload-ready, config-changed, upgrade, relation-created,
relation-changed, relation-departed, relation-broken, collect-status),
the way the hosting agent delivers them. A collect-status pass also runs
periodically.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		unit, _ := cmd.Flags().GetString("unit")
		model, _ := cmd.Flags().GetString("model")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		address, _ := cmd.Flags().GetString("address")
		leader, _ := cmd.Flags().GetBool("leader")
		containerRoot, _ := cmd.Flags().GetString("container-root")
		secretsPassword, _ := cmd.Flags().GetString("secrets-password")
		tracingEndpoint, _ := cmd.Flags().GetString("tracing-endpoint")
		adminAddr, _ := cmd.Flags().GetString("admin-addr")
		statusInterval, _ := cmd.Flags().GetDuration("status-interval")
		logLevel, _ := cmd.Flags().GetString("log-level")
		logJSON, _ := cmd.Flags().GetBool("log-json")

		roleCfg := types.RoleConfig{}
		roleCfg.Read, _ = cmd.Flags().GetBool("role-read")
		roleCfg.Write, _ = cmd.Flags().GetBool("role-write")
		roleCfg.Backend, _ = cmd.Flags().GetBool("role-backend")
		roleCfg.All, _ = cmd.Flags().GetBool("role-all")

		log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
		logger := log.WithComponent("main")

		if err := os.MkdirAll(dataDir, 0700); err != nil {
			return fmt.Errorf("failed to create data directory: %v", err)
		}

		store, err := relation.NewBoltStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to open relation store: %v", err)
		}
		defer store.Close()

		secretStore, err := secrets.OpenWithPassword(dataDir, secretsPassword)
		if err != nil {
			return fmt.Errorf("failed to open secret store: %v", err)
		}
		defer secretStore.Close()

		topology := types.Topology{Model: model, Unit: unit}
		bus := events.NewBus()
		requirer := cluster.NewRequirer(cluster.Config{
			Topology:  topology,
			IsLeader:  func() bool { return leader },
			Transport: store,
			Bus:       bus,
		})

		container := worker.NewLocalContainer(containerRoot)
		facade := worker.NewFacade(container, secretStore)
		forwarder := operator.NewLogForwarder(container, topology)

		op := operator.New(operator.Config{
			Roles:           roleCfg,
			TracingEndpoint: tracingEndpoint,
			Address:         func() string { return address },
			IsLeader:        func() bool { return leader },
			SetWorkloadVersion: func(version string) {
				logger.Info().Str("version", version).Msg("workload version")
			},
			SetStatus: func(status types.Status) {
				logger.Info().
					Str("kind", string(status.Kind)).
					Str("message", status.Message).
					Msg("status")
			},
		}, requirer, facade, forwarder, bus)

		// Admin listener: metrics and liveness.
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				fmt.Fprintln(w, "ok")
			})
			if err := http.ListenAndServe(adminAddr, mux); err != nil {
				logger.Error().Err(err).Msg("admin listener failed")
			}
		}()

		triggerCh := make(chan operator.Trigger)
		go func() {
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				triggerCh <- operator.Trigger(line)
			}
			close(triggerCh)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		ticker := time.NewTicker(statusInterval)
		defer ticker.Stop()

		logger.Info().Str("unit", unit).Str("model", model).Msg("operator running")

		// One trigger at a time, each to completion.
		for {
			select {
			case trigger, ok := <-triggerCh:
				if !ok {
					logger.Info().Msg("trigger source closed, shutting down")
					return nil
				}
				if err := op.Dispatch(trigger); err != nil {
					logger.Error().Err(err).Str("trigger", string(trigger)).Msg("trigger failed")
				}
			case <-ticker.C:
				if err := op.Dispatch(operator.TriggerCollectStatus); err != nil {
					logger.Error().Err(err).Msg("status collection failed")
				}
			case <-sigCh:
				logger.Info().Msg("shutting down")
				return nil
			}
		}
	},
}

func init() {
	runCmd.Flags().String("unit", "loki-worker/0", "Unit name within the model")
	runCmd.Flags().String("model", "default", "Model name")
	runCmd.Flags().String("data-dir", "./lokiop-data", "Data directory for local state")
	runCmd.Flags().String("address", "", "Address to publish to the coordinator")
	runCmd.Flags().Bool("leader", false, "Whether this unit holds application leadership")
	runCmd.Flags().String("container-root", "/", "Workload container filesystem root")
	runCmd.Flags().String("secrets-password", "", "Password for the local secret store")
	runCmd.Flags().String("tracing-endpoint", "", "OTLP endpoint injected into the workload environment")
	runCmd.Flags().String("admin-addr", "127.0.0.1:9095", "Address for the metrics/health listener")
	runCmd.Flags().Duration("status-interval", 30*time.Second, "Interval between periodic status collections")
	runCmd.Flags().Bool("role-read", false, "Enable the read role")
	runCmd.Flags().Bool("role-write", false, "Enable the write role")
	runCmd.Flags().Bool("role-backend", false, "Enable the backend role")
	runCmd.Flags().Bool("role-all", false, "Enable the all role")
	runCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	runCmd.Flags().Bool("log-json", false, "Emit JSON logs")
	runCmd.MarkFlagRequired("address")
	runCmd.MarkFlagRequired("secrets-password")
}
