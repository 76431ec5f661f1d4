// Copyright 2025 Stagegate Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stagegate/stagegate/pkg/config"
	"github.com/stagegate/stagegate/pkg/egress"
	"github.com/stagegate/stagegate/pkg/events"
	"github.com/stagegate/stagegate/pkg/lock"
	"github.com/stagegate/stagegate/pkg/logger"
	"github.com/stagegate/stagegate/pkg/manifest"
	"github.com/stagegate/stagegate/pkg/objstore"
	"github.com/stagegate/stagegate/pkg/policy"
	"github.com/stagegate/stagegate/pkg/store"
	"github.com/stagegate/stagegate/pkg/types"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Egress store lifecycle operations",
	Long: `Manage workspace egress stores.

Stores are provisioned under a shared staging bucket, one prefix per
workspace, with bucket-policy statements granting the workspace's member
account access. Export requests capture a manifest of the store's objects
and publish a notification to the configured topic.

Configuration is read from stagegate.toml (see --config_dir); every setting
can be overridden with flags or environment variables.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var storeCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Provision an egress store for a workspace",
	Long: `Provision an egress store for a workspace and grant its member account
access to the store's prefix.

Example:
  stagegate store create --workspace-id ws-1 --workspace-name analysis --project-id proj-9`,
	Run: runStoreCreate,
}

var storeInfoCmd = &cobra.Command{
	Use:   "info <workspace-id>",
	Short: "Show the egress store record of a workspace",
	Args:  cobra.ExactArgs(1),
	Run:   runStoreInfo,
}

var storeListCmd = &cobra.Command{
	Use:   "list <workspace-id>",
	Short: "List the objects currently staged in a workspace's egress store",
	Args:  cobra.ExactArgs(1),
	Run:   runStoreList,
}

var storeSubmitCmd = &cobra.Command{
	Use:   "submit <workspace-id>",
	Short: "Submit an egress request for a workspace's staged objects",
	Long: `Submit an egress request. The store's current objects are captured into a
versioned manifest and a notification is published for downstream review.`,
	Args: cobra.ExactArgs(1),
	Run:  runStoreSubmit,
}

var storeEnableCmd = &cobra.Command{
	Use:   "enable <workspace-id>",
	Short: "Mark a workspace's egress store as eligible for submission",
	Args:  cobra.ExactArgs(1),
	Run:   runStoreEnable,
}

var storeLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List every egress store record",
	Run:   runStoreLs,
}

var storeTerminateCmd = &cobra.Command{
	Use:   "terminate <workspace-id>",
	Short: "Terminate a workspace's egress store",
	Long: `Terminate a workspace's egress store: clear its staged objects and revoke
the member account's access. Stores holding submitted or in-flight data are
left unchanged; stores being processed cannot be terminated.`,
	Args: cobra.ExactArgs(1),
	Run:  runStoreTerminate,
}

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeCreateCmd)
	storeCmd.AddCommand(storeInfoCmd)
	storeCmd.AddCommand(storeListCmd)
	storeCmd.AddCommand(storeSubmitCmd)
	storeCmd.AddCommand(storeEnableCmd)
	storeCmd.AddCommand(storeLsCmd)
	storeCmd.AddCommand(storeTerminateCmd)

	pf := storeCmd.PersistentFlags()

	// Caller identity
	pf.String("as-user", "", "Principal UID performing the operation (required)")
	pf.String("as-username", "", "Display name of the principal")
	pf.Bool("admin", false, "Act with administrative privileges")

	// Backend overrides; config file and env vars apply otherwise
	pf.Bool("egress.enabled", true, "Enable egress store lifecycle operations")
	pf.String("egress.bucket", "", "Shared egress staging bucket")
	pf.String("egress.kms_key_alias", "", "KMS key alias protecting the staging bucket")
	pf.String("egress.notifications_bucket", "", "Bucket receiving egress manifests")
	pf.String("records.dsn", "", "PostgreSQL DSN of the record store")
	pf.String("redis.addr", "", "Redis address of the lock coordinator")
	pf.Duration("redis.acquire_timeout", 10*time.Second, "How long to wait for a named lock before giving up")
	pf.StringSlice("kafka.brokers", nil, "Kafka brokers for egress notifications (empty disables publishing)")
	viper.BindPFlags(pf)

	storeCreateCmd.Flags().String("workspace-id", "", "Workspace identifier (required)")
	storeCreateCmd.Flags().String("workspace-name", "", "Workspace display name (required)")
	storeCreateCmd.Flags().String("project-id", "", "Project the workspace belongs to (required)")
	storeCreateCmd.MarkFlagRequired("workspace-id")
	storeCreateCmd.MarkFlagRequired("workspace-name")
	storeCreateCmd.MarkFlagRequired("project-id")
}

func requestContext(cmd *cobra.Command) *types.RequestContext {
	uid, _ := cmd.Flags().GetString("as-user")
	username, _ := cmd.Flags().GetString("as-username")
	isAdmin, _ := cmd.Flags().GetBool("admin")
	if uid == "" {
		logger.Fatal().Msg("--as-user is required")
	}
	return &types.RequestContext{
		Principal: types.Principal{UID: uid, Username: username},
		IsAdmin:   isAdmin,
	}
}

// buildService assembles the egress service from configuration. The returned
// cleanup closes the backends.
func buildService(ctx context.Context, cmd *cobra.Command) (egress.Service, func()) {
	config.Load("stagegate", false)
	fl := NewFlagLoader(cmd)

	bucket := fl.String("egress.bucket")
	if bucket == "" {
		logger.Fatal().Msg("egress.bucket is not configured")
	}

	var s3cfg objstore.S3Config
	if err := viper.UnmarshalKey("s3", &s3cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid s3 configuration")
	}
	objects, err := objstore.NewS3(ctx, s3cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to object storage")
	}
	keys, err := objstore.NewKMS(ctx, s3cfg.Region)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create KMS client")
	}

	pgCfg := store.DefaultPostgresConfig(fl.String("records.dsn"))
	if err := viper.UnmarshalKey("records", &pgCfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid records configuration")
	}
	records, err := store.NewPostgres(ctx, pgCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to record store")
	}
	if err := records.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare record store schema")
	}

	lockCfg := lock.DefaultRedisConfig(fl.String("redis.addr"))
	if err := viper.UnmarshalKey("redis", &lockCfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid redis configuration")
	}
	lockCfg.AcquireTimeout = fl.Duration("redis.acquire_timeout")
	locks, err := lock.NewRedisCoordinator(lockCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to lock coordinator")
	}

	reconciler, err := policy.NewReconciler(objects, locks)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create policy reconciler")
	}

	notificationsBucket := fl.String("egress.notifications_bucket")
	if notificationsBucket == "" {
		notificationsBucket = "egress-notifications"
	}
	snapshots, err := manifest.NewBuilder(objects, notificationsBucket)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create manifest builder")
	}

	var publisher events.Publisher = events.NoopPublisher{}
	var closePublisher func() error
	if brokers := fl.StringSlice("kafka.brokers"); len(brokers) > 0 {
		kafkaCfg := events.DefaultKafkaConfig(brokers)
		if err := viper.UnmarshalKey("kafka", &kafkaCfg); err != nil {
			logger.Fatal().Err(err).Msg("invalid kafka configuration")
		}
		kp, err := events.NewKafkaPublisher(kafkaCfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to kafka")
		}
		publisher = kp
		closePublisher = kp.Close
	}

	var accounts egress.StaticAccounts
	if err := viper.UnmarshalKey("accounts", &accounts); err != nil {
		logger.Fatal().Err(err).Msg("invalid accounts configuration")
	}

	svc, err := egress.NewService(egress.Config{
		Enabled:           fl.Bool("egress.enabled"),
		EgressStoreBucket: bucket,
		KMSKeyAlias:       fl.String("egress.kms_key_alias"),
		Records:           records,
		Objects:           objects,
		Keys:              keys,
		Locks:             locks,
		Reconciler:        reconciler,
		Snapshots:         snapshots,
		Publisher:         publisher,
		Accounts:          accounts,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to assemble egress service")
	}

	cleanup := func() {
		if closePublisher != nil {
			closePublisher()
		}
		locks.Close()
		records.Close()
	}
	return svc, cleanup
}

func runStoreCreate(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	svc, cleanup := buildService(ctx, cmd)
	defer cleanup()

	wsID, _ := cmd.Flags().GetString("workspace-id")
	wsName, _ := cmd.Flags().GetString("workspace-name")
	projectID, _ := cmd.Flags().GetString("project-id")

	desc, err := svc.Create(ctx, requestContext(cmd), &types.Workspace{
		ID:        wsID,
		Name:      wsName,
		ProjectID: projectID,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("create failed")
	}
	printJSON(desc)
}

func runStoreInfo(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	svc, cleanup := buildService(ctx, cmd)
	defer cleanup()

	rec, err := svc.GetStoreInfo(ctx, args[0])
	if err != nil {
		logger.Fatal().Err(err).Msg("lookup failed")
	}
	if rec == nil {
		fmt.Printf("No egress store exists for workspace %s\n", args[0])
		return
	}
	printJSON(rec)
	fmt.Printf("Last updated %s by %s\n", humanize.Time(rec.UpdatedAt), rec.UpdatedBy)
}

func runStoreList(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	svc, cleanup := buildService(ctx, cmd)
	defer cleanup()

	result, err := svc.ListObjects(ctx, requestContext(cmd), args[0])
	if err != nil {
		logger.Fatal().Err(err).Msg("list failed")
	}

	if len(result.Objects) == 0 {
		fmt.Println("The egress store is empty.")
	}
	for _, obj := range result.Objects {
		fmt.Printf("%-60s %10s  %s\n", obj.Key, obj.Size, humanize.Time(obj.LastModified))
	}
	if result.IsAbleToSubmitEgressRequest {
		fmt.Println("\nThe store is eligible for an egress request.")
	} else {
		fmt.Println("\nThe store is not currently eligible for an egress request.")
	}
}

func runStoreSubmit(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	svc, cleanup := buildService(ctx, cmd)
	defer cleanup()

	n, err := svc.Submit(ctx, requestContext(cmd), args[0])
	if err != nil {
		logger.Fatal().Err(err).Msg("submit failed")
	}
	fmt.Printf("Egress request submitted; manifest at %s\n", n.ObjectManifestLocation)
	printJSON(n)
}

func runStoreEnable(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	svc, cleanup := buildService(ctx, cmd)
	defer cleanup()

	rec, err := svc.GetStoreInfo(ctx, args[0])
	if err != nil {
		logger.Fatal().Err(err).Msg("lookup failed")
	}
	if rec == nil {
		logger.Fatal().Msgf("no egress store exists for workspace %s", args[0])
	}

	updated, err := svc.EnableSubmission(ctx, rec)
	if err != nil {
		logger.Fatal().Err(err).Msg("enable failed")
	}
	fmt.Printf("Workspace %s may now submit egress requests (ver %d)\n", updated.WorkspaceID, updated.Ver)
}

func runStoreLs(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	config.Load("stagegate", false)
	fl := NewFlagLoader(cmd)

	pgCfg := store.DefaultPostgresConfig(fl.String("records.dsn"))
	if err := viper.UnmarshalKey("records", &pgCfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid records configuration")
	}
	records, err := store.NewPostgres(ctx, pgCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to record store")
	}
	defer records.Close()

	recs, err := records.ScanAll(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("scan failed")
	}
	if len(recs) == 0 {
		fmt.Println("No egress stores exist.")
		return
	}
	fmt.Printf("%-24s %-12s %-10s %4s  %s\n", "WORKSPACE", "STATUS", "SUBMITTABLE", "VER", "UPDATED")
	for _, rec := range recs {
		fmt.Printf("%-24s %-12s %-10v %4d  %s\n",
			rec.WorkspaceID, rec.Status, rec.IsAbleToSubmitEgressRequest, rec.Ver, humanize.Time(rec.UpdatedAt))
	}
}

func runStoreTerminate(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	svc, cleanup := buildService(ctx, cmd)
	defer cleanup()

	start := time.Now()
	rec, err := svc.Terminate(ctx, requestContext(cmd), args[0])
	if err != nil {
		logger.Fatal().Err(err).Msg("terminate failed")
	}
	if rec == nil {
		fmt.Printf("No egress store exists for workspace %s; nothing to do.\n", args[0])
		return
	}
	if rec.Status != types.StatusTerminated {
		fmt.Printf("Store left unchanged in state %s.\n", rec.Status)
		return
	}
	fmt.Printf("Egress store of workspace %s terminated in %s.\n", args[0], time.Since(start).Round(time.Millisecond))
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logger.Fatal().Err(err).Msg("failed to render output")
	}
}
