package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"memberhub.backend/internal/config"
	"memberhub.backend/internal/domain/entities"
	"memberhub.backend/internal/infrastructure/datasources/postgres"
	"memberhub.backend/internal/infrastructure/identity"
	"memberhub.backend/internal/infrastructure/repositories"
	"memberhub.backend/internal/usecases"
	"memberhub.backend/pkg/logger"
	"memberhub.backend/pkg/metrics"
	"memberhub.backend/pkg/utils"
)

var errRepairFailed = errors.New("one or more identities could not be repaired")

var openRepairDB = func(cfg config.DatabaseConfig) (*gorm.DB, error) {
	sqlDB, err := postgres.NewConnection(cfg)
	if err != nil {
		return nil, err
	}
	return postgres.OpenGorm(sqlDB)
}

type repairRuntime interface {
	RepairAll(ctx context.Context) (*entities.RepairReport, error)
	RepairIDs(ctx context.Context, ids []uuid.UUID) (*entities.RepairReport, error)
}

type repairDeps struct {
	loadEnv func() error
	loadCfg func() (*config.Config, error)
	prepare func(cfg *config.Config) (repairRuntime, io.Closer, error)
	out     io.Writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func defaultRepairDeps() repairDeps {
	return repairDeps{
		loadEnv: func() error { return godotenv.Load() },
		loadCfg: config.Load,
		prepare: func(cfg *config.Config) (repairRuntime, io.Closer, error) {
			db, err := openRepairDB(cfg.Database)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to connect db: %w", err)
			}
			sqlDB, err := db.DB()
			if err != nil {
				return nil, nil, fmt.Errorf("failed to init sql db: %w", err)
			}

			caps := repositories.DetectSchemaCapabilities(context.Background(), db)
			members := repositories.NewMemberProfileRepository(db, caps)
			m := metrics.New(prometheus.NewRegistry())
			directory := identity.NewAdminClient(cfg.Identity.AdminURL, cfg.Identity.ServiceKey, &http.Client{Timeout: cfg.Identity.HTTPTimeout})
			allocator := usecases.NewDisplayIDAllocator(members, caps, m)
			return usecases.NewReconciliationUsecase(members, directory, allocator, m), sqlDB, nil
		},
		out: os.Stdout,
	}
}

func parseIDList(raw string) ([]uuid.UUID, error) {
	ids, invalid := utils.ParseUUIDs(strings.Split(raw, ","))
	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid identity ids: %s", strings.Join(invalid, ", "))
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("--ids needs at least one identity id")
	}
	return ids, nil
}

func runRepair(args []string, deps repairDeps) error {
	def := defaultRepairDeps()
	if deps.loadEnv == nil {
		deps.loadEnv = def.loadEnv
	}
	if deps.loadCfg == nil {
		deps.loadCfg = def.loadCfg
	}
	if deps.prepare == nil {
		deps.prepare = def.prepare
	}
	if deps.out == nil {
		deps.out = def.out
	}

	fs := flag.NewFlagSet("repair", flag.ContinueOnError)
	allFlag := fs.Bool("all", false, "repair every identity known to the identity service")
	idsFlag := fs.String("ids", "", "comma separated identity UUIDs to repair")
	concurrencyFlag := fs.Int("concurrency", usecases.DefaultRepairConcurrency, "parallel bootstraps")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *allFlag == (*idsFlag != "") {
		return fmt.Errorf("exactly one of --all or --ids is required")
	}
	var ids []uuid.UUID
	if *idsFlag != "" {
		parsed, err := parseIDList(*idsFlag)
		if err != nil {
			return err
		}
		ids = parsed
	}

	if err := deps.loadEnv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg, err := deps.loadCfg()
	if err != nil {
		return err
	}
	logger.Init(cfg.Server.Env)

	runtime, closer, err := deps.prepare(cfg)
	if err != nil {
		return err
	}
	if closer == nil {
		closer = nopCloser{}
	}
	defer closer.Close()
	if r, ok := runtime.(interface{ SetConcurrency(int) }); ok {
		r.SetConcurrency(*concurrencyFlag)
	}

	ctx := context.Background()
	var report *entities.RepairReport
	if *allFlag {
		report, err = runtime.RepairAll(ctx)
	} else {
		report, err = runtime.RepairIDs(ctx, ids)
	}
	if err != nil {
		return fmt.Errorf("repair failed: %w", err)
	}

	enc := json.NewEncoder(deps.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if report.Failed > 0 {
		return errRepairFailed
	}
	return nil
}

func main() {
	if err := runRepair(os.Args[1:], defaultRepairDeps()); err != nil {
		log.Fatal(err)
	}
}
