package main

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"modelgate/internal/catalog"
	"modelgate/internal/config"
	"modelgate/internal/domain/models"
	"modelgate/internal/domain/repositories"
	"modelgate/internal/repository/postgres"
	"modelgate/internal/service/gateway"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

func main() {
	// Parse command-line flags
	dropTables := pflag.Bool("drop-tables", false, "Drop all model tables before seeding (fresh start)")
	schemaOnly := pflag.Bool("schema-only", false, "Only create model tables, don't insert fixtures")
	fixturesFile := pflag.String("fixtures", "", "fixtures YAML (embedded fixtures when empty)")
	modelsFile := pflag.String("models", "", "model catalog YAML (MODELS_FILE or embedded catalog when empty)")
	pflag.Parse()

	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()
	if *modelsFile != "" {
		cfg.ModelsFile = *modelsFile
	}

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && *dropTables {
		log.Fatalf("BLOCKED: Cannot run --drop-tables in production environment")
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	log.Printf("Seeding database (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)

	cat, err := catalog.Load(cfg.ModelsFile)
	if err != nil {
		log.Fatalf("Failed to load model catalog: %v", err)
	}

	// Create database connection pool
	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: postgres.NewTableNames(cfg.TablePrefix),
		Logger: logger,
	}

	stores := make(map[string]*postgres.Store, len(cat.Names()))
	for _, name := range cat.Names() {
		schema, _ := cat.Schema(name)
		stores[name] = postgres.NewStore(repoConfig, schema)
	}

	// Drop tables if requested
	if *dropTables {
		log.Println("Dropping model tables...")
		for _, name := range cat.Names() {
			if err := stores[name].DropTable(ctx); err != nil {
				log.Fatalf("Failed to drop table for %s: %v", name, err)
			}
			log.Printf("  dropped %s", name)
		}
	}

	// Ensure tables exist
	log.Println("Ensuring model tables are up to date...")
	for _, name := range cat.Names() {
		if err := stores[name].EnsureTable(ctx); err != nil {
			log.Fatalf("Failed to create table for %s: %v", name, err)
		}
	}

	if *schemaOnly {
		log.Println("Schema setup complete (schema-only mode)")
		return
	}

	fixtures, err := loadFixtures(*fixturesFile)
	if err != nil {
		log.Fatalf("Failed to load fixtures: %v", err)
	}

	// All fixtures go in or none do
	txManager := postgres.NewTransactionManager(pool)
	recorder := gateway.NewVersionRecorder(nil)
	inserted := 0
	err = txManager.ExecTx(ctx, func(txCtx context.Context) error {
		for _, name := range cat.Names() {
			n, err := seedModel(txCtx, stores[name], recorder, fixtures[name])
			if err != nil {
				return fmt.Errorf("seed %s: %w", name, err)
			}
			inserted += n
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to seed fixtures: %v", err)
	}

	for name := range fixtures {
		if _, ok := cat.Schema(name); !ok {
			log.Printf("Warning: fixtures for unknown model %s were skipped", name)
		}
	}

	log.Printf("Seeding complete: %d documents", inserted)
}

// loadFixtures reads model name → documents, falling back to the embedded
// fixtures when path is empty.
func loadFixtures(path string) (map[string][]map[string]any, error) {
	data := defaultFixtures
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, err
		}
	}
	var fixtures map[string][]map[string]any
	if err := yaml.Unmarshal(data, &fixtures); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return fixtures, nil
}

// seedModel saves every fixture with its first history entry. Fixtures
// without _id get a fresh one.
func seedModel(ctx context.Context, store repositories.Store, recorder *gateway.VersionRecorder, docs []map[string]any) (int, error) {
	for _, raw := range docs {
		doc := models.DocumentFromMap(raw)
		if doc.ID == "" {
			doc.ID = uuid.NewString()
		}
		recorder.Stamp(doc)
		if err := store.Save(ctx, doc); err != nil {
			return 0, fmt.Errorf("save %s: %w", doc.ID, err)
		}
	}
	return len(docs), nil
}
