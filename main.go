// Command go-aggregate imports documents into a collection and runs an
// aggregation pipeline or a find over it, printing the result as JSON.
//
//	go-aggregate --collection students --import-json students.json \
//	    --pipeline-json '[{"$unwind": "$courses"}]' --sort-keys
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/asaidimu/go-aggregate/config"
	"github.com/asaidimu/go-aggregate/core/persistence"
	"github.com/asaidimu/go-aggregate/core/query"
	"github.com/asaidimu/go-aggregate/core/schema"
	"github.com/asaidimu/go-aggregate/loader"
	"github.com/asaidimu/go-aggregate/store"
	"github.com/asaidimu/go-aggregate/utils"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

type options struct {
	configFile   string
	envFile      string
	collection   string
	importJSON   []string
	importCSV    []string
	renames      map[string]string
	pipelineFile string
	pipelineJSON string
	filterJSON   string
	sortKeys     bool
	drop         bool
}

func parseFlags(args []string) (*options, error) {
	var o options
	fs := pflag.NewFlagSet("go-aggregate", pflag.ContinueOnError)
	fs.StringVarP(&o.configFile, "config", "c", "", "YAML configuration file")
	fs.StringVar(&o.envFile, "env-file", "", ".env file loaded before reading the environment")
	fs.StringVar(&o.collection, "collection", "", "collection to work on (required)")
	fs.StringSliceVar(&o.importJSON, "import-json", nil, "JSON array or NDJSON file to import (repeatable)")
	fs.StringSliceVar(&o.importCSV, "import-csv", nil, "CSV file with a header row to import (repeatable)")
	fs.StringToStringVar(&o.renames, "rename", nil, "CSV column renames, e.g. course=class,midterm_1=grade_1")
	fs.StringVarP(&o.pipelineFile, "pipeline", "p", "", "file holding a JSON aggregation pipeline")
	fs.StringVar(&o.pipelineJSON, "pipeline-json", "", "inline JSON aggregation pipeline")
	fs.StringVarP(&o.filterJSON, "filter-json", "f", "", "MongoDB style filter for a find when no pipeline is given")
	fs.BoolVar(&o.sortKeys, "sort-keys", false, "print document fields sorted by name")
	fs.BoolVar(&o.drop, "drop", false, "drop the collection before importing")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.collection == "" {
		return nil, fmt.Errorf("--collection is required")
	}
	if o.pipelineFile != "" && o.pipelineJSON != "" {
		return nil, fmt.Errorf("--pipeline and --pipeline-json are mutually exclusive")
	}
	if o.filterJSON != "" && (o.pipelineFile != "" || o.pipelineJSON != "") {
		return nil, fmt.Errorf("--filter-json cannot be combined with a pipeline; use a $match stage")
	}
	return &o, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "go-aggregate:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}

	var loadOpts []config.Option
	if o.configFile != "" {
		loadOpts = append(loadOpts, config.WithConfigFile(o.configFile))
	}
	if o.envFile != "" {
		loadOpts = append(loadOpts, config.WithEnvFile(o.envFile))
	}
	cfg, err := config.Load(loadOpts...)
	if err != nil {
		return err
	}

	logger, err := utils.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	p, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	if o.drop {
		dropped, err := p.Drop(ctx, o.collection)
		if err != nil {
			return err
		}
		logger.Info("Dropped collection", zap.String("collection", o.collection), zap.Bool("existed", dropped))
	}

	coll, err := p.Collection(ctx, o.collection)
	if err != nil {
		return err
	}
	if err := importFiles(ctx, coll, o, logger); err != nil {
		return err
	}

	docs, err := execute(ctx, coll, o)
	if err != nil {
		return err
	}
	out, err := schema.PrettyPrint(docs, o.sortKeys)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func importFiles(ctx context.Context, coll persistence.PersistenceCollectionInterface, o *options, logger *zap.Logger) error {
	for _, path := range o.importJSON {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		n, err := loader.LoadJSON(ctx, f, coll)
		f.Close()
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		logger.Info("Imported JSON", zap.String("file", path), zap.Int("documents", n))
	}
	for _, path := range o.importCSV {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		n, err := loader.LoadCSV(ctx, f, coll, loader.CSVOptions{Renames: o.renames})
		f.Close()
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		logger.Info("Imported CSV", zap.String("file", path), zap.Int("documents", n))
	}
	return nil
}

func execute(ctx context.Context, coll persistence.PersistenceCollectionInterface, o *options) ([]schema.Document, error) {
	pipeline := []byte(o.pipelineJSON)
	if o.pipelineFile != "" {
		data, err := os.ReadFile(o.pipelineFile)
		if err != nil {
			return nil, err
		}
		pipeline = data
	}
	if len(pipeline) > 0 {
		return coll.AggregateJSON(ctx, pipeline)
	}

	dsl := &query.QueryDSL{}
	if o.filterJSON != "" {
		doc, err := schema.DecodeDocument([]byte(o.filterJSON))
		if err != nil {
			return nil, fmt.Errorf("invalid --filter-json: %w", err)
		}
		filter, err := query.ParseFilter(doc)
		if err != nil {
			return nil, fmt.Errorf("invalid --filter-json: %w", err)
		}
		dsl.Filters = filter
	}
	result, err := coll.Read(ctx, dsl)
	if err != nil {
		return nil, err
	}
	return result.Data, nil
}
