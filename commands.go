package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"tptpredict/artifact"
	"tptpredict/config"
	"tptpredict/errors"
	"tptpredict/form"
	qhttp "tptpredict/http"
	"tptpredict/inference"
	"tptpredict/logger"
	"tptpredict/monitoring"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the prediction form",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var (
	predictSets []string
	predictJSON bool
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Run one prediction on the default inputs",
	Long: `Run one prediction on the stored default inputs. Individual features
can be overridden with --set name=value; the month accepts its name.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPredict(cmd.Context())
	},
}

var featuresJSON bool

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "List the model inputs and their defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFeatures()
	},
}

func init() {
	predictCmd.Flags().StringArrayVar(&predictSets, "set", nil, "override a feature value (name=value)")
	predictCmd.Flags().BoolVar(&predictJSON, "json", false, "print the result as JSON")
	featuresCmd.Flags().BoolVar(&featuresJSON, "json", false, "print the features as JSON")
}

// openArtifacts loads the artifacts eagerly so a broken artifact set fails
// before anything is served.
func openArtifacts(cfg *config.Config) (*artifact.Loader, *artifact.Artifacts, error) {
	loader := artifact.NewLoader(artifact.OptionsFromConfig(cfg))
	a, err := loader.Get()
	if err != nil {
		if errors.IsArtifactError(err) {
			for _, hint := range errors.GetAllHints(err) {
				logger.Errorf("hint: %s", hint)
			}
		}
		return nil, nil, errors.Wrap(err, "load artifacts")
	}
	return loader, a, nil
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	monitoring.Init()

	loader, _, err := openArtifacts(cfg)
	if err != nil {
		return err
	}
	defer loader.Close()

	if cfg.Artifacts.Watch {
		watcher, err := artifact.NewWatcher(loader)
		if err != nil {
			return err
		}
		watcher.Start()
		defer watcher.Close()
	}

	invoker, err := inference.NewInvoker(loader, cfg.Cache.Size)
	if err != nil {
		return err
	}
	server, err := qhttp.NewServer(qhttp.ServerConfigFromConfig(cfg), invoker)
	if err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() {
		errc <- server.Start()
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Infof("Shutting down...")
	if err := server.Stop(context.Background()); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}
	logger.Infof("Exiting")
	return nil
}

func runPredict(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loader, a, err := openArtifacts(cfg)
	if err != nil {
		return err
	}
	defer loader.Close()

	row := inference.InputRow(form.Build(a.FeatureNames, a.Defaults, form.ParseLocale(cfg.UI.Locale)).DefaultRow())
	if err := applySets(row, predictSets); err != nil {
		return err
	}

	invoker, err := inference.NewInvoker(loader, 0)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := invoker.Invoke(ctx, row)
	if err != nil {
		for _, detail := range errors.GetAllDetails(err) {
			fmt.Fprintln(os.Stderr, detail)
		}
		return err
	}

	if predictJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	tag := form.ParseLocale(cfg.UI.Locale)
	p := form.NewPrinter(tag)
	fmt.Println(p.Sprintf(form.MsgPredicted, result.Label))
	fmt.Println(p.Sprintf(form.MsgProbability))
	for _, cp := range result.Probabilities {
		fmt.Printf("  %s: %s\n", cp.Label, form.FormatProbability(tag, cp.Probability))
	}
	if result.ClassesFallback {
		fmt.Println(p.Sprintf(form.MsgFallbackHint, strings.Join(a.Classes, ", ")))
	}
	if !result.OrderVerified {
		fmt.Println(p.Sprintf(form.MsgOrder))
	}
	return nil
}

// applySets parses name=value overrides into row.
func applySets(row inference.InputRow, sets []string) error {
	for _, set := range sets {
		name, raw, ok := strings.Cut(set, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return errors.Newf("invalid --set %q, expected name=value", set)
		}
		raw = strings.TrimSpace(raw)
		if name == form.MonthFeature {
			if code, ok := form.MonthCode(raw); ok {
				row[name] = float64(code)
				continue
			}
		}
		v, err := cast.ToFloat64E(raw)
		if err != nil {
			return errors.Wrapf(err, "invalid value for %s", name)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Newf("value for %s is not a finite number", name)
		}
		row[name] = v
	}
	return nil
}

func runFeatures() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loader, a, err := openArtifacts(cfg)
	if err != nil {
		return err
	}
	defer loader.Close()

	f := form.Build(a.FeatureNames, a.Defaults, form.ParseLocale(cfg.UI.Locale))
	if featuresJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(f.Specs())
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tMIN\tMAX\tDEFAULT")
	for _, spec := range f.Specs() {
		if spec.Kind == form.WidgetMonth {
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t%s\n", spec.Name, spec.Kind, form.DisplayValue(spec, spec.Default))
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%g\t%g\t%s\n", spec.Name, spec.Kind, spec.Min, spec.Max, form.DisplayValue(spec, spec.Default))
	}
	return tw.Flush()
}
