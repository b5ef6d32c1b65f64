package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"chartdesk/config"
	"chartdesk/internal/chart"
	"chartdesk/internal/indicator"
	"chartdesk/internal/logger"
	"chartdesk/internal/marketdata"
	"chartdesk/internal/model"
)

var rootCmd = &cobra.Command{
	Use:   "chartctl",
	Short: "Render charts and inspect indicators from the command line",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			log.Printf("[chartctl] WARNING: .env not loaded: %v", err)
		}
	},
}

var exportCmd = &cobra.Command{
	Use:   "export SYMBOL",
	Short: "Render a chart to a PNG file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := exportOptionsFromFlags(cmd)
		if err != nil {
			return err
		}
		opts.Symbol = args[0]
		fetcher, err := fetcherFromFlags(cmd)
		if err != nil {
			return err
		}
		path, err := runExport(cmd.Context(), fetcher, opts)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var periodsCmd = &cobra.Command{
	Use:   "periods",
	Short: "List the moving-average periods offered per timeframe",
	Run: func(cmd *cobra.Command, args []string) {
		printPeriods(cmd.OutOrStdout())
	},
}

var indicatorsCmd = &cobra.Command{
	Use:   "indicators SYMBOL",
	Short: "Print the latest value of every indicator for a symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tf, err := model.ParseTimeframe(mustString(cmd, "timeframe"))
		if err != nil {
			return err
		}
		fetcher, err := fetcherFromFlags(cmd)
		if err != nil {
			return err
		}
		return runIndicators(cmd.Context(), cmd.OutOrStdout(), fetcher, args[0], tf, time.Now())
	},
}

func init() {
	for _, cmd := range []*cobra.Command{exportCmd, indicatorsCmd} {
		cmd.Flags().String("config", os.Getenv("CHARTD_CONFIG"), "path to YAML config")
		cmd.Flags().String("provider", "", "candle source: finnhub or csv (default from config)")
		cmd.Flags().String("csv-dir", "", "directory of SYMBOL.csv files")
		cmd.Flags().StringP("timeframe", "t", string(model.TF1Y), "1D, 5D, 1M, 3M, 6M, 1Y, 5Y, MAX or CUSTOM")
	}

	exportCmd.Flags().String("type", "candlestick", "candlestick, line or area")
	exportCmd.Flags().String("from", "", "CUSTOM range start, YYYY-MM-DD")
	exportCmd.Flags().String("to", "", "CUSTOM range end, YYYY-MM-DD")
	exportCmd.Flags().Int("width", 1280, "image width in pixels")
	exportCmd.Flags().Int("height", 720, "image height in pixels")
	exportCmd.Flags().StringP("out", "o", ".", "output directory")
	exportCmd.Flags().IntSlice("periods", []int{20, 50}, "moving-average periods")
	exportCmd.Flags().Bool("bb", false, "draw Bollinger Bands")
	exportCmd.Flags().Bool("rsi", false, "draw the RSI pane")
	exportCmd.Flags().Bool("macd", false, "draw the MACD pane")
	exportCmd.Flags().Bool("volume", true, "draw volume")

	rootCmd.AddCommand(exportCmd, periodsCmd, indicatorsCmd)
}

func main() {
	log.SetFlags(log.LstdFlags)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type exportOptions struct {
	Symbol        string
	Prefs         model.ChartPreferences
	From, To      time.Time
	Width, Height int
	OutDir        string
}

func exportOptionsFromFlags(cmd *cobra.Command) (exportOptions, error) {
	var opts exportOptions
	tf, err := model.ParseTimeframe(mustString(cmd, "timeframe"))
	if err != nil {
		return opts, err
	}
	ct, err := model.ParseChartType(mustString(cmd, "type"))
	if err != nil {
		return opts, err
	}
	periods, _ := cmd.Flags().GetIntSlice("periods")
	bb, _ := cmd.Flags().GetBool("bb")
	rsi, _ := cmd.Flags().GetBool("rsi")
	macd, _ := cmd.Flags().GetBool("macd")
	volume, _ := cmd.Flags().GetBool("volume")
	opts.Width, _ = cmd.Flags().GetInt("width")
	opts.Height, _ = cmd.Flags().GetInt("height")
	opts.OutDir = mustString(cmd, "out")

	opts.Prefs = model.ChartPreferences{
		ChartType:      ct,
		Timeframe:      tf,
		EnabledPeriods: periods,
		BBEnabled:      bb,
		RSIEnabled:     rsi,
		MACDEnabled:    macd,
		VolumeEnabled:  volume,
	}
	if tf == model.TFCustom {
		if opts.From, err = time.Parse("2006-01-02", mustString(cmd, "from")); err != nil {
			return opts, fmt.Errorf("--from: %w", err)
		}
		if opts.To, err = time.Parse("2006-01-02", mustString(cmd, "to")); err != nil {
			return opts, fmt.Errorf("--to: %w", err)
		}
	}
	return opts, nil
}

// runExport renders one chart headlessly and writes it under opts.OutDir.
// It returns the written path.
func runExport(ctx context.Context, fetcher model.CandleFetcher, opts exportOptions) (string, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return "", fmt.Errorf("width and height must be positive")
	}
	o := chart.New(chart.Options{
		Fetcher:   fetcher,
		Container: chart.NewFixedContainer(opts.Width, opts.Height),
		Engine:    indicator.NewEngine(indicator.DefaultParams(), 1),
		Log:       logger.Discard(),
	})
	defer o.Dispose()

	p := opts.Prefs.Clone()
	p.Symbol = opts.Symbol
	if err := o.UsePreferences(p); err != nil {
		return "", err
	}
	req := chart.Request{Symbol: opts.Symbol, Timeframe: p.Timeframe, ChartType: p.ChartType, From: opts.From, To: opts.To}
	if err := o.Load(ctx, req); err != nil {
		return "", err
	}
	img, err := o.Export()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(opts.OutDir, img.Name)
	if err := os.WriteFile(path, img.PNG, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// newTable returns a borderless, left-aligned table writing to w.
func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetColumnSeparator("")
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func printPeriods(w io.Writer) {
	table := newTable(w, "Timeframe", "Periods")
	for _, tf := range model.Timeframes {
		periods := indicator.AvailablePeriods(tf)
		parts := make([]string, len(periods))
		for i, p := range periods {
			parts[i] = fmt.Sprint(p)
		}
		table.Append([]string{string(tf), strings.Join(parts, ", ")})
	}
	table.Render()
}

// runIndicators fetches the symbol's dataset for tf and prints the last
// point of every indicator the dataset is long enough for.
func runIndicators(ctx context.Context, w io.Writer, fetcher model.CandleFetcher, symbol string, tf model.Timeframe, now time.Time) error {
	symbol = strings.ToUpper(symbol)
	req, err := model.ResolveTimeframe(symbol, tf, now)
	if err != nil {
		return err
	}
	batch, err := fetcher.FetchCandles(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrDataUnavailable, err)
	}
	candles := batch.Candles()
	if len(candles) == 0 {
		return fmt.Errorf("%w: %s %s", model.ErrDataUnavailable, symbol, tf)
	}

	engine := indicator.NewEngine(indicator.DefaultParams(), 1)
	params := engine.Params()
	ds := indicator.NewDataset(candles)
	ov := engine.Compute(ds, indicator.Selection{
		Periods: indicator.AvailablePeriods(tf),
		BB:      true,
		RSI:     ds.Len() >= params.MinRSIBars(),
		MACD:    ds.Len() >= params.MinMACDBars(),
	})

	last := candles[len(candles)-1]
	fmt.Fprintf(w, "%s %s, %d bars\n", symbol, tf, len(candles))
	table := newTable(w, "Indicator", "Value", "Time")
	table.Append([]string{"close", fmt.Sprintf("%.4f", last.Close), last.TS().Format(time.RFC3339)})
	row := func(name string, s model.Series) {
		if p, ok := s.Last(); ok {
			table.Append([]string{name, fmt.Sprintf("%.4f", p.Value), time.Unix(p.Time, 0).UTC().Format(time.RFC3339)})
		} else {
			table.Append([]string{name, "-", "not enough bars"})
		}
	}
	for _, p := range indicator.AvailablePeriods(tf) {
		row(indicator.SMAID(p), ov.SMA[p])
	}
	row("bb.upper", ov.BB.Upper)
	row("bb.middle", ov.BB.Middle)
	row("bb.lower", ov.BB.Lower)
	row(indicator.IDRSI, ov.RSI)
	row(indicator.IDMACD, ov.MACD.MACD)
	row("macd.signal", ov.MACD.Signal)
	row("macd.histogram", ov.MACD.Histogram)
	table.Render()
	return nil
}

// fetcherFromFlags builds the candle source from the config file and
// environment, with --provider and --csv-dir taking precedence.
func fetcherFromFlags(cmd *cobra.Command) (model.CandleFetcher, error) {
	cfg, err := config.Load(mustString(cmd, "config"))
	if err != nil {
		return nil, err
	}
	if v := mustString(cmd, "provider"); v != "" {
		cfg.DataSource.Provider = v
	}
	if v := mustString(cmd, "csv-dir"); v != "" {
		cfg.DataSource.CSVDir = v
	}
	if cfg.DataSource.Provider == marketdata.ProviderFinnhub && cfg.DataSource.APIKey == "" {
		return nil, fmt.Errorf("FINNHUB_API_KEY is not set; use --provider csv for local files")
	}
	return marketdata.New(marketdata.Options{
		Provider: cfg.DataSource.Provider,
		BaseURL:  cfg.DataSource.BaseURL,
		APIKey:   cfg.DataSource.APIKey,
		CSVDir:   cfg.DataSource.CSVDir,
		Timeout:  cfg.DataSource.Timeout,
	})
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}
