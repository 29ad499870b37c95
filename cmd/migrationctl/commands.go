package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fibermig/internal/app"
	"fibermig/internal/config"
	"fibermig/internal/export"
	"fibermig/internal/ingest"
	"fibermig/internal/logging"
	"fibermig/internal/progress"
	"fibermig/internal/reconcile"
	"fibermig/internal/report"
	"fibermig/internal/store"
)

// cli carries what the commands share. Tests set store to skip config.
type cli struct {
	out       io.Writer
	log       *zap.Logger
	store     store.Store
	batchSize int
	now       func() time.Time
	cleanup   []func()
}

func (c *cli) open(cmd *cobra.Command) error {
	if c.now == nil {
		c.now = time.Now
	}
	if c.store != nil {
		if c.log == nil {
			c.log = zap.NewNop()
		}
		return nil
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		level = cfg.LogLevel
	}
	// logs go to stdout in json mode; keep report output clean with console on stderr
	log, err := logging.New(level, "console", "migrationctl")
	if err != nil {
		return err
	}
	c.log = log
	c.batchSize = cfg.ImportBatchSize
	st, closeStore, err := app.OpenStore(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	c.store = st
	c.cleanup = append(c.cleanup, closeStore)
	return nil
}

func (c *cli) close() {
	for i := len(c.cleanup) - 1; i >= 0; i-- {
		c.cleanup[i]()
	}
	c.cleanup = nil
	if c.log != nil {
		_ = c.log.Sync()
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "migrationctl",
		Short:         "Operate the copper-to-fiber migration backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", "", "debug, info, warn or error (default from config)")

	withStore := func(run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			if err := c.open(cmd); err != nil {
				return err
			}
			defer c.close()
			return run(cmd, args)
		}
	}

	importCmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import assets and their locations from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE:  withStore(c.runImport),
	}
	importCmd.Flags().Int("batch-size", 0, "assets per insert batch (default from config)")

	progressCmd := &cobra.Command{Use: "progress", Short: "Wave progress"}
	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Recompute and store wave progress",
		Args:  cobra.NoArgs,
		RunE:  withStore(c.runRefresh),
	}
	refreshCmd.Flags().String("wave", "", "refresh only this wave")
	progressCmd.AddCommand(refreshCmd)

	reportCmd := &cobra.Command{
		Use:       "report daily|work-orders|reconciliation",
		Short:     "Export a report",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"daily", "work-orders", "reconciliation"},
		RunE:      withStore(c.runReport),
	}
	reportCmd.Flags().String("format", "csv", "csv, html, xlsx or json")
	reportCmd.Flags().String("out", "", "output file; a dated default name when empty, - for stdout")
	reportCmd.Flags().String("start", "", "first day, YYYY-MM-DD")
	reportCmd.Flags().String("end", "", "last day, YYYY-MM-DD")
	reportCmd.Flags().String("region", "", "region or All")
	reportCmd.Flags().String("wave", "", "wave id or All")

	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Print the asset and work order reconciliation",
		Args:  cobra.NoArgs,
		RunE:  withStore(c.runReconcile),
	}
	reconcileCmd.Flags().String("region", "", "region or All")

	eventsCmd := &cobra.Command{Use: "events", Short: "Broker events"}
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Print events from a running API over its websocket",
		Args:  cobra.NoArgs,
		RunE:  c.runWatch,
	}
	watchCmd.Flags().String("url", "ws://localhost:8080/v1/events/ws", "websocket endpoint")
	watchCmd.Flags().StringSlice("topic", []string{"waves", "tasks"}, "topics to subscribe to")
	eventsCmd.AddCommand(watchCmd)

	root.AddCommand(importCmd, progressCmd, reportCmd, reconcileCmd, eventsCmd)
	return root
}

func (c *cli) runImport(cmd *cobra.Command, args []string) error {
	imp := ingest.NewImporter(c.store, nil, c.log)
	if n, _ := cmd.Flags().GetInt("batch-size"); n > 0 {
		imp.BatchSize = n
	} else if c.batchSize > 0 {
		imp.BatchSize = c.batchSize
	}
	res, err := imp.Import(cmd.Context(), ingest.FileSource{Path: args[0]})
	for _, e := range res.Errors {
		fmt.Fprintln(c.out, "  ", e)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "created %d assets (%d locations), %d failed\n", res.Created, res.LocationsCreated, res.Failed)
	return nil
}

func (c *cli) runRefresh(cmd *cobra.Command, args []string) error {
	svc := progress.NewService(c.store, nil, c.log)
	var results []progress.Result
	if id, _ := cmd.Flags().GetString("wave"); id != "" {
		res, err := svc.RefreshWave(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("wave %s: %w", id, err)
		}
		results = []progress.Result{res}
	} else {
		var err error
		if results, err = svc.RefreshEverything(cmd.Context()); err != nil {
			return err
		}
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WAVE\tPROGRESS\tSOURCE\tERROR")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%d%%\t%s\t%s\n", r.WaveID, r.Percentage, r.Source, r.Error)
	}
	return tw.Flush()
}

type reportOutput struct {
	prefix, title string
	records       []export.Record
	body          any
}

func (c *cli) buildReport(ctx context.Context, kind string, f report.Filter) (reportOutput, error) {
	snap, err := store.LoadSnapshot(ctx, c.store)
	if err != nil {
		return reportOutput{}, err
	}
	switch kind {
	case "daily":
		rows := report.Daily(snap.WorkOrders, snap.Locations, f)
		return reportOutput{"migration-report", "Daily Migration Report", report.DailyRecords(rows), rows}, nil
	case "work-orders":
		rows := report.WorkOrderDetail(snap.WorkOrders, snap.Locations, f)
		return reportOutput{"work-orders", "Work Order Report", report.WorkOrderRecords(rows), rows}, nil
	case "reconciliation":
		rows := reconcile.Compare(snap.Assets, snap.WorkOrders, snap.Locations, reconcile.Filter{Region: f.Region})
		return reportOutput{"reconciliation", "Reconciliation Report", reconcile.Records(rows), rows}, nil
	}
	return reportOutput{}, fmt.Errorf("unknown report %q", kind)
}

func (c *cli) runReport(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	format, _ := flags.GetString("format")
	out, _ := flags.GetString("out")
	var f report.Filter
	f.Start, _ = flags.GetString("start")
	f.End, _ = flags.GetString("end")
	f.Region, _ = flags.GetString("region")
	f.WaveID, _ = flags.GetString("wave")
	if err := f.Validate(); err != nil {
		return err
	}

	rep, err := c.buildReport(cmd.Context(), args[0], f)
	if err != nil {
		return err
	}
	if out == "" {
		out = export.Filename(rep.prefix, format, c.now())
	}
	w := c.out
	if out != "-" {
		file, err := os.Create(out)
		if err != nil {
			return err
		}
		defer file.Close()
		w = file
	}
	switch format {
	case "csv":
		err = export.WriteCSV(w, rep.records)
	case "html":
		err = export.WriteHTML(w, rep.title, rep.records)
	case "xlsx":
		err = export.WriteXLSX(w, rep.title, rep.records)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(rep.body)
	default:
		return fmt.Errorf("unknown format %q (csv, html, xlsx, json)", format)
	}
	if err != nil {
		return err
	}
	if out != "-" {
		fmt.Fprintf(c.out, "wrote %d rows to %s\n", len(rep.records), out)
	}
	return nil
}

func (c *cli) runReconcile(cmd *cobra.Command, args []string) error {
	region, _ := cmd.Flags().GetString("region")
	if err := (report.Filter{Region: region}).Validate(); err != nil {
		return err
	}
	snap, err := store.LoadSnapshot(cmd.Context(), c.store)
	if err != nil {
		return err
	}
	rows := reconcile.Compare(snap.Assets, snap.WorkOrders, snap.Locations, reconcile.Filter{Region: region})
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ASSET\tTYPE\tLOCATION\tREGION\tASSET STATUS\tWORK ORDER\tDISCREPANCY")
	for _, r := range rows {
		mark := ""
		if r.Discrepancy {
			mark = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", r.DisplayID(), r.Type, r.Address, r.Region, r.AssetStatus, r.WorkOrderStatus, mark)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	sum := reconcile.Summarize(rows)
	fmt.Fprintf(c.out, "\n%d assets, %d completed, %d pending, %d discrepancies, match rate %.1f%%\n",
		sum.Total, sum.Completed, sum.Pending, sum.Discrepancies, sum.MatchRate)
	return nil
}

type wsFrame struct {
	Type  string          `json:"type"`
	Topic string          `json:"topic,omitempty"`
	Event json.RawMessage `json:"event,omitempty"`
	Error string          `json:"error,omitempty"`
}

func (c *cli) runWatch(cmd *cobra.Command, args []string) error {
	raw, _ := cmd.Flags().GetString("url")
	topics, _ := cmd.Flags().GetStringSlice("topic")
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u, err)
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	for _, t := range topics {
		if err := conn.WriteJSON(wsFrame{Type: "subscribe", Topic: strings.TrimSpace(t)}); err != nil {
			return err
		}
	}
	for {
		var f wsFrame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		switch f.Type {
		case "event":
			fmt.Fprintf(c.out, "%s %s %s\n", time.Now().UTC().Format(time.RFC3339), f.Topic, f.Event)
		case "error":
			fmt.Fprintf(c.out, "error (%s): %s\n", f.Topic, f.Error)
		}
	}
}
