package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/proforce-air/pidlink/internal/config"
	"github.com/proforce-air/pidlink/internal/export"
	"github.com/proforce-air/pidlink/internal/link"
	"github.com/proforce-air/pidlink/internal/loop"
	"github.com/proforce-air/pidlink/internal/metrics"
	"github.com/proforce-air/pidlink/internal/tui"
)

var (
	kp       float64
	ki       float64
	kd       float64
	setpoint float64
	limit    float64
	period   float64
	duration float64

	transport      string
	address        string
	characteristic string
	channel        uint8
	baud           int

	configFile string
	preset     string
	headless   bool
	csvPath    string
	svgPath    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pidlink",
		Short: "PID feedback controller for bluetooth and serial hardware",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the control loop against a device",
		RunE:  runLoop,
	}
	addTuningFlags(runCmd)
	runCmd.Flags().StringVar(&transport, "transport", "none", "device transport (gatt|rfcomm|serial|none)")
	runCmd.Flags().StringVar(&address, "address", "", "device address (bluetooth MAC or tty path)")
	runCmd.Flags().StringVar(&characteristic, "characteristic", config.DefaultCharUUID, "gatt characteristic uuid")
	runCmd.Flags().Uint8Var(&channel, "channel", config.DefaultChannel, "rfcomm channel")
	runCmd.Flags().IntVar(&baud, "baud", config.DefaultBaud, "serial baud rate")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "run the loop without hardware",
		RunE: func(cmd *cobra.Command, args []string) error {
			transport = "none"
			return runLoop(cmd, args)
		},
	}
	addTuningFlags(simulateCmd)

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "list advertising BLE devices",
		RunE:  scanDevices,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list hardware presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := config.ListPresets()
			sort.Strings(names)
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tUNIT\tSETPOINT RANGE\tKP\tKI\tKD\tLIMIT")
			for _, name := range names {
				p, _ := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%s\t%g..%g\t%g\t%g\t%g\t%g\n",
					name, p.Unit, p.SetpointMin, p.SetpointMax,
					p.Gains.Kp, p.Gains.Ki, p.Gains.Kd, p.Limit)
			}
			return w.Flush()
		},
	}

	rootCmd.AddCommand(runCmd, simulateCmd, scanCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addTuningFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&kp, "kp", config.DefaultKp, "proportional gain")
	cmd.Flags().Float64Var(&ki, "ki", config.DefaultKi, "integral gain")
	cmd.Flags().Float64Var(&kd, "kd", config.DefaultKd, "derivative gain")
	cmd.Flags().Float64Var(&setpoint, "setpoint", 0, "target value")
	cmd.Flags().Float64Var(&limit, "limit", config.DefaultLimit, "output limit (symmetric)")
	cmd.Flags().Float64Var(&period, "period", config.DefaultPeriod, "tick period in seconds")
	cmd.Flags().Float64Var(&duration, "time", 0, "run duration in seconds (0 = until interrupted)")
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "hardware preset")
	cmd.Flags().BoolVar(&headless, "headless", false, "disable the dashboard, log to stdout")
	cmd.Flags().StringVar(&csvPath, "csv", "", "write sample history to CSV on exit")
	cmd.Flags().StringVar(&svgPath, "svg", "", "write a chart of the run to SVG on exit")
}

// buildConfig layers file, preset, and explicit flags, last wins.
func buildConfig(cmd *cobra.Command) (*config.Config, config.Preset, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, config.Preset{}, err
		}
		cfg = loaded
	}

	hw, _ := config.GetPreset("custom")
	if preset != "" {
		p, ok := config.GetPreset(preset)
		if !ok {
			return nil, config.Preset{}, fmt.Errorf("unknown preset: %s", preset)
		}
		hw = p
		p.Apply(cfg)
	}

	set := cmd.Flags().Changed
	if set("transport") {
		cfg.Transport = transport
	}
	if set("address") {
		cfg.Device.Address = address
	}
	if set("characteristic") {
		cfg.Device.Characteristic = characteristic
	}
	if set("channel") {
		cfg.Device.Channel = channel
	}
	if set("baud") {
		cfg.Device.Baud = baud
	}
	if set("kp") {
		cfg.Gains.Kp = kp
	}
	if set("ki") {
		cfg.Gains.Ki = ki
	}
	if set("kd") {
		cfg.Gains.Kd = kd
	}
	if set("setpoint") {
		cfg.Setpoint = setpoint
	}
	if set("limit") {
		cfg.Limit = limit
	}
	if set("period") {
		cfg.Period = period
	}
	if cmd.Name() == "simulate" {
		cfg.Transport = "none"
	}

	if err := cfg.Validate(); err != nil {
		return nil, config.Preset{}, err
	}
	return cfg, hw, nil
}

func buildLink(cfg *config.Config) (link.Link, error) {
	switch cfg.Transport {
	case "gatt":
		client, err := link.NewBLEClient()
		if err != nil {
			return nil, err
		}
		return link.NewGATT(client, cfg.Device.Address, cfg.Device.Characteristic), nil
	case "rfcomm":
		return link.NewRFCOMM(cfg.Device.Address, cfg.Device.Channel), nil
	case "serial":
		return link.NewSerial(cfg.Device.Address, cfg.Device.Baud), nil
	default:
		return nil, nil
	}
}

func runLoop(cmd *cobra.Command, args []string) error {
	cfg, hw, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	lnk, err := buildLink(cfg)
	if err != nil {
		return err
	}

	store := loop.NewStore(loop.Config{
		Kp:          cfg.Gains.Kp,
		Ki:          cfg.Gains.Ki,
		Kd:          cfg.Gains.Kd,
		Setpoint:    cfg.Setpoint,
		OutputLimit: cfg.Limit,
	})
	if lnk != nil {
		store.RequestConnect()
	}

	l := loop.New(lnk)
	runner := loop.NewRunner(l, store, time.Duration(cfg.Period*float64(time.Second)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(duration*float64(time.Second)))
		defer cancel()
	}

	if headless {
		err = runHeadless(ctx, runner)
	} else {
		err = runDashboard(ctx, runner, l, store, hw)
	}
	if err != nil {
		return err
	}

	return finishRun(l, store)
}

func runHeadless(ctx context.Context, runner *loop.Runner) error {
	logger := log.New(os.Stdout, "", log.Ltime|log.Lmicroseconds)

	var ticks int
	var lastState loop.State = -1
	runner.OnTick(func(st loop.Status) {
		if st.State != lastState {
			logger.Printf("state: %s", st.State)
			lastState = st.State
		}
		ticks++
		if ticks%50 == 0 {
			logger.Printf("measurement=%.4f control=%.4f degraded=%v", st.Measurement, st.Control, st.Degraded)
		}
	})

	if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func runDashboard(ctx context.Context, runner *loop.Runner, l *loop.Loop, store *loop.Store, hw config.Preset) error {
	p := tea.NewProgram(tui.New(store, l.History(), hw), tea.WithAltScreen())

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		var lastSend time.Time
		runner.OnTick(func(st loop.Status) {
			// the dashboard repaints at 10 Hz; don't flood it
			if time.Since(lastSend) >= 100*time.Millisecond {
				lastSend = time.Now()
				p.Send(tui.StatusMsg{Status: st})
			}
		})
		errc <- runner.Run(runCtx)
	}()
	go func() {
		<-runCtx.Done()
		p.Quit()
	}()

	_, uiErr := p.Run()
	cancel()
	if err := <-errc; err != nil && runCtx.Err() == nil {
		return err
	}
	return uiErr
}

func finishRun(l *loop.Loop, store *loop.Store) error {
	samples := l.History().Snapshot()
	cfg := store.Current()

	if len(samples) > 0 {
		fmt.Printf("run finished: %d samples over %.2fs\n", len(samples), samples[len(samples)-1].T)
		fmt.Printf("  rms error: %.4f\n", metrics.RMSError(samples))
		fmt.Printf("  control effort: %.4f\n", metrics.Effort(samples))
		if over := metrics.Overshoot(samples, cfg.Setpoint); over > 0 {
			fmt.Printf("  overshoot: %.4f\n", over)
		}
	}

	if csvPath != "" {
		if err := export.WriteCSV(csvPath, samples); err != nil {
			return err
		}
		fmt.Println("wrote", csvPath)
	}
	if svgPath != "" {
		if err := export.WriteSVG(svgPath, samples, cfg.Setpoint); err != nil {
			return err
		}
		fmt.Println("wrote", svgPath)
	}
	return nil
}

func scanDevices(cmd *cobra.Command, args []string) error {
	client, err := link.NewBLEClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	fmt.Println("scanning...")
	results, err := client.Scan(ctx)
	if err != nil {
		return err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].RSSI > results[j].RSSI })
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ADDRESS\tNAME\tRSSI")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%d\n", r.Addr, r.Name, r.RSSI)
	}
	return w.Flush()
}
