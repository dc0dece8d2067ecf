package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pterm/pterm"

	"github.com/ametov/acctl/internal/client"
	"github.com/ametov/acctl/internal/config"
	"github.com/ametov/acctl/internal/logging"
	"github.com/ametov/acctl/internal/protocol/schema"
	"github.com/ametov/acctl/internal/sim"
	"github.com/ametov/acctl/internal/transport"
)

const usage = `usage: acctl [flags] <command> [args]

commands:
  watch                      stream decoded telemetry until interrupted
  start                      send START (uses the last received setpoint)
  stop                       send STOP (uses the last received setpoint)
  set <temp>                 send SET with the target setpoint
  speeds <c1 c2 c3 e1 e2 e3> send PARAMS_SPEED fan percentages
  temps <t1 t2 t3 t4>        send PARAMS_TEMP thresholds
  send <KEY> [name=value...] send any configured message with a context
`

func main() {
	cfgPath := flag.String("config", "can_messages.toml", "messages config file")
	overlayPath := flag.String("overlay", "", "optional CLI overlay config (bus overrides)")
	iface := flag.String("iface", "", "override bus interface")
	channel := flag.String("channel", "", "override bus channel")
	bitrate := flag.Int("bitrate", 0, "override bus bitrate")
	simulate := flag.Bool("sim", false, "run against an in-process simulated device")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	logging.ConfigureRuntime()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fatal(err)
	}
	if *overlayPath != "" {
		if err := applyOverlay(*overlayPath, &cfg.Bus); err != nil {
			fatal(err)
		}
	}
	if *iface != "" {
		cfg.Bus.Interface = *iface
	}
	if *channel != "" {
		cfg.Bus.Channel = *channel
	}
	if *bitrate > 0 {
		cfg.Bus.Bitrate = *bitrate
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c, err := open(ctx, cfg, *simulate)
	if err != nil {
		fatal(err)
	}
	defer c.Close()

	if err := run(ctx, c, flag.Args()); err != nil {
		fatal(err)
	}
}

// open connects over the configured bus, or over an in-process loopback bus
// with a simulated device attached when -sim is set.
func open(ctx context.Context, cfg config.Config, simulate bool) (*client.Client, error) {
	if !simulate {
		return client.Connect(cfg, client.DefaultConfig())
	}

	sch, err := schema.Compile(cfg)
	if err != nil {
		return nil, err
	}
	bus := transport.NewLoopbackBus()
	device := sim.New(bus.Endpoint(), sch)
	go device.Run(ctx, 500*time.Millisecond)
	return client.New(sch, bus.Endpoint(), client.DefaultConfig()), nil
}

func run(ctx context.Context, c *client.Client, args []string) error {
	switch args[0] {
	case "watch":
		return watch(ctx, c)
	case "start":
		if err := waitForTelemetry(ctx, c); err != nil {
			return err
		}
		return c.Start()
	case "stop":
		if err := waitForTelemetry(ctx, c); err != nil {
			return err
		}
		return c.Stop()
	case "set":
		if len(args) != 2 {
			return fmt.Errorf("set wants exactly one argument")
		}
		target, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("bad setpoint %q: %w", args[1], err)
		}
		return c.Set(target)
	case "speeds":
		vals, err := intArgs(args[1:], 6)
		if err != nil {
			return err
		}
		return c.SendFanSpeeds(client.FanSpeeds{
			Condenser:  [3]int{vals[0], vals[1], vals[2]},
			Evaporator: [3]int{vals[3], vals[4], vals[5]},
		})
	case "temps":
		vals, err := intArgs(args[1:], 4)
		if err != nil {
			return err
		}
		return c.SendTempThresholds(vals[0], vals[1], vals[2], vals[3])
	case "send":
		if len(args) < 2 {
			return fmt.Errorf("send wants a message key")
		}
		sendCtx, err := parseContext(args[2:])
		if err != nil {
			return err
		}
		return c.Send(args[1], sendCtx)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// waitForTelemetry drains events until the first controller snapshot so the
// START/STOP setpoint precondition can be satisfied from a cold start.
func waitForTelemetry(ctx context.Context, c *client.Client) error {
	if _, ok := c.State().Setpoint(); ok {
		return nil
	}
	deadline := time.After(3 * time.Second)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return client.ErrSetpointUnknown
		case ev, ok := <-c.Events():
			if !ok {
				return transport.ErrClosed
			}
			if _, isTelem := ev.(client.TelemetryEvent); isTelem {
				return nil
			}
		}
	}
}

func watch(ctx context.Context, c *client.Client) error {
	pterm.Info.Println("watching telemetry, ctrl-c to stop")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-c.Events():
			if !ok {
				return nil
			}
			render(ev)
		}
	}
}

func render(ev client.Event) {
	switch e := ev.(type) {
	case client.TelemetryEvent:
		s := e.Snapshot
		pterm.Success.Printfln(
			"controller set=%d°C temp=%d°C cond=%d°C fans=%d/%d main=%s sub=%s err=%d",
			s.Setpoint, s.Temp, s.CondenserTemp,
			s.CondenserFan, s.EvaporatorFan,
			s.MainLabel(), s.SubLabel(), s.ErrorCode,
		)
	case client.InverterEvent:
		s := e.Snapshot
		line := fmt.Sprintf("inverter cur=%dA volt=%dV temp=%d°C", s.Current, s.Voltage, s.Temp)
		if s.HasMain {
			line += " main=" + s.MainLabel()
		}
		if s.HasSub {
			line += " sub=" + s.SubLabel()
		}
		if faults := s.Faults(); len(faults) > 0 {
			line += " faults=" + strings.Join(faults, ",")
		}
		pterm.Success.Printfln("%s", line)
	case client.UnmatchedEvent:
		pterm.Debug.Printfln("unmatched id=0x%X ext=%t len=%d", e.Frame.ID, e.Frame.Extended, len(e.Frame.Data))
	case client.StaleEvent:
		pterm.Warning.Printfln("%s telemetry stale, values reset", e.Channel)
	}
}

func intArgs(args []string, want int) ([]int, error) {
	if len(args) != want {
		return nil, fmt.Errorf("want %d integer arguments, got %d", want, len(args))
	}
	out := make([]int, len(args))
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("bad argument %q: %w", a, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseContext(args []string) (map[string]float64, error) {
	out := make(map[string]float64, len(args))
	for _, a := range args {
		name, value, ok := strings.Cut(a, "=")
		if !ok {
			return nil, fmt.Errorf("bad context argument %q (want name=value)", a)
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("bad context value %q: %w", a, err)
		}
		out[name] = v
	}
	return out, nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "acctl: %v\n", err)
	os.Exit(1)
}
