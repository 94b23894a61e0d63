// Command thci-shell is a minimal CLI that brings a driver up over a real
// serial console and issues two property requests (ncp-version and
// net-role), printing the results --
// the thinnest possible wrapper over Driver, in the spirit of the
// teacher's own CLI wrapping a single client.Session call.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ezhangle/thci/ncp"
	"github.com/ezhangle/thci/ncp/gpio"
	"github.com/ezhangle/thci/ncp/serial"
)

func main() {
	var (
		device     = flag.String("device", "", "serial device path (required)")
		resetPin   = flag.Uint("reset-pin", 0, "GPIO line number driving NCP reset")
		bootPin    = flag.Uint("boot-pin", 0, "GPIO line number selecting bootloader mode")
		timeout    = flag.Duration("timeout", 2*time.Second, "request timeout")
		diagnostic = flag.Bool("diagnostic", false, "log every driver lifecycle event")
	)
	flag.Parse()

	if *device == "" {
		fmt.Fprintln(os.Stderr, "thci-shell: -device is required")
		os.Exit(2)
	}

	var d *ncp.Driver

	f, err := os.OpenFile(*device, os.O_RDWR, 0)
	if err != nil {
		log.Fatalf("open %s: %v", *device, err)
	}
	transport := serial.NewFileTransport(f, func(b byte) { d.RxISR(b) })
	defer transport.Close()

	hook, err := gpio.OpenLineHook(*resetPin, *bootPin)
	if err != nil {
		log.Fatalf("open gpio lines: %v", err)
	}

	cfg := &ncp.Config{RequestTimeout: *timeout}

	ctx := context.Background()
	if *diagnostic {
		ctx = ncp.WithTrace(ctx, ncp.DiagnosticHooks)
	}

	d = ncp.New(ctx, transport, hook, cfg)
	if err := d.Initialize(ctx, ncp.AlwaysReset); err != nil {
		log.Fatalf("initialize: %v", err)
	}
	defer func() { _ = d.Finalize(context.Background()) }()

	version, err := d.NCPVersion(ctx)
	if err != nil {
		log.Fatalf("ncp-version: %v", err)
	}
	role, err := d.GetNetRole(ctx)
	if err != nil {
		log.Fatalf("net-role: %v", err)
	}

	fmt.Printf("ncp-version: %s\n", version)
	fmt.Printf("net-role:    %s\n", role)
}
