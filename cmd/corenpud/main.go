// Command corenpud starts the NPU pipeline core standalone: it loads a
// Config, opens the three host-bridge ports, and steps the kernel until
// the host disconnects. The interactive CLI flag parsing and TOML file
// discovery that would normally front this binary are an external
// collaborator (spec.md §1); this entry point takes a config path as
// its sole argument for the Go-native equivalent.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/rvnpu/corenpu/bridge"
	"github.com/rvnpu/corenpu/log"
	"github.com/rvnpu/corenpu/params"
	"github.com/rvnpu/corenpu/sim"
)

func main() {
	cfg := params.Default()
	if len(os.Args) > 1 {
		loaded, err := params.LoadTOML(os.Args[1])
		if err != nil {
			log.Crit("failed loading config", "path", os.Args[1], "err", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	banner := color.New(color.FgCyan, color.Bold)
	banner.Printf("corenpu: cmd=%d dma_read=%d dma_write=%d banks=%dx%d rob=%d\n",
		cfg.CmdPort, cfg.DMAReadPort, cfg.DMAWritePort, cfg.BankCount, cfg.BankDepth, cfg.ROBCapacity)

	listeners, err := bridge.Listen(
		fmt.Sprintf(":%d", cfg.CmdPort),
		fmt.Sprintf(":%d", cfg.DMAReadPort),
		fmt.Sprintf(":%d", cfg.DMAWritePort),
	)
	if err != nil {
		log.Crit("failed opening host-bridge listeners", "err", err)
		os.Exit(1)
	}
	defer listeners.Close()

	ctx := context.Background()
	log.Info("waiting for host to connect")
	cmdConn, readConn, writeConn, err := listeners.AcceptAll(ctx)
	if err != nil {
		log.Crit("failed accepting host connections", "err", err)
		os.Exit(1)
	}

	dma := bridge.NewDMAClient(readConn, writeConn)
	simulator := sim.New(cfg, dma)
	simulator.LogMemoryFootprint()
	cmdServer := simulator.AttachCmdServer(cmdConn)

	served := make(chan struct{})
	go func() {
		defer close(served)
		if err := cmdServer.Serve(ctx); err != nil {
			log.Error("command session ended", "err", err)
		}
	}()

	log.Info("kernel running")
	for {
		select {
		case <-served:
			log.Info("host disconnected, stopping")
			return
		default:
		}
		if err := simulator.Kernel.Step(); err != nil {
			log.Crit("kernel step failed", "err", err)
			os.Exit(1)
		}
	}
}
