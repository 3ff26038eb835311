package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"syscall"
	"time"

	"github.com/mayugoro/xray/bootstrap"
	"github.com/mayugoro/xray/config"
	"github.com/mayugoro/xray/logger"
)

const shutdownTimeout = 15 * time.Second

// runBot 启动 bot、后台任务与可选的状态接口，直到收到退出信号
func runBot() {
	app, err := bootstrap.Initialize()
	if err != nil {
		log.Fatalf("Error initializing application: %v", err)
	}

	runtime, err := bootstrap.NewRuntime(app)
	if err != nil {
		log.Fatalf("Error creating runtime: %v", err)
	}
	if err := runtime.Start(context.Background()); err != nil {
		log.Fatalf("Error starting: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	setupSignalHandler(sigCh)

	for {
		sig := <-sigCh

		if handleCustomSignal(sig, runtime) {
			continue
		}

		switch sig {
		case syscall.SIGHUP:
			logger.Info("Received SIGHUP signal. Restarting telegram bot...")
			if err := runtime.RestartBot(context.Background()); err != nil {
				logger.Error("restart telegram bot failed:", err)
			}
		default:
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			runtime.Stop(ctx)
			cancel()
			log.Println("Shutting down.")
			return
		}
	}
}

func main() {
	if len(os.Args) < 2 {
		runBot()
		return
	}

	var showVersion bool
	flag.BoolVar(&showVersion, "v", false, "show version")

	runCmd := flag.NewFlagSet("run", flag.ExitOnError)

	linkCmd := flag.NewFlagSet("link", flag.ExitOnError)
	var qrFile string
	var showJSON bool
	linkCmd.StringVar(&qrFile, "qr", "", "Write the QR code PNG to this file")
	linkCmd.BoolVar(&showJSON, "json", false, "Also print the decoded descriptor")

	migrateCmd := flag.NewFlagSet("migrate", flag.ExitOnError)
	var fromPath, toPath string
	var overwrite bool
	migrateCmd.StringVar(&fromPath, "from", "users.json", "Source users.json")
	migrateCmd.StringVar(&toPath, "to", "users.db", "Destination sqlite database")
	migrateCmd.BoolVar(&overwrite, "overwrite", false, "Replace accounts that already exist in the destination")

	oldUsage := flag.Usage
	flag.Usage = func() {
		oldUsage()
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("    run                  run the telegram bot (default)")
		fmt.Println("    version              print version")
		fmt.Println("    link [-qr f] <id>    print the vmess link of an account")
		fmt.Println("    decode <vmess://>    print the descriptor inside a vmess link")
		fmt.Println("    reconcile            compare account records with the xray config")
		fmt.Println("    migrate              copy accounts from users.json into sqlite")
	}

	flag.Parse()
	if showVersion {
		fmt.Println(config.GetVersion())
		return
	}

	switch os.Args[1] {
	case "run":
		if err := runCmd.Parse(os.Args[2:]); err != nil {
			fmt.Println(err)
			return
		}
		runBot()
	case "version":
		fmt.Printf("%s %s\n", config.GetName(), config.GetVersion())
	case "link":
		if err := linkCmd.Parse(os.Args[2:]); err != nil {
			fmt.Println(err)
			return
		}
		if linkCmd.NArg() != 1 {
			linkCmd.Usage()
			os.Exit(2)
		}
		exitOnError(printLink(linkCmd.Arg(0), qrFile, showJSON))
	case "decode":
		if len(os.Args) != 3 {
			flag.Usage()
			os.Exit(2)
		}
		exitOnError(printDecoded(os.Args[2]))
	case "reconcile":
		exitOnError(printReconcile())
	case "migrate":
		if err := migrateCmd.Parse(os.Args[2:]); err != nil {
			fmt.Println(err)
			return
		}
		exitOnError(migrateDb(fromPath, toPath, overwrite))
	default:
		fmt.Println("Invalid subcommand")
		fmt.Println()
		flag.Usage()
		os.Exit(2)
	}
}
