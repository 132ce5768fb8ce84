// wagate-pair is a terminal pairing helper. It opens a session against
// a credential directory and renders pairing QR codes in the terminal,
// useful for provisioning a session on a headless box before pointing
// the gateway at the same session directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bjo163/wagate/internal/gateway"
	"github.com/mdp/qrterminal/v3"
)

func main() {
	credDir := flag.String("d", "./wagate-pair-session", "credential directory")
	flag.Parse()

	dialer := gateway.NewWhatsmeowDialer()
	transport, saveCreds, err := dialer.Open(context.Background(), *credDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open session:", err)
		os.Exit(1)
	}
	defer transport.Terminate()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case ev, ok := <-transport.Events():
			if !ok {
				return
			}
			switch {
			case ev.QR != "":
				fmt.Println("scan this code with the phone:")
				qrterminal.GenerateHalfBlock(ev.QR, qrterminal.L, os.Stdout)
			case ev.State == gateway.StateOpen:
				if saveCreds != nil {
					if err := saveCreds(); err != nil {
						fmt.Fprintln(os.Stderr, "save credentials:", err)
					}
				}
				fmt.Println("paired, credentials stored in", *credDir)
				if ev.Identity != nil {
					fmt.Println("account:", ev.Identity.ID)
				}
				return
			case ev.State == gateway.StateClose:
				msg := "connection closed"
				if ev.Reason != nil && ev.Reason.Message != "" {
					msg = ev.Reason.Message
				}
				fmt.Fprintln(os.Stderr, msg)
				return
			}
		case <-sigChan:
			return
		}
	}
}
