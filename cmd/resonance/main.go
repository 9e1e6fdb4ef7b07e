// Command resonance is a terminal client for the relay. It wires the full
// client stack (event bus, connection session, decision layer, mediator,
// notification fan-out) against console-backed capabilities, which makes it
// both a development client and a reference for embedding the packages.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/onuvuti/resonance/config"
	"github.com/onuvuti/resonance/internal/bus"
	"github.com/onuvuti/resonance/internal/decision"
	"github.com/onuvuti/resonance/internal/mediator"
	"github.com/onuvuti/resonance/internal/notify"
	"github.com/onuvuti/resonance/internal/profile"
	"github.com/onuvuti/resonance/internal/session"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	cc := cfg.Client

	prof := profile.New(cc.Impairments())
	hub := bus.New(log)

	transport := session.NewWSTransport(log, cc.RelayURL, cc.ReconnectAttempts, cc.ReconnectBackoff)
	sess := session.New(log, hub, transport, cc.RoomKey, prof, cc.DisplayName)

	layer := decision.New(log, hub, decision.Config{
		GestureCooldown:    cc.GestureCooldown,
		ExpressionCooldown: cc.ExpressionCooldown,
	})
	agent := mediator.New(log, hub, mediator.Config{SilenceWindow: cc.SilenceWindow})

	console := &consoleOutput{}
	notifier := notify.NewNotifier(log, prof, console, console, console, console)
	defer notifier.Close()

	layer.SetIntentHandler(func(symbol string) {
		if sess.Status() == session.StatusConnected {
			sess.SendMessage(session.KindAction, symbol)
		}
		notifier.NotifyIntent(symbol)
	})

	hub.Subscribe(bus.KindInteractionTriggered, func(e bus.Event) {
		ev := e.(bus.InteractionTriggered)
		if ev.Source == bus.SourcePeerSignal {
			fmt.Printf("peer> [%s] %s\n", ev.MessageKind, ev.Payload)
			notifier.Notify(notify.Incoming{Kind: ev.MessageKind, Payload: ev.Payload})
		}
	})
	hub.Subscribe(bus.KindNudge, func(e bus.Event) {
		ev := e.(bus.Nudge)
		fmt.Printf("mediator> %s nudge (%.1f)\n", ev.Kind, ev.Amplitude)
		notifier.NotifyNudge(ev.Amplitude)
	})
	hub.Subscribe(bus.KindStatusChanged, func(e bus.Event) {
		ev := e.(bus.StatusChanged)
		fmt.Printf("status> %s", ev.Status)
		if ev.PeerID != "" {
			fmt.Printf(" (peer %s %v)", ev.PeerName, peerFlags(ev))
		}
		fmt.Println()
		switch ev.Status {
		case string(session.StatusConnected):
			notifier.Connected()
			agent.Start()
		case string(session.StatusIdle), string(session.StatusError):
			agent.Stop()
		}
	})

	layer.Start()
	defer layer.Stop()
	defer agent.Stop()

	fmt.Println("commands: /match /bye /quit /gesture <category> /expr <category> /emoji <e> /gif <url> or plain text")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch {
		case line == "/quit":
			sess.Disconnect()
			return
		case line == "/match":
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := sess.StartMatching(ctx); err != nil {
				fmt.Println("error>", err)
			}
			cancel()
		case line == "/bye":
			sess.Disconnect()
		case strings.HasPrefix(line, "/gesture "):
			hub.Publish(bus.GestureDetected{
				Category: strings.TrimPrefix(line, "/gesture "),
				Score:    0.9,
				At:       time.Now(),
			})
		case strings.HasPrefix(line, "/expr "):
			category := strings.TrimPrefix(line, "/expr ")
			hub.Publish(bus.ExpressionDetected{
				Category:    category,
				Probability: 0.95,
				At:          time.Now(),
			})
			agent.AmplifySignal(category)
		case strings.HasPrefix(line, "/emoji "):
			send(sess, session.KindEmoji, strings.TrimPrefix(line, "/emoji "))
		case strings.HasPrefix(line, "/gif "):
			send(sess, session.KindImageLink, strings.TrimPrefix(line, "/gif "))
		default:
			send(sess, session.KindText, line)
		}
	}
}

func send(sess *session.Session, kind session.MessageKind, payload string) {
	if _, err := sess.SendMessage(kind, payload); err != nil {
		fmt.Println("error>", err)
	}
}

func peerFlags(ev bus.StatusChanged) []profile.Impairment {
	if ev.PeerProfile == nil {
		return nil
	}
	return ev.PeerProfile.Impairments
}

// consoleOutput renders every sensory channel as a line of text.
type consoleOutput struct{}

func (consoleOutput) Speak(text string, rate, pitch float64) {
	fmt.Printf("speech> %s\n", text)
}

func (consoleOutput) Vibrate(patternMs []int) {
	fmt.Printf("haptic> %v\n", patternMs)
}

func (consoleOutput) Play(freqHz float64, waveform string, durSec, volume float64) {
	fmt.Printf("tone> %.0fHz %s %.2fs\n", freqHz, waveform, durSec)
}

func (consoleOutput) Pulse(d time.Duration) {
	fmt.Printf("pulse> %s\n", d)
}

func (consoleOutput) Caption(text string, d time.Duration) {
	fmt.Printf("caption> %s (%s)\n", text, d)
}
