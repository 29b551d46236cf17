package coordinator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/airadcr/airadcr-desktop/internal/events"
)

// errAlreadyRunning is returned by instanceLock.Acquire when another
// process already holds the lock. Both platform implementations return
// this exact sentinel so the caller doesn't need to inspect OS errors.
var errAlreadyRunning = errors.New("coordinator: another instance is already running")

// handoffAddr is a fixed loopback port distinct from the ingestion
// server's range, used only to pass argv from a second launch to the
// instance that already holds the lock.
const handoffAddr = "127.0.0.1:8744"

// instanceLock is satisfied by lock_windows.go's named mutex and
// lock_unix.go's flock, selected at build time.
type instanceLock interface {
	Acquire() error
	Release() error
}

// AcquireSingleInstance attempts to become the one running instance. If
// another instance already holds the lock, it forwards argv to it over
// the loopback handoff port and returns acquired=false; the caller should
// exit immediately in that case. If it becomes the primary instance, it
// also starts listening on the handoff port for future launches and
// publishes any technical_id they carry onto nav.
func AcquireSingleInstance(ctx context.Context, lockPath string, argv []string, nav *events.NavigationBus, log *slog.Logger) (release func(), acquired bool, err error) {
	lock := newInstanceLock(lockPath)
	switch err := lock.Acquire(); {
	case err == nil:
		acquired = true
	case errors.Is(err, errAlreadyRunning):
		forwardArgv(argv, log)
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("coordinator: acquire single-instance lock: %w", err)
	}

	ln, err := net.Listen("tcp", handoffAddr)
	if err != nil {
		lock.Release()
		return nil, false, fmt.Errorf("coordinator: handoff listener: %w", err)
	}
	go serveHandoff(ctx, ln, nav, log)

	release = func() {
		ln.Close()
		lock.Release()
	}
	return release, true, nil
}

// forwardArgv sends every argument to the existing instance over the
// handoff port, one per line. The existing instance looks for the first
// one that parses as a deep link or --open-tid flag.
func forwardArgv(argv []string, log *slog.Logger) {
	conn, err := net.DialTimeout("tcp", handoffAddr, 2*time.Second)
	if err != nil {
		log.Warn("could not reach running instance for handoff", "error", err)
		return
	}
	defer conn.Close()
	for _, arg := range argv {
		fmt.Fprintln(conn, arg)
	}
}

// serveHandoff accepts one connection per forwarded launch, reads its
// argv lines, and publishes the first valid technical_id it finds.
func serveHandoff(ctx context.Context, ln net.Listener, nav *events.NavigationBus, log *slog.Logger) {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("handoff accept failed", "error", err)
			return
		}
		go handleHandoffConn(conn, nav, log)
	}
}

func handleHandoffConn(conn net.Conn, nav *events.NavigationBus, log *slog.Logger) {
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		tid, ok := ExtractTechnicalID(line)
		if !ok {
			log.Warn("handoff argument rejected", "arg", line)
			continue
		}
		nav.Publish(tid)
		return
	}
}
